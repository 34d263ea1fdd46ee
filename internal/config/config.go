package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"barberbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Booking    BookingConfig    `yaml:"booking"`
	Relay      RelayConfig      `yaml:"relay"`
	Exports    ExportConfig     `yaml:"exports"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// APIGRPCConfig has no reflection switch: the booking service is described
// by a hand-written ServiceDesc without a file descriptor.
type APIGRPCConfig struct {
	Port int          `yaml:"port"`
	TLS  APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

// APIAuthConfig guards the transport with static keys. The acting user is
// read from HeaderUser and is trusted as set by the gateway.
type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	HeaderUser   string         `yaml:"header_user"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`
	StoragePath   string        `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// BookingConfig holds calendar defaults for barbers that onboard without
// explicit hours, plus read-path tuning.
type BookingConfig struct {
	DefaultWorkStart      string        `yaml:"default_work_start"`
	DefaultWorkEnd        string        `yaml:"default_work_end"`
	DefaultSlotMinutes    int           `yaml:"default_slot_minutes"`
	DefaultTimezone       string        `yaml:"default_timezone"`
	ScheduleCacheTTL      time.Duration `yaml:"schedule_cache_ttl"`
	NearbyRadiusKm        float64       `yaml:"nearby_radius_km"`
	NearbyLimit           int           `yaml:"nearby_limit"`
	MinOnboardingServices int           `yaml:"min_onboarding_services"`
}

type RelayConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	BatchSize     int           `yaml:"batch_size"`
	MaxRetries    int           `yaml:"max_retries"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	ChannelPrefix string        `yaml:"channel_prefix"`
	DeadLetterKey string        `yaml:"dead_letter_key"`
}

func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if err := ValidateBooking(c.Booking); err != nil {
		return err
	}
	return ValidateAPIKeys(c.API.Auth.APIKeys)
}

// ValidateBooking checks the calendar defaults form a usable grid.
func ValidateBooking(b BookingConfig) error {
	start, err := time.Parse(models.ClockLayout, b.DefaultWorkStart)
	if err != nil {
		return fmt.Errorf("booking.default_work_start %q: %w", b.DefaultWorkStart, err)
	}
	end, err := time.Parse(models.ClockLayout, b.DefaultWorkEnd)
	if err != nil {
		return fmt.Errorf("booking.default_work_end %q: %w", b.DefaultWorkEnd, err)
	}
	if !end.After(start) {
		return errors.New("booking.default_work_end must be after default_work_start")
	}
	if b.DefaultSlotMinutes <= 0 {
		return fmt.Errorf("booking.default_slot_minutes must be positive, got %d", b.DefaultSlotMinutes)
	}
	if _, err := time.LoadLocation(b.DefaultTimezone); err != nil {
		return fmt.Errorf("booking.default_timezone %q: %w", b.DefaultTimezone, err)
	}
	if b.MinOnboardingServices < 1 {
		return errors.New("booking.min_onboarding_services must be at least 1")
	}
	if b.NearbyRadiusKm <= 0 {
		return fmt.Errorf("booking.nearby_radius_km must be positive, got %v", b.NearbyRadiusKm)
	}
	if b.NearbyLimit < 1 {
		return fmt.Errorf("booking.nearby_limit must be at least 1, got %d", b.NearbyLimit)
	}
	return nil
}

func ValidateAPIKeys(keys []APIClientKey) error {
	seen := make(map[string]bool)
	for _, k := range keys {
		if k.Key == "" {
			return fmt.Errorf("api key '%s' is empty", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key for client '%s'", k.Name)
		}
		seen[k.Key] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.API.Auth.HeaderUser == "" {
		c.API.Auth.HeaderUser = "x-user-id"
	}

	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}

	b := &c.Booking
	if b.DefaultWorkStart == "" {
		b.DefaultWorkStart = models.DefaultWorkStart
	}
	if b.DefaultWorkEnd == "" {
		b.DefaultWorkEnd = models.DefaultWorkEnd
	}
	if b.DefaultSlotMinutes == 0 {
		b.DefaultSlotMinutes = models.DefaultSlotMinutes
	}
	if b.DefaultTimezone == "" {
		b.DefaultTimezone = models.DefaultTimezone
	}
	if b.ScheduleCacheTTL == 0 {
		b.ScheduleCacheTTL = 5 * time.Minute
	}
	if b.NearbyRadiusKm == 0 {
		b.NearbyRadiusKm = 10
	}
	if b.NearbyLimit == 0 {
		b.NearbyLimit = 10
	}
	if b.MinOnboardingServices == 0 {
		b.MinOnboardingServices = models.MinOnboardingServices
	}

	r := &c.Relay
	if r.PollInterval == 0 {
		r.PollInterval = 5 * time.Second
	}
	if r.BatchSize == 0 {
		r.BatchSize = 50
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = 5
	}
	if r.InitialDelay == 0 {
		r.InitialDelay = time.Second
	}
	if r.MaxDelay == 0 {
		r.MaxDelay = time.Minute
	}
	if r.ChannelPrefix == "" {
		r.ChannelPrefix = "bookings:barber:"
	}
	if r.DeadLetterKey == "" {
		r.DeadLetterKey = "bookings:outbox:dead"
	}
}
