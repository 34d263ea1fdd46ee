package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"barberbook/internal/config"
	"barberbook/internal/database"
	"barberbook/internal/domain"
	"barberbook/internal/logging"
	"barberbook/internal/models"
	"barberbook/internal/service"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

type seedFile struct {
	Customers []seedUser   `yaml:"customers"`
	Barbers   []seedBarber `yaml:"barbers"`
}

type seedUser struct {
	FullName string `yaml:"full_name"`
	Phone    string `yaml:"phone"`
}

type seedBarber struct {
	seedUser    `yaml:",inline"`
	WorkStart   string        `yaml:"work_start"`
	WorkEnd     string        `yaml:"work_end"`
	SlotMinutes int           `yaml:"slot_minutes"`
	Timezone    string        `yaml:"timezone"`
	Shop        seedShop      `yaml:"shop"`
	Services    []seedService `yaml:"services"`
}

type seedShop struct {
	Name      string  `yaml:"name"`
	Address   string  `yaml:"address"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

type seedService struct {
	Name            string `yaml:"name"`
	Price           string `yaml:"price"`
	DurationMinutes int    `yaml:"duration_minutes"`
}

func (s seedService) model() (models.Service, error) {
	p, err := decimal.NewFromString(s.Price)
	if err != nil {
		return models.Service{}, fmt.Errorf("service %q price %q: %w", s.Name, s.Price, err)
	}
	return models.Service{Name: s.Name, Price: p, DurationMinutes: s.DurationMinutes}, nil
}

type result struct {
	usersCreated    int
	barbersOnboard  int
	servicesCreated int
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		seedPath   = flag.String("seed", "configs/seed.yaml", "path to seed.yaml")
		configPath = flag.String("config", "configs/config.yaml", "path to config.yaml")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	file, err := readSeed(*seedPath)
	if err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	catalog := service.NewCatalogService(db, nil, cfg.Booking, logger)
	res, err := apply(ctx, db, catalog, file)
	if err != nil {
		return err
	}

	logger.Info().
		Int("users_created", res.usersCreated).
		Int("barbers_onboarded", res.barbersOnboard).
		Int("services_created", res.servicesCreated).
		Msg("seed done")
	return nil
}

func readSeed(path string) (*seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if len(file.Customers) == 0 && len(file.Barbers) == 0 {
		return nil, fmt.Errorf("no users in seed")
	}
	return &file, nil
}

// apply is idempotent on names: existing users, shops and services are left
// alone and only what is missing gets created.
func apply(ctx context.Context, db *database.DB, catalog *service.CatalogService, file *seedFile) (result, error) {
	var res result

	for _, c := range file.Customers {
		if _, err := ensureUser(ctx, db, catalog, c, &res); err != nil {
			return res, err
		}
	}

	for _, b := range file.Barbers {
		userID, err := ensureUser(ctx, db, catalog, b.seedUser, &res)
		if err != nil {
			return res, err
		}

		services := make([]models.Service, 0, len(b.Services))
		for _, s := range b.Services {
			m, err := s.model()
			if err != nil {
				return res, err
			}
			services = append(services, m)
		}

		barber, err := db.GetBarber(ctx, userID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			_, err := catalog.CompleteOnboarding(ctx, userID, models.Onboarding{
				Shop: models.Shop{
					Name:      b.Shop.Name,
					Address:   b.Shop.Address,
					Latitude:  b.Shop.Latitude,
					Longitude: b.Shop.Longitude,
				},
				WorkStart:   b.WorkStart,
				WorkEnd:     b.WorkEnd,
				SlotMinutes: b.SlotMinutes,
				Timezone:    b.Timezone,
				Services:    services,
			})
			if err != nil {
				return res, fmt.Errorf("onboard %s: %w", b.FullName, err)
			}
			res.barbersOnboard++
			res.servicesCreated += len(services)
		case err != nil:
			return res, fmt.Errorf("get barber %s: %w", b.FullName, err)
		default:
			n, err := addMissingServices(ctx, catalog, barber, services)
			res.servicesCreated += n
			if err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

func ensureUser(ctx context.Context, db *database.DB, catalog *service.CatalogService, u seedUser, res *result) (int64, error) {
	if u.FullName == "" {
		return 0, fmt.Errorf("seed user without full_name")
	}
	existing, err := db.FindUserByName(ctx, u.FullName)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return 0, fmt.Errorf("find %s: %w", u.FullName, err)
	}

	user := &models.User{FullName: u.FullName, Phone: u.Phone}
	if err := catalog.CreateUser(ctx, user); err != nil {
		return 0, fmt.Errorf("create %s: %w", u.FullName, err)
	}
	res.usersCreated++
	return user.ID, nil
}

func addMissingServices(ctx context.Context, catalog *service.CatalogService, barber *models.Barber, services []models.Service) (int, error) {
	existing, err := catalog.ListServices(ctx, barber.ShopID, false)
	if err != nil {
		return 0, err
	}
	have := make(map[string]bool, len(existing))
	for _, s := range existing {
		have[s.Name] = true
	}

	created := 0
	for _, s := range services {
		if have[s.Name] {
			continue
		}
		if _, err := catalog.AddService(ctx, barber.UserID, barber.ShopID, s); err != nil {
			return created, fmt.Errorf("add service %s: %w", s.Name, err)
		}
		created++
	}
	return created, nil
}
