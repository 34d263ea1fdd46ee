package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"barberbook/internal/domain"

	sq "github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB wraps sql.DB with the booking schema. Writes that must be atomic run in
// immediate transactions, so concurrent writers serialize on the SQLite lock.
type DB struct {
	*sql.DB
	path   string
	logger zerolog.Logger
	now    func() time.Time
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

const dsnParams = "_txlock=immediate&_busy_timeout=5000&_foreign_keys=on"

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "database").Logger()
	}

	var dsn string
	if path == ":memory:" {
		dsn = "file::memory:?" + dsnParams
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = "file:" + path + "?" + dsnParams + "&_journal_mode=WAL"
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// each connection would otherwise get its own empty database
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Info().Str("path", path).Msg("database initialized")
	return &DB{
		DB:     sqlDB,
		path:   path,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (db *DB) Path() string { return db.path }

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            full_name TEXT NOT NULL,
            phone TEXT,
            role TEXT NOT NULL CHECK (role IN ('customer', 'barber')),
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS shops (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            owner_id INTEGER NOT NULL UNIQUE REFERENCES users(id),
            name TEXT NOT NULL,
            address TEXT,
            latitude REAL NOT NULL DEFAULT 0,
            longitude REAL NOT NULL DEFAULT 0,
            is_open BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS barbers (
            user_id INTEGER PRIMARY KEY REFERENCES users(id),
            shop_id INTEGER NOT NULL REFERENCES shops(id),
            work_start TEXT NOT NULL,
            work_end TEXT NOT NULL,
            slot_minutes INTEGER NOT NULL,
            timezone TEXT NOT NULL,
            is_active BOOLEAN NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS services (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            shop_id INTEGER NOT NULL REFERENCES shops(id),
            name TEXT NOT NULL,
            price TEXT NOT NULL,
            duration_minutes INTEGER NOT NULL,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            customer_id INTEGER NOT NULL REFERENCES users(id),
            barber_id INTEGER NOT NULL REFERENCES barbers(user_id),
            shop_id INTEGER NOT NULL REFERENCES shops(id),
            slot_start TEXT NOT NULL,
            status TEXT NOT NULL CHECK (status IN ('requested', 'accepted', 'rejected', 'cancelled', 'completed')),
            price TEXT NOT NULL,
            final_price TEXT,
            payment_method TEXT NOT NULL DEFAULT 'cash',
            cancellation_reason TEXT,
            cancelled_by TEXT,
            receipt_data TEXT,
            version INTEGER NOT NULL DEFAULT 1,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS booking_services (
            booking_id INTEGER NOT NULL REFERENCES bookings(id),
            service_id INTEGER NOT NULL REFERENCES services(id),
            service_name TEXT NOT NULL,
            price_at_booking TEXT NOT NULL,
            PRIMARY KEY (booking_id, service_id)
        )`,
		`CREATE TABLE IF NOT EXISTS slot_blocks (
            barber_id INTEGER NOT NULL REFERENCES barbers(user_id),
            slot_start TEXT NOT NULL,
            created_at DATETIME NOT NULL,
            PRIMARY KEY (barber_id, slot_start)
        )`,
		`CREATE TABLE IF NOT EXISTS outbox (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            event_type TEXT NOT NULL,
            barber_id INTEGER NOT NULL,
            booking_id INTEGER NOT NULL,
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		// at most one booking holds a barber slot; completed rows keep holding it
		`DROP INDEX IF EXISTS ux_bookings_live_slot`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_bookings_held_slot
            ON bookings(barber_id, slot_start) WHERE status IN ('requested', 'accepted', 'completed')`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_barber_slot ON bookings(barber_id, slot_start)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_customer ON bookings(customer_id, slot_start)`,
		`CREATE INDEX IF NOT EXISTS idx_services_shop ON services(shop_id)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// slotKey is the canonical stored form of a slot start.
func slotKey(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseSlotKey(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse slot_start %q: %w", raw, err)
	}
	return t.UTC(), nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}
