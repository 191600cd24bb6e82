// Package database provides PostgreSQL connection management and schema
// bootstrap using pgx.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds PostgreSQL connection settings.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

// DSN builds a libpq-compatible connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// connectAttempts and connectBackoff accommodate containers starting up.
const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

// NewPool creates and validates a pgxpool connection pool, retrying while the
// server comes up.
func NewPool(ctx context.Context, cfg Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	poolCfg.MaxConns = 20
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		logger.Warn("db connect attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", connectAttempts),
			slog.Any("error", err),
		)
		if attempt < connectAttempts {
			time.Sleep(connectBackoff)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return pool, nil
}

// schema is idempotent. The exclusion constraint forbids two ACTIVE rows whose
// inclusive date ranges share a day; the checkout day counts as occupied.
const schema = `
CREATE TABLE IF NOT EXISTS reservations (
	id            UUID PRIMARY KEY,
	external_id   TEXT NOT NULL UNIQUE,
	first_name    TEXT NOT NULL,
	last_name     TEXT NOT NULL,
	email         TEXT NOT NULL,
	checkin_date  DATE NOT NULL,
	checkout_date DATE NOT NULL,
	num_guests    INTEGER NOT NULL CHECK (num_guests >= 0),
	status        TEXT NOT NULL CHECK (status IN ('ACTIVE', 'CANCELLED')),
	version       BIGINT NOT NULL DEFAULT 1,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT reservations_dates_check CHECK (checkout_date > checkin_date),
	CONSTRAINT reservations_no_overlap EXCLUDE USING gist (
		daterange(checkin_date, checkout_date, '[]') WITH &&
	) WHERE (status = 'ACTIVE')
);

CREATE INDEX IF NOT EXISTS reservations_active_checkin_idx
	ON reservations (checkin_date, checkout_date)
	WHERE status = 'ACTIVE';
`

// Migrate creates the reservations table and its indexes if they are missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
