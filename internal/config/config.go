// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // CAMPSITE_TIMEZONE must resolve in minimal images

	"github.com/Shivanand-hulikatti/campsite-reservations/internal/database"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env                  string
	Port                 string
	StoreDriver          string
	Database             database.Config
	AdmissionLockTimeout time.Duration
	Location             *time.Location
	MetricsEnabled       bool
	ShutdownTimeout      time.Duration
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:         getEnv("APP_ENV", "dev"),
		Port:        getEnv("PORT", "8080"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		Database: database.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "campsite"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
	}

	switch cfg.StoreDriver {
	case DriverPostgres, DriverMemory:
	default:
		return Config{}, fmt.Errorf("invalid STORE_DRIVER %q: want %s or %s", cfg.StoreDriver, DriverPostgres, DriverMemory)
	}

	maxConns, err := parseIntEnv("DB_MAX_CONNS", 20)
	if err != nil {
		return Config{}, err
	}
	if maxConns <= 0 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive, got %d", maxConns)
	}
	cfg.Database.MaxConns = int32(maxConns)

	lockTimeout, err := parseDurationEnv("ADMISSION_LOCK_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	if lockTimeout <= 0 {
		return Config{}, fmt.Errorf("ADMISSION_LOCK_TIMEOUT must be positive, got %s", lockTimeout)
	}
	cfg.AdmissionLockTimeout = lockTimeout

	tz := getEnv("CAMPSITE_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Config{}, fmt.Errorf("invalid CAMPSITE_TIMEZONE %q: %w", tz, err)
	}
	cfg.Location = loc

	metricsEnabled, err := parseBoolEnv("METRICS_ENABLED", true)
	if err != nil {
		return Config{}, err
	}
	cfg.MetricsEnabled = metricsEnabled

	shutdown, err := parseDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.ShutdownTimeout = shutdown

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseIntEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return n, nil
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
