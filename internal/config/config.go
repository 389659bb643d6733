package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	AppEnv        string
	ServerPort    string
	DBDriver      string
	DBDSN         string
	SessionSecret string

	AdminUsername string
	AdminPassword string
	SeedDemoUsers bool

	TaxRate decimal.Decimal

	RedisAddr string

	OverdueSweepInterval time.Duration
	MetricsEnabled       bool
}

var defaultTaxRate = decimal.RequireFromString("0.18")

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		ServerPort:    getEnv("SERVER_PORT", "8080"),
		DBDriver:      strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBDSN:         os.Getenv("DB_DSN"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		AdminUsername: getEnv("ADMIN_USERNAME", "admin@lab.local"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "Admin123!"),
		SeedDemoUsers: parseBool("SEED_DEMO_USERS", false),
		TaxRate:       defaultTaxRate,
		RedisAddr:     os.Getenv("REDIS_ADDR"),
	}
	cfg.MetricsEnabled = parseBool("METRICS_ENABLED", true)

	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN is not set")
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("SESSION_SECRET is not set")
	}
	switch cfg.DBDriver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	if v := strings.TrimSpace(os.Getenv("TAX_RATE")); v != "" {
		rate, err := decimal.NewFromString(v)
		if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("invalid TAX_RATE %q", v)
		}
		cfg.TaxRate = rate
	}

	if v := strings.TrimSpace(os.Getenv("OVERDUE_SWEEP_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid OVERDUE_SWEEP_INTERVAL %q", v)
		}
		cfg.OverdueSweepInterval = d
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "prod" || c.AppEnv == "production"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
