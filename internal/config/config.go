package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	HTTPPort      string
	DatabaseURL   string
	LedgerOwner   string
	EscrowAccount string
	ListingFee    decimal.Decimal
	AdminAPIKey   string
	StatsInterval time.Duration
}

// Load reads configuration from environment variables with sensible
// defaults. DATABASE_URL is optional: without it the ledger runs
// memory-only and loses state on restart.
func Load() Config {
	return Config{
		HTTPPort:      envOrDefault("HTTP_PORT", "8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		LedgerOwner:   envOrDefaultWarn("LEDGER_OWNER", "market-owner"),
		EscrowAccount: envOrDefault("ESCROW_ACCOUNT", "market-escrow"),
		ListingFee:    envOrDefaultDecimal("LISTING_FEE", decimal.RequireFromString("0.045")),
		AdminAPIKey:   os.Getenv("ADMIN_API_KEY"),
		StatsInterval: envOrDefaultDuration("STATS_INTERVAL", 15*time.Minute),
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultWarn(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Warn("env var not set, using default", "key", key, "default", defaultVal)
	return defaultVal
}

func envOrDefaultDecimal(key string, defaultVal decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			slog.Warn("invalid decimal env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}
