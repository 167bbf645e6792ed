package config

import (
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoadDefaults(t *testing.T) {
	// Clear any env vars that might affect defaults
	for _, key := range []string{"HTTP_PORT", "DATABASE_URL", "LEDGER_OWNER", "ESCROW_ACCOUNT", "LISTING_FEE", "ADMIN_API_KEY", "STATS_INTERVAL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := Load()

	if cfg.HTTPPort != "8080" {
		t.Errorf("HTTPPort = %q, want 8080", cfg.HTTPPort)
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if cfg.LedgerOwner != "market-owner" {
		t.Errorf("LedgerOwner = %q, want market-owner", cfg.LedgerOwner)
	}
	if cfg.EscrowAccount != "market-escrow" {
		t.Errorf("EscrowAccount = %q, want market-escrow", cfg.EscrowAccount)
	}
	if !cfg.ListingFee.Equal(decimal.RequireFromString("0.045")) {
		t.Errorf("ListingFee = %s, want 0.045", cfg.ListingFee)
	}
	if cfg.StatsInterval != 15*time.Minute {
		t.Errorf("StatsInterval = %v, want 15m", cfg.StatsInterval)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("LEDGER_OWNER", "0xfeed")
	t.Setenv("LISTING_FEE", "1.5")
	t.Setenv("STATS_INTERVAL", "1m")

	cfg := Load()

	if cfg.HTTPPort != "9090" {
		t.Errorf("HTTPPort = %q, want 9090", cfg.HTTPPort)
	}
	if cfg.LedgerOwner != "0xfeed" {
		t.Errorf("LedgerOwner = %q, want 0xfeed", cfg.LedgerOwner)
	}
	if !cfg.ListingFee.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("ListingFee = %s, want 1.5", cfg.ListingFee)
	}
	if cfg.StatsInterval != time.Minute {
		t.Errorf("StatsInterval = %v, want 1m", cfg.StatsInterval)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("LISTING_FEE", "not-a-number")
	t.Setenv("STATS_INTERVAL", "soon")

	cfg := Load()

	if !cfg.ListingFee.Equal(decimal.RequireFromString("0.045")) {
		t.Errorf("ListingFee = %s, want default 0.045", cfg.ListingFee)
	}
	if cfg.StatsInterval != 15*time.Minute {
		t.Errorf("StatsInterval = %v, want default 15m", cfg.StatsInterval)
	}
}

func TestLoadRejectsNegativeListingFee(t *testing.T) {
	t.Setenv("LISTING_FEE", "-3")

	cfg := Load()

	if !cfg.ListingFee.Equal(decimal.RequireFromString("0.045")) {
		t.Errorf("ListingFee = %s, want default 0.045", cfg.ListingFee)
	}
}
