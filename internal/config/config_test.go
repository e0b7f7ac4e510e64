package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"rideshare/internal/config"
	"rideshare/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Store != config.StorePostgres {
		t.Errorf("expected postgres store, got %q", cfg.Store)
	}
	if cfg.Wallet.MinTopUp != domain.MustParseMoney("10000") || cfg.Wallet.Currency != "IDR" {
		t.Errorf("unexpected wallet config: %+v", cfg.Wallet)
	}
	if cfg.Booking.MaxSeats != 10 || cfg.Booking.ChargeOnApproval {
		t.Errorf("unexpected booking config: %+v", cfg.Booking)
	}
	if cfg.Booking.LookupTimeout != 2*time.Second {
		t.Errorf("expected 2s lookup timeout, got %s", cfg.Booking.LookupTimeout)
	}
	if cfg.Booking.ApprovalLease != 2*time.Minute {
		t.Errorf("expected 2m approval lease, got %s", cfg.Booking.ApprovalLease)
	}
	if cfg.Reconciler.Interval != 30*time.Second || cfg.Reconciler.MaxAttempts != 10 {
		t.Errorf("unexpected reconciler config: %+v", cfg.Reconciler)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("BOOKING_CHARGE_ON_APPROVAL", "true")
	t.Setenv("RECONCILER_INTERVAL", "5s")
	t.Setenv("WALLET_MIN_TOP_UP", "5000.50")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store != config.StoreMemory || !cfg.Booking.ChargeOnApproval {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if cfg.Reconciler.Interval != 5*time.Second {
		t.Errorf("expected 5s, got %s", cfg.Reconciler.Interval)
	}
	if cfg.Wallet.MinTopUp != domain.MustParseMoney("5000.50") {
		t.Errorf("expected 5000.50, got %s", cfg.Wallet.MinTopUp)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("RIDE_SERVICE_URL=http://inventory:8080\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("RIDE_SERVICE_URL", "")
	os.Unsetenv("RIDE_SERVICE_URL")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RideServiceURL != "http://inventory:8080" {
		t.Errorf("expected value from env file, got %q", cfg.RideServiceURL)
	}
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{name: "zero seat cap", env: map[string]string{"BOOKING_MAX_SEATS": "0"}},
		{name: "unknown store", env: map[string]string{"JWT_SECRET": "s", "STORE_DRIVER": "mysql"}},
		{name: "bad money", env: map[string]string{"JWT_SECRET": "s", "WALLET_MIN_TOP_UP": "10.001"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := config.Load(""); err == nil {
				t.Errorf("expected an error")
			}
		})
	}
}
