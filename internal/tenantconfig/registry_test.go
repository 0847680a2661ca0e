package tenantconfig

import (
	"testing"
	"time"

	"github.com/openbilling/qualpay-bridge/pkg/config"
	pkgerrors "github.com/openbilling/qualpay-bridge/pkg/errors"
)

func TestRegistryGetUnknownTenant(t *testing.T) {
	registry := NewRegistry(config.QualpayConfig{})

	_, err := registry.Get("tenant-1")
	if !pkgerrors.HasCode(err, pkgerrors.CodeConfigMissing) {
		t.Fatalf("expected config-missing error, got %v", err)
	}
}

func TestRegistrySeedsDefaultTenant(t *testing.T) {
	registry := NewRegistry(config.QualpayConfig{
		SeedTenantID:      "tenant-1",
		SeedAPIKey:        "sek_test",
		SeedMerchantID:    212000,
		ConnectionTimeout: "5000",
		ReadTimeout:       "15000",
	})

	cfg, err := registry.Get("tenant-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIKey != "sek_test" || cfg.MerchantID != 212000 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.ConnectTimeout != 5*time.Second || cfg.ReadTimeout != 15*time.Second {
		t.Fatalf("unexpected timeouts %+v", cfg)
	}
}

func TestRegistryReplaceAndRemove(t *testing.T) {
	registry := NewRegistry(config.QualpayConfig{})

	registry.Replace("tenant-2", Config{APIKey: "key-a", MerchantID: 1})
	registry.Replace("tenant-2", Config{APIKey: "key-b", MerchantID: 2})

	cfg, err := registry.Get("tenant-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIKey != "key-b" || cfg.MerchantID != 2 {
		t.Fatalf("expected replacement to win, got %+v", cfg)
	}

	registry.Remove("tenant-2")
	registry.Remove("tenant-2")
	if _, err := registry.Get("tenant-2"); !pkgerrors.HasCode(err, pkgerrors.CodeConfigMissing) {
		t.Fatalf("expected config-missing after removal, got %v", err)
	}
}

func TestRegistryRejectsBlankAPIKey(t *testing.T) {
	registry := NewRegistry(config.QualpayConfig{})
	registry.Replace("tenant-3", Config{APIKey: "   "})

	if _, err := registry.Get("tenant-3"); !pkgerrors.HasCode(err, pkgerrors.CodeConfigMissing) {
		t.Fatalf("expected config-missing for blank key, got %v", err)
	}
}
