// Package tenantconfig holds the per-tenant gateway credentials. Every
// operation resolves its configuration here before touching the vault.
package tenantconfig

import (
	"strings"
	"sync"
	"time"

	"github.com/openbilling/qualpay-bridge/pkg/config"
	pkgerrors "github.com/openbilling/qualpay-bridge/pkg/errors"
	"github.com/openbilling/qualpay-bridge/pkg/qualpay"
)

// Config is the gateway configuration one tenant operates with.
type Config struct {
	APIKey         string
	MerchantID     int64
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// Credentials converts the tenant configuration into call credentials.
func (c Config) Credentials() qualpay.Credentials {
	return qualpay.Credentials{
		APIKey:         c.APIKey,
		MerchantID:     c.MerchantID,
		ConnectTimeout: c.ConnectTimeout,
		ReadTimeout:    c.ReadTimeout,
	}
}

// Registry is an in-memory tenant-to-credentials map guarded for concurrent
// readers. Writes come from the admin surface or the environment seed.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]Config
}

// NewRegistry builds an empty registry, optionally seeded with the default
// tenant's credentials from the environment.
func NewRegistry(cfg config.QualpayConfig) *Registry {
	r := &Registry{configs: make(map[string]Config)}

	tenantID := strings.TrimSpace(cfg.SeedTenantID)
	apiKey := strings.TrimSpace(cfg.SeedAPIKey)
	if tenantID != "" && apiKey != "" {
		r.Replace(tenantID, Config{
			APIKey:         apiKey,
			MerchantID:     cfg.SeedMerchantID,
			ConnectTimeout: cfg.ConnectTimeoutDuration(),
			ReadTimeout:    cfg.ReadTimeoutDuration(),
		})
	}
	return r
}

// Get returns the tenant's configuration. Unknown tenants fail with a
// config-missing error so callers refuse to operate unconfigured.
func (r *Registry) Get(tenantID string) (Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.configs[tenantID]
	if !ok || strings.TrimSpace(cfg.APIKey) == "" {
		return Config{}, pkgerrors.New(pkgerrors.CodeConfigMissing, "no gateway credentials configured for tenant").
			WithDetails(map[string]any{"tenant_id": tenantID})
	}
	return cfg, nil
}

// Replace installs or overwrites the tenant's configuration atomically.
func (r *Registry) Replace(tenantID string, cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[tenantID] = cfg
}

// Remove drops the tenant's configuration. Removing an unknown tenant is a
// no-op.
func (r *Registry) Remove(tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.configs, tenantID)
}
