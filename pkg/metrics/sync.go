package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultSyncMetrics records the outcome of vault reconciliation runs.
type VaultSyncMetrics struct {
	duration    *prometheus.HistogramVec
	created     *prometheus.CounterVec
	updated     *prometheus.CounterVec
	deactivated *prometheus.CounterVec
	failure     *prometheus.CounterVec
}

// NewVaultSyncMetrics registers the sync metrics on the provided registerer.
func NewVaultSyncMetrics(reg prometheus.Registerer) *VaultSyncMetrics {
	if reg == nil {
		return &VaultSyncMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vault_sync_duration_seconds",
		Help:    "Duration of vault refresh runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tenant"})
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_sync_cards_created",
		Help: "Payment methods created locally because they appeared in the vault.",
	}, []string{"tenant"})
	updated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_sync_cards_updated",
		Help: "Payment methods whose metadata was refreshed from the vault.",
	}, []string{"tenant"})
	deactivated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_sync_cards_deactivated",
		Help: "Payment methods soft-deleted because the vault no longer lists them.",
	}, []string{"tenant"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_sync_failures",
		Help: "Vault refresh runs that ended in an error.",
	}, []string{"tenant"})
	reg.MustRegister(duration, created, updated, deactivated, failure)
	return &VaultSyncMetrics{
		duration:    duration,
		created:     created,
		updated:     updated,
		deactivated: deactivated,
		failure:     failure,
	}
}

// ObserveDuration records the duration of a refresh for the tenant.
func (m *VaultSyncMetrics) ObserveDuration(tenant string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(tenant)).Observe(duration.Seconds())
}

// AddCreated increments the created-card counter.
func (m *VaultSyncMetrics) AddCreated(tenant string, n int) {
	if m == nil || m.created == nil {
		return
	}
	m.created.WithLabelValues(normalizeLabel(tenant)).Add(float64(n))
}

// AddUpdated increments the updated-card counter.
func (m *VaultSyncMetrics) AddUpdated(tenant string, n int) {
	if m == nil || m.updated == nil {
		return
	}
	m.updated.WithLabelValues(normalizeLabel(tenant)).Add(float64(n))
}

// AddDeactivated increments the deactivated-card counter.
func (m *VaultSyncMetrics) AddDeactivated(tenant string, n int) {
	if m == nil || m.deactivated == nil {
		return
	}
	m.deactivated.WithLabelValues(normalizeLabel(tenant)).Add(float64(n))
}

// IncFailure increments the failed-refresh counter.
func (m *VaultSyncMetrics) IncFailure(tenant string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(tenant)).Inc()
}

func normalizeLabel(tenant string) string {
	if tenant == "" {
		return "unknown"
	}
	return tenant
}
