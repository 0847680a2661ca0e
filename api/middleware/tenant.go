package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/openbilling/qualpay-bridge/api/responses"
	"github.com/openbilling/qualpay-bridge/internal/host"
	pkgerrors "github.com/openbilling/qualpay-bridge/pkg/errors"
	"github.com/openbilling/qualpay-bridge/pkg/logger"
)

// Headers the host sends on every plugin call to identify the tenant.
const (
	tenantIDHeader  = "X-Killbill-TenantId"
	apiKeyHeader    = "X-Killbill-ApiKey"
	apiSecretHeader = "X-Killbill-ApiSecret"
)

type contextKey string

const ctxTenant contextKey = "tenant"

// TenantContext requires the host tenant headers and injects the tenant into
// the request context.
func TenantContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			tenantID, err := uuid.Parse(r.Header.Get(tenantIDHeader))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "tenant header missing or invalid"))
				return
			}

			tenant := host.Tenant{
				ID:        tenantID,
				APIKey:    r.Header.Get(apiKeyHeader),
				APISecret: r.Header.Get(apiSecretHeader),
			}

			if logg != nil {
				ctx = logg.WithTenantID(ctx, tenantID.String())
			}
			ctx = context.WithValue(ctx, ctxTenant, tenant)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TenantFromContext returns the tenant injected by TenantContext.
func TenantFromContext(ctx context.Context) (host.Tenant, bool) {
	if ctx == nil {
		return host.Tenant{}, false
	}
	tenant, ok := ctx.Value(ctxTenant).(host.Tenant)
	return tenant, ok
}
