package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openbilling/qualpay-bridge/api/responses"
	"github.com/openbilling/qualpay-bridge/api/validators"
	"github.com/openbilling/qualpay-bridge/internal/tenantconfig"
	"github.com/openbilling/qualpay-bridge/pkg/logger"
)

type tenantConfigRequest struct {
	APIKey               string `json:"api_key" validate:"required"`
	MerchantID           int64  `json:"merchant_id,omitempty"`
	ConnectTimeoutMillis int64  `json:"connection_timeout_millis,omitempty" validate:"omitempty,min=1"`
	ReadTimeoutMillis    int64  `json:"read_timeout_millis,omitempty" validate:"omitempty,min=1"`
}

// TenantConfigUpsert installs gateway credentials for a tenant.
func TenantConfigUpsert(registry *tenantconfig.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := validators.ParsePathUUID(chi.URLParam(r, "tenantId"), "tenantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload tenantConfigRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cfg := tenantconfig.Config{
			APIKey:         payload.APIKey,
			MerchantID:     payload.MerchantID,
			ConnectTimeout: time.Duration(payload.ConnectTimeoutMillis) * time.Millisecond,
			ReadTimeout:    time.Duration(payload.ReadTimeoutMillis) * time.Millisecond,
		}
		registry.Replace(tenantID.String(), cfg)

		if logg != nil {
			logg.Info(logg.WithTenantID(r.Context(), tenantID.String()), "tenant credentials configured")
		}
		responses.WriteSuccess(w, map[string]string{"status": "configured"})
	}
}

// TenantConfigDelete removes a tenant's gateway credentials.
func TenantConfigDelete(registry *tenantconfig.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := validators.ParsePathUUID(chi.URLParam(r, "tenantId"), "tenantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		registry.Remove(tenantID.String())

		if logg != nil {
			logg.Info(logg.WithTenantID(r.Context(), tenantID.String()), "tenant credentials removed")
		}
		responses.WriteSuccess(w, map[string]string{"status": "removed"})
	}
}
