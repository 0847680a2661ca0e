package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openbilling/qualpay-bridge/api/middleware"
	"github.com/openbilling/qualpay-bridge/api/responses"
	"github.com/openbilling/qualpay-bridge/api/validators"
	"github.com/openbilling/qualpay-bridge/internal/host"
	"github.com/openbilling/qualpay-bridge/internal/paymentmethods"
	"github.com/openbilling/qualpay-bridge/pkg/db/models"
	pkgerrors "github.com/openbilling/qualpay-bridge/pkg/errors"
	"github.com/openbilling/qualpay-bridge/pkg/logger"
	"github.com/openbilling/qualpay-bridge/pkg/qualpay"
)

type addPaymentMethodRequest struct {
	KBPaymentMethodID       string                `json:"kb_payment_method_id" validate:"required,uuid"`
	ExternalPaymentMethodID string                `json:"external_payment_method_id,omitempty"`
	SetDefault              bool                  `json:"set_default,omitempty"`
	Card                    qualpay.BillingCard   `json:"card,omitempty"`
	Properties              []host.PluginProperty `json:"properties,omitempty"`
}

type paymentMethodResponse struct {
	KBAccountID       string          `json:"kb_account_id"`
	KBPaymentMethodID string          `json:"kb_payment_method_id"`
	CardID            string          `json:"card_id"`
	CustomerID        *string         `json:"customer_id,omitempty"`
	AdditionalData    json.RawMessage `json:"additional_data,omitempty"`
	IsDefault         bool            `json:"is_default"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func toPaymentMethodResponse(method *models.PaymentMethod) paymentMethodResponse {
	return paymentMethodResponse{
		KBAccountID:       method.KBAccountID.String(),
		KBPaymentMethodID: method.KBPaymentMethodID.String(),
		CardID:            method.QualpayID,
		CustomerID:        method.QualpayCustomerID,
		AdditionalData:    method.AdditionalData,
		CreatedAt:         method.CreatedAt.UTC(),
		UpdatedAt:         method.UpdatedAt.UTC(),
	}
}

// AddPaymentMethod handles card-on-file registration for an account.
func AddPaymentMethod(svc *paymentmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := middleware.TenantFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "tenant context missing"))
			return
		}

		accountID, err := validators.ParsePathUUID(chi.URLParam(r, "accountId"), "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addPaymentMethodRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kbPaymentMethodID, err := validators.ParsePathUUID(payload.KBPaymentMethodID, "kb_payment_method_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := svc.AddPaymentMethod(r.Context(), tenant, paymentmethods.AddPaymentMethodParams{
			AccountID:               accountID,
			KBPaymentMethodID:       kbPaymentMethodID,
			ExternalPaymentMethodID: payload.ExternalPaymentMethodID,
			SetDefault:              payload.SetDefault,
			Card:                    payload.Card,
			Properties:              payload.Properties,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toPaymentMethodResponse(method))
	}
}

// ListPaymentMethods lists the account's active cards, optionally refreshing
// against the vault first.
func ListPaymentMethods(svc *paymentmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := middleware.TenantFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "tenant context missing"))
			return
		}

		accountID, err := validators.ParsePathUUID(chi.URLParam(r, "accountId"), "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		refresh, err := validators.ParseQueryBool(r, "refresh", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		methods, err := svc.GetPaymentMethods(r.Context(), tenant, accountID, refresh)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := make([]paymentMethodResponse, 0, len(methods))
		for i := range methods {
			payload = append(payload, toPaymentMethodResponse(&methods[i]))
		}
		responses.WriteSuccess(w, payload)
	}
}

// GetPaymentMethod returns one active card binding.
func GetPaymentMethod(svc *paymentmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := middleware.TenantFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "tenant context missing"))
			return
		}

		kbPaymentMethodID, err := validators.ParsePathUUID(chi.URLParam(r, "paymentMethodId"), "paymentMethodId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := svc.GetPaymentMethodDetail(r.Context(), tenant, kbPaymentMethodID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toPaymentMethodResponse(method))
	}
}

// DeletePaymentMethod removes the card from the vault and deactivates the
// binding. skip_gw=true skips the vault call.
func DeletePaymentMethod(svc *paymentmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := middleware.TenantFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "tenant context missing"))
			return
		}

		kbPaymentMethodID, err := validators.ParsePathUUID(chi.URLParam(r, "paymentMethodId"), "paymentMethodId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		skipGw, err := validators.ParseQueryBool(r, paymentmethods.PropertySkipGateway, false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var properties []host.PluginProperty
		if skipGw {
			properties = append(properties, host.PluginProperty{Key: paymentmethods.PropertySkipGateway, Value: "true"})
		}

		if err := svc.DeletePaymentMethod(r.Context(), tenant, kbPaymentMethodID, properties); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
