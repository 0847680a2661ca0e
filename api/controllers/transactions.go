package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openbilling/qualpay-bridge/api/middleware"
	"github.com/openbilling/qualpay-bridge/api/responses"
	"github.com/openbilling/qualpay-bridge/api/validators"
	"github.com/openbilling/qualpay-bridge/internal/host"
	"github.com/openbilling/qualpay-bridge/internal/paymentmethods"
	pkgerrors "github.com/openbilling/qualpay-bridge/pkg/errors"
	"github.com/openbilling/qualpay-bridge/pkg/logger"
)

type transactionRequest struct {
	KBAccountID       string                `json:"kb_account_id" validate:"required,uuid"`
	KBPaymentID       string                `json:"kb_payment_id" validate:"required,uuid"`
	KBTransactionID   string                `json:"kb_transaction_id" validate:"required,uuid"`
	KBPaymentMethodID string                `json:"kb_payment_method_id,omitempty" validate:"omitempty,uuid"`
	Amount            decimal.Decimal       `json:"amount"`
	Currency          string                `json:"currency,omitempty" validate:"omitempty,len=3"`
	Properties        []host.PluginProperty `json:"properties,omitempty"`
}

func (t transactionRequest) toParams() (paymentmethods.TransactionParams, error) {
	accountID, err := validators.ParsePathUUID(t.KBAccountID, "kb_account_id")
	if err != nil {
		return paymentmethods.TransactionParams{}, err
	}
	paymentID, err := validators.ParsePathUUID(t.KBPaymentID, "kb_payment_id")
	if err != nil {
		return paymentmethods.TransactionParams{}, err
	}
	transactionID, err := validators.ParsePathUUID(t.KBTransactionID, "kb_transaction_id")
	if err != nil {
		return paymentmethods.TransactionParams{}, err
	}

	paymentMethodID := uuid.Nil
	if t.KBPaymentMethodID != "" {
		paymentMethodID, err = validators.ParsePathUUID(t.KBPaymentMethodID, "kb_payment_method_id")
		if err != nil {
			return paymentmethods.TransactionParams{}, err
		}
	}

	return paymentmethods.TransactionParams{
		AccountID:         accountID,
		KBPaymentID:       paymentID,
		KBTransactionID:   transactionID,
		KBPaymentMethodID: paymentMethodID,
		Amount:            t.Amount,
		Currency:          t.Currency,
		Properties:        t.Properties,
	}, nil
}

type transactionFunc func(r *http.Request, tenant host.Tenant, params paymentmethods.TransactionParams) (*paymentmethods.TransactionResult, error)

func transactionHandler(logg *logger.Logger, run transactionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := middleware.TenantFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "tenant context missing"))
			return
		}

		var payload transactionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := payload.toParams()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := run(r, tenant, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// TransactionAuthorize records an authorization attempt.
func TransactionAuthorize(svc *paymentmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return transactionHandler(logg, func(r *http.Request, tenant host.Tenant, params paymentmethods.TransactionParams) (*paymentmethods.TransactionResult, error) {
		return svc.Authorize(r.Context(), tenant, params)
	})
}

// TransactionCapture records a capture attempt.
func TransactionCapture(svc *paymentmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return transactionHandler(logg, func(r *http.Request, tenant host.Tenant, params paymentmethods.TransactionParams) (*paymentmethods.TransactionResult, error) {
		return svc.Capture(r.Context(), tenant, params)
	})
}

// TransactionPurchase records a purchase attempt.
func TransactionPurchase(svc *paymentmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return transactionHandler(logg, func(r *http.Request, tenant host.Tenant, params paymentmethods.TransactionParams) (*paymentmethods.TransactionResult, error) {
		return svc.Purchase(r.Context(), tenant, params)
	})
}

// TransactionVoid records a void attempt.
func TransactionVoid(svc *paymentmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return transactionHandler(logg, func(r *http.Request, tenant host.Tenant, params paymentmethods.TransactionParams) (*paymentmethods.TransactionResult, error) {
		return svc.Void(r.Context(), tenant, params)
	})
}

// TransactionRefund records a refund attempt.
func TransactionRefund(svc *paymentmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return transactionHandler(logg, func(r *http.Request, tenant host.Tenant, params paymentmethods.TransactionParams) (*paymentmethods.TransactionResult, error) {
		return svc.Refund(r.Context(), tenant, params)
	})
}

// TransactionCredit always rejects; credits are unsupported.
func TransactionCredit(svc *paymentmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return transactionHandler(logg, func(r *http.Request, tenant host.Tenant, params paymentmethods.TransactionParams) (*paymentmethods.TransactionResult, error) {
		return svc.Credit(r.Context(), tenant, params)
	})
}

// GatewayNotification always rejects; no webhook integration exists.
func GatewayNotification(svc *paymentmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := middleware.TenantFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "tenant context missing"))
			return
		}

		var payload json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification payload"))
			return
		}

		if err := svc.ProcessNotification(r.Context(), tenant, payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "accepted"})
	}
}
