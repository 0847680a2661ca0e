package paymentmethods

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openbilling/qualpay-bridge/internal/host"
	"github.com/openbilling/qualpay-bridge/pkg/db/models"
	pkgerrors "github.com/openbilling/qualpay-bridge/pkg/errors"
)

// TransactionType names one host payment transaction kind.
type TransactionType string

const (
	TransactionAuthorize TransactionType = "AUTHORIZE"
	TransactionCapture   TransactionType = "CAPTURE"
	TransactionPurchase  TransactionType = "PURCHASE"
	TransactionVoid      TransactionType = "VOID"
	TransactionRefund    TransactionType = "REFUND"
)

// TransactionStatus is the outcome reported back to the host.
type TransactionStatus string

const (
	StatusUndefined TransactionStatus = "UNDEFINED"
	StatusProcessed TransactionStatus = "PROCESSED"
	StatusPending   TransactionStatus = "PENDING"
	StatusError     TransactionStatus = "ERROR"
	StatusCanceled  TransactionStatus = "CANCELED"
)

// PropertyOverriddenTransactionStatus lets integration tests force the
// reported outcome of a transactional stub.
const PropertyOverriddenTransactionStatus = "overriddenTransactionStatus"

// TransactionParams carries one transactional call through the service.
type TransactionParams struct {
	AccountID         uuid.UUID
	KBPaymentID       uuid.UUID
	KBTransactionID   uuid.UUID
	KBPaymentMethodID uuid.UUID
	Amount            decimal.Decimal
	Currency          string
	Properties        []host.PluginProperty
}

// TransactionResult is the plugin's answer for one transactional call.
type TransactionResult struct {
	TransactionType TransactionType   `json:"transaction_type"`
	Status          TransactionStatus `json:"status"`
	Amount          decimal.Decimal   `json:"amount"`
	Currency        string            `json:"currency"`
	CreatedAt       time.Time         `json:"created_at"`
}

// Authorize records an authorization attempt. Money never moves here: the
// gateway's transaction API is not wired, so the reported outcome stays
// undefined and the host treats the attempt as unresolved.
func (s *Service) Authorize(ctx context.Context, tenant host.Tenant, params TransactionParams) (*TransactionResult, error) {
	return s.recordTransaction(ctx, tenant, TransactionAuthorize, params)
}

// Capture records a capture attempt.
func (s *Service) Capture(ctx context.Context, tenant host.Tenant, params TransactionParams) (*TransactionResult, error) {
	return s.recordTransaction(ctx, tenant, TransactionCapture, params)
}

// Purchase records a purchase attempt.
func (s *Service) Purchase(ctx context.Context, tenant host.Tenant, params TransactionParams) (*TransactionResult, error) {
	return s.recordTransaction(ctx, tenant, TransactionPurchase, params)
}

// Void records a void attempt.
func (s *Service) Void(ctx context.Context, tenant host.Tenant, params TransactionParams) (*TransactionResult, error) {
	return s.recordTransaction(ctx, tenant, TransactionVoid, params)
}

// Refund records a refund attempt.
func (s *Service) Refund(ctx context.Context, tenant host.Tenant, params TransactionParams) (*TransactionResult, error) {
	return s.recordTransaction(ctx, tenant, TransactionRefund, params)
}

// Credit is not supported by the gateway integration.
func (s *Service) Credit(ctx context.Context, tenant host.Tenant, params TransactionParams) (*TransactionResult, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotImplemented, "credit is not supported, contact support")
}

// BuildFormDescriptor is not supported; there is no hosted payment page.
func (s *Service) BuildFormDescriptor(ctx context.Context, tenant host.Tenant, accountID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotImplemented, "hosted payment pages are not supported")
}

// ProcessNotification is not supported; the gateway sends no webhooks here.
func (s *Service) ProcessNotification(ctx context.Context, tenant host.Tenant, payload json.RawMessage) error {
	return pkgerrors.New(pkgerrors.CodeNotImplemented, "gateway notifications are not supported")
}

// MinorUnits converts a two-decimal-currency amount into its minor units.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}

func (s *Service) recordTransaction(ctx context.Context, tenant host.Tenant, txType TransactionType, params TransactionParams) (*TransactionResult, error) {
	ctx = s.logger.WithTenantID(ctx, tenant.ID.String())

	var qualpayID *string
	if params.KBPaymentMethodID != uuid.Nil {
		method, err := s.store.GetPaymentMethod(ctx, tenant.ID, params.KBPaymentMethodID)
		if err == nil {
			qualpayID = &method.QualpayID
		} else if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil, err
		}
	}

	response := &models.GatewayResponse{
		KBAccountID:            params.AccountID,
		KBPaymentID:            params.KBPaymentID,
		KBPaymentTransactionID: params.KBTransactionID,
		TransactionType:        string(txType),
		Amount:                 params.Amount,
		Currency:               params.Currency,
		QualpayID:              qualpayID,
		KBTenantID:             tenant.ID,
	}
	if err := s.store.SaveResponse(ctx, response); err != nil {
		return nil, err
	}

	status := StatusUndefined
	for _, prop := range params.Properties {
		if prop.Key == PropertyOverriddenTransactionStatus && prop.Value != "" {
			status = TransactionStatus(prop.Value)
		}
	}

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"transaction_type": string(txType),
		"kb_payment_id":    params.KBPaymentID.String(),
		"amount_minor":     MinorUnits(params.Amount),
		"currency":         params.Currency,
		"status":           string(status),
	}), "transaction recorded")

	return &TransactionResult{
		TransactionType: txType,
		Status:          status,
		Amount:          params.Amount,
		Currency:        params.Currency,
		CreatedAt:       time.Now().UTC(),
	}, nil
}
