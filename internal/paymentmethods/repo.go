package paymentmethods

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openbilling/qualpay-bridge/pkg/db"
	"github.com/openbilling/qualpay-bridge/pkg/db/models"
	pkgerrors "github.com/openbilling/qualpay-bridge/pkg/errors"
)

// Repo persists payment method bindings and gateway responses. Every query
// is tenant scoped, and reads only ever see active rows.
type Repo struct {
	conn *gorm.DB
}

// NewRepo wires the repository to a live connection.
func NewRepo(conn *gorm.DB) *Repo {
	return &Repo{conn: conn}
}

// AddPaymentMethod inserts a new binding row.
func (r *Repo) AddPaymentMethod(ctx context.Context, method *models.PaymentMethod) error {
	if err := r.conn.WithContext(ctx).Create(method).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payment method already exists")
		}
		return pkgerrors.Wrap(pkgerrors.CodeStore, err, "inserting payment method")
	}
	return nil
}

// GetPaymentMethod returns the active binding for the host payment method id.
func (r *Repo) GetPaymentMethod(ctx context.Context, tenantID, kbPaymentMethodID uuid.UUID) (*models.PaymentMethod, error) {
	var method models.PaymentMethod
	err := r.conn.WithContext(ctx).
		Where("kb_tenant_id = ? AND kb_payment_method_id = ? AND is_deleted = ?", tenantID, kbPaymentMethodID, false).
		First(&method).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment method not found").
				WithDetails(map[string]any{"kb_payment_method_id": kbPaymentMethodID.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "loading payment method")
	}
	return &method, nil
}

// ListPaymentMethods returns the account's active bindings in insertion order.
func (r *Repo) ListPaymentMethods(ctx context.Context, tenantID, accountID uuid.UUID) ([]models.PaymentMethod, error) {
	var methods []models.PaymentMethod
	err := r.conn.WithContext(ctx).
		Where("kb_tenant_id = ? AND kb_account_id = ? AND is_deleted = ?", tenantID, accountID, false).
		Order("record_id asc").
		Find(&methods).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "listing payment methods")
	}
	return methods, nil
}

// UpdatePaymentMethod refreshes the card token and metadata on an existing
// binding.
func (r *Repo) UpdatePaymentMethod(ctx context.Context, method *models.PaymentMethod) error {
	err := r.conn.WithContext(ctx).
		Model(&models.PaymentMethod{}).
		Where("record_id = ?", method.RecordID).
		Updates(map[string]any{
			"qualpay_id":          method.QualpayID,
			"qualpay_customer_id": method.QualpayCustomerID,
			"additional_data":     method.AdditionalData,
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStore, err, "updating payment method")
	}
	return nil
}

// MarkPaymentMethodDeleted soft deletes the binding. Rows already deleted are
// left untouched, so repeat calls are harmless.
func (r *Repo) MarkPaymentMethodDeleted(ctx context.Context, tenantID, kbPaymentMethodID uuid.UUID) error {
	err := r.conn.WithContext(ctx).
		Model(&models.PaymentMethod{}).
		Where("kb_tenant_id = ? AND kb_payment_method_id = ? AND is_deleted = ?", tenantID, kbPaymentMethodID, false).
		Update("is_deleted", true).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStore, err, "deleting payment method")
	}
	return nil
}

// SaveResponse appends one gateway round-trip record.
func (r *Repo) SaveResponse(ctx context.Context, response *models.GatewayResponse) error {
	if err := r.conn.WithContext(ctx).Create(response).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStore, err, "inserting gateway response")
	}
	return nil
}
