package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PaymentMethod mirrors one tokenized card held in the Qualpay vault for a
// host account. additional_data round-trips the non-sensitive card attributes
// verbatim; the raw card never touches this table.
type PaymentMethod struct {
	RecordID          int64           `gorm:"column:record_id;primaryKey;autoIncrement"`
	KBAccountID       uuid.UUID       `gorm:"column:kb_account_id;type:uuid;not null;index"`
	KBPaymentMethodID uuid.UUID       `gorm:"column:kb_payment_method_id;type:uuid;not null"`
	QualpayID         string          `gorm:"column:qualpay_id;not null;index"`
	QualpayCustomerID *string         `gorm:"column:qualpay_customer_id"`
	AdditionalData    json.RawMessage `gorm:"column:additional_data;type:jsonb"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	IsDeleted         bool            `gorm:"column:is_deleted;not null;default:false"`
	KBTenantID        uuid.UUID       `gorm:"column:kb_tenant_id;type:uuid;not null"`
}

func (PaymentMethod) TableName() string {
	return "qualpay_payment_methods"
}
