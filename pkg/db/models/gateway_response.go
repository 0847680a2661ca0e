package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GatewayResponse records one gateway round-trip for a host payment
// transaction. Only the transactional operations write here.
type GatewayResponse struct {
	RecordID               int64           `gorm:"column:record_id;primaryKey;autoIncrement"`
	KBAccountID            uuid.UUID       `gorm:"column:kb_account_id;type:uuid;not null"`
	KBPaymentID            uuid.UUID       `gorm:"column:kb_payment_id;type:uuid;not null;index"`
	KBPaymentTransactionID uuid.UUID       `gorm:"column:kb_payment_transaction_id;type:uuid;not null;index"`
	TransactionType        string          `gorm:"column:transaction_type;not null"`
	Amount                 decimal.Decimal `gorm:"column:amount;type:numeric(15,9)"`
	Currency               string          `gorm:"column:currency;type:char(3)"`
	QualpayID              *string         `gorm:"column:qualpay_id;index"`
	AdditionalData         json.RawMessage `gorm:"column:additional_data;type:jsonb"`
	CreatedAt              time.Time       `gorm:"column:created_at;autoCreateTime"`
	KBTenantID             uuid.UUID       `gorm:"column:kb_tenant_id;type:uuid;not null"`
}

func (GatewayResponse) TableName() string {
	return "qualpay_responses"
}
