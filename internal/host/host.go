package host

import (
	"context"

	"github.com/google/uuid"
)

// Tenant carries the host tenant identity every operation is scoped by.
type Tenant struct {
	ID        uuid.UUID
	APIKey    string
	APISecret string
}

// CustomField is one keyed attribute attached to a host account.
type CustomField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PluginProperty is one key/value pair of the host's property list.
type PluginProperty struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CustomFieldAPI reads and writes account-level custom fields on the host.
type CustomFieldAPI interface {
	ListAccountCustomFields(ctx context.Context, accountID uuid.UUID, tenant Tenant) ([]CustomField, error)
	AddAccountCustomField(ctx context.Context, accountID uuid.UUID, field CustomField, tenant Tenant) error
}

// PaymentAPI is the host's payment-method surface. Registering a method here
// makes the host call back into the plugin's add path; deleting makes it call
// back into the delete path.
type PaymentAPI interface {
	AddPaymentMethod(ctx context.Context, accountID uuid.UUID, externalPaymentMethodID string, setDefault bool, properties []PluginProperty, tenant Tenant) error
	DeletePaymentMethod(ctx context.Context, paymentMethodID uuid.UUID, tenant Tenant) error
}

// API groups the host capabilities the bridge consumes.
type API interface {
	CustomFieldAPI
	PaymentAPI
}
