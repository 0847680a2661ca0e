// Package binding maps host accounts to their vault customer ids. The
// mapping lives in a host custom field so other plugins and operators can
// see it.
package binding

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/openbilling/qualpay-bridge/internal/host"
	pkgerrors "github.com/openbilling/qualpay-bridge/pkg/errors"
)

// FieldName is the account custom field carrying the vault customer id.
const FieldName = "QUALPAY_CUSTOMER_ID"

// Resolver reads and writes the account-to-customer binding.
type Resolver struct {
	customFields host.CustomFieldAPI
}

// NewResolver wires the resolver to the host's custom field surface.
func NewResolver(customFields host.CustomFieldAPI) *Resolver {
	return &Resolver{customFields: customFields}
}

// Resolve returns the account's vault customer id, or empty when no binding
// exists yet. Lookup failures surface as errors, absence does not.
func (r *Resolver) Resolve(ctx context.Context, accountID uuid.UUID, tenant host.Tenant) (string, error) {
	fields, err := r.customFields.ListAccountCustomFields(ctx, accountID, tenant)
	if err != nil {
		return "", err
	}
	for _, field := range fields {
		if field.Name == FieldName {
			return strings.TrimSpace(field.Value), nil
		}
	}
	return "", nil
}

// Require returns the binding or fails when the account has none. Operations
// that cannot proceed without a vault customer use this form.
func (r *Resolver) Require(ctx context.Context, accountID uuid.UUID, tenant host.Tenant) (string, error) {
	customerID, err := r.Resolve(ctx, accountID, tenant)
	if err != nil {
		return "", err
	}
	if customerID == "" {
		return "", pkgerrors.New(pkgerrors.CodeBindingMissing, "account has no vault customer binding").
			WithDetails(map[string]any{"account_id": accountID.String()})
	}
	return customerID, nil
}

// Persist records the vault customer id on the account.
func (r *Resolver) Persist(ctx context.Context, accountID uuid.UUID, customerID string, tenant host.Tenant) error {
	if strings.TrimSpace(customerID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	field := host.CustomField{Name: FieldName, Value: customerID}
	return r.customFields.AddAccountCustomField(ctx, accountID, field, tenant)
}
