package binding

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/openbilling/qualpay-bridge/internal/host"
	pkgerrors "github.com/openbilling/qualpay-bridge/pkg/errors"
)

type stubCustomFields struct {
	fields  []host.CustomField
	added   []host.CustomField
	listErr error
}

func (s *stubCustomFields) ListAccountCustomFields(context.Context, uuid.UUID, host.Tenant) ([]host.CustomField, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.fields, nil
}

func (s *stubCustomFields) AddAccountCustomField(_ context.Context, _ uuid.UUID, field host.CustomField, _ host.Tenant) error {
	s.added = append(s.added, field)
	return nil
}

func TestResolveReturnsBoundCustomer(t *testing.T) {
	resolver := NewResolver(&stubCustomFields{fields: []host.CustomField{
		{Name: "OTHER_FIELD", Value: "x"},
		{Name: FieldName, Value: " cust-1 "},
	}})

	customerID, err := resolver.Resolve(context.Background(), uuid.New(), host.Tenant{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if customerID != "cust-1" {
		t.Fatalf("expected cust-1, got %q", customerID)
	}
}

func TestResolveAbsentBindingIsNotAnError(t *testing.T) {
	resolver := NewResolver(&stubCustomFields{})

	customerID, err := resolver.Resolve(context.Background(), uuid.New(), host.Tenant{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if customerID != "" {
		t.Fatalf("expected empty customer id, got %q", customerID)
	}
}

func TestRequireFailsWithoutBinding(t *testing.T) {
	resolver := NewResolver(&stubCustomFields{})

	_, err := resolver.Require(context.Background(), uuid.New(), host.Tenant{})
	if !pkgerrors.HasCode(err, pkgerrors.CodeBindingMissing) {
		t.Fatalf("expected binding-missing error, got %v", err)
	}
}

func TestRequireSurfacesLookupFailures(t *testing.T) {
	lookupErr := pkgerrors.New(pkgerrors.CodeRemote, "host unavailable")
	resolver := NewResolver(&stubCustomFields{listErr: lookupErr})

	_, err := resolver.Require(context.Background(), uuid.New(), host.Tenant{})
	if !pkgerrors.HasCode(err, pkgerrors.CodeRemote) {
		t.Fatalf("expected lookup failure surfaced, got %v", err)
	}
}

func TestPersistWritesCustomField(t *testing.T) {
	stub := &stubCustomFields{}
	resolver := NewResolver(stub)

	if err := resolver.Persist(context.Background(), uuid.New(), "cust-2", host.Tenant{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stub.added) != 1 || stub.added[0].Name != FieldName || stub.added[0].Value != "cust-2" {
		t.Fatalf("unexpected fields written: %v", stub.added)
	}
}

func TestPersistRejectsEmptyCustomerID(t *testing.T) {
	resolver := NewResolver(&stubCustomFields{})

	err := resolver.Persist(context.Background(), uuid.New(), "  ", host.Tenant{})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
