package paymentmethods

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/openbilling/qualpay-bridge/pkg/db/models"
	pkgerrors "github.com/openbilling/qualpay-bridge/pkg/errors"
	"github.com/openbilling/qualpay-bridge/pkg/qualpay"
)

func (f *fixture) seedBinding(t *testing.T, accountID uuid.UUID, card qualpay.BillingCard, customerID string) *models.PaymentMethod {
	t.Helper()

	data, err := json.Marshal(card)
	if err != nil {
		t.Fatalf("marshal card: %v", err)
	}
	method := models.PaymentMethod{
		RecordID:          int64(len(f.store.methods) + 1),
		KBAccountID:       accountID,
		KBPaymentMethodID: uuid.New(),
		QualpayID:         card.CardID,
		AdditionalData:    data,
		KBTenantID:        f.tenant.ID,
	}
	if customerID != "" {
		method.QualpayCustomerID = &customerID
	}
	f.store.methods = append(f.store.methods, method)
	return &f.store.methods[len(f.store.methods)-1]
}

func TestRefreshUpdatesExistingCards(t *testing.T) {
	f := newFixture(t)
	f.bindings.customerID = "cust-1"
	accountID := uuid.New()

	f.seedBinding(t, accountID, qualpay.BillingCard{CardID: "card-1", ExpDate: "0425"}, "cust-1")
	f.vault.cards = []qualpay.BillingCard{{CardID: "card-1", ExpDate: "0430"}}

	if err := f.svc.Refresh(context.Background(), f.tenant, accountID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.store.updated) != 1 {
		t.Fatalf("expected one update, got %d", len(f.store.updated))
	}
	var card qualpay.BillingCard
	if err := json.Unmarshal(f.store.updated[0].AdditionalData, &card); err != nil {
		t.Fatalf("decoding updated metadata: %v", err)
	}
	if card.ExpDate != "0430" {
		t.Fatalf("expected refreshed expiry, got %s", card.ExpDate)
	}
	if len(f.hostAPI.added) != 0 || len(f.hostAPI.deleted) != 0 {
		t.Fatal("expected no host callbacks for matched cards")
	}
}

func TestRefreshRegistersVaultOnlyCards(t *testing.T) {
	f := newFixture(t)
	f.bindings.customerID = "cust-1"
	accountID := uuid.New()

	f.seedBinding(t, accountID, qualpay.BillingCard{CardID: "card-1"}, "cust-1")
	f.vault.cards = []qualpay.BillingCard{
		{CardID: "card-1"},
		{CardID: "card-2", ExpDate: "0131"},
	}

	if err := f.svc.Refresh(context.Background(), f.tenant, accountID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.hostAPI.added) != 1 || f.hostAPI.added[0] != "card-2" {
		t.Fatalf("expected host registration for card-2, got %v", f.hostAPI.added)
	}
	// The re-entrant add must not touch the vault: the card is already there.
	if f.vault.addCustomerCalls != 0 || f.vault.addCardCalls != 0 {
		t.Fatal("expected no vault writes during refresh")
	}

	methods, _ := f.store.ListPaymentMethods(context.Background(), f.tenant.ID, accountID)
	if len(methods) != 2 {
		t.Fatalf("expected two active bindings after refresh, got %d", len(methods))
	}
}

func TestRefreshKeepsUnknownMetadataKeys(t *testing.T) {
	f := newFixture(t)
	f.bindings.customerID = "cust-1"
	accountID := uuid.New()

	method := f.seedBinding(t, accountID, qualpay.BillingCard{CardID: "card-1", ExpDate: "0425"}, "cust-1")
	method.AdditionalData = json.RawMessage(`{"card_id":"card-1","exp_date":"0425","loyalty_tier":"gold"}`)
	f.vault.cards = []qualpay.BillingCard{{CardID: "card-1", ExpDate: "0430"}}

	if err := f.svc.Refresh(context.Background(), f.tenant, accountID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.store.updated) != 1 {
		t.Fatalf("expected one update, got %d", len(f.store.updated))
	}
	var bag map[string]string
	if err := json.Unmarshal(f.store.updated[0].AdditionalData, &bag); err != nil {
		t.Fatalf("decoding updated metadata: %v", err)
	}
	if bag["loyalty_tier"] != "gold" {
		t.Fatalf("expected loyalty_tier carried over, got %v", bag)
	}
	if bag["exp_date"] != "0430" {
		t.Fatalf("expected refreshed expiry, got %v", bag)
	}
}

func TestRefreshRegistersNewCardsInVaultOrder(t *testing.T) {
	f := newFixture(t)
	f.bindings.customerID = "cust-1"
	accountID := uuid.New()

	f.vault.cards = []qualpay.BillingCard{
		{CardID: "card-30"},
		{CardID: "card-04"},
		{CardID: "card-17"},
		{CardID: "card-02"},
		{CardID: "card-25"},
	}

	if err := f.svc.Refresh(context.Background(), f.tenant, accountID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"card-30", "card-04", "card-17", "card-02", "card-25"}
	if len(f.hostAPI.added) != len(want) {
		t.Fatalf("expected %d registrations, got %v", len(want), f.hostAPI.added)
	}
	for i, cardID := range want {
		if f.hostAPI.added[i] != cardID {
			t.Fatalf("expected registrations in listing order %v, got %v", want, f.hostAPI.added)
		}
	}
}

func TestRefreshMixedDelta(t *testing.T) {
	f := newFixture(t)
	f.bindings.customerID = "cust-1"
	accountID := uuid.New()

	stale := f.seedBinding(t, accountID, qualpay.BillingCard{CardID: "card-1"}, "cust-1")
	f.seedBinding(t, accountID, qualpay.BillingCard{CardID: "card-2", ExpDate: "0425"}, "cust-1")
	f.vault.cards = []qualpay.BillingCard{
		{CardID: "card-2", ExpDate: "0430"},
		{CardID: "card-3", ExpDate: "0131"},
	}

	if err := f.svc.Refresh(context.Background(), f.tenant, accountID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.store.updated) != 1 || f.store.updated[0].QualpayID != "card-2" {
		t.Fatalf("expected one update for card-2, got %v", f.store.updated)
	}
	if len(f.hostAPI.added) != 1 || f.hostAPI.added[0] != "card-3" {
		t.Fatalf("expected host registration for card-3, got %v", f.hostAPI.added)
	}
	if len(f.hostAPI.deleted) != 1 || f.hostAPI.deleted[0] != stale.KBPaymentMethodID {
		t.Fatalf("expected host delete for card-1, got %v", f.hostAPI.deleted)
	}

	// Surviving rows settle before anything is deactivated.
	wantOps := []string{"update:card-2", "add:card-3", "delete:card-1"}
	if len(f.store.ops) != len(wantOps) {
		t.Fatalf("expected ops %v, got %v", wantOps, f.store.ops)
	}
	for i, op := range wantOps {
		if f.store.ops[i] != op {
			t.Fatalf("expected ops %v, got %v", wantOps, f.store.ops)
		}
	}

	methods, _ := f.store.ListPaymentMethods(context.Background(), f.tenant.ID, accountID)
	if len(methods) != 2 {
		t.Fatalf("expected two active bindings after refresh, got %d", len(methods))
	}
}

func TestRefreshListingFailureLeavesLocalUntouched(t *testing.T) {
	f := newFixture(t)
	f.bindings.customerID = "cust-1"
	f.vault.getErr = pkgerrors.New(pkgerrors.CodeRemote, "gateway returned 503: vault unavailable").
		WithDetails(map[string]any{"status": 503})
	accountID := uuid.New()

	f.seedBinding(t, accountID, qualpay.BillingCard{CardID: "card-1"}, "cust-1")

	err := f.svc.Refresh(context.Background(), f.tenant, accountID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeRemote) {
		t.Fatalf("expected remote error surfaced, got %v", err)
	}

	if len(f.store.ops) != 0 {
		t.Fatalf("expected no store writes on listing failure, got %v", f.store.ops)
	}
	if len(f.hostAPI.added) != 0 || len(f.hostAPI.deleted) != 0 {
		t.Fatal("expected no host callbacks on listing failure")
	}
	methods, _ := f.store.ListPaymentMethods(context.Background(), f.tenant.ID, accountID)
	if len(methods) != 1 {
		t.Fatalf("expected binding left active, got %d", len(methods))
	}
}

func TestRefreshDeactivatesCardsMissingFromVault(t *testing.T) {
	f := newFixture(t)
	f.bindings.customerID = "cust-1"
	f.vault.deleteErr = vaultNotFound()
	accountID := uuid.New()

	stale := f.seedBinding(t, accountID, qualpay.BillingCard{CardID: "card-gone"}, "cust-1")
	f.vault.cards = nil

	if err := f.svc.Refresh(context.Background(), f.tenant, accountID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.hostAPI.deleted) != 1 || f.hostAPI.deleted[0] != stale.KBPaymentMethodID {
		t.Fatalf("expected host delete for stale binding, got %v", f.hostAPI.deleted)
	}
	methods, _ := f.store.ListPaymentMethods(context.Background(), f.tenant.ID, accountID)
	if len(methods) != 0 {
		t.Fatalf("expected no active bindings, got %d", len(methods))
	}
}

func TestRefreshIdenticalSetsOnlyUpdates(t *testing.T) {
	f := newFixture(t)
	f.bindings.customerID = "cust-1"
	accountID := uuid.New()

	card := qualpay.BillingCard{CardID: "card-1", ExpDate: "0425"}
	f.seedBinding(t, accountID, card, "cust-1")
	f.vault.cards = []qualpay.BillingCard{card}

	if err := f.svc.Refresh(context.Background(), f.tenant, accountID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Matched cards are rewritten from the vault even when unchanged.
	if len(f.store.updated) != 1 {
		t.Fatalf("expected one update, got %d", len(f.store.updated))
	}
	if len(f.hostAPI.added) != 0 || len(f.hostAPI.deleted) != 0 {
		t.Fatal("expected no host callbacks")
	}
}

func TestRefreshCollapsesDuplicateCardIDs(t *testing.T) {
	f := newFixture(t)
	f.bindings.customerID = "cust-1"
	accountID := uuid.New()

	f.seedBinding(t, accountID, qualpay.BillingCard{CardID: "card-1", ExpDate: "0425"}, "cust-1")
	f.vault.cards = []qualpay.BillingCard{
		{CardID: "card-1", ExpDate: "0426"},
		{CardID: "card-1", ExpDate: "0427"},
	}

	if err := f.svc.Refresh(context.Background(), f.tenant, accountID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.store.updated) != 1 {
		t.Fatalf("expected one update, got %d", len(f.store.updated))
	}
	var card qualpay.BillingCard
	if err := json.Unmarshal(f.store.updated[0].AdditionalData, &card); err != nil {
		t.Fatalf("decoding updated metadata: %v", err)
	}
	if card.ExpDate != "0427" {
		t.Fatalf("expected last duplicate to win, got %s", card.ExpDate)
	}
	if len(f.hostAPI.added) != 0 {
		t.Fatalf("expected no registrations for duplicate ids, got %v", f.hostAPI.added)
	}
}

func TestRefreshRequiresBinding(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Refresh(context.Background(), f.tenant, uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeBindingMissing) {
		t.Fatalf("expected binding-missing error, got %v", err)
	}
	if f.vault.getCalls != 0 {
		t.Fatal("expected no vault listing without a binding")
	}
}

func TestRefreshSerializesPerAccount(t *testing.T) {
	f := newFixture(t)
	f.bindings.customerID = "cust-1"
	locker := &stubLocker{acquired: true}
	f.svc.locker = locker

	accountID := uuid.New()
	if err := f.svc.Refresh(context.Background(), f.tenant, accountID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(locker.locked) != 1 || len(locker.released) != 1 {
		t.Fatalf("expected lock acquired and released, got %v / %v", locker.locked, locker.released)
	}

	locker.acquired = false
	err := f.svc.Refresh(context.Background(), f.tenant, accountID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict when lock is held, got %v", err)
	}
}
