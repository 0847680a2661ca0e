package paymentmethods

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/openbilling/qualpay-bridge/pkg/db/models"
	pkgerrors "github.com/openbilling/qualpay-bridge/pkg/errors"
)

func setupRepoTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	paymentMethods := `
CREATE TABLE IF NOT EXISTS qualpay_payment_methods (
  record_id INTEGER PRIMARY KEY AUTOINCREMENT,
  kb_account_id TEXT NOT NULL,
  kb_payment_method_id TEXT NOT NULL,
  qualpay_id TEXT NOT NULL,
  qualpay_customer_id TEXT,
  additional_data TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  is_deleted INTEGER NOT NULL DEFAULT 0,
  kb_tenant_id TEXT NOT NULL
);`
	paymentMethodsIdx := `
CREATE UNIQUE INDEX IF NOT EXISTS uq_qualpay_payment_methods_kb_pm
  ON qualpay_payment_methods (kb_tenant_id, kb_payment_method_id)
  WHERE is_deleted = 0;`
	gatewayResponses := `
CREATE TABLE IF NOT EXISTS qualpay_responses (
  record_id INTEGER PRIMARY KEY AUTOINCREMENT,
  kb_account_id TEXT NOT NULL,
  kb_payment_id TEXT NOT NULL,
  kb_payment_transaction_id TEXT NOT NULL,
  transaction_type TEXT NOT NULL,
  amount NUMERIC,
  currency TEXT,
  qualpay_id TEXT,
  additional_data TEXT,
  created_at DATETIME,
  kb_tenant_id TEXT NOT NULL
);`

	require.NoError(t, db.Exec(paymentMethods).Error)
	require.NoError(t, db.Exec(paymentMethodsIdx).Error)
	require.NoError(t, db.Exec(gatewayResponses).Error)
	return db
}

func testMethod(tenantID, accountID uuid.UUID, cardID string) *models.PaymentMethod {
	data, _ := json.Marshal(map[string]string{"card_id": cardID})
	return &models.PaymentMethod{
		KBAccountID:       accountID,
		KBPaymentMethodID: uuid.New(),
		QualpayID:         cardID,
		AdditionalData:    data,
		KBTenantID:        tenantID,
	}
}

func TestRepoAddAndGetPaymentMethod(t *testing.T) {
	repo := NewRepo(setupRepoTestDB(t))
	tenantID := uuid.New()
	method := testMethod(tenantID, uuid.New(), "card-1")

	require.NoError(t, repo.AddPaymentMethod(context.Background(), method))
	require.NotZero(t, method.RecordID)

	got, err := repo.GetPaymentMethod(context.Background(), tenantID, method.KBPaymentMethodID)
	require.NoError(t, err)
	assert.Equal(t, "card-1", got.QualpayID)
	assert.Equal(t, method.KBAccountID, got.KBAccountID)
}

func TestRepoGetPaymentMethodScopedToTenant(t *testing.T) {
	repo := NewRepo(setupRepoTestDB(t))
	tenantID := uuid.New()
	method := testMethod(tenantID, uuid.New(), "card-1")
	require.NoError(t, repo.AddPaymentMethod(context.Background(), method))

	_, err := repo.GetPaymentMethod(context.Background(), uuid.New(), method.KBPaymentMethodID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestRepoListPaymentMethodsOrdersByInsertion(t *testing.T) {
	repo := NewRepo(setupRepoTestDB(t))
	tenantID := uuid.New()
	accountID := uuid.New()

	first := testMethod(tenantID, accountID, "card-1")
	second := testMethod(tenantID, accountID, "card-2")
	other := testMethod(tenantID, uuid.New(), "card-3")
	require.NoError(t, repo.AddPaymentMethod(context.Background(), first))
	require.NoError(t, repo.AddPaymentMethod(context.Background(), second))
	require.NoError(t, repo.AddPaymentMethod(context.Background(), other))

	methods, err := repo.ListPaymentMethods(context.Background(), tenantID, accountID)
	require.NoError(t, err)
	require.Len(t, methods, 2)
	assert.Equal(t, "card-1", methods[0].QualpayID)
	assert.Equal(t, "card-2", methods[1].QualpayID)
}

func TestRepoMarkPaymentMethodDeletedIdempotent(t *testing.T) {
	repo := NewRepo(setupRepoTestDB(t))
	tenantID := uuid.New()
	accountID := uuid.New()
	method := testMethod(tenantID, accountID, "card-1")
	require.NoError(t, repo.AddPaymentMethod(context.Background(), method))

	require.NoError(t, repo.MarkPaymentMethodDeleted(context.Background(), tenantID, method.KBPaymentMethodID))
	require.NoError(t, repo.MarkPaymentMethodDeleted(context.Background(), tenantID, method.KBPaymentMethodID))

	_, err := repo.GetPaymentMethod(context.Background(), tenantID, method.KBPaymentMethodID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	methods, err := repo.ListPaymentMethods(context.Background(), tenantID, accountID)
	require.NoError(t, err)
	assert.Empty(t, methods)
}

func TestRepoAddDuplicateActiveMethodConflicts(t *testing.T) {
	repo := NewRepo(setupRepoTestDB(t))
	tenantID := uuid.New()
	method := testMethod(tenantID, uuid.New(), "card-1")
	require.NoError(t, repo.AddPaymentMethod(context.Background(), method))

	dup := testMethod(tenantID, method.KBAccountID, "card-1")
	dup.KBPaymentMethodID = method.KBPaymentMethodID
	err := repo.AddPaymentMethod(context.Background(), dup)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict), "got %v", err)
}

func TestRepoReaddAfterDeleteAllowed(t *testing.T) {
	repo := NewRepo(setupRepoTestDB(t))
	tenantID := uuid.New()
	method := testMethod(tenantID, uuid.New(), "card-1")
	require.NoError(t, repo.AddPaymentMethod(context.Background(), method))
	require.NoError(t, repo.MarkPaymentMethodDeleted(context.Background(), tenantID, method.KBPaymentMethodID))

	again := testMethod(tenantID, method.KBAccountID, "card-1")
	again.KBPaymentMethodID = method.KBPaymentMethodID
	require.NoError(t, repo.AddPaymentMethod(context.Background(), again))
}

func TestRepoUpdatePaymentMethod(t *testing.T) {
	repo := NewRepo(setupRepoTestDB(t))
	tenantID := uuid.New()
	method := testMethod(tenantID, uuid.New(), "card-1")
	require.NoError(t, repo.AddPaymentMethod(context.Background(), method))

	customerID := "cust-7"
	method.QualpayCustomerID = &customerID
	method.AdditionalData = json.RawMessage(`{"card_id":"card-1","exp_date":"0430"}`)
	require.NoError(t, repo.UpdatePaymentMethod(context.Background(), method))

	got, err := repo.GetPaymentMethod(context.Background(), tenantID, method.KBPaymentMethodID)
	require.NoError(t, err)
	require.NotNil(t, got.QualpayCustomerID)
	assert.Equal(t, "cust-7", *got.QualpayCustomerID)
	assert.JSONEq(t, `{"card_id":"card-1","exp_date":"0430"}`, string(got.AdditionalData))
}

func TestRepoSaveResponse(t *testing.T) {
	repo := NewRepo(setupRepoTestDB(t))
	tenantID := uuid.New()

	cardID := "card-1"
	response := &models.GatewayResponse{
		KBAccountID:            uuid.New(),
		KBPaymentID:            uuid.New(),
		KBPaymentTransactionID: uuid.New(),
		TransactionType:        string(TransactionPurchase),
		Amount:                 decimal.RequireFromString("42.10"),
		Currency:               "USD",
		QualpayID:              &cardID,
		KBTenantID:             tenantID,
	}
	require.NoError(t, repo.SaveResponse(context.Background(), response))
	assert.NotZero(t, response.RecordID)
}
