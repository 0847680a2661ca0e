package qualpay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/openbilling/qualpay-bridge/pkg/errors"
	"github.com/openbilling/qualpay-bridge/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func testCreds() Credentials {
	return Credentials{APIKey: "sek_test", MerchantID: 212000}
}

func TestClientAuthenticatesWithAPIKey(t *testing.T) {
	var gotUser, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _, _ = r.BasicAuth()
		gotAgent = r.Header.Get("User-Agent")
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{"customer_id": "cust-1"},
		})
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), server.URL, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	vault, err := client.AddCustomer(context.Background(), testCreds(), AddCustomerParams{AutoGenerateCustomerID: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotUser != "sek_test" {
		t.Fatalf("expected api key as basic-auth user, got %q", gotUser)
	}
	if gotAgent != "sek_test" {
		t.Fatalf("expected api key echoed as user agent, got %q", gotAgent)
	}
	if vault.CustomerID != "cust-1" {
		t.Fatalf("expected customer id decoded from envelope, got %q", vault.CustomerID)
	}
}

func TestClientRequiresAPIKey(t *testing.T) {
	client, err := NewClient(context.Background(), "https://api-test.example.com", testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = client.AddCustomer(context.Background(), Credentials{}, AddCustomerParams{})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConfigMissing) {
		t.Fatalf("expected config-missing error, got %v", err)
	}
}

func TestClientGetBillingCardsSendsMerchantID(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{
				"billing_cards": []map[string]any{
					{"card_id": "card-1", "card_number": "411111xxxxxx1111"},
				},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), server.URL, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cards, err := client.GetBillingCards(context.Background(), testCreds(), "cust-1", 212000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/platform/vault/customer/cust-1/billing" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotQuery != "merchant_id=212000" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if len(cards) != 1 || cards[0].CardID != "card-1" {
		t.Fatalf("unexpected cards %v", cards)
	}
	if got := cards[0].Last4(); got != "1111" {
		t.Fatalf("expected last4 1111, got %q", got)
	}
}

func TestClientMapsGatewayRejections(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"code": 12, "message": "customer not found"})
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), server.URL, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = client.DeleteBillingCard(context.Background(), testCreds(), "cust-unknown", DeleteBillingCardParams{CardID: "card-1"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}
	if !IsNotFound(err) {
		t.Fatalf("expected 404 detection, got %v", err)
	}
}

func TestClientMapsAuthAndRateLimitStatuses(t *testing.T) {
	cases := []struct {
		status int
		want   pkgerrors.Code
	}{
		{http.StatusUnauthorized, pkgerrors.CodeUnauthorized},
		{http.StatusForbidden, pkgerrors.CodeForbidden},
		{http.StatusTooManyRequests, pkgerrors.CodeRateLimit},
	}

	for _, tc := range cases {
		status := tc.status
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]any{"code": 9, "message": "rejected"})
		}))

		client, err := NewClient(context.Background(), server.URL, testLogger())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		err = client.DeleteBillingCard(context.Background(), testCreds(), "cust-1", DeleteBillingCardParams{CardID: "card-1"})
		if !pkgerrors.HasCode(err, tc.want) {
			t.Fatalf("status %d: expected %s, got %v", tc.status, tc.want, err)
		}
		if IsNotFound(err) {
			t.Fatalf("status %d: must not read as missing record", tc.status)
		}
		server.Close()
	}
}

func TestClientRejectsEmptyCustomerID(t *testing.T) {
	client, err := NewClient(context.Background(), "https://api-test.example.com", testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := client.GetBillingCards(context.Background(), testCreds(), "  ", 0); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
