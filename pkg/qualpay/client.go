package qualpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/openbilling/qualpay-bridge/pkg/errors"
	"github.com/openbilling/qualpay-bridge/pkg/logger"
)

const vaultBasePath = "/platform/vault/customer"

var (
	errBaseURLRequired = errors.New("qualpay base url is required")
	errLoggerRequired  = errors.New("qualpay logger is required")
	errAPIKeyRequired  = pkgerrors.New(pkgerrors.CodeConfigMissing, "qualpay api key is required")
)

// Client exposes the Customer Vault primitives with centralized auth,
// logging, and error mapping. Credentials travel per call because every
// tenant authenticates with its own key.
type Client struct {
	baseURL string
	logger  *logger.Logger
}

// NewClient initializes the vault wrapper against the configured endpoint.
func NewClient(ctx context.Context, baseURL string, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	c := &Client{baseURL: trimmed, logger: logg}
	logg.Info(ctx, "qualpay client initialized")
	return c, nil
}

// BaseURL reports the configured gateway endpoint.
func (c *Client) BaseURL() string {
	if c == nil {
		return ""
	}
	return c.baseURL
}

// AddCustomer creates a vault customer, letting the gateway mint the id.
func (c *Client) AddCustomer(ctx context.Context, creds Credentials, params AddCustomerParams) (*CustomerVault, error) {
	c.log(ctx, "request", "add_customer", map[string]any{
		"auto_generate_customer_id": params.AutoGenerateCustomerID,
		"billing_cards":             len(params.BillingCards),
	})

	var vault CustomerVault
	if err := c.do(ctx, creds, http.MethodPost, vaultBasePath, params, &vault); err != nil {
		c.log(ctx, "error", "add_customer", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "add_customer", map[string]any{"customer_id": vault.CustomerID})
	return &vault, nil
}

// AddBillingCard attaches a card to an existing vault customer.
func (c *Client) AddBillingCard(ctx context.Context, creds Credentials, customerID string, card BillingCard) (*CustomerVault, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	c.log(ctx, "request", "add_billing_card", map[string]any{"customer_id": customerID})

	path := fmt.Sprintf("%s/%s/billing", vaultBasePath, customerID)
	var vault CustomerVault
	if err := c.do(ctx, creds, http.MethodPost, path, card, &vault); err != nil {
		c.log(ctx, "error", "add_billing_card", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "add_billing_card", map[string]any{
		"customer_id":   vault.CustomerID,
		"billing_cards": len(vault.BillingCards),
	})
	return &vault, nil
}

// DeleteBillingCard removes a card from the customer's vault.
func (c *Client) DeleteBillingCard(ctx context.Context, creds Credentials, customerID string, params DeleteBillingCardParams) error {
	if strings.TrimSpace(customerID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	c.log(ctx, "request", "delete_billing_card", map[string]any{"customer_id": customerID, "card_id": params.CardID})

	path := fmt.Sprintf("%s/%s/billing/delete", vaultBasePath, customerID)
	if err := c.do(ctx, creds, http.MethodPut, path, params, nil); err != nil {
		c.log(ctx, "error", "delete_billing_card", map[string]any{"error": err.Error()})
		return err
	}

	c.log(ctx, "response", "delete_billing_card", map[string]any{"customer_id": customerID})
	return nil
}

// GetBillingCards lists the customer's vaulted cards. The vault is the
// source of truth for membership and metadata.
func (c *Client) GetBillingCards(ctx context.Context, creds Credentials, customerID string, merchantID int64) ([]BillingCard, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	c.log(ctx, "request", "get_billing_cards", map[string]any{"customer_id": customerID})

	path := fmt.Sprintf("%s/%s/billing?merchant_id=%d", vaultBasePath, customerID, merchantID)
	var data getBillingCardsData
	if err := c.do(ctx, creds, http.MethodGet, path, nil, &data); err != nil {
		c.log(ctx, "error", "get_billing_cards", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "get_billing_cards", map[string]any{
		"customer_id":   customerID,
		"billing_cards": len(data.BillingCards),
	})
	return data.BillingCards, nil
}

// apiEnvelope is the gateway's standard response wrapper.
type apiEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, creds Credentials, method, path string, body any, out any) error {
	apiKey := strings.TrimSpace(creds.APIKey)
	if apiKey == "" {
		return errAPIKeyRequired
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal gateway request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	// The gateway authenticates with the security key as the basic-auth
	// user and expects it echoed as the user agent.
	req.SetBasicAuth(apiKey, "")
	req.Header.Set("User-Agent", apiKey)

	resp, err := httpClientFor(creds).Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeRemote, err, "gateway request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeRemote, err, "read gateway response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return remoteError(resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeRemote, err, "decode gateway response")
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeRemote, err, "decode gateway payload")
	}
	return nil
}

func httpClientFor(creds Credentials) *http.Client {
	connect := creds.ConnectTimeout
	if connect <= 0 {
		connect = 10 * time.Second
	}
	read := creds.ReadTimeout
	if read <= 0 {
		read = 30 * time.Second
	}
	return &http.Client{
		Timeout: read,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: connect}).DialContext,
		},
	}
}

func remoteError(status int, body []byte) error {
	message := "gateway error"
	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message != "" {
		message = envelope.Message
	}
	code := pkgerrors.CodeRemote
	switch status {
	case http.StatusUnauthorized:
		code = pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		code = pkgerrors.CodeForbidden
	case http.StatusTooManyRequests:
		code = pkgerrors.CodeRateLimit
	}
	return pkgerrors.New(code, fmt.Sprintf("gateway returned %d: %s", status, message)).
		WithDetails(map[string]any{"status": status})
}

// IsNotFound reports whether err is a gateway rejection with HTTP 404.
// Callers reconciling against the vault treat missing records as already
// gone.
func IsNotFound(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeRemote {
		return false
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return false
	}
	status, ok := details["status"].(int)
	return ok && status == http.StatusNotFound
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("qualpay %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("qualpay %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card_number", "number", "cvv", "cvv2", "key", "secret", "token"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
