// Package killbill implements the host API against the Kill Bill REST
// endpoints. All calls run under the bridge's server credentials plus the
// tenant's api key/secret headers.
package killbill

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openbilling/qualpay-bridge/internal/host"
	"github.com/openbilling/qualpay-bridge/pkg/config"
	pkgerrors "github.com/openbilling/qualpay-bridge/pkg/errors"
	"github.com/openbilling/qualpay-bridge/pkg/logger"
)

// PluginName is the payment plugin the host routes back into the bridge.
const PluginName = "qualpay-bridge"

const (
	headerAPIKey    = "X-Killbill-ApiKey"
	headerAPISecret = "X-Killbill-ApiSecret"
	headerCreatedBy = "X-Killbill-CreatedBy"
)

var (
	errBaseURLRequired = errors.New("killbill base url is required")
	errLoggerRequired  = errors.New("killbill logger is required")
)

// Client talks to the Kill Bill core REST API.
type Client struct {
	baseURL   string
	username  string
	password  string
	createdBy string
	http      *http.Client
	logger    *logger.Logger
}

var _ host.API = (*Client)(nil)

// NewClient builds the host client from configuration.
func NewClient(ctx context.Context, cfg config.KillbillConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	trimmed := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL:   trimmed,
		username:  cfg.Username,
		password:  cfg.Password,
		createdBy: cfg.CreatedBy,
		http:      &http.Client{Timeout: timeout},
		logger:    logg,
	}
	logg.Info(ctx, "killbill client initialized")
	return c, nil
}

type customFieldPayload struct {
	ObjectType string `json:"objectType,omitempty"`
	Name       string `json:"name"`
	Value      string `json:"value"`
}

// ListAccountCustomFields returns the account's custom fields.
func (c *Client) ListAccountCustomFields(ctx context.Context, accountID uuid.UUID, tenant host.Tenant) ([]host.CustomField, error) {
	path := fmt.Sprintf("/1.0/kb/accounts/%s/customFields", accountID)

	var payload []customFieldPayload
	if err := c.do(ctx, tenant, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}

	fields := make([]host.CustomField, 0, len(payload))
	for _, field := range payload {
		fields = append(fields, host.CustomField{Name: field.Name, Value: field.Value})
	}
	return fields, nil
}

// AddAccountCustomField attaches one custom field to the account.
func (c *Client) AddAccountCustomField(ctx context.Context, accountID uuid.UUID, field host.CustomField, tenant host.Tenant) error {
	path := fmt.Sprintf("/1.0/kb/accounts/%s/customFields", accountID)
	body := []customFieldPayload{{
		ObjectType: "ACCOUNT",
		Name:       field.Name,
		Value:      field.Value,
	}}
	return c.do(ctx, tenant, http.MethodPost, path, body, nil)
}

type pluginInfoPayload struct {
	ExternalPaymentMethodID string                `json:"externalPaymentMethodId,omitempty"`
	Properties              []host.PluginProperty `json:"properties,omitempty"`
}

type paymentMethodPayload struct {
	PluginName string            `json:"pluginName"`
	PluginInfo pluginInfoPayload `json:"pluginInfo"`
}

// AddPaymentMethod registers a payment method on the host, which calls back
// into the bridge's add path with the same external id and properties.
func (c *Client) AddPaymentMethod(ctx context.Context, accountID uuid.UUID, externalPaymentMethodID string, setDefault bool, properties []host.PluginProperty, tenant host.Tenant) error {
	path := fmt.Sprintf("/1.0/kb/accounts/%s/paymentMethods?isDefault=%t", accountID, setDefault)
	body := paymentMethodPayload{
		PluginName: PluginName,
		PluginInfo: pluginInfoPayload{
			ExternalPaymentMethodID: externalPaymentMethodID,
			Properties:              properties,
		},
	}
	return c.do(ctx, tenant, http.MethodPost, path, body, nil)
}

// DeletePaymentMethod removes a payment method on the host, which calls back
// into the bridge's delete path.
func (c *Client) DeletePaymentMethod(ctx context.Context, paymentMethodID uuid.UUID, tenant host.Tenant) error {
	path := fmt.Sprintf("/1.0/kb/paymentMethods/%s", paymentMethodID)
	return c.do(ctx, tenant, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, tenant host.Tenant, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal host request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build host request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set(headerAPIKey, tenant.APIKey)
	req.Header.Set(headerAPISecret, tenant.APISecret)
	req.Header.Set(headerCreatedBy, c.createdBy)

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeRemote, err, "host request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeRemote, err, "read host response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn(c.logger.WithFields(ctx, map[string]any{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		}), "host call rejected")
		return pkgerrors.New(pkgerrors.CodeRemote, fmt.Sprintf("host returned %d on %s %s", resp.StatusCode, method, path)).
			WithDetails(map[string]any{"status": resp.StatusCode})
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeRemote, err, "decode host response")
	}
	return nil
}
