// Package paymentmethods keeps the local card bindings in lockstep with the
// Qualpay customer vault and records gateway round-trips for host
// transactions.
package paymentmethods

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openbilling/qualpay-bridge/internal/host"
	"github.com/openbilling/qualpay-bridge/internal/tenantconfig"
	"github.com/openbilling/qualpay-bridge/pkg/db/models"
	pkgerrors "github.com/openbilling/qualpay-bridge/pkg/errors"
	"github.com/openbilling/qualpay-bridge/pkg/logger"
	"github.com/openbilling/qualpay-bridge/pkg/metrics"
	"github.com/openbilling/qualpay-bridge/pkg/qualpay"
)

// Store is the persistence surface the service needs.
type Store interface {
	AddPaymentMethod(ctx context.Context, method *models.PaymentMethod) error
	GetPaymentMethod(ctx context.Context, tenantID, kbPaymentMethodID uuid.UUID) (*models.PaymentMethod, error)
	ListPaymentMethods(ctx context.Context, tenantID, accountID uuid.UUID) ([]models.PaymentMethod, error)
	UpdatePaymentMethod(ctx context.Context, method *models.PaymentMethod) error
	MarkPaymentMethodDeleted(ctx context.Context, tenantID, kbPaymentMethodID uuid.UUID) error
	SaveResponse(ctx context.Context, response *models.GatewayResponse) error
}

// Vault is the gateway surface the service needs.
type Vault interface {
	AddCustomer(ctx context.Context, creds qualpay.Credentials, params qualpay.AddCustomerParams) (*qualpay.CustomerVault, error)
	AddBillingCard(ctx context.Context, creds qualpay.Credentials, customerID string, card qualpay.BillingCard) (*qualpay.CustomerVault, error)
	DeleteBillingCard(ctx context.Context, creds qualpay.Credentials, customerID string, params qualpay.DeleteBillingCardParams) error
	GetBillingCards(ctx context.Context, creds qualpay.Credentials, customerID string, merchantID int64) ([]qualpay.BillingCard, error)
}

// Bindings resolves and persists the account-to-customer mapping.
type Bindings interface {
	Resolve(ctx context.Context, accountID uuid.UUID, tenant host.Tenant) (string, error)
	Require(ctx context.Context, accountID uuid.UUID, tenant host.Tenant) (string, error)
	Persist(ctx context.Context, accountID uuid.UUID, customerID string, tenant host.Tenant) error
}

// TenantConfigs resolves gateway credentials per tenant.
type TenantConfigs interface {
	Get(tenantID string) (tenantconfig.Config, error)
}

// Locker serializes refresh runs per account.
type Locker interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(parts ...string) string
}

// Service implements the payment method plugin surface.
type Service struct {
	store        Store
	vault        Vault
	bindings     Bindings
	tenants      TenantConfigs
	hostPayments host.PaymentAPI
	locker       Locker
	syncMetrics  *metrics.VaultSyncMetrics
	logger       *logger.Logger
}

// NewService wires the service. locker and syncMetrics may be nil; refresh
// then runs unserialized and unmeasured.
func NewService(
	store Store,
	vault Vault,
	bindings Bindings,
	tenants TenantConfigs,
	hostPayments host.PaymentAPI,
	locker Locker,
	syncMetrics *metrics.VaultSyncMetrics,
	logg *logger.Logger,
) *Service {
	return &Service{
		store:        store,
		vault:        vault,
		bindings:     bindings,
		tenants:      tenants,
		hostPayments: hostPayments,
		locker:       locker,
		syncMetrics:  syncMetrics,
		logger:       logg,
	}
}

// AddPaymentMethod vaults the card for the account's customer and records the
// binding. When the account has no vault customer yet, one is created and its
// id persisted back onto the account before anything else happens.
func (s *Service) AddPaymentMethod(ctx context.Context, tenant host.Tenant, params AddPaymentMethodParams) (*models.PaymentMethod, error) {
	externalID := strings.TrimSpace(params.ExternalPaymentMethodID)
	if externalID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external payment method id must be passed")
	}

	ctx = s.logger.WithAccountID(s.logger.WithTenantID(ctx, tenant.ID.String()), params.AccountID.String())

	card := params.Card
	if card.CardID == "" {
		card = CardFromProperties(params.Properties)
	}
	card.CardID = externalID

	customerID := ""
	if !SkipGateway(params.Properties) {
		vaulted, resolvedCustomer, err := s.vaultCard(ctx, tenant, params.AccountID, card)
		if err != nil {
			return nil, err
		}
		customerID = resolvedCustomer
		if vaulted != nil {
			card = *vaulted
		}
	} else if resolved, err := s.bindings.Resolve(ctx, params.AccountID, tenant); err == nil {
		customerID = resolved
	}

	additionalData, err := json.Marshal(MetadataFromProperties(params.Properties, card))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding card metadata")
	}

	method := &models.PaymentMethod{
		KBAccountID:       params.AccountID,
		KBPaymentMethodID: params.KBPaymentMethodID,
		QualpayID:         externalID,
		AdditionalData:    additionalData,
		KBTenantID:        tenant.ID,
	}
	if customerID != "" {
		method.QualpayCustomerID = &customerID
	}

	if err := s.store.AddPaymentMethod(ctx, method); err != nil {
		return nil, err
	}

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"kb_payment_method_id": params.KBPaymentMethodID.String(),
		"card_id":              externalID,
	}), "payment method added")
	return method, nil
}

// vaultCard makes sure the account has a vault customer holding the card.
// Returns the vault's view of the card when available.
func (s *Service) vaultCard(ctx context.Context, tenant host.Tenant, accountID uuid.UUID, card qualpay.BillingCard) (*qualpay.BillingCard, string, error) {
	cfg, err := s.tenants.Get(tenant.ID.String())
	if err != nil {
		return nil, "", err
	}
	creds := cfg.Credentials()

	customerID, err := s.bindings.Resolve(ctx, accountID, tenant)
	if err != nil {
		return nil, "", err
	}

	var vault *qualpay.CustomerVault
	if customerID == "" {
		vault, err = s.vault.AddCustomer(ctx, creds, qualpay.AddCustomerParams{
			AutoGenerateCustomerID: true,
			BillingCards:           []qualpay.BillingCard{card},
		})
		if err != nil {
			return nil, "", err
		}
		customerID = vault.CustomerID
		if err := s.bindings.Persist(ctx, accountID, customerID, tenant); err != nil {
			return nil, "", err
		}
	} else {
		vault, err = s.vault.AddBillingCard(ctx, creds, customerID, card)
		if err != nil {
			return nil, "", err
		}
	}

	for i := range vault.BillingCards {
		if vault.BillingCards[i].CardID == card.CardID {
			return &vault.BillingCards[i], customerID, nil
		}
	}
	return nil, customerID, nil
}

// DeletePaymentMethod removes the card from the vault and soft deletes the
// binding. A card the vault no longer knows still gets deactivated locally.
func (s *Service) DeletePaymentMethod(ctx context.Context, tenant host.Tenant, kbPaymentMethodID uuid.UUID, properties []host.PluginProperty) error {
	ctx = s.logger.WithTenantID(ctx, tenant.ID.String())

	method, err := s.store.GetPaymentMethod(ctx, tenant.ID, kbPaymentMethodID)
	if err != nil {
		return err
	}

	if !SkipGateway(properties) {
		cfg, err := s.tenants.Get(tenant.ID.String())
		if err != nil {
			return err
		}

		customerID := ""
		if method.QualpayCustomerID != nil {
			customerID = *method.QualpayCustomerID
		}
		if customerID == "" {
			customerID, err = s.bindings.Require(ctx, method.KBAccountID, tenant)
			if err != nil {
				return err
			}
		}

		err = s.vault.DeleteBillingCard(ctx, cfg.Credentials(), customerID, qualpay.DeleteBillingCardParams{
			CardID:     method.QualpayID,
			MerchantID: cfg.MerchantID,
		})
		if err != nil && !qualpay.IsNotFound(err) {
			return err
		}
		if err != nil {
			s.logger.Warn(s.logger.WithField(ctx, "card_id", method.QualpayID), "card already absent from vault")
		}
	}

	if err := s.store.MarkPaymentMethodDeleted(ctx, tenant.ID, kbPaymentMethodID); err != nil {
		return err
	}

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"kb_payment_method_id": kbPaymentMethodID.String(),
		"card_id":              method.QualpayID,
	}), "payment method deleted")
	return nil
}

// GetPaymentMethodDetail returns one active binding.
func (s *Service) GetPaymentMethodDetail(ctx context.Context, tenant host.Tenant, kbPaymentMethodID uuid.UUID) (*models.PaymentMethod, error) {
	return s.store.GetPaymentMethod(ctx, tenant.ID, kbPaymentMethodID)
}

// GetPaymentMethods lists the account's active bindings. With refresh set the
// vault is reconciled first, so the listing reflects remote reality.
func (s *Service) GetPaymentMethods(ctx context.Context, tenant host.Tenant, accountID uuid.UUID, refresh bool) ([]models.PaymentMethod, error) {
	ctx = s.logger.WithAccountID(s.logger.WithTenantID(ctx, tenant.ID.String()), accountID.String())

	if refresh {
		if err := s.Refresh(ctx, tenant, accountID); err != nil {
			return nil, err
		}
	}
	return s.store.ListPaymentMethods(ctx, tenant.ID, accountID)
}
