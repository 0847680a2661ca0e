package paymentmethods

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/openbilling/qualpay-bridge/internal/host"
	"github.com/openbilling/qualpay-bridge/pkg/db/models"
	pkgerrors "github.com/openbilling/qualpay-bridge/pkg/errors"
	"github.com/openbilling/qualpay-bridge/pkg/qualpay"
)

const refreshLockTTL = time.Minute

// Refresh reconciles the account's local bindings against the customer's
// vault cards. The vault wins every disagreement: matched cards get their
// metadata refreshed, unknown vault cards are registered through the host,
// and local cards the vault dropped are deactivated through the host.
func (s *Service) Refresh(ctx context.Context, tenant host.Tenant, accountID uuid.UUID) error {
	unlock, err := s.acquireRefreshLock(ctx, tenant.ID, accountID)
	if err != nil {
		return err
	}
	defer unlock()

	started := time.Now()
	if err := s.refresh(ctx, tenant, accountID); err != nil {
		s.syncMetrics.IncFailure(tenant.ID.String())
		return err
	}
	s.syncMetrics.ObserveDuration(tenant.ID.String(), time.Since(started))
	return nil
}

func (s *Service) refresh(ctx context.Context, tenant host.Tenant, accountID uuid.UUID) error {
	customerID, err := s.bindings.Require(ctx, accountID, tenant)
	if err != nil {
		return err
	}

	cfg, err := s.tenants.Get(tenant.ID.String())
	if err != nil {
		return err
	}

	remoteCards, err := s.vault.GetBillingCards(ctx, cfg.Credentials(), customerID, cfg.MerchantID)
	if err != nil {
		return err
	}

	local, err := s.store.ListPaymentMethods(ctx, tenant.ID, accountID)
	if err != nil {
		return err
	}

	localByCard := make(map[string]*models.PaymentMethod, len(local))
	for i := range local {
		localByCard[local[i].QualpayID] = &local[i]
	}

	// Duplicate card ids in the vault listing collapse to the last entry,
	// keeping the position of the first.
	order := make([]string, 0, len(remoteCards))
	remote := make(map[string]qualpay.BillingCard, len(remoteCards))
	for _, card := range remoteCards {
		if _, seen := remote[card.CardID]; !seen {
			order = append(order, card.CardID)
		}
		remote[card.CardID] = card
	}

	// Vault cards are walked in the order the gateway returned them, so
	// host registrations land in listing order. Deactivations wait until
	// every surviving row has been refreshed.
	var created, updated int
	for _, cardID := range order {
		card := remote[cardID]
		if method, ok := localByCard[cardID]; ok {
			delete(localByCard, cardID)
			if err := s.refreshBinding(ctx, method, card, customerID); err != nil {
				return err
			}
			updated++
			continue
		}

		properties := append(PropertiesFromCard(card), host.PluginProperty{Key: PropertySkipGateway, Value: "true"})
		if err := s.hostPayments.AddPaymentMethod(ctx, accountID, card.CardID, false, properties, tenant); err != nil {
			return err
		}
		s.logger.Info(s.logger.WithField(ctx, "card_id", card.CardID), "registered card discovered in vault")
		created++
	}

	var deactivated int
	for i := range local {
		method := &local[i]
		if _, stale := localByCard[method.QualpayID]; !stale {
			continue
		}
		if err := s.hostPayments.DeletePaymentMethod(ctx, method.KBPaymentMethodID, tenant); err != nil {
			return err
		}
		s.logger.Info(s.logger.WithField(ctx, "card_id", method.QualpayID), "deactivated card missing from vault")
		deactivated++
	}

	tenantLabel := tenant.ID.String()
	s.syncMetrics.AddCreated(tenantLabel, created)
	s.syncMetrics.AddUpdated(tenantLabel, updated)
	s.syncMetrics.AddDeactivated(tenantLabel, deactivated)

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"created":     created,
		"updated":     updated,
		"deactivated": deactivated,
	}), "vault refresh complete")
	return nil
}

// refreshBinding rewrites the stored card metadata from the vault's view.
// Matched rows are refreshed unconditionally; the vault is the source of
// truth even when nothing visibly changed. Keys in the bag the vault does
// not know about are carried over untouched.
func (s *Service) refreshBinding(ctx context.Context, method *models.PaymentMethod, card qualpay.BillingCard, customerID string) error {
	bag := make(map[string]string)
	if len(method.AdditionalData) > 0 {
		if err := json.Unmarshal(method.AdditionalData, &bag); err != nil {
			bag = make(map[string]string)
		}
	}
	for _, prop := range PropertiesFromCard(card) {
		bag[prop.Key] = prop.Value
	}

	additionalData, err := json.Marshal(bag)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding card metadata")
	}

	method.AdditionalData = additionalData
	method.QualpayCustomerID = &customerID
	return s.store.UpdatePaymentMethod(ctx, method)
}

// acquireRefreshLock serializes refreshes per account so concurrent callers
// do not double-register vault cards.
func (s *Service) acquireRefreshLock(ctx context.Context, tenantID, accountID uuid.UUID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}

	key := s.locker.LockKey("refresh", tenantID.String(), accountID.String())
	acquired, err := s.locker.SetNX(ctx, key, "1", refreshLockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "acquiring refresh lock")
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "refresh already in progress for account").
			WithDetails(map[string]any{"account_id": accountID.String()})
	}

	return func() {
		if err := s.locker.Del(context.WithoutCancel(ctx), key); err != nil {
			s.logger.Warn(s.logger.WithField(ctx, "lock_key", key), "releasing refresh lock failed")
		}
	}, nil
}
