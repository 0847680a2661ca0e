package paymentmethods

import (
	"strings"

	"github.com/google/uuid"

	"github.com/openbilling/qualpay-bridge/internal/host"
	"github.com/openbilling/qualpay-bridge/pkg/qualpay"
)

// Plugin property keys understood by the add/delete paths. skip_gw tells the
// bridge the card is already vaulted, so no gateway call is needed.
const (
	PropertySkipGateway      = "skip_gw"
	PropertySkipGatewayAlias = "skipGw"

	propertyCardID    = "card_id"
	propertyCardType  = "card_type"
	propertyExpDate   = "exp_date"
	propertyMaskedPAN = "card_number"
	propertyFirstName = "billing_first_name"
	propertyLastName  = "billing_last_name"
	propertyAddr1     = "billing_addr1"
	propertyCity      = "billing_city"
	propertyState     = "billing_state"
	propertyZip       = "billing_zip"
	propertyCountry   = "billing_country"
)

// AddPaymentMethodParams carries one add request through the service.
type AddPaymentMethodParams struct {
	AccountID               uuid.UUID
	KBPaymentMethodID       uuid.UUID
	ExternalPaymentMethodID string
	SetDefault              bool
	Card                    qualpay.BillingCard
	Properties              []host.PluginProperty
}

// SkipGateway reports whether the property list disables gateway calls.
func SkipGateway(properties []host.PluginProperty) bool {
	for _, prop := range properties {
		if prop.Key != PropertySkipGateway && prop.Key != PropertySkipGatewayAlias {
			continue
		}
		value := strings.ToLower(strings.TrimSpace(prop.Value))
		return value == "" || value == "true" || value == "1"
	}
	return false
}

// CardFromProperties rebuilds the billing card from the host property list.
func CardFromProperties(properties []host.PluginProperty) qualpay.BillingCard {
	var card qualpay.BillingCard
	for _, prop := range properties {
		switch prop.Key {
		case propertyCardID:
			card.CardID = prop.Value
		case propertyCardType:
			card.CardType = prop.Value
		case propertyMaskedPAN:
			card.CardNumber = prop.Value
		case propertyExpDate:
			card.ExpDate = prop.Value
		case propertyFirstName:
			card.BillingFirstName = prop.Value
		case propertyLastName:
			card.BillingLastName = prop.Value
		case propertyAddr1:
			card.BillingAddr1 = prop.Value
		case propertyCity:
			card.BillingCity = prop.Value
		case propertyState:
			card.BillingState = prop.Value
		case propertyZip:
			card.BillingZip = prop.Value
		case propertyCountry:
			card.BillingCountry = prop.Value
		}
	}
	return card
}

// MetadataFromProperties folds the host property list into the stored
// metadata bag. Every supplied key survives verbatim, known card fields are
// then overlaid from the card so the vault's view of them wins.
func MetadataFromProperties(properties []host.PluginProperty, card qualpay.BillingCard) map[string]string {
	bag := make(map[string]string, len(properties))
	for _, prop := range properties {
		bag[prop.Key] = prop.Value
	}
	for _, prop := range PropertiesFromCard(card) {
		bag[prop.Key] = prop.Value
	}
	return bag
}

// PropertiesFromCard flattens a vault card into host plugin properties.
func PropertiesFromCard(card qualpay.BillingCard) []host.PluginProperty {
	pairs := []struct {
		key   string
		value string
	}{
		{propertyCardID, card.CardID},
		{propertyCardType, card.CardType},
		{propertyMaskedPAN, card.CardNumber},
		{propertyExpDate, card.ExpDate},
		{propertyFirstName, card.BillingFirstName},
		{propertyLastName, card.BillingLastName},
		{propertyAddr1, card.BillingAddr1},
		{propertyCity, card.BillingCity},
		{propertyState, card.BillingState},
		{propertyZip, card.BillingZip},
		{propertyCountry, card.BillingCountry},
	}

	properties := make([]host.PluginProperty, 0, len(pairs))
	for _, pair := range pairs {
		if pair.value == "" {
			continue
		}
		properties = append(properties, host.PluginProperty{Key: pair.key, Value: pair.value})
	}
	return properties
}
