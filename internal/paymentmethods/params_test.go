package paymentmethods

import (
	"testing"

	"github.com/openbilling/qualpay-bridge/internal/host"
	"github.com/openbilling/qualpay-bridge/pkg/qualpay"
)

func TestSkipGateway(t *testing.T) {
	cases := []struct {
		name       string
		properties []host.PluginProperty
		want       bool
	}{
		{name: "absent", properties: nil, want: false},
		{name: "snake case true", properties: []host.PluginProperty{{Key: "skip_gw", Value: "true"}}, want: true},
		{name: "camel case true", properties: []host.PluginProperty{{Key: "skipGw", Value: "TRUE"}}, want: true},
		{name: "bare flag", properties: []host.PluginProperty{{Key: "skip_gw"}}, want: true},
		{name: "numeric", properties: []host.PluginProperty{{Key: "skip_gw", Value: "1"}}, want: true},
		{name: "explicit false", properties: []host.PluginProperty{{Key: "skip_gw", Value: "false"}}, want: false},
		{name: "unrelated key", properties: []host.PluginProperty{{Key: "card_id", Value: "true"}}, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SkipGateway(tc.properties); got != tc.want {
				t.Fatalf("SkipGateway(%v) = %v, want %v", tc.properties, got, tc.want)
			}
		})
	}
}

func TestCardPropertiesRoundTrip(t *testing.T) {
	card := qualpay.BillingCard{
		CardID:           "card-1",
		CardType:         "VS",
		CardNumber:       "411111xxxxxx1111",
		ExpDate:          "0430",
		BillingFirstName: "Ada",
		BillingLastName:  "Lovelace",
		BillingZip:       "94107",
	}

	got := CardFromProperties(PropertiesFromCard(card))
	if got != card {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, card)
	}
}

func TestPropertiesFromCardOmitsEmptyFields(t *testing.T) {
	properties := PropertiesFromCard(qualpay.BillingCard{CardID: "card-1"})
	if len(properties) != 1 {
		t.Fatalf("expected single property, got %v", properties)
	}
	if properties[0].Key != "card_id" || properties[0].Value != "card-1" {
		t.Fatalf("unexpected property %v", properties[0])
	}
}
