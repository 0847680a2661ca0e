package qualpay

import "time"

// Credentials carries the per-tenant gateway configuration each call runs
// with. The API key doubles as the basic-auth user and the user agent.
type Credentials struct {
	APIKey         string
	MerchantID     int64
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// BillingCard mirrors the vault's card representation. card_number is always
// masked by the gateway; the raw PAN never crosses this boundary.
type BillingCard struct {
	CardID           string `json:"card_id,omitempty"`
	CardType         string `json:"card_type,omitempty"`
	CardNumber       string `json:"card_number,omitempty"`
	ExpDate          string `json:"exp_date,omitempty"`
	BillingFirstName string `json:"billing_first_name,omitempty"`
	BillingLastName  string `json:"billing_last_name,omitempty"`
	BillingAddr1     string `json:"billing_addr1,omitempty"`
	BillingCity      string `json:"billing_city,omitempty"`
	BillingState     string `json:"billing_state,omitempty"`
	BillingZip       string `json:"billing_zip,omitempty"`
	BillingCountry   string `json:"billing_country,omitempty"`
}

// Last4 returns the trailing four digits of the masked card number.
func (b BillingCard) Last4() string {
	if len(b.CardNumber) < 4 {
		return b.CardNumber
	}
	return b.CardNumber[len(b.CardNumber)-4:]
}

// CustomerVault is the customer record the vault returns on mutations.
type CustomerVault struct {
	CustomerID   string        `json:"customer_id,omitempty"`
	MerchantID   int64         `json:"merchant_id,omitempty"`
	BillingCards []BillingCard `json:"billing_cards,omitempty"`
}

// AddCustomerParams creates a vault customer, optionally with initial cards.
type AddCustomerParams struct {
	AutoGenerateCustomerID bool          `json:"auto_generate_customer_id"`
	CustomerID             string        `json:"customer_id,omitempty"`
	BillingCards           []BillingCard `json:"billing_cards,omitempty"`
}

// DeleteBillingCardParams identifies the card to remove from a customer.
type DeleteBillingCardParams struct {
	CardID     string `json:"card_id"`
	MerchantID int64  `json:"merchant_id,omitempty"`
}

type getBillingCardsData struct {
	BillingCards []BillingCard `json:"billing_cards"`
}
