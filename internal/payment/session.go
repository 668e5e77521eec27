package payment

// SessionRequest is the order description sent to the provider. Amounts are
// in minor units.
type SessionRequest struct {
	URL           SessionURLs   `json:"url"`
	Customer      Customer      `json:"customer"`
	Order         Order         `json:"order"`
	Configuration Configuration `json:"configuration"`
}

type SessionURLs struct {
	ReturnURL        string `json:"return_url"`
	CallbackURL      string `json:"callback_url"`
	MerchantTermsURL string `json:"merchant_terms_url"`
}

type Customer struct {
	CustomerID  string `json:"customer_id,omitempty"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

type Order struct {
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	VATAmount         int64  `json:"vat_amount"`
	MerchantReference string `json:"merchant_reference"`
	Items             []Item `json:"items"`
}

type Item struct {
	ID          string `json:"id"`
	LineID      string `json:"line_id"`
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
	Quantity    int    `json:"quantity"`
	VAT         int    `json:"vat"`
}

type Configuration struct {
	ActivePaymentTypes ActivePaymentTypes `json:"active_payment_types"`
}

type Toggle struct {
	Enabled bool `json:"enabled"`
}

type ActivePaymentTypes struct {
	Enabled    bool   `json:"enabled"`
	ApplePay   Toggle `json:"bambora.applepay"`
	CreditCard Toggle `json:"bambora.creditcard"`
}

// DefaultPaymentTypes enables card and Apple Pay.
func DefaultPaymentTypes() Configuration {
	return Configuration{ActivePaymentTypes: ActivePaymentTypes{
		Enabled:    true,
		ApplePay:   Toggle{Enabled: true},
		CreditCard: Toggle{Enabled: true},
	}}
}
