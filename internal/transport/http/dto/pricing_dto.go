package dto

type PricingResponse struct {
	Version    string        `json:"version"`
	Currencies []string      `json:"currencies"`
	Items      []PricingItem `json:"items"`
}

type PricingItem struct {
	Type string `json:"type"`
	// Amounts are minor units keyed by currency code.
	Amounts        map[string]int64 `json:"amounts"`
	PremiumAmounts map[string]int64 `json:"premium_amounts,omitempty"`
}
