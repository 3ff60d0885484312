package dto

import "time"

type PurchaseInitializeRequest struct {
	Type      string `json:"type"`
	ListingID *int64 `json:"listing_id,omitempty"`
	Currency  string `json:"currency"`
}

type PurchaseInitializeResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
}

type PurchaseVerifyRequest struct {
	Reference string `json:"reference"`
}

type PurchaseVerifyResponse struct {
	Success    bool            `json:"success"`
	Status     string          `json:"status"`
	Message    string          `json:"message"`
	Activation *ActivationData `json:"activation,omitempty"`
}

type ActivationData struct {
	Success   bool               `json:"success"`
	Message   string             `json:"message"`
	Spotlight *SpotlightResponse `json:"spotlight,omitempty"`
	CrossList *CrossListData     `json:"cross_list,omitempty"`
	Boost     *BoostData         `json:"boost,omitempty"`
	Premium   *PremiumData       `json:"premium,omitempty"`
}

type CrossListData struct {
	ListingID int64 `json:"listing_id"`
}

type BoostData struct {
	ListingID     int64 `json:"listing_id"`
	NotifiedCount int   `json:"notified_count"`
}

type PremiumData struct {
	ExpiresAt      time.Time `json:"expires_at"`
	CreditsGranted int       `json:"credits_granted"`
}

type PurchaseItem struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	ListingID *int64    `json:"listing_id,omitempty"`
	Reference string    `json:"reference"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type PurchaseListResponse struct {
	Purchases []PurchaseItem `json:"purchases"`
}
