package model

import (
	"time"

	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/domain/enums"
)

type Purchase struct {
	ID               int64                `json:"id"`
	UserID           int64                `json:"user_id"`
	Type             enums.PurchaseType   `json:"type"`
	AmountMinorUnits int64                `json:"amount_minor_units"`
	Currency         string               `json:"currency"`
	ListingID        *int64               `json:"listing_id,omitempty"`
	Reference        string               `json:"reference"`
	Status           enums.PurchaseStatus `json:"status"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}
