package dto

import "time"

type SpotlightUseRequest struct {
	ListingID int64 `json:"listing_id"`
}

type SpotlightResponse struct {
	ListingID int64     `json:"listing_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SpotlightUseResponse struct {
	Message   string             `json:"message"`
	Spotlight *SpotlightResponse `json:"spotlight,omitempty"`
}
