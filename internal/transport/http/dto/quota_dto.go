package dto

import "time"

type QuotaResponse struct {
	Tier             string    `json:"tier"`
	ChatPassActive   bool      `json:"chat_pass_active"`
	ChatRemaining    int       `json:"chat_remaining"`
	PostRemaining    int       `json:"post_remaining"`
	OfferRemaining   int       `json:"offer_remaining"`
	SpotlightCredits int       `json:"spotlight_credits"`
	ResetsAt         time.Time `json:"resets_at"`
}

type QuotaCheckResponse struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
	IsPremium bool `json:"is_premium"`
}
