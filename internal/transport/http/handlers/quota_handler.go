package handlers

import (
	"context"
	"errors"
	"net/http"

	authsvc "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/services/auth"
	quotasvc "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/services/quotas"
	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/transport/http/dto"
	httperrors "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/transport/http/errors"
)

type QuotaHandler struct {
	quotas *quotasvc.Service
}

func NewQuotaHandler(quotas *quotasvc.Service) *QuotaHandler {
	return &QuotaHandler{quotas: quotas}
}

// Get returns the caller's remaining daily allowances.
func (h *QuotaHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.quotas == nil {
		writeInternal(w, "QUOTA_SERVICE_UNAVAILABLE", "quota service is unavailable")
		return
	}

	snapshot, err := h.quotas.Get(r.Context(), identity.UserID)
	if err != nil {
		switch {
		case errors.Is(err, quotasvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid quota request")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to load quota")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.QuotaResponse{
		Tier:             string(snapshot.Tier),
		ChatPassActive:   snapshot.ChatPassActive,
		ChatRemaining:    snapshot.ChatRemaining,
		PostRemaining:    snapshot.PostRemaining,
		OfferRemaining:   snapshot.OfferRemaining,
		SpotlightCredits: snapshot.SpotlightCredits,
		ResetsAt:         snapshot.ResetsAt,
	})
}

func (h *QuotaHandler) CheckChat(w http.ResponseWriter, r *http.Request) {
	h.check(w, r, h.quotas.CheckChat)
}

func (h *QuotaHandler) CheckPost(w http.ResponseWriter, r *http.Request) {
	h.check(w, r, h.quotas.CheckPost)
}

func (h *QuotaHandler) CheckOffer(w http.ResponseWriter, r *http.Request) {
	h.check(w, r, h.quotas.CheckOffer)
}

func (h *QuotaHandler) check(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, userID int64) (quotasvc.CheckResult, error)) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.quotas == nil {
		writeInternal(w, "QUOTA_SERVICE_UNAVAILABLE", "quota service is unavailable")
		return
	}

	result, err := fn(r.Context(), identity.UserID)
	if err != nil {
		switch {
		case errors.Is(err, quotasvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid quota check")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to check quota")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.QuotaCheckResponse{
		Allowed:   result.Allowed,
		Remaining: result.Remaining,
		IsPremium: result.IsPremium,
	})
}
