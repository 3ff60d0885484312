package handlers

import (
	"errors"
	"net/http"

	activationsvc "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/services/activation"
	authsvc "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/services/auth"
	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/transport/http/dto"
	httperrors "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/transport/http/errors"
)

type SpotlightHandler struct {
	activation *activationsvc.Service
}

func NewSpotlightHandler(activation *activationsvc.Service) *SpotlightHandler {
	return &SpotlightHandler{activation: activation}
}

// Use spends one premium spotlight credit on a listing.
func (h *SpotlightHandler) Use(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.activation == nil {
		writeInternal(w, "ACTIVATION_SERVICE_UNAVAILABLE", "activation service is unavailable")
		return
	}

	var req dto.SpotlightUseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	result, err := h.activation.UseSpotlightCredit(r.Context(), identity.UserID, req.ListingID)
	if err != nil {
		switch {
		case errors.Is(err, activationsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid spotlight payload")
		case errors.Is(err, activationsvc.ErrListingNotFound):
			writeNotFound(w, "LISTING_NOT_FOUND", "listing not found")
		case errors.Is(err, activationsvc.ErrNotPremium):
			httperrors.Write(w, http.StatusForbidden, httperrors.APIError{
				Code:    "NOT_PREMIUM",
				Message: "spotlight credits require a premium subscription",
			})
		case errors.Is(err, activationsvc.ErrNoCreditsRemaining):
			httperrors.Write(w, http.StatusConflict, httperrors.APIError{
				Code:    "NO_CREDITS",
				Message: "no spotlight credits remaining",
			})
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to use spotlight credit")
		}
		return
	}

	resp := dto.SpotlightUseResponse{Message: result.Message}
	if result.Data != nil && result.Data.Spotlight != nil {
		resp.Spotlight = &dto.SpotlightResponse{
			ListingID: result.Data.Spotlight.ListingID,
			ExpiresAt: result.Data.Spotlight.ExpiresAt,
		}
	}
	httperrors.Write(w, http.StatusOK, resp)
}
