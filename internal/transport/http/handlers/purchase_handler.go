package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/domain/enums"
	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/gateway/paystack"
	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/pkg/validate"
	authsvc "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/services/auth"
	purchasesvc "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/services/purchases"
	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/transport/http/dto"
	httperrors "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/transport/http/errors"
)

// Gateway webhook bodies are small JSON envelopes; anything bigger is
// not a legitimate delivery.
const maxWebhookBody = 1 << 20

type PurchaseHandler struct {
	purchases *purchasesvc.Service
}

func NewPurchaseHandler(purchases *purchasesvc.Service) *PurchaseHandler {
	return &PurchaseHandler{purchases: purchases}
}

func (h *PurchaseHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.purchases == nil {
		writeInternal(w, "PURCHASE_SERVICE_UNAVAILABLE", "purchase service is unavailable")
		return
	}

	var req dto.PurchaseInitializeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if !validate.Required(req.Type) || !validate.Required(req.Currency) {
		writeBadRequest(w, "VALIDATION_ERROR", "type and currency are required")
		return
	}

	outcome, err := h.purchases.Initialize(r.Context(), identity.UserID, enums.PurchaseType(req.Type), req.ListingID, req.Currency)
	if err != nil {
		switch {
		case errors.Is(err, purchasesvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid purchase payload")
		case errors.Is(err, purchasesvc.ErrUserNotFound):
			writeNotFound(w, "USER_NOT_FOUND", "user not found")
		case errors.Is(err, paystack.ErrGatewayUnavailable):
			httperrors.Write(w, http.StatusBadGateway, httperrors.APIError{
				Code:    "GATEWAY_UNAVAILABLE",
				Message: "payment provider is unavailable, try again shortly",
			})
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to initialize purchase")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PurchaseInitializeResponse{
		Reference:        outcome.Reference,
		AuthorizationURL: outcome.AuthorizationURL,
		AccessCode:       outcome.AccessCode,
		Amount:           outcome.AmountMinorUnits,
		Currency:         outcome.Currency,
	})
}

func (h *PurchaseHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if _, ok := authsvc.IdentityFromContext(r.Context()); !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.purchases == nil {
		writeInternal(w, "PURCHASE_SERVICE_UNAVAILABLE", "purchase service is unavailable")
		return
	}

	var req dto.PurchaseVerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if !validate.Required(req.Reference) || !validate.MaxLen(req.Reference, 120) {
		writeBadRequest(w, "VALIDATION_ERROR", "reference is required")
		return
	}

	outcome, err := h.purchases.Verify(r.Context(), req.Reference)
	if err != nil {
		switch {
		case errors.Is(err, purchasesvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid verify payload")
		case errors.Is(err, purchasesvc.ErrPurchaseNotFound):
			writeNotFound(w, "PURCHASE_NOT_FOUND", "purchase not found")
		case errors.Is(err, paystack.ErrGatewayUnavailable):
			httperrors.Write(w, http.StatusBadGateway, httperrors.APIError{
				Code:    "GATEWAY_UNAVAILABLE",
				Message: "payment provider is unavailable, try again shortly",
			})
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to verify purchase")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, verifyResponse(outcome))
}

func (h *PurchaseHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.purchases == nil {
		writeInternal(w, "PURCHASE_SERVICE_UNAVAILABLE", "purchase service is unavailable")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "unreadable webhook body")
		return
	}

	if err := h.purchases.HandleWebhook(r.Context(), r.Header.Get(paystack.SignatureHeader), body); err != nil {
		switch {
		case errors.Is(err, purchasesvc.ErrBadSignature):
			writeUnauthorized(w, "BAD_SIGNATURE", "webhook signature mismatch")
		case errors.Is(err, purchasesvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid webhook payload")
		default:
			// Keep the delivery in the gateway's retry queue.
			writeInternal(w, "INTERNAL_ERROR", "failed to process webhook")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *PurchaseHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.purchases == nil {
		writeInternal(w, "PURCHASE_SERVICE_UNAVAILABLE", "purchase service is unavailable")
		return
	}

	records, err := h.purchases.List(r.Context(), identity.UserID)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to list purchases")
		return
	}

	items := make([]dto.PurchaseItem, 0, len(records))
	for _, record := range records {
		items = append(items, dto.PurchaseItem{
			ID:        record.ID,
			Type:      string(record.Type),
			Amount:    record.AmountMinorUnits,
			Currency:  record.Currency,
			ListingID: record.ListingID,
			Reference: record.Reference,
			Status:    string(record.Status),
			CreatedAt: record.CreatedAt,
		})
	}

	httperrors.Write(w, http.StatusOK, dto.PurchaseListResponse{Purchases: items})
}

func verifyResponse(outcome purchasesvc.VerifyOutcome) dto.PurchaseVerifyResponse {
	resp := dto.PurchaseVerifyResponse{
		Success: outcome.Status == enums.PurchaseStatusCompleted,
		Status:  string(outcome.Status),
		Message: outcome.Message,
	}
	if outcome.Activation == nil {
		return resp
	}

	data := &dto.ActivationData{
		Success: outcome.Activation.Success,
		Message: outcome.Activation.Message,
	}
	if payload := outcome.Activation.Data; payload != nil {
		if payload.Spotlight != nil {
			data.Spotlight = &dto.SpotlightResponse{
				ListingID: payload.Spotlight.ListingID,
				ExpiresAt: payload.Spotlight.ExpiresAt,
			}
		}
		if payload.CrossList != nil {
			data.CrossList = &dto.CrossListData{ListingID: payload.CrossList.ListingID}
		}
		if payload.Boost != nil {
			data.Boost = &dto.BoostData{
				ListingID:     payload.Boost.ListingID,
				NotifiedCount: payload.Boost.NotifiedCount,
			}
		}
		if payload.Premium != nil {
			data.Premium = &dto.PremiumData{
				ExpiresAt:      payload.Premium.ExpiresAt,
				CreditsGranted: payload.Premium.CreditsGranted,
			}
		}
	}
	resp.Activation = data
	return resp
}
