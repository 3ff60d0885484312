package handlers

import (
	"net/http"

	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/domain/enums"
	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/pricing"
	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/transport/http/dto"
	httperrors "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/transport/http/errors"
)

type PricingHandler struct {
	catalog *pricing.Catalog
}

func NewPricingHandler(catalog *pricing.Catalog) *PricingHandler {
	return &PricingHandler{catalog: catalog}
}

// Get publishes the full price list so clients render amounts from the
// server's catalog instead of hardcoding them.
func (h *PricingHandler) Get(w http.ResponseWriter, _ *http.Request) {
	if h.catalog == nil {
		writeInternal(w, "PRICING_UNAVAILABLE", "pricing catalog is unavailable")
		return
	}

	currencies := h.catalog.Currencies()
	items := make([]dto.PricingItem, 0, len(h.catalog.Types()))
	for _, purchaseType := range h.catalog.Types() {
		item := dto.PricingItem{
			Type:    string(purchaseType),
			Amounts: make(map[string]int64, len(currencies)),
		}
		for _, currency := range currencies {
			amount, err := h.catalog.Price(purchaseType, currency)
			if err != nil {
				continue
			}
			item.Amounts[currency] = amount

			premiumAmount, err := h.catalog.PriceForTier(purchaseType, currency, enums.TierPremium)
			if err == nil && premiumAmount != amount {
				if item.PremiumAmounts == nil {
					item.PremiumAmounts = make(map[string]int64, len(currencies))
				}
				item.PremiumAmounts[currency] = premiumAmount
			}
		}
		items = append(items, item)
	}

	httperrors.Write(w, http.StatusOK, dto.PricingResponse{
		Version:    h.catalog.Version(),
		Currencies: currencies,
		Items:      items,
	})
}
