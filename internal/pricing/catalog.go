package pricing

import (
	"errors"
	"strings"

	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/domain/enums"
)

var (
	ErrUnknownPurchaseType = errors.New("unknown purchase type")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
)

const (
	CurrencyNGN = "NGN"
	CurrencyUSD = "USD"
)

// Limits are the tier-based consumption caps applied by the quota
// tracker and listing flows.
type Limits struct {
	FreeListings            int
	FreeDailyChats          int
	FreeDailyPosts          int
	FreeDailyOffers         int
	PremiumSpotlightCredits int
}

type entry struct {
	amounts map[string]int64
	// premiumAmounts, when present, replace amounts for premium users.
	premiumAmounts map[string]int64
}

// Catalog is the single source of truth for purchase prices and tier
// limits. It is pure data: substituting a variant (A/B pricing) must
// not touch any other component.
type Catalog struct {
	version string
	entries map[enums.PurchaseType]entry
	free    Limits
	premium Limits
}

func NewCatalog() *Catalog {
	return &Catalog{
		version: "2026-02",
		entries: map[enums.PurchaseType]entry{
			enums.PurchaseTypeChatPass: {
				amounts: map[string]int64{CurrencyNGN: 20000, CurrencyUSD: 49},
			},
			enums.PurchaseTypeCrossList: {
				amounts: map[string]int64{CurrencyNGN: 30000, CurrencyUSD: 49},
			},
			enums.PurchaseTypeSpotlight3: {
				amounts: map[string]int64{CurrencyNGN: 50000, CurrencyUSD: 99},
			},
			enums.PurchaseTypeSpotlight7: {
				amounts: map[string]int64{CurrencyNGN: 100000, CurrencyUSD: 199},
			},
			enums.PurchaseTypeAggressiveBoost: {
				amounts:        map[string]int64{CurrencyNGN: 150000, CurrencyUSD: 299},
				premiumAmounts: map[string]int64{CurrencyNGN: 100000, CurrencyUSD: 199},
			},
			enums.PurchaseTypePremium: {
				amounts: map[string]int64{CurrencyNGN: 250000, CurrencyUSD: 499},
			},
		},
		free: Limits{
			FreeListings:    5,
			FreeDailyChats:  3,
			FreeDailyPosts:  3,
			FreeDailyOffers: 5,
		},
		premium: Limits{
			FreeListings:            50,
			FreeDailyChats:          200,
			FreeDailyPosts:          50,
			FreeDailyOffers:         100,
			PremiumSpotlightCredits: 4,
		},
	}
}

func (c *Catalog) Version() string {
	return c.version
}

// Price returns the amount in minor units for a purchase type and
// currency at the free-tier rate.
func (c *Catalog) Price(t enums.PurchaseType, currency string) (int64, error) {
	return c.PriceForTier(t, currency, enums.TierFree)
}

// PriceForTier applies tier-based discounts where the catalog carries
// one (currently only the aggressive boost has a premium rate).
func (c *Catalog) PriceForTier(t enums.PurchaseType, currency string, tier enums.Tier) (int64, error) {
	e, ok := c.entries[t]
	if !ok {
		return 0, ErrUnknownPurchaseType
	}

	cur := strings.ToUpper(strings.TrimSpace(currency))
	if tier == enums.TierPremium && e.premiumAmounts != nil {
		if amount, ok := e.premiumAmounts[cur]; ok {
			return amount, nil
		}
		return 0, ErrUnsupportedCurrency
	}

	amount, ok := e.amounts[cur]
	if !ok {
		return 0, ErrUnsupportedCurrency
	}
	return amount, nil
}

func (c *Catalog) Limits(tier enums.Tier) Limits {
	if tier == enums.TierPremium {
		return c.premium
	}
	return c.free
}

// Types lists the purchasable types in a stable order for the public
// pricing endpoint.
func (c *Catalog) Types() []enums.PurchaseType {
	return []enums.PurchaseType{
		enums.PurchaseTypeChatPass,
		enums.PurchaseTypeCrossList,
		enums.PurchaseTypeAggressiveBoost,
		enums.PurchaseTypeSpotlight3,
		enums.PurchaseTypeSpotlight7,
		enums.PurchaseTypePremium,
	}
}

func (c *Catalog) Currencies() []string {
	return []string{CurrencyNGN, CurrencyUSD}
}
