package enums

type PurchaseType string

const (
	// PurchaseTypeChatPass is retained for stale clients only; chat is
	// included in the free tier and activation is a no-op.
	PurchaseTypeChatPass        PurchaseType = "chat_pass"
	PurchaseTypeCrossList       PurchaseType = "cross_list"
	PurchaseTypeAggressiveBoost PurchaseType = "aggressive_boost"
	PurchaseTypeSpotlight3      PurchaseType = "spotlight_3"
	PurchaseTypeSpotlight7      PurchaseType = "spotlight_7"
	PurchaseTypePremium         PurchaseType = "premium"
)

func (t PurchaseType) Valid() bool {
	switch t {
	case PurchaseTypeChatPass,
		PurchaseTypeCrossList,
		PurchaseTypeAggressiveBoost,
		PurchaseTypeSpotlight3,
		PurchaseTypeSpotlight7,
		PurchaseTypePremium:
		return true
	default:
		return false
	}
}

func (t PurchaseType) RequiresListing() bool {
	switch t {
	case PurchaseTypeCrossList,
		PurchaseTypeAggressiveBoost,
		PurchaseTypeSpotlight3,
		PurchaseTypeSpotlight7:
		return true
	default:
		return false
	}
}
