package activation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/domain/enums"
	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/events"
	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/pricing"
	pgrepo "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/repo/postgres"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrUnknownPurchase    = errors.New("unknown purchase type")
	ErrListingNotFound    = errors.New("listing not found")
	ErrNotPremium         = errors.New("user is not premium")
	ErrNoCreditsRemaining = errors.New("no spotlight credits remaining")
)

const (
	spotlight3Days = 3
	spotlight7Days = 7
)

type ListingStore interface {
	Get(ctx context.Context, listingID int64) (pgrepo.ListingRecord, error)
	SetCrossListed(ctx context.Context, listingID int64) error
	MarkBoosted(ctx context.Context, listingID int64) error
	ApplySpotlight(ctx context.Context, listingID int64, expiry time.Time) error
}

type UserStore interface {
	UpgradeToPremium(ctx context.Context, userID, purchaseID int64, credits int, startedAt, expiresAt time.Time) error
	ConsumeSpotlightCredit(ctx context.Context, userID int64) (int, error)
}

// BoostTargeting runs the aggressive-boost cold-start waterfall and
// returns how many users were notified.
type BoostTargeting interface {
	Run(ctx context.Context, listing pgrepo.ListingRecord) (int, error)
}

type LimitsCatalog interface {
	Limits(tier enums.Tier) pricing.Limits
}

// Result is returned by every activation path. Data is a tagged union:
// at most one variant is set, matching the purchase type.
type Result struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    *ResultData `json:"data,omitempty"`
}

type ResultData struct {
	Spotlight *SpotlightData `json:"spotlight,omitempty"`
	CrossList *CrossListData `json:"cross_list,omitempty"`
	Boost     *BoostData     `json:"boost,omitempty"`
	Premium   *PremiumData   `json:"premium,omitempty"`
}

type SpotlightData struct {
	ListingID int64     `json:"listing_id"`
	ExpiresAt time.Time `json:"expires_at"`
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

type Config struct {
	PremiumDuration time.Duration
}

type Dependencies struct {
	Listings  ListingStore
	Users     UserStore
	Targeting BoostTargeting
	Catalog   LimitsCatalog
	Bus       *events.Bus
	Logger    *zap.Logger
}

type Service struct {
	listings  ListingStore
	users     UserStore
	targeting BoostTargeting
	catalog   LimitsCatalog
	bus       *events.Bus
	log       *zap.Logger
	cfg       Config
	now       func() time.Time
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.PremiumDuration <= 0 {
		cfg.PremiumDuration = 30 * 24 * time.Hour
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		listings:  deps.Listings,
		users:     deps.Users,
		targeting: deps.Targeting,
		catalog:   deps.Catalog,
		bus:       deps.Bus,
		log:       log,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Activate routes a completed purchase to exactly one activation
// effect. Missing listings surface as a failed result, not an error:
// the purchase pipeline treats them as a terminal activation outcome.
func (s *Service) Activate(ctx context.Context, purchase pgrepo.PurchaseRecord) (Result, error) {
	if s.listings == nil || s.users == nil {
		return Result{}, fmt.Errorf("activation dependencies are not configured")
	}

	var (
		result Result
		err    error
	)

	switch enums.PurchaseType(purchase.Type) {
	case enums.PurchaseTypeCrossList:
		result, err = s.activateCrossList(ctx, purchase)
	case enums.PurchaseTypeSpotlight3:
		result, err = s.activateSpotlight(ctx, purchase, spotlight3Days)
	case enums.PurchaseTypeSpotlight7:
		result, err = s.activateSpotlight(ctx, purchase, spotlight7Days)
	case enums.PurchaseTypeAggressiveBoost:
		result, err = s.activateAggressiveBoost(ctx, purchase)
	case enums.PurchaseTypePremium:
		result, err = s.activatePremium(ctx, purchase)
	case enums.PurchaseTypeChatPass:
		// Deprecated but supported: chat is free for everyone now, so
		// the activation is a documented no-op.
		result = Result{Success: true, Message: "Chat is already included in the free tier."}
	default:
		return Result{}, ErrUnknownPurchase
	}

	if err != nil {
		return Result{}, err
	}

	if result.Success && s.bus != nil {
		s.bus.Publish(ctx, events.ActivationCompleted{
			PurchaseID:   purchase.ID,
			UserID:       purchase.UserID,
			PurchaseType: purchase.Type,
			ListingID:    purchase.ListingID,
			Message:      result.Message,
		})
	}

	return result, nil
}

func (s *Service) activateCrossList(ctx context.Context, purchase pgrepo.PurchaseRecord) (Result, error) {
	listingID, ok := listingIDOf(purchase)
	if !ok {
		return Result{}, ErrValidation
	}

	if err := s.listings.SetCrossListed(ctx, listingID); err != nil {
		if errors.Is(err, pgrepo.ErrListingNotFound) {
			return listingMissingResult(), nil
		}
		return Result{}, err
	}

	return Result{
		Success: true,
		Message: "Your listing is now visible in the marketplace feed.",
		Data:    &ResultData{CrossList: &CrossListData{ListingID: listingID}},
	}, nil
}

func (s *Service) activateSpotlight(ctx context.Context, purchase pgrepo.PurchaseRecord, days int) (Result, error) {
	listingID, ok := listingIDOf(purchase)
	if !ok {
		return Result{}, ErrValidation
	}

	expiry := s.now().UTC().Add(time.Duration(days) * 24 * time.Hour)
	if err := s.listings.ApplySpotlight(ctx, listingID, expiry); err != nil {
		if errors.Is(err, pgrepo.ErrListingNotFound) {
			return listingMissingResult(), nil
		}
		return Result{}, err
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("Your listing is spotlighted for %d days.", days),
		Data:    &ResultData{Spotlight: &SpotlightData{ListingID: listingID, ExpiresAt: expiry}},
	}, nil
}

func (s *Service) activateAggressiveBoost(ctx context.Context, purchase pgrepo.PurchaseRecord) (Result, error) {
	listingID, ok := listingIDOf(purchase)
	if !ok {
		return Result{}, ErrValidation
	}

	listing, err := s.listings.Get(ctx, listingID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrListingNotFound) {
			return listingMissingResult(), nil
		}
		return Result{}, err
	}

	if err := s.listings.MarkBoosted(ctx, listingID); err != nil {
		if errors.Is(err, pgrepo.ErrListingNotFound) {
			return listingMissingResult(), nil
		}
		return Result{}, err
	}

	notified := 0
	if s.targeting != nil {
		notified, err = s.targeting.Run(ctx, listing)
		if err != nil {
			return Result{}, err
		}
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("Boost activated: %d interested buyers notified.", notified),
		Data:    &ResultData{Boost: &BoostData{ListingID: listingID, NotifiedCount: notified}},
	}, nil
}

func (s *Service) activatePremium(ctx context.Context, purchase pgrepo.PurchaseRecord) (Result, error) {
	credits := 0
	if s.catalog != nil {
		credits = s.catalog.Limits(enums.TierPremium).PremiumSpotlightCredits
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.cfg.PremiumDuration)
	if err := s.users.UpgradeToPremium(ctx, purchase.UserID, purchase.ID, credits, now, expiresAt); err != nil {
		return Result{}, err
	}

	return Result{
		Success: true,
		Message: "Welcome to TradePlus Premium.",
		Data:    &ResultData{Premium: &PremiumData{ExpiresAt: expiresAt, CreditsGranted: credits}},
	}, nil
}

// UseSpotlightCredit spends one premium credit and applies the 7-day
// spotlight. Precondition failures mutate nothing.
func (s *Service) UseSpotlightCredit(ctx context.Context, userID, listingID int64) (Result, error) {
	if userID <= 0 || listingID <= 0 {
		return Result{}, ErrValidation
	}
	if s.listings == nil || s.users == nil {
		return Result{}, fmt.Errorf("activation dependencies are not configured")
	}

	// Resolve the listing before touching the credit balance so a bad
	// listing id cannot burn a credit.
	if _, err := s.listings.Get(ctx, listingID); err != nil {
		if errors.Is(err, pgrepo.ErrListingNotFound) {
			return Result{}, ErrListingNotFound
		}
		return Result{}, err
	}

	remaining, err := s.users.ConsumeSpotlightCredit(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, pgrepo.ErrNotPremium):
			return Result{}, ErrNotPremium
		case errors.Is(err, pgrepo.ErrNoSpotlightCredits):
			return Result{}, ErrNoCreditsRemaining
		default:
			return Result{}, err
		}
	}

	expiry := s.now().UTC().Add(spotlight7Days * 24 * time.Hour)
	if err := s.listings.ApplySpotlight(ctx, listingID, expiry); err != nil {
		return Result{}, err
	}

	s.log.Info("spotlight credit used",
		zap.Int64("user_id", userID),
		zap.Int64("listing_id", listingID),
		zap.Int("credits_remaining", remaining),
	)

	return Result{
		Success: true,
		Message: fmt.Sprintf("Spotlight applied. %d credits remaining.", remaining),
		Data:    &ResultData{Spotlight: &SpotlightData{ListingID: listingID, ExpiresAt: expiry}},
	}, nil
}

func listingIDOf(purchase pgrepo.PurchaseRecord) (int64, bool) {
	if purchase.ListingID == nil || *purchase.ListingID <= 0 {
		return 0, false
	}
	return *purchase.ListingID, true
}

func listingMissingResult() Result {
	return Result{Success: false, Message: "The listing for this purchase no longer exists."}
}
