package quotas

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/domain/enums"
	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/domain/rules"
	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/pricing"
	pgrepo "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/repo/postgres"
)

var ErrValidation = errors.New("validation error")

type Store interface {
	GetState(ctx context.Context, userID int64) (pgrepo.QuotaStateRecord, error)
	ResetIfStale(ctx context.Context, userID int64, family pgrepo.QuotaFamily, dayStart, now time.Time) (bool, error)
	Increment(ctx context.Context, userID int64, family pgrepo.QuotaFamily, now time.Time) (int, error)
}

type LimitsCatalog interface {
	Limits(tier enums.Tier) pricing.Limits
}

type Config struct {
	DefaultTimezone string
}

type CheckResult struct {
	Allowed   bool
	Remaining int
	IsPremium bool
}

type Snapshot struct {
	Tier             enums.Tier
	ChatPassActive   bool
	ChatRemaining    int
	PostRemaining    int
	OfferRemaining   int
	SpotlightCredits int
	ResetsAt         time.Time
}

type Service struct {
	store   Store
	catalog LimitsCatalog
	cfg     Config
	now     func() time.Time
}

func NewService(store Store, catalog LimitsCatalog, cfg Config) *Service {
	if strings.TrimSpace(cfg.DefaultTimezone) == "" {
		cfg.DefaultTimezone = "Africa/Lagos"
	}
	return &Service{
		store:   store,
		catalog: catalog,
		cfg:     cfg,
		now:     time.Now,
	}
}

func (s *Service) CheckChat(ctx context.Context, userID int64) (CheckResult, error) {
	return s.check(ctx, userID, pgrepo.QuotaFamilyChat)
}

func (s *Service) CheckPost(ctx context.Context, userID int64) (CheckResult, error) {
	return s.check(ctx, userID, pgrepo.QuotaFamilyPost)
}

func (s *Service) CheckOffer(ctx context.Context, userID int64) (CheckResult, error) {
	return s.check(ctx, userID, pgrepo.QuotaFamilyOffer)
}

func (s *Service) IncrementChat(ctx context.Context, userID int64) error {
	return s.increment(ctx, userID, pgrepo.QuotaFamilyChat)
}

func (s *Service) IncrementPost(ctx context.Context, userID int64) error {
	return s.increment(ctx, userID, pgrepo.QuotaFamilyPost)
}

func (s *Service) IncrementOffer(ctx context.Context, userID int64) error {
	return s.increment(ctx, userID, pgrepo.QuotaFamilyOffer)
}

// check loads the user's quota state, applies the premium and chat-pass
// bypasses, performs the forward-only daily reset when the stored
// timestamp is stale and reports the remaining allowance. A missing
// user is a denial, not an error: quota checks fail closed.
func (s *Service) check(ctx context.Context, userID int64, family pgrepo.QuotaFamily) (CheckResult, error) {
	if userID <= 0 {
		return CheckResult{}, ErrValidation
	}
	if s.store == nil || s.catalog == nil {
		return CheckResult{}, fmt.Errorf("quota dependencies are not configured")
	}

	state, err := s.store.GetState(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrQuotaUserNotFound) {
			return CheckResult{Allowed: false}, nil
		}
		return CheckResult{}, err
	}

	now := s.now().UTC()
	if enums.Tier(state.Tier) == enums.TierPremium {
		return CheckResult{Allowed: true, Remaining: rules.UnlimitedRemaining, IsPremium: true}, nil
	}
	if family == pgrepo.QuotaFamilyChat && chatPassActive(state.ChatPassExpiry, now) {
		return CheckResult{Allowed: true, Remaining: rules.UnlimitedRemaining}, nil
	}

	loc := s.location(state.Timezone)
	count, resetAt := familyState(state, family)
	if rules.NeedsDailyReset(resetAt, now, loc) {
		if _, err := s.store.ResetIfStale(ctx, userID, family, rules.DayStart(now, loc), now); err != nil {
			return CheckResult{}, err
		}
		count = 0
	}

	limit := s.familyLimit(enums.Tier(state.Tier), family)
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return CheckResult{
		Allowed:   count < limit,
		Remaining: remaining,
	}, nil
}

// increment deliberately skips the reset check: callers are expected to
// run check first within the same logical operation, and an increment
// landing on a stale row is corrected by the next reset.
func (s *Service) increment(ctx context.Context, userID int64, family pgrepo.QuotaFamily) error {
	if userID <= 0 {
		return ErrValidation
	}
	if s.store == nil {
		return fmt.Errorf("quota store is nil")
	}

	_, err := s.store.Increment(ctx, userID, family, s.now().UTC())
	return err
}

// Get assembles the full quota snapshot surfaced to clients, running
// the same reset-aware check per family.
func (s *Service) Get(ctx context.Context, userID int64) (Snapshot, error) {
	if userID <= 0 {
		return Snapshot{}, ErrValidation
	}
	if s.store == nil || s.catalog == nil {
		return Snapshot{}, fmt.Errorf("quota dependencies are not configured")
	}

	state, err := s.store.GetState(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}

	chat, err := s.check(ctx, userID, pgrepo.QuotaFamilyChat)
	if err != nil {
		return Snapshot{}, err
	}
	post, err := s.check(ctx, userID, pgrepo.QuotaFamilyPost)
	if err != nil {
		return Snapshot{}, err
	}
	offer, err := s.check(ctx, userID, pgrepo.QuotaFamilyOffer)
	if err != nil {
		return Snapshot{}, err
	}

	now := s.now().UTC()
	return Snapshot{
		Tier:             enums.Tier(state.Tier),
		ChatPassActive:   chatPassActive(state.ChatPassExpiry, now),
		ChatRemaining:    chat.Remaining,
		PostRemaining:    post.Remaining,
		OfferRemaining:   offer.Remaining,
		SpotlightCredits: state.SpotlightCredits,
		ResetsAt:         rules.NextResetAt(now, s.location(state.Timezone)),
	}, nil
}

func (s *Service) familyLimit(tier enums.Tier, family pgrepo.QuotaFamily) int {
	limits := s.catalog.Limits(tier)
	switch family {
	case pgrepo.QuotaFamilyPost:
		return limits.FreeDailyPosts
	case pgrepo.QuotaFamilyOffer:
		return limits.FreeDailyOffers
	default:
		return limits.FreeDailyChats
	}
}

func (s *Service) location(tz string) *time.Location {
	if strings.TrimSpace(tz) == "" {
		tz = s.cfg.DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

func familyState(state pgrepo.QuotaStateRecord, family pgrepo.QuotaFamily) (int, time.Time) {
	switch family {
	case pgrepo.QuotaFamilyPost:
		return state.PostCount, state.PostResetAt
	case pgrepo.QuotaFamilyOffer:
		return state.OfferCount, state.OfferResetAt
	default:
		return state.ChatCount, state.ChatResetAt
	}
}

func chatPassActive(expiry *time.Time, now time.Time) bool {
	return expiry != nil && expiry.After(now)
}
