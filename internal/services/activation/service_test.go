package activation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/pricing"
	pgrepo "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/repo/postgres"
)

type listingStoreStub struct {
	listings map[int64]pgrepo.ListingRecord
}

func newListingStoreStub() *listingStoreStub {
	return &listingStoreStub{listings: make(map[int64]pgrepo.ListingRecord)}
}

func (s *listingStoreStub) Get(_ context.Context, listingID int64) (pgrepo.ListingRecord, error) {
	listing, ok := s.listings[listingID]
	if !ok {
		return pgrepo.ListingRecord{}, pgrepo.ErrListingNotFound
	}
	return listing, nil
}

func (s *listingStoreStub) SetCrossListed(_ context.Context, listingID int64) error {
	listing, ok := s.listings[listingID]
	if !ok {
		return pgrepo.ErrListingNotFound
	}
	listing.IsCrossListed = true
	s.listings[listingID] = listing
	return nil
}

func (s *listingStoreStub) MarkBoosted(_ context.Context, listingID int64) error {
	listing, ok := s.listings[listingID]
	if !ok {
		return pgrepo.ErrListingNotFound
	}
	listing.IsCrossListed = true
	listing.PushNotificationSent = true
	s.listings[listingID] = listing
	return nil
}

func (s *listingStoreStub) ApplySpotlight(_ context.Context, listingID int64, expiry time.Time) error {
	listing, ok := s.listings[listingID]
	if !ok {
		return pgrepo.ErrListingNotFound
	}
	listing.SpotlightExpiry = &expiry
	listing.IsFeatured = true
	s.listings[listingID] = listing
	return nil
}

type userStoreStub struct {
	premium       map[int64]bool
	credits       map[int64]int
	subscriptions int
}

func newUserStoreStub() *userStoreStub {
	return &userStoreStub{
		premium: make(map[int64]bool),
		credits: make(map[int64]int),
	}
}

func (s *userStoreStub) UpgradeToPremium(_ context.Context, userID, purchaseID int64, credits int, _, _ time.Time) error {
	if userID <= 0 || purchaseID <= 0 {
		return errors.New("invalid upgrade payload")
	}
	s.premium[userID] = true
	s.credits[userID] += credits
	s.subscriptions++
	return nil
}

func (s *userStoreStub) ConsumeSpotlightCredit(_ context.Context, userID int64) (int, error) {
	if !s.premium[userID] {
		return 0, pgrepo.ErrNotPremium
	}
	if s.credits[userID] <= 0 {
		return 0, pgrepo.ErrNoSpotlightCredits
	}
	s.credits[userID]--
	return s.credits[userID], nil
}

type targetingStub struct {
	runs     int
	notified int
	err      error
}

func (s *targetingStub) Run(_ context.Context, _ pgrepo.ListingRecord) (int, error) {
	s.runs++
	return s.notified, s.err
}

func ptr(v int64) *int64 { return &v }

func newTestService(listings *listingStoreStub, users *userStoreStub, targeting *targetingStub, now time.Time) *Service {
	svc := NewService(Dependencies{
		Listings:  listings,
		Users:     users,
		Targeting: targeting,
		Catalog:   pricing.NewCatalog(),
	}, Config{PremiumDuration: 30 * 24 * time.Hour})
	svc.now = func() time.Time { return now }
	return svc
}

func TestActivateSpotlightSetsExpiry(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	listings := newListingStoreStub()
	listings.listings[10] = pgrepo.ListingRecord{ID: 10, OwnerID: 1}

	svc := newTestService(listings, newUserStoreStub(), nil, now)

	result, err := svc.Activate(context.Background(), pgrepo.PurchaseRecord{
		ID: 1, UserID: 1, Type: "spotlight_3", ListingID: ptr(10),
	})
	if err != nil {
		t.Fatalf("activate spotlight_3: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success: %+v", result)
	}

	listing := listings.listings[10]
	if !listing.IsFeatured {
		t.Fatalf("listing must be featured")
	}
	want := now.Add(3 * 24 * time.Hour)
	if listing.SpotlightExpiry == nil || !listing.SpotlightExpiry.Equal(want) {
		t.Fatalf("unexpected spotlight expiry: %v", listing.SpotlightExpiry)
	}
	if result.Data == nil || result.Data.Spotlight == nil || result.Data.Spotlight.ExpiresAt != want {
		t.Fatalf("result data must carry the spotlight variant: %+v", result.Data)
	}
}

func TestActivateCrossList(t *testing.T) {
	listings := newListingStoreStub()
	listings.listings[20] = pgrepo.ListingRecord{ID: 20, OwnerID: 2}

	svc := newTestService(listings, newUserStoreStub(), nil, time.Now().UTC())

	result, err := svc.Activate(context.Background(), pgrepo.PurchaseRecord{
		ID: 2, UserID: 2, Type: "cross_list", ListingID: ptr(20),
	})
	if err != nil {
		t.Fatalf("activate cross_list: %v", err)
	}
	if !result.Success || !listings.listings[20].IsCrossListed {
		t.Fatalf("cross_list must flag the listing: %+v", result)
	}
}

func TestActivateAggressiveBoostRunsTargeting(t *testing.T) {
	listings := newListingStoreStub()
	listings.listings[30] = pgrepo.ListingRecord{ID: 30, OwnerID: 3, Category: "Electronics"}
	targeting := &targetingStub{notified: 7}

	svc := newTestService(listings, newUserStoreStub(), targeting, time.Now().UTC())

	result, err := svc.Activate(context.Background(), pgrepo.PurchaseRecord{
		ID: 3, UserID: 3, Type: "aggressive_boost", ListingID: ptr(30),
	})
	if err != nil {
		t.Fatalf("activate aggressive_boost: %v", err)
	}
	if targeting.runs != 1 {
		t.Fatalf("targeting must run exactly once, ran %d", targeting.runs)
	}
	listing := listings.listings[30]
	if !listing.IsCrossListed || !listing.PushNotificationSent {
		t.Fatalf("boost must cross-list and mark push sent: %+v", listing)
	}
	if result.Data == nil || result.Data.Boost == nil || result.Data.Boost.NotifiedCount != 7 {
		t.Fatalf("result must carry notified count: %+v", result.Data)
	}
}

func TestActivatePremiumGrantsCreditsAndSubscription(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	users := newUserStoreStub()

	svc := newTestService(newListingStoreStub(), users, nil, now)

	result, err := svc.Activate(context.Background(), pgrepo.PurchaseRecord{
		ID: 4, UserID: 9, Type: "premium",
	})
	if err != nil {
		t.Fatalf("activate premium: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success: %+v", result)
	}
	if !users.premium[9] {
		t.Fatalf("user must be premium")
	}
	if users.credits[9] <= 0 {
		t.Fatalf("premium must grant spotlight credits")
	}
	if users.subscriptions != 1 {
		t.Fatalf("expected one subscription record, got %d", users.subscriptions)
	}
	if result.Data == nil || result.Data.Premium == nil {
		t.Fatalf("result must carry the premium variant")
	}
	if want := now.Add(30 * 24 * time.Hour); !result.Data.Premium.ExpiresAt.Equal(want) {
		t.Fatalf("unexpected premium expiry: %v", result.Data.Premium.ExpiresAt)
	}
}

func TestActivateChatPassIsNoOp(t *testing.T) {
	listings := newListingStoreStub()
	users := newUserStoreStub()

	svc := newTestService(listings, users, nil, time.Now().UTC())

	result, err := svc.Activate(context.Background(), pgrepo.PurchaseRecord{
		ID: 5, UserID: 1, Type: "chat_pass",
	})
	if err != nil {
		t.Fatalf("activate chat_pass: %v", err)
	}
	if !result.Success || result.Data != nil {
		t.Fatalf("chat_pass must succeed with no data variant: %+v", result)
	}
	if len(users.premium) != 0 {
		t.Fatalf("chat_pass must not mutate user state")
	}
}

func TestActivateMissingListingFailsWithoutError(t *testing.T) {
	svc := newTestService(newListingStoreStub(), newUserStoreStub(), nil, time.Now().UTC())

	result, err := svc.Activate(context.Background(), pgrepo.PurchaseRecord{
		ID: 6, UserID: 1, Type: "spotlight_7", ListingID: ptr(404),
	})
	if err != nil {
		t.Fatalf("activate with missing listing: %v", err)
	}
	if result.Success {
		t.Fatalf("missing listing must be a failed result")
	}
}

func TestActivateUnknownTypeErrors(t *testing.T) {
	svc := newTestService(newListingStoreStub(), newUserStoreStub(), nil, time.Now().UTC())

	if _, err := svc.Activate(context.Background(), pgrepo.PurchaseRecord{ID: 7, UserID: 1, Type: "mystery"}); !errors.Is(err, ErrUnknownPurchase) {
		t.Fatalf("expected ErrUnknownPurchase, got %v", err)
	}
}

func TestUseSpotlightCreditNotPremium(t *testing.T) {
	listings := newListingStoreStub()
	listings.listings[40] = pgrepo.ListingRecord{ID: 40, OwnerID: 4}
	users := newUserStoreStub()
	users.credits[4] = 3 // credits without premium tier

	svc := newTestService(listings, users, nil, time.Now().UTC())

	_, err := svc.UseSpotlightCredit(context.Background(), 4, 40)
	if !errors.Is(err, ErrNotPremium) {
		t.Fatalf("expected ErrNotPremium, got %v", err)
	}
	if users.credits[4] != 3 {
		t.Fatalf("credit balance must be unchanged, got %d", users.credits[4])
	}
	if listings.listings[40].IsFeatured {
		t.Fatalf("listing state must be unchanged")
	}
}

func TestUseSpotlightCreditExhausted(t *testing.T) {
	listings := newListingStoreStub()
	listings.listings[41] = pgrepo.ListingRecord{ID: 41, OwnerID: 5}
	users := newUserStoreStub()
	users.premium[5] = true

	svc := newTestService(listings, users, nil, time.Now().UTC())

	if _, err := svc.UseSpotlightCredit(context.Background(), 5, 41); !errors.Is(err, ErrNoCreditsRemaining) {
		t.Fatalf("expected ErrNoCreditsRemaining, got %v", err)
	}
}

func TestUseSpotlightCreditHappyPath(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	listings := newListingStoreStub()
	listings.listings[42] = pgrepo.ListingRecord{ID: 42, OwnerID: 6}
	users := newUserStoreStub()
	users.premium[6] = true
	users.credits[6] = 2

	svc := newTestService(listings, users, nil, now)

	result, err := svc.UseSpotlightCredit(context.Background(), 6, 42)
	if err != nil {
		t.Fatalf("use spotlight credit: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success: %+v", result)
	}
	if users.credits[6] != 1 {
		t.Fatalf("expected one credit left, got %d", users.credits[6])
	}
	listing := listings.listings[42]
	want := now.Add(7 * 24 * time.Hour)
	if listing.SpotlightExpiry == nil || !listing.SpotlightExpiry.Equal(want) {
		t.Fatalf("credit must apply the 7-day spotlight: %v", listing.SpotlightExpiry)
	}
}
