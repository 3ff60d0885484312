package purchases

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/domain/enums"
	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/gateway/paystack"
	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/pricing"
	pgrepo "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/repo/postgres"
	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/services/activation"
)

type storeStub struct {
	mu        sync.Mutex
	nextID    int64
	purchases map[string]pgrepo.PurchaseRecord
}

func newStoreStub() *storeStub {
	return &storeStub{purchases: make(map[string]pgrepo.PurchaseRecord)}
}

func (s *storeStub) CreatePending(_ context.Context, userID int64, purchaseType string, amount int64, currency string, listingID *int64, reference string) (pgrepo.PurchaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.purchases[reference]; ok {
		return pgrepo.PurchaseRecord{}, pgrepo.ErrReferenceConflict
	}
	s.nextID++
	record := pgrepo.PurchaseRecord{
		ID:               s.nextID,
		UserID:           userID,
		Type:             purchaseType,
		AmountMinorUnits: amount,
		Currency:         currency,
		ListingID:        listingID,
		Reference:        reference,
		Status:           string(enums.PurchaseStatusPending),
		CreatedAt:        time.Now(),
	}
	s.purchases[reference] = record
	return record, nil
}

func (s *storeStub) FindByReference(_ context.Context, reference string) (pgrepo.PurchaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.purchases[reference]
	if !ok {
		return pgrepo.PurchaseRecord{}, pgrepo.ErrPurchaseNotFound
	}
	return record, nil
}

func (s *storeStub) TransitionFromPending(_ context.Context, reference, toStatus string) (pgrepo.PurchaseRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.purchases[reference]
	if !ok {
		return pgrepo.PurchaseRecord{}, false, pgrepo.ErrPurchaseNotFound
	}
	if record.Status != string(enums.PurchaseStatusPending) {
		return record, false, nil
	}
	record.Status = toStatus
	record.UpdatedAt = time.Now()
	s.purchases[reference] = record
	return record, true, nil
}

func (s *storeStub) ListByUser(_ context.Context, userID int64, limit int) ([]pgrepo.PurchaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []pgrepo.PurchaseRecord
	for _, record := range s.purchases {
		if record.UserID == userID && len(out) < limit {
			out = append(out, record)
		}
	}
	return out, nil
}

type gatewayStub struct {
	initErr    error
	initCalls  int
	lastInit   paystack.InitializeResult
	verify     map[string]paystack.VerifyResult
	verifyErr  error
	verifyRefs []string
}

func newGatewayStub() *gatewayStub {
	return &gatewayStub{verify: make(map[string]paystack.VerifyResult)}
}

func (g *gatewayStub) Initialize(_ context.Context, _ string, _ int64, _, reference string) (paystack.InitializeResult, error) {
	g.initCalls++
	if g.initErr != nil {
		return paystack.InitializeResult{}, g.initErr
	}
	g.lastInit = paystack.InitializeResult{
		AuthorizationURL: "https://checkout.example/" + reference,
		AccessCode:       "ac_" + reference,
		Reference:        reference,
	}
	return g.lastInit, nil
}

func (g *gatewayStub) Verify(_ context.Context, reference string) (paystack.VerifyResult, error) {
	g.verifyRefs = append(g.verifyRefs, reference)
	if g.verifyErr != nil {
		return paystack.VerifyResult{}, g.verifyErr
	}
	result, ok := g.verify[reference]
	if !ok {
		return paystack.VerifyResult{Status: "abandoned"}, nil
	}
	return result, nil
}

type usersStub struct {
	users map[int64]pgrepo.UserRecord
}

func (u *usersStub) Get(_ context.Context, userID int64) (pgrepo.UserRecord, error) {
	record, ok := u.users[userID]
	if !ok {
		return pgrepo.UserRecord{}, pgrepo.ErrUserNotFound
	}
	return record, nil
}

type activatorStub struct {
	mu    sync.Mutex
	calls []pgrepo.PurchaseRecord
	err   error
}

func (a *activatorStub) Activate(_ context.Context, purchase pgrepo.PurchaseRecord) (activation.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, purchase)
	if a.err != nil {
		return activation.Result{}, a.err
	}
	return activation.Result{Success: true, Message: "activated"}, nil
}

func (a *activatorStub) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

const testWebhookSecret = "whsec_test"

func newTestService(store Store, gateway *gatewayStub, activator *activatorStub) *Service {
	users := &usersStub{users: map[int64]pgrepo.UserRecord{
		1: {ID: 1, Email: "buyer@tradeplus.app", Tier: "free"},
		2: {ID: 2, Email: "pro@tradeplus.app", Tier: "premium"},
	}}
	return NewService(Dependencies{
		Store:     store,
		Gateway:   gateway,
		Users:     users,
		Activator: activator,
		Prices:    pricing.NewCatalog(),
	}, Config{WebhookSecret: testWebhookSecret})
}

func ptr(v int64) *int64 { return &v }

func TestInitializeCreatesPendingAndOpensCheckout(t *testing.T) {
	store := newStoreStub()
	gateway := newGatewayStub()
	svc := newTestService(store, gateway, &activatorStub{})

	outcome, err := svc.Initialize(context.Background(), 1, enums.PurchaseTypeSpotlight3, ptr(10), "NGN")
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !strings.HasPrefix(outcome.Reference, "TP-spotlight_3-1-") {
		t.Fatalf("unexpected reference %q", outcome.Reference)
	}
	if outcome.AuthorizationURL == "" || outcome.AccessCode == "" {
		t.Fatalf("outcome must carry the checkout session: %+v", outcome)
	}

	record, err := store.FindByReference(context.Background(), outcome.Reference)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if record.Status != string(enums.PurchaseStatusPending) {
		t.Fatalf("purchase must start pending, got %q", record.Status)
	}
	if record.AmountMinorUnits != outcome.AmountMinorUnits || record.AmountMinorUnits <= 0 {
		t.Fatalf("unexpected amount %d", record.AmountMinorUnits)
	}
}

func TestInitializePremiumDiscountsBoost(t *testing.T) {
	store := newStoreStub()
	svc := newTestService(store, newGatewayStub(), &activatorStub{})
	ctx := context.Background()

	free, err := svc.Initialize(ctx, 1, enums.PurchaseTypeAggressiveBoost, ptr(10), "NGN")
	if err != nil {
		t.Fatalf("initialize free: %v", err)
	}
	premium, err := svc.Initialize(ctx, 2, enums.PurchaseTypeAggressiveBoost, ptr(10), "NGN")
	if err != nil {
		t.Fatalf("initialize premium: %v", err)
	}
	if premium.AmountMinorUnits >= free.AmountMinorUnits {
		t.Fatalf("premium boost must be discounted: free=%d premium=%d", free.AmountMinorUnits, premium.AmountMinorUnits)
	}
}

func TestInitializeValidation(t *testing.T) {
	svc := newTestService(newStoreStub(), newGatewayStub(), &activatorStub{})
	ctx := context.Background()

	if _, err := svc.Initialize(ctx, 1, enums.PurchaseTypeSpotlight3, nil, "NGN"); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing listing must fail validation, got %v", err)
	}
	if _, err := svc.Initialize(ctx, 1, "mystery", nil, "NGN"); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown type must fail validation, got %v", err)
	}
	if _, err := svc.Initialize(ctx, 1, enums.PurchaseTypePremium, nil, "GBP"); !errors.Is(err, ErrValidation) {
		t.Fatalf("unsupported currency must fail validation, got %v", err)
	}
	if _, err := svc.Initialize(ctx, 42, enums.PurchaseTypePremium, nil, "NGN"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown buyer must fail, got %v", err)
	}
}

func TestInitializeGatewayDownLeavesPending(t *testing.T) {
	store := newStoreStub()
	gateway := newGatewayStub()
	gateway.initErr = paystack.ErrGatewayUnavailable
	svc := newTestService(store, gateway, &activatorStub{})

	_, err := svc.Initialize(context.Background(), 1, enums.PurchaseTypePremium, nil, "NGN")
	if !errors.Is(err, paystack.ErrGatewayUnavailable) {
		t.Fatalf("expected gateway error, got %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.purchases) != 1 {
		t.Fatalf("pending row must survive a gateway failure")
	}
	for _, record := range store.purchases {
		if record.Status != string(enums.PurchaseStatusPending) {
			t.Fatalf("purchase must stay pending, got %q", record.Status)
		}
	}
}

func seedPending(t *testing.T, store *storeStub, gateway *gatewayStub, status string) pgrepo.PurchaseRecord {
	t.Helper()
	record, err := store.CreatePending(context.Background(), 1, "premium", 250000, "NGN", nil, "TP-premium-1-test")
	if err != nil {
		t.Fatalf("seed pending: %v", err)
	}
	gateway.verify[record.Reference] = paystack.VerifyResult{
		Status:           status,
		AmountMinorUnits: record.AmountMinorUnits,
		Currency:         record.Currency,
	}
	return record
}

func TestVerifySuccessActivatesOnce(t *testing.T) {
	store := newStoreStub()
	gateway := newGatewayStub()
	activator := &activatorStub{}
	svc := newTestService(store, gateway, activator)
	record := seedPending(t, store, gateway, "success")

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		outcome, err := svc.Verify(ctx, record.Reference)
		if err != nil {
			t.Fatalf("verify #%d: %v", i, err)
		}
		if outcome.Status != enums.PurchaseStatusCompleted {
			t.Fatalf("verify #%d: expected completed, got %q", i, outcome.Status)
		}
	}

	if activator.count() != 1 {
		t.Fatalf("activation must run exactly once, ran %d", activator.count())
	}
	// Settled purchases are answered locally.
	if len(gateway.verifyRefs) != 1 {
		t.Fatalf("gateway must be consulted once, got %d", len(gateway.verifyRefs))
	}
}

func TestVerifyFailedCharge(t *testing.T) {
	store := newStoreStub()
	gateway := newGatewayStub()
	activator := &activatorStub{}
	svc := newTestService(store, gateway, activator)
	record := seedPending(t, store, gateway, "failed")

	outcome, err := svc.Verify(context.Background(), record.Reference)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if outcome.Status != enums.PurchaseStatusFailed {
		t.Fatalf("expected failed, got %q", outcome.Status)
	}
	if activator.count() != 0 {
		t.Fatalf("failed charge must not activate")
	}
}

func TestVerifyAmountMismatchFails(t *testing.T) {
	store := newStoreStub()
	gateway := newGatewayStub()
	activator := &activatorStub{}
	svc := newTestService(store, gateway, activator)
	record := seedPending(t, store, gateway, "success")
	gateway.verify[record.Reference] = paystack.VerifyResult{
		Status:           "success",
		AmountMinorUnits: 100, // short payment
		Currency:         record.Currency,
	}

	outcome, err := svc.Verify(context.Background(), record.Reference)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if outcome.Status != enums.PurchaseStatusFailed {
		t.Fatalf("short payment must fail, got %q", outcome.Status)
	}
	if activator.count() != 0 {
		t.Fatalf("short payment must not activate")
	}
}

func TestVerifyStillProcessing(t *testing.T) {
	store := newStoreStub()
	gateway := newGatewayStub()
	svc := newTestService(store, gateway, &activatorStub{})
	record := seedPending(t, store, gateway, "pending")

	outcome, err := svc.Verify(context.Background(), record.Reference)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if outcome.Status != enums.PurchaseStatusPending {
		t.Fatalf("expected pending, got %q", outcome.Status)
	}
}

func TestVerifyUnknownReference(t *testing.T) {
	svc := newTestService(newStoreStub(), newGatewayStub(), &activatorStub{})

	if _, err := svc.Verify(context.Background(), "TP-nope"); !errors.Is(err, ErrPurchaseNotFound) {
		t.Fatalf("expected ErrPurchaseNotFound, got %v", err)
	}
}

func TestVerifyActivationFailureKeepsPurchaseCompleted(t *testing.T) {
	store := newStoreStub()
	gateway := newGatewayStub()
	activator := &activatorStub{err: errors.New("listing store down")}
	svc := newTestService(store, gateway, activator)
	record := seedPending(t, store, gateway, "success")

	outcome, err := svc.Verify(context.Background(), record.Reference)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if outcome.Status != enums.PurchaseStatusCompleted {
		t.Fatalf("captured charge must stay completed, got %q", outcome.Status)
	}

	stored, _ := store.FindByReference(context.Background(), record.Reference)
	if stored.Status != string(enums.PurchaseStatusCompleted) {
		t.Fatalf("stored status must be completed, got %q", stored.Status)
	}
}

func webhookBody(t *testing.T, event, reference string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"event": event,
		"data":  map[string]any{"reference": reference},
	})
	if err != nil {
		t.Fatalf("marshal webhook body: %v", err)
	}
	return body
}

func TestHandleWebhookDuplicateDeliveries(t *testing.T) {
	store := newStoreStub()
	gateway := newGatewayStub()
	activator := &activatorStub{}
	svc := newTestService(store, gateway, activator)
	record := seedPending(t, store, gateway, "success")

	body := webhookBody(t, "charge.success", record.Reference)
	signature := paystack.Sign(testWebhookSecret, body)

	for i := 0; i < 3; i++ {
		if err := svc.HandleWebhook(context.Background(), signature, body); err != nil {
			t.Fatalf("webhook delivery #%d: %v", i, err)
		}
	}
	if activator.count() != 1 {
		t.Fatalf("duplicate deliveries must activate once, got %d", activator.count())
	}
}

func TestHandleWebhookBadSignature(t *testing.T) {
	store := newStoreStub()
	gateway := newGatewayStub()
	activator := &activatorStub{}
	svc := newTestService(store, gateway, activator)
	record := seedPending(t, store, gateway, "success")

	body := webhookBody(t, "charge.success", record.Reference)

	err := svc.HandleWebhook(context.Background(), paystack.Sign("wrong-secret", body), body)
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
	if activator.count() != 0 || len(gateway.verifyRefs) != 0 {
		t.Fatalf("forged webhook must be discarded before any processing")
	}
}

func TestHandleWebhookIgnoresOtherEvents(t *testing.T) {
	gateway := newGatewayStub()
	svc := newTestService(newStoreStub(), gateway, &activatorStub{})

	body := webhookBody(t, "transfer.success", "TP-whatever")
	if err := svc.HandleWebhook(context.Background(), paystack.Sign(testWebhookSecret, body), body); err != nil {
		t.Fatalf("unknown events must be acknowledged: %v", err)
	}
	if len(gateway.verifyRefs) != 0 {
		t.Fatalf("unknown events must not hit the gateway")
	}
}

func TestHandleWebhookUnknownReferenceAcked(t *testing.T) {
	svc := newTestService(newStoreStub(), newGatewayStub(), &activatorStub{})

	body := webhookBody(t, "charge.success", "TP-from-another-env")
	if err := svc.HandleWebhook(context.Background(), paystack.Sign(testWebhookSecret, body), body); err != nil {
		t.Fatalf("unknown reference must be acknowledged: %v", err)
	}
}

func TestListConvertsRecords(t *testing.T) {
	store := newStoreStub()
	svc := newTestService(store, newGatewayStub(), &activatorStub{})
	ctx := context.Background()

	if _, err := store.CreatePending(ctx, 1, "cross_list", 50000, "NGN", ptr(9), "TP-cross-1"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	purchases, err := svc.List(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(purchases) != 1 {
		t.Fatalf("expected one purchase, got %d", len(purchases))
	}
	got := purchases[0]
	if got.Type != enums.PurchaseTypeCrossList || got.Status != enums.PurchaseStatusPending {
		t.Fatalf("unexpected conversion: %+v", got)
	}
	if got.ListingID == nil || *got.ListingID != 9 {
		t.Fatalf("listing id must carry over: %+v", got)
	}
}

// staleReadStore serves reads from before a concurrent settle landed,
// so callers pass the completed-check and reach the conditional
// transition only to lose it.
type staleReadStore struct {
	*storeStub
}

func (s *staleReadStore) FindByReference(ctx context.Context, reference string) (pgrepo.PurchaseRecord, error) {
	record, err := s.storeStub.FindByReference(ctx, reference)
	if err != nil {
		return record, err
	}
	record.Status = string(enums.PurchaseStatusPending)
	return record, nil
}

func TestVerifyLosesTransitionRace(t *testing.T) {
	store := newStoreStub()
	gateway := newGatewayStub()
	activator := &activatorStub{}
	svc := newTestService(&staleReadStore{storeStub: store}, gateway, activator)
	record := seedPending(t, store, gateway, "success")

	ctx := context.Background()

	// A concurrent verification settles the purchase first.
	if _, won, err := store.TransitionFromPending(ctx, record.Reference, string(enums.PurchaseStatusCompleted)); err != nil || !won {
		t.Fatalf("concurrent settle: won=%v err=%v", won, err)
	}

	outcome, err := svc.Verify(ctx, record.Reference)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if outcome.Status != enums.PurchaseStatusCompleted {
		t.Fatalf("loser must report the settled status, got %q", outcome.Status)
	}
	if outcome.Activation != nil {
		t.Fatalf("loser must not carry an activation result: %+v", outcome.Activation)
	}
	if activator.count() != 0 {
		t.Fatalf("loser must not activate, ran %d", activator.count())
	}
}
