package purchases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/domain/enums"
	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/domain/model"
	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/gateway/paystack"
	pgrepo "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/repo/postgres"
	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/services/activation"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrPurchaseNotFound = errors.New("purchase not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrBadSignature     = errors.New("webhook signature mismatch")
)

type Store interface {
	CreatePending(ctx context.Context, userID int64, purchaseType string, amount int64, currency string, listingID *int64, reference string) (pgrepo.PurchaseRecord, error)
	FindByReference(ctx context.Context, reference string) (pgrepo.PurchaseRecord, error)
	TransitionFromPending(ctx context.Context, reference, toStatus string) (pgrepo.PurchaseRecord, bool, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]pgrepo.PurchaseRecord, error)
}

type Gateway interface {
	Initialize(ctx context.Context, email string, amountMinor int64, currency, reference string) (paystack.InitializeResult, error)
	Verify(ctx context.Context, reference string) (paystack.VerifyResult, error)
}

type UserDirectory interface {
	Get(ctx context.Context, userID int64) (pgrepo.UserRecord, error)
}

type Activator interface {
	Activate(ctx context.Context, purchase pgrepo.PurchaseRecord) (activation.Result, error)
}

type PriceList interface {
	PriceForTier(t enums.PurchaseType, currency string, tier enums.Tier) (int64, error)
}

type Config struct {
	WebhookSecret string
	ListLimit     int
}

type Dependencies struct {
	Store     Store
	Gateway   Gateway
	Users     UserDirectory
	Activator Activator
	Prices    PriceList
	Logger    *zap.Logger
}

// Service owns the purchase lifecycle: initialize against the payment
// gateway, verify the charge, and hand exactly one completed purchase
// to activation. Webhook and polling verification share the same
// verify path, so duplicate deliveries collapse onto the status
// transition.
type Service struct {
	store     Store
	gateway   Gateway
	users     UserDirectory
	activator Activator
	prices    PriceList
	log       *zap.Logger
	cfg       Config
	now       func() time.Time
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = 50
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		store:     deps.Store,
		gateway:   deps.Gateway,
		users:     deps.Users,
		activator: deps.Activator,
		prices:    deps.Prices,
		log:       log,
		cfg:       cfg,
		now:       time.Now,
	}
}

type InitializeOutcome struct {
	Reference        string
	AuthorizationURL string
	AccessCode       string
	AmountMinorUnits int64
	Currency         string
}

// Initialize prices the requested purchase for the buyer's tier,
// records it as pending and opens a checkout session with the gateway.
// A gateway failure leaves the pending row behind; verification of the
// same reference later is harmless.
func (s *Service) Initialize(ctx context.Context, userID int64, purchaseType enums.PurchaseType, listingID *int64, currency string) (InitializeOutcome, error) {
	if userID <= 0 {
		return InitializeOutcome{}, ErrValidation
	}
	if !purchaseType.Valid() {
		return InitializeOutcome{}, fmt.Errorf("%w: unknown purchase type %q", ErrValidation, purchaseType)
	}
	if purchaseType.RequiresListing() && (listingID == nil || *listingID <= 0) {
		return InitializeOutcome{}, fmt.Errorf("%w: purchase type %q requires a listing", ErrValidation, purchaseType)
	}
	if !purchaseType.RequiresListing() {
		listingID = nil
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return InitializeOutcome{}, ErrUserNotFound
		}
		return InitializeOutcome{}, err
	}

	amount, err := s.prices.PriceForTier(purchaseType, currency, enums.Tier(user.Tier))
	if err != nil {
		return InitializeOutcome{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	reference := s.newReference(purchaseType, userID)
	purchase, err := s.store.CreatePending(ctx, userID, string(purchaseType), amount, currency, listingID, reference)
	if err != nil {
		return InitializeOutcome{}, err
	}

	session, err := s.gateway.Initialize(ctx, user.Email, purchase.AmountMinorUnits, purchase.Currency, purchase.Reference)
	if err != nil {
		// The pending row stays; the client can retry with a fresh
		// initialize call and this one will simply never verify.
		s.log.Warn("gateway initialize failed",
			zap.String("reference", purchase.Reference),
			zap.Error(err),
		)
		return InitializeOutcome{}, err
	}

	s.log.Info("purchase initialized",
		zap.Int64("user_id", userID),
		zap.String("type", string(purchaseType)),
		zap.String("reference", purchase.Reference),
		zap.Int64("amount", purchase.AmountMinorUnits),
		zap.String("currency", purchase.Currency),
	)

	return InitializeOutcome{
		Reference:        purchase.Reference,
		AuthorizationURL: session.AuthorizationURL,
		AccessCode:       session.AccessCode,
		AmountMinorUnits: purchase.AmountMinorUnits,
		Currency:         purchase.Currency,
	}, nil
}

type VerifyOutcome struct {
	Status     enums.PurchaseStatus
	Purchase   pgrepo.PurchaseRecord
	Activation *activation.Result
	Message    string
}

// Verify settles a purchase against the gateway's view of the charge.
// The pending-to-terminal transition is a conditional update, so any
// number of concurrent verifications elect a single winner and only the
// winner runs activation. Repeat calls on a settled purchase are
// answered from the local record without touching the gateway.
func (s *Service) Verify(ctx context.Context, reference string) (VerifyOutcome, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return VerifyOutcome{}, ErrValidation
	}

	purchase, err := s.store.FindByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPurchaseNotFound) {
			return VerifyOutcome{}, ErrPurchaseNotFound
		}
		return VerifyOutcome{}, err
	}

	switch enums.PurchaseStatus(purchase.Status) {
	case enums.PurchaseStatusCompleted:
		return VerifyOutcome{
			Status:   enums.PurchaseStatusCompleted,
			Purchase: purchase,
			Message:  "Purchase already completed.",
		}, nil
	case enums.PurchaseStatusFailed:
		return VerifyOutcome{
			Status:   enums.PurchaseStatusFailed,
			Purchase: purchase,
			Message:  "Payment failed.",
		}, nil
	}

	charge, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return VerifyOutcome{}, err
	}

	switch charge.Status {
	case "success":
		if charge.AmountMinorUnits != purchase.AmountMinorUnits || !strings.EqualFold(charge.Currency, purchase.Currency) {
			s.log.Error("charge does not match purchase",
				zap.String("reference", reference),
				zap.Int64("expected_amount", purchase.AmountMinorUnits),
				zap.Int64("charged_amount", charge.AmountMinorUnits),
				zap.String("expected_currency", purchase.Currency),
				zap.String("charged_currency", charge.Currency),
			)
			return s.settleFailed(ctx, reference, "Payment amount mismatch.")
		}
		return s.settleCompleted(ctx, reference)
	case "failed", "abandoned":
		return s.settleFailed(ctx, reference, "Payment failed.")
	default:
		return VerifyOutcome{
			Status:   enums.PurchaseStatusPending,
			Purchase: purchase,
			Message:  "Payment is still processing.",
		}, nil
	}
}

func (s *Service) settleCompleted(ctx context.Context, reference string) (VerifyOutcome, error) {
	purchase, won, err := s.store.TransitionFromPending(ctx, reference, string(enums.PurchaseStatusCompleted))
	if err != nil {
		return VerifyOutcome{}, err
	}
	if !won {
		// Another verification settled first; answer from its outcome.
		return VerifyOutcome{
			Status:   enums.PurchaseStatus(purchase.Status),
			Purchase: purchase,
			Message:  "Purchase already processed.",
		}, nil
	}

	result, err := s.activator.Activate(ctx, purchase)
	if err != nil {
		// The purchase stays completed; activation is retried out of
		// band rather than refunding a captured charge.
		s.log.Error("activation failed for completed purchase",
			zap.Int64("purchase_id", purchase.ID),
			zap.String("reference", reference),
			zap.Error(err),
		)
		return VerifyOutcome{
			Status:   enums.PurchaseStatusCompleted,
			Purchase: purchase,
			Message:  "Payment received. Activation is being retried.",
		}, nil
	}

	s.log.Info("purchase completed",
		zap.Int64("purchase_id", purchase.ID),
		zap.String("reference", reference),
		zap.Bool("activated", result.Success),
	)

	return VerifyOutcome{
		Status:     enums.PurchaseStatusCompleted,
		Purchase:   purchase,
		Activation: &result,
		Message:    result.Message,
	}, nil
}

func (s *Service) settleFailed(ctx context.Context, reference, message string) (VerifyOutcome, error) {
	purchase, _, err := s.store.TransitionFromPending(ctx, reference, string(enums.PurchaseStatusFailed))
	if err != nil {
		return VerifyOutcome{}, err
	}
	return VerifyOutcome{
		Status:   enums.PurchaseStatus(purchase.Status),
		Purchase: purchase,
		Message:  message,
	}, nil
}

type webhookEnvelope struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// HandleWebhook authenticates a gateway delivery and routes successful
// charges into the shared verify path. Unknown events are acknowledged
// so the gateway stops redelivering them; a bad signature is not.
func (s *Service) HandleWebhook(ctx context.Context, signature string, body []byte) error {
	if !paystack.VerifySignature(s.cfg.WebhookSecret, signature, body) {
		s.log.Warn("webhook rejected, signature mismatch")
		return ErrBadSignature
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%w: malformed webhook body", ErrValidation)
	}

	if envelope.Event != "charge.success" {
		s.log.Debug("webhook event ignored", zap.String("event", envelope.Event))
		return nil
	}
	if strings.TrimSpace(envelope.Data.Reference) == "" {
		return fmt.Errorf("%w: webhook missing reference", ErrValidation)
	}

	outcome, err := s.Verify(ctx, envelope.Data.Reference)
	if err != nil {
		if errors.Is(err, ErrPurchaseNotFound) {
			// Reference from a different environment or a replay for a
			// row we never created. Ack so the gateway stops retrying.
			s.log.Warn("webhook for unknown purchase", zap.String("reference", envelope.Data.Reference))
			return nil
		}
		return err
	}

	s.log.Info("webhook processed",
		zap.String("reference", envelope.Data.Reference),
		zap.String("status", string(outcome.Status)),
	)
	return nil
}

// List returns the caller's purchase history, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]model.Purchase, error) {
	if userID <= 0 {
		return nil, ErrValidation
	}

	records, err := s.store.ListByUser(ctx, userID, s.cfg.ListLimit)
	if err != nil {
		return nil, err
	}

	purchases := make([]model.Purchase, 0, len(records))
	for _, record := range records {
		purchases = append(purchases, model.Purchase{
			ID:               record.ID,
			UserID:           record.UserID,
			Type:             enums.PurchaseType(record.Type),
			AmountMinorUnits: record.AmountMinorUnits,
			Currency:         record.Currency,
			ListingID:        record.ListingID,
			Reference:        record.Reference,
			Status:           enums.PurchaseStatus(record.Status),
			CreatedAt:        record.CreatedAt,
			UpdatedAt:        record.UpdatedAt,
		})
	}
	return purchases, nil
}

func (s *Service) newReference(t enums.PurchaseType, userID int64) string {
	return fmt.Sprintf("TP-%s-%d-%d-%s", t, userID, s.now().UnixNano(), uuid.NewString()[:8])
}
