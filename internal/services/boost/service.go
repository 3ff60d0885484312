package boost

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/domain/rules"
	pgrepo "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/repo/postgres"
)

const (
	scoreBaseline  = 10
	scoreWantMatch = 7
	scoreCartMatch = 5

	recordTimeout = 3 * time.Second
)

type CandidateSource interface {
	List(ctx context.Context, q pgrepo.CandidateQuery) ([]pgrepo.CandidateRecord, error)
}

type SpamLedger interface {
	Count(ctx context.Context, userID int64) (int64, error)
	Record(ctx context.Context, userID int64) (int64, error)
}

type Notifier interface {
	Send(ctx context.Context, userIDs []int64, payload Payload) (int, error)
}

// Payload mirrors the fanout wire payload so the engine does not import
// the transport client directly.
type Payload struct {
	ListingID  int64
	Title      string
	Category   string
	SellerName string
}

type Config struct {
	PoolSize    int
	SelectCount int
	SpamWorkers int
	SpamQueue   int
}

type Dependencies struct {
	Candidates CandidateSource
	Spam       SpamLedger
	Notifier   Notifier
	Logger     *zap.Logger
}

// Engine selects the buyers most likely to want a boosted listing and
// fans a push notification out to them. Selection is a scored pass over
// a recency-ordered candidate pool; ties keep pool order so equally
// scored candidates rank by recent activity.
type Engine struct {
	candidates CandidateSource
	spam       SpamLedger
	notifier   Notifier
	log        *zap.Logger
	cfg        Config

	recordQueue chan int64
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

func NewEngine(deps Dependencies, cfg Config) *Engine {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 50
	}
	if cfg.SelectCount <= 0 {
		cfg.SelectCount = 10
	}
	if cfg.SpamWorkers <= 0 {
		cfg.SpamWorkers = 2
	}
	if cfg.SpamQueue <= 0 {
		cfg.SpamQueue = 256
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	e := &Engine{
		candidates:  deps.Candidates,
		spam:        deps.Spam,
		notifier:    deps.Notifier,
		log:         log,
		cfg:         cfg,
		recordQueue: make(chan int64, cfg.SpamQueue),
	}

	for i := 0; i < cfg.SpamWorkers; i++ {
		e.wg.Add(1)
		go e.recordWorker()
	}

	return e
}

// Close stops the background spam bookkeeping workers after draining
// the queued records.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.recordQueue)
	})
	e.wg.Wait()
}

type scoredCandidate struct {
	userID int64
	score  int
}

// Run assembles the candidate pool for a boosted listing, scores it,
// notifies the top slice, and records each notification against the
// per-user rolling window. The notified count is returned.
func (e *Engine) Run(ctx context.Context, listing pgrepo.ListingRecord) (int, error) {
	pool, err := e.assemblePool(ctx, listing)
	if err != nil {
		return 0, err
	}
	if len(pool) == 0 {
		e.log.Info("boost skipped, empty candidate pool", zap.Int64("listing_id", listing.ID))
		return 0, nil
	}

	scored := make([]scoredCandidate, 0, len(pool))
	for _, candidate := range pool {
		scored = append(scored, scoredCandidate{
			userID: candidate.UserID,
			score:  scoreCandidate(candidate, listing),
		})
	}

	// Stable: equal scores keep the pool's recency order.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if len(scored) > e.cfg.SelectCount {
		scored = scored[:e.cfg.SelectCount]
	}

	userIDs := make([]int64, 0, len(scored))
	for _, c := range scored {
		userIDs = append(userIDs, c.userID)
	}

	delivered, err := e.notifier.Send(ctx, userIDs, Payload{
		ListingID:  listing.ID,
		Title:      listing.Title,
		Category:   listing.Category,
		SellerName: listing.SellerName,
	})
	if err != nil {
		return 0, err
	}

	for _, userID := range userIDs {
		e.enqueueRecord(userID)
	}

	e.log.Info("boost notifications sent",
		zap.Int64("listing_id", listing.ID),
		zap.Int("pool_size", len(pool)),
		zap.Int("selected", len(userIDs)),
		zap.Int("delivered", delivered),
	)

	return delivered, nil
}

// assemblePool fetches recent active users and drops everyone already
// at the notification cap, keeping at most PoolSize survivors. The
// over-fetch covers positions freed up by capped users.
func (e *Engine) assemblePool(ctx context.Context, listing pgrepo.ListingRecord) ([]pgrepo.CandidateRecord, error) {
	fetched, err := e.candidates.List(ctx, pgrepo.CandidateQuery{
		ExcludeUserID: listing.OwnerID,
		Region:        listing.Region,
		Limit:         e.cfg.PoolSize * 2,
	})
	if err != nil {
		return nil, err
	}

	pool := make([]pgrepo.CandidateRecord, 0, e.cfg.PoolSize)
	for _, candidate := range fetched {
		if len(pool) == e.cfg.PoolSize {
			break
		}
		count, err := e.spam.Count(ctx, candidate.UserID)
		if err != nil {
			// A broken ledger must not block a paid boost. Treat the
			// user as capped and move on.
			e.log.Warn("spam ledger lookup failed",
				zap.Int64("user_id", candidate.UserID),
				zap.Error(err),
			)
			continue
		}
		if count >= rules.BoostNotificationCap {
			continue
		}
		pool = append(pool, candidate)
	}

	return pool, nil
}

func (e *Engine) enqueueRecord(userID int64) {
	select {
	case e.recordQueue <- userID:
	default:
		e.log.Warn("spam record queue full, dropping record", zap.Int64("user_id", userID))
	}
}

func (e *Engine) recordWorker() {
	defer e.wg.Done()
	for userID := range e.recordQueue {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if _, err := e.spam.Record(ctx, userID); err != nil {
			e.log.Warn("record boost notification failed",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// scoreCandidate rates how interested a candidate is likely to be in
// the listing. Every pool member starts at the baseline; an unresolved
// want matching the listing's category adds the strongest signal, a
// cart item in the same category adds a weaker one.
func scoreCandidate(candidate pgrepo.CandidateRecord, listing pgrepo.ListingRecord) int {
	score := scoreBaseline

	category := strings.ToLower(listing.Category)

	for _, want := range candidate.WantTerms {
		term := strings.ToLower(strings.TrimSpace(want))
		if term == "" {
			continue
		}
		if strings.Contains(category, term) {
			score += scoreWantMatch
			break
		}
	}

	for _, item := range candidate.CartItems {
		if strings.EqualFold(strings.TrimSpace(item), listing.Category) {
			score += scoreCartMatch
			break
		}
	}

	return score
}
