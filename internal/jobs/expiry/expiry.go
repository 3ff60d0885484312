package expiry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type spotlightStore interface {
	ClearExpiredSpotlights(ctx context.Context, now time.Time) (int64, error)
}

type premiumStore interface {
	DowngradeLapsedPremium(ctx context.Context, now time.Time) (int64, error)
}

// Job sweeps lapsed paid state: spotlights past their expiry lose the
// featured flag, and premium users with no live subscription fall back
// to the free tier. One Run is one pass; the caller owns the schedule.
type Job struct {
	listings spotlightStore
	users    premiumStore
	now      func() time.Time
	logger   *zap.Logger
}

func New(listings spotlightStore, users premiumStore, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		listings: listings,
		users:    users,
		now:      time.Now,
		logger:   logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	now := j.now().UTC()

	if j.listings != nil {
		cleared, err := j.listings.ClearExpiredSpotlights(ctx, now)
		if err != nil {
			return fmt.Errorf("clear expired spotlights: %w", err)
		}
		if cleared > 0 {
			j.logger.Info("expired spotlights cleared", zap.Int64("listings", cleared))
		}
	}

	if j.users != nil {
		downgraded, err := j.users.DowngradeLapsedPremium(ctx, now)
		if err != nil {
			return fmt.Errorf("downgrade lapsed premium: %w", err)
		}
		if downgraded > 0 {
			j.logger.Info("lapsed premium users downgraded", zap.Int64("users", downgraded))
		}
	}

	return nil
}

// Loop runs the sweep on the given interval until the context ends.
func (j *Job) Loop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Warn("expiry sweep failed", zap.Error(err))
			}
		}
	}
}
