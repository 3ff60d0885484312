package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrNotPremium         = errors.New("user is not premium")
	ErrNoSpotlightCredits = errors.New("no spotlight credits remaining")
)

type UserRepo struct {
	pool *pgxpool.Pool
}

type UserRecord struct {
	ID               int64
	DisplayName      string
	Email            string
	Tier             string
	ChatPassExpiry   *time.Time
	SpotlightCredits int
	Region           string
	Timezone         string
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Get(ctx context.Context, userID int64) (UserRecord, error) {
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return UserRecord{}, fmt.Errorf("invalid user id")
	}

	var record UserRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, display_name, email, tier, chat_pass_expires_at, spotlight_credits, region, timezone
FROM users
WHERE id = $1
LIMIT 1
`, userID).Scan(
		&record.ID,
		&record.DisplayName,
		&record.Email,
		&record.Tier,
		&record.ChatPassExpiry,
		&record.SpotlightCredits,
		&record.Region,
		&record.Timezone,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("get user: %w", err)
	}

	return record, nil
}

// UpgradeToPremium promotes the user, grants spotlight credits and
// records the subscription in one transaction. A tier change without a
// subscription row (or the reverse) is not a valid state.
func (r *UserRepo) UpgradeToPremium(ctx context.Context, userID, purchaseID int64, credits int, startedAt, expiresAt time.Time) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || purchaseID <= 0 || credits < 0 {
		return fmt.Errorf("invalid premium upgrade payload")
	}

	return WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
UPDATE users
SET
	tier = 'premium',
	spotlight_credits = spotlight_credits + $2,
	updated_at = NOW()
WHERE id = $1
`, userID, credits)
		if err != nil {
			return fmt.Errorf("set premium tier: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrUserNotFound
		}

		if _, err := tx.Exec(ctx, `
INSERT INTO subscriptions (user_id, purchase_id, started_at, expires_at)
VALUES ($1, $2, $3, $4)
`, userID, purchaseID, startedAt.UTC(), expiresAt.UTC()); err != nil {
			return fmt.Errorf("insert subscription: %w", err)
		}

		return nil
	})
}

// ConsumeSpotlightCredit decrements the credit balance by one, guarded
// on tier and a positive balance so a losing concurrent caller mutates
// nothing.
func (r *UserRepo) ConsumeSpotlightCredit(ctx context.Context, userID int64) (int, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}

	var remaining int
	err := r.pool.QueryRow(ctx, `
UPDATE users
SET
	spotlight_credits = spotlight_credits - 1,
	updated_at = NOW()
WHERE id = $1
  AND tier = 'premium'
  AND spotlight_credits > 0
RETURNING spotlight_credits
`, userID).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("consume spotlight credit: %w", err)
	}

	record, lookupErr := r.Get(ctx, userID)
	if lookupErr != nil {
		return 0, lookupErr
	}
	if record.Tier != "premium" {
		return 0, ErrNotPremium
	}
	return 0, ErrNoSpotlightCredits
}

// DowngradeLapsedPremium moves premium users with no live subscription
// back to the free tier and forfeits their unused credits.
func (r *UserRepo) DowngradeLapsedPremium(ctx context.Context, now time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE users u
SET
	tier = 'free',
	spotlight_credits = 0,
	updated_at = NOW()
WHERE u.tier = 'premium'
  AND NOT EXISTS (
	SELECT 1
	FROM subscriptions s
	WHERE s.user_id = u.id
	  AND s.expires_at > $1
  )
`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("downgrade lapsed premium: %w", err)
	}

	return tag.RowsAffected(), nil
}
