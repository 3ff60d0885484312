package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrQuotaUserNotFound = errors.New("quota user not found")

// QuotaFamily selects one of the per-user daily counters.
type QuotaFamily string

const (
	QuotaFamilyChat  QuotaFamily = "chat"
	QuotaFamilyPost  QuotaFamily = "post"
	QuotaFamilyOffer QuotaFamily = "offer"
)

func (f QuotaFamily) valid() bool {
	switch f {
	case QuotaFamilyChat, QuotaFamilyPost, QuotaFamilyOffer:
		return true
	default:
		return false
	}
}

// column names are derived from the closed family set, never from
// caller input.
func (f QuotaFamily) columns() (countCol, resetCol string) {
	switch f {
	case QuotaFamilyPost:
		return "post_count", "post_reset_at"
	case QuotaFamilyOffer:
		return "offer_count", "offer_reset_at"
	default:
		return "chat_count", "chat_reset_at"
	}
}

type QuotaRepo struct {
	pool *pgxpool.Pool
}

type QuotaStateRecord struct {
	UserID           int64
	Tier             string
	Timezone         string
	ChatPassExpiry   *time.Time
	SpotlightCredits int
	ChatCount        int
	ChatResetAt      time.Time
	PostCount        int
	PostResetAt      time.Time
	OfferCount       int
	OfferResetAt     time.Time
}

func NewQuotaRepo(pool *pgxpool.Pool) *QuotaRepo {
	return &QuotaRepo{pool: pool}
}

// GetState loads the user's tier and all daily counters. Quota rows are
// created lazily, so a missing user_quotas row reads as zero counters
// with zero reset timestamps; a missing user is an error (quota checks
// fail closed).
func (r *QuotaRepo) GetState(ctx context.Context, userID int64) (QuotaStateRecord, error) {
	if r.pool == nil {
		return QuotaStateRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return QuotaStateRecord{}, fmt.Errorf("invalid user id")
	}

	var record QuotaStateRecord
	epoch := time.Time{}
	err := r.pool.QueryRow(ctx, `
SELECT
	u.id,
	u.tier,
	u.timezone,
	u.chat_pass_expires_at,
	u.spotlight_credits,
	COALESCE(q.chat_count, 0),
	COALESCE(q.chat_reset_at, $2),
	COALESCE(q.post_count, 0),
	COALESCE(q.post_reset_at, $2),
	COALESCE(q.offer_count, 0),
	COALESCE(q.offer_reset_at, $2)
FROM users u
LEFT JOIN user_quotas q ON q.user_id = u.id
WHERE u.id = $1
LIMIT 1
`, userID, epoch).Scan(
		&record.UserID,
		&record.Tier,
		&record.Timezone,
		&record.ChatPassExpiry,
		&record.SpotlightCredits,
		&record.ChatCount,
		&record.ChatResetAt,
		&record.PostCount,
		&record.PostResetAt,
		&record.OfferCount,
		&record.OfferResetAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return QuotaStateRecord{}, ErrQuotaUserNotFound
		}
		return QuotaStateRecord{}, fmt.Errorf("get quota state: %w", err)
	}

	return record, nil
}

// ResetIfStale zeroes one family's counter and stamps the reset time,
// but only when the stored timestamp predates the given day boundary.
// The conditional write keeps two concurrent checks from both resetting
// and both granting a stale allowance.
func (r *QuotaRepo) ResetIfStale(ctx context.Context, userID int64, family QuotaFamily, dayStart, now time.Time) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || !family.valid() {
		return false, fmt.Errorf("invalid quota reset payload")
	}

	countCol, resetCol := family.columns()
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`
INSERT INTO user_quotas (user_id, %[1]s, %[2]s, updated_at)
VALUES ($1, 0, $3, NOW())
ON CONFLICT (user_id) DO UPDATE SET
	%[1]s = 0,
	%[2]s = $3,
	updated_at = NOW()
WHERE user_quotas.%[2]s < $2
`, countCol, resetCol), userID, dayStart.UTC(), now.UTC())
	if err != nil {
		return false, fmt.Errorf("reset %s quota: %w", family, err)
	}

	return tag.RowsAffected() > 0, nil
}

// Increment adds one to a family counter. It deliberately performs no
// reset check; callers run Check first within the same logical
// operation, and a stray increment on a stale row is corrected by the
// next reset.
func (r *QuotaRepo) Increment(ctx context.Context, userID int64, family QuotaFamily, now time.Time) (int, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || !family.valid() {
		return 0, fmt.Errorf("invalid quota increment payload")
	}

	countCol, resetCol := family.columns()
	var count int
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`
INSERT INTO user_quotas (user_id, %[1]s, %[2]s, updated_at)
VALUES ($1, 1, $2, NOW())
ON CONFLICT (user_id) DO UPDATE SET
	%[1]s = user_quotas.%[1]s + 1,
	updated_at = NOW()
RETURNING %[1]s
`, countCol, resetCol), userID, now.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment %s quota: %w", family, err)
	}

	return count, nil
}
