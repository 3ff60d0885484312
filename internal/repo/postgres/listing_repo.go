package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrListingNotFound = errors.New("listing not found")

type ListingRepo struct {
	pool *pgxpool.Pool
}

type ListingRecord struct {
	ID                   int64
	OwnerID              int64
	Title                string
	Category             string
	Region               string
	SellerName           string
	SpotlightExpiry      *time.Time
	IsFeatured           bool
	IsCrossListed        bool
	PushNotificationSent bool
}

func NewListingRepo(pool *pgxpool.Pool) *ListingRepo {
	return &ListingRepo{pool: pool}
}

func (r *ListingRepo) Get(ctx context.Context, listingID int64) (ListingRecord, error) {
	if r.pool == nil {
		return ListingRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if listingID <= 0 {
		return ListingRecord{}, fmt.Errorf("invalid listing id")
	}

	var record ListingRecord
	err := r.pool.QueryRow(ctx, `
SELECT
	l.id,
	l.owner_id,
	l.title,
	l.category,
	l.region,
	u.display_name,
	l.spotlight_expires_at,
	l.is_featured,
	l.is_cross_listed,
	l.push_notification_sent
FROM listings l
JOIN users u ON u.id = l.owner_id
WHERE l.id = $1
LIMIT 1
`, listingID).Scan(
		&record.ID,
		&record.OwnerID,
		&record.Title,
		&record.Category,
		&record.Region,
		&record.SellerName,
		&record.SpotlightExpiry,
		&record.IsFeatured,
		&record.IsCrossListed,
		&record.PushNotificationSent,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ListingRecord{}, ErrListingNotFound
		}
		return ListingRecord{}, fmt.Errorf("get listing: %w", err)
	}

	return record, nil
}

func (r *ListingRepo) SetCrossListed(ctx context.Context, listingID int64) error {
	return r.setFlags(ctx, listingID, `
UPDATE listings
SET is_cross_listed = TRUE, updated_at = NOW()
WHERE id = $1
`)
}

// MarkBoosted records an aggressive boost: the listing enters the
// general feed and is flagged as having had its push campaign fired.
func (r *ListingRepo) MarkBoosted(ctx context.Context, listingID int64) error {
	return r.setFlags(ctx, listingID, `
UPDATE listings
SET is_cross_listed = TRUE, push_notification_sent = TRUE, updated_at = NOW()
WHERE id = $1
`)
}

func (r *ListingRepo) ApplySpotlight(ctx context.Context, listingID int64, expiry time.Time) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if listingID <= 0 {
		return fmt.Errorf("invalid listing id")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE listings
SET
	spotlight_expires_at = $2,
	is_featured = TRUE,
	updated_at = NOW()
WHERE id = $1
`, listingID, expiry.UTC())
	if err != nil {
		return fmt.Errorf("apply spotlight: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrListingNotFound
	}

	return nil
}

func (r *ListingRepo) setFlags(ctx context.Context, listingID int64, query string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if listingID <= 0 {
		return fmt.Errorf("invalid listing id")
	}

	tag, err := r.pool.Exec(ctx, query, listingID)
	if err != nil {
		return fmt.Errorf("update listing flags: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrListingNotFound
	}

	return nil
}

// ClearExpiredSpotlights unfeatures every listing whose spotlight has
// lapsed and returns how many rows were touched.
func (r *ListingRepo) ClearExpiredSpotlights(ctx context.Context, now time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE listings
SET
	is_featured = FALSE,
	spotlight_expires_at = NULL,
	updated_at = NOW()
WHERE spotlight_expires_at IS NOT NULL
  AND spotlight_expires_at < $1
`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("clear expired spotlights: %w", err)
	}

	return tag.RowsAffected(), nil
}
