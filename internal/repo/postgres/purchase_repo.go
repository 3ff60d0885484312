package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrPurchaseNotFound  = errors.New("purchase not found")
	ErrReferenceConflict = errors.New("purchase reference already exists")
)

type PurchaseRepo struct {
	pool *pgxpool.Pool
}

type PurchaseRecord struct {
	ID               int64
	UserID           int64
	Type             string
	AmountMinorUnits int64
	Currency         string
	ListingID        *int64
	Reference        string
	Status           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func NewPurchaseRepo(pool *pgxpool.Pool) *PurchaseRepo {
	return &PurchaseRepo{pool: pool}
}

func (r *PurchaseRepo) CreatePending(ctx context.Context, userID int64, purchaseType string, amount int64, currency string, listingID *int64, reference string) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || strings.TrimSpace(purchaseType) == "" || strings.TrimSpace(reference) == "" || amount < 0 {
		return PurchaseRecord{}, fmt.Errorf("invalid purchase create payload")
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
INSERT INTO purchases (
	user_id,
	purchase_type,
	amount_minor_units,
	currency,
	listing_id,
	reference,
	status,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, 'pending', NOW(), NOW())
RETURNING id, user_id, purchase_type, amount_minor_units, currency, listing_id, reference, status, created_at, updated_at
`, userID, strings.ToLower(strings.TrimSpace(purchaseType)), amount, strings.ToUpper(strings.TrimSpace(currency)), listingID, strings.TrimSpace(reference)))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return PurchaseRecord{}, ErrReferenceConflict
		}
		return PurchaseRecord{}, fmt.Errorf("create pending purchase: %w", err)
	}

	return record, nil
}

func (r *PurchaseRepo) FindByReference(ctx context.Context, reference string) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return PurchaseRecord{}, fmt.Errorf("purchase reference is required")
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
SELECT id, user_id, purchase_type, amount_minor_units, currency, listing_id, reference, status, created_at, updated_at
FROM purchases
WHERE reference = $1
LIMIT 1
`, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRecord{}, ErrPurchaseNotFound
		}
		return PurchaseRecord{}, fmt.Errorf("find purchase by reference: %w", err)
	}

	return record, nil
}

// TransitionFromPending moves a pending purchase to a terminal status as
// a single conditional write. The boolean reports whether this caller
// won the transition; a false result with a nil error means another
// caller already moved the record.
func (r *PurchaseRepo) TransitionFromPending(ctx context.Context, reference, toStatus string) (PurchaseRecord, bool, error) {
	if r.pool == nil {
		return PurchaseRecord{}, false, fmt.Errorf("postgres pool is nil")
	}
	reference = strings.TrimSpace(reference)
	toStatus = strings.ToLower(strings.TrimSpace(toStatus))
	if reference == "" {
		return PurchaseRecord{}, false, fmt.Errorf("purchase reference is required")
	}
	if toStatus != "completed" && toStatus != "failed" {
		return PurchaseRecord{}, false, fmt.Errorf("invalid terminal purchase status %q", toStatus)
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
UPDATE purchases
SET
	status = $2,
	updated_at = NOW()
WHERE reference = $1
  AND status = 'pending'
RETURNING id, user_id, purchase_type, amount_minor_units, currency, listing_id, reference, status, created_at, updated_at
`, reference, toStatus))
	if err == nil {
		return record, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return PurchaseRecord{}, false, fmt.Errorf("transition purchase: %w", err)
	}

	existing, err := r.FindByReference(ctx, reference)
	if err != nil {
		return PurchaseRecord{}, false, err
	}
	return existing, false, nil
}

func (r *PurchaseRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]PurchaseRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, purchase_type, amount_minor_units, currency, listing_id, reference, status, created_at, updated_at
FROM purchases
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list purchases by user: %w", err)
	}
	defer rows.Close()

	var records []PurchaseRecord
	for rows.Next() {
		record, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase rows: %w", err)
	}

	return records, nil
}

func scanPurchase(row pgx.Row) (PurchaseRecord, error) {
	var record PurchaseRecord
	if err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.Type,
		&record.AmountMinorUnits,
		&record.Currency,
		&record.ListingID,
		&record.Reference,
		&record.Status,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return PurchaseRecord{}, err
	}
	return record, nil
}
