package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CandidateRepo backs the boost targeting engine's broad fetch against
// the user directory.
type CandidateRepo struct {
	pool *pgxpool.Pool
}

type CandidateRecord struct {
	UserID       int64
	DisplayName  string
	Region       string
	LastActiveAt time.Time
	WantTerms    []string
	CartItems    []string
}

type CandidateQuery struct {
	ExcludeUserID int64
	Region        string
	Limit         int
}

func NewCandidateRepo(pool *pgxpool.Pool) *CandidateRepo {
	return &CandidateRepo{pool: pool}
}

// List returns active users ordered most-recently-active first. Region
// filtering applies only when the listing carries a region. Unresolved
// want terms and cart item categories ride along for scoring.
func (r *CandidateRepo) List(ctx context.Context, q CandidateQuery) ([]CandidateRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if q.ExcludeUserID <= 0 {
		return nil, fmt.Errorf("invalid candidate query")
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}

	region := strings.TrimSpace(q.Region)
	rows, err := r.pool.Query(ctx, `
SELECT
	u.id,
	u.display_name,
	u.region,
	u.last_active_at,
	COALESCE(w.terms, '{}'),
	COALESCE(c.items, '{}')
FROM users u
LEFT JOIN (
	SELECT user_id, array_agg(term) AS terms
	FROM wants
	WHERE resolved = FALSE
	GROUP BY user_id
) w ON w.user_id = u.id
LEFT JOIN (
	SELECT user_id, array_agg(category) AS items
	FROM cart_items
	GROUP BY user_id
) c ON c.user_id = u.id
WHERE u.id <> $1
  AND u.status = 'active'
  AND ($2 = '' OR u.region = $2)
ORDER BY u.last_active_at DESC
LIMIT $3
`, q.ExcludeUserID, region, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("list boost candidates: %w", err)
	}
	defer rows.Close()

	var records []CandidateRecord
	for rows.Next() {
		var record CandidateRecord
		if err := rows.Scan(
			&record.UserID,
			&record.DisplayName,
			&record.Region,
			&record.LastActiveAt,
			&record.WantTerms,
			&record.CartItems,
		); err != nil {
			return nil, fmt.Errorf("scan candidate row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidate rows: %w", err)
	}

	return records, nil
}
