package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// OverrideStore implements domain.OverrideStore using PostgreSQL.
type OverrideStore struct {
	pool *pgxpool.Pool
}

// NewOverrideStore creates a new OverrideStore backed by the given connection pool.
func NewOverrideStore(pool *pgxpool.Pool) *OverrideStore {
	return &OverrideStore{pool: pool}
}

// Set stores the operator's result for a market, replacing an earlier one.
func (s *OverrideStore) Set(ctx context.Context, o domain.ManualOverride) error {
	const query = `
		INSERT INTO manual_overrides (event_id, market, outcome, operator, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id, market) DO UPDATE SET
			outcome    = EXCLUDED.outcome,
			operator   = EXCLUDED.operator,
			created_at = EXCLUDED.created_at`

	_, err := s.pool.Exec(ctx, query,
		o.EventID.String(), o.Market, o.Outcome, o.Operator, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: set override %s %q: %w", o.EventID, o.Market, err)
	}
	return nil
}

// ListByEvent returns the overrides of an event, oldest first.
func (s *OverrideStore) ListByEvent(ctx context.Context, id domain.EventID) ([]domain.ManualOverride, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT market, outcome, operator, created_at FROM manual_overrides
		WHERE event_id = $1
		ORDER BY created_at ASC`, id.String())
	if err != nil {
		return nil, fmt.Errorf("postgres: list overrides %s: %w", id, err)
	}
	defer rows.Close()

	var out []domain.ManualOverride
	for rows.Next() {
		o := domain.ManualOverride{EventID: id}
		if err := rows.Scan(&o.Market, &o.Outcome, &o.Operator, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan override: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: override rows: %w", err)
	}
	return out, nil
}
