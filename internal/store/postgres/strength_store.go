package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// StrengthStore implements domain.StrengthStore using PostgreSQL.
type StrengthStore struct {
	pool *pgxpool.Pool
}

// NewStrengthStore creates a new StrengthStore backed by the given connection pool.
func NewStrengthStore(pool *pgxpool.Pool) *StrengthStore {
	return &StrengthStore{pool: pool}
}

// Snapshot reads every learned strength into a fresh map owned by the caller.
func (s *StrengthStore) Snapshot(ctx context.Context) (map[string]float64, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, strength FROM strengths`)
	if err != nil {
		return nil, fmt.Errorf("postgres: strength snapshot: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var (
			name     string
			strength float64
		)
		if err := rows.Scan(&name, &strength); err != nil {
			return nil, fmt.Errorf("postgres: scan strength: %w", err)
		}
		out[name] = strength
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: strength rows: %w", err)
	}
	return out, nil
}

// Upsert records the latest learned strength of a participant.
func (s *StrengthStore) Upsert(ctx context.Context, name string, strength float64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO strengths (name, strength, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET
			strength   = EXCLUDED.strength,
			updated_at = NOW()`, name, strength)
	if err != nil {
		return fmt.Errorf("postgres: upsert strength %s: %w", name, err)
	}
	return nil
}
