package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// RosterStore implements domain.RosterStore using PostgreSQL. Rosters are
// maintained by the admin tooling; this side only reads them.
type RosterStore struct {
	pool *pgxpool.Pool
}

// NewRosterStore creates a new RosterStore backed by the given connection pool.
func NewRosterStore(pool *pgxpool.Pool) *RosterStore {
	return &RosterStore{pool: pool}
}

// ListParticipants returns the members of a pool ordered by name, so the
// simulator sees the same list regardless of insertion order.
func (s *RosterStore) ListParticipants(ctx context.Context, poolID string) ([]domain.Participant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.name, p.region, p.ranked
		FROM pool_members m
		JOIN participants p ON p.name = m.name
		WHERE m.pool_id = $1
		ORDER BY p.name`, poolID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pool %s: %w", poolID, err)
	}
	defer rows.Close()
	return scanParticipants(rows)
}

// NationalPool returns the curated fallback pool.
func (s *RosterStore) NationalPool(ctx context.Context) ([]domain.Participant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, region, ranked FROM participants
		WHERE national
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list national pool: %w", err)
	}
	defer rows.Close()
	return scanParticipants(rows)
}

func scanParticipants(rows pgx.Rows) ([]domain.Participant, error) {
	var out []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.Name, &p.Region, &p.Ranked); err != nil {
			return nil, fmt.Errorf("postgres: scan participant: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: participant rows: %w", err)
	}
	return out, nil
}
