package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// OutcomeStore implements domain.OutcomeStore using PostgreSQL.
type OutcomeStore struct {
	pool *pgxpool.Pool
}

// NewOutcomeStore creates a new OutcomeStore backed by the given connection pool.
func NewOutcomeStore(pool *pgxpool.Pool) *OutcomeStore {
	return &OutcomeStore{pool: pool}
}

// Pin inserts the outcome as scheduled if the event has no row yet and
// returns the stored outcome, which is the earlier one when two derivations
// race.
func (s *OutcomeStore) Pin(ctx context.Context, o domain.Outcome) (domain.Outcome, error) {
	payload, err := json.Marshal(o)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("postgres: marshal outcome %s: %w", o.EventID, err)
	}

	const query = `
		WITH ins AS (
			INSERT INTO outcomes (
				event_id, round_slot, category, region, kind,
				status, winner_index, payload
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (event_id) DO NOTHING
			RETURNING payload
		)
		SELECT payload FROM ins
		UNION ALL
		SELECT payload FROM outcomes WHERE event_id = $1
		LIMIT 1`

	id := o.EventID
	var stored []byte
	err = s.pool.QueryRow(ctx, query,
		id.String(), id.Round, id.Category, id.RegionSlug(), string(o.Kind),
		string(domain.EventStatusScheduled), o.WinnerIndex, payload,
	).Scan(&stored)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("postgres: pin outcome %s: %w", id, err)
	}
	return decodeOutcome(id, stored)
}

// Pinned returns the stored outcome of an event in any status.
func (s *OutcomeStore) Pinned(ctx context.Context, id domain.EventID) (domain.Outcome, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM outcomes WHERE event_id = $1`, id.String(),
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Outcome{}, fmt.Errorf("postgres: outcome %s: %w", id, domain.ErrNotFound)
		}
		return domain.Outcome{}, fmt.Errorf("postgres: get pinned outcome %s: %w", id, err)
	}
	return decodeOutcome(id, payload)
}

// Save marks the event final. A pinned outcome keeps its payload; without one
// the given outcome is inserted. Voided and already final events are left
// untouched and Save reports false.
func (s *OutcomeStore) Save(ctx context.Context, o domain.Outcome) (bool, error) {
	payload, err := json.Marshal(o)
	if err != nil {
		return false, fmt.Errorf("postgres: marshal outcome %s: %w", o.EventID, err)
	}

	const query = `
		INSERT INTO outcomes (
			event_id, round_slot, category, region, kind,
			status, winner_index, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO UPDATE SET
			status       = EXCLUDED.status,
			finalized_at = NOW()
		WHERE outcomes.status = 'scheduled'`

	id := o.EventID
	tag, err := s.pool.Exec(ctx, query,
		id.String(), id.Round, id.Category, id.RegionSlug(), string(o.Kind),
		string(domain.EventStatusFinal), o.WinnerIndex, payload,
	)
	if err != nil {
		return false, fmt.Errorf("postgres: save outcome %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Get returns the stored outcome of a final or voided event. Events voided
// before simulation have no payload and report ErrEventVoided.
func (s *OutcomeStore) Get(ctx context.Context, id domain.EventID) (domain.Outcome, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM outcomes WHERE event_id = $1 AND status <> 'scheduled'`, id.String(),
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Outcome{}, fmt.Errorf("postgres: outcome %s: %w", id, domain.ErrNotFound)
		}
		return domain.Outcome{}, fmt.Errorf("postgres: get outcome %s: %w", id, err)
	}
	return decodeOutcome(id, payload)
}

func decodeOutcome(id domain.EventID, payload []byte) (domain.Outcome, error) {
	if payload == nil {
		return domain.Outcome{}, fmt.Errorf("postgres: outcome %s: %w", id, domain.ErrEventVoided)
	}
	var o domain.Outcome
	if err := json.Unmarshal(payload, &o); err != nil {
		return domain.Outcome{}, fmt.Errorf("postgres: unmarshal outcome %s: %w", id, err)
	}
	return o, nil
}

// Status reports the lifecycle state of an event; events without a row are
// still scheduled.
func (s *OutcomeStore) Status(ctx context.Context, id domain.EventID) (domain.EventStatus, error) {
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT status FROM outcomes WHERE event_id = $1`, id.String(),
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.EventStatusScheduled, nil
		}
		return "", fmt.Errorf("postgres: outcome status %s: %w", id, err)
	}
	return domain.EventStatus(status), nil
}

// MarkVoid records the event as void, keeping any stored payload for audit.
func (s *OutcomeStore) MarkVoid(ctx context.Context, id domain.EventID, reason string) error {
	const query = `
		INSERT INTO outcomes (event_id, round_slot, category, region, status, void_reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO UPDATE SET
			status      = EXCLUDED.status,
			void_reason = EXCLUDED.void_reason`

	_, err := s.pool.Exec(ctx, query,
		id.String(), id.Round, id.Category, id.RegionSlug(),
		string(domain.EventStatusVoid), reason,
	)
	if err != nil {
		return fmt.Errorf("postgres: void outcome %s: %w", id, err)
	}
	return nil
}

// ListFinalized returns ids of final events, oldest first, filtered by
// finalization time.
func (s *OutcomeStore) ListFinalized(ctx context.Context, opts domain.ListOpts) ([]domain.EventID, error) {
	query, args := appendListOpts(`SELECT event_id FROM outcomes WHERE status = 'final'`,
		nil, opts, "finalized_at", "ASC")

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list finalized outcomes: %w", err)
	}
	defer rows.Close()
	return collectEventIDs(rows)
}

// Prune deletes final outcomes finalized before the cutoff. Callers archive
// them first; settlement falls back to the archive afterwards.
func (s *OutcomeStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM outcomes WHERE status = 'final' AND finalized_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: prune outcomes: %w", err)
	}
	return tag.RowsAffected(), nil
}

func collectEventIDs(rows pgx.Rows) ([]domain.EventID, error) {
	var ids []domain.EventID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("postgres: scan event id: %w", err)
		}
		id, err := domain.ParseEventID(raw)
		if err != nil {
			return nil, fmt.Errorf("postgres: stored event id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: event id rows: %w", err)
	}
	return ids, nil
}
