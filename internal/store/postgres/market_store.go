package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// SaveAll stores the priced market set of an event in a single batch. A
// market that already exists keeps its original prices.
func (s *MarketStore) SaveAll(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO markets (
			event_id, name, position, kind, round,
			subject, line, status, selections, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (event_id, name) DO NOTHING`

	for i, m := range markets {
		sel, err := json.Marshal(m.Selections)
		if err != nil {
			return fmt.Errorf("postgres: marshal selections %s %q: %w", m.EventID, m.Name, err)
		}
		status := m.Status
		if status == "" {
			status = domain.MarketStatusOpen
		}
		batch.Queue(query,
			m.EventID.String(), m.Name, i, string(m.Kind), m.Round,
			m.Subject, m.Line, string(status), sel, m.UpdatedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: save market batch item %d: %w", i, err)
		}
	}
	return nil
}

const marketCols = `event_id, name, kind, round, subject, line, status, selections, updated_at`

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m       domain.Market
		id      string
		kind    string
		status  string
		selJSON []byte
	)
	err := row.Scan(&id, &m.Name, &kind, &m.Round, &m.Subject, &m.Line, &status, &selJSON, &m.UpdatedAt)
	if err != nil {
		return domain.Market{}, err
	}
	m.EventID, err = domain.ParseEventID(id)
	if err != nil {
		return domain.Market{}, err
	}
	if err := json.Unmarshal(selJSON, &m.Selections); err != nil {
		return domain.Market{}, fmt.Errorf("unmarshal selections: %w", err)
	}
	m.Kind = domain.MarketKind(kind)
	m.Status = domain.MarketStatus(status)
	return m, nil
}

func collectMarkets(rows pgx.Rows) ([]domain.Market, error) {
	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: market rows: %w", err)
	}
	return markets, nil
}

// ListByEvent returns the markets of an event in pricing order.
func (s *MarketStore) ListByEvent(ctx context.Context, id domain.EventID) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM markets WHERE event_id = $1 ORDER BY position`, id.String())
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets %s: %w", id, err)
	}
	defer rows.Close()
	return collectMarkets(rows)
}

// Get retrieves one market by event and exact name.
func (s *MarketStore) Get(ctx context.Context, id domain.EventID, name string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE event_id = $1 AND name = $2`, id.String(), name)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, fmt.Errorf("postgres: market %s %q: %w", id, name, domain.ErrNotFound)
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s %q: %w", id, name, err)
	}
	return m, nil
}

// UpdatePrices replaces the selections of an open market.
func (s *MarketStore) UpdatePrices(ctx context.Context, m domain.Market) error {
	sel, err := json.Marshal(m.Selections)
	if err != nil {
		return fmt.Errorf("postgres: marshal selections %s %q: %w", m.EventID, m.Name, err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE markets SET selections = $3, updated_at = $4
		WHERE event_id = $1 AND name = $2 AND status = 'open'`,
		m.EventID.String(), m.Name, sel, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update prices %s %q: %w", m.EventID, m.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update prices %s %q: %w", m.EventID, m.Name, domain.ErrMarketLocked)
	}
	return nil
}

// SetStatus moves every market of an event to status. Statuses only move
// forward: open -> locked -> settled.
func (s *MarketStore) SetStatus(ctx context.Context, id domain.EventID, status domain.MarketStatus) error {
	var from []string
	switch status {
	case domain.MarketStatusLocked:
		from = []string{string(domain.MarketStatusOpen)}
	case domain.MarketStatusSettled:
		from = []string{string(domain.MarketStatusOpen), string(domain.MarketStatusLocked)}
	default:
		return fmt.Errorf("postgres: set market status %s: unsupported status %q", id, status)
	}

	_, err := s.pool.Exec(ctx, `
		UPDATE markets SET status = $2, updated_at = NOW()
		WHERE event_id = $1 AND status = ANY($3)`,
		id.String(), string(status), from,
	)
	if err != nil {
		return fmt.Errorf("postgres: set market status %s: %w", id, err)
	}
	return nil
}

// ListOpen returns open markets, least recently re-priced first.
func (s *MarketStore) ListOpen(ctx context.Context, limit int) ([]domain.Market, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM markets WHERE status = 'open' ORDER BY updated_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open markets: %w", err)
	}
	defer rows.Close()
	return collectMarkets(rows)
}
