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

// BetStore implements domain.BetStore using PostgreSQL. Legs live in their own
// table so settlement can find pending work by event.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a new BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

const betSelectCols = `id::text, user_id, mode, terms, status, total_odds, payout, version, placed_at, settled_at`

const legSelectCols = `id::text, bet_id::text, event_id, market, selection, odds, stake,
	status, effective_odds, settled_at`

// Create inserts the bet and its legs in one transaction.
func (s *BetStore) Create(ctx context.Context, bet domain.Bet) error {
	terms, err := json.Marshal(bet.Terms)
	if err != nil {
		return fmt.Errorf("postgres: marshal terms %s: %w", bet.ID, err)
	}

	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO bets (
				id, user_id, mode, terms, stake, status,
				total_odds, payout, version, placed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			bet.ID, bet.UserID, string(bet.Mode()), terms, bet.TotalStake(), string(bet.Status),
			bet.TotalOdds, bet.Payout, bet.Version, bet.PlacedAt,
		)
		if err != nil {
			return fmt.Errorf("postgres: create bet %s: %w", bet.ID, err)
		}

		batch := &pgx.Batch{}
		for i, l := range bet.Legs {
			batch.Queue(`
				INSERT INTO bet_legs (
					id, bet_id, position, event_id, round_slot, market, selection,
					odds, stake, status, effective_odds
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				l.ID, bet.ID, i, l.EventID.String(), l.EventID.Round, l.Market, l.Selection,
				l.Odds, l.Stake, string(l.Status), l.EffectiveOdds,
			)
		}
		br := tx.SendBatch(ctx, batch)
		for i := range bet.Legs {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("postgres: create bet %s leg %d: %w", bet.ID, i, err)
			}
		}
		return br.Close()
	})
}

func scanBetRow(row pgx.Row) (domain.Bet, error) {
	var (
		b      domain.Bet
		mode   string
		terms  []byte
		status string
	)
	err := row.Scan(&b.ID, &b.UserID, &mode, &terms, &status,
		&b.TotalOdds, &b.Payout, &b.Version, &b.PlacedAt, &b.SettledAt)
	if err != nil {
		return domain.Bet{}, err
	}
	b.Terms, err = domain.DecodeTerms(domain.BetMode(mode), terms)
	if err != nil {
		return domain.Bet{}, err
	}
	b.Status = domain.BetStatus(status)
	return b, nil
}

// GetByID retrieves a bet and its legs.
func (s *BetStore) GetByID(ctx context.Context, id string) (domain.Bet, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+betSelectCols+` FROM bets WHERE id::text = $1`, id)
	b, err := scanBetRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bet{}, fmt.Errorf("postgres: bet %s: %w", id, domain.ErrNotFound)
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet %s: %w", id, err)
	}

	bets := []domain.Bet{b}
	if err := s.attachLegs(ctx, bets); err != nil {
		return domain.Bet{}, err
	}
	return bets[0], nil
}

// ListByUser returns a user's bets, newest first.
func (s *BetStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Bet, error) {
	query, args := appendListOpts(`SELECT `+betSelectCols+` FROM bets WHERE user_id = $1`,
		[]any{userID}, opts, "placed_at", "DESC")
	return s.queryBets(ctx, "list bets for user "+userID, query, args...)
}

// ListPendingByEvent returns pending bets holding at least one pending leg on
// the event, ordered by (placed_at, id) and starting after the cursor.
func (s *BetStore) ListPendingByEvent(ctx context.Context, id domain.EventID, after domain.BetCursor, limit int) ([]domain.Bet, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `
		SELECT ` + betSelectCols + ` FROM bets
		WHERE status = 'pending' AND id IN (
			SELECT bet_id FROM bet_legs WHERE event_id = $1 AND status = 'pending'
		)`
	args := []any{id.String()}
	if !after.IsZero() {
		query += ` AND (placed_at, id) > ($2, $3::uuid)`
		args = append(args, after.PlacedAt, after.ID)
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY placed_at ASC, id ASC LIMIT $%d`, len(args))
	return s.queryBets(ctx, "list pending bets for "+id.String(), query, args...)
}

// PendingEventIDs lists events that still have pending legs, oldest round first.
func (s *BetStore) PendingEventIDs(ctx context.Context, limit int) ([]domain.EventID, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.pool.Query(ctx, `
		SELECT event_id FROM bet_legs
		WHERE status = 'pending'
		GROUP BY event_id
		ORDER BY MIN(round_slot) ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: pending event ids: %w", err)
	}
	defer rows.Close()
	return collectEventIDs(rows)
}

// ApplySettlement persists the result of one settlement pass. The bet row is
// updated only when its version still matches, so two settlers racing on the
// same bet cannot both write.
func (s *BetStore) ApplySettlement(ctx context.Context, bet domain.Bet, entries []domain.LedgerEntry) error {
	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE bets SET
				status     = $3,
				total_odds = $4,
				payout     = $5,
				settled_at = $6,
				version    = version + 1
			WHERE id::text = $1 AND version = $2`,
			bet.ID, bet.Version, string(bet.Status), bet.TotalOdds, bet.Payout, bet.SettledAt,
		)
		if err != nil {
			return fmt.Errorf("postgres: settle bet %s: %w", bet.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("postgres: settle bet %s version %d: %w", bet.ID, bet.Version, domain.ErrStaleWrite)
		}

		batch := &pgx.Batch{}
		for _, l := range bet.Legs {
			batch.Queue(`
				UPDATE bet_legs SET status = $2, effective_odds = $3, settled_at = $4
				WHERE id::text = $1`,
				l.ID, string(l.Status), l.EffectiveOdds, l.SettledAt,
			)
		}
		for _, e := range entries {
			batch.Queue(`
				INSERT INTO ledger_outbox (id, bet_id, user_id, amount, kind, created_at)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (bet_id) DO NOTHING`,
				e.ID, e.BetID, e.UserID, e.Amount, string(e.Kind), e.CreatedAt,
			)
		}
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("postgres: settle bet %s item %d: %w", bet.ID, i, err)
			}
		}
		return br.Close()
	})
}

func (s *BetStore) queryBets(ctx context.Context, what, query string, args ...any) ([]domain.Bet, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", what, err)
	}
	var bets []domain.Bet
	for rows.Next() {
		b, err := scanBetRow(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("postgres: scan bet: %w", err)
		}
		bets = append(bets, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s rows: %w", what, err)
	}
	if err := s.attachLegs(ctx, bets); err != nil {
		return nil, err
	}
	return bets, nil
}

// attachLegs loads the legs of every bet in one query.
func (s *BetStore) attachLegs(ctx context.Context, bets []domain.Bet) error {
	if len(bets) == 0 {
		return nil
	}
	ids := make([]string, len(bets))
	index := make(map[string]int, len(bets))
	for i, b := range bets {
		ids[i] = b.ID
		index[b.ID] = i
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+legSelectCols+` FROM bet_legs
		WHERE bet_id::text = ANY($1)
		ORDER BY bet_id, position`, ids)
	if err != nil {
		return fmt.Errorf("postgres: load legs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l       domain.Leg
			betID   string
			eventID string
			status  string
		)
		if err := rows.Scan(&l.ID, &betID, &eventID, &l.Market, &l.Selection,
			&l.Odds, &l.Stake, &status, &l.EffectiveOdds, &l.SettledAt); err != nil {
			return fmt.Errorf("postgres: scan leg: %w", err)
		}
		l.EventID, err = domain.ParseEventID(eventID)
		if err != nil {
			return fmt.Errorf("postgres: leg %s: %w", l.ID, err)
		}
		l.Status = domain.LegStatus(status)
		if i, ok := index[betID]; ok {
			bets[i].Legs = append(bets[i].Legs, l)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("postgres: leg rows: %w", err)
	}
	return nil
}
