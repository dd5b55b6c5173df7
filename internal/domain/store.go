package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// BetCursor is a position in (placed_at, id) order. The zero value points
// before the first bet.
type BetCursor struct {
	PlacedAt time.Time
	ID       string
}

// CursorOf returns the cursor positioned at b.
func CursorOf(b Bet) BetCursor { return BetCursor{PlacedAt: b.PlacedAt, ID: b.ID} }

// IsZero reports whether the cursor points before the first bet.
func (c BetCursor) IsZero() bool { return c.PlacedAt.IsZero() && c.ID == "" }

// Less reports whether c sorts before o.
func (c BetCursor) Less(o BetCursor) bool {
	if !c.PlacedAt.Equal(o.PlacedAt) {
		return c.PlacedAt.Before(o.PlacedAt)
	}
	return c.ID < o.ID
}

// OutcomeStore persists finalized Outcomes keyed by event id.
type OutcomeStore interface {
	// Pin stores the outcome derived for pricing unless the event already has
	// one, and returns whichever is stored. An event voided before it was ever
	// derived reports ErrEventVoided.
	Pin(ctx context.Context, o Outcome) (Outcome, error)
	// Pinned returns the stored outcome whatever the event's status.
	Pinned(ctx context.Context, id EventID) (Outcome, error)
	// Save marks the event final, keeping an outcome pinned earlier. It reports
	// false when the event is already final or void.
	Save(ctx context.Context, o Outcome) (bool, error)
	// Get returns the outcome of a final or voided event. Events that are
	// only pinned report ErrNotFound.
	Get(ctx context.Context, id EventID) (Outcome, error)
	Status(ctx context.Context, id EventID) (EventStatus, error)
	MarkVoid(ctx context.Context, id EventID, reason string) error
	ListFinalized(ctx context.Context, opts ListOpts) ([]EventID, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// MarketStore persists priced markets.
type MarketStore interface {
	SaveAll(ctx context.Context, markets []Market) error
	ListByEvent(ctx context.Context, id EventID) ([]Market, error)
	Get(ctx context.Context, id EventID, name string) (Market, error)
	// UpdatePrices replaces selections of a market that is still open and
	// returns ErrMarketLocked otherwise.
	UpdatePrices(ctx context.Context, m Market) error
	SetStatus(ctx context.Context, id EventID, status MarketStatus) error
	ListOpen(ctx context.Context, limit int) ([]Market, error)
}

// BetStore persists bets, their legs and the ledger outbox.
type BetStore interface {
	Create(ctx context.Context, bet Bet) error
	GetByID(ctx context.Context, id string) (Bet, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Bet, error)
	// ListPendingByEvent pages through pending bets with a pending leg on the
	// event in (placed_at, id) order, starting strictly after the cursor.
	ListPendingByEvent(ctx context.Context, id EventID, after BetCursor, limit int) ([]Bet, error)
	// PendingEventIDs lists distinct events that still have pending legs,
	// oldest round first.
	PendingEventIDs(ctx context.Context, limit int) ([]EventID, error)
	// ApplySettlement writes leg verdicts, the bet status and the ledger entries
	// in one transaction. It fails with ErrStaleWrite when the stored version no
	// longer matches bet.Version.
	ApplySettlement(ctx context.Context, bet Bet, entries []LedgerEntry) error
}

// OverrideStore persists operator-entered market results.
type OverrideStore interface {
	Set(ctx context.Context, o ManualOverride) error
	ListByEvent(ctx context.Context, id EventID) ([]ManualOverride, error)
}

// RosterStore provides the participant pools used by the quiz simulator.
type RosterStore interface {
	ListParticipants(ctx context.Context, poolID string) ([]Participant, error)
	NationalPool(ctx context.Context) ([]Participant, error)
}

// StrengthStore holds the learned per-participant strength map.
type StrengthStore interface {
	Snapshot(ctx context.Context) (map[string]float64, error)
	Upsert(ctx context.Context, name string, strength float64) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
