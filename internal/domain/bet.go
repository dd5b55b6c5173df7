package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BetMode is the tag of the BetTerms union.
type BetMode string

const (
	BetModeSingle BetMode = "single"
	BetModeMulti  BetMode = "multi"
	BetModeSystem BetMode = "system"
)

// BetStatus moves monotonically from pending to exactly one terminal state.
type BetStatus string

const (
	BetStatusPending BetStatus = "pending"
	BetStatusWon     BetStatus = "won"
	BetStatusLost    BetStatus = "lost"
	BetStatusVoid    BetStatus = "void"
)

// Terminal reports whether the status can no longer change.
func (s BetStatus) Terminal() bool { return s != BetStatusPending && s != "" }

// LegStatus is the verdict of one selection.
type LegStatus string

const (
	LegStatusPending LegStatus = "pending"
	LegStatusWon     LegStatus = "won"
	LegStatusLost    LegStatus = "lost"
	LegStatusVoid    LegStatus = "void"
)

// Terminal reports whether the leg has a final verdict.
func (s LegStatus) Terminal() bool { return s != LegStatusPending && s != "" }

// One is the stake-neutral odds applied to void legs.
var One = decimal.NewFromInt(1)

// Leg is one selection of a bet, bound to an event that may not have been
// simulated yet.
type Leg struct {
	ID            string          `json:"id"`
	EventID       EventID         `json:"event_id"`
	Market        string          `json:"market"`
	Selection     string          `json:"selection"`
	Odds          decimal.Decimal `json:"odds"`
	Stake         decimal.Decimal `json:"stake"`
	Status        LegStatus       `json:"status"`
	EffectiveOdds decimal.Decimal `json:"effective_odds"`
	SettledAt     *time.Time      `json:"settled_at,omitempty"`
}

// BetTerms carries the mode-specific fields of a bet. Exactly one of
// SingleTerms, MultiTerms or SystemTerms.
type BetTerms interface {
	Mode() BetMode
	totalStake(legs []Leg) decimal.Decimal
	validate(legs []Leg) error
}

// SingleTerms: every leg carries its own stake and settles independently.
type SingleTerms struct{}

// MultiTerms: one stake riding on every leg winning.
type MultiTerms struct {
	Stake decimal.Decimal `json:"stake"`
}

// SystemTerms: UnitStake is placed on each combination; every combination is
// a list of leg indexes evaluated as its own accumulator.
type SystemTerms struct {
	UnitStake    decimal.Decimal `json:"unit_stake"`
	Combinations [][]int         `json:"combinations"`
}

func (SingleTerms) Mode() BetMode { return BetModeSingle }
func (MultiTerms) Mode() BetMode  { return BetModeMulti }
func (SystemTerms) Mode() BetMode { return BetModeSystem }

func (SingleTerms) totalStake(legs []Leg) decimal.Decimal {
	total := decimal.Zero
	for _, l := range legs {
		total = total.Add(l.Stake)
	}
	return total
}

func (t MultiTerms) totalStake([]Leg) decimal.Decimal { return t.Stake }

func (t SystemTerms) totalStake([]Leg) decimal.Decimal {
	return t.UnitStake.Mul(decimal.NewFromInt(int64(len(t.Combinations))))
}

func (SingleTerms) validate(legs []Leg) error {
	for i, l := range legs {
		if !l.Stake.IsPositive() {
			return fmt.Errorf("%w: leg %d needs a positive stake", ErrInvalidBet, i)
		}
	}
	return nil
}

func (t MultiTerms) validate(legs []Leg) error {
	if !t.Stake.IsPositive() {
		return fmt.Errorf("%w: stake must be positive", ErrInvalidBet)
	}
	if len(legs) < 2 {
		return fmt.Errorf("%w: multi needs at least 2 legs", ErrInvalidBet)
	}
	return nil
}

func (t SystemTerms) validate(legs []Leg) error {
	if !t.UnitStake.IsPositive() {
		return fmt.Errorf("%w: unit stake must be positive", ErrInvalidBet)
	}
	if len(t.Combinations) == 0 {
		return fmt.Errorf("%w: system needs at least one combination", ErrInvalidBet)
	}
	for ci, combo := range t.Combinations {
		if len(combo) == 0 {
			return fmt.Errorf("%w: combination %d is empty", ErrInvalidBet, ci)
		}
		seen := make(map[int]bool, len(combo))
		for _, idx := range combo {
			if idx < 0 || idx >= len(legs) {
				return fmt.Errorf("%w: combination %d references leg %d", ErrInvalidBet, ci, idx)
			}
			if seen[idx] {
				return fmt.Errorf("%w: combination %d repeats leg %d", ErrInvalidBet, ci, idx)
			}
			seen[idx] = true
		}
	}
	return nil
}

// Bet is a stake plus one or more legs in a given mode.
type Bet struct {
	ID        string
	UserID    string
	Terms     BetTerms
	Legs      []Leg
	Status    BetStatus
	TotalOdds decimal.Decimal
	Payout    decimal.Decimal
	Version   int
	PlacedAt  time.Time
	SettledAt *time.Time
}

// Mode returns the tag of the bet terms.
func (b Bet) Mode() BetMode {
	if b.Terms == nil {
		return ""
	}
	return b.Terms.Mode()
}

// TotalStake is the full amount put at risk by the bet.
func (b Bet) TotalStake() decimal.Decimal {
	if b.Terms == nil {
		return decimal.Zero
	}
	return b.Terms.totalStake(b.Legs)
}

// Validate checks the structural invariants of the bet.
func (b Bet) Validate() error {
	if b.Terms == nil {
		return fmt.Errorf("%w: missing terms", ErrInvalidBet)
	}
	if len(b.Legs) == 0 {
		return fmt.Errorf("%w: no legs", ErrInvalidBet)
	}
	for i, l := range b.Legs {
		if l.Market == "" || l.Selection == "" {
			return fmt.Errorf("%w: leg %d missing market or selection", ErrInvalidBet, i)
		}
		if l.Odds.LessThan(One) {
			return fmt.Errorf("%w: leg %d odds below 1.00", ErrInvalidBet, i)
		}
	}
	return b.Terms.validate(b.Legs)
}

// EventIDs lists the distinct events the bet depends on, in leg order.
func (b Bet) EventIDs() []EventID {
	seen := make(map[EventID]bool)
	var ids []EventID
	for _, l := range b.Legs {
		if !seen[l.EventID] {
			seen[l.EventID] = true
			ids = append(ids, l.EventID)
		}
	}
	return ids
}

type betJSON struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Mode      BetMode         `json:"mode"`
	Terms     json.RawMessage `json:"terms"`
	Legs      []Leg           `json:"legs"`
	Status    BetStatus       `json:"status"`
	TotalOdds decimal.Decimal `json:"total_odds"`
	Payout    decimal.Decimal `json:"payout"`
	Stake     decimal.Decimal `json:"stake"`
	Version   int             `json:"version"`
	PlacedAt  time.Time       `json:"placed_at"`
	SettledAt *time.Time      `json:"settled_at,omitempty"`
}

// MarshalJSON writes the mode tag next to the terms.
func (b Bet) MarshalJSON() ([]byte, error) {
	terms, err := json.Marshal(b.Terms)
	if err != nil {
		return nil, err
	}
	return json.Marshal(betJSON{
		ID:        b.ID,
		UserID:    b.UserID,
		Mode:      b.Mode(),
		Terms:     terms,
		Legs:      b.Legs,
		Status:    b.Status,
		TotalOdds: b.TotalOdds,
		Payout:    b.Payout,
		Stake:     b.TotalStake(),
		Version:   b.Version,
		PlacedAt:  b.PlacedAt,
		SettledAt: b.SettledAt,
	})
}

// UnmarshalJSON restores the concrete terms from the mode tag.
func (b *Bet) UnmarshalJSON(data []byte) error {
	var raw betJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	terms, err := DecodeTerms(raw.Mode, raw.Terms)
	if err != nil {
		return err
	}
	*b = Bet{
		ID:        raw.ID,
		UserID:    raw.UserID,
		Terms:     terms,
		Legs:      raw.Legs,
		Status:    raw.Status,
		TotalOdds: raw.TotalOdds,
		Payout:    raw.Payout,
		Version:   raw.Version,
		PlacedAt:  raw.PlacedAt,
		SettledAt: raw.SettledAt,
	}
	return nil
}

// DecodeTerms rebuilds BetTerms from its tag and JSON body.
func DecodeTerms(mode BetMode, data []byte) (BetTerms, error) {
	switch mode {
	case BetModeSingle:
		return SingleTerms{}, nil
	case BetModeMulti:
		var t MultiTerms
		if len(data) > 0 {
			if err := json.Unmarshal(data, &t); err != nil {
				return nil, fmt.Errorf("decode multi terms: %w", err)
			}
		}
		return t, nil
	case BetModeSystem:
		var t SystemTerms
		if len(data) > 0 {
			if err := json.Unmarshal(data, &t); err != nil {
				return nil, fmt.Errorf("decode system terms: %w", err)
			}
		}
		return t, nil
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidBet, mode)
	}
}

// LedgerEntryKind classifies a credit owed to the user.
type LedgerEntryKind string

const (
	LedgerPayout LedgerEntryKind = "payout"
	LedgerRefund LedgerEntryKind = "refund"
)

// LedgerEntry is the credit instruction handed to the external ledger. It is
// written in the same transaction as the bet's terminal status.
type LedgerEntry struct {
	ID        string          `json:"id"`
	BetID     string          `json:"bet_id"`
	UserID    string          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Kind      LedgerEntryKind `json:"kind"`
	CreatedAt time.Time       `json:"created_at"`
}

// ManualOverride is an operator-entered result for one market. Outcome is the
// winning selection label, or SelectionVoid.
type ManualOverride struct {
	EventID   EventID   `json:"event_id"`
	Market    string    `json:"market"`
	Outcome   string    `json:"outcome"`
	Operator  string    `json:"operator"`
	CreatedAt time.Time `json:"created_at"`
}
