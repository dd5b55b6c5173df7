package domain

import "time"

// MarketKind tags how a market is resolved against an Outcome.
type MarketKind string

const (
	MarketKindWinner       MarketKind = "winner"
	MarketKindOverUnder    MarketKind = "over_under"
	MarketKindMarginBand   MarketKind = "margin_band"
	MarketKindRoundWinner  MarketKind = "round_winner"
	MarketKindProp         MarketKind = "prop"
	MarketKindAward        MarketKind = "award"
	MarketKindLeader       MarketKind = "leader"
	MarketKindHighestRound MarketKind = "highest_round"
)

// Stats addressed by over/under markets.
const (
	StatTotalPoints = "total_points"
	StatBullseyes   = "bullseyes"
	StatLeadChanges = "lead_changes"
)

// Flags addressed by yes/no prop markets.
const (
	PropPerfectRound   = "perfect_round"
	PropShutoutRound   = "shutout_round"
	PropTieBreaker     = "tie_breaker"
	PropMaximum        = "maximum"
	PropLateAggression = "late_aggression"
)

// Leaders addressed by leader markets.
const (
	LeaderStrongStart = "strong_start"
	LeaderLateSurge   = "late_surge"
	LeaderMostTriples = "most_triples"
)

// Selection labels shared across markets.
const (
	SelectionYes  = "Yes"
	SelectionNo   = "No"
	SelectionDraw = "Draw"
	SelectionVoid = "void"
)

// MarketStatus is the lifecycle of a priced market.
type MarketStatus string

const (
	MarketStatusOpen    MarketStatus = "open"
	MarketStatusLocked  MarketStatus = "locked"
	MarketStatusSettled MarketStatus = "settled"
)

// Selection is one priced answer within a Market.
type Selection struct {
	Label       string  `json:"label"`
	Odds        float64 `json:"odds"`
	ImpliedProb float64 `json:"implied_prob"`
	ModelProb   float64 `json:"model_prob"`
}

// Market is a named betting question over one event.
type Market struct {
	EventID    EventID      `json:"event_id"`
	Name       string       `json:"name"`
	Kind       MarketKind   `json:"kind"`
	Round      int          `json:"round,omitempty"`
	Subject    string       `json:"subject,omitempty"`
	Line       float64      `json:"line,omitempty"`
	Status     MarketStatus `json:"status"`
	Selections []Selection  `json:"selections"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// Overround is the sum of implied probabilities across the selections.
func (m Market) Overround() float64 {
	total := 0.0
	for _, s := range m.Selections {
		if s.Odds > 0 {
			total += 1 / s.Odds
		}
	}
	return total
}

// Selection looks up a selection by label.
func (m Market) Selection(label string) (Selection, bool) {
	for _, s := range m.Selections {
		if s.Label == label {
			return s, true
		}
	}
	return Selection{}, false
}

// IsOpen reports whether the market still accepts stakes and re-pricing.
func (m Market) IsOpen() bool { return m.Status == MarketStatusOpen || m.Status == "" }
