package domain

import "time"

// EventKind distinguishes the two simulator families.
type EventKind string

const (
	EventKindQuiz EventKind = "quiz"
	EventKindDuel EventKind = "duel"
)

// EventStatus is the persisted lifecycle state of an event.
type EventStatus string

const (
	EventStatusScheduled EventStatus = "scheduled"
	EventStatusFinal     EventStatus = "final"
	EventStatusVoid      EventStatus = "void"
)

// Participant is one competitor as fed into a simulation.
type Participant struct {
	Name     string  `json:"name"`
	Region   string  `json:"region,omitempty"`
	Strength float64 `json:"strength"`
	Ranked   bool    `json:"ranked"`
	Tier     int     `json:"tier,omitempty"`
}

// ThrowCategory is a discrete duel throw outcome.
type ThrowCategory string

const (
	ThrowMiss        ThrowCategory = "miss"
	ThrowInnerBull   ThrowCategory = "inner_bull"
	ThrowOuterBull   ThrowCategory = "outer_bull"
	ThrowMaxTriple   ThrowCategory = "max_triple"
	ThrowOtherTriple ThrowCategory = "triple"
	ThrowDouble      ThrowCategory = "double"
	ThrowSingle      ThrowCategory = "single"
)

// IsBull reports whether the throw hit either bullseye ring.
func (c ThrowCategory) IsBull() bool { return c == ThrowInnerBull || c == ThrowOuterBull }

// IsTriple reports whether the throw landed in a triple segment.
func (c ThrowCategory) IsTriple() bool { return c == ThrowMaxTriple || c == ThrowOtherTriple }

// Throw is a single duel throw.
type Throw struct {
	Category ThrowCategory `json:"category"`
	Points   int           `json:"points"`
}

// RoundResult holds one scoring round. Scores, Perfect and Shutout are indexed
// by participant.
type RoundResult struct {
	Number     int       `json:"number"`
	Name       string    `json:"name"`
	Scores     []int     `json:"scores"`
	Perfect    []bool    `json:"perfect,omitempty"`
	Shutout    []bool    `json:"shutout,omitempty"`
	Chaos      bool      `json:"chaos,omitempty"`
	TieBreaker bool      `json:"tie_breaker,omitempty"`
	Throws     [][]Throw `json:"throws,omitempty"`
	Maximum    []bool    `json:"maximum,omitempty"`
}

// Total sums the round across participants.
func (r RoundResult) Total() int {
	total := 0
	for _, s := range r.Scores {
		total += s
	}
	return total
}

// Award is a fixed-value bonus granted to one participant.
type Award struct {
	Name   string `json:"name"`
	Index  int    `json:"index"`
	Points int    `json:"points"`
}

// Award names.
const (
	AwardFirstCorrect    = "first_correct"
	AwardFastestResponse = "fastest_response"
)

// CommentaryLine is a cosmetic, timestamped line of play-by-play. It never
// affects settlement.
type CommentaryLine struct {
	Offset time.Duration `json:"offset"`
	Text   string        `json:"text"`
}

// DuelStats are the aggregate counters of a duel, indexed by participant.
type DuelStats struct {
	Bullseyes      []int  `json:"bullseyes"`
	Triples        []int  `json:"triples"`
	Maximums       []int  `json:"maximums"`
	LateAggression []bool `json:"late_aggression"`
}

// Outcome is the complete, immutable result of one simulated event. It is
// produced once by a simulator and regenerated byte-identically from the same
// inputs.
type Outcome struct {
	EventID             EventID          `json:"event_id"`
	Kind                EventKind        `json:"kind"`
	Participants        []Participant    `json:"participants"`
	Rounds              []RoundResult    `json:"rounds"`
	Totals              []int            `json:"totals"`
	WinnerIndex         int              `json:"winner_index"`
	LeadChanges         int              `json:"lead_changes"`
	StrongStartLeader   int              `json:"strong_start_leader"`
	LateSurgeLeader     int              `json:"late_surge_leader"`
	HighestScoringRound int              `json:"highest_scoring_round"`
	Awards              []Award          `json:"awards,omitempty"`
	TieBreakExhausted   bool             `json:"tie_break_exhausted,omitempty"`
	Duel                *DuelStats       `json:"duel,omitempty"`
	Commentary          []CommentaryLine `json:"commentary,omitempty"`
}

// RegularRounds returns the scoring rounds without the tie-breaker round.
func (o Outcome) RegularRounds() []RoundResult {
	out := make([]RoundResult, 0, len(o.Rounds))
	for _, r := range o.Rounds {
		if !r.TieBreaker {
			out = append(out, r)
		}
	}
	return out
}

// Round returns the regular round with the given 1-based number.
func (o Outcome) Round(number int) (RoundResult, bool) {
	for _, r := range o.Rounds {
		if !r.TieBreaker && r.Number == number {
			return r, true
		}
	}
	return RoundResult{}, false
}

// HasTieBreaker reports whether a tie-breaker round was played.
func (o Outcome) HasTieBreaker() bool {
	for _, r := range o.Rounds {
		if r.TieBreaker {
			return true
		}
	}
	return false
}

// TotalPoints sums the final totals of all participants.
func (o Outcome) TotalPoints() int {
	total := 0
	for _, t := range o.Totals {
		total += t
	}
	return total
}

// WinningMargin is the gap between the winner and the best of the rest. It is
// zero when there is no unique winner.
func (o Outcome) WinningMargin() int {
	if o.WinnerIndex < 0 || o.WinnerIndex >= len(o.Totals) {
		return 0
	}
	best := -1 << 31
	for i, t := range o.Totals {
		if i != o.WinnerIndex && t > best {
			best = t
		}
	}
	return o.Totals[o.WinnerIndex] - best
}

// ParticipantIndex finds a participant by name, or -1.
func (o Outcome) ParticipantIndex(name string) int {
	for i, p := range o.Participants {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// ParticipantName returns the name at index i, or "" when out of range.
func (o Outcome) ParticipantName(i int) string {
	if i < 0 || i >= len(o.Participants) {
		return ""
	}
	return o.Participants[i].Name
}

// AwardWinner returns the participant index holding the named award.
func (o Outcome) AwardWinner(name string) (int, bool) {
	for _, a := range o.Awards {
		if a.Name == name {
			return a.Index, true
		}
	}
	return -1, false
}

// AnyPerfectRound reports whether any participant answered a regular round
// without a miss.
func (o Outcome) AnyPerfectRound() bool {
	for _, r := range o.RegularRounds() {
		for _, p := range r.Perfect {
			if p {
				return true
			}
		}
	}
	return false
}

// AnyShutoutRound reports whether any participant scored nothing in a regular
// round.
func (o Outcome) AnyShutoutRound() bool {
	for _, r := range o.RegularRounds() {
		for _, s := range r.Shutout {
			if s {
				return true
			}
		}
	}
	return false
}

// MostTriplesLeader returns the duel participant with strictly more triples,
// or -1.
func (o Outcome) MostTriplesLeader() int {
	if o.Duel == nil {
		return -1
	}
	best, idx := -1, -1
	for i, n := range o.Duel.Triples {
		switch {
		case n > best:
			best, idx = n, i
		case n == best:
			idx = -1
		}
	}
	return idx
}

// IsDraw reports whether the event ended level with no winner.
func (o Outcome) IsDraw() bool { return o.WinnerIndex < 0 }
