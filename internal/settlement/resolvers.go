package settlement

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

func unresolvable(ref MarketRef, selection string) error {
	return fmt.Errorf("settlement: %s selection %q: %w", ref.GroupKey(), selection, domain.ErrUnresolvableMarket)
}

func verdict(won bool) domain.LegStatus {
	if won {
		return domain.LegStatusWon
	}
	return domain.LegStatusLost
}

func participantIndex(o domain.Outcome, label string) int {
	label = strings.TrimSpace(label)
	for i, p := range o.Participants {
		if strings.EqualFold(p.Name, label) {
			return i
		}
	}
	return -1
}

func isDraw(label string) bool {
	return strings.EqualFold(strings.TrimSpace(label), domain.SelectionDraw)
}

// resolveIndexed settles a market whose answer is one participant index, or
// -1 for a shared result that only the Draw selection wins.
func resolveIndexed(o domain.Outcome, ref MarketRef, selection string, winner int) (domain.LegStatus, error) {
	if isDraw(selection) {
		return verdict(winner < 0), nil
	}
	idx := participantIndex(o, selection)
	if idx < 0 {
		return domain.LegStatusPending, unresolvable(ref, selection)
	}
	return verdict(idx == winner), nil
}

func resolveWinner(o domain.Outcome, ref MarketRef, selection string) (domain.LegStatus, error) {
	return resolveIndexed(o, ref, selection, o.WinnerIndex)
}

// ParseOverUnder splits "Over 120.5" into its side and line.
func ParseOverUnder(selection string) (over bool, line float64, ok bool) {
	fields := strings.Fields(strings.ToLower(selection))
	if len(fields) == 0 {
		return false, 0, false
	}
	switch fields[0] {
	case "over", "o":
		over = true
	case "under", "u":
	default:
		return false, 0, false
	}
	if len(fields) < 2 {
		return over, 0, false
	}
	v, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return false, 0, false
	}
	return over, v, true
}

func statValue(o domain.Outcome, stat string) (float64, bool) {
	switch stat {
	case domain.StatTotalPoints:
		return float64(o.TotalPoints()), true
	case domain.StatLeadChanges:
		return float64(o.LeadChanges), true
	case domain.StatBullseyes:
		if o.Duel == nil {
			return 0, false
		}
		n := 0
		for _, b := range o.Duel.Bullseyes {
			n += b
		}
		return float64(n), true
	}
	return 0, false
}

// resolveOverUnder compares the stat against the line carried by the
// selection, falling back to the line in the market name. Landing exactly on
// a whole line voids the leg.
func resolveOverUnder(o domain.Outcome, ref MarketRef, selection string) (domain.LegStatus, error) {
	over, line, ok := ParseOverUnder(selection)
	if !ok {
		side := strings.Fields(strings.ToLower(selection))
		if !ref.HasLine || len(side) != 1 || (side[0] != "over" && side[0] != "under") {
			return domain.LegStatusPending, unresolvable(ref, selection)
		}
		over, line = side[0] == "over", ref.Line
	}
	value, ok := statValue(o, ref.Subject)
	if !ok {
		return domain.LegStatusPending, unresolvable(ref, selection)
	}
	switch {
	case value == line:
		return domain.LegStatusVoid, nil
	case over:
		return verdict(value > line), nil
	default:
		return verdict(value < line), nil
	}
}

// ParseBand reads "11-25" or "51+" into inclusive bounds; max < 0 is open.
func ParseBand(label string) (lo, hi int, ok bool) {
	label = strings.TrimSpace(label)
	if strings.HasSuffix(label, "+") {
		v, err := strconv.Atoi(strings.TrimSuffix(label, "+"))
		return v, -1, err == nil
	}
	parts := strings.SplitN(label, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	a, errA := strconv.Atoi(strings.TrimSpace(parts[0]))
	b, errB := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errA != nil || errB != nil || b < a {
		return 0, 0, false
	}
	return a, b, true
}

func resolveMarginBand(o domain.Outcome, ref MarketRef, selection string) (domain.LegStatus, error) {
	lo, hi, ok := ParseBand(selection)
	if !ok {
		return domain.LegStatusPending, unresolvable(ref, selection)
	}
	margin := o.WinningMargin()
	return verdict(margin >= lo && (hi < 0 || margin <= hi)), nil
}

func resolveRoundWinner(o domain.Outcome, ref MarketRef, selection string) (domain.LegStatus, error) {
	round, ok := o.Round(ref.Round)
	if !ok {
		return domain.LegStatusPending, unresolvable(ref, selection)
	}
	return resolveIndexed(o, ref, selection, uniqueTop(round.Scores))
}

func resolveProp(o domain.Outcome, ref MarketRef, selection string) (domain.LegStatus, error) {
	var flag bool
	switch ref.Subject {
	case domain.PropPerfectRound:
		flag = o.AnyPerfectRound()
	case domain.PropShutoutRound:
		flag = o.AnyShutoutRound()
	case domain.PropTieBreaker:
		flag = o.HasTieBreaker()
	case domain.PropMaximum:
		if o.Duel == nil {
			return domain.LegStatusPending, unresolvable(ref, selection)
		}
		for _, n := range o.Duel.Maximums {
			flag = flag || n > 0
		}
	case domain.PropLateAggression:
		if o.Duel == nil {
			return domain.LegStatusPending, unresolvable(ref, selection)
		}
		for _, late := range o.Duel.LateAggression {
			flag = flag || late
		}
	default:
		return domain.LegStatusPending, unresolvable(ref, selection)
	}
	switch strings.ToLower(strings.TrimSpace(selection)) {
	case "yes":
		return verdict(flag), nil
	case "no":
		return verdict(!flag), nil
	}
	return domain.LegStatusPending, unresolvable(ref, selection)
}

func resolveAward(o domain.Outcome, ref MarketRef, selection string) (domain.LegStatus, error) {
	winner, ok := o.AwardWinner(ref.Subject)
	if !ok {
		return domain.LegStatusPending, unresolvable(ref, selection)
	}
	idx := participantIndex(o, selection)
	if idx < 0 {
		return domain.LegStatusPending, unresolvable(ref, selection)
	}
	return verdict(idx == winner), nil
}

func resolveLeader(o domain.Outcome, ref MarketRef, selection string) (domain.LegStatus, error) {
	var leader int
	switch ref.Subject {
	case domain.LeaderStrongStart:
		leader = o.StrongStartLeader
	case domain.LeaderLateSurge:
		leader = o.LateSurgeLeader
	case domain.LeaderMostTriples:
		if o.Duel == nil {
			return domain.LegStatusPending, unresolvable(ref, selection)
		}
		leader = o.MostTriplesLeader()
	default:
		return domain.LegStatusPending, unresolvable(ref, selection)
	}
	return resolveIndexed(o, ref, selection, leader)
}

func resolveHighestRound(o domain.Outcome, ref MarketRef, selection string) (domain.LegStatus, error) {
	fields := strings.Fields(strings.ToLower(selection))
	if len(fields) != 2 || fields[0] != "round" {
		return domain.LegStatusPending, unresolvable(ref, selection)
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return domain.LegStatusPending, unresolvable(ref, selection)
	}
	return verdict(n == o.HighestScoringRound), nil
}

func uniqueTop(scores []int) int {
	best, tied := -1, false
	for i, s := range scores {
		switch {
		case best < 0 || s > scores[best]:
			best, tied = i, false
		case s == scores[best]:
			tied = true
		}
	}
	if tied {
		return -1
	}
	return best
}
