package simulator

import (
	"strconv"
	"time"

	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/rng"
)

const maxRoundScore = 180

// DuelRoster is the fixed field duels are drawn from.
var DuelRoster = []domain.Participant{
	{Name: "Ada Marsh", Region: "north"},
	{Name: "Bram Keller", Region: "east"},
	{Name: "Cora Vance", Region: "south"},
	{Name: "Dev Okafor", Region: "west"},
	{Name: "Elin Strand", Region: "north"},
	{Name: "Finn Roarke", Region: "midlands"},
	{Name: "Gus Tanaka", Region: "east"},
	{Name: "Hana Kovac", Region: "south"},
	{Name: "Ivo Pereira", Region: "west"},
	{Name: "Juno Blake", Region: "midlands"},
}

var throwCategories = []domain.ThrowCategory{
	domain.ThrowMiss,
	domain.ThrowInnerBull,
	domain.ThrowOuterBull,
	domain.ThrowMaxTriple,
	domain.ThrowOtherTriple,
	domain.ThrowDouble,
	domain.ThrowSingle,
}

// DuelInput is the simulation context of a duel.
type DuelInput struct {
	Seed int64
	At   time.Time
}

// EventID returns the id the input simulates. The round component is the
// minute slot of At.
func (in DuelInput) EventID() domain.EventID {
	return domain.EventID{Round: minuteSlot(in.At), Index: int(in.Seed), Category: domain.CategoryDuel}
}

// DuelInputFromID rebuilds the input from an id without new randomness.
func DuelInputFromID(id domain.EventID) DuelInput {
	return DuelInput{Seed: int64(id.Index), At: time.Unix(id.Round*60, 0).UTC()}
}

func minuteSlot(t time.Time) int64 {
	s := t.Unix()
	if s < 0 && s%60 != 0 {
		return s/60 - 1
	}
	return s / 60
}

// Duel simulates two-participant throw matches.
type Duel struct {
	params DuelParams
	roster []domain.Participant
}

// NewDuel creates a duel simulator over roster, or DuelRoster when nil.
func NewDuel(params DuelParams, roster []domain.Participant) *Duel {
	if len(roster) == 0 {
		roster = DuelRoster
	}
	return &Duel{params: params, roster: roster}
}

// Params returns the constants the simulator was built with.
func (d *Duel) Params() DuelParams { return d.params }

// Simulate runs the duel. Equal totals are a tie with WinnerIndex -1.
func (d *Duel) Simulate(in DuelInput) (domain.Outcome, error) {
	if len(d.roster) < 2 {
		return domain.Outcome{}, domain.ErrInsufficientParticipants
	}
	src := rng.New(rng.Combine(in.Seed, minuteSlot(in.At)))

	a := src.Intn(len(d.roster))
	b := src.Intn(len(d.roster) - 1)
	if b >= a {
		b++
	}
	ps := []domain.Participant{d.roster[a], d.roster[b]}
	for i := range ps {
		ps[i].Tier = 1 + src.Intn(len(d.params.TierTables))
		ps[i].Strength = float64(ps[i].Tier) * 25
		ps[i].Ranked = true
	}

	out := domain.Outcome{
		EventID:      in.EventID(),
		Kind:         domain.EventKindDuel,
		Participants: ps,
		Totals:       make([]int, 2),
		Duel: &domain.DuelStats{
			Bullseyes:      make([]int, 2),
			Triples:        make([]int, 2),
			Maximums:       make([]int, 2),
			LateAggression: make([]bool, 2),
		},
	}

	lastLeader := -1
	for r := 1; r <= d.params.Rounds; r++ {
		round := domain.RoundResult{
			Number:  r,
			Name:    "Leg " + strconv.Itoa(r),
			Scores:  make([]int, 2),
			Throws:  make([][]domain.Throw, 2),
			Maximum: make([]bool, 2),
		}
		for p := range ps {
			table := d.params.TierTables[ps[p].Tier]
			for t := 0; t < d.params.ThrowsPerRound; t++ {
				throw := d.throw(src, table)
				round.Throws[p] = append(round.Throws[p], throw)
				round.Scores[p] += throw.Points
				if throw.Category.IsBull() {
					out.Duel.Bullseyes[p]++
				}
				if throw.Category.IsTriple() {
					out.Duel.Triples[p]++
				}
			}
			if round.Scores[p] >= maxRoundScore {
				round.Maximum[p] = true
				out.Duel.Maximums[p]++
			}
			out.Totals[p] += round.Scores[p]
		}
		out.Rounds = append(out.Rounds, round)
		if leader := uniqueMax(out.Totals); leader >= 0 {
			if lastLeader >= 0 && leader != lastLeader {
				out.LeadChanges++
			}
			lastLeader = leader
		}
	}

	n := len(out.Rounds)
	for p := range ps {
		late := 0
		for _, r := range out.Rounds[max(n-2, 0):] {
			late += r.Scores[p]
		}
		if out.Totals[p] > 0 {
			out.Duel.LateAggression[p] = float64(late)/float64(out.Totals[p]) > d.params.LateAggressionThreshold
		}
	}
	out.StrongStartLeader = phaseLeader(out.Rounds, 0, 2)
	out.LateSurgeLeader = phaseLeader(out.Rounds, n-2, n)
	out.HighestScoringRound = highestRound(out.Rounds)
	out.WinnerIndex = uniqueMax(out.Totals)
	out.Commentary = duelCommentary(src.Fork(saltCommentary), out)
	return out, nil
}

// throw draws a category, then a second value for banded point values.
func (d *Duel) throw(src *rng.Source, table ThrowTable) domain.Throw {
	c := throwCategories[src.Weighted(table.weights())]
	t := domain.Throw{Category: c}
	switch c {
	case domain.ThrowInnerBull:
		t.Points = 50
	case domain.ThrowOuterBull:
		t.Points = 25
	case domain.ThrowMaxTriple:
		t.Points = 60
	case domain.ThrowOtherTriple:
		t.Points = 3 * src.IntRange(1, 19)
	case domain.ThrowDouble:
		t.Points = 2 * src.IntRange(1, 20)
	case domain.ThrowSingle:
		t.Points = src.IntRange(1, 20)
	}
	return t
}
