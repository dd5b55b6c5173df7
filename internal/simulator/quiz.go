package simulator

import (
	"math"

	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/rng"
)

// Stream salts. Changing any of these changes every replayed outcome.
const (
	saltStrength   = 1
	saltAwards     = 2
	saltTieBreak   = 3
	saltCommentary = 4
	saltRoundBase  = 100
)

// QuizInput is the full simulation context of one quiz match. Everything that
// influences the outcome is an explicit field.
type QuizInput struct {
	Round    int64
	Match    int
	Category string
	Region   string
	PoolID   string
	// Pool is the regional roster, National the curated fallback pool.
	Pool     []domain.Participant
	National []domain.Participant
	// Strengths is a snapshot of learned strength overrides keyed by name.
	Strengths  map[string]float64
	UserOffset int64
}

// EventID returns the id the input simulates.
func (in QuizInput) EventID() domain.EventID {
	category := in.Category
	if category == "" {
		category = domain.CategoryNational
	}
	region := domain.Slugify(in.Region)
	if category == domain.CategoryNational {
		region = ""
	}
	return domain.EventID{Round: in.Round, Index: in.Match, Category: category, Region: region}
}

// SelectionSeed is shared by every match in the same round slot.
func (in QuizInput) SelectionSeed() int64 {
	id := in.EventID()
	return rng.Combine(in.Round, rng.HashString(id.Category), rng.HashString(id.RegionSlug()),
		rng.HashString(in.PoolID), in.UserOffset)
}

// MatchSeed adds the match slot to the selection seed.
func (in QuizInput) MatchSeed() int64 {
	return rng.Combine(in.SelectionSeed(), int64(in.Match)+1)
}

// Quiz simulates three-participant round-based matches.
type Quiz struct {
	params QuizParams
}

// NewQuiz creates a quiz simulator.
func NewQuiz(params QuizParams) *Quiz {
	return &Quiz{params: params}
}

// Params returns the constants the simulator was built with.
func (q *Quiz) Params() QuizParams { return q.params }

// Simulate runs the match. It fails only when no pool can field three
// participants.
func (q *Quiz) Simulate(in QuizInput) (domain.Outcome, error) {
	id := in.EventID()
	list, err := candidates(id.Category, id.RegionSlug(), in.Pool, in.National, q.params.Neighbors)
	if err != nil {
		return domain.Outcome{}, err
	}

	selection := rng.New(in.SelectionSeed())
	match := rng.New(in.MatchSeed())

	participants := pickTriplet(selection, list, in.Match)
	q.assignStrengths(match.Fork(saltStrength), participants, in.Strengths)

	out := domain.Outcome{
		EventID:      id,
		Kind:         domain.EventKindQuiz,
		Participants: participants,
		Totals:       make([]int, len(participants)),
	}

	lastLeader := -1
	for i, rule := range q.params.Rounds {
		round := q.playRound(match.Fork(saltRoundBase+int64(i)), i+1, rule, participants)
		out.Rounds = append(out.Rounds, round)
		for p, s := range round.Scores {
			out.Totals[p] += s
		}
		leader := uniqueMax(out.Totals)
		if leader >= 0 {
			if lastLeader >= 0 && leader != lastLeader {
				out.LeadChanges++
			}
			lastLeader = leader
		}
	}

	regular := len(out.Rounds)
	out.StrongStartLeader = phaseLeader(out.Rounds, 0, 2)
	out.LateSurgeLeader = phaseLeader(out.Rounds, regular-2, regular)
	out.HighestScoringRound = highestRound(out.Rounds)

	tieSrc := match.Fork(saltTieBreak)
	q.breakTies(tieSrc, &out)
	q.grantAwards(match.Fork(saltAwards), &out)
	// An award can reopen a tie at the top; the same bounded loop settles it.
	q.breakTies(tieSrc, &out)

	out.WinnerIndex = uniqueMax(out.Totals)
	if out.WinnerIndex < 0 {
		out.TieBreakExhausted = true
		out.WinnerIndex = lowestTopIndex(out.Totals)
	}
	out.Commentary = quizCommentary(match.Fork(saltCommentary), out)
	return out, nil
}

func (q *Quiz) assignStrengths(src *rng.Source, ps []domain.Participant, overrides map[string]float64) {
	p := q.params
	for i := range ps {
		if learned, ok := overrides[ps[i].Name]; ok {
			s := learned + (src.Float64()-0.5)*2*p.StrengthNoise
			ps[i].Strength = round2(clamp(s, 10, 100))
			continue
		}
		if ps[i].Ranked {
			ps[i].Strength = round2(src.Between(p.RankedStrengthMin, p.RankedStrengthMax))
		} else {
			ps[i].Strength = round2(src.Between(p.OpenStrengthMin, p.OpenStrengthMax))
		}
	}
}

func (q *Quiz) multiplier(src *rng.Source) float64 {
	p := q.params
	u := src.Float64()
	switch {
	case u < p.OffDayChance:
		return src.Between(p.OffDayMin, p.OffDayMax)
	case u < p.OffDayChance+p.HotStreakChance:
		return src.Between(p.HotStreakMin, p.HotStreakMax)
	default:
		return 1
	}
}

func (q *Quiz) playRound(src *rng.Source, number int, rule RoundRule, ps []domain.Participant) domain.RoundResult {
	round := domain.RoundResult{
		Number:  number,
		Name:    rule.Name,
		Scores:  make([]int, len(ps)),
		Perfect: make([]bool, len(ps)),
		Shutout: make([]bool, len(ps)),
		Chaos:   src.Chance(q.params.ChaosChance),
	}
	for i, p := range ps {
		strength := p.Strength
		if round.Chaos {
			strength = 110 - strength
		}
		pCorrect := clamp(strength/100*q.multiplier(src), 0.05, 0.97)
		score, correct := 0, 0
		for n := 0; n < rule.Questions; n++ {
			if src.Chance(pCorrect) {
				score += rule.Points
				correct++
			} else {
				score -= rule.Penalty
			}
		}
		if score < 0 {
			score = 0
		}
		round.Scores[i] = score
		round.Perfect[i] = correct == rule.Questions
		round.Shutout[i] = score == 0
	}
	return round
}

// breakTies awards 1..TieBreakMaxBonus points to the participants still tied
// for the lead until one is ahead or the iteration cap is hit. The points go
// into a single explicit tie-breaker round.
func (q *Quiz) breakTies(src *rng.Source, out *domain.Outcome) {
	tied := topIndexes(out.Totals)
	if len(tied) < 2 {
		return
	}
	tb := -1
	for i, r := range out.Rounds {
		if r.TieBreaker {
			tb = i
		}
	}
	if tb < 0 {
		out.Rounds = append(out.Rounds, domain.RoundResult{
			Number:     len(out.Rounds) + 1,
			Name:       "Tie Breaker",
			Scores:     make([]int, len(out.Totals)),
			TieBreaker: true,
		})
		tb = len(out.Rounds) - 1
	}
	for iter := 0; iter < q.params.TieBreakIterations && len(tied) > 1; iter++ {
		for _, i := range tied {
			bonus := src.IntRange(1, q.params.TieBreakMaxBonus)
			out.Rounds[tb].Scores[i] += bonus
			out.Totals[i] += bonus
		}
		tied = topIndexes(out.Totals)
	}
}

func (q *Quiz) grantAwards(src *rng.Source, out *domain.Outcome) {
	n := len(out.Participants)
	first := src.Intn(n)
	fastest := src.Intn(n)
	out.Awards = []domain.Award{
		{Name: domain.AwardFirstCorrect, Index: first, Points: q.params.FirstCorrectPoints},
		{Name: domain.AwardFastestResponse, Index: fastest, Points: q.params.FastestResponsePoints},
	}
	for _, a := range out.Awards {
		out.Totals[a.Index] += a.Points
	}
}

// uniqueMax returns the index of the strict maximum, or -1 on a tie.
func uniqueMax(vals []int) int {
	top := topIndexes(vals)
	if len(top) != 1 {
		return -1
	}
	return top[0]
}

func topIndexes(vals []int) []int {
	best := math.MinInt
	var idx []int
	for i, v := range vals {
		switch {
		case v > best:
			best = v
			idx = []int{i}
		case v == best:
			idx = append(idx, i)
		}
	}
	return idx
}

func lowestTopIndex(vals []int) int {
	top := topIndexes(vals)
	if len(top) == 0 {
		return -1
	}
	return top[0]
}

// phaseLeader sums rounds [from, to) per participant and returns the unique
// leader, or -1.
func phaseLeader(rounds []domain.RoundResult, from, to int) int {
	if from < 0 {
		from = 0
	}
	if to > len(rounds) || from >= to {
		return -1
	}
	sums := make([]int, len(rounds[from].Scores))
	for _, r := range rounds[from:to] {
		for i, s := range r.Scores {
			sums[i] += s
		}
	}
	return uniqueMax(sums)
}

// highestRound returns the number of the regular round with the largest
// combined score, the earliest on ties.
func highestRound(rounds []domain.RoundResult) int {
	best, number := -1, 0
	for _, r := range rounds {
		if r.TieBreaker {
			continue
		}
		if t := r.Total(); t > best {
			best, number = t, r.Number
		}
	}
	return number
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
