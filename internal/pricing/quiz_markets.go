package pricing

import (
	"fmt"
	"math"

	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/rng"
)

// Market names shared with the settlement normalizer.
const (
	NameMatchWinner     = "Match Winner"
	NameTotalPoints     = "Total Points"
	NameTotalBullseyes  = "Total Bullseyes"
	NameLeadChanges     = "Total Lead Changes"
	NameWinningMargin   = "Winning Margin"
	NamePerfectRound    = "Perfect Round"
	NameShutoutRound    = "Shutout Round"
	NameTieBreaker      = "Tie Breaker"
	NameStrongStart     = "Strong Start Leader"
	NameLateSurge       = "Late Surge Leader"
	NameHighestRound    = "Highest Scoring Round"
	NameFirstCorrect    = "First Correct Award"
	NameFastestResponse = "Fastest Response Award"
	NameMaximumThrown   = "Maximum Thrown"
	NameLateAggression  = "Late Aggression"
	NameMostTriples     = "Most Triples"
)

// MarginBand is one selection of the winning margin market. Max < 0 means
// open ended.
type MarginBand struct {
	Label string
	Min   int
	Max   int
}

// MarginBands are the winning margin selections in display order.
var MarginBands = []MarginBand{
	{Label: "1-10", Min: 1, Max: 10},
	{Label: "11-25", Min: 11, Max: 25},
	{Label: "26-50", Min: 26, Max: 50},
	{Label: "51+", Min: 51, Max: -1},
}

// RoundWinnerName is the market name of a round-indexed winner market.
func RoundWinnerName(round int) string { return fmt.Sprintf("Round %d Winner", round) }

// RoundLabel is a selection of the highest scoring round market.
func RoundLabel(round int) string { return fmt.Sprintf("Round %d", round) }

// leaderDraw is the model weight of a shared phase lead.
const leaderDraw = 0.04

// roundModel is the expected score and variance of one participant in one
// round.
type roundModel struct {
	mean, variance float64
	pCorrect       float64
}

func (p *Pricer) expectedMultiplier() float64 {
	q := p.quiz
	neutral := 1 - q.OffDayChance - q.HotStreakChance
	return q.OffDayChance*(q.OffDayMin+q.OffDayMax)/2 +
		q.HotStreakChance*(q.HotStreakMin+q.HotStreakMax)/2 +
		neutral
}

func (p *Pricer) roundModels(ps []domain.Participant) [][]roundModel {
	mult := p.expectedMultiplier()
	out := make([][]roundModel, len(p.quiz.Rounds))
	for r, rule := range p.quiz.Rounds {
		out[r] = make([]roundModel, len(ps))
		for i, part := range ps {
			pc := clampF(part.Strength/100*mult, 0.05, 0.97)
			n := float64(rule.Questions)
			swing := float64(rule.Points + rule.Penalty)
			out[r][i] = roundModel{
				mean:     n * (pc*float64(rule.Points) - (1-pc)*float64(rule.Penalty)),
				variance: 1.5 * n * pc * (1 - pc) * swing * swing,
				pCorrect: pc,
			}
		}
	}
	return out
}

func (p *Pricer) quizMarkets(src *rng.Source, o domain.Outcome) []domain.Market {
	id := o.EventID
	ps := o.Participants
	names := make([]string, len(ps))
	strengths := make([]float64, len(ps))
	for i, part := range ps {
		names[i] = part.Name
		strengths[i] = part.Strength
	}
	models := p.roundModels(ps)
	awardPoints := float64(p.quiz.FirstCorrectPoints + p.quiz.FastestResponsePoints)

	means := make([]float64, len(ps))
	vars := make([]float64, len(ps))
	totalMean, totalVar := awardPoints, 0.0
	for _, round := range models {
		for i, m := range round {
			means[i] += m.mean
			vars[i] += m.variance
			totalMean += m.mean
			totalVar += m.variance
		}
	}
	totalSD := math.Sqrt(totalVar)

	var markets []domain.Market
	winner := softmax(strengths, p.cfg.StrengthTemperature)
	markets = append(markets, p.nWay(src,
		domain.Market{EventID: id, Name: NameMatchWinner, Kind: domain.MarketKindWinner}, names, winner))

	markets = append(markets, p.priceLadder(src, id, ladder{
		name:    NameTotalPoints,
		subject: domain.StatTotalPoints,
		lines:   centeredLines(totalMean, math.Max(5, math.Round(totalSD/2)), 5),
		over: func(line, shift float64) float64 {
			return probAbove(line, totalMean+shift*totalSD, totalSD)
		},
	})...)

	top, second := topTwo(means)
	gapMean := means[top] - means[second]
	gapSD := math.Sqrt(vars[top] + vars[second])
	bandProbs := make([]float64, len(MarginBands))
	bandLabels := make([]string, len(MarginBands))
	for i, b := range MarginBands {
		bandLabels[i] = b.Label
		bandProbs[i] = foldedBand(b.Min, b.Max, gapMean, gapSD)
	}
	markets = append(markets, p.nWay(src,
		domain.Market{EventID: id, Name: NameWinningMargin, Kind: domain.MarketKindMarginBand}, bandLabels, bandProbs))

	for r := range models {
		probs := append(scaleAll(softmax(strengths, p.cfg.StrengthTemperature*1.5), 1-leaderDraw), leaderDraw)
		markets = append(markets, p.nWay(src, domain.Market{
			EventID: id, Name: RoundWinnerName(r + 1), Kind: domain.MarketKindRoundWinner, Round: r + 1,
		}, withDraw(names), probs))
	}

	markets = append(markets,
		p.binary(src, domain.Market{EventID: id, Name: NamePerfectRound, Kind: domain.MarketKindProp, Subject: domain.PropPerfectRound},
			p.perfectProb(models)),
		p.binary(src, domain.Market{EventID: id, Name: NameShutoutRound, Kind: domain.MarketKindProp, Subject: domain.PropShutoutRound},
			p.shutoutProb(models)),
		p.binary(src, domain.Market{EventID: id, Name: NameTieBreaker, Kind: domain.MarketKindProp, Subject: domain.PropTieBreaker},
			clampF(5*math.Exp(-gapMean*gapMean/(2*gapSD*gapSD))/(gapSD*math.Sqrt(2*math.Pi)), 0.01, 0.3)),
	)

	lambda := 0.6 + 2*(1-maxOf(winner))
	markets = append(markets, p.priceLadder(src, id, ladder{
		name:    NameLeadChanges,
		subject: domain.StatLeadChanges,
		lines:   []float64{0.5, 1.5, 2.5},
		over: func(line, shift float64) float64 {
			return poissonAbove(line, math.Max(0.05, lambda*(1+shift/4)))
		},
	})...)

	phase := append(scaleAll(winner, 1-leaderDraw), leaderDraw)
	markets = append(markets,
		p.nWay(src, domain.Market{EventID: id, Name: NameStrongStart, Kind: domain.MarketKindLeader, Subject: domain.LeaderStrongStart},
			withDraw(names), phase),
		p.nWay(src, domain.Market{EventID: id, Name: NameLateSurge, Kind: domain.MarketKindLeader, Subject: domain.LeaderLateSurge},
			withDraw(names), phase),
	)

	roundMeans := make([]float64, len(models))
	roundLabels := make([]string, len(models))
	sdSum := 0.0
	for r, round := range models {
		v := 0.0
		for _, m := range round {
			roundMeans[r] += m.mean
			v += m.variance
		}
		sdSum += math.Sqrt(v)
		roundLabels[r] = RoundLabel(r + 1)
	}
	markets = append(markets, p.nWay(src,
		domain.Market{EventID: id, Name: NameHighestRound, Kind: domain.MarketKindHighestRound},
		roundLabels, softmax(roundMeans, math.Max(1, sdSum/float64(len(models))))))

	uniform := make([]float64, len(names))
	for i := range uniform {
		uniform[i] = 1 / float64(len(names))
	}
	markets = append(markets,
		p.nWay(src, domain.Market{EventID: id, Name: NameFirstCorrect, Kind: domain.MarketKindAward, Subject: domain.AwardFirstCorrect},
			names, uniform),
		p.nWay(src, domain.Market{EventID: id, Name: NameFastestResponse, Kind: domain.MarketKindAward, Subject: domain.AwardFastestResponse},
			names, uniform),
	)
	return markets
}

// perfectProb is the chance that anyone answers every question of a round.
func (p *Pricer) perfectProb(models [][]roundModel) float64 {
	none := 1.0
	for r, round := range models {
		q := p.quiz.Rounds[r].Questions
		for _, m := range round {
			none *= 1 - math.Pow(m.pCorrect, float64(q))
		}
	}
	return 1 - none
}

// shutoutProb is the chance that anyone finishes a round on zero.
func (p *Pricer) shutoutProb(models [][]roundModel) float64 {
	none := 1.0
	for r, round := range models {
		rule := p.quiz.Rounds[r]
		maxCorrect := 0
		if rule.Points+rule.Penalty > 0 {
			maxCorrect = rule.Questions * rule.Penalty / (rule.Points + rule.Penalty)
		}
		for _, m := range round {
			none *= 1 - binomialCDF(maxCorrect, rule.Questions, m.pCorrect)
		}
	}
	return 1 - none
}

func topTwo(vals []float64) (int, int) {
	top, second := 0, -1
	for i := 1; i < len(vals); i++ {
		if vals[i] > vals[top] {
			top, second = i, top
		} else if second < 0 || vals[i] > vals[second] {
			second = i
		}
	}
	if second < 0 {
		second = top
	}
	return top, second
}

func withDraw(names []string) []string {
	out := make([]string, 0, len(names)+1)
	out = append(out, names...)
	return append(out, domain.SelectionDraw)
}

func scaleAll(ps []float64, k float64) []float64 {
	out := make([]float64, len(ps))
	for i, v := range ps {
		out[i] = v * k
	}
	return out
}

func maxOf(ps []float64) float64 {
	m := 0.0
	for _, v := range ps {
		m = math.Max(m, v)
	}
	return m
}
