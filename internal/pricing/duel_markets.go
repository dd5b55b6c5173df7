package pricing

import (
	"math"

	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/rng"
	"github.com/alanyoungcy/wagerbook/internal/simulator"
)

// throwModel is the per-throw distribution implied by one tier table.
type throwModel struct {
	mean, variance float64
	bull, triple   float64
	maxTriple      float64
}

func newThrowModel(t simulator.ThrowTable) throwModel {
	total := t.Miss + t.InnerBull + t.OuterBull + t.MaxTriple + t.OtherTriple + t.Double + t.Single
	if total <= 0 {
		return throwModel{}
	}
	type cat struct{ w, mean, variance float64 }
	// Uniform segment variances: 1..19 tripled, 1..20 doubled, 1..20.
	cats := []cat{
		{t.Miss, 0, 0},
		{t.InnerBull, 50, 0},
		{t.OuterBull, 25, 0},
		{t.MaxTriple, 60, 0},
		{t.OtherTriple, 30, 9 * 30},
		{t.Double, 21, 4 * 33.25},
		{t.Single, 10.5, 33.25},
	}
	var m throwModel
	second := 0.0
	for _, c := range cats {
		w := c.w / total
		m.mean += w * c.mean
		second += w * (c.variance + c.mean*c.mean)
	}
	m.variance = second - m.mean*m.mean
	m.bull = (t.InnerBull + t.OuterBull) / total
	m.triple = (t.MaxTriple + t.OtherTriple) / total
	m.maxTriple = t.MaxTriple / total
	return m
}

func (p *Pricer) duelMarkets(src *rng.Source, o domain.Outcome) []domain.Market {
	id := o.EventID
	ps := o.Participants
	throws := float64(p.duel.Rounds * p.duel.ThrowsPerRound)
	roundThrows := float64(p.duel.ThrowsPerRound)

	names := make([]string, len(ps))
	tm := make([]throwModel, len(ps))
	for i, part := range ps {
		names[i] = part.Name
		tm[i] = newThrowModel(p.duel.TierTables[part.Tier])
	}

	var markets []domain.Market

	// Winner with draw from the normal total difference.
	diffMean := throws * (tm[0].mean - tm[1].mean)
	diffSD := math.Max(0.5, math.Sqrt(throws*(tm[0].variance+tm[1].variance)))
	p0 := 1 - normCDF((0.5-diffMean)/diffSD)
	p1 := normCDF((-0.5 - diffMean) / diffSD)
	draw := math.Max(0.005, 1-p0-p1)
	markets = append(markets, p.nWay(src,
		domain.Market{EventID: id, Name: NameMatchWinner, Kind: domain.MarketKindWinner},
		withDraw(names), []float64{p0, p1, draw}))

	totalMean := throws * (tm[0].mean + tm[1].mean)
	totalSD := diffSD
	markets = append(markets, p.priceLadder(src, id, ladder{
		name:    NameTotalPoints,
		subject: domain.StatTotalPoints,
		lines:   centeredLines(totalMean, math.Max(5, math.Round(totalSD/2)), 5),
		over: func(line, shift float64) float64 {
			return probAbove(line, totalMean+shift*totalSD, totalSD)
		},
	})...)

	bullLambda := throws * (tm[0].bull + tm[1].bull)
	markets = append(markets, p.priceLadder(src, id, ladder{
		name:    NameTotalBullseyes,
		subject: domain.StatBullseyes,
		lines:   []float64{0.5, 1.5, 2.5, 3.5},
		over: func(line, shift float64) float64 {
			return poissonAbove(line, math.Max(0.05, bullLambda*(1+shift/4)))
		},
	})...)

	noMax := 1.0
	for _, m := range tm {
		noMax *= math.Pow(1-math.Pow(m.maxTriple, roundThrows), float64(p.duel.Rounds))
	}
	markets = append(markets, p.binary(src,
		domain.Market{EventID: id, Name: NameMaximumThrown, Kind: domain.MarketKindProp, Subject: domain.PropMaximum},
		1-noMax))

	markets = append(markets, p.binary(src,
		domain.Market{EventID: id, Name: NameLateAggression, Kind: domain.MarketKindProp, Subject: domain.PropLateAggression},
		p.lateAggressionProb(tm)))

	tripMean := throws * (tm[0].triple - tm[1].triple)
	tripSD := math.Max(0.5, math.Sqrt(throws*(tm[0].triple*(1-tm[0].triple)+tm[1].triple*(1-tm[1].triple))))
	t0 := 1 - normCDF((0.5-tripMean)/tripSD)
	t1 := normCDF((-0.5 - tripMean) / tripSD)
	markets = append(markets, p.nWay(src,
		domain.Market{EventID: id, Name: NameMostTriples, Kind: domain.MarketKindLeader, Subject: domain.LeaderMostTriples},
		withDraw(names), []float64{t0, t1, math.Max(0.01, 1-t0-t1)}))

	return markets
}

// lateAggressionProb is the chance that either participant scores more than
// the threshold share of their total in the last two rounds. For one
// participant that is P((1-t)L - tE > 0) with L the last two rounds and E the
// rest, both normal.
func (p *Pricer) lateAggressionProb(tm []throwModel) float64 {
	t := p.duel.LateAggressionThreshold
	lateThrows := 2 * float64(p.duel.ThrowsPerRound)
	earlyThrows := float64(p.duel.Rounds-2) * float64(p.duel.ThrowsPerRound)
	none := 1.0
	for _, m := range tm {
		mean := (1-t)*lateThrows*m.mean - t*earlyThrows*m.mean
		v := (1-t)*(1-t)*lateThrows*m.variance + t*t*earlyThrows*m.variance
		if v <= 0 {
			continue
		}
		none *= 1 - probAbove(0, mean, math.Sqrt(v))
	}
	return 1 - none
}
