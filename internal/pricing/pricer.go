package pricing

import (
	"math"
	"strconv"

	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/rng"
	"github.com/alanyoungcy/wagerbook/internal/simulator"
)

// Pricer derives the full market set of an event. Model probabilities come
// from pre-event inputs only (strengths, tiers, scoring rules), never from
// the simulated result, so a displayed price cannot leak the outcome.
type Pricer struct {
	cfg  Config
	quiz simulator.QuizParams
	duel simulator.DuelParams
}

// New creates a Pricer.
func New(cfg Config, quiz simulator.QuizParams, duel simulator.DuelParams) *Pricer {
	return &Pricer{cfg: cfg, quiz: quiz, duel: duel}
}

// Config returns the pricing constants.
func (p *Pricer) Config() Config { return p.cfg }

// Price builds every market for the outcome's event. The result is a pure
// function of the outcome's inputs and seed.
func (p *Pricer) Price(o domain.Outcome, seed int64) []domain.Market {
	src := rng.New(rng.Combine(rng.HashString(o.EventID.String()), seed))
	if o.Kind == domain.EventKindDuel {
		return p.duelMarkets(src, o)
	}
	return p.quizMarkets(src, o)
}

// Odds converts one probability into bounded decimal odds for kind. No noise
// is applied.
func (p *Pricer) Odds(prob float64, kind domain.MarketKind) float64 {
	return p.toOdds(prob, p.cfg.Band(kind))
}

// toOdds applies the probability-dependent margin, clamps the implied
// probability, inverts, scales by the target RTP and clamps to band.
func (p *Pricer) toOdds(prob float64, band OddsBand) float64 {
	prob = clampF(prob, 0, 1)
	margin := p.cfg.BaseMargin * (1 + p.cfg.MarginScaling*(1-prob))
	implied := clampF(prob*(1+margin), p.cfg.MinImplied, p.cfg.MaxImplied)
	odds := 1 / implied
	if p.cfg.TargetRTP > 0 {
		odds *= p.cfg.TargetRTP
	}
	return round2(clampF(odds, band.Min, band.Max))
}

func (p *Pricer) noise(src *rng.Source) float64 {
	return (src.Float64() - 0.5) * p.cfg.NoiseAmplitude * p.cfg.VolatilityDamping
}

// nWay prices a mutually exclusive market. Each model probability receives
// its own noise before the set is renormalized.
func (p *Pricer) nWay(src *rng.Source, m domain.Market, labels []string, model []float64) domain.Market {
	model = normalize(model)
	noisy := make([]float64, len(model))
	for i, pr := range model {
		noisy[i] = pr + p.noise(src)
	}
	noisy = normalize(noisy)

	band := p.cfg.Band(m.Kind)
	m.Status = domain.MarketStatusOpen
	m.Selections = make([]domain.Selection, len(labels))
	for i, label := range labels {
		m.Selections[i] = domain.Selection{Label: label, ModelProb: round4(model[i])}
	}
	for i := range labels {
		m.Selections[i].Odds = p.toOdds(noisy[i], band)
	}
	guardOverround(&m, band)
	fillImplied(&m)
	return m
}

// binary prices a Yes/No market.
func (p *Pricer) binary(src *rng.Source, m domain.Market, yes float64) domain.Market {
	return p.nWay(src, m, []string{domain.SelectionYes, domain.SelectionNo}, []float64{yes, 1 - yes})
}

// guardOverround shortens prices until the book is at least fair. Pricing
// normally leaves a margin; rounding and band clamps can erode it. Selections
// pinned at band.Min cannot move, so the shortfall is spread over the rest.
func guardOverround(m *domain.Market, band OddsBand) {
	if m.Overround() >= 1 {
		return
	}
	free := make([]bool, len(m.Selections))
	for i, s := range m.Selections {
		free[i] = s.Odds > band.Min
	}
	for range m.Selections {
		pinned, movable := 0.0, 0.0
		for i, s := range m.Selections {
			if s.Odds <= 0 {
				continue
			}
			if free[i] {
				movable += 1 / s.Odds
			} else {
				pinned += 1 / s.Odds
			}
		}
		if movable == 0 || pinned+movable >= 1 {
			break
		}
		// Multiplying every movable price by k lifts their implied total
		// to exactly 1 - pinned.
		k := movable / (1 - pinned)
		clamped := false
		for i := range m.Selections {
			if !free[i] {
				continue
			}
			m.Selections[i].Odds *= k
			if m.Selections[i].Odds <= band.Min {
				m.Selections[i].Odds = band.Min
				free[i] = false
				clamped = true
			}
		}
		if !clamped {
			break
		}
	}

	// Rounding down only adds margin.
	for i := range m.Selections {
		m.Selections[i].Odds = math.Max(band.Min, math.Floor(m.Selections[i].Odds*100)/100)
	}
	for step := 0; step < 100 && m.Overround() < 1; step++ {
		j := -1
		for i, s := range m.Selections {
			if s.Odds > band.Min && (j < 0 || s.Odds > m.Selections[j].Odds) {
				j = i
			}
		}
		if j < 0 {
			return
		}
		m.Selections[j].Odds = round2(math.Max(band.Min, m.Selections[j].Odds-0.01))
	}
}

func fillImplied(m *domain.Market) {
	for i := range m.Selections {
		if m.Selections[i].Odds > 0 {
			m.Selections[i].ImpliedProb = round4(1 / m.Selections[i].Odds)
		}
	}
}

// formatLine renders a threshold the way selection labels carry it.
func formatLine(line float64) string {
	return strconv.FormatFloat(line, 'f', -1, 64)
}

func clampF(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
