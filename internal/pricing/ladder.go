package pricing

import (
	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/rng"
)

// ladder describes a family of Over/Under markets on one stat.
type ladder struct {
	name    string
	subject string
	lines   []float64
	// over returns P(stat > line) given a shift in standard deviations.
	over func(line, shift float64) float64
}

// Over and Under label prefixes.
const (
	OverPrefix  = "Over"
	UnderPrefix = "Under"
)

// OverLabel formats the Over selection of a line.
func OverLabel(line float64) string { return OverPrefix + " " + formatLine(line) }

// UnderLabel formats the Under selection of a line.
func UnderLabel(line float64) string { return UnderPrefix + " " + formatLine(line) }

// priceLadder generates every line from one probability curve. One noise
// draw shifts the whole curve, so lines stay ordered before the correction
// pass even runs.
func (p *Pricer) priceLadder(src *rng.Source, id domain.EventID, l ladder) []domain.Market {
	shift := p.noise(src) * 10
	band := p.cfg.Band(domain.MarketKindOverUnder)
	markets := make([]domain.Market, 0, len(l.lines))
	for _, line := range l.lines {
		pOver := clampF(l.over(line, shift), 0.001, 0.999)
		m := domain.Market{
			EventID: id,
			Name:    l.name + " " + formatLine(line),
			Kind:    domain.MarketKindOverUnder,
			Subject: l.subject,
			Line:    line,
			Status:  domain.MarketStatusOpen,
			Selections: []domain.Selection{
				{Label: OverLabel(line), ModelProb: round4(pOver), Odds: p.toOdds(pOver, band)},
				{Label: UnderLabel(line), ModelProb: round4(1 - pOver), Odds: p.toOdds(1-pOver, band)},
			},
		}
		markets = append(markets, m)
	}
	EnforceLadder(markets, p.cfg.LadderIncrement, band)
	for i := range markets {
		guardOverround(&markets[i], band)
		fillImplied(&markets[i])
	}
	return markets
}

// EnforceLadder corrects a ladder sorted by ascending line so Over odds never
// fall and Under odds never rise as the line increases. A violating price is
// raised to its neighbor's price plus inc, then capped at band.Max.
func EnforceLadder(markets []domain.Market, inc float64, band OddsBand) {
	over := func(i int) *domain.Selection { return &markets[i].Selections[0] }
	under := func(i int) *domain.Selection { return &markets[i].Selections[1] }

	for i := 1; i < len(markets); i++ {
		if over(i).Odds < over(i-1).Odds {
			over(i).Odds = round2(clampF(over(i-1).Odds+inc, band.Min, band.Max))
		}
	}
	for i := len(markets) - 2; i >= 0; i-- {
		if under(i).Odds < under(i+1).Odds {
			under(i).Odds = round2(clampF(under(i+1).Odds+inc, band.Min, band.Max))
		}
	}
}

// centeredLines returns count half-point lines spaced by step around mean.
func centeredLines(mean, step float64, count int) []float64 {
	if step < 1 {
		step = 1
	}
	center := float64(int(mean)) + 0.5
	lines := make([]float64, 0, count)
	for k := -(count / 2); len(lines) < count; k++ {
		line := center + float64(k)*step
		if line > 0 {
			lines = append(lines, line)
		}
	}
	return lines
}
