// Package pricing turns modeled probabilities into bounded decimal odds and
// re-prices open markets from observed stake.
package pricing

import "github.com/alanyoungcy/wagerbook/internal/domain"

// OddsBand bounds the odds of one market kind.
type OddsBand struct {
	Min float64
	Max float64
}

// Config holds the tunable constants of the pricer.
type Config struct {
	BaseMargin        float64
	MarginScaling     float64
	VolatilityDamping float64
	NoiseAmplitude    float64
	TargetRTP         float64
	MinImplied        float64
	MaxImplied        float64
	GlobalMaxOdds     float64
	LadderIncrement   float64
	// StrengthTemperature flattens strength differences in winner models.
	StrengthTemperature float64
	DefaultBand         OddsBand
	Bands               map[domain.MarketKind]OddsBand
}

// DefaultConfig returns the stock pricing constants.
func DefaultConfig() Config {
	return Config{
		BaseMargin:          0.05,
		MarginScaling:       1.5,
		VolatilityDamping:   0.5,
		NoiseAmplitude:      0.04,
		TargetRTP:           0.97,
		MinImplied:          0.01,
		MaxImplied:          0.99,
		GlobalMaxOdds:       100,
		LadderIncrement:     0.02,
		StrengthTemperature: 12,
		DefaultBand:         OddsBand{Min: 1.01, Max: 50},
		Bands: map[domain.MarketKind]OddsBand{
			domain.MarketKindWinner:       {Min: 1.05, Max: 25},
			domain.MarketKindOverUnder:    {Min: 1.10, Max: 12},
			domain.MarketKindMarginBand:   {Min: 1.50, Max: 40},
			domain.MarketKindRoundWinner:  {Min: 1.20, Max: 30},
			domain.MarketKindProp:         {Min: 1.05, Max: 20},
			domain.MarketKindAward:        {Min: 1.50, Max: 6},
			domain.MarketKindLeader:       {Min: 1.20, Max: 30},
			domain.MarketKindHighestRound: {Min: 2.00, Max: 30},
		},
	}
}

// Band returns the effective bounds for kind, capped by GlobalMaxOdds.
func (c Config) Band(kind domain.MarketKind) OddsBand {
	b, ok := c.Bands[kind]
	if !ok {
		b = c.DefaultBand
	}
	if c.GlobalMaxOdds > 0 && b.Max > c.GlobalMaxOdds {
		b.Max = c.GlobalMaxOdds
	}
	if b.Min < 1.01 {
		b.Min = 1.01
	}
	return b
}
