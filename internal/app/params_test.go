package app

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/wagerbook/internal/config"
	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/pricing"
	"github.com/alanyoungcy/wagerbook/internal/simulator"
)

func TestQuizParamsKeepsDefaultsForZeroValues(t *testing.T) {
	p := quizParams(config.SimulationConfig{ChaosChance: 0.2, FirstCorrectPoints: 15})
	def := simulator.DefaultQuizParams()

	assert.Equal(t, 0.2, p.ChaosChance)
	assert.Equal(t, 15, p.FirstCorrectPoints)
	assert.Equal(t, def.OffDayChance, p.OffDayChance)
	assert.Equal(t, def.TieBreakIterations, p.TieBreakIterations)
	assert.Equal(t, def.Neighbors, p.Neighbors)
	assert.Len(t, p.Rounds, len(def.Rounds))
}

func TestDuelParamsMergesThrowTables(t *testing.T) {
	custom := simulator.ThrowTable{Miss: 0.5, Single: 0.5}
	p := duelParams(config.SimulationConfig{LateAggressionThreshold: 0.6},
		config.RiskFile{ThrowTables: map[int]simulator.ThrowTable{2: custom}})

	assert.Equal(t, 0.6, p.LateAggressionThreshold)
	assert.Equal(t, custom, p.TierTables[2])
	assert.Equal(t, simulator.DefaultDuelParams().TierTables[1], p.TierTables[1])
}

func TestPricingConfigOverridesBands(t *testing.T) {
	c := pricingConfig(config.PricingConfig{
		BaseMargin: 0.08,
		Bands:      map[string]config.OddsBounds{"winner": {Min: 1.2, Max: 10}},
	})

	assert.Equal(t, 0.08, c.BaseMargin)
	assert.Equal(t, pricing.OddsBand{Min: 1.2, Max: 10}, c.Bands[domain.MarketKindWinner])
	assert.Equal(t, pricing.DefaultConfig().Bands[domain.MarketKindProp], c.Bands[domain.MarketKindProp])
}

func TestSettlementLimits(t *testing.T) {
	l := settlementLimits(config.SettlementConfig{MaxPayoutPerEvent: 5000})
	assert.True(t, l.MaxPayoutPerEvent.Equal(decimal.NewFromInt(5000)))
	assert.True(t, l.SystemExposureMultiplier.Equal(decimal.NewFromInt(50)))
}
