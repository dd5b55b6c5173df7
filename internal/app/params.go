package app

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/wagerbook/internal/config"
	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/pricing"
	"github.com/alanyoungcy/wagerbook/internal/settlement"
	"github.com/alanyoungcy/wagerbook/internal/simulator"
)

// Zero values in the configuration keep the package defaults throughout.

func quizParams(sc config.SimulationConfig) simulator.QuizParams {
	p := simulator.DefaultQuizParams()
	setInt(&p.TieBreakIterations, sc.TieBreakIterations)
	setFloat(&p.OffDayChance, sc.OffDayChance)
	setFloat(&p.OffDayMin, sc.OffDayMin)
	setFloat(&p.OffDayMax, sc.OffDayMax)
	setFloat(&p.HotStreakChance, sc.HotStreakChance)
	setFloat(&p.HotStreakMin, sc.HotStreakMin)
	setFloat(&p.HotStreakMax, sc.HotStreakMax)
	setFloat(&p.ChaosChance, sc.ChaosChance)
	setInt(&p.FirstCorrectPoints, sc.FirstCorrectPoints)
	setInt(&p.FastestResponsePoints, sc.FastestResponsePoints)
	if len(sc.Neighbors) > 0 {
		p.Neighbors = sc.Neighbors
	}
	return p
}

func duelParams(sc config.SimulationConfig, risk config.RiskFile) simulator.DuelParams {
	p := simulator.DefaultDuelParams()
	setFloat(&p.LateAggressionThreshold, sc.LateAggressionThreshold)
	for tier, table := range risk.ThrowTables {
		p.TierTables[tier] = table
	}
	return p
}

func pricingConfig(pc config.PricingConfig) pricing.Config {
	c := pricing.DefaultConfig()
	setFloat(&c.BaseMargin, pc.BaseMargin)
	setFloat(&c.MarginScaling, pc.MarginScaling)
	setFloat(&c.VolatilityDamping, pc.VolatilityDamping)
	setFloat(&c.NoiseAmplitude, pc.NoiseAmplitude)
	setFloat(&c.TargetRTP, pc.TargetRTP)
	setFloat(&c.MinImplied, pc.MinImplied)
	setFloat(&c.MaxImplied, pc.MaxImplied)
	setFloat(&c.GlobalMaxOdds, pc.GlobalMaxOdds)
	setFloat(&c.LadderIncrement, pc.LadderIncrement)
	for kind, b := range pc.Bands {
		c.Bands[domain.MarketKind(kind)] = pricing.OddsBand{Min: b.Min, Max: b.Max}
	}
	return c
}

func liveConfig(lc config.LiveOddsConfig) pricing.LiveConfig {
	c := pricing.DefaultLiveConfig()
	setFloat(&c.ModelWeight, lc.ModelWeight)
	setFloat(&c.StakeWeight, lc.StakeWeight)
	setFloat(&c.TargetOverround, lc.TargetOverround)
	setFloat(&c.MinOdds, lc.MinOdds)
	setFloat(&c.MaxOdds, lc.MaxOdds)
	return c
}

func settlementLimits(sc config.SettlementConfig) settlement.Limits {
	l := settlement.DefaultLimits()
	if sc.MaxPayoutPerEvent > 0 {
		l.MaxPayoutPerEvent = decimal.NewFromFloat(sc.MaxPayoutPerEvent)
	}
	if sc.SystemExposureMultiplier > 0 {
		l.SystemExposureMultiplier = decimal.NewFromFloat(sc.SystemExposureMultiplier)
	}
	return l
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
