package settlement

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// aggregate is the bet-level result derived from its legs.
type aggregate struct {
	terminal  bool
	status    domain.BetStatus
	payout    decimal.Decimal
	totalOdds decimal.Decimal
}

func effectiveOdds(l domain.Leg) decimal.Decimal {
	if l.Status == domain.LegStatusVoid {
		return domain.One
	}
	return l.Odds
}

// multiResult evaluates legs as one accumulator. A lost leg decides the
// result immediately; otherwise every leg must be terminal.
func multiResult(legs []domain.Leg) (terminal, lost, allVoid bool, odds decimal.Decimal, won int) {
	odds = domain.One
	allVoid = true
	pending := false
	for _, l := range legs {
		switch l.Status {
		case domain.LegStatusLost:
			return true, true, false, decimal.Zero, 0
		case domain.LegStatusWon:
			won++
			allVoid = false
		case domain.LegStatusVoid:
		default:
			pending = true
			allVoid = false
		}
		odds = odds.Mul(effectiveOdds(l))
	}
	return !pending, false, allVoid, odds, won
}

func aggregateMulti(t domain.MultiTerms, legs []domain.Leg, tables RiskTables) aggregate {
	terminal, lost, allVoid, odds, won := multiResult(legs)
	switch {
	case lost:
		return aggregate{terminal: true, status: domain.BetStatusLost, payout: decimal.Zero, totalOdds: decimal.Zero}
	case !terminal:
		return aggregate{totalOdds: odds}
	case allVoid:
		return aggregate{terminal: true, status: domain.BetStatusVoid, payout: t.Stake, totalOdds: domain.One}
	}
	base := t.Stake.Mul(odds)
	bonus := base.Mul(tables.bonusPercent(won))
	if tables.BonusCap.IsPositive() && bonus.GreaterThan(tables.BonusCap) {
		bonus = tables.BonusCap
	}
	return aggregate{
		terminal:  true,
		status:    domain.BetStatusWon,
		payout:    base.Add(bonus).Round(2),
		totalOdds: odds.Round(4),
	}
}

// aggregateSingle settles per-leg stakes. Winning returns are summed per
// event and capped; void stakes are refunded in full.
func aggregateSingle(legs []domain.Leg, limits Limits) aggregate {
	wins := make(map[domain.EventID]decimal.Decimal)
	var order []domain.EventID
	refunds := decimal.Zero
	anyWon, allVoid := false, true
	for _, l := range legs {
		switch l.Status {
		case domain.LegStatusWon:
			if _, ok := wins[l.EventID]; !ok {
				order = append(order, l.EventID)
			}
			wins[l.EventID] = wins[l.EventID].Add(l.Stake.Mul(l.Odds))
			anyWon, allVoid = true, false
		case domain.LegStatusVoid:
			refunds = refunds.Add(l.Stake)
		case domain.LegStatusLost:
			allVoid = false
		default:
			return aggregate{}
		}
	}
	payout := refunds
	for _, id := range order {
		w := wins[id]
		if limits.MaxPayoutPerEvent.IsPositive() && w.GreaterThan(limits.MaxPayoutPerEvent) {
			w = limits.MaxPayoutPerEvent
		}
		payout = payout.Add(w)
	}
	status := domain.BetStatusLost
	switch {
	case allVoid:
		status = domain.BetStatusVoid
	case anyWon:
		status = domain.BetStatusWon
	}
	return aggregate{terminal: true, status: status, payout: payout.Round(2), totalOdds: decimal.Zero}
}

// aggregateSystem evaluates every combination as an accumulator paying
// UnitStake. The total is capped at the stake times the exposure multiplier.
func aggregateSystem(t domain.SystemTerms, legs []domain.Leg, limits Limits) aggregate {
	payout := decimal.Zero
	anyWon, allVoid := false, true
	for _, combo := range t.Combinations {
		sub := make([]domain.Leg, 0, len(combo))
		for _, idx := range combo {
			if idx >= 0 && idx < len(legs) {
				sub = append(sub, legs[idx])
			}
		}
		terminal, lost, void, odds, _ := multiResult(sub)
		switch {
		case !terminal:
			return aggregate{}
		case lost:
			allVoid = false
		case void:
			payout = payout.Add(t.UnitStake)
		default:
			payout = payout.Add(t.UnitStake.Mul(odds))
			anyWon, allVoid = true, false
		}
	}
	total := t.UnitStake.Mul(decimal.NewFromInt(int64(len(t.Combinations))))
	if limits.SystemExposureMultiplier.IsPositive() {
		if ceiling := total.Mul(limits.SystemExposureMultiplier); payout.GreaterThan(ceiling) {
			payout = ceiling
		}
	}
	status := domain.BetStatusLost
	switch {
	case allVoid:
		status = domain.BetStatusVoid
	case anyWon:
		status = domain.BetStatusWon
	}
	return aggregate{terminal: true, status: status, payout: payout.Round(2), totalOdds: decimal.Zero}
}
