package settlement

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// EventResult is everything settlement knows about one event.
type EventResult struct {
	// Outcome is nil while the event is not final.
	Outcome *domain.Outcome
	Voided  bool
	// Overrides maps a normalized market name to the operator's result.
	Overrides map[string]string
}

// NewEventResult indexes overrides by normalized market name. Later entries
// replace earlier ones.
func NewEventResult(o *domain.Outcome, voided bool, overrides []domain.ManualOverride) EventResult {
	res := EventResult{Outcome: o, Voided: voided, Overrides: make(map[string]string, len(overrides))}
	for _, ov := range overrides {
		res.Overrides[NormalizeName(ov.Market)] = ov.Outcome
	}
	return res
}

// Verdict is the result of one settlement pass over a bet.
type Verdict struct {
	Bet     domain.Bet
	Changed bool
	// Entries holds the ledger credits owed when the bet turned terminal.
	Entries []domain.LedgerEntry
	// Unresolved lists leg indexes that no resolver or override could decide.
	Unresolved []int
}

// Settler resolves legs and aggregates bets. It never mutates its input.
type Settler struct {
	registry *Registry
	tables   RiskTables
	limits   Limits
	newID    func() string
}

// NewSettler creates a Settler.
func NewSettler(registry *Registry, tables RiskTables, limits Limits) *Settler {
	return &Settler{registry: registry, tables: tables, limits: limits, newID: uuid.NewString}
}

// ResolveLeg decides one leg. Event voids win over overrides, overrides win
// over the automatic table. A leg nobody can decide stays pending with
// ErrUnresolvableMarket.
func (s *Settler) ResolveLeg(leg domain.Leg, res EventResult) (domain.LegStatus, error) {
	if res.Voided {
		return domain.LegStatusVoid, nil
	}
	if outcome, ok := res.Overrides[NormalizeName(leg.Market)]; ok {
		switch {
		case NormalizeName(outcome) == domain.SelectionVoid:
			return domain.LegStatusVoid, nil
		case NormalizeName(outcome) == NormalizeName(leg.Selection):
			return domain.LegStatusWon, nil
		default:
			return domain.LegStatusLost, nil
		}
	}
	if res.Outcome == nil {
		return domain.LegStatusPending, nil
	}
	return s.registry.Resolve(*res.Outcome, leg.Market, leg.Selection)
}

// Settle runs one pass over bet with the event results known so far. Terminal
// bets and legs are left untouched, so repeated calls never pay twice.
func (s *Settler) Settle(bet domain.Bet, results map[domain.EventID]EventResult, now time.Time) Verdict {
	v := Verdict{Bet: bet}
	if bet.Status.Terminal() {
		return v
	}

	legs := make([]domain.Leg, len(bet.Legs))
	copy(legs, bet.Legs)
	for i := range legs {
		if legs[i].Status.Terminal() {
			continue
		}
		res, ok := results[legs[i].EventID]
		if !ok {
			continue
		}
		status, err := s.ResolveLeg(legs[i], res)
		if err != nil {
			if errors.Is(err, domain.ErrUnresolvableMarket) {
				v.Unresolved = append(v.Unresolved, i)
			}
			continue
		}
		if !status.Terminal() {
			continue
		}
		settledAt := now
		legs[i].Status = status
		legs[i].EffectiveOdds = effectiveOdds(legs[i])
		legs[i].SettledAt = &settledAt
		v.Changed = true
	}

	var agg aggregate
	switch t := bet.Terms.(type) {
	case domain.MultiTerms:
		agg = aggregateMulti(t, legs, s.tables)
	case domain.SystemTerms:
		agg = aggregateSystem(t, legs, s.limits)
	case domain.SingleTerms:
		agg = aggregateSingle(legs, s.limits)
	}

	out := bet
	out.Legs = legs
	if !agg.totalOdds.IsZero() {
		out.TotalOdds = agg.totalOdds
	}
	if agg.terminal {
		settledAt := now
		out.Status = agg.status
		out.Payout = agg.payout
		out.SettledAt = &settledAt
		v.Changed = true
		v.Entries = s.ledgerEntries(out, now)
	}
	v.Bet = out
	return v
}

func (s *Settler) ledgerEntries(bet domain.Bet, now time.Time) []domain.LedgerEntry {
	if !bet.Payout.IsPositive() {
		return nil
	}
	kind := domain.LedgerRefund
	if bet.Status == domain.BetStatusWon {
		kind = domain.LedgerPayout
	}
	return []domain.LedgerEntry{{
		ID:        s.newID(),
		BetID:     bet.ID,
		UserID:    bet.UserID,
		Amount:    bet.Payout,
		Kind:      kind,
		CreatedAt: now,
	}}
}

// Exposure returns the largest amount a pending bet can still pay.
func (s *Settler) Exposure(bet domain.Bet) decimal.Decimal {
	switch t := bet.Terms.(type) {
	case domain.MultiTerms:
		odds := domain.One
		for _, l := range bet.Legs {
			odds = odds.Mul(l.Odds)
		}
		base := t.Stake.Mul(odds)
		bonus := base.Mul(s.tables.bonusPercent(len(bet.Legs)))
		if s.tables.BonusCap.IsPositive() && bonus.GreaterThan(s.tables.BonusCap) {
			bonus = s.tables.BonusCap
		}
		return base.Add(bonus).Round(2)
	case domain.SystemTerms:
		total := decimal.Zero
		for _, combo := range t.Combinations {
			odds := domain.One
			for _, idx := range combo {
				if idx >= 0 && idx < len(bet.Legs) {
					odds = odds.Mul(bet.Legs[idx].Odds)
				}
			}
			total = total.Add(t.UnitStake.Mul(odds))
		}
		if s.limits.SystemExposureMultiplier.IsPositive() {
			ceiling := bet.TotalStake().Mul(s.limits.SystemExposureMultiplier)
			if total.GreaterThan(ceiling) {
				total = ceiling
			}
		}
		return total.Round(2)
	default:
		perEvent := map[domain.EventID]decimal.Decimal{}
		for _, l := range bet.Legs {
			perEvent[l.EventID] = perEvent[l.EventID].Add(l.Stake.Mul(l.Odds))
		}
		total := decimal.Zero
		for _, w := range perEvent {
			if s.limits.MaxPayoutPerEvent.IsPositive() && w.GreaterThan(s.limits.MaxPayoutPerEvent) {
				w = s.limits.MaxPayoutPerEvent
			}
			total = total.Add(w)
		}
		return total.Round(2)
	}
}
