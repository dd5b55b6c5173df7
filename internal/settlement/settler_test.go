package settlement

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

var (
	evA = domain.EventID{Round: 5, Index: 0, Category: domain.CategoryNational}
	evB = domain.EventID{Round: 5, Index: 1, Category: domain.CategoryNational}
	evC = domain.EventID{Round: 5, Index: 2, Category: domain.CategoryNational}
	now = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func outcome(id domain.EventID, totals []int, winner int) *domain.Outcome {
	return &domain.Outcome{
		EventID: id,
		Kind:    domain.EventKindQuiz,
		Participants: []domain.Participant{
			{Name: "Alpha"}, {Name: "Bravo"}, {Name: "Charlie"},
		},
		Rounds:      []domain.RoundResult{{Number: 1, Scores: totals}},
		Totals:      totals,
		WinnerIndex: winner,
	}
}

func leg(id domain.EventID, market, selection, odds string) domain.Leg {
	return domain.Leg{
		ID: fmt.Sprintf("%s/%s/%s", id, market, selection), EventID: id,
		Market: market, Selection: selection, Odds: d(odds), Status: domain.LegStatusPending,
	}
}

func testSettler() *Settler {
	tables := RiskTables{
		DriverGroups: DefaultRiskTables().DriverGroups,
		BonusTiers:   []BonusTier{{Legs: 3, Percent: d("0.05")}, {Legs: 5, Percent: d("0.10")}},
		BonusCap:     d("100"),
	}
	s := NewSettler(DefaultRegistry(), tables, Limits{MaxPayoutPerEvent: d("3000"), SystemExposureMultiplier: d("50")})
	n := 0
	s.newID = func() string { n++; return fmt.Sprintf("ledger-%d", n) }
	return s
}

func winners(events ...domain.EventID) map[domain.EventID]EventResult {
	out := map[domain.EventID]EventResult{}
	for _, id := range events {
		out[id] = EventResult{Outcome: outcome(id, []int{60, 40, 30}, 0)}
	}
	return out
}

func TestAccumulatorArithmetic(t *testing.T) {
	s := testSettler()
	bet := domain.Bet{
		ID: "b1", UserID: "u1", Status: domain.BetStatusPending,
		Terms: domain.MultiTerms{Stake: d("10")},
		Legs: []domain.Leg{
			leg(evA, "Match Winner", "Alpha", "2.00"),
			leg(evB, "Match Winner", "Alpha", "1.50"),
			leg(evC, "Match Winner", "Alpha", "3.00"),
		},
	}
	v := s.Settle(bet, winners(evA, evB, evC), now)

	require.True(t, v.Changed)
	assert.Equal(t, domain.BetStatusWon, v.Bet.Status)
	assert.True(t, d("9").Equal(v.Bet.TotalOdds), v.Bet.TotalOdds.String())
	// 90.00 base plus min(90 * 5%, cap).
	assert.True(t, d("94.5").Equal(v.Bet.Payout), v.Bet.Payout.String())
	require.Len(t, v.Entries, 1)
	assert.Equal(t, domain.LedgerPayout, v.Entries[0].Kind)
	assert.True(t, d("94.50").Equal(v.Entries[0].Amount))
	assert.Equal(t, "b1", v.Entries[0].BetID)
}

func TestAccumulatorBonusCap(t *testing.T) {
	s := testSettler()
	s.tables.BonusCap = d("2")
	bet := domain.Bet{
		ID: "b1", Terms: domain.MultiTerms{Stake: d("10")},
		Legs: []domain.Leg{
			leg(evA, "Match Winner", "Alpha", "2.00"),
			leg(evB, "Match Winner", "Alpha", "1.50"),
			leg(evC, "Match Winner", "Alpha", "3.00"),
		},
	}
	v := s.Settle(bet, winners(evA, evB, evC), now)
	assert.True(t, d("92").Equal(v.Bet.Payout), v.Bet.Payout.String())
}

func TestVoidNeutrality(t *testing.T) {
	s := testSettler()
	bet := domain.Bet{
		ID: "b2", Terms: domain.MultiTerms{Stake: d("10")},
		Legs: []domain.Leg{
			leg(evA, "Match Winner", "Alpha", "1.80"),
			leg(evB, "Match Winner", "Alpha", "2.50"),
		},
	}
	results := map[domain.EventID]EventResult{
		evA: {Voided: true},
		evB: {Outcome: outcome(evB, []int{60, 40, 30}, 0)},
	}
	v := s.Settle(bet, results, now)

	assert.Equal(t, domain.BetStatusWon, v.Bet.Status)
	assert.True(t, d("25").Equal(v.Bet.Payout), v.Bet.Payout.String())
	assert.Equal(t, domain.LegStatusVoid, v.Bet.Legs[0].Status)
	assert.True(t, domain.One.Equal(v.Bet.Legs[0].EffectiveOdds))
	assert.True(t, d("2.5").Equal(v.Bet.TotalOdds))
}

func TestAllVoidMultiRefunds(t *testing.T) {
	s := testSettler()
	bet := domain.Bet{
		ID: "b3", Terms: domain.MultiTerms{Stake: d("10")},
		Legs: []domain.Leg{leg(evA, "Match Winner", "Alpha", "1.80"), leg(evA, "Perfect Round", "Yes", "4.00")},
	}
	v := s.Settle(bet, map[domain.EventID]EventResult{evA: {Voided: true}}, now)
	assert.Equal(t, domain.BetStatusVoid, v.Bet.Status)
	assert.True(t, d("10").Equal(v.Bet.Payout))
	require.Len(t, v.Entries, 1)
	assert.Equal(t, domain.LedgerRefund, v.Entries[0].Kind)
}

func TestMultiShortCircuitsOnLoss(t *testing.T) {
	s := testSettler()
	bet := domain.Bet{
		ID: "b4", Terms: domain.MultiTerms{Stake: d("10")},
		Legs: []domain.Leg{leg(evA, "Match Winner", "Bravo", "3.00"), leg(evB, "Match Winner", "Alpha", "2.00")},
	}
	v := s.Settle(bet, winners(evA), now)
	assert.Equal(t, domain.BetStatusLost, v.Bet.Status)
	assert.True(t, v.Bet.Payout.IsZero())
	assert.Equal(t, domain.LegStatusPending, v.Bet.Legs[1].Status)
	assert.Empty(t, v.Entries)
}

func TestMultiWaitsForPendingLegs(t *testing.T) {
	s := testSettler()
	bet := domain.Bet{
		ID: "b5", Status: domain.BetStatusPending, Terms: domain.MultiTerms{Stake: d("10")},
		Legs: []domain.Leg{leg(evA, "Match Winner", "Alpha", "2.00"), leg(evB, "Match Winner", "Alpha", "2.00")},
	}
	v := s.Settle(bet, winners(evA), now)
	assert.True(t, v.Changed)
	assert.Equal(t, domain.BetStatusPending, v.Bet.Status)
	assert.Equal(t, domain.LegStatusWon, v.Bet.Legs[0].Status)
	assert.Empty(t, v.Entries)

	v = s.Settle(v.Bet, winners(evA, evB), now)
	assert.Equal(t, domain.BetStatusWon, v.Bet.Status)
	assert.True(t, d("40").Equal(v.Bet.Payout))
}

func TestPerEventPayoutCap(t *testing.T) {
	s := testSettler()
	a := leg(evA, "Match Winner", "Alpha", "2.00")
	a.Stake = d("1000")
	b := leg(evA, "Total Points", "Over 120.5", "2.00")
	b.Stake = d("1000")
	c := leg(evB, "Match Winner", "Alpha", "2.00")
	c.Stake = d("10")
	bet := domain.Bet{ID: "b6", Terms: domain.SingleTerms{}, Legs: []domain.Leg{a, b, c}}

	v := s.Settle(bet, winners(evA, evB), now)
	require.Equal(t, domain.LegStatusWon, v.Bet.Legs[1].Status)
	assert.Equal(t, domain.BetStatusWon, v.Bet.Status)
	// evA contributes 3000 (not 4000), evB 20.
	assert.True(t, d("3020").Equal(v.Bet.Payout), v.Bet.Payout.String())
}

func TestSinglesRefundVoidLegs(t *testing.T) {
	s := testSettler()
	a := leg(evA, "Match Winner", "Bravo", "3.00")
	a.Stake = d("5")
	b := leg(evB, "Match Winner", "Alpha", "2.00")
	b.Stake = d("7")
	bet := domain.Bet{ID: "b7", Terms: domain.SingleTerms{}, Legs: []domain.Leg{a, b}}
	results := map[domain.EventID]EventResult{
		evA: {Outcome: outcome(evA, []int{60, 40, 30}, 0)},
		evB: {Voided: true},
	}
	v := s.Settle(bet, results, now)
	assert.Equal(t, domain.BetStatusLost, v.Bet.Status)
	assert.True(t, d("7").Equal(v.Bet.Payout))
	require.Len(t, v.Entries, 1)
	assert.Equal(t, domain.LedgerRefund, v.Entries[0].Kind)
}

func TestSettleIsIdempotent(t *testing.T) {
	s := testSettler()
	bet := domain.Bet{
		ID: "b8", Terms: domain.MultiTerms{Stake: d("10")},
		Legs: []domain.Leg{leg(evA, "Match Winner", "Alpha", "2.00"), leg(evB, "Match Winner", "Alpha", "2.00")},
	}
	first := s.Settle(bet, winners(evA, evB), now)
	require.True(t, first.Bet.Status.Terminal())

	later := now.Add(time.Hour)
	second := s.Settle(first.Bet, map[domain.EventID]EventResult{evA: {Voided: true}, evB: {Voided: true}}, later)
	assert.False(t, second.Changed)
	assert.Empty(t, second.Entries)
	assert.Equal(t, first.Bet, second.Bet)
}

func TestOverUnderScenario(t *testing.T) {
	s := testSettler()
	over := leg(evA, "Total Points", "Over 120.5", "1.90")

	status, err := s.ResolveLeg(over, EventResult{Outcome: outcome(evA, []int{60, 40, 30}, 0)})
	require.NoError(t, err)
	assert.Equal(t, domain.LegStatusWon, status)

	status, err = s.ResolveLeg(over, EventResult{Outcome: outcome(evA, []int{50, 30, 20}, 0)})
	require.NoError(t, err)
	assert.Equal(t, domain.LegStatusLost, status)
}

func TestUnresolvableStaysPending(t *testing.T) {
	s := testSettler()
	bet := domain.Bet{
		ID: "b9", Status: domain.BetStatusPending, Terms: domain.MultiTerms{Stake: d("10")},
		Legs: []domain.Leg{leg(evA, "Most Sixes", "Alpha", "2.00"), leg(evA, "Match Winner", "Alpha", "2.00")},
	}
	v := s.Settle(bet, winners(evA), now)
	assert.Equal(t, []int{0}, v.Unresolved)
	assert.Equal(t, domain.LegStatusPending, v.Bet.Legs[0].Status)
	assert.Equal(t, domain.BetStatusPending, v.Bet.Status)
}

func TestOverrideTakesPrecedence(t *testing.T) {
	s := testSettler()
	res := NewEventResult(outcome(evA, []int{60, 40, 30}, 0), false, []domain.ManualOverride{
		{EventID: evA, Market: "match winner", Outcome: "Bravo"},
		{EventID: evA, Market: "Most Sixes", Outcome: domain.SelectionVoid},
	})

	status, err := s.ResolveLeg(leg(evA, "Match Winner", "Bravo", "3.00"), res)
	require.NoError(t, err)
	assert.Equal(t, domain.LegStatusWon, status)

	status, err = s.ResolveLeg(leg(evA, "Match Winner", "Alpha", "2.00"), res)
	require.NoError(t, err)
	assert.Equal(t, domain.LegStatusLost, status)

	status, err = s.ResolveLeg(leg(evA, "Most Sixes", "Alpha", "2.00"), res)
	require.NoError(t, err)
	assert.Equal(t, domain.LegStatusVoid, status)
}

func TestSystemBet(t *testing.T) {
	s := testSettler()
	bet := domain.Bet{
		ID: "b10",
		Terms: domain.SystemTerms{
			UnitStake:    d("5"),
			Combinations: [][]int{{0, 1}, {0, 2}, {1, 2}},
		},
		Legs: []domain.Leg{
			leg(evA, "Match Winner", "Alpha", "2.00"),
			leg(evB, "Match Winner", "Alpha", "3.00"),
			leg(evC, "Match Winner", "Bravo", "4.00"),
		},
	}
	v := s.Settle(bet, winners(evA, evB, evC), now)
	assert.Equal(t, domain.BetStatusWon, v.Bet.Status)
	// Only {0,1} wins: 5 * 2 * 3.
	assert.True(t, d("30").Equal(v.Bet.Payout), v.Bet.Payout.String())

	s.limits.SystemExposureMultiplier = d("1.5")
	v = s.Settle(bet, winners(evA, evB, evC), now)
	assert.True(t, d("22.5").Equal(v.Bet.Payout), v.Bet.Payout.String())
}

func TestSystemWaitsForCombinations(t *testing.T) {
	s := testSettler()
	bet := domain.Bet{
		ID:     "b11",
		Status: domain.BetStatusPending,
		Terms:  domain.SystemTerms{UnitStake: d("5"), Combinations: [][]int{{0, 1}, {0, 2}}},
		Legs: []domain.Leg{
			leg(evA, "Match Winner", "Alpha", "2.00"),
			leg(evB, "Match Winner", "Alpha", "3.00"),
			leg(evC, "Match Winner", "Alpha", "4.00"),
		},
	}
	v := s.Settle(bet, winners(evA, evB), now)
	assert.Equal(t, domain.BetStatusPending, v.Bet.Status)
	assert.Empty(t, v.Entries)
}

func TestExposure(t *testing.T) {
	s := testSettler()
	bet := domain.Bet{
		Terms: domain.MultiTerms{Stake: d("10")},
		Legs: []domain.Leg{
			leg(evA, "Match Winner", "Alpha", "2.00"),
			leg(evB, "Match Winner", "Alpha", "1.50"),
			leg(evC, "Match Winner", "Alpha", "3.00"),
		},
	}
	assert.True(t, d("94.5").Equal(s.Exposure(bet)))
}
