package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

func TestGuardDropsCorrelated(t *testing.T) {
	g := NewGuard(DefaultRiskTables())
	legs := []domain.Leg{
		leg(evA, "Match Winner", "Alpha", "2.00"),
		leg(evA, "Winning Margin", "1-10", "3.00"),
		leg(evA, "Total Points 120.5", "Over 120.5", "1.90"),
		leg(evA, "Highest Scoring Round", "Round 5", "4.00"),
		leg(evB, "Match Winner", "Bravo", "2.50"),
		leg(evA, "First Correct Award", "Alpha", "3.00"),
		leg(evA, "Mystery", "Alpha", "3.00"),
		leg(evA, "Round 1 Winner", "Alpha", "2.80"),
		leg(evA, "Perfect Round", "Yes", "6.00"),
		leg(evA, "Fastest Response Award", "Bravo", "3.10"),
	}
	kept, dropped := g.Filter(legs)

	var keptMarkets []string
	for _, l := range kept {
		keptMarkets = append(keptMarkets, l.Market)
	}
	assert.Equal(t, []string{"Match Winner", "Total Points 120.5", "Match Winner", "First Correct Award", "Mystery", "Round 1 Winner"}, keptMarkets)
	assert.Len(t, dropped, 4)
	assert.Equal(t, "Winning Margin", dropped[0].Market)
	assert.Equal(t, "Perfect Round", dropped[2].Market)
	assert.Equal(t, "Fastest Response Award", dropped[3].Market)
}

func TestGuardDropsRepeatedMarket(t *testing.T) {
	g := NewGuard(RiskTables{})
	legs := []domain.Leg{
		leg(evA, "Round 1 Winner", "Alpha", "2.80"),
		leg(evA, "round 1  winner", "Bravo", "3.40"),
		leg(evA, "Round 2 Winner", "Bravo", "3.00"),
		leg(evA, "Mystery Market", "Yes", "2.00"),
		leg(evA, "mystery   market", "No", "2.00"),
		leg(evB, "Round 1 Winner", "Alpha", "2.80"),
	}
	kept, dropped := g.Filter(legs)

	assert.Len(t, kept, 4)
	if assert.Len(t, dropped, 2) {
		assert.Equal(t, "Bravo", dropped[0].Selection)
		assert.Equal(t, "No", dropped[1].Selection)
	}
}

func TestGuardGroup(t *testing.T) {
	g := NewGuard(DefaultRiskTables())
	assert.Equal(t, "win", g.Group("Match Winner"))
	assert.Equal(t, "points", g.Group("Total Points 10.5"))
	assert.Equal(t, "flow", g.Group("Strong Start Leader"))
	assert.Equal(t, "win", g.Group("Most Triples"))
	assert.Equal(t, "rounds", g.Group("Round 2 Winner"))
	assert.Equal(t, "awards", g.Group("Fastest Response"))
	assert.Equal(t, "", g.Group("Unknown"))
}
