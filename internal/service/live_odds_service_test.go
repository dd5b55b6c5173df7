package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/pricing"
)

func oddsOf(t *testing.T, m domain.Market, label string) float64 {
	t.Helper()
	for _, s := range m.Selections {
		if s.Label == label {
			return s.Odds
		}
	}
	t.Fatalf("selection %q not in %q", label, m.Name)
	return 0
}

func TestRefreshShortensBackedSelection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.event(0)
	_, loser := h.winnerAndLoser(t, id)

	before := h.market(t, id, pricing.NameMatchWinner)
	h.placeSingle(t, id, pricing.NameMatchWinner, loser, 500)

	moved, err := h.liveSvc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, moved, "only the market that took stake moves")

	after, err := h.markets.Get(ctx, id, pricing.NameMatchWinner)
	require.NoError(t, err)
	assert.Less(t, oddsOf(t, after, loser), oddsOf(t, before, loser))
	assert.Equal(t, 1, h.bus.count(domain.ChannelOddsUpdate))

	// The same stake again converges on the same prices.
	moved, err = h.liveSvc.Refresh(ctx)
	require.NoError(t, err)
	assert.Zero(t, moved)
}

func TestRefreshLocksStartedEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.event(0)
	_, loser := h.winnerAndLoser(t, id)
	h.placeSingle(t, id, pricing.NameMatchWinner, loser, 500)

	h.startOf(id)
	moved, err := h.liveSvc.Refresh(ctx)
	require.NoError(t, err)
	assert.Zero(t, moved)
	assert.Zero(t, h.markets.statuses(id)[domain.MarketStatusOpen])
	assert.Positive(t, h.markets.statuses(id)[domain.MarketStatusLocked])
	assert.Zero(t, h.bus.count(domain.ChannelOddsUpdate))
}
