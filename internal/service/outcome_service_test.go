package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

func TestDeriveIsPinnedByCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.event(0)

	first, err := h.outcomeSvc.Derive(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, first.EventID)
	assert.Len(t, first.Participants, 3)

	// A strength update after pricing must not move the outcome.
	for _, p := range first.Participants {
		require.NoError(t, h.strengths.Upsert(ctx, p.Name, 99))
	}
	second, err := h.outcomeSvc.Derive(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, first.Totals, second.Totals)
	assert.Equal(t, first.WinnerIndex, second.WinnerIndex)
}

func TestFinalizeSettlesThePricedOutcomeAfterCacheLoss(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.event(0)

	priced, err := h.outcomeSvc.Derive(ctx, id)
	require.NoError(t, err)

	// Cache eviction plus a strength swing between pricing and settlement.
	require.NoError(t, h.ocache.Invalidate(ctx, id))
	for i, p := range priced.Participants {
		require.NoError(t, h.strengths.Upsert(ctx, p.Name, float64(1+i*40)))
	}
	h.endOf(id)

	final, err := h.outcomeSvc.Finalize(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, priced.Totals, final.Totals)
	assert.Equal(t, priced.WinnerIndex, final.WinnerIndex)
	assert.Equal(t, priced.Participants, final.Participants)

	status, err := h.outcomes.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusFinal, status)
}

func TestPinnedOutcomeHiddenUntilFinal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.event(2)

	_, err := h.outcomeSvc.Derive(ctx, id)
	require.NoError(t, err)

	_, err = h.outcomes.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = h.outcomes.Pinned(ctx, id)
	assert.NoError(t, err)
}

func TestSimulateIsDeterministic(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.event(1)

	a, err := h.outcomeSvc.Simulate(ctx, id)
	require.NoError(t, err)
	b, err := h.outcomeSvc.Simulate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFinalizeBeforeEnd(t *testing.T) {
	h := newHarness(t)
	_, err := h.outcomeSvc.Finalize(context.Background(), h.event(0))
	assert.ErrorIs(t, err, domain.ErrEventNotFinal)

	_, err = h.outcomeSvc.Get(context.Background(), h.event(0))
	assert.ErrorIs(t, err, domain.ErrEventNotFinal)
}

func TestFinalizeOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.event(0)

	derived, err := h.outcomeSvc.Derive(ctx, id)
	require.NoError(t, err)
	h.endOf(id)

	o, err := h.outcomeSvc.Finalize(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, derived.Totals, o.Totals)
	assert.Equal(t, 1, h.bus.count(domain.ChannelEventFinalized))

	again, err := h.outcomeSvc.Finalize(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, o.Totals, again.Totals)
	assert.Equal(t, 1, h.bus.count(domain.ChannelEventFinalized), "second finalize is silent")

	status, err := h.outcomeSvc.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusFinal, status)
}

func TestGetFallsBackToArchive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.event(0)
	h.endOf(id)

	o, err := h.outcomeSvc.Get(ctx, id)
	require.NoError(t, err)
	require.NoError(t, h.archive.Put(ctx, o))

	pruned, err := h.outcomes.Prune(ctx, h.clock.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	got, err := h.outcomeSvc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, o.Totals, got.Totals)

	status, err := h.outcomeSvc.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusFinal, status)
}

func TestVoidBlocksFinalize(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.event(0)

	require.NoError(t, h.outcomeSvc.Void(ctx, id, "venue closed"))
	h.endOf(id)

	_, err := h.outcomeSvc.Finalize(ctx, id)
	assert.ErrorIs(t, err, domain.ErrEventVoided)
	_, err = h.outcomeSvc.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrEventVoided)
}

func TestSimulateDuel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	o, err := h.outcomeSvc.Simulate(ctx, domain.EventID{Round: 100, Index: 42, Category: domain.CategoryDuel})
	require.NoError(t, err)
	assert.Equal(t, domain.EventKindDuel, o.Kind)
	assert.Len(t, o.Participants, 2)

	_, err = h.outcomeSvc.Simulate(ctx, domain.EventID{Round: 100, Index: -1, Category: domain.CategoryDuel})
	assert.ErrorIs(t, err, domain.ErrInvalidEventID)
}
