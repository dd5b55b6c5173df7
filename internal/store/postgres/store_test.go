package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/wb?sslmode=disable",
		DSN(ClientConfig{User: "u", Password: "p", Host: "db", Database: "wb"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))
}

func TestAppendListOpts(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	query, args := appendListOpts("SELECT 1 FROM t WHERE a = $1", []any{"x"},
		domain.ListOpts{Since: &since, Limit: 10, Offset: 5}, "created_at", "DESC")

	assert.Equal(t,
		"SELECT 1 FROM t WHERE a = $1 AND created_at >= $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4",
		query)
	assert.Equal(t, []any{"x", since, 10, 5}, args)
}

// testClient connects to the database named by WAGERBOOK_TEST_POSTGRES_DSN and
// skips the test when it is unset or unreachable.
func testClient(t *testing.T) *Client {
	t.Helper()
	dsn := os.Getenv("WAGERBOOK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("WAGERBOOK_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := New(ctx, ClientConfig{DSN: dsn})
	if err != nil {
		t.Skipf("postgres unreachable: %v", err)
	}
	t.Cleanup(c.Close)
	require.NoError(t, c.RunMigrations(ctx))
	return c
}

func uniqueEvent() domain.EventID {
	return domain.EventID{
		Round:    time.Now().UnixNano(),
		Index:    1,
		Category: domain.CategoryRegional,
		Region:   "north",
	}
}

func TestOutcomeStoreSaveOnce(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	store := NewOutcomeStore(c.Pool())
	id := uniqueEvent()

	status, err := store.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusScheduled, status)

	o := domain.Outcome{EventID: id, Kind: domain.EventKindQuiz, Totals: []int{10, 20, 5}, WinnerIndex: 1}
	saved, err := store.Save(ctx, o)
	require.NoError(t, err)
	assert.True(t, saved)

	o.WinnerIndex = 0
	saved, err = store.Save(ctx, o)
	require.NoError(t, err)
	assert.False(t, saved, "second save is a no-op")

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, got.WinnerIndex)

	require.NoError(t, store.MarkVoid(ctx, id, "operator"))
	status, err = store.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusVoid, status)
}

func TestOutcomeStorePin(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	store := NewOutcomeStore(c.Pool())
	id := uniqueEvent()

	o := domain.Outcome{EventID: id, Kind: domain.EventKindQuiz, Totals: []int{10, 20, 5}, WinnerIndex: 1}
	pinned, err := store.Pin(ctx, o)
	require.NoError(t, err)
	assert.Equal(t, 1, pinned.WinnerIndex)

	other := o
	other.WinnerIndex = 2
	pinned, err = store.Pin(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 1, pinned.WinnerIndex, "first pin wins")

	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	status, err := store.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusScheduled, status)

	saved, err := store.Save(ctx, other)
	require.NoError(t, err)
	assert.True(t, saved)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, got.WinnerIndex, "save keeps the pinned payload")
	got, err = store.Pinned(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 20, 5}, got.Totals)
}

func TestOutcomeStoreVoidBeforeSimulation(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	store := NewOutcomeStore(c.Pool())
	id := uniqueEvent()

	require.NoError(t, store.MarkVoid(ctx, id, "venue closed"))
	_, err := store.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrEventVoided)

	saved, err := store.Save(ctx, domain.Outcome{EventID: id})
	require.NoError(t, err)
	assert.False(t, saved, "a voided event is never finalized")
}

func TestMarketStoreLocking(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	store := NewMarketStore(c.Pool())
	id := uniqueEvent()

	m := domain.Market{
		EventID: id, Name: "Match Winner", Kind: domain.MarketKindWinner,
		Selections: []domain.Selection{{Label: "A", Odds: 2.1}, {Label: "B", Odds: 1.8}},
		UpdatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.SaveAll(ctx, []domain.Market{m}))

	m.Selections[0].Odds = 2.3
	require.NoError(t, store.UpdatePrices(ctx, m))

	require.NoError(t, store.SetStatus(ctx, id, domain.MarketStatusLocked))
	err := store.UpdatePrices(ctx, m)
	assert.ErrorIs(t, err, domain.ErrMarketLocked)

	got, err := store.Get(ctx, id, "Match Winner")
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusLocked, got.Status)
	assert.Equal(t, 2.3, got.Selections[0].Odds)
}

func TestBetStoreApplySettlement(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	store := NewBetStore(c.Pool())
	id := uniqueEvent()

	bet := domain.Bet{
		ID:     uuid.NewString(),
		UserID: "user-1",
		Terms:  domain.SingleTerms{},
		Legs: []domain.Leg{{
			ID: uuid.NewString(), EventID: id, Market: "Match Winner", Selection: "A",
			Odds: decimal.RequireFromString("2.50"), Stake: decimal.NewFromInt(10),
			Status: domain.LegStatusPending,
		}},
		Status:   domain.BetStatusPending,
		PlacedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Create(ctx, bet))

	pending, err := store.ListPendingByEvent(ctx, id, domain.BetCursor{}, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, bet.ID, pending[0].ID)

	ids, err := store.PendingEventIDs(ctx, 1000)
	require.NoError(t, err)
	assert.Contains(t, ids, id)

	now := time.Now().UTC()
	settled := pending[0]
	settled.Status = domain.BetStatusWon
	settled.Payout = decimal.NewFromInt(25)
	settled.SettledAt = &now
	settled.Legs[0].Status = domain.LegStatusWon
	settled.Legs[0].EffectiveOdds = settled.Legs[0].Odds
	entry := domain.LedgerEntry{
		ID: uuid.NewString(), BetID: bet.ID, UserID: bet.UserID,
		Amount: settled.Payout, Kind: domain.LedgerPayout, CreatedAt: now,
	}
	require.NoError(t, store.ApplySettlement(ctx, settled, []domain.LedgerEntry{entry}))

	// Same version again loses the race.
	err = store.ApplySettlement(ctx, settled, []domain.LedgerEntry{entry})
	assert.ErrorIs(t, err, domain.ErrStaleWrite)

	got, err := store.GetByID(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BetStatusWon, got.Status)
	assert.Equal(t, 1, got.Version)
	assert.True(t, got.Payout.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, domain.LegStatusWon, got.Legs[0].Status)

	pending, err = store.ListPendingByEvent(ctx, id, domain.BetCursor{}, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestBetStorePendingCursor(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	store := NewBetStore(c.Pool())
	id := uniqueEvent()
	placed := time.Now().UTC().Truncate(time.Microsecond)

	var want []string
	for i := 0; i < 5; i++ {
		bet := domain.Bet{
			ID: uuid.NewString(), UserID: "user-1", Terms: domain.SingleTerms{},
			Legs: []domain.Leg{{
				ID: uuid.NewString(), EventID: id, Market: "Match Winner", Selection: "A",
				Odds: decimal.RequireFromString("2.00"), Stake: decimal.NewFromInt(1),
				Status: domain.LegStatusPending,
			}},
			Status:   domain.BetStatusPending,
			PlacedAt: placed.Add(time.Duration(i/2) * time.Second),
		}
		require.NoError(t, store.Create(ctx, bet))
		want = append(want, bet.ID)
	}

	var got []string
	var cursor domain.BetCursor
	for {
		page, err := store.ListPendingByEvent(ctx, id, cursor, 2)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, b := range page {
			got = append(got, b.ID)
		}
		cursor = domain.CursorOf(page[len(page)-1])
	}
	assert.ElementsMatch(t, want, got)
	assert.Len(t, got, len(want), "no bet is returned twice")
}
