package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// testClient connects to WAGERBOOK_TEST_REDIS_ADDR (default localhost:6379,
// database 15) and skips when Redis is unreachable.
func testClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("WAGERBOOK_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("redis unreachable at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return NewFromRedis(rdb, time.Minute)
}

func testEvent(t *testing.T) domain.EventID {
	return domain.EventID{Round: time.Now().UnixNano(), Index: 2, Category: domain.CategoryNational}
}

func TestLockManager(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	lm := NewLockManager(c)
	key := "settle:" + testEvent(t).String()

	unlock, err := lm.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, key, 5*time.Second)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock() // idempotent

	unlock2, err := lm.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	unlock2()
}

func TestOutcomeCache(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	oc := NewOutcomeCache(c)
	id := testEvent(t)

	_, err := oc.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	o := domain.Outcome{EventID: id, Kind: domain.EventKindQuiz, Totals: []int{1, 2, 3}, WinnerIndex: 2}
	require.NoError(t, oc.Set(ctx, o))
	got, err := oc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, o.Totals, got.Totals)
	assert.Equal(t, id, got.EventID)

	require.NoError(t, oc.Invalidate(ctx, id))
	_, err = oc.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarketCacheKeepsOrder(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	mc := NewMarketCache(c)
	id := testEvent(t)

	markets := []domain.Market{
		{EventID: id, Name: "Match Winner", Kind: domain.MarketKindWinner},
		{EventID: id, Name: "Total Points 120.5", Kind: domain.MarketKindOverUnder, Line: 120.5},
		{EventID: id, Name: "Highest Scoring Round", Kind: domain.MarketKindHighestRound},
	}
	require.NoError(t, mc.SetMarkets(ctx, id, markets))

	got, err := mc.GetMarkets(ctx, id)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range markets {
		assert.Equal(t, markets[i].Name, got[i].Name)
	}
	assert.Equal(t, 120.5, got[1].Line)

	require.NoError(t, mc.Invalidate(ctx, id))
	_, err = mc.GetMarkets(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStakeBook(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	sb := NewStakeBook(c)
	id := testEvent(t)
	t.Cleanup(func() { _ = sb.Clear(context.Background(), id) })

	require.NoError(t, sb.Add(ctx, id, "Match Winner", "Ada", 10))
	require.NoError(t, sb.Add(ctx, id, "Match Winner", "Ada", 2.5))
	require.NoError(t, sb.Add(ctx, id, "Match Winner", "Bo", 4))
	require.NoError(t, sb.Add(ctx, id, "Perfect Round", "Yes", 7))

	totals, err := sb.Totals(ctx, id, "Match Winner")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Ada": 12.5, "Bo": 4}, totals)

	require.NoError(t, sb.Clear(ctx, id))
	totals, err = sb.Totals(ctx, id, "Match Winner")
	require.NoError(t, err)
	assert.Empty(t, totals)
}

func TestSignalBusStream(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	bus := NewSignalBusWithMaxLen(c, 100)
	stream := "stream:test:" + testEvent(t).String()
	t.Cleanup(func() { _ = c.Underlying().Del(context.Background(), stream).Err() })

	require.NoError(t, bus.StreamAppend(ctx, stream, []byte(`{"n":1}`)))
	require.NoError(t, bus.StreamAppend(ctx, stream, []byte(`{"n":2}`)))

	msgs, err := bus.StreamRead(ctx, stream, "0", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, `{"n":2}`, string(msgs[1].Payload))

	rest, err := bus.StreamRead(ctx, stream, msgs[1].ID, 10)
	require.NoError(t, err)
	assert.Empty(t, rest)
}

func TestSignalBusPubSub(t *testing.T) {
	c := testClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	bus := NewSignalBus(c)
	channel := "test:" + testEvent(t).String()

	ch, err := bus.Subscribe(ctx, channel)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, channel, []byte("hello")))

	select {
	case msg := <-ch:
		assert.Equal(t, "hello", string(msg))
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}

func TestRateLimiter(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	rl := NewRateLimiter(c)
	key := "test:" + testEvent(t).String()

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}
	ok, err := rl.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}
