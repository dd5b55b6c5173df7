package domain

import (
	"context"
	"time"
)

// OutcomeCache keeps recently finalized outcomes close to the settlement path.
type OutcomeCache interface {
	Set(ctx context.Context, o Outcome) error
	Get(ctx context.Context, id EventID) (Outcome, error)
	Invalidate(ctx context.Context, id EventID) error
}

// MarketCache stores the priced market set of an event.
type MarketCache interface {
	SetMarkets(ctx context.Context, id EventID, markets []Market) error
	GetMarkets(ctx context.Context, id EventID) ([]Market, error)
	Invalidate(ctx context.Context, id EventID) error
}

// StakeBook accumulates stake per selection for open markets.
type StakeBook interface {
	Add(ctx context.Context, id EventID, market, selection string, stake float64) error
	Totals(ctx context.Context, id EventID, market string) (map[string]float64, error)
	Clear(ctx context.Context, id EventID) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// RateLimiter admits at most limit requests per key within a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// Bus channels and streams.
const (
	ChannelOddsUpdate     = "odds_update"
	ChannelEventFinalized = "event_finalized"
	ChannelBetSettled     = "bet_settled"
	StreamSettlements     = "stream:settlements"
)
