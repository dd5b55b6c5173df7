package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// MarketCache implements domain.MarketCache using one Redis hash per event.
//
// Key schema:
//
//	markets:{event_id}  - hash, field = market name, value = JSON market
//	                      plus field "_order" holding the JSON list of names
type MarketCache struct {
	c *Client
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{c: c}
}

const orderField = "_order"

func marketsKey(id domain.EventID) string { return "markets:" + id.String() }

// SetMarkets replaces the cached market set of an event atomically.
func (mc *MarketCache) SetMarkets(ctx context.Context, id domain.EventID, markets []domain.Market) error {
	fields := make(map[string]any, len(markets)+1)
	names := make([]string, 0, len(markets))
	for _, m := range markets {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("redis: marshal market %s %q: %w", id, m.Name, err)
		}
		fields[m.Name] = data
		names = append(names, m.Name)
	}
	order, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("redis: marshal market order %s: %w", id, err)
	}
	fields[orderField] = order

	key := marketsKey(id)
	pipe := mc.c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	if mc.c.cacheTTL > 0 {
		pipe.Expire(ctx, key, mc.c.cacheTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set markets %s: %w", id, err)
	}
	return nil
}

// GetMarkets returns the cached markets in pricing order, or
// domain.ErrNotFound when nothing is cached.
func (mc *MarketCache) GetMarkets(ctx context.Context, id domain.EventID) ([]domain.Market, error) {
	vals, err := mc.c.rdb.HGetAll(ctx, marketsKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get markets %s: %w", id, err)
	}
	raw, ok := vals[orderField]
	if !ok {
		return nil, domain.ErrNotFound
	}

	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, fmt.Errorf("redis: unmarshal market order %s: %w", id, err)
	}
	markets := make([]domain.Market, 0, len(names))
	for _, name := range names {
		data, ok := vals[name]
		if !ok {
			// Partially expired hash; treat as a miss.
			return nil, domain.ErrNotFound
		}
		var m domain.Market
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			return nil, fmt.Errorf("redis: unmarshal market %s %q: %w", id, name, err)
		}
		markets = append(markets, m)
	}
	return markets, nil
}

// Invalidate drops the cached market set.
func (mc *MarketCache) Invalidate(ctx context.Context, id domain.EventID) error {
	if err := mc.c.rdb.Del(ctx, marketsKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate markets %s: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
