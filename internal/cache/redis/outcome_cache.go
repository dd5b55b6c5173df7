package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// OutcomeCache implements domain.OutcomeCache. Each finalized outcome is a
// JSON string at "outcome:{event_id}".
type OutcomeCache struct {
	c *Client
}

// NewOutcomeCache creates an OutcomeCache backed by the given Client.
func NewOutcomeCache(c *Client) *OutcomeCache {
	return &OutcomeCache{c: c}
}

func outcomeKey(id domain.EventID) string { return "outcome:" + id.String() }

// Set caches the outcome with the client's cache TTL.
func (oc *OutcomeCache) Set(ctx context.Context, o domain.Outcome) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("redis: marshal outcome %s: %w", o.EventID, err)
	}
	if err := oc.c.rdb.Set(ctx, outcomeKey(o.EventID), data, oc.c.cacheTTL).Err(); err != nil {
		return fmt.Errorf("redis: set outcome %s: %w", o.EventID, err)
	}
	return nil
}

// Get returns the cached outcome or domain.ErrNotFound.
func (oc *OutcomeCache) Get(ctx context.Context, id domain.EventID) (domain.Outcome, error) {
	data, err := oc.c.rdb.Get(ctx, outcomeKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Outcome{}, domain.ErrNotFound
		}
		return domain.Outcome{}, fmt.Errorf("redis: get outcome %s: %w", id, err)
	}
	var o domain.Outcome
	if err := json.Unmarshal(data, &o); err != nil {
		return domain.Outcome{}, fmt.Errorf("redis: unmarshal outcome %s: %w", id, err)
	}
	return o, nil
}

// Invalidate drops the cached outcome.
func (oc *OutcomeCache) Invalidate(ctx context.Context, id domain.EventID) error {
	if err := oc.c.rdb.Del(ctx, outcomeKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate outcome %s: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.OutcomeCache = (*OutcomeCache)(nil)
