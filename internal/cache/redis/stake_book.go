package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// StakeBook implements domain.StakeBook. Stake is accumulated per selection
// with HINCRBYFLOAT so concurrent placements never lose an increment.
//
// Key schema:
//
//	stakes:{event_id}  - hash, field = "{market}|{selection}", value = stake
type StakeBook struct {
	c *Client
}

// NewStakeBook creates a StakeBook backed by the given Client.
func NewStakeBook(c *Client) *StakeBook {
	return &StakeBook{c: c}
}

func stakesKey(id domain.EventID) string { return "stakes:" + id.String() }

func stakeField(market, selection string) string { return market + "|" + selection }

// Add increments the stake held on one selection.
func (sb *StakeBook) Add(ctx context.Context, id domain.EventID, market, selection string, stake float64) error {
	err := sb.c.rdb.HIncrByFloat(ctx, stakesKey(id), stakeField(market, selection), stake).Err()
	if err != nil {
		return fmt.Errorf("redis: add stake %s %q: %w", id, market, err)
	}
	return nil
}

// Totals returns the stake per selection label of one market. Selections
// without stake are absent from the map.
func (sb *StakeBook) Totals(ctx context.Context, id domain.EventID, market string) (map[string]float64, error) {
	vals, err := sb.c.rdb.HGetAll(ctx, stakesKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: stake totals %s: %w", id, err)
	}
	prefix := market + "|"
	out := make(map[string]float64)
	for field, raw := range vals {
		if !strings.HasPrefix(field, prefix) {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("redis: parse stake %s %q: %w", id, field, err)
		}
		out[strings.TrimPrefix(field, prefix)] = v
	}
	return out, nil
}

// Clear drops every stake counter of an event once its markets lock.
func (sb *StakeBook) Clear(ctx context.Context, id domain.EventID) error {
	if err := sb.c.rdb.Del(ctx, stakesKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: clear stakes %s: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.StakeBook = (*StakeBook)(nil)
