package settlement

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// Guard enforces at most one selection per (event, driver group) and per
// (event, market) on a slip.
type Guard struct {
	groups map[string]string
}

// NewGuard builds a Guard from the driver group table.
func NewGuard(tables RiskTables) *Guard {
	return &Guard{groups: tables.groupIndex()}
}

// Group returns the driver group of a market name, or "" when it has none.
func (g *Guard) Group(market string) string {
	ref, err := Normalize(market)
	if err != nil {
		return ""
	}
	if group, ok := g.groups[ref.GroupKey()]; ok {
		return group
	}
	return g.groups[string(ref.Kind)]
}

// Filter keeps legs in order and silently drops every leg that would add a
// second selection to an (event, group) pair already on the slip. A second
// leg on the same event and market is dropped whether or not the market has
// a group.
func (g *Guard) Filter(legs []domain.Leg) (kept, dropped []domain.Leg) {
	type slot struct {
		event domain.EventID
		key   string
	}
	seen := make(map[slot]bool)
	for _, leg := range legs {
		market := slot{event: leg.EventID, key: "market/" + marketIdentity(leg.Market)}
		group := slot{event: leg.EventID, key: "group/" + g.Group(leg.Market)}
		if seen[market] || (group.key != "group/" && seen[group]) {
			dropped = append(dropped, leg)
			continue
		}
		seen[market] = true
		seen[group] = true
		kept = append(kept, leg)
	}
	return kept, dropped
}

// marketIdentity names the market a leg is on, so that spelling variants of
// one market collide.
func marketIdentity(market string) string {
	ref, err := Normalize(market)
	if err != nil {
		return strings.ToLower(strings.Join(strings.Fields(market), " "))
	}
	return fmt.Sprintf("%s|%d|%g", ref.GroupKey(), ref.Round, ref.Line)
}
