package settlement

import (
	"fmt"
	"sort"
	"sync"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// ResolverFunc decides one selection of one market against an outcome. It
// returns ErrUnresolvableMarket when the selection cannot be interpreted.
type ResolverFunc func(o domain.Outcome, ref MarketRef, selection string) (domain.LegStatus, error)

// Registry maps market kinds to resolver functions. It is safe for concurrent
// use.
type Registry struct {
	resolvers map[domain.MarketKind]ResolverFunc
	mu        sync.RWMutex
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{resolvers: make(map[domain.MarketKind]ResolverFunc)}
}

// DefaultRegistry returns a Registry with every built-in market kind.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(domain.MarketKindWinner, resolveWinner)
	r.Register(domain.MarketKindOverUnder, resolveOverUnder)
	r.Register(domain.MarketKindMarginBand, resolveMarginBand)
	r.Register(domain.MarketKindRoundWinner, resolveRoundWinner)
	r.Register(domain.MarketKindProp, resolveProp)
	r.Register(domain.MarketKindAward, resolveAward)
	r.Register(domain.MarketKindLeader, resolveLeader)
	r.Register(domain.MarketKindHighestRound, resolveHighestRound)
	return r
}

// Register adds or replaces the resolver for kind.
func (r *Registry) Register(kind domain.MarketKind, fn ResolverFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[kind] = fn
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []domain.MarketKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]domain.MarketKind, 0, len(r.resolvers))
	for k := range r.resolvers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Resolve normalizes market and runs the registered resolver.
func (r *Registry) Resolve(o domain.Outcome, market, selection string) (domain.LegStatus, error) {
	ref, err := Normalize(market)
	if err != nil {
		return domain.LegStatusPending, err
	}
	r.mu.RLock()
	fn, ok := r.resolvers[ref.Kind]
	r.mu.RUnlock()
	if !ok {
		return domain.LegStatusPending, fmt.Errorf("settlement: no resolver for %s: %w", ref.Kind, domain.ErrUnresolvableMarket)
	}
	return fn(o, ref, selection)
}
