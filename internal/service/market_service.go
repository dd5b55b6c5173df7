package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/pricing"
	"github.com/alanyoungcy/wagerbook/internal/settlement"
)

// OutcomeSource yields the outcome an event's markets are priced from.
type OutcomeSource interface {
	Derive(ctx context.Context, id domain.EventID) (domain.Outcome, error)
}

// BoardEvent is one priced event on the active board.
type BoardEvent struct {
	EventID domain.EventID  `json:"event_id"`
	Starts  time.Time       `json:"starts"`
	Markets []domain.Market `json:"markets"`
}

// MarketService prices events and serves their market sets. Markets are
// priced once per event and stored; afterwards only the live odds adjuster
// moves their prices, and only while they are open.
type MarketService struct {
	markets  domain.MarketStore
	cache    domain.MarketCache
	outcomes OutcomeSource
	pricer   *pricing.Pricer
	schedule domain.Schedule
	seed     int64
	logger   *slog.Logger
	now      func() time.Time
}

// NewMarketService creates a MarketService. seed is the book-wide pricing
// seed mixed into every event's noise.
func NewMarketService(
	markets domain.MarketStore,
	cache domain.MarketCache,
	outcomes OutcomeSource,
	pricer *pricing.Pricer,
	schedule domain.Schedule,
	seed int64,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		markets:  markets,
		cache:    cache,
		outcomes: outcomes,
		pricer:   pricer,
		schedule: schedule,
		seed:     seed,
		logger:   logger.With(slog.String("component", "market_service")),
		now:      time.Now,
	}
}

// Markets returns the market set of an event, pricing it on first request.
// Markets of an event that has started are locked before being returned.
func (s *MarketService) Markets(ctx context.Context, id domain.EventID) ([]domain.Market, error) {
	markets, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(markets) == 0 {
		if markets, err = s.price(ctx, id); err != nil {
			return nil, err
		}
	}
	if s.schedule.Started(id, s.now()) && anyOpen(markets) {
		if err := s.Lock(ctx, id); err != nil {
			return nil, err
		}
		for i := range markets {
			if markets[i].IsOpen() {
				markets[i].Status = domain.MarketStatusLocked
			}
		}
	}
	return markets, nil
}

// Market finds one market of an event by exact name, then by normalized name.
func (s *MarketService) Market(ctx context.Context, id domain.EventID, name string) (domain.Market, error) {
	markets, err := s.Markets(ctx, id)
	if err != nil {
		return domain.Market{}, err
	}
	for _, m := range markets {
		if m.Name == name {
			return m, nil
		}
	}
	want := settlement.NormalizeName(name)
	for _, m := range markets {
		if settlement.NormalizeName(m.Name) == want {
			return m, nil
		}
	}
	return domain.Market{}, fmt.Errorf("market_service: market %s %q: %w", id, name, domain.ErrNotFound)
}

// load reads the market set from the cache, then Postgres, back-filling the
// cache on a store hit.
func (s *MarketService) load(ctx context.Context, id domain.EventID) ([]domain.Market, error) {
	if markets, err := s.cache.GetMarkets(ctx, id); err == nil && len(markets) > 0 {
		return markets, nil
	}

	markets, err := s.markets.ListByEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("market_service: list %s: %w", id, err)
	}
	if len(markets) > 0 {
		s.setCache(ctx, id, markets)
	}
	return markets, nil
}

// price derives the outcome, prices it and stores the result. Concurrent
// pricers of the same event converge on whichever set was stored first.
func (s *MarketService) price(ctx context.Context, id domain.EventID) ([]domain.Market, error) {
	o, err := s.outcomes.Derive(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	markets := s.pricer.Price(o, s.seed)
	for i := range markets {
		markets[i].Status = domain.MarketStatusOpen
		markets[i].UpdatedAt = now
	}
	if err := s.markets.SaveAll(ctx, markets); err != nil {
		return nil, fmt.Errorf("market_service: save %s: %w", id, err)
	}

	stored, err := s.markets.ListByEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("market_service: reload %s: %w", id, err)
	}
	s.setCache(ctx, id, stored)

	s.logger.InfoContext(ctx, "market_service: event priced",
		slog.String("event_id", id.String()),
		slog.Int("markets", len(stored)),
	)
	return stored, nil
}

// ActiveBoard prices matches [0, matches) of a round for one category and
// region. Events that cannot be simulated are left off the board.
func (s *MarketService) ActiveBoard(ctx context.Context, round int64, matches int, category, region string) ([]BoardEvent, error) {
	if category == "" {
		category = domain.CategoryNational
	}
	if category == domain.CategoryNational {
		region = ""
	}

	board := make([]BoardEvent, 0, matches)
	for i := 0; i < matches; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := domain.EventID{Round: round, Index: i, Category: category, Region: domain.Slugify(region)}
		markets, err := s.Markets(ctx, id)
		if err != nil {
			level := slog.LevelError
			if errors.Is(err, domain.ErrInsufficientParticipants) {
				level = slog.LevelWarn
			}
			s.logger.Log(ctx, level, "market_service: event left off board",
				slog.String("event_id", id.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		board = append(board, BoardEvent{EventID: id, Starts: s.schedule.Start(id), Markets: markets})
	}
	return board, nil
}

// Lock closes every open market of an event to stakes and re-pricing.
func (s *MarketService) Lock(ctx context.Context, id domain.EventID) error {
	return s.setStatus(ctx, id, domain.MarketStatusLocked)
}

// MarkSettled moves the markets of a finished event to settled.
func (s *MarketService) MarkSettled(ctx context.Context, id domain.EventID) error {
	return s.setStatus(ctx, id, domain.MarketStatusSettled)
}

func (s *MarketService) setStatus(ctx context.Context, id domain.EventID, status domain.MarketStatus) error {
	if err := s.markets.SetStatus(ctx, id, status); err != nil {
		return fmt.Errorf("market_service: set %s %s: %w", id, status, err)
	}
	s.invalidate(ctx, id)
	return nil
}

// LockStarted locks open markets whose event has begun and returns those
// still open.
func (s *MarketService) LockStarted(ctx context.Context, limit int) ([]domain.Market, error) {
	open, err := s.markets.ListOpen(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("market_service: list open: %w", err)
	}

	now := s.now()
	locked := map[domain.EventID]bool{}
	var still []domain.Market
	for _, m := range open {
		if !s.schedule.Started(m.EventID, now) {
			still = append(still, m)
			continue
		}
		if locked[m.EventID] {
			continue
		}
		locked[m.EventID] = true
		if err := s.Lock(ctx, m.EventID); err != nil {
			s.logger.WarnContext(ctx, "market_service: lock failed",
				slog.String("event_id", m.EventID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.logger.DebugContext(ctx, "market_service: markets locked",
			slog.String("event_id", m.EventID.String()),
		)
	}
	return still, nil
}

// UpdatePrices stores re-priced selections of an open market.
func (s *MarketService) UpdatePrices(ctx context.Context, m domain.Market) error {
	if err := s.markets.UpdatePrices(ctx, m); err != nil {
		return fmt.Errorf("market_service: update %s %q: %w", m.EventID, m.Name, err)
	}
	s.invalidate(ctx, m.EventID)
	return nil
}

func (s *MarketService) setCache(ctx context.Context, id domain.EventID, markets []domain.Market) {
	if err := s.cache.SetMarkets(ctx, id, markets); err != nil {
		s.logger.WarnContext(ctx, "market_service: cache set failed",
			slog.String("event_id", id.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MarketService) invalidate(ctx context.Context, id domain.EventID) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		// Non-fatal: the entry expires on its own.
		s.logger.WarnContext(ctx, "market_service: cache invalidate failed",
			slog.String("event_id", id.String()),
			slog.String("error", err.Error()),
		)
	}
}

func anyOpen(markets []domain.Market) bool {
	for _, m := range markets {
		if m.IsOpen() {
			return true
		}
	}
	return false
}
