package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/pricing"
)

// OpenMarkets is the slice of MarketService the live odds loop needs.
type OpenMarkets interface {
	LockStarted(ctx context.Context, limit int) ([]domain.Market, error)
	UpdatePrices(ctx context.Context, m domain.Market) error
}

// OddsUpdate is the payload published on the odds_update channel.
type OddsUpdate struct {
	EventID    domain.EventID     `json:"event_id"`
	Market     string             `json:"market"`
	Selections []domain.Selection `json:"selections"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// LiveOddsService periodically re-prices open markets from the stake they
// have taken. It only ever writes to open markets.
type LiveOddsService struct {
	markets  OpenMarkets
	stakes   domain.StakeBook
	adjuster *pricing.Adjuster
	bus      domain.SignalBus
	interval time.Duration
	batch    int
	logger   *slog.Logger
	now      func() time.Time
}

// NewLiveOddsService creates a LiveOddsService.
func NewLiveOddsService(
	markets OpenMarkets,
	stakes domain.StakeBook,
	adjuster *pricing.Adjuster,
	bus domain.SignalBus,
	interval time.Duration,
	batch int,
	logger *slog.Logger,
) *LiveOddsService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batch <= 0 {
		batch = 200
	}
	return &LiveOddsService{
		markets:  markets,
		stakes:   stakes,
		adjuster: adjuster,
		bus:      bus,
		interval: interval,
		batch:    batch,
		logger:   logger.With(slog.String("component", "live_odds")),
		now:      time.Now,
	}
}

// Run refreshes odds every interval until ctx is cancelled.
func (s *LiveOddsService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := s.Refresh(ctx)
			if err != nil && ctx.Err() == nil {
				s.logger.ErrorContext(ctx, "live_odds: refresh failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				s.logger.DebugContext(ctx, "live_odds: markets re-priced", slog.Int("count", n))
			}
		}
	}
}

// Refresh locks markets whose event has started and re-prices the remaining
// open markets that have taken stake. It returns how many markets moved.
func (s *LiveOddsService) Refresh(ctx context.Context) (int, error) {
	open, err := s.markets.LockStarted(ctx, s.batch)
	if err != nil {
		return 0, fmt.Errorf("live_odds: %w", err)
	}

	moved := 0
	for _, m := range open {
		if err := ctx.Err(); err != nil {
			return moved, err
		}
		ok, err := s.reprice(ctx, m)
		if err != nil {
			s.logger.WarnContext(ctx, "live_odds: re-price failed",
				slog.String("event_id", m.EventID.String()),
				slog.String("market", m.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		if ok {
			moved++
		}
	}
	return moved, nil
}

func (s *LiveOddsService) reprice(ctx context.Context, m domain.Market) (bool, error) {
	totals, err := s.stakes.Totals(ctx, m.EventID, m.Name)
	if err != nil {
		return false, err
	}
	if len(totals) == 0 {
		return false, nil
	}

	adjusted, err := s.adjuster.Adjust(m, totals, s.now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrMarketLocked) {
			return false, nil
		}
		return false, err
	}
	if sameOdds(m, adjusted) {
		return false, nil
	}
	if err := s.markets.UpdatePrices(ctx, adjusted); err != nil {
		if errors.Is(err, domain.ErrMarketLocked) {
			// Locked between listing and writing.
			return false, nil
		}
		return false, err
	}

	if s.bus != nil {
		data, _ := json.Marshal(OddsUpdate{
			EventID:    adjusted.EventID,
			Market:     adjusted.Name,
			Selections: adjusted.Selections,
			UpdatedAt:  adjusted.UpdatedAt,
		})
		if err := s.bus.Publish(ctx, domain.ChannelOddsUpdate, data); err != nil {
			s.logger.WarnContext(ctx, "live_odds: publish failed", slog.String("error", err.Error()))
		}
	}
	return true, nil
}

func sameOdds(a, b domain.Market) bool {
	if len(a.Selections) != len(b.Selections) {
		return false
	}
	for i := range a.Selections {
		if a.Selections[i].Odds != b.Selections[i].Odds {
			return false
		}
	}
	return true
}
