package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/settlement"
)

// MarketLookup finds the current book entry for a market.
type MarketLookup interface {
	Market(ctx context.Context, id domain.EventID, name string) (domain.Market, error)
}

// SlipLeg is one selection as submitted by a client. Odds are never taken
// from the client.
type SlipLeg struct {
	EventID   domain.EventID  `json:"event_id"`
	Market    string          `json:"market"`
	Selection string          `json:"selection"`
	Stake     decimal.Decimal `json:"stake"`
}

// Slip is a bet request before pricing.
type Slip struct {
	UserID       string          `json:"user_id"`
	Mode         domain.BetMode  `json:"mode"`
	Stake        decimal.Decimal `json:"stake"`
	UnitStake    decimal.Decimal `json:"unit_stake"`
	Combinations [][]int         `json:"combinations,omitempty"`
	Legs         []SlipLeg       `json:"legs"`
}

// Placement is the result of a successful placement.
type Placement struct {
	Bet domain.Bet `json:"bet"`
	// Dropped lists the legs removed by the correlation guard.
	Dropped         []SlipLeg       `json:"dropped,omitempty"`
	PotentialPayout decimal.Decimal `json:"potential_payout"`
}

// BetService places bets against the current book.
type BetService struct {
	bets    domain.BetStore
	markets MarketLookup
	stakes  domain.StakeBook
	guard   *settlement.Guard
	settler *settlement.Settler
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// NewBetService creates a BetService.
func NewBetService(
	bets domain.BetStore,
	markets MarketLookup,
	stakes domain.StakeBook,
	guard *settlement.Guard,
	settler *settlement.Settler,
	logger *slog.Logger,
) *BetService {
	return &BetService{
		bets:    bets,
		markets: markets,
		stakes:  stakes,
		guard:   guard,
		settler: settler,
		logger:  logger.With(slog.String("component", "bet_service")),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Place prices every leg from the book, applies the correlation guard and
// stores the bet as pending.
func (s *BetService) Place(ctx context.Context, slip Slip) (Placement, error) {
	if strings.TrimSpace(slip.UserID) == "" {
		return Placement{}, fmt.Errorf("bet_service: place: %w: missing user", domain.ErrInvalidBet)
	}
	if len(slip.Legs) == 0 {
		return Placement{}, fmt.Errorf("bet_service: place: %w: no legs", domain.ErrInvalidBet)
	}

	legs := make([]domain.Leg, len(slip.Legs))
	for i, sl := range slip.Legs {
		leg, err := s.priceLeg(ctx, sl)
		if err != nil {
			return Placement{}, fmt.Errorf("bet_service: place leg %d: %w", i, err)
		}
		if slip.Mode == domain.BetModeSingle {
			leg.Stake = sl.Stake
		}
		legs[i] = leg
	}

	kept, dropped := s.guard.Filter(legs)
	terms, err := s.terms(slip, legs, kept)
	if err != nil {
		return Placement{}, fmt.Errorf("bet_service: place: %w", err)
	}

	bet := domain.Bet{
		ID:       s.newID(),
		UserID:   slip.UserID,
		Terms:    terms,
		Legs:     kept,
		Status:   domain.BetStatusPending,
		PlacedAt: s.now().UTC(),
	}
	if slip.Mode == domain.BetModeMulti {
		bet.TotalOdds = domain.One
		for _, l := range kept {
			bet.TotalOdds = bet.TotalOdds.Mul(l.Odds)
		}
		bet.TotalOdds = bet.TotalOdds.Round(2)
	}
	if err := bet.Validate(); err != nil {
		return Placement{}, fmt.Errorf("bet_service: place: %w", err)
	}
	if err := s.bets.Create(ctx, bet); err != nil {
		return Placement{}, fmt.Errorf("bet_service: create %s: %w", bet.ID, err)
	}
	s.recordStakes(ctx, bet)

	p := Placement{Bet: bet, PotentialPayout: s.settler.Exposure(bet)}
	for _, d := range dropped {
		p.Dropped = append(p.Dropped, SlipLeg{EventID: d.EventID, Market: d.Market, Selection: d.Selection, Stake: d.Stake})
	}

	s.logger.InfoContext(ctx, "bet_service: bet placed",
		slog.String("bet_id", bet.ID),
		slog.String("user_id", bet.UserID),
		slog.String("mode", string(bet.Mode())),
		slog.Int("legs", len(kept)),
		slog.Int("dropped", len(dropped)),
		slog.String("stake", bet.TotalStake().StringFixed(2)),
	)
	return p, nil
}

// priceLeg binds a slip leg to the book's current odds.
func (s *BetService) priceLeg(ctx context.Context, sl SlipLeg) (domain.Leg, error) {
	m, err := s.markets.Market(ctx, sl.EventID, sl.Market)
	if err != nil {
		return domain.Leg{}, err
	}
	if !m.IsOpen() {
		return domain.Leg{}, fmt.Errorf("%s %q: %w", sl.EventID, m.Name, domain.ErrMarketLocked)
	}
	sel, ok := findSelection(m, sl.Selection)
	if !ok {
		return domain.Leg{}, fmt.Errorf("%w: %q is not a selection of %q", domain.ErrInvalidBet, sl.Selection, m.Name)
	}
	return domain.Leg{
		ID:        s.newID(),
		EventID:   sl.EventID,
		Market:    m.Name,
		Selection: sel.Label,
		Odds:      decimal.NewFromFloat(sel.Odds).Round(2),
		Status:    domain.LegStatusPending,
	}, nil
}

// terms builds the bet terms for the kept legs. System combinations are
// re-indexed onto the kept legs; a combination that used a dropped leg is
// removed.
func (s *BetService) terms(slip Slip, all, kept []domain.Leg) (domain.BetTerms, error) {
	switch slip.Mode {
	case domain.BetModeSingle:
		return domain.SingleTerms{}, nil
	case domain.BetModeMulti:
		return domain.MultiTerms{Stake: slip.Stake}, nil
	case domain.BetModeSystem:
		newIndex := make(map[string]int, len(kept))
		for i, l := range kept {
			newIndex[l.ID] = i
		}
		var combos [][]int
	next:
		for _, combo := range slip.Combinations {
			mapped := make([]int, 0, len(combo))
			for _, idx := range combo {
				if idx < 0 || idx >= len(all) {
					return nil, fmt.Errorf("%w: combination references leg %d", domain.ErrInvalidBet, idx)
				}
				ni, ok := newIndex[all[idx].ID]
				if !ok {
					continue next
				}
				mapped = append(mapped, ni)
			}
			combos = append(combos, mapped)
		}
		return domain.SystemTerms{UnitStake: slip.UnitStake, Combinations: combos}, nil
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidBet, slip.Mode)
	}
}

// recordStakes feeds the live odds adjuster. Failures only degrade live
// pricing and never fail the placement.
func (s *BetService) recordStakes(ctx context.Context, bet domain.Bet) {
	perLeg := make([]decimal.Decimal, len(bet.Legs))
	switch t := bet.Terms.(type) {
	case domain.SingleTerms:
		for i, l := range bet.Legs {
			perLeg[i] = l.Stake
		}
	case domain.MultiTerms:
		for i := range perLeg {
			perLeg[i] = t.Stake
		}
	case domain.SystemTerms:
		for _, combo := range t.Combinations {
			for _, idx := range combo {
				perLeg[idx] = perLeg[idx].Add(t.UnitStake)
			}
		}
	}

	for i, l := range bet.Legs {
		amount, _ := perLeg[i].Float64()
		if amount <= 0 {
			continue
		}
		if err := s.stakes.Add(ctx, l.EventID, l.Market, l.Selection, amount); err != nil {
			s.logger.WarnContext(ctx, "bet_service: stake book add failed",
				slog.String("bet_id", bet.ID),
				slog.String("event_id", l.EventID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Get returns one bet.
func (s *BetService) Get(ctx context.Context, id string) (domain.Bet, error) {
	bet, err := s.bets.GetByID(ctx, id)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("bet_service: get %s: %w", id, err)
	}
	return bet, nil
}

// ListByUser returns a user's bets, newest first.
func (s *BetService) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Bet, error) {
	bets, err := s.bets.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("bet_service: list %s: %w", userID, err)
	}
	return bets, nil
}

func findSelection(m domain.Market, label string) (domain.Selection, bool) {
	if sel, ok := m.Selection(label); ok {
		return sel, true
	}
	for _, sel := range m.Selections {
		if strings.EqualFold(strings.TrimSpace(sel.Label), strings.TrimSpace(label)) {
			return sel, true
		}
	}
	return domain.Selection{}, false
}
