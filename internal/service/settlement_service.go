package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/settlement"
)

// Alert event types understood by the notifier filter.
const (
	AlertUnresolvedLeg    = "unresolved_leg"
	AlertSettlementFailed = "settlement_failed"
	AlertEventVoided      = "event_voided"
)

// Alerter delivers operator alerts.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// OutcomeReader is the read side of the outcome lifecycle settlement needs.
type OutcomeReader interface {
	Get(ctx context.Context, id domain.EventID) (domain.Outcome, error)
	Status(ctx context.Context, id domain.EventID) (domain.EventStatus, error)
	Void(ctx context.Context, id domain.EventID, reason string) error
}

// MarketCloser moves markets of a finished event to settled.
type MarketCloser interface {
	MarkSettled(ctx context.Context, id domain.EventID) error
}

// SettlementOptions tune the settlement loop.
type SettlementOptions struct {
	TickInterval time.Duration
	LockTTL      time.Duration
	BatchSize    int
	Workers      int
}

// SettlementReport summarises one SettleEvent pass.
type SettlementReport struct {
	EventID    domain.EventID `json:"event_id"`
	Voided     bool           `json:"voided"`
	Examined   int            `json:"examined"`
	Settled    int            `json:"settled"`
	Updated    int            `json:"updated"`
	Unresolved int            `json:"unresolved"`
	Stale      int            `json:"stale"`
	Failed     int            `json:"failed"`
	Closed     bool           `json:"closed"`
}

// SettlementService settles pending bets event by event. Every pass over an
// event holds a distributed lock on it, and every bet write is guarded by the
// bet's version, so overlapping triggers can never pay twice.
type SettlementService struct {
	bets      domain.BetStore
	outcomes  OutcomeReader
	overrides domain.OverrideStore
	markets   MarketCloser
	stakes    domain.StakeBook
	locks     domain.LockManager
	audit     domain.AuditStore
	bus       domain.SignalBus
	alerter   Alerter
	settler   *settlement.Settler
	schedule  domain.Schedule
	opts      SettlementOptions
	logger    *slog.Logger
	now       func() time.Time

	alertedMu sync.Mutex
	alerted   map[string]bool // leg ids already reported as unresolved
}

// SettlementDeps groups the collaborators of a SettlementService. Bus and
// Alerter may be nil.
type SettlementDeps struct {
	Bets      domain.BetStore
	Outcomes  OutcomeReader
	Overrides domain.OverrideStore
	Markets   MarketCloser
	Stakes    domain.StakeBook
	Locks     domain.LockManager
	Audit     domain.AuditStore
	Bus       domain.SignalBus
	Alerter   Alerter
	Settler   *settlement.Settler
	Schedule  domain.Schedule
}

// NewSettlementService creates a SettlementService.
func NewSettlementService(deps SettlementDeps, opts SettlementOptions, logger *slog.Logger) *SettlementService {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Minute
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 2 * time.Minute
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &SettlementService{
		bets:      deps.Bets,
		outcomes:  deps.Outcomes,
		overrides: deps.Overrides,
		markets:   deps.Markets,
		stakes:    deps.Stakes,
		locks:     deps.Locks,
		audit:     deps.Audit,
		bus:       deps.Bus,
		alerter:   deps.Alerter,
		settler:   deps.Settler,
		schedule:  deps.Schedule,
		opts:      opts,
		logger:    logger.With(slog.String("component", "settlement_service")),
		now:       time.Now,
		alerted:   make(map[string]bool),
	}
}

// SettleEvent runs one settlement pass over every pending bet with a leg on
// the event. It fails with domain.ErrLockHeld when another pass is running
// and with domain.ErrEventNotFinal when there is nothing to settle against
// yet.
func (s *SettlementService) SettleEvent(ctx context.Context, id domain.EventID) (SettlementReport, error) {
	unlock, err := s.locks.Acquire(ctx, "settle:"+id.String(), s.opts.LockTTL)
	if err != nil {
		return SettlementReport{}, fmt.Errorf("settlement_service: settle %s: %w", id, err)
	}
	defer unlock()

	result, err := s.eventResult(ctx, id)
	if err != nil {
		return SettlementReport{}, err
	}
	results := map[domain.EventID]settlement.EventResult{id: result}
	report := SettlementReport{EventID: id, Voided: result.Voided}

	// Bets left pending by this pass stay in the result set, so paging moves
	// forward by cursor instead of re-reading from the head.
	var cursor domain.BetCursor
	for {
		batch, err := s.bets.ListPendingByEvent(ctx, id, cursor, s.opts.BatchSize)
		if err != nil {
			return report, fmt.Errorf("settlement_service: list pending %s: %w", id, err)
		}
		if len(batch) == 0 {
			break
		}
		if err := s.settleBatch(ctx, batch, results, &report); err != nil {
			return report, err
		}
		cursor = domain.CursorOf(batch[len(batch)-1])
		if len(batch) < s.opts.BatchSize {
			break
		}
	}

	if result.Outcome != nil || result.Voided {
		report.Closed = s.closeEvent(ctx, id)
	}

	s.record(ctx, report)
	return report, nil
}

// eventResult gathers the outcome, void flag and overrides of an event.
func (s *SettlementService) eventResult(ctx context.Context, id domain.EventID) (settlement.EventResult, error) {
	overrides, err := s.overrides.ListByEvent(ctx, id)
	if err != nil {
		return settlement.EventResult{}, fmt.Errorf("settlement_service: overrides %s: %w", id, err)
	}
	status, err := s.outcomes.Status(ctx, id)
	if err != nil {
		return settlement.EventResult{}, fmt.Errorf("settlement_service: status %s: %w", id, err)
	}
	if status == domain.EventStatusVoid {
		return settlement.NewEventResult(nil, true, overrides), nil
	}

	if !s.schedule.Ended(id, s.now()) {
		if len(overrides) == 0 {
			return settlement.EventResult{}, fmt.Errorf("settlement_service: settle %s: %w", id, domain.ErrEventNotFinal)
		}
		// Operators may resolve markets before the event is over.
		return settlement.NewEventResult(nil, false, overrides), nil
	}

	o, err := s.outcomes.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrEventVoided) {
			return settlement.NewEventResult(nil, true, overrides), nil
		}
		return settlement.EventResult{}, fmt.Errorf("settlement_service: outcome %s: %w", id, err)
	}
	return settlement.NewEventResult(&o, false, overrides), nil
}

// settleBatch settles bets concurrently. A failing bet is logged and skipped;
// only context cancellation aborts the batch.
func (s *SettlementService) settleBatch(
	ctx context.Context,
	bets []domain.Bet,
	results map[domain.EventID]settlement.EventResult,
	report *SettlementReport,
) error {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for _, bet := range bets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcome := s.settleBet(gctx, bet, results)
			mu.Lock()
			report.add(outcome)
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

type betOutcome int

const (
	betUnchanged betOutcome = iota
	betUpdated
	betSettled
	betUnresolved
	betStale
	betFailed
)

func (r *SettlementReport) add(o betOutcome) {
	r.Examined++
	switch o {
	case betUpdated:
		r.Updated++
	case betSettled:
		r.Settled++
	case betUnresolved:
		r.Unresolved++
	case betStale:
		r.Stale++
	case betFailed:
		r.Failed++
	}
}

func (s *SettlementService) settleBet(ctx context.Context, bet domain.Bet, results map[domain.EventID]settlement.EventResult) betOutcome {
	v := s.settler.Settle(bet, results, s.now().UTC())

	if len(v.Unresolved) > 0 {
		s.alertUnresolved(ctx, v)
	}
	if !v.Changed {
		if len(v.Unresolved) > 0 {
			return betUnresolved
		}
		return betUnchanged
	}

	if err := s.bets.ApplySettlement(ctx, v.Bet, v.Entries); err != nil {
		if errors.Is(err, domain.ErrStaleWrite) {
			s.logger.DebugContext(ctx, "settlement_service: bet changed underneath, skipping",
				slog.String("bet_id", bet.ID),
			)
			return betStale
		}
		s.logger.ErrorContext(ctx, "settlement_service: apply settlement failed",
			slog.String("bet_id", bet.ID),
			slog.String("error", err.Error()),
		)
		s.alert(ctx, AlertSettlementFailed, "Settlement failed",
			fmt.Sprintf("bet %s: %v", bet.ID, err))
		return betFailed
	}

	if !v.Bet.Status.Terminal() {
		if len(v.Unresolved) > 0 {
			return betUnresolved
		}
		return betUpdated
	}

	s.logger.InfoContext(ctx, "settlement_service: bet settled",
		slog.String("bet_id", v.Bet.ID),
		slog.String("status", string(v.Bet.Status)),
		slog.String("payout", v.Bet.Payout.StringFixed(2)),
	)
	s.publish(ctx, domain.ChannelBetSettled, map[string]any{
		"bet_id":  v.Bet.ID,
		"user_id": v.Bet.UserID,
		"status":  v.Bet.Status,
		"payout":  v.Bet.Payout,
	})
	return betSettled
}

// closeEvent marks the event's markets settled once no pending leg refers to
// it any more.
func (s *SettlementService) closeEvent(ctx context.Context, id domain.EventID) bool {
	left, err := s.bets.ListPendingByEvent(ctx, id, domain.BetCursor{}, 1)
	if err != nil || len(left) > 0 {
		return false
	}
	if err := s.markets.MarkSettled(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "settlement_service: mark markets settled failed",
			slog.String("event_id", id.String()),
			slog.String("error", err.Error()),
		)
		return false
	}
	if err := s.stakes.Clear(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "settlement_service: clear stake book failed",
			slog.String("event_id", id.String()),
			slog.String("error", err.Error()),
		)
	}
	return true
}

// VoidEvent voids an event and neutralises every pending leg on it.
func (s *SettlementService) VoidEvent(ctx context.Context, id domain.EventID, reason, operator string) (SettlementReport, error) {
	if err := s.outcomes.Void(ctx, id, reason); err != nil {
		return SettlementReport{}, fmt.Errorf("settlement_service: void %s: %w", id, err)
	}
	s.auditLog(ctx, "event_voided", map[string]any{
		"event_id": id.String(),
		"reason":   reason,
		"operator": operator,
	})
	s.alert(ctx, AlertEventVoided, "Event voided", fmt.Sprintf("%s voided by %s: %s", id, operator, reason))
	return s.SettleEvent(ctx, id)
}

// SetOverride records an operator result for one market and re-runs
// settlement of its event. Outcome "void" voids the market.
func (s *SettlementService) SetOverride(ctx context.Context, o domain.ManualOverride) (SettlementReport, error) {
	o.Market = strings.TrimSpace(o.Market)
	o.Outcome = strings.TrimSpace(o.Outcome)
	if o.Market == "" || o.Outcome == "" {
		return SettlementReport{}, fmt.Errorf("settlement_service: override: %w: market and outcome are required", domain.ErrInvalidBet)
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now().UTC()
	}
	if err := s.overrides.Set(ctx, o); err != nil {
		return SettlementReport{}, fmt.Errorf("settlement_service: override %s %q: %w", o.EventID, o.Market, err)
	}
	s.auditLog(ctx, "override_set", map[string]any{
		"event_id": o.EventID.String(),
		"market":   o.Market,
		"outcome":  o.Outcome,
		"operator": o.Operator,
	})
	return s.SettleEvent(ctx, o.EventID)
}

// RunTicker settles every pending event whose slot has ended, once per tick,
// until ctx is cancelled.
func (s *SettlementService) RunTicker(ctx context.Context) error {
	s.logger.InfoContext(ctx, "settlement_service: ticker started",
		slog.Duration("interval", s.opts.TickInterval),
		slog.Int("workers", s.opts.Workers),
	)
	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil && ctx.Err() == nil {
				s.logger.ErrorContext(ctx, "settlement_service: tick failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Tick runs one settlement sweep across events, Workers at a time.
func (s *SettlementService) Tick(ctx context.Context) error {
	ids, err := s.bets.PendingEventIDs(ctx, s.opts.BatchSize)
	if err != nil {
		return fmt.Errorf("settlement_service: pending events: %w", err)
	}

	now := s.now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for _, id := range ids {
		if !s.schedule.Ended(id, now) {
			status, err := s.outcomes.Status(ctx, id)
			if err != nil || status != domain.EventStatusVoid {
				continue
			}
		}
		g.Go(func() error {
			_, err := s.SettleEvent(gctx, id)
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrLockHeld):
				s.logger.DebugContext(gctx, "settlement_service: event busy",
					slog.String("event_id", id.String()),
				)
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				s.logger.ErrorContext(gctx, "settlement_service: settle event failed",
					slog.String("event_id", id.String()),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *SettlementService) record(ctx context.Context, r SettlementReport) {
	s.logger.InfoContext(ctx, "settlement_service: event pass complete",
		slog.String("event_id", r.EventID.String()),
		slog.Int("examined", r.Examined),
		slog.Int("settled", r.Settled),
		slog.Int("unresolved", r.Unresolved),
		slog.Int("failed", r.Failed),
		slog.Bool("closed", r.Closed),
	)
	if r.Examined == 0 && !r.Closed {
		return
	}
	detail := map[string]any{
		"event_id":   r.EventID.String(),
		"voided":     r.Voided,
		"examined":   r.Examined,
		"settled":    r.Settled,
		"unresolved": r.Unresolved,
		"failed":     r.Failed,
	}
	s.auditLog(ctx, "event_settled", detail)
	if s.bus != nil {
		data, _ := json.Marshal(r)
		if err := s.bus.StreamAppend(ctx, domain.StreamSettlements, data); err != nil {
			s.logger.WarnContext(ctx, "settlement_service: stream append failed",
				slog.String("error", err.Error()),
			)
		}
	}
}

// alertUnresolved reports each unresolved leg once per process.
func (s *SettlementService) alertUnresolved(ctx context.Context, v settlement.Verdict) {
	var parts []string
	s.alertedMu.Lock()
	for _, i := range v.Unresolved {
		l := v.Bet.Legs[i]
		if s.alerted[l.ID] {
			continue
		}
		s.alerted[l.ID] = true
		parts = append(parts, fmt.Sprintf("%s %q -> %q", l.EventID, l.Market, l.Selection))
	}
	s.alertedMu.Unlock()
	if len(parts) == 0 {
		return
	}
	s.logger.WarnContext(ctx, "settlement_service: unresolved legs",
		slog.String("bet_id", v.Bet.ID),
		slog.String("legs", strings.Join(parts, "; ")),
	)
	s.alert(ctx, AlertUnresolvedLeg, "Unresolved market",
		fmt.Sprintf("bet %s needs manual resolution: %s", v.Bet.ID, strings.Join(parts, "; ")))
}

func (s *SettlementService) alert(ctx context.Context, event, title, message string) {
	if s.alerter == nil {
		return
	}
	if err := s.alerter.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "settlement_service: alert failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *SettlementService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "settlement_service: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *SettlementService) publish(ctx context.Context, channel string, payload map[string]any) {
	if s.bus == nil {
		return
	}
	data, _ := json.Marshal(payload)
	if err := s.bus.Publish(ctx, channel, data); err != nil {
		s.logger.WarnContext(ctx, "settlement_service: publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
