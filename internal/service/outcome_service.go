package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/simulator"
)

// OutcomeService owns the lifecycle of simulated outcomes. An outcome is
// derived and pinned when its markets are priced, marked final once its event
// has ended and archived to cold storage later. Reads fall back from Postgres to the archive
// and finally to deterministic re-derivation from the event id.
type OutcomeService struct {
	outcomes  domain.OutcomeStore
	cache     domain.OutcomeCache
	archive   domain.OutcomeArchive
	roster    domain.RosterStore
	strengths domain.StrengthStore
	bus       domain.SignalBus
	quiz      *simulator.Quiz
	duel      *simulator.Duel
	schedule  domain.Schedule
	poolID    string
	logger    *slog.Logger
	now       func() time.Time
}

// OutcomeDeps groups the collaborators of an OutcomeService. Archive may be
// nil when cold storage is disabled.
type OutcomeDeps struct {
	Outcomes  domain.OutcomeStore
	Cache     domain.OutcomeCache
	Archive   domain.OutcomeArchive
	Roster    domain.RosterStore
	Strengths domain.StrengthStore
	Bus       domain.SignalBus
	Quiz      *simulator.Quiz
	Duel      *simulator.Duel
	Schedule  domain.Schedule
	PoolID    string
}

// NewOutcomeService creates an OutcomeService.
func NewOutcomeService(deps OutcomeDeps, logger *slog.Logger) *OutcomeService {
	return &OutcomeService{
		outcomes:  deps.Outcomes,
		cache:     deps.Cache,
		archive:   deps.Archive,
		roster:    deps.Roster,
		strengths: deps.Strengths,
		bus:       deps.Bus,
		quiz:      deps.Quiz,
		duel:      deps.Duel,
		schedule:  deps.Schedule,
		poolID:    deps.PoolID,
		logger:    logger.With(slog.String("component", "outcome_service")),
		now:       time.Now,
	}
}

// Schedule returns the event clock the service works against.
func (s *OutcomeService) Schedule() domain.Schedule { return s.schedule }

// Simulate runs the simulator for id with the current roster and strength
// snapshot. It neither reads nor writes any cache.
func (s *OutcomeService) Simulate(ctx context.Context, id domain.EventID) (domain.Outcome, error) {
	if id.IsDuel() {
		if id.Index < 0 {
			return domain.Outcome{}, fmt.Errorf("outcome_service: duel %s: negative seed: %w", id, domain.ErrInvalidEventID)
		}
		o, err := s.duel.Simulate(simulator.DuelInputFromID(id))
		if err != nil {
			return domain.Outcome{}, fmt.Errorf("outcome_service: simulate duel %s: %w", id, err)
		}
		return o, nil
	}

	pool, err := s.roster.ListParticipants(ctx, s.poolID)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("outcome_service: load pool %q: %w", s.poolID, err)
	}
	national, err := s.roster.NationalPool(ctx)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("outcome_service: load national pool: %w", err)
	}
	strengths, err := s.strengths.Snapshot(ctx)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("outcome_service: strength snapshot: %w", err)
	}

	o, err := s.quiz.Simulate(simulator.QuizInput{
		Round:     id.Round,
		Match:     id.Index,
		Category:  id.Category,
		Region:    id.RegionSlug(),
		PoolID:    s.poolID,
		Pool:      pool,
		National:  national,
		Strengths: strengths,
	})
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("outcome_service: simulate %s: %w", id, err)
	}
	return o, nil
}

// Derive returns the outcome markets are priced from. The first derivation
// is pinned in Postgres, so later pricing and finalization see the same
// result even after the cache expires or the strength snapshot moves.
func (s *OutcomeService) Derive(ctx context.Context, id domain.EventID) (domain.Outcome, error) {
	if o, err := s.cache.Get(ctx, id); err == nil {
		return o, nil
	}

	o, err := s.outcomes.Pinned(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		if o, err = s.derivePinned(ctx, id); err != nil {
			return domain.Outcome{}, err
		}
	default:
		return domain.Outcome{}, fmt.Errorf("outcome_service: pinned %s: %w", id, err)
	}

	if err := s.cache.Set(ctx, o); err != nil {
		s.logger.WarnContext(ctx, "outcome_service: cache set failed",
			slog.String("event_id", id.String()),
			slog.String("error", err.Error()),
		)
	}
	return o, nil
}

// derivePinned simulates and pins an event nothing is stored for. Pruned
// events are taken from the archive instead.
func (s *OutcomeService) derivePinned(ctx context.Context, id domain.EventID) (domain.Outcome, error) {
	if s.archive != nil && s.schedule.Ended(id, s.now()) {
		if o, err := s.archive.Get(ctx, id); err == nil {
			return o, nil
		}
	}
	o, err := s.Simulate(ctx, id)
	if err != nil {
		return domain.Outcome{}, err
	}
	if o, err = s.outcomes.Pin(ctx, o); err != nil {
		return domain.Outcome{}, fmt.Errorf("outcome_service: pin %s: %w", id, err)
	}
	return o, nil
}

// Finalize persists the outcome of an ended event and announces it. The
// stored outcome is returned; persisting twice is a no-op.
func (s *OutcomeService) Finalize(ctx context.Context, id domain.EventID) (domain.Outcome, error) {
	status, err := s.outcomes.Status(ctx, id)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("outcome_service: finalize %s: %w", id, err)
	}
	switch status {
	case domain.EventStatusVoid:
		return domain.Outcome{}, fmt.Errorf("outcome_service: finalize %s: %w", id, domain.ErrEventVoided)
	case domain.EventStatusFinal:
		return s.load(ctx, id)
	}
	if !s.schedule.Ended(id, s.now()) {
		return domain.Outcome{}, fmt.Errorf("outcome_service: finalize %s: %w", id, domain.ErrEventNotFinal)
	}

	o, err := s.Derive(ctx, id)
	if err != nil {
		return domain.Outcome{}, err
	}
	saved, err := s.outcomes.Save(ctx, o)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("outcome_service: save %s: %w", id, err)
	}
	if !saved {
		// Someone else finalized or voided it first; theirs is authoritative.
		return s.load(ctx, id)
	}

	s.logger.InfoContext(ctx, "outcome_service: event finalized",
		slog.String("event_id", id.String()),
		slog.Int("winner_index", o.WinnerIndex),
	)
	s.publish(ctx, domain.ChannelEventFinalized, map[string]any{
		"event_id":     id.String(),
		"winner_index": o.WinnerIndex,
		"totals":       o.Totals,
	})
	return o, nil
}

// Get returns the final outcome of an event. Pruned outcomes are read back
// from the archive; ended events that were never finalized are finalized on
// the spot.
func (s *OutcomeService) Get(ctx context.Context, id domain.EventID) (domain.Outcome, error) {
	o, err := s.load(ctx, id)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Outcome{}, err
	}
	return s.Finalize(ctx, id)
}

// load reads a stored outcome from Postgres, then the archive.
func (s *OutcomeService) load(ctx context.Context, id domain.EventID) (domain.Outcome, error) {
	o, err := s.outcomes.Get(ctx, id)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Outcome{}, fmt.Errorf("outcome_service: get %s: %w", id, err)
	}
	if s.archive == nil {
		return domain.Outcome{}, fmt.Errorf("outcome_service: get %s: %w", id, domain.ErrNotFound)
	}

	o, err = s.archive.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Outcome{}, fmt.Errorf("outcome_service: get %s: %w", id, domain.ErrNotFound)
		}
		return domain.Outcome{}, fmt.Errorf("outcome_service: archive get %s: %w", id, err)
	}
	s.logger.DebugContext(ctx, "outcome_service: outcome restored from archive",
		slog.String("event_id", id.String()),
	)
	return o, nil
}

// Status reports the lifecycle state of an event.
func (s *OutcomeService) Status(ctx context.Context, id domain.EventID) (domain.EventStatus, error) {
	status, err := s.outcomes.Status(ctx, id)
	if err != nil {
		return "", fmt.Errorf("outcome_service: status %s: %w", id, err)
	}
	if status == domain.EventStatusScheduled && s.archive != nil && s.schedule.Ended(id, s.now()) {
		// A pruned final outcome leaves no row behind.
		if _, err := s.archive.Get(ctx, id); err == nil {
			return domain.EventStatusFinal, nil
		}
	}
	return status, nil
}

// Void marks the event voided. The derived outcome is dropped from the cache.
func (s *OutcomeService) Void(ctx context.Context, id domain.EventID, reason string) error {
	if err := s.outcomes.MarkVoid(ctx, id, reason); err != nil {
		return fmt.Errorf("outcome_service: void %s: %w", id, err)
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "outcome_service: cache invalidate failed",
			slog.String("event_id", id.String()),
			slog.String("error", err.Error()),
		)
	}
	s.logger.InfoContext(ctx, "outcome_service: event voided",
		slog.String("event_id", id.String()),
		slog.String("reason", reason),
	)
	return nil
}

func (s *OutcomeService) publish(ctx context.Context, channel string, payload map[string]any) {
	if s.bus == nil {
		return
	}
	data, _ := json.Marshal(payload)
	if err := s.bus.Publish(ctx, channel, data); err != nil {
		s.logger.WarnContext(ctx, "outcome_service: publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
