package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/pricing"
	"github.com/alanyoungcy/wagerbook/internal/settlement"
	"github.com/alanyoungcy/wagerbook/internal/simulator"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// harness wires every service over in-memory fakes and a fake clock.
type harness struct {
	clock    *fakeClock
	schedule domain.Schedule

	outcomes  *memOutcomes
	ocache    *memOutcomeCache
	archive   *memArchive
	roster    *memRoster
	strengths *memStrengths
	markets   *memMarkets
	mcache    *memMarketCache
	stakes    *memStakes
	bets      *memBets
	overrides *memOverrides
	locks     *memLocks
	audit     *memAudit
	bus       *memBus
	alerter   *memAlerter

	outcomeSvc *OutcomeService
	marketSvc  *MarketService
	betSvc     *BetService
	settleSvc  *SettlementService
	liveSvc    *LiveOddsService
	archiveSvc *ArchiveService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:     &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)},
		schedule:  domain.Schedule{RoundSlot: 15 * time.Minute},
		outcomes:  newMemOutcomes(),
		ocache:    newMemOutcomeCache(),
		archive:   newMemArchive(),
		roster:    testRoster(),
		strengths: &memStrengths{},
		markets:   newMemMarkets(),
		mcache:    newMemMarketCache(),
		stakes:    newMemStakes(),
		bets:      newMemBets(),
		overrides: &memOverrides{},
		locks:     newMemLocks(),
		audit:     &memAudit{},
		bus:       newMemBus(),
		alerter:   &memAlerter{},
	}
	h.outcomes.now = h.clock.Now
	logger := discardLogger()

	quizParams := simulator.DefaultQuizParams()
	duelParams := simulator.DefaultDuelParams()

	h.outcomeSvc = NewOutcomeService(OutcomeDeps{
		Outcomes:  h.outcomes,
		Cache:     h.ocache,
		Archive:   h.archive,
		Roster:    h.roster,
		Strengths: h.strengths,
		Bus:       h.bus,
		Quiz:      simulator.NewQuiz(quizParams),
		Duel:      simulator.NewDuel(duelParams, simulator.DuelRoster),
		Schedule:  h.schedule,
		PoolID:    "default",
	}, logger)
	h.outcomeSvc.now = h.clock.Now

	pricer := pricing.New(pricing.DefaultConfig(), quizParams, duelParams)
	h.marketSvc = NewMarketService(h.markets, h.mcache, h.outcomeSvc, pricer, h.schedule, 0, logger)
	h.marketSvc.now = h.clock.Now

	tables := settlement.DefaultRiskTables()
	settler := settlement.NewSettler(settlement.DefaultRegistry(), tables, settlement.DefaultLimits())
	h.betSvc = NewBetService(h.bets, h.marketSvc, h.stakes, settlement.NewGuard(tables), settler, logger)
	h.betSvc.now = h.clock.Now

	h.settleSvc = NewSettlementService(SettlementDeps{
		Bets:      h.bets,
		Outcomes:  h.outcomeSvc,
		Overrides: h.overrides,
		Markets:   h.marketSvc,
		Stakes:    h.stakes,
		Locks:     h.locks,
		Audit:     h.audit,
		Bus:       h.bus,
		Alerter:   h.alerter,
		Settler:   settler,
		Schedule:  h.schedule,
	}, SettlementOptions{BatchSize: 50, Workers: 4}, logger)
	h.settleSvc.now = h.clock.Now

	h.liveSvc = NewLiveOddsService(h.marketSvc, h.stakes, pricing.NewAdjuster(pricing.DefaultLiveConfig()),
		h.bus, time.Second, 100, logger)
	h.liveSvc.now = h.clock.Now

	h.archiveSvc = NewArchiveService(h.outcomes, h.archive, h.audit, time.Hour, 24*time.Hour, 2, logger)
	h.archiveSvc.now = h.clock.Now
	return h
}

// event returns a national event a few rounds in the future.
func (h *harness) event(match int) domain.EventID {
	return domain.EventID{
		Round:    h.schedule.RoundAt(h.clock.Now()) + 2,
		Index:    match,
		Category: domain.CategoryNational,
	}
}

func (h *harness) startOf(id domain.EventID) { h.clock.Set(h.schedule.Start(id)) }

func (h *harness) endOf(id domain.EventID) { h.clock.Set(h.schedule.End(id).Add(time.Second)) }

func (h *harness) market(t *testing.T, id domain.EventID, name string) domain.Market {
	t.Helper()
	m, err := h.marketSvc.Market(context.Background(), id, name)
	require.NoError(t, err)
	return m
}

// winnerAndLoser returns the name of the participant that will win the event
// and one that will not.
func (h *harness) winnerAndLoser(t *testing.T, id domain.EventID) (string, string) {
	t.Helper()
	o, err := h.outcomeSvc.Derive(context.Background(), id)
	require.NoError(t, err)
	require.False(t, o.IsDraw())
	loser := (o.WinnerIndex + 1) % len(o.Participants)
	return o.ParticipantName(o.WinnerIndex), o.ParticipantName(loser)
}

func (h *harness) placeSingle(t *testing.T, id domain.EventID, market, selection string, stake int64) Placement {
	t.Helper()
	p, err := h.betSvc.Place(context.Background(), Slip{
		UserID: "user-1",
		Mode:   domain.BetModeSingle,
		Legs: []SlipLeg{{
			EventID: id, Market: market, Selection: selection, Stake: decimal.NewFromInt(stake),
		}},
	})
	require.NoError(t, err)
	return p
}
