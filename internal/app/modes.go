package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/wagerbook/internal/config"
	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/pricing"
	"github.com/alanyoungcy/wagerbook/internal/server"
	"github.com/alanyoungcy/wagerbook/internal/server/handler"
	"github.com/alanyoungcy/wagerbook/internal/server/ws"
	"github.com/alanyoungcy/wagerbook/internal/service"
	"github.com/alanyoungcy/wagerbook/internal/settlement"
	"github.com/alanyoungcy/wagerbook/internal/simulator"
)

// services holds the domain services shared by every mode.
type services struct {
	schedule   domain.Schedule
	outcomes   *service.OutcomeService
	markets    *service.MarketService
	bets       *service.BetService
	settlement *service.SettlementService
	liveOdds   *service.LiveOddsService
	archive    *service.ArchiveService // nil when cold storage is disabled
}

// buildServices constructs the simulator, pricer and settlement engine from
// configuration and wires them onto deps.
func (a *App) buildServices(deps *Dependencies) (*services, error) {
	cfg := a.cfg
	risk, err := config.LoadRiskTables(cfg.Settlement.RiskTables)
	if err != nil {
		return nil, fmt.Errorf("app: risk tables: %w", err)
	}

	schedule := domain.Schedule{RoundSlot: cfg.Simulation.RoundSlot.Duration}
	qp := quizParams(cfg.Simulation)
	dp := duelParams(cfg.Simulation, risk)

	// A typed nil pointer must not leak into the interface.
	var archive domain.OutcomeArchive
	if deps.Archive != nil {
		archive = deps.Archive
	}

	outcomes := service.NewOutcomeService(service.OutcomeDeps{
		Outcomes:  deps.OutcomeStore,
		Cache:     deps.OutcomeCache,
		Archive:   archive,
		Roster:    deps.RosterStore,
		Strengths: deps.StrengthStore,
		Bus:       deps.SignalBus,
		Quiz:      simulator.NewQuiz(qp),
		Duel:      simulator.NewDuel(dp, nil),
		Schedule:  schedule,
		PoolID:    cfg.Simulation.PoolID,
	}, a.logger)

	pricer := pricing.New(pricingConfig(cfg.Pricing), qp, dp)
	markets := service.NewMarketService(deps.MarketStore, deps.MarketCache, outcomes, pricer,
		schedule, cfg.Pricing.Seed, a.logger)

	settler := settlement.NewSettler(settlement.DefaultRegistry(), risk.Tables, settlementLimits(cfg.Settlement))
	bets := service.NewBetService(deps.BetStore, markets, deps.StakeBook,
		settlement.NewGuard(risk.Tables), settler, a.logger)

	settle := service.NewSettlementService(service.SettlementDeps{
		Bets:      deps.BetStore,
		Outcomes:  outcomes,
		Overrides: deps.OverrideStore,
		Markets:   markets,
		Stakes:    deps.StakeBook,
		Locks:     deps.LockManager,
		Audit:     deps.AuditStore,
		Bus:       deps.SignalBus,
		Alerter:   deps.Notifier,
		Settler:   settler,
		Schedule:  schedule,
	}, service.SettlementOptions{
		TickInterval: cfg.Settlement.TickInterval.Duration,
		LockTTL:      cfg.Settlement.LockTTL.Duration,
		BatchSize:    cfg.Settlement.BatchSize,
		Workers:      cfg.Settlement.Workers,
	}, a.logger)

	live := service.NewLiveOddsService(markets, deps.StakeBook, pricing.NewAdjuster(liveConfig(cfg.LiveOdds)),
		deps.SignalBus, cfg.LiveOdds.RefreshInterval.Duration, cfg.LiveOdds.BatchSize, a.logger)

	svcs := &services{
		schedule:   schedule,
		outcomes:   outcomes,
		markets:    markets,
		bets:       bets,
		settlement: settle,
		liveOdds:   live,
	}
	if deps.Archive != nil {
		svcs.archive = service.NewArchiveService(deps.OutcomeStore, deps.Archive, deps.AuditStore,
			cfg.Archive.Interval.Duration, time.Duration(cfg.Archive.RetentionDays)*24*time.Hour,
			cfg.Archive.BatchSize, a.logger)
	}
	return svcs, nil
}

// ServerMode serves the HTTP API and the WebSocket feed, and re-prices open
// markets from stake.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	svcs, err := a.buildServices(deps)
	if err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	a.startAPI(ctx, g, deps, svcs)
	return g.Wait()
}

// SettlerMode runs the settlement ticker and the archive loop.
func (a *App) SettlerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting settler mode")
	svcs, err := a.buildServices(deps)
	if err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	a.startSettler(ctx, g, svcs)
	return g.Wait()
}

// FullMode runs the API and the settler in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	svcs, err := a.buildServices(deps)
	if err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	a.startAPI(ctx, g, deps, svcs)
	a.startSettler(ctx, g, svcs)
	return g.Wait()
}

func (a *App) startSettler(ctx context.Context, g *errgroup.Group, svcs *services) {
	g.Go(func() error {
		return svcs.settlement.RunTicker(ctx)
	})
	if svcs.archive != nil {
		g.Go(func() error {
			return svcs.archive.Run(ctx)
		})
	} else {
		a.logger.InfoContext(ctx, "archive disabled, outcomes stay in postgres")
	}
}

func (a *App) startAPI(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	cfg := a.cfg

	if cfg.LiveOdds.Enabled {
		g.Go(func() error {
			return svcs.liveOdds.Run(ctx)
		})
	}

	if !cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "http server disabled")
		return
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:           cfg.Mode,
		StartedAt:      time.Now().UTC(),
		AllowedOrigins: cfg.Server.CORSOrigins,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.Pingers, a.logger),
		Events: handler.NewEventHandler(svcs.outcomes, svcs.markets, svcs.schedule,
			cfg.Simulation.MatchesPerRound, a.logger),
		Bets:  handler.NewBetHandler(svcs.bets, a.logger),
		Admin: handler.NewAdminHandler(svcs.settlement, deps.AuditStore, a.logger),
	}
	srv := server.NewServer(server.Config{
		Port:            cfg.Server.Port,
		CORSOrigins:     cfg.Server.CORSOrigins,
		AdminAPIKey:     cfg.Server.AdminAPIKey,
		RateLimit:       cfg.Server.RateLimit,
		RateLimitWindow: cfg.Server.RateLimitEvery.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	startHTTPServer(ctx, g, srv, a.logger)
}

// startHTTPServer runs srv inside g and shuts it down gracefully once ctx is
// cancelled.
func startHTTPServer(ctx context.Context, g *errgroup.Group, srv *server.Server, logger *slog.Logger) {
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown failed", slog.String("error", err.Error()))
		}
		return nil
	})
}
