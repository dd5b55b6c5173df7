package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/wagerbook/internal/blob/s3"
	"github.com/alanyoungcy/wagerbook/internal/cache/redis"
	"github.com/alanyoungcy/wagerbook/internal/config"
	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/notify"
	"github.com/alanyoungcy/wagerbook/internal/server/handler"
	"github.com/alanyoungcy/wagerbook/internal/store/postgres"
)

// Dependencies bundles every concrete store, cache and client the modes
// build their services on. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	OutcomeStore  domain.OutcomeStore
	MarketStore   domain.MarketStore
	BetStore      domain.BetStore
	OverrideStore domain.OverrideStore
	RosterStore   domain.RosterStore
	StrengthStore domain.StrengthStore
	AuditStore    domain.AuditStore

	// Caches
	OutcomeCache domain.OutcomeCache
	MarketCache  domain.MarketCache
	StakeBook    domain.StakeBook
	LockManager  domain.LockManager
	RateLimiter  domain.RateLimiter
	SignalBus    domain.SignalBus

	// Archive is nil when cold storage is disabled.
	Archive *s3blob.OutcomeArchive

	Notifier *notify.Notifier

	// Pingers backs the health endpoint, keyed by dependency name.
	Pingers map[string]handler.Pinger
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Pingers: make(map[string]handler.Pinger)}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)
	deps.Pingers["postgres"] = pgClient

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.OutcomeStore = postgres.NewOutcomeStore(pool)
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.BetStore = postgres.NewBetStore(pool)
	deps.OverrideStore = postgres.NewOverrideStore(pool)
	deps.RosterStore = postgres.NewRosterStore(pool)
	deps.StrengthStore = postgres.NewStrengthStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisTTL := time.Duration(0)
	if cfg.Redis.CacheTTLMinutes > 0 {
		redisTTL = time.Duration(cfg.Redis.CacheTTLMinutes) * time.Minute
	}
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
		CacheTTL:   redisTTL,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })
	deps.Pingers["redis"] = redisClient

	streamMaxLen := int64(10000)
	if cfg.Redis.StreamMaxLen > 0 {
		streamMaxLen = int64(cfg.Redis.StreamMaxLen)
	}

	deps.OutcomeCache = redis.NewOutcomeCache(redisClient)
	deps.MarketCache = redis.NewMarketCache(redisClient)
	deps.StakeBook = redis.NewStakeBook(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.SignalBus = redis.NewSignalBusWithMaxLen(redisClient, streamMaxLen)

	// --- S3 archive (optional) ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		if err := s3Client.EnsureBucket(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3 bucket: %w", err)
		}
		deps.Pingers["s3"] = handler.PingFunc(s3Client.Health)

		schedule := domain.Schedule{RoundSlot: cfg.Simulation.RoundSlot.Duration}
		deps.Archive = s3blob.NewOutcomeArchive(s3blob.NewWriter(s3Client), s3blob.NewReader(s3Client), schedule)
	}

	// --- Notifications ---
	deps.Notifier = notify.New(notify.Config{
		TelegramToken:     cfg.Notify.TelegramToken,
		TelegramChatID:    cfg.Notify.TelegramChatID,
		DiscordWebhookURL: cfg.Notify.DiscordWebhookURL,
		Events:            cfg.Notify.Events,
		Cooldown:          cfg.Notify.Cooldown.Duration,
	}, logger)

	logger.InfoContext(ctx, "dependencies wired",
		slog.Bool("archive", deps.Archive != nil),
		slog.Bool("notifications", deps.Notifier.Enabled()),
	)
	return deps, cleanup, nil
}
