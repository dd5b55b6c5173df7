package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies WAGERBOOK_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known WAGERBOOK_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "WAGERBOOK_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "WAGERBOOK_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "WAGERBOOK_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "WAGERBOOK_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "WAGERBOOK_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "WAGERBOOK_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "WAGERBOOK_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "WAGERBOOK_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "WAGERBOOK_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "WAGERBOOK_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "WAGERBOOK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "WAGERBOOK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "WAGERBOOK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "WAGERBOOK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "WAGERBOOK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "WAGERBOOK_REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.CacheTTLMinutes, "WAGERBOOK_REDIS_CACHE_TTL_MINUTES")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "WAGERBOOK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "WAGERBOOK_S3_REGION")
	setStr(&cfg.S3.Bucket, "WAGERBOOK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "WAGERBOOK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "WAGERBOOK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "WAGERBOOK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "WAGERBOOK_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "WAGERBOOK_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "WAGERBOOK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "WAGERBOOK_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.AdminAPIKey, "WAGERBOOK_SERVER_ADMIN_API_KEY")
	setInt(&cfg.Server.RateLimit, "WAGERBOOK_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "WAGERBOOK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "WAGERBOOK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "WAGERBOOK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "WAGERBOOK_NOTIFY_EVENTS")

	// ── Simulation ──
	setDuration(&cfg.Simulation.RoundSlot, "WAGERBOOK_SIMULATION_ROUND_SLOT")
	setStr(&cfg.Simulation.PoolID, "WAGERBOOK_SIMULATION_POOL_ID")
	setInt(&cfg.Simulation.MatchesPerRound, "WAGERBOOK_SIMULATION_MATCHES_PER_ROUND")
	setInt(&cfg.Simulation.TieBreakIterations, "WAGERBOOK_SIMULATION_TIE_BREAK_ITERATIONS")
	setFloat64(&cfg.Simulation.ChaosChance, "WAGERBOOK_SIMULATION_CHAOS_CHANCE")

	// ── Pricing ──
	setInt64(&cfg.Pricing.Seed, "WAGERBOOK_PRICING_SEED")
	setFloat64(&cfg.Pricing.BaseMargin, "WAGERBOOK_PRICING_BASE_MARGIN")
	setFloat64(&cfg.Pricing.MarginScaling, "WAGERBOOK_PRICING_MARGIN_SCALING")
	setFloat64(&cfg.Pricing.NoiseAmplitude, "WAGERBOOK_PRICING_NOISE_AMPLITUDE")
	setFloat64(&cfg.Pricing.TargetRTP, "WAGERBOOK_PRICING_TARGET_RTP")
	setFloat64(&cfg.Pricing.GlobalMaxOdds, "WAGERBOOK_PRICING_GLOBAL_MAX_ODDS")

	// ── Live odds ──
	setBool(&cfg.LiveOdds.Enabled, "WAGERBOOK_LIVE_ODDS_ENABLED")
	setFloat64(&cfg.LiveOdds.ModelWeight, "WAGERBOOK_LIVE_ODDS_MODEL_WEIGHT")
	setFloat64(&cfg.LiveOdds.StakeWeight, "WAGERBOOK_LIVE_ODDS_STAKE_WEIGHT")
	setFloat64(&cfg.LiveOdds.TargetOverround, "WAGERBOOK_LIVE_ODDS_TARGET_OVERROUND")
	setDuration(&cfg.LiveOdds.RefreshInterval, "WAGERBOOK_LIVE_ODDS_REFRESH_INTERVAL")

	// ── Settlement ──
	setFloat64(&cfg.Settlement.MaxPayoutPerEvent, "WAGERBOOK_SETTLEMENT_MAX_PAYOUT_PER_EVENT")
	setFloat64(&cfg.Settlement.SystemExposureMultiplier, "WAGERBOOK_SETTLEMENT_SYSTEM_EXPOSURE_MULTIPLIER")
	setDuration(&cfg.Settlement.TickInterval, "WAGERBOOK_SETTLEMENT_TICK_INTERVAL")
	setDuration(&cfg.Settlement.LockTTL, "WAGERBOOK_SETTLEMENT_LOCK_TTL")
	setInt(&cfg.Settlement.BatchSize, "WAGERBOOK_SETTLEMENT_BATCH_SIZE")
	setInt(&cfg.Settlement.Workers, "WAGERBOOK_SETTLEMENT_WORKERS")
	setStr(&cfg.Settlement.RiskTables, "WAGERBOOK_SETTLEMENT_RISK_TABLES")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "WAGERBOOK_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "WAGERBOOK_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "WAGERBOOK_ARCHIVE_RETENTION_DAYS")

	// ── Top-level ──
	setStr(&cfg.Mode, "WAGERBOOK_MODE")
	setStr(&cfg.LogLevel, "WAGERBOOK_LOG_LEVEL")
	setStr(&cfg.LogFormat, "WAGERBOOK_LOG_FORMAT")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
