// Package config defines the top-level configuration for wagerbook and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by WAGERBOOK_* environment variables.
type Config struct {
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Simulation SimulationConfig `toml:"simulation"`
	Pricing    PricingConfig    `toml:"pricing"`
	LiveOdds   LiveOddsConfig   `toml:"live_odds"`
	Settlement SettlementConfig `toml:"settlement"`
	Archive    ArchiveConfig    `toml:"archive"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
	LogFormat  string           `toml:"log_format"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr            string `toml:"addr"`
	Password        string `toml:"password"`
	DB              int    `toml:"db"`
	PoolSize        int    `toml:"pool_size"`
	MaxRetries      int    `toml:"max_retries"`
	TLSEnabled      bool   `toml:"tls_enabled"`
	CacheTTLMinutes int    `toml:"cache_ttl_minutes"`
	StreamMaxLen    int    `toml:"stream_max_len"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled        bool     `toml:"enabled"`
	Port           int      `toml:"port"`
	CORSOrigins    []string `toml:"cors_origins"`
	AdminAPIKey    string   `toml:"admin_api_key"`
	RateLimit      int      `toml:"rate_limit"`
	RateLimitEvery duration `toml:"rate_limit_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	Cooldown          duration `toml:"cooldown"`
}

// SimulationConfig holds the tunable constants of both simulators. Zero
// values fall back to the simulator defaults.
type SimulationConfig struct {
	RoundSlot               duration            `toml:"round_slot"`
	PoolID                  string              `toml:"pool_id"`
	MatchesPerRound         int                 `toml:"matches_per_round"`
	TieBreakIterations      int                 `toml:"tie_break_iterations"`
	OffDayChance            float64             `toml:"off_day_chance"`
	OffDayMin               float64             `toml:"off_day_min"`
	OffDayMax               float64             `toml:"off_day_max"`
	HotStreakChance         float64             `toml:"hot_streak_chance"`
	HotStreakMin            float64             `toml:"hot_streak_min"`
	HotStreakMax            float64             `toml:"hot_streak_max"`
	ChaosChance             float64             `toml:"chaos_chance"`
	FirstCorrectPoints      int                 `toml:"first_correct_points"`
	FastestResponsePoints   int                 `toml:"fastest_response_points"`
	LateAggressionThreshold float64             `toml:"late_aggression_threshold"`
	Neighbors               map[string][]string `toml:"neighbors"`
}

// PricingConfig holds the odds engine constants.
type PricingConfig struct {
	Seed              int64                 `toml:"seed"`
	BaseMargin        float64               `toml:"base_margin"`
	MarginScaling     float64               `toml:"margin_scaling"`
	VolatilityDamping float64               `toml:"volatility_damping"`
	NoiseAmplitude    float64               `toml:"noise_amplitude"`
	TargetRTP         float64               `toml:"target_rtp"`
	MinImplied        float64               `toml:"min_implied"`
	MaxImplied        float64               `toml:"max_implied"`
	GlobalMaxOdds     float64               `toml:"global_max_odds"`
	LadderIncrement   float64               `toml:"ladder_increment"`
	Bands             map[string]OddsBounds `toml:"bands"`
}

// OddsBounds is the [min, max] odds range of one market kind.
type OddsBounds struct {
	Min float64 `toml:"min"`
	Max float64 `toml:"max"`
}

// LiveOddsConfig holds the stake-driven re-pricing constants.
type LiveOddsConfig struct {
	Enabled         bool     `toml:"enabled"`
	ModelWeight     float64  `toml:"model_weight"`
	StakeWeight     float64  `toml:"stake_weight"`
	TargetOverround float64  `toml:"target_overround"`
	MinOdds         float64  `toml:"min_odds"`
	MaxOdds         float64  `toml:"max_odds"`
	RefreshInterval duration `toml:"refresh_interval"`
	BatchSize       int      `toml:"batch_size"`
}

// SettlementConfig holds payout limits and the settlement ticker parameters.
type SettlementConfig struct {
	MaxPayoutPerEvent        float64  `toml:"max_payout_per_event"`
	SystemExposureMultiplier float64  `toml:"system_exposure_multiplier"`
	TickInterval             duration `toml:"tick_interval"`
	LockTTL                  duration `toml:"lock_ttl"`
	BatchSize                int      `toml:"batch_size"`
	Workers                  int      `toml:"workers"`
	RiskTables               string   `toml:"risk_tables"`
}

// ArchiveConfig controls the cold archive of finalized outcomes.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	Interval      duration `toml:"interval"`
	RetentionDays int      `toml:"retention_days"`
	BatchSize     int      `toml:"batch_size"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "wagerbook",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:            "localhost:6379",
			PoolSize:        20,
			MaxRetries:      3,
			CacheTTLMinutes: 60,
			StreamMaxLen:    10000,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "wagerbook-archive",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:        true,
			Port:           8080,
			RateLimit:      120,
			RateLimitEvery: duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events:   []string{"unresolved_leg", "settlement_failed", "event_voided"},
			Cooldown: duration{10 * time.Minute},
		},
		Simulation: SimulationConfig{
			RoundSlot:       duration{15 * time.Minute},
			PoolID:          "default",
			MatchesPerRound: 4,
		},
		Pricing: PricingConfig{
			BaseMargin:        0.05,
			MarginScaling:     1.5,
			VolatilityDamping: 0.5,
			NoiseAmplitude:    0.04,
			TargetRTP:         0.97,
			MinImplied:        0.01,
			MaxImplied:        0.99,
			GlobalMaxOdds:     100,
			LadderIncrement:   0.02,
		},
		LiveOdds: LiveOddsConfig{
			Enabled:         true,
			ModelWeight:     0.7,
			StakeWeight:     0.3,
			TargetOverround: 1.08,
			MinOdds:         1.01,
			MaxOdds:         50,
			RefreshInterval: duration{30 * time.Second},
			BatchSize:       200,
		},
		Settlement: SettlementConfig{
			MaxPayoutPerEvent:        3000,
			SystemExposureMultiplier: 50,
			TickInterval:             duration{time.Minute},
			LockTTL:                  duration{2 * time.Minute},
			BatchSize:                500,
			Workers:                  4,
		},
		Archive: ArchiveConfig{
			Enabled:       true,
			Interval:      duration{time.Hour},
			RetentionDays: 30,
			BatchSize:     200,
		},
		Mode:      "full",
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"settler": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json": true,
	"text": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, settler, full)", c.Mode))
	}

	// Logging
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if !validLogFormats[strings.ToLower(c.LogFormat)] {
		errs = append(errs, fmt.Sprintf("unknown log_format %q (valid: json, text)", c.LogFormat))
	}

	// Postgres
	if c.Postgres.DSN == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 is only needed while archiving.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0")
		}
	}

	// Simulation
	if c.Simulation.RoundSlot.Duration < time.Minute {
		errs = append(errs, "simulation: round_slot must be at least 1m")
	}
	if c.Simulation.PoolID == "" {
		errs = append(errs, "simulation: pool_id must not be empty")
	}
	if c.Simulation.MatchesPerRound < 1 {
		errs = append(errs, "simulation: matches_per_round must be >= 1")
	}
	if c.Simulation.TieBreakIterations < 0 {
		errs = append(errs, "simulation: tie_break_iterations must be >= 0")
	}
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"off_day_chance", c.Simulation.OffDayChance},
		{"hot_streak_chance", c.Simulation.HotStreakChance},
		{"chaos_chance", c.Simulation.ChaosChance},
		{"late_aggression_threshold", c.Simulation.LateAggressionThreshold},
	} {
		if p.v < 0 || p.v > 1 {
			errs = append(errs, fmt.Sprintf("simulation: %s must be within [0, 1], got %g", p.name, p.v))
		}
	}
	if c.Simulation.OffDayMin > c.Simulation.OffDayMax {
		errs = append(errs, "simulation: off_day_min must not exceed off_day_max")
	}
	if c.Simulation.HotStreakMin > c.Simulation.HotStreakMax {
		errs = append(errs, "simulation: hot_streak_min must not exceed hot_streak_max")
	}

	// Pricing
	if c.Pricing.BaseMargin < 0 || c.Pricing.BaseMargin >= 1 {
		errs = append(errs, "pricing: base_margin must be within [0, 1)")
	}
	if c.Pricing.TargetRTP <= 0 || c.Pricing.TargetRTP > 1 {
		errs = append(errs, "pricing: target_rtp must be within (0, 1]")
	}
	if c.Pricing.MinImplied <= 0 || c.Pricing.MaxImplied >= 1 || c.Pricing.MinImplied >= c.Pricing.MaxImplied {
		errs = append(errs, "pricing: require 0 < min_implied < max_implied < 1")
	}
	if c.Pricing.GlobalMaxOdds <= 1 {
		errs = append(errs, "pricing: global_max_odds must be > 1")
	}
	if c.Pricing.LadderIncrement < 0 {
		errs = append(errs, "pricing: ladder_increment must be >= 0")
	}
	for kind, b := range c.Pricing.Bands {
		if b.Min < 1 || b.Max <= b.Min {
			errs = append(errs, fmt.Sprintf("pricing: band %q must satisfy 1 <= min < max", kind))
		}
	}

	// Live odds
	if c.LiveOdds.Enabled {
		if w := c.LiveOdds.ModelWeight + c.LiveOdds.StakeWeight; w < 0.999 || w > 1.001 {
			errs = append(errs, fmt.Sprintf("live_odds: model_weight + stake_weight must be 1, got %g", w))
		}
		if c.LiveOdds.TargetOverround < 1 {
			errs = append(errs, "live_odds: target_overround must be >= 1")
		}
		if c.LiveOdds.MinOdds < 1 || c.LiveOdds.MaxOdds <= c.LiveOdds.MinOdds {
			errs = append(errs, "live_odds: require 1 <= min_odds < max_odds")
		}
		if c.LiveOdds.RefreshInterval.Duration <= 0 {
			errs = append(errs, "live_odds: refresh_interval must be > 0")
		}
	}

	// Settlement
	if c.Settlement.MaxPayoutPerEvent <= 0 {
		errs = append(errs, "settlement: max_payout_per_event must be > 0")
	}
	if c.Settlement.SystemExposureMultiplier <= 0 {
		errs = append(errs, "settlement: system_exposure_multiplier must be > 0")
	}
	if c.Settlement.TickInterval.Duration <= 0 {
		errs = append(errs, "settlement: tick_interval must be > 0")
	}
	if c.Settlement.LockTTL.Duration <= 0 {
		errs = append(errs, "settlement: lock_ttl must be > 0")
	}
	if c.Settlement.BatchSize < 1 {
		errs = append(errs, "settlement: batch_size must be >= 1")
	}
	if c.Settlement.Workers < 1 {
		errs = append(errs, "settlement: workers must be >= 1")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
