// Package config defines the top-level configuration for the spread
// arbitrage engine and provides validation helpers.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SPREADARB_* environment variables.
type Config struct {
	Engine     EngineConfig     `toml:"engine"`
	Maker      VenueConfig      `toml:"maker"`
	Taker      VenueConfig      `toml:"taker"`
	Supervisor SupervisorConfig `toml:"supervisor"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`

	// Path is the file the config was loaded from. The supervisor passes it
	// to the child process.
	Path string `toml:"-"`
}

// EngineConfig holds the trading parameters.
type EngineConfig struct {
	Symbol         string   `toml:"symbol"`
	OrderSize      float64  `toml:"order_size"`
	MaxPosition    float64  `toml:"max_position"`
	LongThreshold  float64  `toml:"long_threshold"`
	ShortThreshold float64  `toml:"short_threshold"`
	FillTimeout    duration `toml:"fill_timeout"`
	MarketTimeout  duration `toml:"market_timeout"`
	ScanInterval   duration `toml:"scan_interval"`
	Cooldown       duration `toml:"cooldown"`
	StatusInterval duration `toml:"status_interval"`
	// LockTTL bounds how long a crashed engine keeps the single-instance
	// lock. Only used when redis is enabled.
	LockTTL duration `toml:"lock_ttl"`
}

// VenueConfig selects and configures one venue adapter.
type VenueConfig struct {
	// Venue is one of "simulated", "paradex", "lighter".
	Venue               string            `toml:"venue"`
	Name                string            `toml:"name"`
	BaseURL             string            `toml:"base_url"`
	APIKey              string            `toml:"api_key"`
	APISecret           string            `toml:"api_secret"`
	EncryptedSecretPath string            `toml:"encrypted_secret_path"`
	SecretPassword      string            `toml:"secret_password"`
	SymbolMap           map[string]string `toml:"symbol_map"`
	// RateLimit is the maximum number of requests per second; 0 disables.
	RateLimit int                `toml:"rate_limit"`
	Sim       SimulatedConfig    `toml:"sim"`
}

// SimulatedConfig parameterises the random-walk venue.
type SimulatedConfig struct {
	StartPrice float64 `toml:"start_price"`
	// HalfSpread is the distance from mid to the best bid/ask.
	HalfSpread float64 `toml:"half_spread"`
	// Volatility is the per-tick standard deviation of the mid, in price units.
	Volatility float64 `toml:"volatility"`
	Depth      float64 `toml:"depth"`
	Seed       int64   `toml:"seed"`
	// FailRate is the probability in [0,1) that an order call fails.
	FailRate float64            `toml:"fail_rate"`
	Balances map[string]float64 `toml:"balances"`
	// Latency delays every order call, to exercise leg timeouts.
	Latency duration `toml:"latency"`
}

// SupervisorConfig holds child-process lifecycle parameters.
type SupervisorConfig struct {
	MonitorInterval duration `toml:"monitor_interval"`
	StopTimeout     duration `toml:"stop_timeout"`
	AutoRestart     bool     `toml:"auto_restart"`
	MaxRestarts     int      `toml:"max_restarts"`
	RestartWindow   duration `toml:"restart_window"`
	RestartBackoff  duration `toml:"restart_backoff"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
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
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// S3Config holds S3-compatible object storage parameters and the trade
// archive schedule.
type S3Config struct {
	Enabled         bool     `toml:"enabled"`
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	UseSSL          bool     `toml:"use_ssl"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	ArchiveInterval duration `toml:"archive_interval"`
	RetentionDays   int      `toml:"retention_days"`
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

// ServerConfig holds the control API parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// RateLimit is requests per minute per client IP; 0 disables.
	RateLimit int `toml:"rate_limit"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	// Commands enables the Telegram command listener in supervise mode.
	Commands bool `toml:"commands"`
}

// MetricsConfig controls the engine's own /metrics listener.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			Symbol:         "BTC/USDT",
			OrderSize:      0.001,
			MaxPosition:    0.1,
			LongThreshold:  10.0,
			ShortThreshold: 10.0,
			FillTimeout:    duration{30 * time.Second},
			MarketTimeout:  duration{5 * time.Second},
			ScanInterval:   duration{2 * time.Second},
			Cooldown:       duration{2 * time.Second},
			StatusInterval: duration{30 * time.Second},
			LockTTL:        duration{30 * time.Second},
		},
		Maker: VenueConfig{
			Venue: "simulated",
			Name:  "maker",
			Sim: SimulatedConfig{
				StartPrice: 60000,
				HalfSpread: 5,
				Volatility: 8,
				Depth:      2,
				Seed:       1,
				Balances:   map[string]float64{"USDC": 10000, "BTC": 0},
			},
		},
		Taker: VenueConfig{
			Venue: "simulated",
			Name:  "taker",
			Sim: SimulatedConfig{
				StartPrice: 60000,
				HalfSpread: 5,
				Volatility: 8,
				Depth:      2,
				Seed:       2,
				Balances:   map[string]float64{"USDC": 10000, "BTC": 0},
			},
		},
		Supervisor: SupervisorConfig{
			MonitorInterval: duration{time.Second},
			StopTimeout:     duration{30 * time.Second},
			AutoRestart:     true,
			MaxRestarts:     3,
			RestartWindow:   duration{10 * time.Minute},
			RestartBackoff:  duration{5 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "spreadarb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "spreadarb",
		},
		S3: S3Config{
			Endpoint:        "http://localhost:9000",
			Region:          "us-east-1",
			Bucket:          "spreadarb-data",
			ForcePathStyle:  true,
			ArchiveInterval: duration{24 * time.Hour},
			RetentionDays:   30,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
			RateLimit:   120,
		},
		Notify: NotifyConfig{
			Events: []string{"trade", "partial", "error", "startup", "supervisor"},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9100,
		},
		Mode:     "engine",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"engine":    true,
	"supervise": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validVenues = map[string]bool{
	"simulated": true,
	"paradex":   true,
	"lighter":   true,
}

// Validate checks Config for invalid or missing values. Every problem found
// is reported in a single *domain.ConfigurationError.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: engine, supervise)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine
	e := c.Engine
	if strings.TrimSpace(e.Symbol) == "" {
		errs = append(errs, "engine: symbol must not be empty")
	} else if !strings.Contains(e.Symbol, "/") {
		errs = append(errs, fmt.Sprintf("engine: symbol %q must be BASE/QUOTE", e.Symbol))
	}
	if !positive(e.OrderSize) {
		errs = append(errs, "engine: order_size must be > 0")
	}
	if !positive(e.MaxPosition) {
		errs = append(errs, "engine: max_position must be > 0")
	}
	if positive(e.OrderSize) && positive(e.MaxPosition) && e.OrderSize > e.MaxPosition {
		errs = append(errs, "engine: order_size must not exceed max_position")
	}
	if !positive(e.LongThreshold) {
		errs = append(errs, "engine: long_threshold must be > 0")
	}
	if !positive(e.ShortThreshold) {
		errs = append(errs, "engine: short_threshold must be > 0")
	}
	if e.FillTimeout.Duration <= 0 {
		errs = append(errs, "engine: fill_timeout must be > 0")
	}
	if e.MarketTimeout.Duration <= 0 {
		errs = append(errs, "engine: market_timeout must be > 0")
	}
	if e.ScanInterval.Duration <= 0 {
		errs = append(errs, "engine: scan_interval must be > 0")
	}
	if e.Cooldown.Duration < 0 {
		errs = append(errs, "engine: cooldown must be >= 0")
	}
	if e.StatusInterval.Duration <= 0 {
		errs = append(errs, "engine: status_interval must be > 0")
	}

	// Venues
	for _, v := range []struct {
		section string
		cfg     VenueConfig
	}{{"maker", c.Maker}, {"taker", c.Taker}} {
		if !validVenues[strings.ToLower(v.cfg.Venue)] {
			errs = append(errs, fmt.Sprintf("%s: unknown venue %q (valid: simulated, paradex, lighter)", v.section, v.cfg.Venue))
		}
		if v.cfg.RateLimit < 0 {
			errs = append(errs, v.section+": rate_limit must be >= 0")
		}
		if v.cfg.EncryptedSecretPath != "" && v.cfg.SecretPassword == "" {
			errs = append(errs, v.section+": secret_password is required when encrypted_secret_path is set")
		}
	}
	if c.Maker.Name != "" && c.Maker.Name == c.Taker.Name {
		errs = append(errs, fmt.Sprintf("maker and taker must have distinct names, both are %q", c.Maker.Name))
	}

	// Supervisor
	if c.Supervisor.MonitorInterval.Duration <= 0 {
		errs = append(errs, "supervisor: monitor_interval must be > 0")
	}
	if c.Supervisor.StopTimeout.Duration <= 0 {
		errs = append(errs, "supervisor: stop_timeout must be > 0")
	}
	if c.Supervisor.AutoRestart {
		if c.Supervisor.MaxRestarts < 1 {
			errs = append(errs, "supervisor: max_restarts must be >= 1 when auto_restart is set")
		}
		if c.Supervisor.RestartWindow.Duration <= 0 {
			errs = append(errs, "supervisor: restart_window must be > 0 when auto_restart is set")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
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
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.RetentionDays < 1 {
			errs = append(errs, "s3: retention_days must be >= 1")
		}
		if c.S3.ArchiveInterval.Duration <= 0 {
			errs = append(errs, "s3: archive_interval must be > 0")
		}
		if !c.Postgres.Enabled {
			errs = append(errs, "s3: archiving requires postgres.enabled")
		}
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		errs = append(errs, fmt.Sprintf("metrics: port must be 1-65535, got %d", c.Metrics.Port))
	}
	if c.Notify.Commands && (c.Notify.TelegramToken == "" || c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: commands require telegram_token and telegram_chat_id")
	}

	if len(errs) > 0 {
		return &domain.ConfigurationError{Problems: errs}
	}
	return nil
}

func positive(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}
