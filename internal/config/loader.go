package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SPREADARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
		cfg.Path = path
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SPREADARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setStr(&cfg.Engine.Symbol, "SPREADARB_ENGINE_SYMBOL")
	setFloat64(&cfg.Engine.OrderSize, "SPREADARB_ENGINE_ORDER_SIZE")
	setFloat64(&cfg.Engine.MaxPosition, "SPREADARB_ENGINE_MAX_POSITION")
	setFloat64(&cfg.Engine.LongThreshold, "SPREADARB_ENGINE_LONG_THRESHOLD")
	setFloat64(&cfg.Engine.ShortThreshold, "SPREADARB_ENGINE_SHORT_THRESHOLD")
	setDuration(&cfg.Engine.FillTimeout, "SPREADARB_ENGINE_FILL_TIMEOUT")
	setDuration(&cfg.Engine.MarketTimeout, "SPREADARB_ENGINE_MARKET_TIMEOUT")
	setDuration(&cfg.Engine.ScanInterval, "SPREADARB_ENGINE_SCAN_INTERVAL")
	setDuration(&cfg.Engine.Cooldown, "SPREADARB_ENGINE_COOLDOWN")
	setDuration(&cfg.Engine.StatusInterval, "SPREADARB_ENGINE_STATUS_INTERVAL")

	// ── Venues ──
	applyVenueOverrides(&cfg.Maker, "SPREADARB_MAKER_")
	applyVenueOverrides(&cfg.Taker, "SPREADARB_TAKER_")

	// ── Supervisor ──
	setBool(&cfg.Supervisor.AutoRestart, "SPREADARB_SUPERVISOR_AUTO_RESTART")
	setInt(&cfg.Supervisor.MaxRestarts, "SPREADARB_SUPERVISOR_MAX_RESTARTS")
	setDuration(&cfg.Supervisor.RestartWindow, "SPREADARB_SUPERVISOR_RESTART_WINDOW")
	setDuration(&cfg.Supervisor.StopTimeout, "SPREADARB_SUPERVISOR_STOP_TIMEOUT")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "SPREADARB_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "SPREADARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "SPREADARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SPREADARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SPREADARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SPREADARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SPREADARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SPREADARB_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SPREADARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SPREADARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SPREADARB_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SPREADARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SPREADARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SPREADARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SPREADARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SPREADARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SPREADARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SPREADARB_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "SPREADARB_REDIS_KEY_PREFIX")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SPREADARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SPREADARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SPREADARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "SPREADARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SPREADARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SPREADARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SPREADARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SPREADARB_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.ArchiveInterval, "SPREADARB_S3_ARCHIVE_INTERVAL")
	setInt(&cfg.S3.RetentionDays, "SPREADARB_S3_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SPREADARB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SPREADARB_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SPREADARB_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "SPREADARB_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "SPREADARB_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SPREADARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SPREADARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SPREADARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SPREADARB_NOTIFY_EVENTS")
	setBool(&cfg.Notify.Commands, "SPREADARB_NOTIFY_COMMANDS")

	// ── Metrics ──
	setBool(&cfg.Metrics.Enabled, "SPREADARB_METRICS_ENABLED")
	setInt(&cfg.Metrics.Port, "SPREADARB_METRICS_PORT")

	// ── Top-level ──
	setStr(&cfg.Mode, "SPREADARB_MODE")
	setStr(&cfg.LogLevel, "SPREADARB_LOG_LEVEL")
}

func applyVenueOverrides(v *VenueConfig, prefix string) {
	setStr(&v.Venue, prefix+"VENUE")
	setStr(&v.Name, prefix+"NAME")
	setStr(&v.BaseURL, prefix+"BASE_URL")
	setStr(&v.APIKey, prefix+"API_KEY")
	setStr(&v.APISecret, prefix+"API_SECRET")
	setStr(&v.EncryptedSecretPath, prefix+"ENCRYPTED_SECRET_PATH")
	setStr(&v.SecretPassword, prefix+"SECRET_PASSWORD")
	setInt(&v.RateLimit, prefix+"RATE_LIMIT")
	setInt64(&v.Sim.Seed, prefix+"SIM_SEED")
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
