package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

func TestDefaults_Validate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "BTC/USDT", cfg.Engine.Symbol)
	assert.Equal(t, 0.001, cfg.Engine.OrderSize)
	assert.Equal(t, 0.1, cfg.Engine.MaxPosition)
	assert.Equal(t, 10.0, cfg.Engine.LongThreshold)
	assert.Equal(t, 30*time.Second, cfg.Engine.FillTimeout.Duration)
	assert.Equal(t, 2*time.Second, cfg.Engine.ScanInterval.Duration)
	assert.Equal(t, 2*time.Second, cfg.Engine.Cooldown.Duration)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Engine.OrderSize = 0
	cfg.Engine.LongThreshold = -1
	cfg.Maker.Venue = "binance"
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	var ce *domain.ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Len(t, ce.Problems, 4)
	assert.Contains(t, err.Error(), "order_size")
	assert.Contains(t, err.Error(), "binance")
}

func TestValidate_OrderSizeAboveMaxPosition(t *testing.T) {
	cfg := Defaults()
	cfg.Engine.OrderSize = 1
	cfg.Engine.MaxPosition = 0.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not exceed max_position")
}

func TestValidate_ArchiveNeedsPostgres(t *testing.T) {
	cfg := Defaults()
	cfg.S3.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires postgres.enabled")

	cfg.Postgres.Enabled = true
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"

[engine]
symbol = "ETH/USDT"
long_threshold = 2.5
fill_timeout = "10s"

[maker]
venue = "paradex"
api_key = "from-file"

[maker.symbol_map]
"ETH/USDT" = "ETH-USD-PERP"
`), 0o600))

	t.Setenv("SPREADARB_MAKER_API_KEY", "from-env")
	t.Setenv("SPREADARB_ENGINE_SHORT_THRESHOLD", "3")
	t.Chdir(dir)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "ETH/USDT", cfg.Engine.Symbol)
	assert.Equal(t, 2.5, cfg.Engine.LongThreshold)
	assert.Equal(t, 3.0, cfg.Engine.ShortThreshold)
	assert.Equal(t, 10*time.Second, cfg.Engine.FillTimeout.Duration)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.001, cfg.Engine.OrderSize)
	assert.Equal(t, "paradex", cfg.Maker.Venue)
	assert.Equal(t, "from-env", cfg.Maker.APIKey)
	assert.Equal(t, "ETH-USD-PERP", cfg.Maker.SymbolMap["ETH/USDT"])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Maker.APISecret = "s3cret"
	cfg.Postgres.Password = "pw"
	cfg.Notify.TelegramToken = "tok"
	cfg.Maker.SymbolMap = map[string]string{"BTC/USDT": "BTC-USD-PERP"}

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Maker.APISecret)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Equal(t, "***", out.Notify.TelegramToken)
	assert.Empty(t, out.Maker.APIKey)

	out.Maker.SymbolMap["BTC/USDT"] = "changed"
	assert.Equal(t, "BTC-USD-PERP", cfg.Maker.SymbolMap["BTC/USDT"])
	assert.Equal(t, "s3cret", cfg.Maker.APISecret)
}
