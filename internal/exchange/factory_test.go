package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/spreadarb/internal/config"
	"github.com/alanyoungcy/spreadarb/internal/domain"
	"github.com/alanyoungcy/spreadarb/internal/exchange/simulated"
	"github.com/alanyoungcy/spreadarb/internal/platform/lighter"
	"github.com/alanyoungcy/spreadarb/internal/platform/paradex"
)

func TestVenueSymbol(t *testing.T) {
	assert.Equal(t, "BTC-USDC-PERP", VenueSymbol(VenueParadex, "BTC/USDT", nil))
	assert.Equal(t, "BTC-USDC", VenueSymbol(VenueLighter, "BTC/USDT", nil))
	assert.Equal(t, "ETH-USD-PERP", VenueSymbol(VenueParadex, "eth/usd", nil))
	assert.Equal(t, "BTC/USDT", VenueSymbol(VenueSimulated, "BTC/USDT", nil))
	assert.Equal(t, "XBT-PERP", VenueSymbol(VenueParadex, "BTC/USDT", map[string]string{"BTC/USDT": "XBT-PERP"}))
}

func TestNew_Simulated(t *testing.T) {
	cfg := config.Defaults()
	ex, err := New("maker", cfg.Maker, Options{})
	require.NoError(t, err)
	assert.IsType(t, &simulated.Exchange{}, ex)
	assert.Equal(t, "maker", ex.Name())
}

func TestNew_LiveVenues(t *testing.T) {
	p, err := New("maker", config.VenueConfig{Venue: "paradex", APIKey: "k", APISecret: "s"}, Options{})
	require.NoError(t, err)
	assert.IsType(t, &paradex.Client{}, p)
	assert.Equal(t, "paradex", p.Name())

	l, err := New("taker", config.VenueConfig{Venue: "Lighter", Name: "lt", APIKey: "k", APISecret: "s"}, Options{})
	require.NoError(t, err)
	assert.IsType(t, &lighter.Client{}, l)
	assert.Equal(t, "lt", l.Name())
}

func TestNew_MissingCredentialsIsConfigurationError(t *testing.T) {
	_, err := New("taker", config.VenueConfig{Venue: "lighter"}, Options{})

	var ce *domain.ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Len(t, ce.Problems, 2)
	assert.Contains(t, ce.Problems[0], "taker: lighter requires api_key")
}

func TestNew_UnknownVenue(t *testing.T) {
	_, err := New("maker", config.VenueConfig{Venue: "ftx"}, Options{})
	var ce *domain.ConfigurationError
	assert.True(t, errors.As(err, &ce))
}

func TestNew_SimulatedLatencyFromConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Taker.Sim.Latency.Duration = time.Second
	ex, err := New("taker", cfg.Taker, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = ex.PlaceMarketOrder(ctx, "BTC/USDT", domain.OrderSideBuy, decimal.RequireFromString("0.001"))

	var ae *domain.AdapterError
	require.True(t, errors.As(err, &ae))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
