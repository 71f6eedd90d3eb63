// Package exchange builds venue adapters from configuration.
package exchange

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadarb/internal/config"
	"github.com/alanyoungcy/spreadarb/internal/crypto"
	"github.com/alanyoungcy/spreadarb/internal/domain"
	"github.com/alanyoungcy/spreadarb/internal/exchange/simulated"
	"github.com/alanyoungcy/spreadarb/internal/platform/lighter"
	"github.com/alanyoungcy/spreadarb/internal/platform/paradex"
)

// Venue kinds accepted in config.
const (
	VenueSimulated = "simulated"
	VenueParadex   = "paradex"
	VenueLighter   = "lighter"
)

// Options carries shared dependencies for live adapters.
type Options struct {
	Limiter    domain.RateLimiter
	HTTPClient *http.Client
}

// New builds the adapter for one side of the pair. role ("maker" or
// "taker") prefixes configuration problems. Missing credentials for a live
// venue are a *domain.ConfigurationError; there is no silent fallback to
// the simulated venue.
func New(role string, cfg config.VenueConfig, opts Options) (domain.Exchange, error) {
	kind := strings.ToLower(cfg.Venue)
	name := cfg.Name
	if name == "" {
		name = kind
	}

	switch kind {
	case VenueSimulated:
		return simulated.New(simulatedConfig(name, cfg.Sim)), nil

	case VenueParadex, VenueLighter:
		secret, err := crypto.LoadSecret(crypto.SecretSource{
			Raw:           cfg.APISecret,
			EncryptedPath: cfg.EncryptedSecretPath,
			Password:      cfg.SecretPassword,
		})
		if err != nil {
			return nil, &domain.ConfigurationError{Problems: []string{fmt.Sprintf("%s: %v", role, err)}}
		}

		var problems []string
		if cfg.APIKey == "" {
			problems = append(problems, fmt.Sprintf("%s: %s requires api_key", role, kind))
		}
		if secret == "" {
			problems = append(problems, fmt.Sprintf("%s: %s requires api_secret or encrypted_secret_path", role, kind))
		}
		if len(problems) > 0 {
			return nil, &domain.ConfigurationError{Problems: problems}
		}

		if kind == VenueParadex {
			return paradex.NewClient(paradex.Config{
				Name:       name,
				BaseURL:    cfg.BaseURL,
				APIKey:     cfg.APIKey,
				APISecret:  secret,
				MapSymbol:  Mapper(kind, cfg.SymbolMap),
				Limiter:    opts.Limiter,
				RateLimit:  cfg.RateLimit,
				HTTPClient: opts.HTTPClient,
			}), nil
		}
		return lighter.NewClient(lighter.Config{
			Name:       name,
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			APISecret:  secret,
			MapSymbol:  Mapper(kind, cfg.SymbolMap),
			Limiter:    opts.Limiter,
			RateLimit:  cfg.RateLimit,
			HTTPClient: opts.HTTPClient,
		}), nil
	}

	return nil, &domain.ConfigurationError{Problems: []string{fmt.Sprintf("%s: unknown venue %q", role, cfg.Venue)}}
}

func simulatedConfig(name string, sc config.SimulatedConfig) simulated.Config {
	balances := make(domain.Balances, len(sc.Balances))
	for k, v := range sc.Balances {
		balances[k] = decimal.NewFromFloat(v)
	}
	return simulated.Config{
		Name:       name,
		StartPrice: sc.StartPrice,
		HalfSpread: sc.HalfSpread,
		Volatility: sc.Volatility,
		Depth:      sc.Depth,
		Seed:       sc.Seed,
		FailRate:   sc.FailRate,
		Balances:   balances,
		Latency:    sc.Latency.Duration,
	}
}
