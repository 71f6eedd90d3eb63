package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/spreadarb/internal/arbitrage"
	"github.com/alanyoungcy/spreadarb/internal/config"
	"github.com/alanyoungcy/spreadarb/internal/domain"
	"github.com/alanyoungcy/spreadarb/internal/engine"
	"github.com/alanyoungcy/spreadarb/internal/exchange"
	"github.com/alanyoungcy/spreadarb/internal/executor"
	"github.com/alanyoungcy/spreadarb/internal/notify"
	"github.com/alanyoungcy/spreadarb/internal/position"
	"github.com/alanyoungcy/spreadarb/internal/server"
	"github.com/alanyoungcy/spreadarb/internal/server/handler"
	"github.com/alanyoungcy/spreadarb/internal/service"
	"github.com/alanyoungcy/spreadarb/internal/stats"
)

// EngineMode runs the scan loop in this process, plus the /metrics and
// /api/health listener when metrics are enabled. On cancellation the engine
// finishes any in-flight execution, cancels open orders and reports its final
// status before returning.
func (a *App) EngineMode(ctx context.Context, deps *Dependencies) error {
	maker, taker, err := buildVenues(a.cfg, deps)
	if err != nil {
		return err
	}

	e := a.cfg.Engine
	tracker := position.NewTracker()
	sink := notify.NewSink(deps.Notifier, a.logger)
	defer sink.Wait()

	eng := engine.New(engine.Config{
		Symbol:         e.Symbol,
		ScanInterval:   e.ScanInterval.Duration,
		StatusInterval: e.StatusInterval.Duration,
		LockTTL:        e.LockTTL.Duration,
	}, engine.Deps{
		Maker: maker,
		Taker: taker,
		Detector: arbitrage.NewDetector(arbitrage.DetectorConfig{
			Symbol:         e.Symbol,
			LongThreshold:  decimal.NewFromFloat(e.LongThreshold),
			ShortThreshold: decimal.NewFromFloat(e.ShortThreshold),
			Size:           decimal.NewFromFloat(e.OrderSize),
			MaxPosition:    decimal.NewFromFloat(e.MaxPosition),
		}),
		Cooldown: arbitrage.NewCooldownGate(e.Cooldown.Duration),
		Coordinator: executor.NewCoordinator(maker, taker, tracker, executor.Config{
			FillTimeout:   e.FillTimeout.Duration,
			MarketTimeout: e.MarketTimeout.Duration,
		}, a.logger),
		Tracker:  tracker,
		Stats:    stats.NewCollector(),
		Sink:     sink,
		Recorder: service.NewTradeService(deps.TradeStore, deps.SignalBus, deps.AuditStore, a.logger),
		Books:    deps.BookCache,
		Status:   deps.StatusCache,
		Bus:      deps.SignalBus,
		Locks:    deps.LockManager,
	}, a.logger)

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)

	g.Go(func() error {
		// The metrics listener has nothing to serve once the engine is gone.
		defer stop()
		return eng.Run(runCtx)
	})

	if a.cfg.Metrics.Enabled {
		srv := server.NewServer(server.Config{Port: a.cfg.Metrics.Port}, server.Handlers{
			Health: handler.NewHealthHandler(deps.Health, a.logger),
		}, nil, a.logger)
		g.Go(func() error { return srv.Run(runCtx) })
	}

	err = g.Wait()
	stop()
	return err
}

// buildVenues creates the maker and taker adapters. Venue calls share the
// redis rate limiter when one is wired.
func buildVenues(cfg *config.Config, deps *Dependencies) (maker, taker domain.Exchange, err error) {
	opts := exchange.Options{Limiter: deps.RateLimiter}
	if maker, err = exchange.New("maker", cfg.Maker, opts); err != nil {
		return nil, nil, fmt.Errorf("app: maker venue: %w", err)
	}
	if taker, err = exchange.New("taker", cfg.Taker, opts); err != nil {
		return nil, nil, fmt.Errorf("app: taker venue: %w", err)
	}
	return maker, taker, nil
}
