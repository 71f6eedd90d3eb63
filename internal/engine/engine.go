// Package engine runs the scan loop: fetch both books, detect, gate,
// execute, record. It owns the stop sequence and the periodic status report.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/spreadarb/internal/arbitrage"
	"github.com/alanyoungcy/spreadarb/internal/domain"
	"github.com/alanyoungcy/spreadarb/internal/executor"
	"github.com/alanyoungcy/spreadarb/internal/metrics"
	"github.com/alanyoungcy/spreadarb/internal/position"
	"github.com/alanyoungcy/spreadarb/internal/stats"
)

const (
	DefaultScanInterval   = 2 * time.Second
	DefaultStatusInterval = 30 * time.Second
	DefaultLockTTL        = 30 * time.Second

	cancelAllTimeout = 10 * time.Second
	balanceTimeout   = 5 * time.Second
)

// Config holds the loop timings.
type Config struct {
	Symbol         string
	ScanInterval   time.Duration
	StatusInterval time.Duration
	// LockTTL is the single-instance lock lease; it is refreshed at a third
	// of its length.
	LockTTL time.Duration
}

// Recorder persists and publishes trade results.
type Recorder interface {
	Record(ctx context.Context, r domain.TradeResult) error
}

// Deps are the engine's collaborators. Recorder, Books, Status, Bus and Locks
// are optional.
type Deps struct {
	Maker       domain.Exchange
	Taker       domain.Exchange
	Detector    *arbitrage.Detector
	Cooldown    *arbitrage.CooldownGate
	Coordinator *executor.Coordinator
	Tracker     *position.Tracker
	Stats       *stats.Collector
	Sink        domain.NotificationSink

	Recorder Recorder
	Books    domain.OrderbookCache
	Status   domain.StatusCache
	Bus      domain.SignalBus
	Locks    domain.LockManager
}

// Engine is the single-symbol spread arbitrage loop.
type Engine struct {
	cfg     Config
	deps    Deps
	logger  *slog.Logger
	now     func() time.Time
	running atomic.Bool
}

// New creates an Engine. Zero timings take their defaults.
func New(cfg Config, deps Deps, logger *slog.Logger) *Engine {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = DefaultScanInterval
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = DefaultStatusInterval
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	return &Engine{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With(slog.String("component", "engine"), slog.String("symbol", cfg.Symbol)),
		now:    time.Now,
	}
}

// Running reports whether Run is scanning.
func (e *Engine) Running() bool { return e.running.Load() }

// Run scans until ctx is cancelled, then stops: the scan loop exits once any
// in-flight execution finishes, open orders are cancelled on both venues and
// the final status is published. A held engine lock returns
// domain.ErrLockHeld without scanning.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return fmt.Errorf("engine: run: %w", domain.ErrAlreadyRunning)
	}
	defer e.running.Store(false)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if e.deps.Locks != nil {
		lock, err := e.deps.Locks.Acquire(ctx, "engine:"+e.cfg.Symbol, e.cfg.LockTTL)
		if err != nil {
			return fmt.Errorf("engine: acquire lock: %w", err)
		}
		defer lock.Release()
		go e.keepLock(runCtx, cancel, lock)
	}

	e.logger.InfoContext(ctx, "engine starting",
		slog.String("maker", e.deps.Maker.Name()),
		slog.String("taker", e.deps.Taker.Name()),
		slog.Duration("scan_interval", e.cfg.ScanInterval),
	)
	e.deps.Sink.NotifyStartupBalances(ctx, e.balances(ctx))

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		e.scanLoop(gctx)
		return nil
	})
	g.Go(func() error {
		e.statusLoop(gctx)
		return nil
	})
	_ = g.Wait()

	return e.shutdown(context.WithoutCancel(ctx))
}

func (e *Engine) scanLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		e.ScanOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ScanOnce runs one detection cycle and reports whether an execution was
// attempted. Venue and data errors skip the cycle. An execution started here
// runs to completion even if ctx is cancelled meanwhile; its legs are bounded
// by their own timeouts.
func (e *Engine) ScanOnce(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	sym := e.cfg.Symbol

	makerBook, err := e.deps.Maker.GetOrderBook(ctx, sym)
	if err != nil {
		e.logger.ErrorContext(ctx, "maker book fetch failed", slog.String("error", err.Error()))
		return false
	}
	takerBook, err := e.deps.Taker.GetOrderBook(ctx, sym)
	if err != nil {
		e.logger.ErrorContext(ctx, "taker book fetch failed", slog.String("error", err.Error()))
		return false
	}
	e.cacheBooks(ctx, makerBook, takerBook)

	ev, err := e.deps.Detector.Evaluate(makerBook, takerBook, e.deps.Tracker.GetNetPosition(sym), e.now())
	if err != nil {
		var ide *domain.InsufficientDataError
		if errors.As(err, &ide) {
			e.logger.DebugContext(ctx, "book unusable, skipping", slog.String("reason", err.Error()))
		} else {
			e.logger.ErrorContext(ctx, "detection failed", slog.String("error", err.Error()))
		}
		return false
	}
	metrics.ObserveSpreads(ev.SpreadLong.InexactFloat64(), ev.SpreadShort.InexactFloat64())

	opp := ev.Opportunity
	if opp == nil {
		if ev.BoundRejected {
			e.logger.DebugContext(ctx, "spread rejected by position bound",
				slog.String("spread_long", ev.SpreadLong.String()),
				slog.String("spread_short", ev.SpreadShort.String()),
			)
		}
		return false
	}

	metrics.OpportunityDetected(opp.Direction)

	if !e.deps.Cooldown.TryAcquire(e.now()) {
		e.logger.DebugContext(ctx, "cooldown active",
			slog.Duration("remaining", e.deps.Cooldown.Remaining(e.now())),
		)
		return false
	}
	e.deps.Stats.SpreadDetected()

	e.execute(context.WithoutCancel(ctx), *opp)
	return true
}

func (e *Engine) execute(ctx context.Context, opp domain.Opportunity) {
	e.logger.InfoContext(ctx, "opportunity",
		slog.String("direction", string(opp.Direction)),
		slog.String("spread", opp.Spread.String()),
		slog.String("maker_price", opp.LegMakerPrice.String()),
		slog.String("taker_price", opp.LegTakerPrice.String()),
		slog.String("size", opp.Size.String()),
	)

	result, err := e.deps.Coordinator.Execute(ctx, opp)
	e.deps.Stats.Record(result)
	metrics.SetNetPosition(opp.Symbol, e.deps.Tracker.GetNetPosition(opp.Symbol).InexactFloat64())

	if e.deps.Recorder != nil {
		if rerr := e.deps.Recorder.Record(ctx, result); rerr != nil {
			e.logger.ErrorContext(ctx, "record trade failed", slog.String("error", rerr.Error()))
		}
	}

	e.deps.Sink.NotifyTradeComplete(ctx, result, e.balances(ctx))
	if err != nil && !result.Partial() {
		e.deps.Sink.NotifyError(ctx, "execution failed: "+err.Error())
	}
}

func (e *Engine) cacheBooks(ctx context.Context, books ...domain.OrderBookSnapshot) {
	if e.deps.Books == nil {
		return
	}
	for _, b := range books {
		if err := e.deps.Books.SetSnapshot(ctx, b); err != nil {
			e.logger.DebugContext(ctx, "cache book failed", slog.String("venue", b.Venue), slog.String("error", err.Error()))
		}
	}
}

// balances queries both venues. A failing venue is logged and omitted.
func (e *Engine) balances(ctx context.Context) map[string]domain.Balances {
	ctx, cancel := context.WithTimeout(ctx, balanceTimeout)
	defer cancel()

	out := make(map[string]domain.Balances, 2)
	for _, ex := range []domain.Exchange{e.deps.Maker, e.deps.Taker} {
		bal, err := ex.GetBalance(ctx)
		if err != nil {
			e.logger.WarnContext(ctx, "balance query failed", slog.String("venue", ex.Name()), slog.String("error", err.Error()))
			continue
		}
		out[ex.Name()] = bal
	}
	return out
}

// Status builds the current status snapshot.
func (e *Engine) Status() domain.EngineStatus {
	return domain.EngineStatus{
		Symbol:      e.cfg.Symbol,
		Running:     e.Running(),
		Position:    e.deps.Tracker.Position(e.cfg.Symbol),
		Stats:       e.deps.Stats.Snapshot(),
		Performance: e.deps.Tracker.PerformanceMetrics(),
		MakerVenue:  e.deps.Maker.Name(),
		TakerVenue:  e.deps.Taker.Name(),
		UpdatedAt:   e.now().Unix(),
	}
}

func (e *Engine) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.reportStatus(ctx, e.Status())
		}
	}
}

// reportStatus logs the status line and publishes it to the status cache
// and the ch:status channel.
func (e *Engine) reportStatus(ctx context.Context, st domain.EngineStatus) {
	e.logger.InfoContext(ctx, "engine status",
		slog.Bool("running", st.Running),
		slog.String("net_position", st.Position.NetAmount.String()),
		slog.String("avg_price", st.Position.AvgPrice.String()),
		slog.Int64("total_trades", st.Stats.TotalTrades),
		slog.Int64("successful_trades", st.Stats.SuccessfulTrades),
		slog.Int64("failed_trades", st.Stats.FailedTrades),
		slog.Int64("spreads_detected", st.Stats.SpreadsDetected),
		slog.Float64("success_rate", st.Stats.SuccessRate),
		slog.String("total_pnl", st.Stats.TotalPnL.String()),
		slog.String("net_profit", st.Performance.NetProfit.String()),
	)

	if e.deps.Status != nil {
		if err := e.deps.Status.SetStatus(ctx, st); err != nil {
			e.logger.WarnContext(ctx, "status cache write failed", slog.String("error", err.Error()))
		}
	}
	if e.deps.Bus != nil {
		if payload, err := json.Marshal(st); err == nil {
			if err := e.deps.Bus.Publish(ctx, domain.ChannelStatus, payload); err != nil {
				e.logger.WarnContext(ctx, "status publish failed", slog.String("error", err.Error()))
			}
		}
	}
}

// shutdown cancels every open order on both venues and reports the terminal
// state.
func (e *Engine) shutdown(ctx context.Context) error {
	e.logger.InfoContext(ctx, "engine stopping, cancelling open orders")

	cctx, cancel := context.WithTimeout(ctx, cancelAllTimeout)
	defer cancel()
	cancelErr := e.deps.Coordinator.CancelAll(cctx)
	if cancelErr != nil {
		e.deps.Sink.NotifyError(ctx, "cancel-all on shutdown failed: "+cancelErr.Error())
	}

	e.running.Store(false)
	final := e.Status()
	e.reportStatus(ctx, final)
	e.logger.InfoContext(ctx, "engine stopped",
		slog.Int64("total_trades", final.Stats.TotalTrades),
		slog.String("net_position", final.Position.NetAmount.String()),
	)

	if cancelErr != nil {
		return fmt.Errorf("engine: shutdown: %w", cancelErr)
	}
	return nil
}

// keepLock refreshes the engine lock and stops the engine if it is lost.
func (e *Engine) keepLock(ctx context.Context, stop context.CancelFunc, lock domain.Lock) {
	ticker := time.NewTicker(e.cfg.LockTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lock.Refresh(ctx, e.cfg.LockTTL); err != nil {
				if ctx.Err() != nil {
					return
				}
				e.logger.ErrorContext(ctx, "engine lock lost, stopping", slog.String("error", err.Error()))
				e.deps.Sink.NotifyError(ctx, "engine lock lost: "+err.Error())
				stop()
				return
			}
		}
	}
}
