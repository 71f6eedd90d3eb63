package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/spreadarb/internal/control"
	"github.com/alanyoungcy/spreadarb/internal/domain"
	"github.com/alanyoungcy/spreadarb/internal/notify"
	"github.com/alanyoungcy/spreadarb/internal/server"
	"github.com/alanyoungcy/spreadarb/internal/server/handler"
	"github.com/alanyoungcy/spreadarb/internal/server/ws"
	"github.com/alanyoungcy/spreadarb/internal/service"
	"github.com/alanyoungcy/spreadarb/internal/supervisor"
)

// SuperviseMode runs the engine as a child process ("<self> run") and serves
// the operator surfaces: the HTTP control API, the WebSocket event stream and
// Telegram commands. The watchdog restarts a crashed engine within its
// budget, and the archiver moves old trades to S3. On cancellation the child
// is stopped before returning.
func (a *App) SuperviseMode(ctx context.Context, deps *Dependencies) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("app: resolve executable: %w", err)
	}
	args := []string{"run"}
	if a.cfg.Path != "" {
		args = append(args, "--config", a.cfg.Path)
	}

	sink := notify.NewSink(deps.Notifier, a.logger)
	defer sink.Wait()

	sc := a.cfg.Supervisor
	sup := supervisor.New(supervisor.Config{
		Command:         exe,
		Args:            args,
		Env:             os.Environ(),
		MonitorInterval: sc.MonitorInterval.Duration,
		StopTimeout:     sc.StopTimeout.Duration,
		OnChange:        a.onProcessChange(deps.SignalBus),
	}, a.logger)

	// The supervisor talks to the venues directly for cancel-all and balance,
	// so those commands work while the engine is down.
	maker, taker, err := buildVenues(a.cfg, deps)
	if err != nil {
		return err
	}
	ctl := control.New(control.Options{
		Process:      sup,
		Venues:       []domain.Exchange{maker, taker},
		Status:       deps.StatusCache,
		Audit:        deps.AuditStore,
		Config:       a.cfg,
		Symbol:       a.cfg.Engine.Symbol,
		StopTimeout:  sc.StopTimeout.Duration,
		RestartDelay: supervisor.DefaultRestartDelay,
	}, a.logger)

	if err := ctl.Start(ctx); err != nil {
		// FAILED is visible through status; keep serving so the operator
		// can fix and retry.
		a.logger.ErrorContext(ctx, "engine start failed", slog.String("error", err.Error()))
		sink.NotifySupervisor(ctx, "Engine failed to start", err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	// Supervise until shutdown even when every surface below is disabled.
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if sc.AutoRestart {
		wd := supervisor.NewWatchdog(sup, supervisor.WatchdogConfig{
			MaxRestarts: sc.MaxRestarts,
			Window:      sc.RestartWindow.Duration,
			Backoff:     sc.RestartBackoff.Duration,
		}, sink, deps.AuditStore, a.logger)
		g.Go(func() error { return wd.Run(gctx) })
	}

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, ws.Config{
			Symbol: a.cfg.Engine.Symbol,
			Status: deps.StatusCache,
		}, a.logger)
		g.Go(func() error { return hub.Run(gctx) })
	}

	if sv := a.cfg.Server; sv.Enabled {
		handlers := server.Handlers{
			Health:  handler.NewHealthHandler(deps.Health, a.logger),
			Control: handler.NewControlHandler(ctl, a.logger),
		}
		if deps.TradeStore != nil || deps.SignalBus != nil {
			// Reads only; the engine process records. Without postgres the
			// history comes from the redis trade stream.
			handlers.Trades = handler.NewTradeHandler(service.NewTradeService(deps.TradeStore, deps.SignalBus, nil, a.logger), a.logger)
		}
		srv := server.NewServer(server.Config{
			Port:        sv.Port,
			CORSOrigins: sv.CORSOrigins,
			APIKey:      sv.APIKey,
			RateLimit:   sv.RateLimit,
			Limiter:     deps.RateLimiter,
		}, handlers, hub, a.logger)
		g.Go(func() error { return srv.Run(gctx) })
	}

	if a.cfg.Notify.Commands {
		bot := notify.NewTelegramSender(a.cfg.Notify.TelegramToken, a.cfg.Notify.TelegramChatID)
		listener := notify.NewCommandListener(bot, ctl, a.logger)
		g.Go(func() error { return listener.Run(gctx) })
	}

	if deps.Archiver != nil {
		retention := time.Duration(a.cfg.S3.RetentionDays) * 24 * time.Hour
		g.Go(func() error { return deps.Archiver.Run(gctx, a.cfg.S3.ArchiveInterval.Duration, retention) })
	}

	err = g.Wait()

	a.logger.Info("stopping engine process")
	if !sup.Stop(sc.StopTimeout.Duration) {
		a.logger.Error("engine process did not exit")
	}
	return err
}

// onProcessChange logs every supervisor transition and publishes it on the
// alert channel for dashboards.
func (a *App) onProcessChange(bus domain.SignalBus) func(from, to domain.ProcessState) {
	logger := a.logger.With(slog.String("component", "supervisor"))
	return func(from, to domain.ProcessState) {
		logger.Info("process state changed",
			slog.String("from", string(from)),
			slog.String("to", string(to)),
		)
		if bus == nil {
			return
		}
		payload, err := json.Marshal(map[string]any{
			"event":   "process_state",
			"from":    from,
			"to":      to,
			"sent_at": time.Now().UTC().UnixMilli(),
		})
		if err != nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := bus.Publish(ctx, domain.ChannelAlert, payload); err != nil {
			logger.Warn("publish state change failed", slog.String("error", err.Error()))
		}
	}
}
