package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// Alerter receives supervisor alerts.
type Alerter interface {
	NotifySupervisor(ctx context.Context, title, message string)
}

// WatchdogConfig bounds automatic restarts.
type WatchdogConfig struct {
	// MaxRestarts is the number of restarts allowed inside Window.
	MaxRestarts int
	Window      time.Duration
	// Backoff is the first delay; it doubles for each restart already in
	// the window.
	Backoff time.Duration
}

// Watchdog restarts a crashed engine within a budget. Once the budget is
// spent the supervisor is left CRASHED for the operator.
type Watchdog struct {
	sup     *Supervisor
	cfg     WatchdogConfig
	alerter Alerter
	audit   domain.AuditStore
	logger  *slog.Logger
	now     func() time.Time

	restarts []time.Time
}

// NewWatchdog creates a Watchdog. alerter and audit may be nil.
func NewWatchdog(sup *Supervisor, cfg WatchdogConfig, alerter Alerter, audit domain.AuditStore, logger *slog.Logger) *Watchdog {
	return &Watchdog{
		sup:     sup,
		cfg:     cfg,
		alerter: alerter,
		audit:   audit,
		logger:  logger.With(slog.String("component", "watchdog")),
		now:     time.Now,
	}
}

// Run handles crashes until ctx is cancelled.
func (w *Watchdog) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case crash := <-w.sup.Crashes():
			w.handle(ctx, crash)
		}
	}
}

// nextDelay prunes restarts outside the window and returns the backoff for
// the next restart, or false when the budget is spent.
func (w *Watchdog) nextDelay(now time.Time) (time.Duration, bool) {
	kept := w.restarts[:0]
	for _, t := range w.restarts {
		if now.Sub(t) < w.cfg.Window {
			kept = append(kept, t)
		}
	}
	w.restarts = kept

	if len(w.restarts) >= w.cfg.MaxRestarts {
		return 0, false
	}
	return w.cfg.Backoff << len(w.restarts), true
}

func (w *Watchdog) handle(ctx context.Context, crash domain.ProcessCrash) {
	delay, ok := w.nextDelay(w.now())
	if !ok {
		msg := fmt.Sprintf("%s; %d restarts within %s, leaving engine CRASHED", crash.Error(), w.cfg.MaxRestarts, w.cfg.Window)
		w.logger.ErrorContext(ctx, "restart budget exhausted", slog.Int("pid", crash.PID), slog.Int("exit_code", crash.ExitCode))
		w.alert(ctx, "Engine crashed", msg)
		w.record(ctx, "supervisor.restart_exhausted", crash, 0)
		return
	}

	w.logger.WarnContext(ctx, "engine crashed, restarting",
		slog.Int("pid", crash.PID),
		slog.Int("exit_code", crash.ExitCode),
		slog.Duration("backoff", delay),
		slog.Int("attempt", len(w.restarts)+1),
	)
	w.alert(ctx, "Engine crashed", fmt.Sprintf("%s; restarting in %s", crash.Error(), delay))
	w.restarts = append(w.restarts, w.now())

	// An operator may have acted during the backoff; only restart if the
	// process is still CRASHED.
	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}
	if st := w.sup.State(); st != domain.ProcessCrashed {
		w.logger.InfoContext(ctx, "restart skipped, state changed", slog.String("state", string(st)))
		return
	}

	if _, err := w.sup.Restart(ctx, 0); err != nil {
		w.logger.ErrorContext(ctx, "restart failed", slog.String("error", err.Error()))
		w.alert(ctx, "Engine restart failed", err.Error())
		w.record(ctx, "supervisor.restart_failed", crash, delay)
		return
	}
	w.record(ctx, "supervisor.restarted", crash, delay)
}

func (w *Watchdog) alert(ctx context.Context, title, msg string) {
	if w.alerter != nil {
		w.alerter.NotifySupervisor(ctx, title, msg)
	}
}

func (w *Watchdog) record(ctx context.Context, event string, crash domain.ProcessCrash, delay time.Duration) {
	if w.audit == nil {
		return
	}
	if err := w.audit.Log(ctx, event, map[string]any{
		"pid":       crash.PID,
		"exit_code": crash.ExitCode,
		"backoff":   delay.String(),
	}); err != nil {
		w.logger.WarnContext(ctx, "audit failed", slog.String("error", err.Error()))
	}
}
