// Package control is the single command path for operators. HTTP handlers,
// the CLI (through HTTP) and Telegram commands all call the Controller.
package control

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/alanyoungcy/spreadarb/internal/config"
	"github.com/alanyoungcy/spreadarb/internal/domain"
	"github.com/alanyoungcy/spreadarb/internal/notify"
)

// Process is the supervised engine process.
type Process interface {
	Start() (bool, error)
	Stop(timeout time.Duration) bool
	Restart(ctx context.Context, delay time.Duration) (bool, error)
	Stats() domain.ProcessStats
}

// Options configures a Controller. Status and Audit may be nil.
type Options struct {
	Process      Process
	Venues       []domain.Exchange
	Status       domain.StatusCache
	Audit        domain.AuditStore
	Config       *config.Config
	Symbol       string
	StopTimeout  time.Duration
	RestartDelay time.Duration
}

// Controller implements the operator commands.
type Controller struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Controller.
func New(opts Options, logger *slog.Logger) *Controller {
	return &Controller{opts: opts, logger: logger.With(slog.String("component", "controller"))}
}

// StatusReport combines the supervisor view with the engine's last
// published status. Engine is nil when no status is available.
type StatusReport struct {
	Process domain.ProcessStats  `json:"process"`
	Engine  *domain.EngineStatus `json:"engine,omitempty"`
}

// Performance is the engine's counters as last published.
type Performance struct {
	Stats       domain.TradeStats         `json:"stats"`
	Performance domain.PerformanceMetrics `json:"performance"`
	Position    domain.Position           `json:"position"`
}

// ErrNoEngineStatus is returned when the engine has not published a status.
var ErrNoEngineStatus = errors.New("control: engine status unavailable")

// Start starts the engine process.
func (c *Controller) Start(ctx context.Context) error {
	ok, err := c.opts.Process.Start()
	c.audit(ctx, "control.start", map[string]any{"ok": ok})
	if err != nil {
		return fmt.Errorf("control: start: %w", err)
	}
	return nil
}

// Stop stops the engine process. The engine cancels its own open orders on
// SIGTERM.
func (c *Controller) Stop(ctx context.Context) error {
	ok := c.opts.Process.Stop(c.opts.StopTimeout)
	c.audit(ctx, "control.stop", map[string]any{"ok": ok})
	if !ok {
		return errors.New("control: stop: process could not be killed")
	}
	return nil
}

// Restart restarts the engine process.
func (c *Controller) Restart(ctx context.Context) error {
	ok, err := c.opts.Process.Restart(ctx, c.opts.RestartDelay)
	c.audit(ctx, "control.restart", map[string]any{"ok": ok})
	if err != nil {
		return fmt.Errorf("control: restart: %w", err)
	}
	return nil
}

// Status reports the process state and, when available, the engine status.
// CRASHED and FAILED are reported as is.
func (c *Controller) Status(ctx context.Context) StatusReport {
	rep := StatusReport{Process: c.opts.Process.Stats()}
	if st, err := c.engineStatus(ctx); err == nil {
		rep.Engine = &st
	}
	return rep
}

func (c *Controller) engineStatus(ctx context.Context) (domain.EngineStatus, error) {
	if c.opts.Status == nil {
		return domain.EngineStatus{}, ErrNoEngineStatus
	}
	st, err := c.opts.Status.GetStatus(ctx, c.opts.Symbol)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.EngineStatus{}, ErrNoEngineStatus
	}
	if err != nil {
		return domain.EngineStatus{}, fmt.Errorf("control: read engine status: %w", err)
	}
	return st, nil
}

// CancelAll cancels open orders on every venue. All venues are attempted.
func (c *Controller) CancelAll(ctx context.Context) error {
	var errs []error
	for _, v := range c.opts.Venues {
		if _, err := v.CancelAllOrders(ctx); err != nil {
			errs = append(errs, domain.NewAdapterError(v.Name(), "cancel_all", err))
		}
	}
	err := errors.Join(errs...)
	detail := map[string]any{"venues": len(c.opts.Venues)}
	if err != nil {
		detail["error"] = err.Error()
	}
	c.audit(ctx, "control.cancel_all", detail)
	if err != nil {
		return fmt.Errorf("control: cancel all: %w", err)
	}
	return nil
}

// EmergencyStop cancels all orders, then stops the engine. The stop runs
// even if cancelling failed.
func (c *Controller) EmergencyStop(ctx context.Context) error {
	c.logger.WarnContext(ctx, "emergency stop requested")
	return errors.Join(c.CancelAll(ctx), c.Stop(ctx))
}

// Balance queries each venue.
func (c *Controller) Balance(ctx context.Context) (map[string]domain.Balances, error) {
	out := make(map[string]domain.Balances, len(c.opts.Venues))
	var errs []error
	for _, v := range c.opts.Venues {
		bal, err := v.GetBalance(ctx)
		if err != nil {
			errs = append(errs, domain.NewAdapterError(v.Name(), "get_balance", err))
			continue
		}
		out[v.Name()] = bal
	}
	if err := errors.Join(errs...); err != nil {
		return out, fmt.Errorf("control: balance: %w", err)
	}
	return out, nil
}

// Performance returns the engine's last published counters.
func (c *Controller) Performance(ctx context.Context) (Performance, error) {
	st, err := c.engineStatus(ctx)
	if err != nil {
		return Performance{}, err
	}
	return Performance{Stats: st.Stats, Performance: st.Performance, Position: st.Position}, nil
}

// Config returns the active configuration with secrets masked.
func (c *Controller) Config() config.Config {
	return config.RedactedConfig(c.opts.Config)
}

func (c *Controller) audit(ctx context.Context, event string, detail map[string]any) {
	c.logger.InfoContext(ctx, "command", slog.String("event", event), slog.Any("detail", detail))
	if c.opts.Audit == nil {
		return
	}
	if err := c.opts.Audit.Log(ctx, event, detail); err != nil {
		c.logger.WarnContext(ctx, "audit failed", slog.String("error", err.Error()))
	}
}

var _ notify.Commander = (*Controller)(nil)

// Commands lists the chat commands in help order.
var Commands = []struct{ Name, Help string }{
	{"start", "start the engine"},
	{"stop", "stop the engine"},
	{"restart", "restart the engine"},
	{"status", "process and engine status"},
	{"cancel_all", "cancel open orders on both venues"},
	{"balance", "venue balances"},
	{"performance", "trade counters and theoretical PnL"},
	{"config", "active configuration (secrets masked)"},
	{"emergency_stop", "cancel all orders, then stop"},
	{"help", "this list"},
}

// Execute runs a named command and renders a text reply. Dashes and
// underscores are interchangeable ("cancel-all" == "cancel_all").
func (c *Controller) Execute(ctx context.Context, command string) (string, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(command)), "-", "_") {
	case "start", "run":
		if err := c.Start(ctx); err != nil {
			return "", err
		}
		return "engine started", nil
	case "stop":
		if err := c.Stop(ctx); err != nil {
			return "", err
		}
		return "engine stopped", nil
	case "restart":
		if err := c.Restart(ctx); err != nil {
			return "", err
		}
		return "engine restarted", nil
	case "status":
		return FormatStatus(c.Status(ctx)), nil
	case "cancel_all":
		if err := c.CancelAll(ctx); err != nil {
			return "", err
		}
		return "all orders cancelled", nil
	case "emergency_stop":
		if err := c.EmergencyStop(ctx); err != nil {
			return "", err
		}
		return "orders cancelled and engine stopped", nil
	case "balance":
		bal, err := c.Balance(ctx)
		if err != nil && len(bal) == 0 {
			return "", err
		}
		return notify.FormatBalances(bal), nil
	case "performance":
		p, err := c.Performance(ctx)
		if err != nil {
			return "", err
		}
		return FormatPerformance(p), nil
	case "config":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c.Config()); err != nil {
			return "", fmt.Errorf("control: encode config: %w", err)
		}
		return buf.String(), nil
	case "help":
		var b strings.Builder
		for _, cmd := range Commands {
			fmt.Fprintf(&b, "/%s - %s\n", cmd.Name, cmd.Help)
		}
		return b.String(), nil
	default:
		return "", fmt.Errorf("control: unknown command %q, try /help", command)
	}
}

// FormatStatus renders a status report for chat.
func FormatStatus(r StatusReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "process: %s", r.Process.Status)
	if r.Process.PID > 0 {
		fmt.Fprintf(&b, " (pid %d, up %.0fs)", r.Process.PID, r.Process.UptimeSeconds)
	}
	fmt.Fprintf(&b, "\nrestarts: %d crashes: %d", r.Process.RestartCount, r.Process.CrashCount)
	if r.Process.LastError != "" {
		fmt.Fprintf(&b, "\nlast error: %s", r.Process.LastError)
	}
	if e := r.Engine; e != nil {
		fmt.Fprintf(&b, "\n%s %s/%s position %s @ %s",
			e.Symbol, e.MakerVenue, e.TakerVenue, e.Position.NetAmount, e.Position.AvgPrice)
		fmt.Fprintf(&b, "\ntrades %d ok %d failed %d",
			e.Stats.TotalTrades, e.Stats.SuccessfulTrades, e.Stats.FailedTrades)
	}
	return b.String()
}

// FormatPerformance renders counters for chat.
func FormatPerformance(p Performance) string {
	return fmt.Sprintf(
		"spreads detected %d executed %d\ntrades %d ok %d failed %d (%.1f%%)\ntheoretical pnl %s fees %s net %s\nvolume %s",
		p.Stats.SpreadsDetected, p.Stats.SpreadsExecuted,
		p.Stats.TotalTrades, p.Stats.SuccessfulTrades, p.Stats.FailedTrades, p.Stats.SuccessRate,
		p.Stats.TotalPnL, p.Performance.TotalFees, p.Performance.NetProfit,
		p.Performance.TotalVolume,
	)
}
