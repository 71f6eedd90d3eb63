package notify

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

const sendTimeout = 15 * time.Second

// Sink adapts a Notifier to domain.NotificationSink. Every call returns
// immediately; delivery happens on a goroutine and failures are only logged.
type Sink struct {
	notifier *Notifier
	logger   *slog.Logger
	wg       sync.WaitGroup
}

var _ domain.NotificationSink = (*Sink)(nil)

// NewSink creates a Sink over n.
func NewSink(n *Notifier, logger *slog.Logger) *Sink {
	return &Sink{notifier: n, logger: logger.With(slog.String("component", "notify_sink"))}
}

// NotifyTradeComplete reports a trade result with post-trade balances.
func (s *Sink) NotifyTradeComplete(ctx context.Context, r domain.TradeResult, balances map[string]domain.Balances) {
	event, title := EventTrade, "Trade executed"
	if !r.Success {
		event, title = EventPartial, "Trade failed"
		if r.Partial() {
			title = "Partial execution: " + r.DanglingLeg() + " leg unhedged"
		}
	}
	s.send(ctx, event, title, FormatTrade(r)+"\n"+FormatBalances(balances))
}

// NotifyError reports an engine error.
func (s *Sink) NotifyError(ctx context.Context, message string) {
	s.send(ctx, EventError, "Engine error", message)
}

// NotifyStartupBalances reports balances when the engine starts.
func (s *Sink) NotifyStartupBalances(ctx context.Context, balances map[string]domain.Balances) {
	s.send(ctx, EventStartup, "Engine started", FormatBalances(balances))
}

// NotifySupervisor reports a supervisor event such as a crash or restart.
func (s *Sink) NotifySupervisor(ctx context.Context, title, message string) {
	s.send(ctx, EventSupervisor, title, message)
}

func (s *Sink) send(ctx context.Context, event, title, message string) {
	if !s.notifier.Enabled() || !s.notifier.Allows(event) {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sctx, cancel := context.WithTimeout(ctx, sendTimeout)
		defer cancel()
		if err := s.notifier.Notify(sctx, event, title, message); err != nil {
			s.logger.WarnContext(sctx, "notification dropped",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Wait blocks until in-flight notifications finish.
func (s *Sink) Wait() { s.wg.Wait() }

// FormatTrade renders a trade result for chat.
func FormatTrade(r domain.TradeResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s size %s spread %s\n", r.Direction, r.Symbol, r.Size, r.Spread)
	fmt.Fprintf(&b, "theoretical profit %s (%d ms)", r.Profit, r.ExecutionTimeMs)
	if r.LegMakerOrder != nil {
		fmt.Fprintf(&b, "\nmaker %s %s @ %s", r.LegMakerOrder.Side, r.LegMakerOrder.ID, r.LegMakerOrder.Price)
	}
	if r.LegTakerOrder != nil {
		fmt.Fprintf(&b, "\ntaker %s %s @ %s", r.LegTakerOrder.Side, r.LegTakerOrder.ID, r.LegTakerOrder.Price)
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "\nerror: %s", r.Error)
	}
	return b.String()
}

// FormatBalances renders per-venue balances in a stable order.
func FormatBalances(balances map[string]domain.Balances) string {
	var b strings.Builder
	for _, venue := range slices.Sorted(maps.Keys(balances)) {
		bal := balances[venue]
		parts := make([]string, 0, len(bal))
		for _, asset := range slices.Sorted(maps.Keys(bal)) {
			parts = append(parts, asset+"="+bal[asset].String())
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", venue, strings.Join(parts, " "))
	}
	return b.String()
}
