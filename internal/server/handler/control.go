package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/spreadarb/internal/config"
	"github.com/alanyoungcy/spreadarb/internal/control"
	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// Controller is the operator command surface served over HTTP.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	CancelAll(ctx context.Context) error
	EmergencyStop(ctx context.Context) error
	Status(ctx context.Context) control.StatusReport
	Balance(ctx context.Context) (map[string]domain.Balances, error)
	Performance(ctx context.Context) (control.Performance, error)
	Config() config.Config
}

// ControlHandler exposes engine lifecycle and inspection commands.
type ControlHandler struct {
	ctl    Controller
	logger *slog.Logger
}

// NewControlHandler creates a ControlHandler.
func NewControlHandler(ctl Controller, logger *slog.Logger) *ControlHandler {
	return &ControlHandler{ctl: ctl, logger: logHandler(logger, "control")}
}

// Command runs a lifecycle command named by the path.
// POST /api/engine/{command}
func (h *ControlHandler) Command(w http.ResponseWriter, r *http.Request) {
	cmd := r.PathValue("command")

	var run func(context.Context) error
	switch cmd {
	case "start":
		run = h.ctl.Start
	case "stop":
		run = h.ctl.Stop
	case "restart":
		run = h.ctl.Restart
	case "cancel-all":
		run = h.ctl.CancelAll
	case "emergency-stop":
		run = h.ctl.EmergencyStop
	default:
		writeError(w, http.StatusNotFound, "unknown command "+cmd)
		return
	}

	if err := run(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "command failed",
			slog.String("command", cmd),
			slog.String("error", err.Error()),
		)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"command": cmd,
		"ok":      true,
		"status":  h.ctl.Status(r.Context()),
	})
}

// Status reports process and engine state.
// GET /api/status
func (h *ControlHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Status(r.Context()))
}

// Balance reports per-venue balances. Venues that failed are listed under
// "error" while the others are still returned.
// GET /api/balance
func (h *ControlHandler) Balance(w http.ResponseWriter, r *http.Request) {
	bal, err := h.ctl.Balance(r.Context())
	if err != nil && len(bal) == 0 {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	resp := map[string]any{"balances": bal}
	if err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Performance reports the engine's trade counters.
// GET /api/performance
func (h *ControlHandler) Performance(w http.ResponseWriter, r *http.Request) {
	p, err := h.ctl.Performance(r.Context())
	if errors.Is(err, control.ErrNoEngineStatus) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Config returns the active configuration with secrets masked.
// GET /api/config
func (h *ControlHandler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Config())
}
