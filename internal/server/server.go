// Package server is the supervisor's HTTP + WebSocket control API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/alanyoungcy/spreadarb/internal/domain"
	"github.com/alanyoungcy/spreadarb/internal/metrics"
	"github.com/alanyoungcy/spreadarb/internal/server/handler"
	"github.com/alanyoungcy/spreadarb/internal/server/middleware"
	"github.com/alanyoungcy/spreadarb/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	// RateLimit is requests per minute per client IP; 0 disables.
	RateLimit int
	// Limiter backs RateLimit. A process-local limiter is used when nil.
	Limiter domain.RateLimiter
}

// Handlers aggregates the HTTP handlers the server registers. Trades and
// Control may be nil, in which case their routes are not registered.
type Handlers struct {
	Health  *handler.HealthHandler
	Control *handler.ControlHandler
	Trades  *handler.TradeHandler
}

// Server is the headless HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux.
// Requests pass through CORS, logging, metrics, rate limiting and auth in
// that order.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	mux := http.NewServeMux()
	Routes(mux, handlers, wsHub)

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health", "/metrics")(h)
	if cfg.RateLimit > 0 {
		limiter := cfg.Limiter
		if limiter == nil {
			limiter = middleware.NewMemoryLimiter()
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, time.Minute, logger)(h)
	}
	h = metrics.Middleware(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			// Stop and restart wait for the engine to wind down.
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Routes registers the API on mux.
func Routes(mux *http.ServeMux, handlers Handlers, wsHub *ws.Hub) {
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.Handle("GET /metrics", metrics.Handler())

	if c := handlers.Control; c != nil {
		mux.HandleFunc("GET /api/status", c.Status)
		mux.HandleFunc("GET /api/balance", c.Balance)
		mux.HandleFunc("GET /api/performance", c.Performance)
		mux.HandleFunc("GET /api/config", c.Config)
		mux.HandleFunc("POST /api/engine/{command}", c.Command)
	}

	if t := handlers.Trades; t != nil {
		mux.HandleFunc("GET /api/trades", t.ListTrades)
		mux.HandleFunc("GET /api/trades/profit", t.Profit)
		mux.HandleFunc("GET /api/trades/{id}", t.GetTrade)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.logger.Info("listening", slog.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
