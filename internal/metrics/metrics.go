// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

var (
	spreadValue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "spreadarb_spread",
			Help: "Last observed cross-venue spread by direction",
		},
		[]string{"direction"},
	)

	opportunitiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spreadarb_opportunities_total",
			Help: "Opportunities that passed thresholds and the position bound",
		},
		[]string{"direction"},
	)

	tradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spreadarb_trades_total",
			Help: "Execution attempts by outcome (success, partial, failed)",
		},
		[]string{"direction", "outcome"},
	)

	legDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spreadarb_leg_duration_seconds",
			Help:    "Order submission latency per leg",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"leg"},
	)

	netPosition = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "spreadarb_net_position",
			Help: "Combined signed position across both venues",
		},
		[]string{"symbol"},
	)

	theoreticalProfit = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spreadarb_theoretical_profit_total",
		Help: "Sum of spread x size over successful trades",
	})

	supervisorState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "spreadarb_supervisor_state",
			Help: "1 for the supervisor's current process state, 0 otherwise",
		},
		[]string{"state"},
	)

	supervisorEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spreadarb_supervisor_events_total",
			Help: "Supervisor crashes and restarts",
		},
		[]string{"event"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spreadarb_http_requests_total",
			Help: "Control API requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spreadarb_http_request_duration_seconds",
			Help:    "Control API latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

var processStates = []domain.ProcessState{
	domain.ProcessStopped, domain.ProcessStarting, domain.ProcessRunning,
	domain.ProcessStopping, domain.ProcessFailed, domain.ProcessCrashed,
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// ObserveSpreads records both directional spreads from one scan.
func ObserveSpreads(long, short float64) {
	spreadValue.WithLabelValues(string(domain.DirectionLong)).Set(long)
	spreadValue.WithLabelValues(string(domain.DirectionShort)).Set(short)
}

// OpportunityDetected counts an opportunity.
func OpportunityDetected(d domain.Direction) {
	opportunitiesTotal.WithLabelValues(string(d)).Inc()
}

// RecordTrade counts a trade by outcome and adds its profit on success.
func RecordTrade(r domain.TradeResult) {
	tradesTotal.WithLabelValues(string(r.Direction), Outcome(r)).Inc()
	if r.Success {
		theoreticalProfit.Add(r.Profit.InexactFloat64())
	}
}

// Outcome classifies a trade as success, partial or failed.
func Outcome(r domain.TradeResult) string {
	switch {
	case r.Success:
		return "success"
	case r.Partial():
		return "partial"
	default:
		return "failed"
	}
}

// ObserveLeg records one leg's submission latency.
func ObserveLeg(leg string, d time.Duration) {
	legDuration.WithLabelValues(leg).Observe(d.Seconds())
}

// SetNetPosition publishes the current net position.
func SetNetPosition(symbol string, net float64) {
	netPosition.WithLabelValues(symbol).Set(net)
}

// SetSupervisorState sets the one-hot state gauge.
func SetSupervisorState(s domain.ProcessState) {
	for _, st := range processStates {
		v := 0.0
		if st == s {
			v = 1
		}
		supervisorState.WithLabelValues(string(st)).Set(v)
	}
}

// SupervisorCrash counts an unexpected engine exit.
func SupervisorCrash() { supervisorEvents.WithLabelValues("crash").Inc() }

// SupervisorRestart counts a restart.
func SupervisorRestart() { supervisorEvents.WithLabelValues("restart").Inc() }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency. Paths are the route
// pattern when the mux matched one.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
