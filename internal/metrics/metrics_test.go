package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

func TestRecordTrade_CountsByOutcome(t *testing.T) {
	before := testutil.ToFloat64(tradesTotal.WithLabelValues("SHORT", "partial"))

	RecordTrade(domain.TradeResult{
		Direction:     domain.DirectionShort,
		Profit:        decimal.RequireFromString("0.1"),
		LegMakerOrder: &domain.OrderHandle{ID: "m"},
	})

	assert.Equal(t, before+1, testutil.ToFloat64(tradesTotal.WithLabelValues("SHORT", "partial")))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", Outcome(domain.TradeResult{Success: true}))
	assert.Equal(t, "partial", Outcome(domain.TradeResult{LegTakerOrder: &domain.OrderHandle{}}))
	assert.Equal(t, "failed", Outcome(domain.TradeResult{}))
}

func TestSetSupervisorState_OneHot(t *testing.T) {
	SetSupervisorState(domain.ProcessCrashed)
	assert.Equal(t, 1.0, testutil.ToFloat64(supervisorState.WithLabelValues("CRASHED")))
	assert.Equal(t, 0.0, testutil.ToFloat64(supervisorState.WithLabelValues("RUNNING")))

	SetSupervisorState(domain.ProcessRunning)
	assert.Equal(t, 0.0, testutil.ToFloat64(supervisorState.WithLabelValues("CRASHED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(supervisorState.WithLabelValues("RUNNING")))
}

func TestMiddleware_RecordsStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := Middleware(mux)

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "GET /api/missing", "404"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "GET /api/missing", "404")))
}
