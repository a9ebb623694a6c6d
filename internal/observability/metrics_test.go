package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestMetricsMiddlewareRecordsRequests(t *testing.T) {
	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/accounts/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", m.Handler())

	req := httptest.NewRequest(http.MethodGet, "/accounts/7", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	m.CountPosting("MANUAL")
	m.CountBalancesFixed(3)
	m.CountBalancesFixed(0) // no-op

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.Contains(t, body, `openbooks_http_requests_total{code="200",route="/accounts/{id}"} 1`)
	require.Contains(t, body, `openbooks_journal_postings_total{type="MANUAL"} 1`)
	require.Contains(t, body, "openbooks_ledger_balances_rewritten_total 3")
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.CountPosting("MANUAL")
	m.CountBalancesFixed(1)
	require.NotNil(t, m.Registerer())

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), http.StatusText(http.StatusServiceUnavailable)))
}
