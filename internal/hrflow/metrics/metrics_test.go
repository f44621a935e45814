package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	e "github.com/gartstein/hrflow/internal/hrflow/errors"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeSuccess},
		{fmt.Errorf("wrapped: %w", e.ErrTaskTimeout), "task_timeout"},
		{&e.RemoteError{Kind: e.ErrAuthentication}, "authentication"},
		{e.FromStatus("pdf_services", "merge", 503, nil, ""), "transient"},
		{fmt.Errorf("boom"), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Outcome(tt.err))
	}
}

func TestRecorder_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.ObserveCall("docgen", "generate", time.Now(), nil)
	r.ObserveCall("docgen", "generate", time.Now(), e.ErrTransient)
	r.Step("compress", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.remoteCalls.WithLabelValues("docgen", "generate", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.remoteCalls.WithLabelValues("docgen", "generate", "transient")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.pipelineSteps.WithLabelValues("compress", OutcomeSuccess)))
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveCall("docgen", "generate", time.Now(), nil)
		r.Step("merge", nil)
	})
}

func TestRecorder_Middleware(t *testing.T) {
	r := New(prometheus.NewRegistry())
	router := chi.NewRouter()
	router.Use(r.Middleware)
	router.Get("/api/download/{docId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/download/abc", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("404", "GET", "/api/download/{docId}")))
}

func TestRecorder_MiddlewareUnmatchedRoute(t *testing.T) {
	r := New(prometheus.NewRegistry())
	router := chi.NewRouter()
	router.Use(r.Middleware)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {})

	for _, path := range []string{"/wp-admin/setup.php", "/api/unknown/123", "/api/unknown/456"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("404", "GET", "unmatched")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.httpRequests))
}
