// Package metrics exposes prometheus collectors for remote calls, pipeline
// steps and the HTTP API.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	e "github.com/gartstein/hrflow/internal/hrflow/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "hrflow"

	serviceLabel   = "service"
	operationLabel = "operation"
	outcomeLabel   = "outcome"
	stepLabel      = "step"

	OutcomeSuccess = "success"
)

// Recorder groups every hrflow collector. A nil *Recorder records nothing.
type Recorder struct {
	remoteCalls    *prometheus.CounterVec
	remoteDuration *prometheus.HistogramVec
	pipelineSteps  *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
}

// New builds the collectors and registers them on reg when it is non-nil.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Calls to the document generation and PDF services partitioned by outcome.",
		}, []string{serviceLabel, operationLabel, outcomeLabel}),
		remoteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_duration_seconds",
			Help:      "Latency of remote service calls.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{serviceLabel, operationLabel}),
		pipelineSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_steps_total",
			Help:      "Pack and single-document pipeline steps partitioned by outcome.",
		}, []string{stepLabel, outcomeLabel}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Number of HTTP requests partitioned by status code, method and route.",
		}, []string{"code", "method", "path"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time spent on the request partitioned by status code, method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"code", "method", "path"}),
	}
	if reg != nil {
		reg.MustRegister(r.Collectors()...)
	}
	return r
}

func (r *Recorder) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		r.remoteCalls, r.remoteDuration, r.pipelineSteps, r.httpRequests, r.httpLatency,
	}
}

// ObserveCall records one remote call that started at start.
func (r *Recorder) ObserveCall(service, operation string, start time.Time, err error) {
	if r == nil {
		return
	}
	r.remoteCalls.WithLabelValues(service, operation, Outcome(err)).Inc()
	r.remoteDuration.WithLabelValues(service, operation).Observe(time.Since(start).Seconds())
}

// Step counts one pipeline step by outcome.
func (r *Recorder) Step(step string, err error) {
	if r == nil {
		return
	}
	r.pipelineSteps.WithLabelValues(step, Outcome(err)).Inc()
}

// routeUnmatched labels requests no route pattern claimed.
const routeUnmatched = "unmatched"

// Middleware counts requests by chi route pattern. Requests that match no
// route share the routeUnmatched label.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)

		next.ServeHTTP(ww, req)

		route := routeUnmatched
		if rctx := chi.RouteContext(req.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		code := strconv.Itoa(ww.Status())
		r.httpRequests.WithLabelValues(code, req.Method, route).Inc()
		r.httpLatency.WithLabelValues(code, req.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Outcome maps an error onto a low-cardinality label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, e.ErrConfiguration):
		return "configuration"
	case errors.Is(err, e.ErrAuthentication):
		return "authentication"
	case errors.Is(err, e.ErrRequestRejected):
		return "rejected"
	case errors.Is(err, e.ErrUnexpectedResponse):
		return "unexpected_response"
	case errors.Is(err, e.ErrTaskFailed):
		return "task_failed"
	case errors.Is(err, e.ErrTaskTimeout):
		return "task_timeout"
	case errors.Is(err, e.ErrCancelled):
		return "cancelled"
	case errors.Is(err, e.ErrTransient):
		return "transient"
	default:
		return "error"
	}
}
