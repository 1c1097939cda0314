// Package metrics provides Prometheus instrumentation for the login gate.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BradenHooton/riskgate/internal/models"
)

const namespace = "riskgate"

var (
	// HTTPRequestsTotal counts HTTP requests by method, route pattern, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route pattern, and status class.",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes request latency by method and route pattern.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// VerdictsTotal counts risk verdicts applied to login attempts.
	VerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Total risk verdicts by tier, action, and source.",
		},
		[]string{"tier", "action", "source"},
	)

	// ScorerFallbacksTotal counts verdicts produced by the rule-based fallback.
	ScorerFallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scorer_fallbacks_total",
		Help:      "Total verdicts classified without the anomaly model.",
	})

	// DelayPollsTotal counts delayed-login status checks by observed status.
	DelayPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delay_polls_total",
			Help:      "Total delayed-login polls by resulting status.",
		},
		[]string{"result"},
	)

	// AdminActionsTotal counts admin overrides by action.
	AdminActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admin_actions_total",
			Help:      "Total admin override actions by type.",
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		VerdictsTotal,
		ScorerFallbacksTotal,
		DelayPollsTotal,
		AdminActionsTotal,
	)
}

// RecordVerdict counts an applied verdict.
func RecordVerdict(v models.Verdict) {
	VerdictsTotal.WithLabelValues(string(v.Tier), string(v.Action), string(v.Source)).Inc()
	if v.Source == models.SourceFallback {
		ScorerFallbacksTotal.Inc()
	}
}

func RecordDelayPoll(status models.DelayStatus) {
	DelayPollsTotal.WithLabelValues(string(status)).Inc()
}

func RecordAdminAction(action string) {
	AdminActionsTotal.WithLabelValues(action).Inc()
}

// Middleware records request count and latency. Routes are labelled with
// the chi pattern, not the raw path, to keep cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		HTTPRequestsTotal.WithLabelValues(r.Method, route, statusBucket(status)).Inc()
	})
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	if code < 100 || code > 599 {
		return strconv.Itoa(code)
	}
	return strconv.Itoa(code/100) + "xx"
}
