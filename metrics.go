package bifrost

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TokensIssued counts successful issuances by binding mode.
var TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bifrost_tokens_issued_total",
	Help: "Access credentials issued.",
}, []string{"mode"})

// IssueRejections counts refused issuance attempts by reason.
var IssueRejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bifrost_issue_rejections_total",
	Help: "Issuance attempts refused, by reason.",
}, []string{"reason"})

// Validations counts validation outcomes.
var Validations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bifrost_validations_total",
	Help: "Token validations by outcome.",
}, []string{"outcome"})

// ProxyRequests counts proxy fetches by result.
var ProxyRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bifrost_proxy_requests_total",
	Help: "Proxied upstream fetches by result.",
}, []string{"result"})

// HTTPRequests counts HTTP requests by method, route and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bifrost_http_requests_total",
	Help: "Total HTTP requests handled.",
}, []string{"method", "route", "status"})

// HTTPDuration tracks HTTP request latency.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "bifrost_http_request_duration_seconds",
	Help:    "HTTP request latency in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route"})

// MetricsHandler exposes the Prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// InstrumentHTTP records request counts and latency per chi route pattern.
// The pattern is used instead of the raw path so query strings carrying
// tokens never become label values.
func InstrumentHTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// outcomeLabel maps a token operation error to a metric label.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenInvalid):
		return "invalid"
	case errors.Is(err, ErrInvalidCredential):
		return "bad_credential"
	case errors.Is(err, ErrMissingToken), errors.Is(err, ErrMissingKey), errors.Is(err, ErrMissingClaim):
		return "missing"
	case errors.Is(err, ErrIPNotAllowed):
		return "ip_denied"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrSecretNotConfigured):
		return "misconfigured"
	default:
		return "error"
	}
}
