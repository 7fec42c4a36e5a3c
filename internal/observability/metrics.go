package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedRoute labels requests the mux answered without a registered
// pattern, such as 404s and 405s.
const unmatchedRoute = "unmatched"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlassist_http_requests_total",
			Help: "Total number of HTTP requests by mux route.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlassist_http_request_duration_seconds",
			Help:    "HTTP request latency by mux route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDurationSeconds)
}

// routeLabel is the ServeMux pattern that served r. The raw URL path is
// never used since the UI catch-all would make the label unbounded.
func routeLabel(r *http.Request) string {
	if r.Pattern == "" {
		return unmatchedRoute
	}
	return r.Pattern
}

func observeRequest(r *http.Request, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	route := routeLabel(r)
	httpRequestsTotal.WithLabelValues(r.Method, route, code).Inc()
	httpRequestDurationSeconds.WithLabelValues(r.Method, route, code).Observe(elapsed.Seconds())
}
