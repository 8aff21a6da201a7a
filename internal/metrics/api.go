package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// API/HTTP subsystem metrics
var (
	// HTTPRequestDuration tracks HTTP request latency
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestsTotal tracks total HTTP requests by handler, method, status
	HTTPRequestsTotal *prometheus.CounterVec
)

func initAPIMetrics() {
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shredsage_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: APIBuckets,
		},
		[]string{"handler", "method", "code"},
	)

	HTTPRequestsTotal = NewCounterVec(
		"shredsage_http_requests_total",
		"Total HTTP requests served by the shred-sage metrics server.",
		[]string{"handler", "method", "code"},
	)
}

func registerAPIMetrics() {
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestsTotal)
}

// instrument wraps h so every request is counted and timed under handler's name
func instrument(handler string, h http.Handler) http.Handler {
	labels := prometheus.Labels{"handler": handler}
	return promhttp.InstrumentHandlerDuration(
		HTTPRequestDuration.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(HTTPRequestsTotal.MustCurryWith(labels), h),
	)
}
