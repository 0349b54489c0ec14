package middleware

import (
	"net/http"

	"github.com/felixge/httpsnoop"

	"policykeeper-hq/policykeeper/pkg/telemetry/metrics"
)

// Metrics records request count, latency and in-flight requests, labelled by
// the matched route pattern.
func Metrics(collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			collector.IncInFlight()
			defer collector.DecInFlight()

			m := httpsnoop.CaptureMetrics(next, w, r)
			collector.RecordRequest(r.Method, RoutePattern(r), m.Code, m.Duration)
		})
	}
}
