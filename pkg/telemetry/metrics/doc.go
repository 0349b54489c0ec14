// Package metrics provides Prometheus metrics for the policy service.
//
// # Metrics Categories
//
//   - Request Metrics: HTTP request count, latency, and in-flight requests
//   - Policy Metrics: service operation outcomes and rejected fields
//   - Lifecycle Metrics: policies by state and sweep runs
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordRequest("GET", "/policies/", 200, 3*time.Millisecond)
//	http.Handle("/metrics", collector.Handler())
//
// Every metric lives in the collector's own registry, so several collectors
// can coexist in one process (tests rely on this). Route labels are matched
// route patterns; once more than a thousand method/route pairs have been
// seen, new ones are recorded as "other".
package metrics
