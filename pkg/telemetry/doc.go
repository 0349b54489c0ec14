// Package telemetry groups the service's observability packages.
//
//   - logging: structured slog logging with a runtime-adjustable level
//   - metrics: Prometheus request, operation and lifecycle metrics
//   - tracing: OpenTelemetry tracing exported over OTLP gRPC
//   - health: liveness, readiness and version endpoints
//
// Each package is configured from the telemetry section of the YAML
// configuration and wired together by pkg/server.
package telemetry
