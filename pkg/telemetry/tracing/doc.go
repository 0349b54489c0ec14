// Package tracing configures OpenTelemetry tracing for the service.
//
// When telemetry.tracing.enabled is set, spans are batched and exported over
// OTLP gRPC; otherwise a no-op provider is used and instrumentation costs
// almost nothing. The enabled provider is installed globally together with
// the W3C trace context propagator, so otelhttp extracts incoming
// traceparent headers.
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	svc := policy.NewService(store, &policy.ServiceConfig{
//	    Tracer: tracer.Tracer("policykeeper/policy"),
//	})
//
// Sampling strategies are always, never and ratio (telemetry.tracing.sample_ratio),
// each wrapped in a parent-based sampler.
package tracing
