// Package server runs the policy API over HTTP.
//
// The router mounts the policy resource at /policies, the Prometheus
// endpoint and the health probes, behind this middleware chain (outermost
// first):
//
//	Recovery -> RequestID -> Logging -> Metrics -> CORS -> BodyLimit -> Timeout
//
// When a tracer provider is supplied, requests to the policy resource are
// wrapped in OpenTelemetry server spans.
//
// # Usage
//
//	srv := server.NewServer(cfg, server.Options{
//	    Service: svc,
//	    Logger:  logger.Logger,
//	    Metrics: collector,
//	    Health:  checker,
//	})
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//
// Start blocks until ctx is cancelled and then shuts down gracefully,
// waiting up to server.shutdown_timeout for in-flight requests.
package server
