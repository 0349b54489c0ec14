// Package logging builds the service's structured slog logger.
//
// Loggers emit JSON or text, carry a runtime-adjustable level so the config
// watcher can change verbosity without a restart, and attach the request ID
// and OpenTelemetry trace identifiers found in the context:
//
//	logger, err := logging.New(logging.FromConfig(&cfg.Telemetry.Logging))
//	ctx = logging.WithRequestID(ctx, "2b1f...")
//	logger.InfoContext(ctx, "policy created", "policy_id", 7)
//
// When RedactCustomerNames is set, customer_name attributes are reduced to
// their first character.
package logging
