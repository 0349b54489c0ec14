// Package middleware provides the HTTP middleware chain of the API server.
//
// The server applies, from outermost to innermost:
//
//	Recovery -> RequestID -> Logging -> Metrics -> CORS -> BodyLimit -> Timeout
//
// RequestID must run before Logging so log entries carry the ID. Logging and
// Metrics read the chi route pattern after the handler returns, so they must
// be installed with Router.Use on the chi router.
package middleware
