package logging

import (
	"context"
	"log/slog"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	originKey
)

// Log attribute keys filled from the context.
const (
	RequestIDKey = "request_id"
	OriginKey    = "origin"
)

// OriginAPI marks work started by an HTTP request. CLI commands use their
// command path, for example "policykeeper policy create".
const OriginAPI = "api"

// WithRequestID returns a context carrying the HTTP request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID returns the request ID carried by ctx, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithOrigin records which surface started the work, so policy writes made
// through the CLI can be told apart from API writes in the logs.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey, origin)
}

// GetOrigin returns the origin carried by ctx, or "".
func GetOrigin(ctx context.Context) string {
	origin, _ := ctx.Value(originKey).(string)
	return origin
}

// contextAttrs lists the request-scoped attributes present in ctx.
func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if origin := GetOrigin(ctx); origin != "" {
		attrs = append(attrs, slog.String(OriginKey, origin))
	}
	if id := GetRequestID(ctx); id != "" {
		attrs = append(attrs, slog.String(RequestIDKey, id))
	}
	return attrs
}
