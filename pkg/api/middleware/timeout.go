package middleware

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/felixge/httpsnoop"
)

// TimeoutDetail is the body detail of a timed out request.
const TimeoutDetail = "Request timed out."

// Timeout bounds each request with a context deadline. Handlers and storage
// observe the deadline through the context; if the handler returns without
// writing a response after the deadline passed, 503 is sent.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			var written atomic.Bool
			ww := httpsnoop.Wrap(w, httpsnoop.Hooks{
				WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
					return func(code int) {
						written.Store(true)
						next(code)
					}
				},
				Write: func(next httpsnoop.WriteFunc) httpsnoop.WriteFunc {
					return func(b []byte) (int, error) {
						written.Store(true)
						return next(b)
					}
				},
			})

			next.ServeHTTP(ww, r.WithContext(ctx))

			if !written.Load() && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				writeDetail(w, http.StatusServiceUnavailable, TimeoutDetail)
			}
		})
	}
}
