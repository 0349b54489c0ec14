package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"policykeeper-hq/policykeeper/pkg/api/middleware"
	"policykeeper-hq/policykeeper/pkg/policy"
)

// Response details for errors without field reasons.
const (
	DetailNotFound      = "No Policy matches the given query."
	DetailRouteNotFound = "Not found."
	DetailTooLarge      = "Request body too large."
)

// ErrorResponse is the body of errors that are not tied to a field.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HandleError maps an error to a status code and response body:
//   - *RequestError: its own status, detail or field reasons
//   - *policy.ValidationError: 400 with field reasons
//   - policy.ErrNotFound: 404
//   - *http.MaxBytesError: 413
//   - context.DeadlineExceeded: 503
//   - anything else: 500 with a generic detail
func HandleError(err error) (int, any) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Detail != "" {
			return reqErr.Status, ErrorResponse{Detail: reqErr.Detail}
		}
		return reqErr.Status, reqErr.Fields
	}

	var valErr *policy.ValidationError
	if errors.As(err, &valErr) {
		return http.StatusBadRequest, valErr.Fields
	}

	if errors.Is(err, policy.ErrNotFound) {
		return http.StatusNotFound, ErrorResponse{Detail: DetailNotFound}
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge, ErrorResponse{Detail: DetailTooLarge}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, ErrorResponse{Detail: middleware.TimeoutDetail}
	}

	return http.StatusInternalServerError, ErrorResponse{Detail: middleware.ServerErrorDetail}
}

// writeError writes the response for err, logging server errors.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, body := HandleError(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}
