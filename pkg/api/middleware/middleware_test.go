package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"policykeeper-hq/policykeeper/pkg/config"
	"policykeeper-hq/policykeeper/pkg/telemetry/logging"
	"policykeeper-hq/policykeeper/pkg/telemetry/metrics"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
})

func TestRequestID(t *testing.T) {
	var seen string
	wrapped := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("generates request ID when not provided", func(t *testing.T) {
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		got := w.Header().Get(RequestIDHeader)
		if len(got) != 36 {
			t.Errorf("Expected a UUID, got %q", got)
		}
		if seen != got {
			t.Errorf("Expected context ID %q to match header %q", seen, got)
		}
	})

	t.Run("uses provided request ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "custom-request-id-12345")
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, req)

		if got := w.Header().Get(RequestIDHeader); got != "custom-request-id-12345" {
			t.Errorf("Expected provided ID, got %q", got)
		}
	})

	t.Run("replaces unusable request ID", func(t *testing.T) {
		for _, bad := range []string{"has space", "line\nbreak", strings.Repeat("x", 200)} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(RequestIDHeader, bad)
			w := httptest.NewRecorder()
			wrapped.ServeHTTP(w, req)

			if got := w.Header().Get(RequestIDHeader); got == bad {
				t.Errorf("Expected %q to be replaced", bad)
			}
		}
	})

	t.Run("marks the request as api origin", func(t *testing.T) {
		var origin string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin = logging.GetOrigin(r.Context())
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		if origin != logging.OriginAPI {
			t.Errorf("Expected origin %q, got %q", logging.OriginAPI, origin)
		}
	})

	t.Run("generates unique IDs", func(t *testing.T) {
		w1, w2 := httptest.NewRecorder(), httptest.NewRecorder()
		wrapped.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/", nil))
		wrapped.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/", nil))
		if w1.Header().Get(RequestIDHeader) == w2.Header().Get(RequestIDHeader) {
			t.Error("Expected different request IDs")
		}
	})
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(Logging(logger))
	r.Get("/policies/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/policies/9", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected one JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["level"] != "WARN" {
		t.Errorf("Expected WARN for 404, got %v", entry["level"])
	}
	if entry["route"] != "/policies/{id}" {
		t.Errorf("Expected route pattern, got %v", entry["route"])
	}
	if entry["status"] != float64(404) {
		t.Errorf("Expected status 404, got %v", entry["status"])
	}
	if entry["component"] != "http" {
		t.Errorf("Expected component http, got %v", entry["component"])
	}
}

func TestRoutePattern_Unmatched(t *testing.T) {
	if got := RoutePattern(httptest.NewRequest(http.MethodGet, "/", nil)); got != UnmatchedRoute {
		t.Errorf("Expected %q without chi context, got %q", UnmatchedRoute, got)
	}
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	wrapped := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}
	var body map[string]string
	_ = json.NewDecoder(w.Body).Decode(&body)
	if body["detail"] != ServerErrorDetail {
		t.Errorf("Expected detail %q, got %q", ServerErrorDetail, body["detail"])
	}
	if strings.Contains(w.Body.String(), "boom") {
		t.Error("Panic value leaked to client")
	}
	if !strings.Contains(buf.String(), "panic in handler") {
		t.Errorf("Expected panic to be logged, got %q", buf.String())
	}
}

func TestTimeout(t *testing.T) {
	t.Run("silent handler after deadline gets 503", func(t *testing.T) {
		wrapped := Timeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))

		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected 503, got %d", w.Code)
		}
	})

	t.Run("handler response is kept", func(t *testing.T) {
		wrapped := Timeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
			w.WriteHeader(http.StatusTeapot)
		}))

		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		if w.Code != http.StatusTeapot {
			t.Errorf("Expected handler status, got %d", w.Code)
		}
	})

	t.Run("deadline is set", func(t *testing.T) {
		var ok bool
		Timeout(time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok = r.Context().Deadline()
		})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		if !ok {
			t.Error("Expected a context deadline")
		}
	})
}

func TestCORS(t *testing.T) {
	cfg := &config.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"https://example.com"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         600,
	}

	tests := []struct {
		name       string
		cfg        *config.CORSConfig
		method     string
		origin     string
		preflight  bool
		wantOrigin string
		wantStatus int
	}{
		{"allowed origin", cfg, http.MethodGet, "https://example.com", false, "https://example.com", http.StatusOK},
		{"other origin", cfg, http.MethodGet, "https://evil.example", false, "", http.StatusOK},
		{"no origin", cfg, http.MethodGet, "", false, "", http.StatusOK},
		{"preflight", cfg, http.MethodOptions, "https://example.com", true, "https://example.com", http.StatusNoContent},
		{"wildcard", &config.CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}}, http.MethodGet, "https://any.example", false, "*", http.StatusOK},
		{"disabled", &config.CORSConfig{Enabled: false, AllowedOrigins: []string{"*"}}, http.MethodGet, "https://any.example", false, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", "POST")
			}
			w := httptest.NewRecorder()
			CORS(tt.cfg)(okHandler).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Expected allow origin %q, got %q", tt.wantOrigin, got)
			}
			if tt.preflight && w.Header().Get("Access-Control-Max-Age") != "600" {
				t.Errorf("Expected max age on preflight, got %q", w.Header().Get("Access-Control-Max-Age"))
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	collector := metrics.NewCollector(&config.MetricsConfig{
		Enabled:   true,
		Namespace: "test",
		Subsystem: "http",
	}, prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(Metrics(collector))
	r.Get("/policies/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, path := range []string{"/policies/1", "/policies/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	expected := `
# HELP test_http_http_requests_total Total number of HTTP requests handled
# TYPE test_http_http_requests_total counter
test_http_http_requests_total{method="GET",route="/policies/{id}",status="200"} 2
`
	if err := testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "test_http_http_requests_total"); err != nil {
		t.Error(err)
	}
}

func TestBodyLimit(t *testing.T) {
	var readErr error
	wrapped := BodyLimit(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	t.Run("declared length over limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("Expected 413, got %d", w.Code)
		}
	})

	t.Run("streamed body over limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", io.MultiReader(strings.NewReader("0123456789")))
		req.ContentLength = -1
		wrapped.ServeHTTP(httptest.NewRecorder(), req)

		var maxErr *http.MaxBytesError
		if !errors.As(readErr, &maxErr) {
			t.Errorf("Expected MaxBytesError, got %v", readErr)
		}
	})

	t.Run("small body passes", func(t *testing.T) {
		wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("ok")))
		if readErr != nil {
			t.Errorf("Expected no error, got %v", readErr)
		}
	})
}

func TestGetRequestID_Empty(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("Expected empty ID, got %q", got)
	}
}
