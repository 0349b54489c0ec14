package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"policykeeper-hq/policykeeper/pkg/api/handlers"
	"policykeeper-hq/policykeeper/pkg/api/middleware"
	"policykeeper-hq/policykeeper/pkg/config"
	"policykeeper-hq/policykeeper/pkg/policy"
	"policykeeper-hq/policykeeper/pkg/telemetry/health"
	"policykeeper-hq/policykeeper/pkg/telemetry/metrics"
)

// PoliciesPath is the mount point of the policy resource.
const PoliciesPath = "/policies"

// Options contains the collaborators of a Server. Service is required.
type Options struct {
	Service *policy.Service

	// Logger receives server and access logs. Default: slog.Default().
	Logger *slog.Logger

	// Metrics serves and records Prometheus metrics. Nil disables metrics.
	Metrics *metrics.Collector

	// TracerProvider instruments incoming requests. Nil disables HTTP spans.
	TracerProvider trace.TracerProvider

	// Health serves the probe endpoints. Nil disables them.
	Health  *health.Checker
	Version health.VersionInfo
}

// Server is the HTTP server of the policy API.
type Server struct {
	config       *config.Config
	opts         Options
	logger       *slog.Logger
	httpServer   *http.Server
	listener     net.Listener
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a server. Nothing listens until Start is called.
func NewServer(cfg *config.Config, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config: cfg,
		opts:   opts,
		logger: logger.With("component", "server"),
	}
}

// Start listens on the configured address and serves until ctx is
// cancelled or Shutdown is called. Cancelling ctx shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	cfg := &s.config.Server
	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           s.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	if cfg.TLS.Enabled {
		tlsConfig, err := configureTLS(&cfg.TLS)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		s.httpServer.TLSConfig = tlsConfig
	}

	ln, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddress, err)
	}
	s.listener = ln
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting policy API server",
			"address", ln.Addr().String(),
			"tls_enabled", cfg.TLS.Enabled,
		)

		var err error
		if cfg.TLS.Enabled {
			err = s.httpServer.ServeTLS(ln, cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			err = s.httpServer.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		} else if err != nil {
			err = fmt.Errorf("server error: %w", err)
		}
		errChan <- err
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
}

// Shutdown stops accepting connections and waits up to the configured
// shutdown timeout for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		timeout := s.config.Server.ShutdownTimeout
		s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("policy API server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the address the server listens on, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler builds the routed handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	cfg := s.config
	r := chi.NewRouter()

	r.Use(middleware.Recovery(s.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(s.logger))
	if s.opts.Metrics != nil {
		r.Use(middleware.Metrics(s.opts.Metrics))
	}
	r.Use(middleware.CORS(&cfg.Server.CORS))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	r.NotFound(handlers.RouteNotFound)

	policies := handlers.NewPolicyHandler(s.opts.Service, s.logger)
	r.Mount(PoliciesPath, policies.Routes())

	if s.opts.Metrics != nil && cfg.Telemetry.Metrics.Enabled {
		r.Method(http.MethodGet, cfg.Telemetry.Metrics.Path, s.opts.Metrics.Handler())
	}
	if s.opts.Health != nil && cfg.Telemetry.Health.Enabled {
		s.opts.Health.Mount(r, &cfg.Telemetry.Health, s.opts.Version)
	}

	if s.opts.TracerProvider == nil {
		return r
	}
	return otelhttp.NewHandler(r, "policykeeper",
		otelhttp.WithTracerProvider(s.opts.TracerProvider),
		otelhttp.WithFilter(func(req *http.Request) bool {
			return strings.HasPrefix(req.URL.Path, PoliciesPath)
		}),
	)
}

// configureTLS validates the certificate paths and builds the TLS settings.
func configureTLS(cfg *config.TLSConfig) (*tls.Config, error) {
	if cfg.CertFile == "" {
		return nil, fmt.Errorf("TLS cert file not specified")
	}
	if cfg.KeyFile == "" {
		return nil, fmt.Errorf("TLS key file not specified")
	}
	if _, err := os.Stat(cfg.CertFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("TLS cert file not found: %s", cfg.CertFile)
	}
	if _, err := os.Stat(cfg.KeyFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("TLS key file not found: %s", cfg.KeyFile)
	}

	minVersion := uint16(tls.VersionTLS12)
	switch cfg.MinVersion {
	case "", "1.2":
	case "1.3":
		minVersion = tls.VersionTLS13
	default:
		return nil, fmt.Errorf("unsupported TLS min version %q", cfg.MinVersion)
	}

	return &tls.Config{MinVersion: minVersion}, nil
}
