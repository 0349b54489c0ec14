package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"policykeeper-hq/policykeeper/pkg/cli"
	"policykeeper-hq/policykeeper/pkg/config"
	"policykeeper-hq/policykeeper/pkg/policy"
	"policykeeper-hq/policykeeper/pkg/policy/storage"
	"policykeeper-hq/policykeeper/pkg/policy/sweep"
	"policykeeper-hq/policykeeper/pkg/server"
	"policykeeper-hq/policykeeper/pkg/telemetry/health"
	"policykeeper-hq/policykeeper/pkg/telemetry/logging"
	"policykeeper-hq/policykeeper/pkg/telemetry/metrics"
	"policykeeper-hq/policykeeper/pkg/telemetry/tracing"
)

type runOptions struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

func newRunCmd(g *globalFlags) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the policy API server",
		Long: `Start the policy API server with the specified configuration.

The server listens on the configured address and serves the policy resource
at /policies/, health probes and Prometheus metrics.

Examples:
  # Start with default config
  policykeeper run

  # Start with custom config
  policykeeper run --config /etc/policykeeper/config.yaml

  # Override listen address
  policykeeper run --listen 0.0.0.0:8080

  # Validate config without starting server
  policykeeper run --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd, g, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.listenAddress, "listen", "l", "", "override listen address")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "validate config without starting server")
	return cmd
}

func runServer(cmd *cobra.Command, g *globalFlags, opts *runOptions) error {
	cfg, err := loadConfig(cmd, g)
	if err != nil {
		return err
	}

	if opts.listenAddress != "" {
		cfg.Server.ListenAddress = opts.listenAddress
	}
	if opts.logLevel != "" {
		if _, err := logging.ParseLevel(opts.logLevel); err != nil {
			return cli.NewConfigError("log-level", err.Error())
		}
		cfg.Telemetry.Logging.Level = opts.logLevel
	}

	logger, err := newLogger(cfg, os.Stdout, g, true)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger.Logger)

	if opts.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to initialize tracing: %w", err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	clock, err := policy.NewClock(cfg.Policy.Timezone)
	if err != nil {
		return cli.NewConfigError("policy.timezone", err.Error())
	}

	logger.Info("opening policy storage",
		"backend", cfg.Storage.Backend,
		"driver", cfg.Storage.SQLite.Driver,
		"path", cfg.Storage.SQLite.Path,
	)
	store, err := storage.Open(&cfg.Storage)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer store.Close()

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	svcConfig := &policy.ServiceConfig{
		Clock:  clock,
		Tracer: tracer.Tracer("policykeeper/policy"),
		Logger: logger.Logger,
	}
	if collector != nil {
		svcConfig.Observer = collector
	}
	svc := policy.NewService(store, svcConfig)

	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
	checker.RegisterCheck("storage", health.PingCheck(store))

	if cfg.Policy.Sweep.Enabled {
		sweepConfig := &sweep.Config{
			ExpiringWithinDays: cfg.Policy.Sweep.ExpiringWithinDays,
			Clock:              clock,
			Logger:             logger.Logger,
		}
		if collector != nil {
			sweepConfig.Reporter = collector
		}
		scheduler := sweep.NewScheduler(sweep.NewSweeper(store, sweepConfig), cfg.Policy.Sweep.Schedule)
		if err := scheduler.Start(ctx); err != nil {
			logger.Warn("failed to start expiry sweep", "error", err)
		} else {
			defer scheduler.Stop()
			if next := scheduler.NextRun(); next != nil {
				logger.Debug("expiry sweep scheduled", "next_run", next)
			}
		}
	}

	if cfg.Watch.Enabled {
		startConfigWatcher(ctx, cmd, g, logger)
	}

	serverOpts := server.Options{
		Service: svc,
		Logger:  logger.Logger,
		Health:  checker,
		Version: versionInfo(),
	}
	if collector != nil {
		serverOpts.Metrics = collector
	}
	if tracer.Enabled() {
		serverOpts.TracerProvider = tracer.Provider()
	}
	srv := server.NewServer(cfg, serverOpts)

	printBanner(cmd, cfg)

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Server stopped")
	return nil
}

// startConfigWatcher applies logging level changes from the config file
// without a restart.
func startConfigWatcher(ctx context.Context, cmd *cobra.Command, g *globalFlags, logger *logging.Logger) {
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(g.cfgFile); errors.Is(err, os.ErrNotExist) {
			logger.Warn("config watch enabled but no config file present", "path", g.cfgFile)
			return
		}
	}

	watcher, err := config.NewWatcher(g.cfgFile, config.GetConfig().Watch.Debounce, logger.Logger)
	if err != nil {
		logger.Warn("failed to create config watcher", "error", err)
		return
	}

	go func() {
		defer watcher.Stop()
		err := watcher.Watch(ctx, func(cfg *config.Config) {
			if err := logger.SetLevel(cfg.Telemetry.Logging.Level); err != nil {
				logger.Warn("ignoring invalid log level from reloaded config", "error", err)
				return
			}
			logger.Info("log level updated", "level", cfg.Telemetry.Logging.Level)
		})
		if err != nil {
			logger.Error("config watcher stopped", "error", err)
		}
	}()
}

func printBanner(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	scheme := "http"
	if cfg.Server.TLS.Enabled {
		scheme = "https"
	}
	base := scheme + "://" + cfg.Server.ListenAddress

	fmt.Fprintf(out, "Policykeeper v%s\n", Version)
	fmt.Fprintf(out, "✓ Storage: %s\n", cfg.Storage.Backend)
	fmt.Fprintf(out, "✓ Policies endpoint: %s%s/\n", base, server.PoliciesPath)
	if cfg.Telemetry.Health.Enabled {
		fmt.Fprintf(out, "✓ Health endpoint: %s%s\n", base, cfg.Telemetry.Health.LivenessPath)
	}
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(out, "✓ Metrics endpoint: %s%s\n", base, cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")
}
