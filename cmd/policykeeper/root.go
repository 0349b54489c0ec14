package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"policykeeper-hq/policykeeper/pkg/cli"
	"policykeeper-hq/policykeeper/pkg/config"
	"policykeeper-hq/policykeeper/pkg/telemetry/logging"
)

const defaultConfigFile = "config.yaml"

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	cfgFile string
	verbose bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "policykeeper",
		Short: "Policykeeper - insurance policy record keeper",
		Long: `Policykeeper stores insurance policy records and serves them over a REST API.

Each policy has a customer name, a policy type (HOME, AUTO, HEALTH, TRAVEL,
LIFE) and an expiry date. Writes are validated against the current date and
every read reports whether the policy has expired.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(logging.WithOrigin(ctx, cmd.CommandPath()))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&g.cfgFile, "config", "c", defaultConfigFile, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		newRunCmd(g),
		newVersionCmd(),
		newConfigCmd(g),
		newPolicyCmd(g),
	)
	return rootCmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

// loadConfig reads the configuration file. The default path may be absent,
// in which case defaults and environment overrides apply.
func loadConfig(cmd *cobra.Command, g *globalFlags) (*config.Config, error) {
	allowMissing := !cmd.Flags().Changed("config")
	cfg, err := config.Load(g.cfgFile, allowMissing)
	if err != nil {
		return nil, cli.NewConfigError(g.cfgFile, err.Error())
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	config.SetConfig(cfg)
	return cfg, nil
}

// newLogger builds the process logger. Commands other than run log to
// stderr at warn level unless --verbose is set, keeping stdout for output.
func newLogger(cfg *config.Config, w io.Writer, g *globalFlags, server bool) (*logging.Logger, error) {
	lc := logging.FromConfig(&cfg.Telemetry.Logging)
	lc.Writer = w
	if !server {
		lc.Level = "warn"
		if g.verbose {
			lc.Level = "debug"
		}
	}
	return logging.New(lc)
}
