package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	var show bool
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Long: `Load the configuration file, apply defaults and POLICYKEEPER_* environment
overrides, and report every invalid setting.

Examples:
  # Validate the default config.yaml
  policykeeper config validate

  # Validate and print the effective configuration
  policykeeper config validate --config /etc/policykeeper/config.yaml --show`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "✓ Configuration valid")
			if !show {
				return nil
			}

			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("failed to encode configuration: %w", err)
			}
			return enc.Close()
		},
	}
	validateCmd.Flags().BoolVar(&show, "show", false, "print the effective configuration")

	cmd.AddCommand(validateCmd)
	return cmd
}
