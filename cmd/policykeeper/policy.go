package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/spf13/cobra"

	"policykeeper-hq/policykeeper/pkg/api/handlers"
	"policykeeper-hq/policykeeper/pkg/cli"
	"policykeeper-hq/policykeeper/pkg/policy"
	"policykeeper-hq/policykeeper/pkg/policy/export"
	"policykeeper-hq/policykeeper/pkg/policy/storage"
)

// defaultPageSize is the number of policies read per storage call during
// export.
const defaultPageSize = 500

type filterFlags struct {
	policyType   string
	search       string
	expired      string
	expiryAfter  string
	expiryBefore string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.policyType, "type", "", "filter by policy type (HOME, AUTO, HEALTH, TRAVEL, LIFE)")
	cmd.Flags().StringVar(&f.search, "search", "", "filter by case-insensitive customer name substring")
	cmd.Flags().StringVar(&f.expired, "expired", "", "filter by expiry state as of today (true, false)")
	cmd.Flags().StringVar(&f.expiryAfter, "expiry-after", "", "only policies expiring on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.expiryBefore, "expiry-before", "", "only policies expiring on or before this date (YYYY-MM-DD)")
}

// query parses the flags the same way the API parses list parameters.
// Rejected values are reported as a *policy.ValidationError so the command
// exits with ExitInvalid.
func (f *filterFlags) query() (policy.Query, error) {
	q, err := handlers.ParseQuery(url.Values{
		handlers.ParamType:         {f.policyType},
		handlers.ParamSearch:       {f.search},
		handlers.ParamExpired:      {f.expired},
		handlers.ParamExpiryAfter:  {f.expiryAfter},
		handlers.ParamExpiryBefore: {f.expiryBefore},
	})
	if err != nil {
		var rerr *handlers.RequestError
		if errors.As(err, &rerr) && len(rerr.Fields) > 0 {
			return policy.Query{}, &policy.ValidationError{Fields: rerr.Fields}
		}
		return policy.Query{}, err
	}
	return q, nil
}

// policyEnv is an opened store with its service, for one command.
type policyEnv struct {
	service *policy.Service
	store   policy.Storage
}

func (e *policyEnv) Close() error {
	return e.store.Close()
}

func openPolicyEnv(cmd *cobra.Command, g *globalFlags) (*policyEnv, error) {
	cfg, err := loadConfig(cmd, g)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr(), g, false)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}

	clock, err := policy.NewClock(cfg.Policy.Timezone)
	if err != nil {
		return nil, cli.NewConfigError("policy.timezone", err.Error())
	}

	store, err := storage.Open(&cfg.Storage)
	if err != nil {
		return nil, err
	}

	return &policyEnv{
		service: policy.NewService(store, &policy.ServiceConfig{Clock: clock, Logger: logger.Logger}),
		store:   store,
	}, nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, policy.NewNotFoundError(0)
	}
	return id, nil
}

func newPolicyCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Manage policy records",
		Long: `Manage policy records directly in the configured storage.

Subcommands:
  list    - List policies with filters
  get     - Show one policy
  create  - Create a policy
  update  - Change fields of a policy
  delete  - Delete a policy
  export  - Export policies to JSON, CSV or YAML`,
	}

	cmd.AddCommand(
		newPolicyListCmd(g),
		newPolicyGetCmd(g),
		newPolicyCreateCmd(g),
		newPolicyUpdateCmd(g),
		newPolicyDeleteCmd(g),
		newPolicyExportCmd(g),
	)
	return cmd
}

func newPolicyListCmd(g *globalFlags) *cobra.Command {
	var (
		filters filterFlags
		format  string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List policies",
		Long: `List policies in ascending ID order.

Examples:
  # Every policy
  policykeeper policy list

  # Home policies that have not expired
  policykeeper policy list --type HOME --expired=false

  # Customers named Smith, as CSV
  policykeeper policy list --search smith --format csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := cli.ParseOutputFormat(format)
			if err != nil {
				return err
			}
			q, err := filters.query()
			if err != nil {
				return err
			}
			q.Limit = limit

			env, err := openPolicyEnv(cmd, g)
			if err != nil {
				return err
			}
			defer env.Close()

			views, err := env.service.List(cmd.Context(), q)
			if err != nil {
				return cli.NewCommandError("policy list", err)
			}
			return cli.NewFormatter(outFormat).FormatPolicies(cmd.OutOrStdout(), views)
		},
	}

	filters.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json, csv, yaml")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of policies to list (0 for all)")
	return cmd
}

func newPolicyGetCmd(g *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := cli.ParseOutputFormat(format)
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			env, err := openPolicyEnv(cmd, g)
			if err != nil {
				return err
			}
			defer env.Close()

			view, err := env.service.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return cli.NewFormatter(outFormat).FormatPolicy(cmd.OutOrStdout(), view)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json, csv, yaml")
	return cmd
}

type draftFlags struct {
	customer string
	typ      string
	expiry   string
}

func (f *draftFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.customer, "customer", "", "customer name")
	cmd.Flags().StringVar(&f.typ, "type", "", "policy type (HOME, AUTO, HEALTH, TRAVEL, LIFE)")
	cmd.Flags().StringVar(&f.expiry, "expiry", "", "expiry date (YYYY-MM-DD), today or later")
}

// draft includes only the flags given on the command line.
func (f *draftFlags) draft(cmd *cobra.Command) *policy.Draft {
	d := &policy.Draft{}
	if cmd.Flags().Changed("customer") {
		d.CustomerName = policy.StringValue(f.customer)
	}
	if cmd.Flags().Changed("type") {
		d.Type = policy.StringValue(f.typ)
	}
	if cmd.Flags().Changed("expiry") {
		d.ExpiryDate = policy.StringValue(f.expiry)
	}
	return d
}

func newPolicyCreateCmd(g *globalFlags) *cobra.Command {
	var (
		fields draftFlags
		format string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a policy",
		Long: `Create a policy. Every field is required and the expiry date may not be
in the past.

Example:
  policykeeper policy create --customer "Ann Smith" --type AUTO --expiry 2026-06-30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := cli.ParseOutputFormat(format)
			if err != nil {
				return err
			}

			env, err := openPolicyEnv(cmd, g)
			if err != nil {
				return err
			}
			defer env.Close()

			view, err := env.service.Create(cmd.Context(), fields.draft(cmd))
			if err != nil {
				return err
			}
			return cli.NewFormatter(outFormat).FormatPolicy(cmd.OutOrStdout(), view)
		},
	}

	fields.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json, csv, yaml")
	return cmd
}

func newPolicyUpdateCmd(g *globalFlags) *cobra.Command {
	var (
		fields draftFlags
		format string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a policy",
		Long: `Change the given fields of a policy. Fields that are not given keep their
value. A new expiry date may not be in the past.

Example:
  policykeeper policy update 7 --expiry 2027-01-31`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := cli.ParseOutputFormat(format)
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			env, err := openPolicyEnv(cmd, g)
			if err != nil {
				return err
			}
			defer env.Close()

			view, err := env.service.Update(cmd.Context(), id, fields.draft(cmd), true)
			if err != nil {
				return err
			}
			return cli.NewFormatter(outFormat).FormatPolicy(cmd.OutOrStdout(), view)
		},
	}

	fields.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json, csv, yaml")
	return cmd
}

func newPolicyDeleteCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			env, err := openPolicyEnv(cmd, g)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.service.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Policy %d deleted\n", id)
			return nil
		},
	}
}

func newPolicyExportCmd(g *globalFlags) *cobra.Command {
	var (
		filters  filterFlags
		format   string
		output   string
		pageSize int
		progress bool
		pretty   bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export policies to JSON, CSV or YAML",
		Long: `Export policies matching the filters. Policies are read from storage in
pages and streamed to the output.

Examples:
  # Everything as CSV on stdout
  policykeeper policy export --format csv

  # Expired policies to a JSON file with progress
  policykeeper policy export --expired=true --output expired.json --progress`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exporter, err := export.New(format, pretty)
			if err != nil {
				return cli.NewConfigError("format", err.Error())
			}
			q, err := filters.query()
			if err != nil {
				return err
			}
			if pageSize <= 0 {
				pageSize = defaultPageSize
			}

			env, err := openPolicyEnv(cmd, g)
			if err != nil {
				return err
			}
			defer env.Close()

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return cli.NewCommandError("policy export", err)
				}
				defer f.Close()
				w = f
			}

			var reporter cli.ProgressReporter
			if progress {
				reporter = cli.NewProgressReporter(cmd.ErrOrStderr())
			}

			n, err := exportPages(cmd.Context(), env, q, pageSize, exporter, w, reporter)
			if err != nil {
				if reporter != nil {
					reporter.Error(err)
				}
				return cli.NewCommandError("policy export", err)
			}
			if output != "" && output != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported %d policies to %s\n", n, output)
			}
			return nil
		},
	}

	filters.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", export.FormatJSON, "export format: json, csv, yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().IntVar(&pageSize, "page-size", defaultPageSize, "policies read per storage call")
	cmd.Flags().BoolVar(&progress, "progress", false, "report progress on stderr")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent JSON output")
	return cmd
}

// exportPages streams every policy matching q to exporter, reading pageSize
// policies at a time. It returns the number of policies handed to the
// exporter.
func exportPages(ctx context.Context, env *policyEnv, q policy.Query, pageSize int,
	exporter export.Exporter, w io.Writer, reporter cli.ProgressReporter) (int, error) {

	total, err := env.store.Count(ctx, q.Filter(env.service.Today()))
	if err != nil {
		return 0, err
	}
	if reporter != nil {
		reporter.Start(total)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	views := make(chan policy.View)
	readErr := make(chan error, 1)
	var sent atomic.Int64

	go func() {
		defer close(views)
		for offset := 0; ; offset += pageSize {
			q.Limit, q.Offset = pageSize, offset
			page, err := env.service.List(ctx, q)
			if err != nil {
				readErr <- err
				return
			}
			for _, v := range page {
				select {
				case views <- v:
				case <-ctx.Done():
					readErr <- ctx.Err()
					return
				}
				if n := sent.Add(1); reporter != nil {
					reporter.Update(n)
				}
			}
			if len(page) < pageSize {
				readErr <- nil
				return
			}
		}
	}()

	if err := exporter.ExportStream(ctx, views, w); err != nil {
		return int(sent.Load()), err
	}
	if err := <-readErr; err != nil {
		return int(sent.Load()), err
	}
	if reporter != nil {
		reporter.Finish()
	}
	return int(sent.Load()), nil
}
