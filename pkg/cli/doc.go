/*
Package cli provides command-line helpers for the policykeeper command.

Output Formatting:

Policies can be printed as an aligned table, JSON, CSV or YAML:

	format, err := cli.ParseOutputFormat(flagFormat)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatPolicies(os.Stdout, views)

Progress Reporting:

Paged exports report progress on stderr:

	progress := cli.NewProgressReporter(nil)
	progress.Start(total)
	progress.Update(written)
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

Exit Codes:

ExitCode maps command errors to 0 (success), 1 (failure), 2 (rejected input
or configuration) and 3 (unknown policy).
*/
package cli
