package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"policykeeper-hq/policykeeper/pkg/policy"
	"policykeeper-hq/policykeeper/pkg/policy/export"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is an aligned table (default).
	FormatText OutputFormat = "text"
	// FormatJSON is the API's JSON wire format.
	FormatJSON OutputFormat = "json"
	// FormatCSV is CSV with a header row.
	FormatCSV OutputFormat = "csv"
	// FormatYAML is a YAML sequence.
	FormatYAML OutputFormat = "yaml"
)

// ParseOutputFormat validates a --format flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatCSV, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", NewConfigError("format", fmt.Sprintf("unsupported output format %q (use text, json, csv or yaml)", s))
	}
}

// Formatter writes policies in one output format.
type Formatter interface {
	FormatPolicies(w io.Writer, views []policy.View) error
	FormatPolicy(w io.Writer, view policy.View) error
}

// TextFormatter prints policies as an aligned table.
type TextFormatter struct{}

var tableHeader = []string{"ID", "CUSTOMER", "TYPE", "EXPIRY", "EXPIRED"}

// FormatPolicies writes one row per policy.
func (f *TextFormatter) FormatPolicies(w io.Writer, views []policy.View) error {
	if len(views) == 0 {
		_, err := fmt.Fprintln(w, "No policies found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(tableHeader, "\t"))
	for _, v := range views {
		expired := "no"
		if v.IsExpired {
			expired = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", v.ID, v.CustomerName, v.Type.Label(), v.ExpiryDate, expired)
	}
	return tw.Flush()
}

// FormatPolicy writes one policy as "key: value" lines.
func (f *TextFormatter) FormatPolicy(w io.Writer, v policy.View) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "Policy ID:\t%d\n", v.ID)
	fmt.Fprintf(tw, "Customer:\t%s\n", v.CustomerName)
	fmt.Fprintf(tw, "Type:\t%s (%s)\n", v.Type.Label(), v.Type)
	fmt.Fprintf(tw, "Expiry date:\t%s\n", v.ExpiryDate)
	fmt.Fprintf(tw, "Expired:\t%t\n", v.IsExpired)
	return tw.Flush()
}

// exportFormatter adapts an export.Exporter to Formatter.
type exportFormatter struct {
	exporter export.Exporter
}

func (f *exportFormatter) FormatPolicies(w io.Writer, views []policy.View) error {
	return f.exporter.Export(context.Background(), views, w)
}

func (f *exportFormatter) FormatPolicy(w io.Writer, v policy.View) error {
	return f.exporter.Export(context.Background(), []policy.View{v}, w)
}

// NewFormatter creates a formatter for the specified format. Unknown formats
// fall back to text.
func NewFormatter(format OutputFormat) Formatter {
	switch format {
	case FormatJSON:
		return &exportFormatter{exporter: export.NewJSONExporter(true)}
	case FormatCSV:
		return &exportFormatter{exporter: export.NewCSVExporter(true)}
	case FormatYAML:
		return &exportFormatter{exporter: export.NewYAMLExporter()}
	default:
		return &TextFormatter{}
	}
}
