package export

import (
	"context"
	"fmt"
	"io"
	"strings"

	"policykeeper-hq/policykeeper/pkg/policy"
)

// Supported export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatYAML = "yaml"
)

// Exporter writes rendered policies to a writer.
type Exporter interface {
	Export(ctx context.Context, views []policy.View, w io.Writer) error
	ExportStream(ctx context.Context, views <-chan policy.View, w io.Writer) error
}

// ExportError reports a failed export.
type ExportError struct {
	Format string
	Count  int // Records written before the failure
	Cause  error
}

// Error implements the error interface.
func (e *ExportError) Error() string {
	return fmt.Sprintf("%s export failed after %d records: %v", e.Format, e.Count, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ExportError) Unwrap() error {
	return e.Cause
}

func newExportError(format string, count int, cause error) *ExportError {
	return &ExportError{Format: format, Count: count, Cause: cause}
}

// New returns the exporter for format. pretty indents JSON output.
func New(format string, pretty bool) (Exporter, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		return NewJSONExporter(pretty), nil
	case FormatCSV:
		return NewCSVExporter(true), nil
	case FormatYAML, "yml":
		return NewYAMLExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q (use %s, %s or %s)",
			format, FormatJSON, FormatCSV, FormatYAML)
	}
}
