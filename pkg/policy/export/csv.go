package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"policykeeper-hq/policykeeper/pkg/policy"
)

// flushEvery is the number of streamed rows between CSV flushes.
const flushEvery = 100

// CSVExporter exports policies as CSV, one row per policy.
type CSVExporter struct {
	// IncludeHeader writes a header row with the field names.
	IncludeHeader bool
}

// NewCSVExporter creates a CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

// Header returns the CSV column names.
func Header() []string {
	return []string{"policy_id", "customer_name", "policy_type", "expiry_date", "is_expired"}
}

// Export writes views as CSV.
func (e *CSVExporter) Export(ctx context.Context, views []policy.View, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(Header()); err != nil {
			return newExportError(FormatCSV, 0, err)
		}
	}
	for i, v := range views {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writer.Write(row(v)); err != nil {
			return newExportError(FormatCSV, i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return newExportError(FormatCSV, len(views), err)
	}
	return nil
}

// ExportStream writes views from a channel as CSV until the channel is
// closed or ctx is done.
func (e *CSVExporter) ExportStream(ctx context.Context, views <-chan policy.View, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if e.IncludeHeader {
		if err := writer.Write(Header()); err != nil {
			return newExportError(FormatCSV, 0, err)
		}
	}

	count := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case v, ok := <-views:
			if !ok {
				writer.Flush()
				if err := writer.Error(); err != nil {
					return newExportError(FormatCSV, count, err)
				}
				return nil
			}

			if err := writer.Write(row(v)); err != nil {
				return newExportError(FormatCSV, count, err)
			}
			count++

			if count%flushEvery == 0 {
				writer.Flush()
				if err := writer.Error(); err != nil {
					return newExportError(FormatCSV, count, err)
				}
			}
		}
	}
}

func row(v policy.View) []string {
	return []string{
		strconv.FormatInt(v.ID, 10),
		v.CustomerName,
		string(v.Type),
		v.ExpiryDate.String(),
		strconv.FormatBool(v.IsExpired),
	}
}
