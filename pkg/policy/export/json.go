package export

import (
	"context"
	"encoding/json"
	"io"

	"policykeeper-hq/policykeeper/pkg/policy"
)

// JSONExporter exports policies as a JSON array in the API's wire format.
type JSONExporter struct {
	// Pretty enables indentation.
	Pretty bool
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export writes views as a JSON array. No views produce "[]".
func (e *JSONExporter) Export(ctx context.Context, views []policy.View, w io.Writer) error {
	if views == nil {
		views = []policy.View{}
	}

	var (
		data []byte
		err  error
	)
	if e.Pretty {
		data, err = json.MarshalIndent(views, "", "  ")
	} else {
		data, err = json.Marshal(views)
	}
	if err != nil {
		return newExportError(FormatJSON, 0, err)
	}

	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return newExportError(FormatJSON, 0, err)
	}
	return nil
}

// ExportStream writes views from a channel as a JSON array until the
// channel is closed or ctx is done.
func (e *JSONExporter) ExportStream(ctx context.Context, views <-chan policy.View, w io.Writer) error {
	if _, err := io.WriteString(w, "["); err != nil {
		return newExportError(FormatJSON, 0, err)
	}

	count := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case v, ok := <-views:
			if !ok {
				closing := "]\n"
				if e.Pretty && count > 0 {
					closing = "\n]\n"
				}
				if _, err := io.WriteString(w, closing); err != nil {
					return newExportError(FormatJSON, count, err)
				}
				return nil
			}

			sep := ""
			switch {
			case count > 0 && e.Pretty:
				sep = ",\n  "
			case count > 0:
				sep = ","
			case e.Pretty:
				sep = "\n  "
			}
			if _, err := io.WriteString(w, sep); err != nil {
				return newExportError(FormatJSON, count, err)
			}

			data, err := e.marshal(v)
			if err != nil {
				return newExportError(FormatJSON, count, err)
			}
			if _, err := w.Write(data); err != nil {
				return newExportError(FormatJSON, count, err)
			}
			count++
		}
	}
}

func (e *JSONExporter) marshal(v policy.View) ([]byte, error) {
	if e.Pretty {
		return json.MarshalIndent(v, "  ", "  ")
	}
	return json.Marshal(v)
}
