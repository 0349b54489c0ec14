package export

import (
	"context"
	"io"

	"gopkg.in/yaml.v3"

	"policykeeper-hq/policykeeper/pkg/policy"
)

// yamlPolicy fixes the YAML field names and order.
type yamlPolicy struct {
	ID           int64  `yaml:"policy_id"`
	CustomerName string `yaml:"customer_name"`
	Type         string `yaml:"policy_type"`
	ExpiryDate   string `yaml:"expiry_date"`
	IsExpired    bool   `yaml:"is_expired"`
}

func toYAML(v policy.View) yamlPolicy {
	return yamlPolicy{
		ID:           v.ID,
		CustomerName: v.CustomerName,
		Type:         string(v.Type),
		ExpiryDate:   v.ExpiryDate.String(),
		IsExpired:    v.IsExpired,
	}
}

// YAMLExporter exports policies as a YAML sequence.
type YAMLExporter struct{}

// NewYAMLExporter creates a YAML exporter.
func NewYAMLExporter() *YAMLExporter {
	return &YAMLExporter{}
}

// Export writes views as a single YAML document.
func (e *YAMLExporter) Export(ctx context.Context, views []policy.View, w io.Writer) error {
	docs := make([]yamlPolicy, 0, len(views))
	for _, v := range views {
		docs = append(docs, toYAML(v))
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(docs); err != nil {
		return newExportError(FormatYAML, 0, err)
	}
	if err := enc.Close(); err != nil {
		return newExportError(FormatYAML, len(views), err)
	}
	return nil
}

// ExportStream collects the channel and writes one YAML document once it is
// closed.
func (e *YAMLExporter) ExportStream(ctx context.Context, views <-chan policy.View, w io.Writer) error {
	var collected []policy.View
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v, ok := <-views:
			if !ok {
				return e.Export(ctx, collected, w)
			}
			collected = append(collected, v)
		}
	}
}
