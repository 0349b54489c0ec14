// Package export writes policies as JSON, CSV or YAML.
//
// Exporters take rendered views, so is_expired reflects the date the views
// were produced:
//
//	exp, err := export.New(export.FormatCSV, false)
//	if err != nil {
//	    return err
//	}
//	views, _ := svc.List(ctx, policy.Query{})
//	return exp.Export(ctx, views, os.Stdout)
//
// ExportStream consumes a channel for large result sets.
package export
