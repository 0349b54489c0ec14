// Policykeeper keeps insurance policy records behind a REST API.
//
// Usage:
//
//	# Start the API server with defaults (SQLite at data/policies.db)
//	policykeeper run
//
//	# Start with a configuration file
//	policykeeper run --config /etc/policykeeper/config.yaml
//
//	# Check a configuration file
//	policykeeper config validate --config config.yaml
//
//	# Work with records directly
//	policykeeper policy list --type AUTO --expired=false
//	policykeeper policy create --customer "Ann" --type HOME --expiry 2026-01-31
//	policykeeper policy export --format csv --output policies.csv
package main

import "os"

func main() {
	os.Exit(Execute())
}
