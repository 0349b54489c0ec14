// Package health implements the liveness, readiness and version endpoints.
//
// Liveness answers 200 whenever the process can serve HTTP. Readiness runs
// every registered component check concurrently, each bounded by the
// configured timeout, and answers 503 if any check fails:
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("storage", health.PingCheck(store))
//	checker.Mount(router, &cfg.Telemetry.Health, health.NewVersionInfo(version, commit, date))
package health
