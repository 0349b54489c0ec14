// Package sweep periodically classifies stored policies as active, expiring
// soon or expired and publishes the counts.
//
// The sweep is read-only. Expiry is always derived at read time, so a sweep
// never changes what the API returns; it only refreshes the lifecycle
// gauges and logs the policies that expire today.
//
//	sweeper := sweep.NewSweeper(store, &sweep.Config{
//	    ExpiringWithinDays: 30,
//	    Reporter:           collector,
//	})
//	scheduler := sweep.NewScheduler(sweeper, "*/5 * * * *")
//	if err := scheduler.Start(ctx); err != nil {
//	    return err
//	}
package sweep
