package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"policykeeper-hq/policykeeper/pkg/policy"
)

// DefaultExpiringWithinDays is the horizon used when Config leaves it unset.
const DefaultExpiringWithinDays = 30

// maxLoggedExpiries bounds the per-run "expires today" log entries.
const maxLoggedExpiries = 100

// Reporter receives the outcome of each sweep, typically to update gauges.
type Reporter interface {
	SetPolicyCounts(active, expiringSoon, expired int)
	RecordSweep(success bool, duration time.Duration)
}

// Config configures a Sweeper.
type Config struct {
	// ExpiringWithinDays classifies unexpired policies whose expiry date is
	// within this many days of today as expiring soon.
	ExpiringWithinDays int

	// Clock supplies "today". Default: UTC wall clock.
	Clock *policy.Clock

	// Reporter receives counts and run outcomes. Optional.
	Reporter Reporter

	// Logger receives run summaries. Default: slog.Default().
	Logger *slog.Logger
}

// Counts partitions the stored policies by lifecycle state on one day.
type Counts struct {
	Active       int // Expires after the horizon
	ExpiringSoon int // Expires between today and the horizon, inclusive
	Expired      int // Expired before today
}

// Total returns the number of policies counted.
func (c Counts) Total() int {
	return c.Active + c.ExpiringSoon + c.Expired
}

// Sweeper counts policies by lifecycle state. It never modifies storage.
type Sweeper struct {
	store    policy.Storage
	within   int
	clock    *policy.Clock
	reporter Reporter
	logger   *slog.Logger
}

// NewSweeper creates a sweeper over store.
func NewSweeper(store policy.Storage, cfg *Config) *Sweeper {
	if cfg == nil {
		cfg = &Config{}
	}
	s := &Sweeper{
		store:    store,
		within:   cfg.ExpiringWithinDays,
		clock:    cfg.Clock,
		reporter: cfg.Reporter,
		logger:   cfg.Logger,
	}
	if s.within <= 0 {
		s.within = DefaultExpiringWithinDays
	}
	if s.clock == nil {
		s.clock = &policy.Clock{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "policy.sweep")
	return s
}

// Sweep counts policies as of today, reports the counts and logs the
// policies that expire today.
func (s *Sweeper) Sweep(ctx context.Context) (Counts, error) {
	start := time.Now()
	counts, err := s.count(ctx)
	duration := time.Since(start)

	if s.reporter != nil {
		s.reporter.RecordSweep(err == nil, duration)
	}
	if err != nil {
		return Counts{}, err
	}
	if s.reporter != nil {
		s.reporter.SetPolicyCounts(counts.Active, counts.ExpiringSoon, counts.Expired)
	}

	if err := s.logExpiringToday(ctx); err != nil {
		return counts, err
	}

	s.logger.InfoContext(ctx, "expiry sweep completed",
		"active", counts.Active,
		"expiring_soon", counts.ExpiringSoon,
		"expired", counts.Expired,
		"duration_ms", duration.Milliseconds(),
	)
	return counts, nil
}

func (s *Sweeper) count(ctx context.Context) (Counts, error) {
	today := s.clock.Today()
	yesterday := today.AddDays(-1)
	horizon := today.AddDays(s.within)

	total, err := s.store.Count(ctx, nil)
	if err != nil {
		return Counts{}, fmt.Errorf("count policies: %w", err)
	}
	expired, err := s.store.Count(ctx, &policy.Filter{ExpiresBefore: &yesterday})
	if err != nil {
		return Counts{}, fmt.Errorf("count expired policies: %w", err)
	}
	soon, err := s.store.Count(ctx, &policy.Filter{ExpiresAfter: &today, ExpiresBefore: &horizon})
	if err != nil {
		return Counts{}, fmt.Errorf("count expiring policies: %w", err)
	}

	return Counts{
		Active:       int(total - expired - soon),
		ExpiringSoon: int(soon),
		Expired:      int(expired),
	}, nil
}

func (s *Sweeper) logExpiringToday(ctx context.Context) error {
	today := s.clock.Today()
	due, err := s.store.List(ctx, &policy.Filter{
		ExpiresAfter:  &today,
		ExpiresBefore: &today,
		Limit:         maxLoggedExpiries,
	})
	if err != nil {
		return fmt.Errorf("list policies expiring today: %w", err)
	}

	for _, p := range due {
		s.logger.InfoContext(ctx, "policy expires today",
			"policy_id", p.ID,
			"customer_name", p.CustomerName,
			"policy_type", p.Type,
		)
	}
	return nil
}
