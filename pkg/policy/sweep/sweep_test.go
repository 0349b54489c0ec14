package sweep

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policykeeper-hq/policykeeper/pkg/policy"
	"policykeeper-hq/policykeeper/pkg/policy/storage"
)

type fakeReporter struct {
	mu        sync.Mutex
	counts    Counts
	successes int
	failures  int
}

func (r *fakeReporter) SetPolicyCounts(active, expiringSoon, expired int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = Counts{Active: active, ExpiringSoon: expiringSoon, Expired: expired}
}

func (r *fakeReporter) RecordSweep(success bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if success {
		r.successes++
	} else {
		r.failures++
	}
}

func (r *fakeReporter) snapshot() (Counts, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts, r.successes, r.failures
}

func seed(t *testing.T, store policy.Storage, expiries ...string) {
	t.Helper()
	for i, e := range expiries {
		require.NoError(t, store.Create(context.Background(), &policy.Policy{
			CustomerName: "Customer " + string(rune('A'+i)),
			Type:         policy.TypeAuto,
			ExpiryDate:   policy.MustParseDate(e),
		}))
	}
}

func TestSweep_Counts(t *testing.T) {
	store := storage.NewMemoryStorage()
	seed(t, store,
		"2025-06-01", // expired
		"2025-06-14", // expired
		"2025-06-15", // today: expiring soon
		"2025-06-25", // within 10 days
		"2025-06-26", // just outside the horizon
		"2026-01-01",
	)

	reporter := &fakeReporter{}
	s := NewSweeper(store, &Config{
		ExpiringWithinDays: 10,
		Clock:              policy.FixedClock(policy.MustParseDate("2025-06-15")),
		Reporter:           reporter,
	})

	counts, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Counts{Active: 2, ExpiringSoon: 2, Expired: 2}, counts)
	assert.Equal(t, 6, counts.Total())

	reported, ok, failed := reporter.snapshot()
	assert.Equal(t, counts, reported)
	assert.Equal(t, 1, ok)
	assert.Zero(t, failed)
}

func TestSweep_ReadOnly(t *testing.T) {
	store := storage.NewMemoryStorage()
	seed(t, store, "2020-01-01", "2030-01-01")

	s := NewSweeper(store, &Config{Clock: policy.FixedClock(policy.MustParseDate("2025-06-15"))})
	_, err := s.Sweep(context.Background())
	require.NoError(t, err)

	all, err := store.List(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2020-01-01", all[0].ExpiryDate.String())
}

func TestSweep_DefaultHorizon(t *testing.T) {
	s := NewSweeper(storage.NewMemoryStorage(), nil)
	if s.within != DefaultExpiringWithinDays {
		t.Errorf("Expected horizon %d, got %d", DefaultExpiringWithinDays, s.within)
	}
}

type brokenStore struct {
	*storage.MemoryStorage
}

func (brokenStore) Count(context.Context, *policy.Filter) (int64, error) {
	return 0, errors.New("database is locked")
}

func TestSweep_StorageFailure(t *testing.T) {
	reporter := &fakeReporter{}
	s := NewSweeper(brokenStore{storage.NewMemoryStorage()}, &Config{Reporter: reporter})

	_, err := s.Sweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")

	_, ok, failed := reporter.snapshot()
	assert.Zero(t, ok)
	assert.Equal(t, 1, failed)
}

func TestScheduler_StartRunsImmediately(t *testing.T) {
	store := storage.NewMemoryStorage()
	seed(t, store, "2020-01-01")

	reporter := &fakeReporter{}
	s := NewSweeper(store, &Config{Reporter: reporter})
	sched := NewScheduler(s, "@every 1h")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, sched.Start(ctx))
	assert.True(t, sched.IsRunning())

	counts, ok, _ := reporter.snapshot()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, counts.Expired)

	next := sched.NextRun()
	require.NotNil(t, next)
	assert.True(t, next.After(time.Now()))

	assert.Error(t, sched.Start(ctx), "second Start must fail")

	cancel()
	require.Eventually(t, func() bool { return !sched.IsRunning() }, time.Second, 10*time.Millisecond)
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	sched := NewScheduler(NewSweeper(storage.NewMemoryStorage(), nil), "every tuesday")
	assert.Error(t, sched.Start(context.Background()))
	assert.False(t, sched.IsRunning())
}

func TestScheduler_EmptySchedule(t *testing.T) {
	sched := NewScheduler(NewSweeper(storage.NewMemoryStorage(), nil), "")
	require.NoError(t, sched.Start(context.Background()))
	assert.False(t, sched.IsRunning())
	assert.Nil(t, sched.NextRun())
}
