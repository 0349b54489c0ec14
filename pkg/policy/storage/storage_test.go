package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"policykeeper-hq/policykeeper/pkg/policy"
)

// backends returns a constructor per storage implementation. The mattn
// driver is skipped when the test binary was built without cgo.
func backends() map[string]func(t *testing.T) policy.Storage {
	sqliteWith := func(driver string) func(t *testing.T) policy.Storage {
		return func(t *testing.T) policy.Storage {
			t.Helper()
			s, err := NewSQLiteStorage(&SQLiteConfig{
				Driver:       driver,
				Path:         filepath.Join(t.TempDir(), "policies.db"),
				MaxOpenConns: 5,
				MaxIdleConns: 2,
				WALMode:      true,
				BusyTimeout:  5 * time.Second,
			})
			if err != nil {
				if strings.Contains(err.Error(), "cgo") {
					t.Skipf("driver %s unavailable: %v", driver, err)
				}
				t.Fatalf("Failed to create SQLite storage: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		}
	}

	return map[string]func(t *testing.T) policy.Storage{
		"memory": func(t *testing.T) policy.Storage {
			return NewMemoryStorage()
		},
		"sqlite/modernc": sqliteWith(DriverModernc),
		"sqlite/mattn":   sqliteWith(DriverMattn),
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s policy.Storage)) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			fn(t, open(t))
		})
	}
}

func newPolicy(name string, typ policy.Type, expiry string) *policy.Policy {
	return &policy.Policy{
		CustomerName: name,
		Type:         typ,
		ExpiryDate:   policy.MustParseDate(expiry),
	}
}

func TestStorage_CreateAssignsSequentialIDs(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s policy.Storage) {
		ctx := context.Background()

		for i := 1; i <= 3; i++ {
			p := newPolicy(fmt.Sprintf("Customer %d", i), policy.TypeAuto, "2030-01-01")
			if err := s.Create(ctx, p); err != nil {
				t.Fatalf("Create() failed: %v", err)
			}
			if p.ID != int64(i) {
				t.Errorf("Expected ID %d, got %d", i, p.ID)
			}
		}
	})
}

func TestStorage_DeletedIDsNotReused(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s policy.Storage) {
		ctx := context.Background()

		first := newPolicy("Ann", policy.TypeHome, "2030-01-01")
		second := newPolicy("Bob", policy.TypeLife, "2030-01-01")
		if err := s.Create(ctx, first); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		if err := s.Create(ctx, second); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		if err := s.Delete(ctx, second.ID); err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}

		third := newPolicy("Cat", policy.TypeTravel, "2030-01-01")
		if err := s.Create(ctx, third); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		if third.ID != 3 {
			t.Errorf("Expected ID 3 after deleting ID 2, got %d", third.ID)
		}
	})
}

func TestStorage_GetRoundTrip(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s policy.Storage) {
		ctx := context.Background()

		p := newPolicy("Ann Example", policy.TypeHealth, "2031-12-31")
		if err := s.Create(ctx, p); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}

		got, err := s.Get(ctx, p.ID)
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if *got != *p {
			t.Errorf("Expected %+v, got %+v", *p, *got)
		}

		// Mutating the returned value must not affect the store.
		got.CustomerName = "changed"
		again, _ := s.Get(ctx, p.ID)
		if again.CustomerName != "Ann Example" {
			t.Errorf("Store was mutated through returned pointer: %q", again.CustomerName)
		}
	})
}

func TestStorage_GetMissing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s policy.Storage) {
		_, err := s.Get(context.Background(), 42)
		if !errors.Is(err, policy.ErrNotFound) {
			t.Fatalf("Expected ErrNotFound, got %v", err)
		}

		var nf *policy.NotFoundError
		if !errors.As(err, &nf) || nf.ID != 42 {
			t.Errorf("Expected NotFoundError for ID 42, got %v", err)
		}
	})
}

func TestStorage_UpdateAndDelete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s policy.Storage) {
		ctx := context.Background()

		p := newPolicy("Ann", policy.TypeAuto, "2030-01-01")
		if err := s.Create(ctx, p); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}

		p.CustomerName = "Ann Updated"
		p.ExpiryDate = policy.MustParseDate("2032-06-30")
		if err := s.Update(ctx, p); err != nil {
			t.Fatalf("Update() failed: %v", err)
		}

		got, err := s.Get(ctx, p.ID)
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if got.CustomerName != "Ann Updated" || got.ExpiryDate.String() != "2032-06-30" {
			t.Errorf("Update not persisted: %+v", got)
		}

		if err := s.Delete(ctx, p.ID); err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}
		if _, err := s.Get(ctx, p.ID); !errors.Is(err, policy.ErrNotFound) {
			t.Errorf("Expected ErrNotFound after delete, got %v", err)
		}
		if err := s.Delete(ctx, p.ID); !errors.Is(err, policy.ErrNotFound) {
			t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
		}
		if err := s.Update(ctx, p); !errors.Is(err, policy.ErrNotFound) {
			t.Errorf("Expected ErrNotFound updating deleted policy, got %v", err)
		}

		all, err := s.List(ctx, nil)
		if err != nil {
			t.Fatalf("List() failed: %v", err)
		}
		if len(all) != 0 {
			t.Errorf("Expected empty list, got %d policies", len(all))
		}
	})
}

func TestStorage_ListEmpty(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s policy.Storage) {
		all, err := s.List(context.Background(), nil)
		if err != nil {
			t.Fatalf("List() failed: %v", err)
		}
		if all == nil {
			t.Error("Expected non-nil empty slice")
		}
		if len(all) != 0 {
			t.Errorf("Expected 0 policies, got %d", len(all))
		}
	})
}

func TestStorage_ListFilters(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s policy.Storage) {
		ctx := context.Background()

		seed := []*policy.Policy{
			newPolicy("Ann Smith", policy.TypeAuto, "2030-01-10"),
			newPolicy("Bob Jones", policy.TypeHome, "2030-02-10"),
			newPolicy("anna_karenina", policy.TypeAuto, "2030-03-10"),
			newPolicy("100% Covered", policy.TypeLife, "2030-04-10"),
		}
		for _, p := range seed {
			if err := s.Create(ctx, p); err != nil {
				t.Fatalf("Create() failed: %v", err)
			}
		}

		after := policy.MustParseDate("2030-02-10")
		before := policy.MustParseDate("2030-03-10")

		tests := []struct {
			name    string
			filter  *policy.Filter
			wantIDs []int64
		}{
			{"nil filter", nil, []int64{1, 2, 3, 4}},
			{"by type", &policy.Filter{Type: policy.TypeAuto}, []int64{1, 3}},
			{"search case-insensitive", &policy.Filter{Search: "ANN"}, []int64{1, 3}},
			{"search literal percent", &policy.Filter{Search: "0%"}, []int64{4}},
			{"search literal underscore", &policy.Filter{Search: "a_k"}, []int64{3}},
			{"inclusive range", &policy.Filter{ExpiresAfter: &after, ExpiresBefore: &before}, []int64{2, 3}},
			{"combined", &policy.Filter{Type: policy.TypeAuto, ExpiresAfter: &after}, []int64{3}},
			{"limit", &policy.Filter{Limit: 2}, []int64{1, 2}},
			{"offset", &policy.Filter{Offset: 3}, []int64{4}},
			{"limit and offset", &policy.Filter{Limit: 2, Offset: 1}, []int64{2, 3}},
			{"offset past end", &policy.Filter{Offset: 10}, []int64{}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := s.List(ctx, tt.filter)
				if err != nil {
					t.Fatalf("List() failed: %v", err)
				}
				ids := make([]int64, 0, len(got))
				for _, p := range got {
					ids = append(ids, p.ID)
				}
				if fmt.Sprint(ids) != fmt.Sprint(tt.wantIDs) {
					t.Errorf("Expected IDs %v, got %v", tt.wantIDs, ids)
				}
			})
		}

		count, err := s.Count(ctx, &policy.Filter{Type: policy.TypeAuto, Limit: 1})
		if err != nil {
			t.Fatalf("Count() failed: %v", err)
		}
		if count != 2 {
			t.Errorf("Expected count 2 ignoring limit, got %d", count)
		}
	})
}

func TestStorage_ConcurrentCreates(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s policy.Storage) {
		ctx := context.Background()
		const n = 20

		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- s.Create(ctx, newPolicy(fmt.Sprintf("c%d", i), policy.TypeAuto, "2030-01-01"))
			}(i)
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			if err != nil {
				t.Fatalf("Create() failed: %v", err)
			}
		}

		count, err := s.Count(ctx, nil)
		if err != nil {
			t.Fatalf("Count() failed: %v", err)
		}
		if count != n {
			t.Errorf("Expected %d policies, got %d", n, count)
		}
	})
}

func TestStorage_Ping(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s policy.Storage) {
		if err := s.Ping(context.Background()); err != nil {
			t.Errorf("Ping() failed: %v", err)
		}
	})
}

func TestSQLiteStorage_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	cfg := &SQLiteConfig{Driver: DriverModernc, Path: dbPath, MaxOpenConns: 2, MaxIdleConns: 1, BusyTimeout: time.Second}

	s, err := NewSQLiteStorage(cfg)
	if err != nil {
		t.Fatalf("Failed to create SQLite storage: %v", err)
	}
	p := newPolicy("Persisted", policy.TypeHome, "2030-05-05")
	if err := s.Create(context.Background(), p); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	s.Close()

	s, err = NewSQLiteStorage(cfg)
	if err != nil {
		t.Fatalf("Failed to reopen SQLite storage: %v", err)
	}
	defer s.Close()

	got, err := s.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Get() after reopen failed: %v", err)
	}
	if got.CustomerName != "Persisted" {
		t.Errorf("Expected persisted name, got %q", got.CustomerName)
	}
}

func TestSQLiteStorage_InMemoryPath(t *testing.T) {
	s, err := NewSQLiteStorage(&SQLiteConfig{Driver: DriverModernc, Path: ":memory:", MaxOpenConns: 10, BusyTimeout: time.Second})
	if err != nil {
		t.Fatalf("Failed to create SQLite storage: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Create(ctx, newPolicy("Ann", policy.TypeAuto, "2030-01-01")); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	all, err := s.List(ctx, nil)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("Expected 1 policy on shared :memory: connection, got %d", len(all))
	}
}

func TestNewSQLiteStorage_UnsupportedDriver(t *testing.T) {
	_, err := NewSQLiteStorage(&SQLiteConfig{Driver: "postgres", Path: ":memory:"})
	if err == nil {
		t.Fatal("Expected error for unsupported driver")
	}

	var serr *policy.StorageError
	if !errors.As(err, &serr) || serr.Operation != "open" {
		t.Errorf("Expected StorageError for open, got %v", err)
	}
}
