package storage

import (
	"context"
	"sort"
	"sync"

	"policykeeper-hq/policykeeper/pkg/policy"
)

// MemoryStorage implements policy.Storage with an in-memory map. Data is
// lost when the process exits.
type MemoryStorage struct {
	policies map[int64]*policy.Policy
	lastID   int64
	mu       sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		policies: make(map[int64]*policy.Policy),
	}
}

// Create assigns the next ID to p and stores a copy.
func (s *MemoryStorage) Create(ctx context.Context, p *policy.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	p.ID = s.lastID

	stored := *p
	s.policies[p.ID] = &stored
	return nil
}

// Get returns a copy of the policy with the given ID.
func (s *MemoryStorage) Get(ctx context.Context, id int64) (*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.policies[id]
	if !ok {
		return nil, policy.NewNotFoundError(id)
	}
	out := *p
	return &out, nil
}

// List returns copies of the policies matching filter in ascending ID order.
func (s *MemoryStorage) List(ctx context.Context, filter *policy.Filter) ([]*policy.Policy, error) {
	matched := s.matching(filter)

	if filter != nil {
		start := filter.Offset
		if start > len(matched) {
			start = len(matched)
		}
		matched = matched[start:]
		if filter.Limit > 0 && filter.Limit < len(matched) {
			matched = matched[:filter.Limit]
		}
	}
	return matched, nil
}

// Update replaces the stored policy with a copy of p.
func (s *MemoryStorage) Update(ctx context.Context, p *policy.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.policies[p.ID]; !ok {
		return policy.NewNotFoundError(p.ID)
	}
	stored := *p
	s.policies[p.ID] = &stored
	return nil
}

// Delete removes the policy with the given ID. The ID is not reused.
func (s *MemoryStorage) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.policies[id]; !ok {
		return policy.NewNotFoundError(id)
	}
	delete(s.policies, id)
	return nil
}

// Count returns the number of policies matching filter.
func (s *MemoryStorage) Count(ctx context.Context, filter *policy.Filter) (int64, error) {
	return int64(len(s.matching(filter))), nil
}

// Ping always succeeds.
func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStorage) Close() error {
	return nil
}

func (s *MemoryStorage) matching(filter *policy.Filter) []*policy.Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*policy.Policy, 0, len(s.policies))
	for _, p := range s.policies {
		if filter.Matches(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
