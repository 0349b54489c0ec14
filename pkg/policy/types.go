package policy

import (
	"context"
	"fmt"
	"strings"
)

// MaxCustomerNameLength is the maximum number of characters in a customer name.
const MaxCustomerNameLength = 255

// Type is the kind of cover a policy provides. The set of members is closed.
type Type string

// Policy types.
const (
	TypeHome   Type = "HOME"
	TypeAuto   Type = "AUTO"
	TypeHealth Type = "HEALTH"
	TypeTravel Type = "TRAVEL"
	TypeLife   Type = "LIFE"
)

var typeLabels = map[Type]string{
	TypeHome:   "Home",
	TypeAuto:   "Auto",
	TypeHealth: "Health",
	TypeTravel: "Travel",
	TypeLife:   "Life",
}

// Types returns every policy type in declaration order.
func Types() []Type {
	return []Type{TypeHome, TypeAuto, TypeHealth, TypeTravel, TypeLife}
}

// ParseType returns the Type named by s. Matching is exact.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown policy type %q", s)
	}
	return t, nil
}

// Valid reports whether t is a member of the enumeration.
func (t Type) Valid() bool {
	_, ok := typeLabels[t]
	return ok
}

// Label returns the human readable name of t.
func (t Type) Label() string {
	if l, ok := typeLabels[t]; ok {
		return l
	}
	return string(t)
}

// Policy is an insurance record. IsExpired is never stored; it is derived
// from ExpiryDate whenever the policy is rendered.
type Policy struct {
	ID           int64  `json:"policy_id"`     // Assigned by storage, never reused
	CustomerName string `json:"customer_name"` // Non-blank, at most 255 characters
	Type         Type   `json:"policy_type"`   // One of Types()
	ExpiryDate   Date   `json:"expiry_date"`   // Not before the date of the last write that set it
}

// IsExpired reports whether the policy's expiry date is strictly before
// today. A policy expiring today is not expired.
func (p *Policy) IsExpired(today Date) bool {
	return IsExpired(p.ExpiryDate, today)
}

// IsExpired reports whether expiry is strictly before today.
func IsExpired(expiry, today Date) bool {
	return expiry.Before(today)
}

// String returns "<id> - <customer> - <type>".
func (p *Policy) String() string {
	return fmt.Sprintf("%d - %s - %s", p.ID, p.CustomerName, p.Type)
}

// View is the wire representation of a policy.
type View struct {
	ID           int64  `json:"policy_id"`
	CustomerName string `json:"customer_name"`
	Type         Type   `json:"policy_type"`
	ExpiryDate   Date   `json:"expiry_date"`
	IsExpired    bool   `json:"is_expired"`
}

// View renders p with is_expired computed against today.
func (p *Policy) View(today Date) View {
	return View{
		ID:           p.ID,
		CustomerName: p.CustomerName,
		Type:         p.Type,
		ExpiryDate:   p.ExpiryDate,
		IsExpired:    p.IsExpired(today),
	}
}

// Views renders a slice of policies. The result is never nil so it encodes
// as an empty JSON array.
func Views(policies []*Policy, today Date) []View {
	out := make([]View, 0, len(policies))
	for _, p := range policies {
		out = append(out, p.View(today))
	}
	return out
}

// Filter narrows a List call. The zero value matches every policy.
type Filter struct {
	Type          Type   // Exact policy type
	Search        string // Case-insensitive substring of CustomerName
	ExpiresAfter  *Date  // Inclusive lower bound on ExpiryDate
	ExpiresBefore *Date  // Inclusive upper bound on ExpiryDate
	Limit         int    // 0 means no limit
	Offset        int
}

// Query is a list request as callers express it. Expired is relative to a
// date, so a Query is resolved into a Filter once "today" is known.
type Query struct {
	Type          Type
	Search        string
	ExpiresAfter  *Date
	ExpiresBefore *Date
	Expired       *bool
	Limit         int
	Offset        int
}

// Filter resolves q against today. Expired=true narrows the upper bound to
// yesterday, Expired=false narrows the lower bound to today.
func (q Query) Filter(today Date) *Filter {
	f := &Filter{
		Type:          q.Type,
		Search:        q.Search,
		ExpiresAfter:  q.ExpiresAfter,
		ExpiresBefore: q.ExpiresBefore,
		Limit:         q.Limit,
		Offset:        q.Offset,
	}
	if q.Expired == nil {
		return f
	}
	if *q.Expired {
		yesterday := today.AddDays(-1)
		if f.ExpiresBefore == nil || yesterday.Before(*f.ExpiresBefore) {
			f.ExpiresBefore = &yesterday
		}
	} else {
		if f.ExpiresAfter == nil || today.After(*f.ExpiresAfter) {
			t := today
			f.ExpiresAfter = &t
		}
	}
	return f
}

// Matches reports whether p satisfies every criterion of f. Storage
// backends that cannot push a criterion down use it to filter in memory.
func (f *Filter) Matches(p *Policy) bool {
	if f == nil {
		return true
	}
	if f.Type != "" && p.Type != f.Type {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(p.CustomerName), strings.ToLower(f.Search)) {
		return false
	}
	if f.ExpiresAfter != nil && p.ExpiryDate.Before(*f.ExpiresAfter) {
		return false
	}
	if f.ExpiresBefore != nil && p.ExpiryDate.After(*f.ExpiresBefore) {
		return false
	}
	return true
}

// Storage persists policies. Implementations must assign IDs monotonically
// starting at 1 and never reuse the ID of a deleted policy. List returns
// policies in ascending ID order.
type Storage interface {
	// Create assigns p.ID and persists p.
	Create(ctx context.Context, p *Policy) error

	// Get returns the policy with the given ID or a *NotFoundError.
	Get(ctx context.Context, id int64) (*Policy, error)

	// List returns policies matching filter. A nil filter matches all.
	List(ctx context.Context, filter *Filter) ([]*Policy, error)

	// Update replaces every field of the policy with ID p.ID or returns a
	// *NotFoundError.
	Update(ctx context.Context, p *Policy) error

	// Delete removes the policy with the given ID or returns a *NotFoundError.
	Delete(ctx context.Context, id int64) error

	// Count returns the number of policies matching filter.
	Count(ctx context.Context, filter *Filter) (int64, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the backend.
	Close() error
}
