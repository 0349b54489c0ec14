package policy

import (
	"encoding/json"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"2025-03-14", "2025-03-14", false},
		{"2025-3-4", "2025-03-04", false},
		{"2024-02-29", "2024-02-29", false},
		{"2023-02-29", "", true},
		{"2025-13-01", "", true},
		{"14/03/2025", "", true},
		{"2025-03-14T00:00:00Z", "", true},
		{"", "", true},
		{"tomorrow", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q) failed: %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestDate_Compare(t *testing.T) {
	a := MustParseDate("2025-01-31")
	b := MustParseDate("2025-02-01")

	if !a.Before(b) || a.After(b) {
		t.Errorf("Expected %s before %s", a, b)
	}
	if !b.After(a) || b.Before(a) {
		t.Errorf("Expected %s after %s", b, a)
	}
	if a.Compare(a) != 0 || a.Before(a) || a.After(a) {
		t.Errorf("Expected %s equal to itself", a)
	}
	if got := a.AddDays(1); got != b {
		t.Errorf("Expected %s + 1 day = %s, got %s", a, b, got)
	}
}

func TestDate_JSON(t *testing.T) {
	var v struct {
		D Date `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"d":"2026-07-04"}`), &v); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if v.D.String() != "2026-07-04" {
		t.Errorf("Expected 2026-07-04, got %s", v.D)
	}

	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != `{"d":"2026-07-04"}` {
		t.Errorf("Unexpected encoding: %s", out)
	}

	if err := json.Unmarshal([]byte(`{"d":"07/04/2026"}`), &v); err == nil {
		t.Error("Expected error for non-ISO date")
	}
}

func TestClock_TodayUsesLocation(t *testing.T) {
	instant := time.Date(2025, 6, 30, 23, 30, 0, 0, time.UTC)
	east := time.FixedZone("UTC+2", 2*60*60)

	utc := &Clock{NowFunc: func() time.Time { return instant }}
	local := &Clock{Location: east, NowFunc: func() time.Time { return instant }}

	if got := utc.Today().String(); got != "2025-06-30" {
		t.Errorf("Expected UTC date 2025-06-30, got %s", got)
	}
	if got := local.Today().String(); got != "2025-07-01" {
		t.Errorf("Expected UTC+2 date 2025-07-01, got %s", got)
	}
}

func TestFixedClock(t *testing.T) {
	today := MustParseDate("2025-01-15")
	if got := FixedClock(today).Today(); got != today {
		t.Errorf("Expected %s, got %s", today, got)
	}
}

func TestIsExpired_Boundary(t *testing.T) {
	today := MustParseDate("2025-05-20")

	tests := []struct {
		expiry string
		want   bool
	}{
		{"2025-05-19", true},
		{"2025-05-20", false},
		{"2025-05-21", false},
		{"1999-12-31", true},
	}
	for _, tt := range tests {
		if got := IsExpired(MustParseDate(tt.expiry), today); got != tt.want {
			t.Errorf("IsExpired(%s, %s) = %v, want %v", tt.expiry, today, got, tt.want)
		}
	}
}

// dateGen draws calendar dates between 1900 and 2199.
func dateGen() *rapid.Generator[Date] {
	return rapid.Custom(func(t *rapid.T) Date {
		base := Date{Year: 1900, Month: time.January, Day: 1}
		return base.AddDays(rapid.IntRange(0, 300*366).Draw(t, "offset"))
	})
}

func TestIsExpired_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		today := dateGen().Draw(t, "today")
		delta := rapid.IntRange(-5000, 5000).Draw(t, "delta")
		expiry := today.AddDays(delta)

		p := &Policy{ExpiryDate: expiry}
		view := p.View(today)

		if want := delta < 0; view.IsExpired != want {
			t.Fatalf("expiry %s today %s: is_expired=%v, want %v", expiry, today, view.IsExpired, want)
		}
	})
}

func TestDate_StringParseRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := dateGen().Draw(t, "date")
		parsed, err := ParseDate(d.String())
		if err != nil {
			t.Fatalf("ParseDate(%s) failed: %v", d, err)
		}
		if parsed != d {
			t.Fatalf("round trip changed %v to %v", d, parsed)
		}
	})
}
