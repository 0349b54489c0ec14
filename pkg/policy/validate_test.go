package policy

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

var testToday = MustParseDate("2025-06-15")

func validDraft() *Draft {
	return &Draft{
		CustomerName: StringValue("Ann"),
		Type:         StringValue("AUTO"),
		ExpiryDate:   StringValue("2025-06-15"),
	}
}

func fieldErrors(t *testing.T, err error) FieldErrors {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected *ValidationError, got %T (%v)", err, err)
	}
	return verr.Fields
}

func TestDraftValidate_Complete(t *testing.T) {
	changes, err := validDraft().Validate(testToday, false)
	if err != nil {
		t.Fatalf("Expected valid draft, got %v", err)
	}

	var p Policy
	changes.Apply(&p)
	if p.CustomerName != "Ann" || p.Type != TypeAuto || p.ExpiryDate != testToday {
		t.Errorf("Unexpected policy after apply: %+v", p)
	}
}

func TestDraftValidate_FieldFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *Draft)
		field  string
		reason string
	}{
		{"missing name", func(d *Draft) { d.CustomerName = Value{} }, FieldCustomerName, MsgRequired},
		{"null name", func(d *Draft) { d.CustomerName = Value{Set: true, Null: true} }, FieldCustomerName, MsgNull},
		{"empty name", func(d *Draft) { d.CustomerName = StringValue("") }, FieldCustomerName, MsgBlank},
		{"whitespace name", func(d *Draft) { d.CustomerName = StringValue("   ") }, FieldCustomerName, MsgBlank},
		{"object name", func(d *Draft) { d.CustomerName = Value{Set: true, Invalid: true, Raw: "{}"} }, FieldCustomerName, MsgNotString},
		{"long name", func(d *Draft) { d.CustomerName = StringValue(strings.Repeat("x", 256)) }, FieldCustomerName, "Ensure this field has no more than 255 characters."},
		{"missing type", func(d *Draft) { d.Type = Value{} }, FieldType, MsgRequired},
		{"unknown type", func(d *Draft) { d.Type = StringValue("BOAT") }, FieldType, `"BOAT" is not a valid choice.`},
		{"lowercase type", func(d *Draft) { d.Type = StringValue("auto") }, FieldType, `"auto" is not a valid choice.`},
		{"empty type", func(d *Draft) { d.Type = StringValue("") }, FieldType, `"" is not a valid choice.`},
		{"missing expiry", func(d *Draft) { d.ExpiryDate = Value{} }, FieldExpiryDate, MsgRequired},
		{"null expiry", func(d *Draft) { d.ExpiryDate = Value{Set: true, Null: true} }, FieldExpiryDate, MsgNull},
		{"malformed expiry", func(d *Draft) { d.ExpiryDate = StringValue("15/06/2025") }, FieldExpiryDate, MsgDateFormat},
		{"impossible expiry", func(d *Draft) { d.ExpiryDate = StringValue("2025-02-30") }, FieldExpiryDate, MsgDateFormat},
		{"past expiry", func(d *Draft) { d.ExpiryDate = StringValue("2025-06-14") }, FieldExpiryDate, "Ensure this value is greater than or equal to 2025-06-15."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.mutate(d)

			_, err := d.Validate(testToday, false)
			fe := fieldErrors(t, err)

			if len(fe) != 1 {
				t.Errorf("Expected exactly one failing field, got %v", fe)
			}
			if got := fe[tt.field]; !reflect.DeepEqual(got, []string{tt.reason}) {
				t.Errorf("Expected %s: [%q], got %v", tt.field, tt.reason, got)
			}
		})
	}
}

func TestDraftValidate_ReportsAllFailures(t *testing.T) {
	d := &Draft{
		Type:       StringValue("HOME"),
		ExpiryDate: StringValue("2020-01-01"),
	}

	_, err := d.Validate(testToday, false)
	fe := fieldErrors(t, err)

	if got := fe.Fields(); !reflect.DeepEqual(got, []string{FieldCustomerName, FieldExpiryDate}) {
		t.Errorf("Expected customer_name and expiry_date to fail, got %v", got)
	}
	if !strings.Contains(err.Error(), "customer_name") || !strings.Contains(err.Error(), "expiry_date") {
		t.Errorf("Expected both fields in error message, got %q", err.Error())
	}
}

func TestDraftValidate_TrimsName(t *testing.T) {
	d := validDraft()
	d.CustomerName = StringValue("  Ann  ")

	changes, err := d.Validate(testToday, false)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if *changes.CustomerName != "Ann" {
		t.Errorf("Expected trimmed name, got %q", *changes.CustomerName)
	}
}

func TestDraftValidate_NameLengthCountsCharacters(t *testing.T) {
	d := validDraft()
	d.CustomerName = StringValue(strings.Repeat("é", MaxCustomerNameLength))

	if _, err := d.Validate(testToday, false); err != nil {
		t.Errorf("Expected 255 multi-byte characters to be accepted, got %v", err)
	}
}

func TestDraftValidate_Partial(t *testing.T) {
	t.Run("empty draft is valid", func(t *testing.T) {
		changes, err := (&Draft{}).Validate(testToday, true)
		if err != nil {
			t.Fatalf("Expected empty partial draft to validate, got %v", err)
		}
		if changes.CustomerName != nil || changes.Type != nil || changes.ExpiryDate != nil {
			t.Errorf("Expected no changes, got %+v", changes)
		}
	})

	t.Run("supplied expiry is still checked", func(t *testing.T) {
		d := &Draft{ExpiryDate: StringValue("2025-06-14")}
		_, err := d.Validate(testToday, true)
		fe := fieldErrors(t, err)
		if _, ok := fe[FieldExpiryDate]; !ok || len(fe) != 1 {
			t.Errorf("Expected only expiry_date to fail, got %v", fe)
		}
	})

	t.Run("only supplied fields change", func(t *testing.T) {
		p := Policy{ID: 7, CustomerName: "Old", Type: TypeLife, ExpiryDate: MustParseDate("2020-01-01")}
		changes, err := (&Draft{CustomerName: StringValue("New")}).Validate(testToday, true)
		if err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		changes.Apply(&p)
		if p.CustomerName != "New" || p.Type != TypeLife || p.ExpiryDate.String() != "2020-01-01" {
			t.Errorf("Unexpected policy after partial apply: %+v", p)
		}
	})
}

func TestDraftValidate_ExpiryProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		today := dateGen().Draw(t, "today")
		delta := rapid.IntRange(-1000, 1000).Draw(t, "delta")
		partial := rapid.Bool().Draw(t, "partial")

		d := validDraft()
		d.ExpiryDate = StringValue(today.AddDays(delta).String())

		_, err := d.Validate(today, partial)
		if delta < 0 && err == nil {
			t.Fatalf("expiry %d days before today was accepted", -delta)
		}
		if delta >= 0 && err != nil {
			t.Fatalf("expiry %d days after today was rejected: %v", delta, err)
		}
	})
}

func TestParseType(t *testing.T) {
	for _, typ := range Types() {
		got, err := ParseType(string(typ))
		if err != nil || got != typ {
			t.Errorf("ParseType(%q) = %q, %v", typ, got, err)
		}
		if typ.Label() == string(typ) {
			t.Errorf("Expected a display label for %s", typ)
		}
	}

	if _, err := ParseType("Home"); err == nil {
		t.Error("Expected ParseType to be case-sensitive")
	}
}

func TestPolicy_String(t *testing.T) {
	p := &Policy{ID: 3, CustomerName: "Ann", Type: TypeTravel}
	if got := p.String(); got != "3 - Ann - TRAVEL" {
		t.Errorf("Expected %q, got %q", "3 - Ann - TRAVEL", got)
	}
}

func TestQuery_Filter(t *testing.T) {
	today := MustParseDate("2025-06-15")
	yes, no := true, false

	f := Query{Expired: &yes}.Filter(today)
	if f.ExpiresBefore == nil || f.ExpiresBefore.String() != "2025-06-14" || f.ExpiresAfter != nil {
		t.Errorf("Expected expired=true to bound by yesterday, got %+v", f)
	}

	f = Query{Expired: &no}.Filter(today)
	if f.ExpiresAfter == nil || *f.ExpiresAfter != today || f.ExpiresBefore != nil {
		t.Errorf("Expected expired=false to bound by today, got %+v", f)
	}

	earlier := MustParseDate("2025-01-01")
	f = Query{Expired: &yes, ExpiresBefore: &earlier}.Filter(today)
	if *f.ExpiresBefore != earlier {
		t.Errorf("Expected tighter explicit bound to win, got %s", f.ExpiresBefore)
	}

	later := MustParseDate("2030-01-01")
	f = Query{Expired: &no, ExpiresAfter: &later}.Filter(today)
	if *f.ExpiresAfter != later {
		t.Errorf("Expected tighter explicit bound to win, got %s", f.ExpiresAfter)
	}
}

func TestFilter_Matches(t *testing.T) {
	p := &Policy{CustomerName: "Ann Smith", Type: TypeAuto, ExpiryDate: MustParseDate("2025-06-15")}

	var nilFilter *Filter
	if !nilFilter.Matches(p) {
		t.Error("Expected nil filter to match")
	}
	if !(&Filter{Search: "smi"}).Matches(p) {
		t.Error("Expected case-insensitive search to match")
	}
	if (&Filter{Type: TypeHome}).Matches(p) {
		t.Error("Expected type mismatch to exclude")
	}
}
