package policy

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Field names as they appear on the wire.
const (
	FieldID           = "policy_id"
	FieldCustomerName = "customer_name"
	FieldType         = "policy_type"
	FieldExpiryDate   = "expiry_date"
	FieldIsExpired    = "is_expired"
)

// Validation messages.
const (
	MsgRequired     = "This field is required."
	MsgNull         = "This field may not be null."
	MsgBlank        = "This field may not be blank."
	MsgNotString    = "Not a valid string."
	MsgDateFormat   = "Date has wrong format. Use one of these formats instead: YYYY-MM-DD."
	msgInvalidType  = "%q is not a valid choice."
	msgMaxLength    = "Ensure this field has no more than %d characters."
	msgDateMinValue = "Ensure this value is greater than or equal to %s."
)

// Value is one candidate field value from a write request. The zero value
// means the field was not supplied.
type Value struct {
	Set     bool   // Key was present
	Null    bool   // Explicit null
	Raw     string // String form of the value
	Invalid bool   // Present with a type that cannot be a string (bool, object, array)
}

// StringValue returns a supplied string value.
func StringValue(s string) Value {
	return Value{Set: true, Raw: s}
}

// Draft carries the writable fields of a create or update request before
// validation. Read-only fields (policy_id, is_expired) have no place here
// and are dropped by the decoder.
type Draft struct {
	CustomerName Value
	Type         Value
	ExpiryDate   Value
}

// Changes is the validated, typed form of a Draft. Nil members were not
// supplied and leave the stored value untouched.
type Changes struct {
	CustomerName *string
	Type         *Type
	ExpiryDate   *Date
}

// Apply writes the supplied members of c onto p.
func (c *Changes) Apply(p *Policy) {
	if c.CustomerName != nil {
		p.CustomerName = *c.CustomerName
	}
	if c.Type != nil {
		p.Type = *c.Type
	}
	if c.ExpiryDate != nil {
		p.ExpiryDate = *c.ExpiryDate
	}
}

// Validate checks d against the field invariants. With partial set, fields
// that were not supplied are skipped; otherwise every field is required.
// today is the earliest acceptable expiry date. All failing fields are
// reported together in the returned *ValidationError.
func (d *Draft) Validate(today Date, partial bool) (*Changes, error) {
	errs := FieldErrors{}
	changes := &Changes{}

	if name, ok := validateCustomerName(d.CustomerName, partial, errs); ok {
		changes.CustomerName = &name
	}
	if t, ok := validateType(d.Type, partial, errs); ok {
		changes.Type = &t
	}
	if date, ok := validateExpiryDate(d.ExpiryDate, today, partial, errs); ok {
		changes.ExpiryDate = &date
	}

	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}
	return changes, nil
}

// presence reports whether v should be checked further, recording a
// required or null failure when it cannot be.
func presence(field string, v Value, partial bool, errs FieldErrors) bool {
	switch {
	case !v.Set:
		if !partial {
			errs.Add(field, MsgRequired)
		}
		return false
	case v.Null:
		errs.Add(field, MsgNull)
		return false
	}
	return true
}

func validateCustomerName(v Value, partial bool, errs FieldErrors) (string, bool) {
	if !presence(FieldCustomerName, v, partial, errs) {
		return "", false
	}
	if v.Invalid {
		errs.Add(FieldCustomerName, MsgNotString)
		return "", false
	}
	name := strings.TrimSpace(v.Raw)
	if name == "" {
		errs.Add(FieldCustomerName, MsgBlank)
		return "", false
	}
	if utf8.RuneCountInString(name) > MaxCustomerNameLength {
		errs.Add(FieldCustomerName, fmt.Sprintf(msgMaxLength, MaxCustomerNameLength))
		return "", false
	}
	return name, true
}

func validateType(v Value, partial bool, errs FieldErrors) (Type, bool) {
	if !presence(FieldType, v, partial, errs) {
		return "", false
	}
	t, err := ParseType(v.Raw)
	if v.Invalid || err != nil {
		errs.Add(FieldType, fmt.Sprintf(msgInvalidType, v.Raw))
		return "", false
	}
	return t, true
}

func validateExpiryDate(v Value, today Date, partial bool, errs FieldErrors) (Date, bool) {
	if !presence(FieldExpiryDate, v, partial, errs) {
		return Date{}, false
	}
	if v.Invalid {
		errs.Add(FieldExpiryDate, MsgDateFormat)
		return Date{}, false
	}
	date, err := ParseDate(strings.TrimSpace(v.Raw))
	if err != nil {
		errs.Add(FieldExpiryDate, MsgDateFormat)
		return Date{}, false
	}
	if date.Before(today) {
		errs.Add(FieldExpiryDate, fmt.Sprintf(msgDateMinValue, today))
		return Date{}, false
	}
	return date, true
}
