package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"policykeeper-hq/policykeeper/pkg/policy"
)

// Supported request body media types.
const (
	MediaTypeJSON      = "application/json"
	MediaTypeForm      = "application/x-www-form-urlencoded"
	MediaTypeMultipart = "multipart/form-data"

	maxMultipartMemory = 1 << 20
)

// List filter query parameters.
const (
	ParamType          = "policy_type"
	ParamSearch        = "search"
	ParamExpiryAfter   = "expiry_after"
	ParamExpiryBefore  = "expiry_before"
	ParamExpired       = "expired"
	msgInvalidBoolean  = "Must be a valid boolean."
	nonFieldErrorsKey  = "non_field_errors"
	msgExpectedObject  = "Invalid data. Expected a dictionary, but got %s."
	msgUnsupportedType = "Unsupported media type \"%s\" in request."
)

// RequestError is a client error found while reading a request, before the
// policy service is involved.
type RequestError struct {
	Status int
	Detail string
	Fields policy.FieldErrors
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return (&policy.ValidationError{Fields: e.Fields}).Error()
}

// DecodeDraft reads the writable policy fields from a JSON, form or multipart
// request body. An empty body yields an empty draft; the service reports the
// missing fields.
func DecodeDraft(r *http.Request) (*policy.Draft, error) {
	contentType := r.Header.Get("Content-Type")
	mediaType := ""
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return nil, unsupportedMediaType(contentType)
		}
		mediaType = mt
	}

	switch {
	case mediaType == "" || mediaType == MediaTypeJSON || strings.HasSuffix(mediaType, "+json"):
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		return decodeJSONDraft(body)

	case mediaType == MediaTypeForm:
		if err := r.ParseForm(); err != nil {
			return nil, formError(err)
		}
		return formDraft(r.PostForm), nil

	case mediaType == MediaTypeMultipart:
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, formError(err)
		}
		return formDraft(url.Values(r.MultipartForm.Value)), nil

	default:
		return nil, unsupportedMediaType(mediaType)
	}
}

func unsupportedMediaType(mediaType string) error {
	return &RequestError{
		Status: http.StatusUnsupportedMediaType,
		Detail: fmt.Sprintf(msgUnsupportedType, mediaType),
	}
}

// formError keeps body size errors intact and reports anything else as a
// malformed body.
func formError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return &RequestError{
		Status: http.StatusBadRequest,
		Detail: "Form parse error - " + err.Error(),
	}
}

func decodeJSONDraft(body []byte) (*policy.Draft, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return &policy.Draft{}, nil
	}

	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &RequestError{
			Status: http.StatusBadRequest,
			Detail: "JSON parse error - " + err.Error(),
		}
	}
	if body[0] != '{' {
		fe := policy.FieldErrors{}
		fe.Add(nonFieldErrorsKey, fmt.Sprintf(msgExpectedObject, jsonKind(body)))
		return nil, &RequestError{Status: http.StatusBadRequest, Fields: fe}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, &RequestError{
			Status: http.StatusBadRequest,
			Detail: "JSON parse error - " + err.Error(),
		}
	}

	return &policy.Draft{
		CustomerName: jsonValue(fields, policy.FieldCustomerName),
		Type:         jsonValue(fields, policy.FieldType),
		ExpiryDate:   jsonValue(fields, policy.FieldExpiryDate),
	}, nil
}

// jsonValue converts one JSON member. Strings are taken as is and numbers
// by their literal text; booleans, objects and arrays are marked invalid.
func jsonValue(fields map[string]json.RawMessage, name string) policy.Value {
	raw, ok := fields[name]
	if !ok {
		return policy.Value{}
	}

	switch raw[0] {
	case 'n':
		return policy.Value{Set: true, Null: true}
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return policy.Value{Set: true, Invalid: true, Raw: string(raw)}
		}
		return policy.StringValue(s)
	case 't', 'f', '{', '[':
		return policy.Value{Set: true, Invalid: true, Raw: string(raw)}
	default:
		return policy.StringValue(string(raw))
	}
}

func jsonKind(body []byte) string {
	switch body[0] {
	case '[':
		return "list"
	case '"':
		return "str"
	case 't', 'f':
		return "bool"
	case 'n':
		return "null"
	default:
		if bytes.ContainsAny(body, ".eE") {
			return "float"
		}
		return "int"
	}
}

func formDraft(values url.Values) *policy.Draft {
	value := func(name string) policy.Value {
		if vs, ok := values[name]; ok && len(vs) > 0 {
			return policy.StringValue(vs[0])
		}
		return policy.Value{}
	}
	return &policy.Draft{
		CustomerName: value(policy.FieldCustomerName),
		Type:         value(policy.FieldType),
		ExpiryDate:   value(policy.FieldExpiryDate),
	}
}

// ParseQuery reads the list filters from query parameters. Empty parameters
// are ignored. Every malformed parameter is reported in one error.
func ParseQuery(values url.Values) (policy.Query, error) {
	var q policy.Query
	errs := policy.FieldErrors{}

	if v := values.Get(ParamType); v != "" {
		t, err := policy.ParseType(v)
		if err != nil {
			errs.Add(ParamType, fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", v))
		} else {
			q.Type = t
		}
	}

	q.Search = strings.TrimSpace(values.Get(ParamSearch))

	for _, p := range []struct {
		name string
		dst  **policy.Date
	}{
		{ParamExpiryAfter, &q.ExpiresAfter},
		{ParamExpiryBefore, &q.ExpiresBefore},
	} {
		v := values.Get(p.name)
		if v == "" {
			continue
		}
		d, err := policy.ParseDate(v)
		if err != nil {
			errs.Add(p.name, "Enter a valid date.")
			continue
		}
		*p.dst = &d
	}

	if v := values.Get(ParamExpired); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs.Add(ParamExpired, msgInvalidBoolean)
		} else {
			q.Expired = &b
		}
	}

	if len(errs) > 0 {
		return policy.Query{}, &RequestError{Status: http.StatusBadRequest, Fields: errs}
	}
	return q, nil
}
