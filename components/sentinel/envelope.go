package sentinel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ettle/strcase"
)

// ErrMalformedEnvelope reports a response body that is not valid JSON.
var ErrMalformedEnvelope = errors.New("sentinel: malformed response envelope")

// Unwrap applies the `json.data ?? json` policy: when the document is an object with a
// non-null data member the member is returned, otherwise the document itself.
func Unwrap(raw json.RawMessage) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(raw) {
		return nil, ErrMalformedEnvelope
	}
	obj, ok := asObject(raw)
	if !ok {
		return raw, nil
	}
	if data, ok := lookupKey(obj, "data"); ok && !isNull(data) {
		return data, nil
	}
	return raw, nil
}

// Pick unwraps the envelope and then returns the first present member named by keys.
// Key matching ignores camelCase/snake_case differences. When no key matches the
// unwrapped document is returned.
func Pick(raw json.RawMessage, keys ...string) (json.RawMessage, error) {
	doc, err := Unwrap(raw)
	if err != nil {
		return nil, err
	}
	obj, ok := asObject(doc)
	if !ok {
		return doc, nil
	}
	for _, key := range keys {
		if value, ok := lookupKey(obj, key); ok && !isNull(value) {
			return value, nil
		}
	}
	return doc, nil
}

// DecodeList normalizes a list payload. It accepts a bare array, {data:[...]},
// {key:[...]} and {data:{key:[...]}}. Any other well-formed shape yields an empty list.
func DecodeList[T any](raw json.RawMessage, keys ...string) ([]T, error) {
	doc, err := Unwrap(raw)
	if err != nil {
		return []T{}, err
	}
	candidate := doc
	if obj, ok := asObject(doc); ok {
		candidate = nil
		for _, key := range keys {
			if value, ok := lookupKey(obj, key); ok && isArray(value) {
				candidate = value
				break
			}
		}
	}
	if !isArray(candidate) {
		return []T{}, nil
	}
	out := []T{}
	if err := decodeCanonical(candidate, &out); err != nil {
		return []T{}, err
	}
	return out, nil
}

// DecodeObject normalizes an object payload using the same envelope policy as Pick.
// A payload that is not an object yields the zero value.
func DecodeObject[T any](raw json.RawMessage, keys ...string) (T, error) {
	var out T
	doc, err := Pick(raw, keys...)
	if err != nil {
		return out, err
	}
	if _, ok := asObject(doc); !ok {
		return out, nil
	}
	if err := decodeCanonical(doc, &out); err != nil {
		return out, err
	}
	return out, nil
}

// CanonicalKey folds camelCase, PascalCase and snake_case names onto snake_case.
func CanonicalKey(key string) string {
	return strings.ToLower(strcase.ToSnake(strings.TrimSpace(key)))
}

func decodeCanonical(raw json.RawMessage, target any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	normalized, err := json.Marshal(canonicalize(generic))
	if err != nil {
		return fmt.Errorf("sentinel: re-encode payload: %w", err)
	}
	if err := json.Unmarshal(normalized, target); err != nil {
		return fmt.Errorf("sentinel: decode payload: %w", err)
	}
	return nil
}

func canonicalize(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[CanonicalKey(key)] = canonicalize(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = canonicalize(item)
		}
		return out
	default:
		return v
	}
}

func asObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func lookupKey(obj map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	if value, ok := obj[key]; ok {
		return value, true
	}
	want := CanonicalKey(key)
	for name, value := range obj {
		if CanonicalKey(name) == want {
			return value, true
		}
	}
	return nil, false
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// Number accepts JSON numbers, numeric strings and null. Unparseable strings decode to 0.
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = Number(f)
		return nil
	}
	if bytes.Equal(data, []byte("true")) {
		*n = 1
		return nil
	}
	if bytes.Equal(data, []byte("false")) {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("sentinel: invalid number %s", data)
	}
	*n = Number(f)
	return nil
}

// Float returns the value as float64.
func (n Number) Float() float64 { return float64(n) }

// Int returns the value truncated to int.
func (n Number) Int() int { return int(n) }

// Text accepts JSON strings, numbers and booleans, keeping their literal form.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		*t = ""
		return nil
	}
	*t = Text(data)
	return nil
}

// String returns the text value.
func (t Text) String() string { return string(t) }

// Flag accepts JSON booleans, "true"/"false"/"on"/"yes" strings and 0/1 numbers.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes", "on", "1", "enabled", "active":
			*f = true
		default:
			*f = false
		}
		return nil
	}
	switch string(data) {
	case "true":
		*f = true
	case "false", "null", "":
		*f = false
	default:
		n, err := strconv.ParseFloat(string(data), 64)
		*f = Flag(err == nil && n != 0)
	}
	return nil
}

// Bool returns the flag value.
func (f Flag) Bool() bool { return bool(f) }
