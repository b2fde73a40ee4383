package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Params is the argument passed to a tool: a key/value object when one could
// be decoded from the model's reply, otherwise the opaque payload text.
type Params struct {
	Object map[string]interface{}
	Text   string
}

// ObjectParams wraps a decoded key/value object. A nil map becomes empty.
func ObjectParams(obj map[string]interface{}) Params {
	if obj == nil {
		obj = map[string]interface{}{}
	}
	return Params{Object: obj}
}

// TextParams wraps an opaque payload.
func TextParams(text string) Params {
	return Params{Text: text}
}

// IsObject reports whether the parameters are a key/value object.
func (p Params) IsObject() bool { return p.Object != nil }

// String returns a string field of an object payload.
func (p Params) String(key string) (string, bool) {
	v, ok := p.Object[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	default:
		return fmt.Sprint(t), true
	}
}

// StringOr returns a string field or def when absent or empty.
func (p Params) StringOr(key, def string) string {
	if s, ok := p.String(key); ok {
		return s
	}
	return def
}

// Int returns an integer field, accepting JSON numbers and numeric strings.
func (p Params) Int(key string) (int, bool) {
	v, ok := p.Object[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case int64:
		return int(t), true
	case json.Number:
		i, err := t.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		return i, err == nil
	default:
		return 0, false
	}
}

// MarshalJSON encodes the object, or the text as a JSON string.
func (p Params) MarshalJSON() ([]byte, error) {
	if p.IsObject() {
		return json.Marshal(p.Object)
	}
	return json.Marshal(p.Text)
}

// Map returns the parameters as a generic value for expression environments.
func (p Params) Map() map[string]interface{} {
	if p.IsObject() {
		return p.Object
	}
	return map[string]interface{}{"input": p.Text}
}
