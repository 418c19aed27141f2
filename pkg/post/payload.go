package post

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Payload is one raw post object as returned by the API.
// Numbers are kept as json.Number so large IDs survive untouched.
type Payload map[string]interface{}

// Decode parses a single JSON object into a Payload
func Decode(data []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode post payload: %w", err)
	}
	return p, nil
}

// Lookup walks nested objects along keys. It reports false when any key is
// missing or an intermediate value is not an object. With no keys it returns
// the payload itself.
func Lookup(p Payload, keys ...string) (interface{}, bool) {
	if p == nil {
		return nil, false
	}

	var current interface{} = map[string]interface{}(p)
	for _, key := range keys {
		var m map[string]interface{}
		switch v := current.(type) {
		case map[string]interface{}:
			m = v
		case Payload:
			m = v
		default:
			return nil, false
		}

		next, ok := m[key]
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// LookupString is Lookup followed by stringValue
func LookupString(p Payload, keys ...string) (string, bool) {
	v, ok := Lookup(p, keys...)
	if !ok {
		return "", false
	}
	return stringValue(v)
}

// stringValue renders scalars the way IDs should look. null and nested
// values are treated as absent.
func stringValue(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}
