package storage

import (
	"encoding/json"
)

// normalizeForJSON converts Values and Rows to plain Go values so json.Marshal
// yields numbers, strings and nulls instead of empty objects.
func normalizeForJSON(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case Value:
		return x.Native()
	case Row:
		return x.Native()
	case []Row:
		out := make([][]any, len(x))
		for i, r := range x {
			out[i] = r.Native()
		}
		return out
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, vv := range x {
			m[k] = normalizeForJSON(vv)
		}
		return m
	case []any:
		out := make([]any, len(x))
		for i, vv := range x {
			out[i] = normalizeForJSON(vv)
		}
		return out
	default:
		return v
	}
}

// JSONMarshal marshals v after converting Values and Rows to JSON-friendly
// representations.
func JSONMarshal(v any) ([]byte, error) {
	return json.Marshal(normalizeForJSON(v))
}

// MarshalJSON encodes the value as a JSON number, string or null.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Native())
}
