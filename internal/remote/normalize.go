package remote

import (
	"encoding/json"
	"sort"
	"strconv"
)

// Normalize repairs the shape drift introduced by generic document stores:
// arrays stored as index-keyed maps come back as maps, and integers come
// back as float64. It rewrites index-keyed maps into dense slices sorted by
// index and collapses whole-valued floats into int64, recursing through
// maps and slices.
func Normalize(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		if arr, ok := indexKeyedToSlice(v); ok {
			return arr
		}
		out := make(map[string]interface{}, len(v))
		for k, child := range v {
			out[k] = Normalize(child)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, child := range v {
			out[i] = Normalize(child)
		}
		return out
	case float64:
		if v == float64(int64(v)) {
			return int64(v)
		}
		return v
	default:
		return value
	}
}

// indexKeyedToSlice converts {"0": a, "1": b} style maps into []interface{}.
// Every key must parse as a non-negative integer; gaps are tolerated and
// the result is ordered by index.
func indexKeyedToSlice(m map[string]interface{}) ([]interface{}, bool) {
	if len(m) == 0 {
		return nil, false
	}
	type entry struct {
		idx int
		val interface{}
	}
	entries := make([]entry, 0, len(m))
	for k, v := range m {
		idx, err := strconv.Atoi(k)
		if err != nil || idx < 0 {
			return nil, false
		}
		entries = append(entries, entry{idx: idx, val: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].idx < entries[j].idx })
	out := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		out = append(out, Normalize(e.val))
	}
	return out, true
}

// Decode normalizes a generic store value and unmarshals it into out.
func Decode(value interface{}, out interface{}) error {
	b, err := json.Marshal(Normalize(value))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// Encode converts a typed value into the generic shape stores accept.
func Encode(value interface{}) (interface{}, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
