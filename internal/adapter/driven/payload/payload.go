// Package payload holds the helpers both provider normalizers use to read
// pre-flattened map[string]any payloads (replayed fixtures, decoded JSON) with
// the same bound checks they apply to SDK objects.
package payload

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"time"
)

const (
	MinPerPage = 1
	MaxPerPage = 100
)

// ClampPage bounds page to >= 1 and perPage to [MinPerPage, MaxPerPage].
func ClampPage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < MinPerPage {
		perPage = MinPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}

// String returns m[key] when it is a string, "" otherwise.
func String(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// FirstString returns the first non-empty string among keys.
func FirstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := String(m, k); s != "" {
			return s
		}
	}
	return ""
}

// OptString returns nil when key is absent, null or not a string.
func OptString(m map[string]any, key string) *string {
	s, ok := m[key].(string)
	if !ok {
		return nil
	}
	return &s
}

// Bool returns m[key] when it is a bool, false otherwise.
func Bool(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

// Int64 reads a numeric value of any JSON-ish representation. Missing,
// malformed and negative values all become 0.
func Int64(m map[string]any, key string) int64 {
	var n int64
	switch v := m[key].(type) {
	case int:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		n = int64(v)
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return 0
		}
		n = parsed
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0
		}
		n = parsed
	}
	return NonNegative(n)
}

// Int is Int64 narrowed to int.
func Int(m map[string]any, key string) int {
	return int(Int64(m, key))
}

// ID renders a provider id, numeric or string, as a string.
func ID(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	}
	if n := Int64(m, key); n > 0 {
		return strconv.FormatInt(n, 10)
	}
	return ""
}

// Time accepts a time.Time, *time.Time or RFC 3339 string.
func Time(m map[string]any, key string) *time.Time {
	switch v := m[key].(type) {
	case time.Time:
		if v.IsZero() {
			return nil
		}
		return &v
	case *time.Time:
		if v == nil || v.IsZero() {
			return nil
		}
		t := *v
		return &t
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil
		}
		return &t
	}
	return nil
}

// Map returns the nested object at key, or nil.
func Map(m map[string]any, key string) map[string]any {
	nested, _ := m[key].(map[string]any)
	return nested
}

// NonNegative clamps n to 0 from below.
func NonNegative[T ~int | ~int64](n T) T {
	if n < 0 {
		return 0
	}
	return n
}

// Languages orders language names by share, largest first, breaking ties by
// name. It never returns nil.
func Languages(shares map[string]float64) []string {
	names := make([]string, 0, len(shares))
	for name := range shares {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if shares[names[i]] != shares[names[j]] {
			return shares[names[i]] > shares[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// IntPtr returns &n, or nil when n is 0.
func IntPtr(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
