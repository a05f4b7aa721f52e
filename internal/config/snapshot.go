package config

import (
	"math"
	"reflect"
	"sort"
	"time"
)

// Snapshot is one complete parsed configuration. Snapshots are never modified after
// they are published; a reload produces a new one.
type Snapshot struct {
	Section

	// Version orders snapshots published by a store. The initial load is 0.
	Version uint64
	Path    string
	// ModTime is the file's modification time when it was read. Watchers use it as
	// the baseline for change detection.
	ModTime  time.Time
	LoadedAt time.Time
}

// WithVersion returns a copy of s carrying version v. The underlying mapping is shared.
func (s Snapshot) WithVersion(v uint64) Snapshot {
	s.Version = v
	return s
}

// Section is a read-only view over a mapping. Lookups never fail: absent keys and
// type mismatches return the supplied default. Values handed out are deep copies.
type Section struct {
	values map[string]any
}

// NewSection wraps a copy of values.
func NewSection(values map[string]any) Section {
	if values == nil {
		return Section{}
	}
	return Section{values: cloneMap(values)}
}

// Get returns the value stored under key, or def when the key is absent.
func (s Section) Get(key string, def any) any {
	v, ok := s.values[key]
	if !ok {
		return def
	}
	return cloneValue(v)
}

// Has reports whether key is present, even with a null value.
func (s Section) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Len returns the number of top-level keys.
func (s Section) Len() int {
	return len(s.values)
}

// Keys returns the top-level keys in sorted order.
func (s Section) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a deep copy of the whole mapping.
func (s Section) Map() map[string]any {
	return cloneMap(s.values)
}

// Sub returns the nested mapping under key, or an empty section.
func (s Section) Sub(key string) Section {
	if m, ok := s.values[key].(map[string]any); ok {
		return Section{values: m}
	}
	return Section{}
}

func (s Section) GetString(key, def string) string {
	if v, ok := s.values[key].(string); ok {
		return v
	}
	return def
}

func (s Section) GetBool(key string, def bool) bool {
	if v, ok := s.values[key].(bool); ok {
		return v
	}
	return def
}

// GetInt accepts any integral number, including floats without a fractional part.
func (s Section) GetInt(key string, def int) int {
	switch v := s.values[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		if v <= math.MaxInt {
			return int(v)
		}
	case float64:
		if v == math.Trunc(v) && v >= math.MinInt && v <= math.MaxInt {
			return int(v)
		}
	}
	return def
}

func (s Section) GetFloat(key string, def float64) float64 {
	switch v := s.values[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	}
	return def
}

// GetDuration parses Go duration strings ("1.5s") and treats bare numbers as seconds.
func (s Section) GetDuration(key string, def time.Duration) time.Duration {
	switch v := s.values[key].(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	case int, int64, uint64, float64:
		return time.Duration(s.GetFloat(key, 0) * float64(time.Second))
	}
	return def
}

// GetStrings returns a sequence of strings. A sequence holding anything else yields def.
func (s Section) GetStrings(key string, def []string) []string {
	items, ok := s.values[key].([]any)
	if !ok {
		return def
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		str, ok := item.(string)
		if !ok {
			return def
		}
		out = append(out, str)
	}
	return out
}

// Equal reports whether both sections hold value-equal mappings.
func (s Section) Equal(other Section) bool {
	if len(s.values) == 0 && len(other.values) == 0 {
		return true
	}
	return reflect.DeepEqual(s.values, other.values)
}

func cloneMap(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}
