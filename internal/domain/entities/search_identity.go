package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// DefaultPlatform is used when a search does not name one
const DefaultPlatform = "instagram"

// FilterEntry is one normalized filter. Value is one of string, int64,
// float64, bool or []string.
type FilterEntry struct {
	Key   string
	Value interface{}
}

// SearchIdentity is the canonical form of a search: filter entries sorted by
// key, pagination excluded. Two semantically equal searches have equal
// identities and therefore equal hashes.
type SearchIdentity struct {
	entries []FilterEntry
}

// NewSearchIdentity builds an identity from entries, sorting them by key.
// Later duplicates of a key replace earlier ones.
func NewSearchIdentity(entries []FilterEntry) SearchIdentity {
	byKey := make(map[string]interface{}, len(entries))
	for _, e := range entries {
		byKey[e.Key] = e.Value
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]FilterEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, FilterEntry{Key: k, Value: byKey[k]})
	}
	return SearchIdentity{entries: out}
}

// Entries returns a copy of the sorted entries
func (s SearchIdentity) Entries() []FilterEntry {
	out := make([]FilterEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of filters
func (s SearchIdentity) Len() int {
	return len(s.entries)
}

// Get returns the value for key
func (s SearchIdentity) Get(key string) (interface{}, bool) {
	i := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].Key >= key })
	if i < len(s.entries) && s.entries[i].Key == key {
		return s.entries[i].Value, true
	}
	return nil, false
}

// String returns the value for key when it is a string
func (s SearchIdentity) String(key string) string {
	v, ok := s.Get(key)
	if !ok {
		return ""
	}
	str, _ := v.(string)
	return str
}

// Int returns the value for key when it is an integer
func (s SearchIdentity) Int(key string) (int64, bool) {
	v, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	i, ok := v.(int64)
	return i, ok
}

// Float returns the value for key as a float (integers are widened)
func (s SearchIdentity) Float(key string) (float64, bool) {
	v, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Strings returns the value for key when it is a string set
func (s SearchIdentity) Strings(key string) []string {
	v, ok := s.Get(key)
	if !ok {
		return nil
	}
	list, _ := v.([]string)
	return list
}

// Platform returns the searched platform, defaulting to instagram
func (s SearchIdentity) Platform() string {
	if p := s.String("platform"); p != "" {
		return p
	}
	return DefaultPlatform
}

// Equal reports whether both identities hold the same filters
func (s SearchIdentity) Equal(other SearchIdentity) bool {
	if len(s.entries) == 0 && len(other.entries) == 0 {
		return true
	}
	return reflect.DeepEqual(s.entries, other.entries)
}

// MarshalJSON writes the identity as a JSON object with keys in sorted order
func (s SearchIdentity) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal filter %s: %w", e.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an identity persisted by MarshalJSON. Integral numbers
// come back as int64, others as float64, arrays as []string.
func (s *SearchIdentity) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	entries := make([]FilterEntry, 0, len(raw))
	for k, v := range raw {
		entries = append(entries, FilterEntry{Key: k, Value: decodeFilterValue(v)})
	}
	*s = NewSearchIdentity(entries)
	return nil
}

func decodeFilterValue(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return val
	}
}

// Pagination is the page window of a search; it is not part of the identity
type Pagination struct {
	Page int `json:"page"`
	Size int `json:"size"`
}

// Offset returns the zero-based index of the first item on the page
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Size
}
