package model

import (
	"encoding/json"
	"fmt"
	"sort"
)

// StringSet is an unordered set of strings. The search index renders a
// single-element set as a bare string, so both shapes decode.
type StringSet []string

// UnmarshalJSON implements json.Unmarshaler
func (s *StringSet) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = nil
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = StringSet{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("string set: %w", err)
	}
	*s = many
	return nil
}

// MarshalJSON renders a nil set as [] rather than null.
func (s StringSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

// Normalize returns the set sorted with duplicates and empty entries
// removed. The result is never nil.
func (s StringSet) Normalize() StringSet {
	out := make(StringSet, 0, len(s))
	seen := make(map[string]struct{}, len(s))
	for _, v := range s {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether v is in the set.
func (s StringSet) Contains(v string) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}
