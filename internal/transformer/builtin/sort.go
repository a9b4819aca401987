package builtin

import (
	"fmt"
	"sort"
	"time"

	"retailetl/pkg/records"
)

// SortKey names one sort column.
type SortKey struct {
	Field string
	Desc  bool
}

// SortBy stably sorts records by one or more keys. Nil values sort first in
// both directions; records that compare equal keep their relative order.
type SortBy struct {
	Keys []SortKey
}

// Apply sorts in place and returns the input slice.
func (s SortBy) Apply(in []records.Record) []records.Record {
	if len(s.Keys) == 0 || len(in) < 2 {
		return in
	}
	sort.SliceStable(in, func(i, j int) bool {
		for _, k := range s.Keys {
			c := Compare(in[i][k.Field], in[j][k.Field])
			if c == 0 {
				continue
			}
			// nil placement does not flip with direction.
			if in[i][k.Field] == nil || in[j][k.Field] == nil {
				return c < 0
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return in
}

// Compare orders two cell values: nil < everything, numbers numerically,
// strings lexically, times chronologically, and anything else by its
// formatted text.
func Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if fa, ok := Number(a); ok {
		if fb, ok := Number(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	sa, sb := asText(a), asText(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}

func asText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
