// Package builtin contains reusable transformers for the cleaning stage.
//
// DeDup is the policy-driven de-duplication transformer. It collapses
// duplicate records by a configured key and chooses a winner according to a
// policy:
//
//   - "keep-first"   : keep the earliest occurrence (default)
//   - "keep-last"    : keep the latest occurrence
//   - "most-complete": keep the record with the most non-empty fields;
//     ties break by "keep-first"
//
// Keys: a record's key is the concatenation of the configured fields as
// strings (nil -> "\x00", separator "\x1f"). Two nil values therefore compare
// equal, which matches how duplicate detection treats missing values.
package builtin

import (
	"fmt"
	"sort"
	"strings"

	"retailetl/pkg/records"
)

// DeDup implements a configurable, in-memory de-duplication policy.
type DeDup struct {
	// Keys are the field names that form the identity, e.g.
	// ["order_id","item_id"]. Callers pass every column for exact-row dedup.
	Keys []string

	// Policy selects the winner among duplicates: "keep-first" (default),
	// "keep-last" or "most-complete".
	Policy string
}

// Key builds the dedup key of r over keys. ok is false when r lacks one of
// the key fields entirely.
func Key(r records.Record, keys []string) (key string, ok bool) {
	var b strings.Builder
	for i, k := range keys {
		v, present := r[k]
		if !present {
			return "", false
		}
		if i > 0 {
			b.WriteByte('\x1f')
		}
		switch t := v.(type) {
		case nil:
			b.WriteByte('\x00')
		case string:
			b.WriteString(t)
		default:
			b.WriteString(fmt.Sprint(t))
		}
	}
	return b.String(), true
}

// Apply executes the de-duplication and returns a new slice holding the
// winning records in ascending order of their original position. Records
// missing a key field pass through unchanged after the winners.
func (d DeDup) Apply(in []records.Record) []records.Record {
	if len(in) == 0 || len(d.Keys) == 0 {
		return in
	}

	policy := strings.ToLower(strings.TrimSpace(d.Policy))
	if policy == "" {
		policy = "keep-first"
	}

	type slot struct {
		index int
		score int
	}
	winners := make(map[string]slot, len(in))
	var passthrough []int

	for i, r := range in {
		key, ok := Key(r, d.Keys)
		if !ok {
			passthrough = append(passthrough, i)
			continue
		}
		prev, exists := winners[key]
		switch policy {
		case "keep-last":
			winners[key] = slot{index: i}
		case "most-complete":
			s := slot{index: i, score: completeness(r)}
			if !exists || s.score > prev.score {
				winners[key] = s
			}
		default:
			if !exists {
				winners[key] = slot{index: i}
			}
		}
	}

	indexes := make([]int, 0, len(winners))
	for _, s := range winners {
		indexes = append(indexes, s.index)
	}
	sort.Ints(indexes)

	out := make([]records.Record, 0, len(indexes)+len(passthrough))
	for _, idx := range indexes {
		out = append(out, in[idx])
	}
	for _, idx := range passthrough {
		out = append(out, in[idx])
	}
	return out
}

// completeness counts non-nil, non-empty values.
func completeness(r records.Record) int {
	n := 0
	for _, v := range r {
		if v == nil || v == "" {
			continue
		}
		n++
	}
	return n
}

// Distinct returns the number of distinct keys over keys in rows. Rows
// missing a key field are ignored.
func Distinct(rows []records.Record, keys []string) int {
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if k, ok := Key(r, keys); ok {
			seen[k] = struct{}{}
		}
	}
	return len(seen)
}
