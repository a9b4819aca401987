package builtin

import "retailetl/pkg/records"

// Positive keeps only records whose listed fields are all strictly positive
// numbers. Nil or non-numeric values fail the predicate.
type Positive struct {
	Fields []string
}

// Apply filters in place by reslicing the input.
func (p Positive) Apply(in []records.Record) []records.Record {
	out := in[:0]
	for _, rec := range in {
		keep := true
		for _, f := range p.Fields {
			v, ok := Number(rec[f])
			if !ok || v <= 0 {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, rec)
		}
	}
	return out
}

// Violations counts, per field, the records holding a number <= 0. Nil and
// non-numeric values are not counted even though Apply drops them.
func (p Positive) Violations(in []records.Record) map[string]int {
	counts := make(map[string]int, len(p.Fields))
	for _, f := range p.Fields {
		counts[f] = 0
	}
	for _, rec := range in {
		for _, f := range p.Fields {
			if v, ok := Number(rec[f]); ok && v <= 0 {
				counts[f]++
			}
		}
	}
	return counts
}

// Drop removes the listed fields from every record.
type Drop struct {
	Fields []string
}

// Apply deletes in place.
func (d Drop) Apply(in []records.Record) []records.Record {
	for _, r := range in {
		for _, f := range d.Fields {
			delete(r, f)
		}
	}
	return in
}
