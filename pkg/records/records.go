// Package records defines the row representation shared by parsers,
// transformers and storage loaders.
package records

// Record is a single row keyed by column name. Values are nil, string,
// int64, float64 or time.Time depending on how far the row has travelled
// through the pipeline.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Project returns a new record holding only the listed columns, renamed via
// rename when an entry exists. Columns absent from r are set to nil.
func (r Record) Project(cols []string, rename map[string]string) Record {
	out := make(Record, len(cols))
	for _, c := range cols {
		name := c
		if n, ok := rename[c]; ok {
			name = n
		}
		out[name] = r[c]
	}
	return out
}

// Values returns the values of r in column order, suitable for bulk COPY.
func (r Record) Values(cols []string) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = r[c]
	}
	return out
}
