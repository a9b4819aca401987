// Package transformer defines the batch transformation contract used by the
// cleaning stage. A transformer receives the whole in-memory row set and
// returns the (possibly shorter, possibly reordered) row set.
package transformer

import "retailetl/pkg/records"

// Transformer rewrites a batch of records. Implementations may mutate the
// records in place and may reuse the input slice for their output.
type Transformer interface {
	Apply([]records.Record) []records.Record
}

// Func adapts a plain function to the Transformer interface.
type Func func([]records.Record) []records.Record

// Apply calls f(in).
func (f Func) Apply(in []records.Record) []records.Record { return f(in) }

// Chain is an ordered list of transformers. Order matters: each step sees
// the output of the previous one.
type Chain []Transformer

// Apply runs every transformer in order.
func (c Chain) Apply(in []records.Record) []records.Record {
	out := in
	for _, t := range c {
		out = t.Apply(out)
	}
	return out
}

// Observed wraps a Transformer and reports the row counts before and after
// it ran. It is used to attach per-step diagnostics without coupling the
// step itself to a logger.
type Observed struct {
	Name  string
	Step  Transformer
	After func(name string, before, after int)
}

// Apply runs the wrapped step and invokes After with the row counts.
func (o Observed) Apply(in []records.Record) []records.Record {
	before := len(in)
	out := o.Step.Apply(in)
	if o.After != nil {
		o.After(o.Name, before, len(out))
	}
	return out
}
