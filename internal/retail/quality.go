package retail

import (
	"math"

	"retailetl/internal/transformer/builtin"
)

// Tolerance is the currency difference above which value and total are
// considered inconsistent with their defining formulas.
const Tolerance = 0.01

// Quality report keys.
const (
	MetricDuplicateRecords       = "duplicate_records"
	MetricCalculationErrors      = "calculation_errors"
	MetricTotalCalculationErrors = "total_calculation_errors"
	MetricMissingEmails          = "missing_emails"
	MetricMissingCustomerNames   = "missing_customer_names"
)

// QualityReport maps metric names to counts.
type QualityReport map[string]int

type metric struct {
	name  string
	needs []string
	count func(t Table) int
}

var qualityMetrics = []metric{
	{
		// Coarser than the cleaner's line-item key: rows sharing an order
		// number count, multi-item orders included.
		name:  MetricDuplicateRecords,
		needs: []string{ColOrderID},
		count: func(t Table) int { return t.Len() - builtin.Distinct(t.Rows, []string{ColOrderID}) },
	},
	{
		name:  MetricCalculationErrors,
		needs: []string{ColQtyOrdered, ColPrice, ColValue},
		count: func(t Table) int {
			n := 0
			for _, r := range t.Rows {
				if !within(r[ColQtyOrdered], r[ColPrice], r[ColValue], func(q, p, v float64) float64 { return q*p - v }) {
					n++
				}
			}
			return n
		},
	},
	{
		name:  MetricTotalCalculationErrors,
		needs: []string{ColValue, ColDiscount, ColTotal},
		count: func(t Table) int {
			n := 0
			for _, r := range t.Rows {
				if !within(r[ColValue], r[ColDiscount], r[ColTotal], func(v, d, tot float64) float64 { return v - d - tot }) {
					n++
				}
			}
			return n
		},
	},
	{
		name:  MetricMissingEmails,
		needs: []string{ColEmail},
		count: func(t Table) int { return countNil(t, ColEmail) },
	},
	{
		name:  MetricMissingCustomerNames,
		needs: []string{ColFirstName},
		count: func(t Table) int { return countNil(t, ColFirstName) },
	},
}

// Analyze computes the quality report of a raw table without modifying it.
// A metric whose columns are absent reports 0 and a warning is recorded;
// the remaining metrics are still computed.
func Analyze(t Table, sink Sink) QualityReport {
	em := newEmitter(sink, StageQuality)
	schema := t.Schema()
	report := make(QualityReport, len(qualityMetrics))
	for _, m := range qualityMetrics {
		if missing := schema.Missing(m.needs...); len(missing) > 0 {
			report[m.name] = 0
			em.warn("could not compute quality metric", map[string]any{"metric": m.name, "missing_columns": missing})
			continue
		}
		report[m.name] = m.count(t)
	}
	fields := make(map[string]any, len(report))
	for k, v := range report {
		fields[k] = v
	}
	em.info("quality report", fields)
	return report
}

// within coerces three operands and reports whether |f(a,b,c)| <= Tolerance.
// An operand that cannot be coerced makes the row inconsistent.
func within(a, b, c any, f func(x, y, z float64) float64) bool {
	x, ok1 := builtin.ToFloat(a)
	y, ok2 := builtin.ToFloat(b)
	z, ok3 := builtin.ToFloat(c)
	if !ok1 || !ok2 || !ok3 {
		return false
	}
	return math.Abs(f(x, y, z)) <= Tolerance
}

func countNil(t Table, col string) int {
	n := 0
	for _, r := range t.Rows {
		if r[col] == nil {
			n++
		}
	}
	return n
}
