package retail

import (
	"fmt"
	"math"

	"retailetl/internal/transformer"
	"retailetl/internal/transformer/builtin"
	"retailetl/pkg/records"
)

// LineItemKey is the identity of a cleaned row.
var LineItemKey = []string{ColOrderID, ColItemID}

// cleanRequired are the columns the cleaner cannot run without.
var cleanRequired = []string{
	ColOrderID, ColItemID, ColOrderDate,
	ColQtyOrdered, ColPrice, ColValue, ColDiscount, ColTotal,
}

var numericTypes = map[string]string{
	ColQtyOrdered: "float",
	ColPrice:      "float",
	ColValue:      "float",
	ColDiscount:   "float",
	ColTotal:      "float",
	ColCustID:     "float",
	ColItemID:     "float",
	ColAge:        "float",
	ColYear:       "int",
}

var finalInts = map[string]string{
	ColQtyOrdered: "int",
	ColItemID:     "int",
	ColCustID:     "int",
}

var moneyFields = []string{ColPrice, ColValue, ColDiscount, ColTotal}

var textRules = map[string]builtin.Case{
	ColFirstName: builtin.CaseTitle,
	ColLastName:  builtin.CaseTitle,
	ColEmail:     builtin.CaseLower,
	ColSKU:       builtin.CaseUpper,
	ColCategory:  builtin.CaseTitle,
}

// DroppedColumns are removed from the cleaned table: personal and reference
// fields never loaded downstream.
var DroppedColumns = []string{
	"Name Prefix", "Middle Initial", "full_name", "bi_st",
	"ref_num", "User Name", "SSN", "Discount_Percent",
}

// CleanStats counts what each cleaning step did.
type CleanStats struct {
	InputRows          int `json:"input_rows"`
	ExactDuplicates    int `json:"exact_duplicates"`
	LineItemDuplicates int `json:"line_item_duplicates"`
	ValueCorrections   int `json:"value_corrections"`
	TotalCorrections   int `json:"total_corrections"`
	NegativePrices     int `json:"negative_prices"`
	ZeroQuantities     int `json:"zero_quantities"`
	NegativeValues     int `json:"negative_values"`
	NegativeTotals     int `json:"negative_totals"`
	Filtered           int `json:"filtered"`
	OutputRows         int `json:"output_rows"`
}

// Clean deduplicates, reconciles, filters and normalizes the raw table. The
// input table is not modified. The steps run in a fixed order; each relies
// on the output of the previous one.
func Clean(raw Table, sink Sink) (Table, CleanStats, error) {
	em := newEmitter(sink, StageClean)
	schema := raw.Schema()
	if missing := schema.Missing(cleanRequired...); len(missing) > 0 {
		return Table{}, CleanStats{}, fmt.Errorf("clean: missing required columns %v", missing)
	}

	rows := make([]records.Record, len(raw.Rows))
	for i, r := range raw.Rows {
		rows[i] = r.Clone()
	}
	stats := CleanStats{InputRows: len(rows)}
	positive := builtin.Positive{Fields: []string{ColPrice, ColQtyOrdered, ColValue, ColTotal}}

	steps := transformer.Chain{
		transformer.Observed{
			Name: "exact_duplicates",
			Step: builtin.DeDup{Keys: raw.Columns},
			After: func(_ string, before, after int) {
				stats.ExactDuplicates = before - after
				em.info("removed exact duplicate rows", map[string]any{"removed": stats.ExactDuplicates})
			},
		},
		builtin.SortBy{Keys: []builtin.SortKey{{Field: ColOrderDate, Desc: true}}},
		transformer.Observed{
			Name: "line_item_duplicates",
			Step: builtin.DeDup{Keys: LineItemKey},
			After: func(_ string, before, after int) {
				stats.LineItemDuplicates = before - after
				em.info("removed duplicate order line items", map[string]any{"removed": stats.LineItemDuplicates})
			},
		},
		builtin.Coerce{Types: numericTypes},
		transformer.Func(func(in []records.Record) []records.Record {
			stats.ValueCorrections = reconcileValue(in)
			em.info("corrected value calculation errors", map[string]any{"corrected": stats.ValueCorrections})
			return in
		}),
		transformer.Func(func(in []records.Record) []records.Record {
			stats.TotalCorrections = reconcileTotal(in)
			em.info("corrected total calculation errors", map[string]any{"corrected": stats.TotalCorrections})
			return in
		}),
		transformer.Func(func(in []records.Record) []records.Record {
			v := positive.Violations(in)
			stats.NegativePrices = v[ColPrice]
			stats.ZeroQuantities = v[ColQtyOrdered]
			stats.NegativeValues = v[ColValue]
			stats.NegativeTotals = v[ColTotal]
			em.info("data quality issues found", map[string]any{
				"negative_prices": stats.NegativePrices,
				"zero_quantities": stats.ZeroQuantities,
				"negative_values": stats.NegativeValues,
				"negative_totals": stats.NegativeTotals,
			})
			return in
		}),
		transformer.Observed{
			Name: "quality_filter",
			Step: positive,
			After: func(_ string, before, after int) {
				stats.Filtered = before - after
				em.info("removed records with data quality issues", map[string]any{"removed": stats.Filtered})
			},
		},
		builtin.Coerce{Types: finalInts},
		builtin.Round{Fields: moneyFields, Places: 2},
		builtin.TextCase{Fields: textRules},
		builtin.Drop{Fields: DroppedColumns},
	}
	rows = steps.Apply(rows)
	stats.OutputRows = len(rows)

	reduction := 0.0
	if stats.InputRows > 0 {
		reduction = float64(stats.InputRows-stats.OutputRows) / float64(stats.InputRows) * 100
	}
	em.info("data cleaning completed", map[string]any{
		"input_rows": stats.InputRows, "output_rows": stats.OutputRows, "removed_pct": math.Round(reduction*10) / 10,
	})

	return Table{Columns: without(raw.Columns, DroppedColumns...), Rows: rows}, stats, nil
}

// reconcileValue sets value to qty_ordered*price where they disagree by more
// than Tolerance. Rows with a nil operand are left as they are.
func reconcileValue(rows []records.Record) int {
	n := 0
	for _, r := range rows {
		q, ok1 := builtin.Number(r[ColQtyOrdered])
		p, ok2 := builtin.Number(r[ColPrice])
		v, ok3 := builtin.Number(r[ColValue])
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		if calc := q * p; math.Abs(calc-v) > Tolerance {
			r[ColValue] = calc
			n++
		}
	}
	return n
}

// reconcileTotal sets total to value-discount_amount, using the already
// reconciled value, where they disagree by more than Tolerance.
func reconcileTotal(rows []records.Record) int {
	n := 0
	for _, r := range rows {
		v, ok1 := builtin.Number(r[ColValue])
		d, ok2 := builtin.Number(r[ColDiscount])
		t, ok3 := builtin.Number(r[ColTotal])
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		if calc := v - d; math.Abs(calc-t) > Tolerance {
			r[ColTotal] = calc
			n++
		}
	}
	return n
}
