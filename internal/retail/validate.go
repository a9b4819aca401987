package retail

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"retailetl/internal/transformer/builtin"
)

// Validation check names.
const (
	CheckCustomersUniqueIDs       = "customers_unique_ids"
	CheckProductsUniqueSKUs       = "products_unique_skus"
	CheckProductsPositivePrices   = "products_positive_prices"
	CheckOrdersPositiveQuantities = "orders_positive_quantities"
	CheckCustomersValidEmails     = "customers_valid_emails"
	CheckOrdersLineCalculations   = "orders_valid_line_calculations"
	CheckOrdersTotalCalculations  = "orders_valid_total_calculations"
	CheckCustomerReferences       = "valid_customer_references"
	CheckProductReferences        = "valid_product_references"
	CheckValidationError          = "validation_error"
)

// Tolerances of the post-normalization arithmetic checks. Orders keep their
// own historical unit price, so the line check is looser than the cleaner.
const (
	LineTolerance  = 0.30
	TotalTolerance = 0.02
)

// ValidationReport maps check names to pass/fail.
type ValidationReport map[string]bool

// Passed reports whether every recorded check passed.
func (r ValidationReport) Passed() bool {
	for _, ok := range r {
		if !ok {
			return false
		}
	}
	return true
}

// Failed returns the names of failed checks.
func (r ValidationReport) Failed() []string {
	var out []string
	for name, ok := range r {
		if !ok {
			out = append(out, name)
		}
	}
	return out
}

// errSkip marks an optional check whose column is absent.
var errSkip = errors.New("skip")

type check struct {
	name string
	run  func(ts Tables, em emitter) (bool, error)
}

var tableChecks = []check{
	{CheckCustomersUniqueIDs, func(ts Tables, _ emitter) (bool, error) {
		return unique(ts, TableCustomers, "customer_id")
	}},
	{CheckProductsUniqueSKUs, func(ts Tables, _ emitter) (bool, error) {
		return unique(ts, TableProducts, ColSKU)
	}},
	{CheckProductsPositivePrices, func(ts Tables, _ emitter) (bool, error) {
		return allPositive(ts, TableProducts, "unit_price", false)
	}},
	{CheckOrdersPositiveQuantities, func(ts Tables, _ emitter) (bool, error) {
		return allPositive(ts, TableOrders, "quantity", true)
	}},
	{CheckCustomersValidEmails, func(ts Tables, _ emitter) (bool, error) {
		t, err := column(ts, TableCustomers, "email", true)
		if err != nil {
			return false, err
		}
		for _, r := range t.Rows {
			s, _ := r["email"].(string)
			if !strings.Contains(s, "@") {
				return false, nil
			}
		}
		return true, nil
	}},
	{CheckOrdersLineCalculations, func(ts Tables, em emitter) (bool, error) {
		return arithmetic(ts, em, CheckOrdersLineCalculations, []string{"quantity", "unit_price", "line_total"},
			func(q, p, lt float64) float64 { return q*p - lt }, LineTolerance, Tolerance)
	}},
	{CheckOrdersTotalCalculations, func(ts Tables, em emitter) (bool, error) {
		return arithmetic(ts, em, CheckOrdersTotalCalculations, []string{"line_total", ColDiscount, ColTotal},
			func(lt, d, tot float64) float64 { return lt - d - tot }, TotalTolerance, TotalTolerance)
	}},
	{CheckCustomerReferences, func(ts Tables, _ emitter) (bool, error) {
		return references(ts, TableCustomers, "customer_id")
	}},
	{CheckProductReferences, func(ts Tables, _ emitter) (bool, error) {
		return references(ts, TableProducts, ColSKU)
	}},
}

// ValidateTables runs the post-normalization checks. It never fails: a
// check that cannot be computed records validation_error=false and the
// remaining checks still run. Optional checks whose column is absent are
// left out of the report.
func ValidateTables(ts Tables, sink Sink) ValidationReport {
	em := newEmitter(sink, StageValidate)
	report := make(ValidationReport, len(tableChecks))
	for _, c := range tableChecks {
		ok, err := c.run(ts, em)
		switch {
		case errors.Is(err, errSkip):
			continue
		case err != nil:
			em.warn("validation check failed to run", map[string]any{"check": c.name, "error": err.Error()})
			report[CheckValidationError] = false
			continue
		}
		report[c.name] = ok
		if ok {
			em.info("validation check passed", map[string]any{"check": c.name})
		} else {
			em.warn("validation check failed", map[string]any{"check": c.name})
		}
	}
	return report
}

func column(ts Tables, table, col string, optional bool) (Table, error) {
	t, ok := ts[table]
	if !ok {
		return Table{}, fmt.Errorf("table %s not found", table)
	}
	if !t.Schema().Has(col) {
		if optional {
			return Table{}, errSkip
		}
		return Table{}, fmt.Errorf("column %s.%s not found", table, col)
	}
	return t, nil
}

func unique(ts Tables, table, col string) (bool, error) {
	t, err := column(ts, table, col, false)
	if err != nil {
		return false, err
	}
	return builtin.Distinct(t.Rows, []string{col}) == t.Len(), nil
}

func allPositive(ts Tables, table, col string, optional bool) (bool, error) {
	t, err := column(ts, table, col, optional)
	if err != nil {
		return false, err
	}
	for _, r := range t.Rows {
		if v, ok := builtin.Number(r[col]); !ok || v <= 0 {
			return false, nil
		}
	}
	return true, nil
}

// arithmetic checks |f(row)| < limit on every order row with numeric
// operands and warns about rows at or above warnAt.
func arithmetic(ts Tables, em emitter, name string, cols []string, f func(a, b, c float64) float64, limit, warnAt float64) (bool, error) {
	t, ok := ts[TableOrders]
	if !ok {
		return false, fmt.Errorf("table %s not found", TableOrders)
	}
	if !t.Schema().HasAll(cols...) {
		return false, errSkip
	}
	pass, flagged, maxDiff := true, 0, 0.0
	for _, r := range t.Rows {
		a, ok1 := builtin.Number(r[cols[0]])
		b, ok2 := builtin.Number(r[cols[1]])
		c, ok3 := builtin.Number(r[cols[2]])
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		d := math.Abs(f(a, b, c))
		if d >= limit {
			pass = false
		}
		if d >= warnAt {
			flagged++
		}
		maxDiff = math.Max(maxDiff, d)
	}
	if flagged > 0 {
		em.warn("orders have calculation differences", map[string]any{
			"check": name, "rows": flagged, "max_diff": math.Round(maxDiff*1e4) / 1e4,
		})
	}
	return pass, nil
}

// references reports whether every non-nil orders.col value exists in the
// dimension table's col.
func references(ts Tables, dim, col string) (bool, error) {
	d, err := column(ts, dim, col, false)
	if err != nil {
		return false, err
	}
	o, err := column(ts, TableOrders, col, false)
	if err != nil {
		return false, err
	}
	known := make(map[string]struct{}, d.Len())
	for _, r := range d.Rows {
		if k, ok := builtin.Key(r, []string{col}); ok {
			known[k] = struct{}{}
		}
	}
	for _, r := range o.Rows {
		if r[col] == nil {
			continue
		}
		k, _ := builtin.Key(r, []string{col})
		if _, ok := known[k]; !ok {
			return false, nil
		}
	}
	return true, nil
}
