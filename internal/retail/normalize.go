package retail

import (
	"fmt"

	"retailetl/internal/transformer"
	"retailetl/internal/transformer/builtin"
	"retailetl/pkg/records"
)

// Table names of the normalized output.
const (
	TableCustomers = "customers"
	TableProducts  = "products"
	TableOrders    = "orders"
)

// TableNames lists the normalized tables in load order: dimensions first.
var TableNames = []string{TableCustomers, TableProducts, TableOrders}

var (
	customerBase     = []string{ColCustID, ColFirstName, ColLastName, ColEmail, ColGender, ColAge}
	customerOptional = []string{ColPhone, ColCustomerSince, ColPlaceName, ColCounty, ColCity, ColState, ColZip, ColRegion}
	customerRename   = map[string]string{
		ColCustID:        "customer_id",
		ColFirstName:     "first_name",
		ColLastName:      "last_name",
		ColEmail:         "email",
		ColPhone:         "phone",
		ColCustomerSince: "customer_since",
		ColPlaceName:     "place_name",
		ColCounty:        "county",
		ColCity:          "city",
		ColState:         "state",
		ColZip:           "zip_code",
		ColRegion:        "region",
	}

	productCols   = []string{ColSKU, ColCategory, ColPrice}
	productRename = map[string]string{ColPrice: "unit_price"}

	orderBase = []string{
		ColOrderID, ColItemID, ColOrderDate, ColStatus, ColCustID, ColSKU,
		ColQtyOrdered, ColPrice, ColValue, ColDiscount, ColTotal, ColPaymentMethod,
	}
	orderOptional = []string{ColYear, ColMonth}
	orderRename   = map[string]string{
		ColCustID:     "customer_id",
		ColPrice:      "unit_price",
		ColValue:      "line_total",
		ColQtyOrdered: "quantity",
	}
)

// Tables holds the normalized output keyed by table name.
type Tables map[string]Table

// Counts returns the row count of every table.
func (ts Tables) Counts() map[string]int {
	out := make(map[string]int, len(ts))
	for name, t := range ts {
		out[name] = t.Len()
	}
	return out
}

// projection describes how one output table is cut from the cleaned table.
type projection struct {
	name    string
	cols    []string
	keys    []string // dedup keys, empty for no dedup
	sortBy  []string
	rename  map[string]string
	require []string
}

// Normalize splits the cleaned table into customers, products and orders.
// Only columns present in the cleaned table are selected; key and sort
// columns must be present or Normalize fails without returning any table.
//
// Dimension rows are deduplicated keeping the first row in cleaned-table
// order, which is the most recent line item for that key.
func Normalize(clean Table, sink Sink) (Tables, error) {
	em := newEmitter(sink, StageNormalize)
	schema := clean.Schema()

	projections := []projection{
		{
			name:    TableCustomers,
			cols:    append(schema.Present(customerBase...), schema.Present(customerOptional...)...),
			keys:    []string{ColCustID},
			sortBy:  []string{ColCustID},
			rename:  customerRename,
			require: []string{ColCustID},
		},
		{
			name:    TableProducts,
			cols:    productCols,
			keys:    []string{ColSKU},
			sortBy:  []string{ColSKU},
			rename:  productRename,
			require: productCols,
		},
		{
			name:    TableOrders,
			cols:    append(schema.Present(orderBase...), schema.Present(orderOptional...)...),
			sortBy:  []string{ColOrderDate, ColOrderID},
			rename:  orderRename,
			require: []string{ColOrderID, ColItemID, ColOrderDate, ColCustID, ColSKU},
		},
	}

	out := make(Tables, len(projections))
	for _, p := range projections {
		if missing := schema.Missing(p.require...); len(missing) > 0 {
			return nil, fmt.Errorf("normalize %s: missing columns %v", p.name, missing)
		}
		t := p.apply(clean.Rows)
		em.info("normalized table", map[string]any{"table": p.name, "rows": t.Len(), "columns": len(t.Columns)})
		out[p.name] = t
	}
	return out, nil
}

func (p projection) apply(rows []records.Record) Table {
	projected := make([]records.Record, len(rows))
	for i, r := range rows {
		projected[i] = r.Project(p.cols, nil)
	}

	keys := make([]builtin.SortKey, len(p.sortBy))
	for i, f := range p.sortBy {
		keys[i] = builtin.SortKey{Field: f}
	}
	var chain transformer.Chain
	if len(p.keys) > 0 {
		chain = append(chain, builtin.DeDup{Keys: p.keys})
	}
	chain = append(chain, builtin.SortBy{Keys: keys})
	projected = chain.Apply(projected)

	cols := make([]string, len(p.cols))
	for i, c := range p.cols {
		cols[i] = renamed(c, p.rename)
	}
	for i, r := range projected {
		projected[i] = r.Project(p.cols, p.rename)
	}
	return Table{Columns: cols, Rows: projected}
}

func renamed(col string, rename map[string]string) string {
	if n, ok := rename[col]; ok {
		return n
	}
	return col
}
