// Package retail implements the transform stage of the sales pipeline: it
// loads the raw sales extract, reports on its quality, cleans and reconciles
// the line items, splits them into customers, products and orders, and
// checks the resulting tables.
//
// Every stage is a plain function over in-memory tables. Diagnostics go to a
// caller-supplied Sink, never to a global logger.
package retail

import "retailetl/pkg/records"

// Source column names of the sales extract.
const (
	ColOrderID       = "order_id"
	ColItemID        = "item_id"
	ColCustID        = "cust_id"
	ColSKU           = "sku"
	ColOrderDate     = "order_date"
	ColQtyOrdered    = "qty_ordered"
	ColPrice         = "price"
	ColValue         = "value"
	ColDiscount      = "discount_amount"
	ColTotal         = "total"
	ColCategory      = "category"
	ColStatus        = "status"
	ColPaymentMethod = "payment_method"
	ColYear          = "year"
	ColMonth         = "month"
	ColAge           = "age"
	ColGender        = "Gender"
	ColFirstName     = "First Name"
	ColLastName      = "Last Name"
	ColEmail         = "E Mail"
	ColPhone         = "Phone No."
	ColCustomerSince = "Customer Since"
	ColPlaceName     = "Place Name"
	ColCounty        = "County"
	ColCity          = "City"
	ColState         = "State"
	ColZip           = "Zip"
	ColRegion        = "Region"
)

// Table is an in-memory table: an ordered column list and its rows. A row
// may lack a column only if the column is absent from Columns.
type Table struct {
	Columns []string
	Rows    []records.Record
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// Schema returns the resolved set of columns present in t.
func (t Table) Schema() Schema { return NewSchema(t.Columns) }

// without returns a copy of cols with every name in drop removed.
func without(cols []string, drop ...string) []string {
	skip := make(map[string]struct{}, len(drop))
	for _, d := range drop {
		skip[d] = struct{}{}
	}
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if _, ok := skip[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// Schema records which columns a table carries. It is resolved once when a
// table is loaded; later stages consult it instead of probing rows.
type Schema map[string]bool

// NewSchema marks every listed column as present.
func NewSchema(cols []string) Schema {
	s := make(Schema, len(cols))
	for _, c := range cols {
		s[c] = true
	}
	return s
}

// Has reports whether col is present.
func (s Schema) Has(col string) bool { return s[col] }

// HasAll reports whether every listed column is present.
func (s Schema) HasAll(cols ...string) bool {
	for _, c := range cols {
		if !s[c] {
			return false
		}
	}
	return true
}

// Present filters cols down to those in s, preserving order.
func (s Schema) Present(cols ...string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if s[c] {
			out = append(out, c)
		}
	}
	return out
}

// Missing returns the listed columns absent from s, preserving order.
func (s Schema) Missing(cols ...string) []string {
	var out []string
	for _, c := range cols {
		if !s[c] {
			out = append(out, c)
		}
	}
	return out
}
