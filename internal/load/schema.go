package load

import (
	"retailetl/internal/ddl"
	"retailetl/internal/retail"
)

// catalog lists every column a normalized table may carry, in output order.
var catalog = map[string][]ddl.ColumnDef{
	retail.TableCustomers: {
		{Name: "customer_id", Type: ddl.BigInt, PrimaryKey: true},
		{Name: "first_name", Type: ddl.Text, Nullable: true},
		{Name: "last_name", Type: ddl.Text, Nullable: true},
		{Name: "email", Type: ddl.Text, Nullable: true},
		{Name: "Gender", Type: ddl.Text, Nullable: true},
		{Name: "age", Type: ddl.Int, Nullable: true},
		{Name: "phone", Type: ddl.Text, Nullable: true},
		{Name: "customer_since", Type: ddl.Text, Nullable: true},
		{Name: "place_name", Type: ddl.Text, Nullable: true},
		{Name: "county", Type: ddl.Text, Nullable: true},
		{Name: "city", Type: ddl.Text, Nullable: true},
		{Name: "state", Type: ddl.Text, Nullable: true},
		{Name: "zip_code", Type: ddl.Text, Nullable: true},
		{Name: "region", Type: ddl.Text, Nullable: true},
	},
	retail.TableProducts: {
		{Name: "sku", Type: ddl.Text, PrimaryKey: true},
		{Name: "category", Type: ddl.Text, Nullable: true},
		{Name: "unit_price", Type: ddl.Numeric, Nullable: true},
	},
	retail.TableOrders: {
		{Name: "order_id", Type: ddl.Text, PrimaryKey: true},
		{Name: "item_id", Type: ddl.BigInt, PrimaryKey: true},
		{Name: "order_date", Type: ddl.Date, Nullable: true},
		{Name: "status", Type: ddl.Text, Nullable: true},
		{Name: "customer_id", Type: ddl.BigInt, Nullable: true},
		{Name: "sku", Type: ddl.Text, Nullable: true},
		{Name: "quantity", Type: ddl.BigInt, Nullable: true},
		{Name: "unit_price", Type: ddl.Numeric, Nullable: true},
		{Name: "line_total", Type: ddl.Numeric, Nullable: true},
		{Name: "discount_amount", Type: ddl.Numeric, Nullable: true},
		{Name: "total", Type: ddl.Numeric, Nullable: true},
		{Name: "payment_method", Type: ddl.Text, Nullable: true},
		{Name: "year", Type: ddl.Int, Nullable: true},
		{Name: "month", Type: ddl.Text, Nullable: true},
	},
}

var orderRefs = []ddl.ForeignKey{
	{Columns: []string{"customer_id"}, RefTable: retail.TableCustomers, RefColumns: []string{"customer_id"}},
	{Columns: []string{"sku"}, RefTable: retail.TableProducts, RefColumns: []string{"sku"}},
}

// Definition returns the table definition for a normalized table restricted
// to the columns it actually has. Columns outside the catalog are loaded as
// nullable text. Foreign keys are kept only when both sides are present.
func Definition(name string, t retail.Table, prefix string) ddl.TableDef {
	have := t.Schema()
	td := ddl.TableDef{FQN: prefix + name}
	known := make(map[string]bool)
	for _, c := range catalog[name] {
		known[c.Name] = true
		if have.Has(c.Name) {
			td.Columns = append(td.Columns, c)
		}
	}
	for _, c := range t.Columns {
		if !known[c] {
			td.Columns = append(td.Columns, ddl.ColumnDef{Name: c, Type: ddl.Text, Nullable: true})
		}
	}
	if name == retail.TableOrders {
		for _, fk := range orderRefs {
			if have.HasAll(fk.Columns...) {
				fk.RefTable = prefix + fk.RefTable
				td.ForeignKeys = append(td.ForeignKeys, fk)
			}
		}
	}
	return td
}

func primaryKey(td ddl.TableDef) []string {
	var out []string
	for _, c := range td.Columns {
		if c.PrimaryKey {
			out = append(out, c.Name)
		}
	}
	return out
}
