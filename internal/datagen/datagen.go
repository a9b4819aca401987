// Package datagen produces synthetic sales extracts shaped like the real
// dataset, with a controlled share of the defects the cleaner is built to
// repair: duplicate lines, re-ordered line items, arithmetic mismatches,
// non-positive amounts, missing contact fields and messy text.
package datagen

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	pcsv "retailetl/internal/parser/csv"
	"retailetl/pkg/records"
)

// Header is the column layout of the sales extract.
var Header = []string{
	"order_id", "order_date", "status", "item_id", "sku", "qty_ordered", "price", "value",
	"discount_amount", "total", "category", "payment_method", "bi_st", "cust_id", "year", "month",
	"ref_num", "Name Prefix", "First Name", "Middle Initial", "Last Name", "Gender", "age",
	"full_name", "E Mail", "Customer Since", "SSN", "Phone No.", "Place Name", "County", "City",
	"State", "Zip", "Region", "User Name", "Discount_Percent",
}

var (
	categories = []string{
		"Men's Fashion", "Women's Fashion", "Mobiles & Tablets", "Appliances",
		"Home & Living", "Beauty & Grooming", "Soghaat", "Others", "Superstore",
		"Health & Sports", "Kids & Baby", "Computing", "Entertainment", "School & Education", "Books",
	}
	statuses = []string{"complete", "canceled", "received", "order_refunded", "refund", "closed", "paid", "cod"}
	payments = []string{"cod", "Payaxis", "Easypay", "jazzwallet", "easypay_voucher", "bankalfalah", "customercredit", "apg"}
	prefixes = []string{"Mr.", "Mrs.", "Ms.", "Dr.", "Drs.", "Prof."}
	regions  = []string{"South", "West", "Midwest", "Northeast"}
	biStates = []string{"Gross", "Net", "Valid"}
)

// Options controls generation.
type Options struct {
	// Rows is the number of clean line items before defects are injected.
	Rows int
	// Seed makes output reproducible. Zero picks a random seed.
	Seed uint64
	// Customers and Products size the dimension pools.
	Customers int
	Products  int
	// DefectRate is the share of line items given one defect, in [0, 1].
	DefectRate float64
	// Start and End bound the order dates.
	Start, End time.Time
}

func (o Options) withDefaults() Options {
	if o.Rows <= 0 {
		o.Rows = 1000
	}
	if o.Customers <= 0 {
		o.Customers = max(1, o.Rows/5)
	}
	if o.Products <= 0 {
		o.Products = 50
	}
	if o.DefectRate < 0 {
		o.DefectRate = 0
	}
	if o.DefectRate > 1 {
		o.DefectRate = 1
	}
	if o.Start.IsZero() {
		o.Start = time.Date(2020, 10, 1, 0, 0, 0, 0, time.UTC)
	}
	if o.End.IsZero() || !o.End.After(o.Start) {
		o.End = o.Start.AddDate(1, 0, 0)
	}
	return o
}

// Stats counts the rows written and the defects injected.
type Stats struct {
	Rows         int `json:"rows"`
	LineItems    int `json:"line_items"`
	Duplicates   int `json:"duplicates"`
	Reorders     int `json:"reorders"`
	Mismatches   int `json:"mismatches"`
	NonPositive  int `json:"non_positive"`
	NullContacts int `json:"null_contacts"`
	Messy        int `json:"messy"`
}

type customer records.Record

type product struct {
	sku      string
	category string
	price    float64
}

// Generator builds synthetic sales rows.
type Generator struct {
	f   *gofakeit.Faker
	opt Options
}

// New returns a Generator for opt.
func New(opt Options) *Generator {
	return &Generator{f: gofakeit.New(opt.Seed), opt: opt.withDefaults()}
}

func (g *Generator) pick(items []string) string {
	return items[g.f.IntRange(0, len(items)-1)]
}

func (g *Generator) customers() []customer {
	out := make([]customer, g.opt.Customers)
	for i := range out {
		first, last := g.f.FirstName(), g.f.LastName()
		gender := "M"
		if g.f.Bool() {
			gender = "F"
		}
		middle := string(rune('A' + g.f.IntRange(0, 25)))
		since := g.f.DateRange(time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC), g.opt.Start)
		city := g.f.City()
		out[i] = customer{
			"cust_id":        int64(60000 + i),
			"Name Prefix":    g.pick(prefixes),
			"First Name":     first,
			"Middle Initial": middle,
			"Last Name":      last,
			"Gender":         gender,
			"age":            int64(g.f.IntRange(18, 80)),
			"full_name":      last + ", " + first,
			"E Mail":         strings.ToLower(first + "." + last + "@" + g.pick([]string{"gmail.com", "yahoo.com", "hotmail.com", "aol.com"})),
			"Customer Since": since.Format("1/2/2006"),
			"SSN":            g.f.DigitN(3) + "-" + g.f.DigitN(2) + "-" + g.f.DigitN(4),
			"Phone No.":      g.f.Phone(),
			"Place Name":     city,
			"County":         g.f.LastName(),
			"City":           city,
			"State":          g.f.StateAbr(),
			"Zip":            g.f.Zip(),
			"Region":         g.pick(regions),
			"User Name":      strings.ToLower(first[:1] + middle + last),
		}
	}
	return out
}

func (g *Generator) products() []product {
	out := make([]product, g.opt.Products)
	for i := range out {
		brand := strings.ToLower(g.f.Word())
		out[i] = product{
			sku:      fmt.Sprintf("%s_%s-%03d-%d", brand, g.f.LetterN(4), i, g.f.IntRange(10, 99)),
			category: g.pick(categories),
			price:    round2(g.f.Float64Range(2, 500)),
		}
	}
	return out
}

// Records returns the generated rows in file order.
func (g *Generator) Records() ([]records.Record, Stats) {
	custs, prods := g.customers(), g.products()
	var st Stats
	rows := make([]records.Record, 0, g.opt.Rows+g.opt.Rows/10)

	orderID, itemID := int64(100354678), int64(574772)
	for st.LineItems < g.opt.Rows {
		orderID++
		c := custs[g.f.IntRange(0, len(custs)-1)]
		date := g.f.DateRange(g.opt.Start, g.opt.End)
		status, pay := g.pick(statuses), g.pick(payments)
		items := min(g.f.IntRange(1, 3), g.opt.Rows-st.LineItems)

		for i := 0; i < items; i++ {
			itemID++
			st.LineItems++
			p := prods[g.f.IntRange(0, len(prods)-1)]
			r := g.line(c, p, orderID, itemID, date, status, pay)
			rows = append(rows, r)
			if g.f.Float64Range(0, 1) < g.opt.DefectRate {
				rows = g.inject(rows, &st)
			}
		}
	}
	st.Rows = len(rows)
	return rows, st
}

func (g *Generator) line(c customer, p product, orderID, itemID int64, date time.Time, status, pay string) records.Record {
	qty := int64(g.f.IntRange(1, 4))
	value := round2(float64(qty) * p.price)
	discount := 0.0
	if g.f.IntRange(0, 3) == 0 {
		discount = round2(value * float64(g.f.IntRange(5, 30)) / 100)
	}
	r := records.Record{
		"order_id":         strconv.FormatInt(orderID, 10),
		"order_date":       date.Format("2006-01-02"),
		"status":           status,
		"item_id":          itemID,
		"sku":              p.sku,
		"qty_ordered":      qty,
		"price":            p.price,
		"value":            value,
		"discount_amount":  discount,
		"total":            round2(value - discount),
		"category":         p.category,
		"payment_method":   pay,
		"bi_st":            g.pick(biStates),
		"year":             int64(date.Year()),
		"month":            date.Format("Jan"),
		"ref_num":          int64(g.f.IntRange(100000, 999999)),
		"Discount_Percent": round2(discount / value * 100),
	}
	for k, v := range c {
		r[k] = v
	}
	return r
}

// inject gives the last row of rows one defect and returns the new slice.
func (g *Generator) inject(rows []records.Record, st *Stats) []records.Record {
	last := rows[len(rows)-1]
	switch g.f.IntRange(0, 5) {
	case 0:
		st.Duplicates++
		rows = append(rows, last.Clone())
	case 1:
		st.Reorders++
		again := last.Clone()
		d, _ := time.Parse("2006-01-02", last["order_date"].(string))
		again["order_date"] = d.AddDate(0, 0, g.f.IntRange(1, 30)).Format("2006-01-02")
		rows = append(rows, again)
	case 2:
		st.Mismatches++
		if g.f.Bool() {
			last["value"] = round2(last["value"].(float64) + g.f.Float64Range(1, 50))
		} else {
			last["total"] = round2(last["total"].(float64) * 1.5)
		}
	case 3:
		st.NonPositive++
		switch g.f.IntRange(0, 2) {
		case 0:
			last["price"] = -last["price"].(float64)
		case 1:
			last["qty_ordered"] = int64(0)
		default:
			last["total"] = 0.0
		}
	case 4:
		st.NullContacts++
		if g.f.Bool() {
			last["E Mail"] = nil
		} else {
			last["First Name"] = nil
			last["Last Name"] = nil
		}
	default:
		st.Messy++
		last["First Name"] = "  " + strings.ToUpper(fmt.Sprint(last["First Name"])) + " "
		last["sku"] = strings.ToLower(last["sku"].(string))
		last["category"] = strings.ToLower(last["category"].(string))
		last["E Mail"] = strings.ToUpper(fmt.Sprint(last["E Mail"]))
	}
	return rows
}

// Write writes a CSV with Header to w.
func (g *Generator) Write(w io.Writer) (Stats, error) {
	rows, st := g.Records()
	if err := pcsv.WriteTable(w, Header, rows); err != nil {
		return st, fmt.Errorf("datagen: %w", err)
	}
	return st, nil
}

// WriteFile generates a CSV at path, creating parent directories. The file
// is written to a temporary name first and renamed into place.
func WriteFile(path string, opt Options) (Stats, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Stats{}, fmt.Errorf("datagen: %w", err)
	}
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return Stats{}, fmt.Errorf("datagen: %w", err)
	}
	st, err := New(opt).Write(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return st, err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return st, fmt.Errorf("datagen: %w", err)
	}
	return st, nil
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
