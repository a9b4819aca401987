// Package verify runs read-only sanity queries against a loaded database:
// row counts, orphaned references, revenue figures and the best selling
// categories.
package verify

import (
	"context"
	"fmt"
	"math"
	"sort"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"retailetl/internal/metrics"
	"retailetl/internal/retail"
)

// TopN is the number of categories reported.
const TopN = 5

// driverNames maps a storage kind to its database/sql driver.
var driverNames = map[string]string{
	"postgres": "postgres",
	"sqlite":   "sqlite",
	"mssql":    "sqlserver",
	"mysql":    "mysql",
}

// Open connects to dsn with the driver for kind.
func Open(ctx context.Context, kind, dsn string) (*sqlx.DB, error) {
	name, ok := driverNames[kind]
	if !ok {
		return nil, fmt.Errorf("verify: unsupported storage.kind=%s", kind)
	}
	db, err := sqlx.ConnectContext(ctx, name, dsn)
	if err != nil {
		return nil, fmt.Errorf("verify: connect %s: %w", kind, err)
	}
	return db, nil
}

// CategoryRevenue is one row of the category ranking.
type CategoryRevenue struct {
	Category string  `db:"category" json:"category"`
	Revenue  float64 `db:"revenue" json:"revenue"`
}

// Report is the outcome of a verification run.
type Report struct {
	Counts            map[string]int64  `json:"counts"`
	OrphanCustomers   int64             `json:"orphan_customers"`
	OrphanProducts    int64             `json:"orphan_products"`
	Revenue           float64           `json:"total_revenue"`
	AverageOrderValue float64           `json:"average_order_value"`
	TopCategories     []CategoryRevenue `json:"top_categories"`
	Warnings          []string          `json:"warnings,omitempty"`
}

// OK reports whether no warnings were raised.
func (r Report) OK() bool { return len(r.Warnings) == 0 }

// Verifier runs the checks on one database.
type Verifier struct {
	db     *sqlx.DB
	kind   string
	prefix string
	job    string
	log    zerolog.Logger
}

// New returns a Verifier. prefix is prepended to the table names and must
// match the one used when loading.
func New(db *sqlx.DB, kind, prefix, job string, log zerolog.Logger) *Verifier {
	if job == "" {
		job = "retailetl"
	}
	return &Verifier{db: db, kind: kind, prefix: prefix, job: job, log: log}
}

func (v *Verifier) table(name string) string { return v.prefix + name }

// Run executes every check and logs the report.
func (v *Verifier) Run(ctx context.Context) (Report, error) {
	rep := Report{Counts: make(map[string]int64, len(retail.TableNames))}

	for _, name := range retail.TableNames {
		var n int64
		if err := v.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+v.table(name)); err != nil {
			return rep, fmt.Errorf("verify: count %s: %w", name, err)
		}
		rep.Counts[name] = n
	}

	orders, customers, products := v.table(retail.TableOrders), v.table(retail.TableCustomers), v.table(retail.TableProducts)
	orphans := []struct {
		check string
		dst   *int64
		query string
	}{
		{"orphan_customers", &rep.OrphanCustomers, fmt.Sprintf(
			"SELECT COUNT(*) FROM %s o LEFT JOIN %s c ON o.customer_id = c.customer_id WHERE o.customer_id IS NOT NULL AND c.customer_id IS NULL",
			orders, customers)},
		{"orphan_products", &rep.OrphanProducts, fmt.Sprintf(
			"SELECT COUNT(*) FROM %s o LEFT JOIN %s p ON o.sku = p.sku WHERE o.sku IS NOT NULL AND p.sku IS NULL",
			orders, products)},
	}
	for _, o := range orphans {
		if err := v.db.GetContext(ctx, o.dst, o.query); err != nil {
			return rep, fmt.Errorf("verify: %s: %w", o.check, err)
		}
		metrics.RecordCheck(v.job, o.check, *o.dst == 0)
		if *o.dst > 0 {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("%d orders reference missing %s", *o.dst, o.check[len("orphan_"):]))
		}
	}

	if err := v.db.GetContext(ctx, &rep.Revenue, "SELECT COALESCE(SUM(total), 0) FROM "+orders); err != nil {
		return rep, fmt.Errorf("verify: revenue: %w", err)
	}
	aov := fmt.Sprintf(
		"SELECT COALESCE(AVG(order_total), 0) FROM (SELECT order_id, SUM(total) AS order_total FROM %s GROUP BY order_id) t",
		orders)
	if err := v.db.GetContext(ctx, &rep.AverageOrderValue, aov); err != nil {
		return rep, fmt.Errorf("verify: average order value: %w", err)
	}
	rep.Revenue, rep.AverageOrderValue = round2(rep.Revenue), round2(rep.AverageOrderValue)

	if err := v.db.SelectContext(ctx, &rep.TopCategories, v.topCategoriesSQL(orders, products)); err != nil {
		return rep, fmt.Errorf("verify: top categories: %w", err)
	}
	for i := range rep.TopCategories {
		rep.TopCategories[i].Revenue = round2(rep.TopCategories[i].Revenue)
	}
	sort.SliceStable(rep.TopCategories, func(i, j int) bool {
		return rep.TopCategories[i].Revenue > rep.TopCategories[j].Revenue
	})

	v.logReport(rep)
	return rep, nil
}

func (v *Verifier) topCategoriesSQL(orders, products string) string {
	body := fmt.Sprintf(
		"COALESCE(p.category, '') AS category, SUM(o.total) AS revenue FROM %s o JOIN %s p ON o.sku = p.sku GROUP BY p.category ORDER BY revenue DESC",
		orders, products)
	if v.kind == "mssql" {
		return fmt.Sprintf("SELECT TOP %d %s", TopN, body)
	}
	return fmt.Sprintf("SELECT %s LIMIT %d", body, TopN)
}

func (v *Verifier) logReport(rep Report) {
	ev := v.log.Info()
	for name, n := range rep.Counts {
		ev = ev.Int64(name, n)
	}
	ev.Float64("revenue", rep.Revenue).
		Float64("average_order_value", rep.AverageOrderValue).
		Msg("verification complete")
	for i, c := range rep.TopCategories {
		v.log.Info().Int("rank", i+1).Str("category", c.Category).Float64("revenue", c.Revenue).Msg("top category")
	}
	for _, w := range rep.Warnings {
		v.log.Warn().Msg(w)
	}
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
