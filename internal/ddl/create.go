// Package ddl defines a small, backend-agnostic model for SQL DDL and
// renders CREATE/DROP TABLE statements from it for a given Dialect.
//
// Storage backends register their Dialect with the storage package; callers
// only ever hand over TableDefs.
package ddl

import (
	"fmt"
	"strings"
)

// Dialect captures the SQL differences between backends that matter for
// table creation.
type Dialect struct {
	Name string
	// Quote quotes one identifier segment.
	Quote func(string) string
	// Types maps logical types to SQL types.
	Types map[Type]string
	// Guard wraps a plain CREATE TABLE so that it is a no-op when the table
	// exists. Nil means the dialect supports CREATE TABLE IF NOT EXISTS.
	Guard func(fqn, create string) string
}

// QuoteFQN quotes a possibly schema-qualified name segment by segment.
// Empty segments are ignored.
func (d Dialect) QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, d.Quote(p))
	}
	return strings.Join(out, ".")
}

func (d Dialect) quoteAll(cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = d.Quote(c)
	}
	return strings.Join(out, ", ")
}

// BuildCreateTableSQL renders a CREATE TABLE statement for t.
//
// Rules:
//   - t.FQN must be non-empty and t must have at least one column.
//   - Each column must have a non-empty Name and a Type known to the dialect.
//   - Primary-key columns are always NOT NULL and are rendered as a
//     PRIMARY KEY clause in declaration order.
//   - Foreign keys follow the primary key.
func BuildCreateTableSQL(t TableDef, d Dialect) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1+len(t.ForeignKeys))
	pks := make([]string, 0, 2)

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ, ok := d.Types[c.Type]
		if !ok || typ == "" {
			return "", fmt.Errorf("ddl: %s has no SQL type for %s (column %s)", d.Name, c.Type, name)
		}

		var sb strings.Builder
		sb.WriteString(d.Quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable || c.PrimaryKey {
			sb.WriteString(" NOT NULL")
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, name)
		}
	}

	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", d.quoteAll(pks)))
	}
	for _, fk := range t.ForeignKeys {
		if len(fk.Columns) == 0 || len(fk.Columns) != len(fk.RefColumns) || fk.RefTable == "" {
			return "", fmt.Errorf("ddl: malformed foreign key on %s", fqn)
		}
		cols = append(cols, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			d.quoteAll(fk.Columns), d.QuoteFQN(fk.RefTable), d.quoteAll(fk.RefColumns)))
	}

	body := strings.Join(cols, ",\n  ")
	if d.Guard != nil {
		return d.Guard(fqn, fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", d.QuoteFQN(fqn), body)), nil
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", d.QuoteFQN(fqn), body), nil
}

// BuildDropTableSQL renders DROP TABLE IF EXISTS for fqn.
func BuildDropTableSQL(fqn string, d Dialect) string {
	return "DROP TABLE IF EXISTS " + d.QuoteFQN(fqn)
}
