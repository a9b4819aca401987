package ddl

// Type is a dialect-neutral column type. Each Dialect maps it to SQL.
type Type int

const (
	Text Type = iota
	BigInt
	Int
	Numeric
	Date
)

func (t Type) String() string {
	switch t {
	case BigInt:
		return "bigint"
	case Int:
		return "int"
	case Numeric:
		return "numeric"
	case Date:
		return "date"
	default:
		return "text"
	}
}

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: logical column name (unquoted; quoting happens at render time)
//   - Type: logical type, rendered through the dialect's type map
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
type ColumnDef struct {
	Name       string
	Type       Type
	Nullable   bool
	PrimaryKey bool
}

// ForeignKey references RefColumns of RefTable from Columns.
type ForeignKey struct {
	Columns    []string
	RefTable   string
	RefColumns []string
}

// TableDef holds the table name (FQN), an ordered list of columns and any
// foreign keys. Renderers quote the FQN segment by segment.
type TableDef struct {
	FQN         string
	Columns     []ColumnDef
	ForeignKeys []ForeignKey
}

// ColumnNames returns the column names in declaration order.
func (t TableDef) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Column returns the named column.
func (t TableDef) Column(name string) (ColumnDef, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDef{}, false
}
