package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"retailetl/pkg/records"
)

// DateLayout is the layout used when writing time values.
const DateLayout = "2006-01-02"

// WriteTable writes a header row followed by one row per record, in cols
// order. nil becomes an empty cell.
func WriteTable(w io.Writer, cols []string, rows []records.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	buf := make([]string, len(cols))
	for i, r := range rows {
		for j, c := range cols {
			buf[j] = FormatCell(r[c])
		}
		if err := cw.Write(buf); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatCell renders a single value the way WriteTable does.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(DateLayout)
	default:
		return fmt.Sprint(x)
	}
}
