package builtin

import (
	"math"
	"strconv"
	"strings"

	"retailetl/pkg/records"
)

// Coerce casts the listed fields non-strictly: a value that cannot be
// represented in the target type becomes nil instead of failing the batch.
//
// Supported types:
//   - "float":  float64 (strings are trimmed and parsed)
//   - "int":    int64 (floats truncate toward zero, strings parse as int)
//   - "string": formatted text of the value
type Coerce struct {
	Types map[string]string
}

// Apply coerces in place. Fields absent from a record are left absent.
func (c Coerce) Apply(in []records.Record) []records.Record {
	if len(c.Types) == 0 {
		return in
	}
	for _, r := range in {
		for field, typ := range c.Types {
			v, ok := r[field]
			if !ok || v == nil {
				continue
			}
			switch typ {
			case "float":
				if f, ok := ToFloat(v); ok {
					r[field] = f
				} else {
					r[field] = nil
				}
			case "int":
				if i, ok := ToInt(v); ok {
					r[field] = i
				} else {
					r[field] = nil
				}
			case "string":
				r[field] = asText(v)
			}
		}
	}
	return in
}

// Number reports the float64 value of numeric Go types. Strings are not
// parsed.
func Number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	}
	return 0, false
}

// ToFloat is the non-strict float cast: numbers convert, numeric strings
// parse, everything else (nil, text, NaN) fails.
func ToFloat(v any) (float64, bool) {
	if f, ok := Number(v); ok {
		if math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ToInt is the non-strict integer cast. Floats truncate toward zero; strings
// must hold an integer literal.
func ToInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || t > math.MaxInt64 || t < math.MinInt64 {
			return 0, false
		}
		return int64(t), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

// Round rounds float fields to Places decimals (half away from zero).
// Non-float values are left untouched.
type Round struct {
	Fields []string
	Places int
}

// Apply rounds in place.
func (rd Round) Apply(in []records.Record) []records.Record {
	scale := math.Pow(10, float64(rd.Places))
	for _, r := range in {
		for _, f := range rd.Fields {
			if v, ok := r[f].(float64); ok {
				r[f] = math.Round(v*scale) / scale
			}
		}
	}
	return in
}
