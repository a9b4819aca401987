package builtin

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"retailetl/pkg/records"
)

// Case selects the casing applied by TextCase.
type Case int

const (
	// CaseKeep only trims.
	CaseKeep Case = iota
	CaseTitle
	CaseUpper
	CaseLower
)

// TextCase trims, NFC-normalizes and re-cases string fields. Nil values
// become the empty string; non-string values are formatted first. Fields
// absent from a record are left absent.
type TextCase struct {
	Fields map[string]Case
}

// Apply normalizes in place.
func (tc TextCase) Apply(in []records.Record) []records.Record {
	if len(tc.Fields) == 0 {
		return in
	}
	// cases.Caser keeps state, so one set per call.
	title := cases.Title(language.Und)
	upper := cases.Upper(language.Und)
	lower := cases.Lower(language.Und)

	for _, r := range in {
		for field, c := range tc.Fields {
			v, ok := r[field]
			if !ok {
				continue
			}
			s := ""
			if v != nil {
				s = asText(v)
			}
			s = strings.TrimSpace(norm.NFC.String(s))
			switch c {
			case CaseTitle:
				s = title.String(s)
			case CaseUpper:
				s = upper.String(s)
			case CaseLower:
				s = lower.String(s)
			}
			r[field] = s
		}
	}
	return in
}
