// Package validate checks canonical rows before any remote call is made.
// A non-empty error list blocks the import entirely; the caller surfaces
// every error at once so the preview UI can highlight each offending cell.
package validate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hiredesk/hiredesk/internal/mapping"
	"github.com/hiredesk/hiredesk/internal/schema"
)

// Reason classifies a validation failure.
type Reason string

const (
	FieldNotMapped Reason = "field-not-mapped"
	MissingValue   Reason = "missing-value"
	InvalidDate    Reason = "invalid-date-format"
	NotANumber     Reason = "not-a-number"
)

// Error is one per-row, per-field validation failure. Row is the source
// data row index (0-based, header excluded); it is -1 for mapping-level
// errors that apply to every row.
type Error struct {
	Row    int          `json:"row"`
	Field  schema.Field `json:"field"`
	Reason Reason       `json:"reason"`
}

func (e Error) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("%s: %s", e.Field.Label(), e.Reason)
	}
	return fmt.Sprintf("row %d, %s: %s", e.Row+1, e.Field.Label(), e.Reason)
}

// Rows validates every canonical row against the mapping and returns the
// full error list. Checks never short-circuit within a row: a row with a
// missing date and a bad quantity reports both.
func Rows(rows []schema.Row, m mapping.Mapping) []Error {
	var errs []Error

	// Unmapped required fields block the run before per-row checks.
	for _, f := range schema.Fields() {
		if f.Required() {
			if _, ok := m[f]; !ok {
				errs = append(errs, Error{Row: -1, Field: f, Reason: FieldNotMapped})
			}
		}
	}

	for i := range rows {
		row := &rows[i]
		for _, f := range schema.Fields() {
			if _, mapped := m[f]; !mapped {
				continue
			}

			value := strings.TrimSpace(row.Get(f))
			spec := schema.SpecOf(f)

			if value == "" {
				if spec.Required {
					errs = append(errs, Error{Row: i, Field: f, Reason: MissingValue})
				}
				continue
			}

			switch spec.Kind {
			case schema.KindDate:
				if !ValidDate(value) {
					errs = append(errs, Error{Row: i, Field: f, Reason: InvalidDate})
				}
			case schema.KindNumeric:
				if !validNumber(value) {
					errs = append(errs, Error{Row: i, Field: f, Reason: NotANumber})
				}
			}
		}
	}

	return errs
}

// ValidDate accepts exactly DD/MM/YYYY or YYYY-MM-DD with day 01-31,
// month 01-12 and a 4-digit year. Calendar validity beyond those ranges
// is deliberately not checked; 31/02/2024 passes, matching the behavior
// the document previews were built around.
func ValidDate(s string) bool {
	switch {
	case len(s) == 10 && s[2] == '/' && s[5] == '/':
		return inRange(s[0:2], 1, 31) && inRange(s[3:5], 1, 12) && digits(s[6:10])
	case len(s) == 10 && s[4] == '-' && s[7] == '-':
		return digits(s[0:4]) && inRange(s[5:7], 1, 12) && inRange(s[8:10], 1, 31)
	default:
		return false
	}
}

// NormalizeDate rewrites DD/MM/YYYY to YYYY-MM-DD for storage. Values
// already in ISO form pass through unchanged.
func NormalizeDate(s string) string {
	if len(s) == 10 && s[2] == '/' && s[5] == '/' {
		return s[6:10] + "-" + s[3:5] + "-" + s[0:2]
	}
	return s
}

func inRange(s string, lo, hi int) bool {
	if !digits(s) {
		return false
	}
	n, err := strconv.Atoi(s)
	return err == nil && n >= lo && n <= hi
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

func validNumber(s string) bool {
	_, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	return err == nil
}
