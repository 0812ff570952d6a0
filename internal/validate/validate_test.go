package validate

import (
	"testing"

	"github.com/hiredesk/hiredesk/internal/mapping"
	"github.com/hiredesk/hiredesk/internal/schema"
)

// fullMapping maps every required field so per-row checks run.
func fullMapping() mapping.Mapping {
	m := make(mapping.Mapping)
	for _, f := range schema.Fields() {
		m[f] = f.Label()
	}
	return m
}

func goodRow(index int) schema.Row {
	r := schema.Row{Index: index}
	r.Set(schema.CustomerID, "80000123-1646871234")
	r.Set(schema.CustomerName, "Acme Hire Ltd")
	r.Set(schema.DocumentDate, "05/03/2024")
	r.Set(schema.DocumentNumber, "INV-1001")
	r.Set(schema.ProductCode, "SCAF-01")
	r.Set(schema.QuantityOut, "4")
	r.Set(schema.QuantityIn, "0")
	return r
}

// ============================================================================
// ValidDate / NormalizeDate Tests
// ============================================================================

func TestValidDate(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"05/03/2024", true},
		{"2024-03-05", true},
		{"31/12/1999", true},
		// Day and month ranges only; calendar validity is not checked.
		{"31/02/2024", true},
		{"2024-02-31", true},
		{"00/03/2024", false},
		{"32/03/2024", false},
		{"05/13/2024", false},
		{"5/3/2024", false},
		{"2024/03/05", false},
		{"05-03-2024", false},
		{"2024-3-05", false},
		{"05/03/24", false},
		{"not a date", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidDate(tt.in); got != tt.want {
			t.Errorf("ValidDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"05/03/2024", "2024-03-05"},
		{"31/12/1999", "1999-12-31"},
		{"2024-03-05", "2024-03-05"},
		{"garbage", "garbage"},
	}
	for _, tt := range tests {
		if got := NormalizeDate(tt.in); got != tt.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// ============================================================================
// Rows Tests
// ============================================================================

func TestRows_CleanRowsPass(t *testing.T) {
	rows := []schema.Row{goodRow(0), goodRow(1)}
	if errs := Rows(rows, fullMapping()); len(errs) != 0 {
		t.Errorf("Rows() = %v, want no errors", errs)
	}
}

func TestRows_UnmappedRequiredField(t *testing.T) {
	m := fullMapping()
	delete(m, schema.DocumentNumber)

	errs := Rows([]schema.Row{goodRow(0)}, m)
	if len(errs) != 1 {
		t.Fatalf("Rows() returned %d errors, want 1: %v", len(errs), errs)
	}
	if errs[0].Row != -1 || errs[0].Field != schema.DocumentNumber || errs[0].Reason != FieldNotMapped {
		t.Errorf("Rows()[0] = %+v, want mapping-level field-not-mapped for documentNumber", errs[0])
	}
}

func TestRows_NoShortCircuitWithinRow(t *testing.T) {
	bad := goodRow(0)
	bad.Set(schema.DocumentDate, "")
	bad.Set(schema.QuantityOut, "four")

	errs := Rows([]schema.Row{bad}, fullMapping())
	if len(errs) != 2 {
		t.Fatalf("Rows() returned %d errors, want 2: %v", len(errs), errs)
	}

	found := map[Reason]bool{}
	for _, e := range errs {
		if e.Row != 0 {
			t.Errorf("error row = %d, want 0", e.Row)
		}
		found[e.Reason] = true
	}
	if !found[MissingValue] || !found[NotANumber] {
		t.Errorf("Rows() reasons = %v, want both missing-value and not-a-number", errs)
	}
}

func TestRows_OptionalFieldsMayBeEmpty(t *testing.T) {
	row := goodRow(0)
	row.Set(schema.Description, "")
	row.Set(schema.Rate, "")
	row.Set(schema.Amount, "")

	if errs := Rows([]schema.Row{row}, fullMapping()); len(errs) != 0 {
		t.Errorf("Rows() = %v, want optional empties accepted", errs)
	}
}

func TestRows_NumericAcceptsCommasAndDecimals(t *testing.T) {
	row := goodRow(0)
	row.Set(schema.Rate, "1,250.50")
	row.Set(schema.Amount, "-3.2")

	if errs := Rows([]schema.Row{row}, fullMapping()); len(errs) != 0 {
		t.Errorf("Rows() = %v, want formatted numbers accepted", errs)
	}
}

func TestRows_ReportsEveryOffendingRow(t *testing.T) {
	first := goodRow(0)
	first.Set(schema.DocumentDate, "13/13/2024")
	second := goodRow(1)
	second.Set(schema.CustomerName, "   ")

	errs := Rows([]schema.Row{first, second}, fullMapping())
	if len(errs) != 2 {
		t.Fatalf("Rows() returned %d errors, want 2: %v", len(errs), errs)
	}
	if errs[0].Row != 0 || errs[0].Reason != InvalidDate {
		t.Errorf("Rows()[0] = %+v, want invalid-date-format on row 0", errs[0])
	}
	if errs[1].Row != 1 || errs[1].Reason != MissingValue {
		t.Errorf("Rows()[1] = %+v, want missing-value on row 1", errs[1])
	}
}

func TestError_Message(t *testing.T) {
	e := Error{Row: 2, Field: schema.DocumentDate, Reason: InvalidDate}
	if got := e.Error(); got != "row 3, Date: invalid-date-format" {
		t.Errorf("Error() = %q", got)
	}

	e = Error{Row: -1, Field: schema.ProductCode, Reason: FieldNotMapped}
	if got := e.Error(); got != "Product Code: field-not-mapped" {
		t.Errorf("Error() = %q", got)
	}
}
