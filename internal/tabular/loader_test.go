package tabular

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

// ============================================================================
// CSV Loading Tests
// ============================================================================

func TestLoad_CSV(t *testing.T) {
	data := []byte("Customer,Invoice No.,Qty Out\nAcme,INV-1,4\nBolt Ltd,INV-2,2\n")

	m, err := Load("export.csv", data)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	wantCols := []string{"Customer", "Invoice No.", "Qty Out"}
	if len(m.Columns) != len(wantCols) {
		t.Fatalf("Columns = %v, want %v", m.Columns, wantCols)
	}
	for i, c := range wantCols {
		if m.Columns[i] != c {
			t.Errorf("Columns[%d] = %q, want %q", i, m.Columns[i], c)
		}
	}
	if len(m.Rows) != 2 || m.Rows[1][0] != "Bolt Ltd" {
		t.Errorf("Rows = %v, want 2 data rows", m.Rows)
	}
}

func TestLoad_CSVSkipsBlankRows(t *testing.T) {
	data := []byte("\n,,\nCustomer,Qty\nAcme,1\n,,\nBolt,2\n")

	m, err := Load("export.csv", data)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.Columns[0] != "Customer" {
		t.Errorf("Columns = %v, want header found past leading blanks", m.Columns)
	}
	if len(m.Rows) != 2 {
		t.Errorf("Rows = %v, want interior blank row dropped", m.Rows)
	}
}

func TestLoad_CSVRaggedRows(t *testing.T) {
	data := []byte("A,B,C\n1,2\n1,2,3,4\n")

	m, err := Load("export.csv", data)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(m.Rows) != 2 || len(m.Rows[0]) != 2 || len(m.Rows[1]) != 4 {
		t.Errorf("Rows = %v, want ragged rows preserved", m.Rows)
	}
}

func TestLoad_CSVHeaderCellsCleaned(t *testing.T) {
	data := []byte("  Customer , =\"Invoice No.\"\nAcme,INV-1\n")

	m, err := Load("export.csv", data)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.Columns[0] != "Customer" || m.Columns[1] != "Invoice No." {
		t.Errorf("Columns = %v, want cleaned header cells", m.Columns)
	}
}

func TestLoad_CSVInvalidUTF8(t *testing.T) {
	data := []byte("Customer,Qty\nCaf\xe9,1\n")

	m, err := Load("export.csv", data)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(m.Rows) != 1 {
		t.Fatalf("Rows = %v, want 1", m.Rows)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	if _, err := Load("export.csv", []byte("\n\n")); err == nil {
		t.Error("Load() on an empty file should error")
	}
}

// ============================================================================
// XLSX Loading Tests
// ============================================================================

func buildWorkbook(t *testing.T, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow() error = %v", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return buf.Bytes()
}

func TestLoad_XLSX(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"Customer", "Invoice No.", "Qty Out"},
		{"Acme", "INV-1", 4},
	})

	m, err := Load("export.xlsx", data)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.Columns[1] != "Invoice No." {
		t.Errorf("Columns = %v", m.Columns)
	}
	if len(m.Rows) != 1 || m.Rows[0][2] != "4" {
		t.Errorf("Rows = %v, want one row with Qty Out rendered as text", m.Rows)
	}
}

func TestLoad_XLSXSniffedWithoutExtension(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"Customer"},
		{"Acme"},
	})

	// Wrong extension; the ZIP signature decides.
	m, err := Load("export.csv", data)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.Columns[0] != "Customer" || len(m.Rows) != 1 {
		t.Errorf("Matrix = %+v, want workbook parsed via content sniffing", m)
	}
}

// ============================================================================
// CleanCell Tests
// ============================================================================

func TestCleanCell(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  plain  ", "plain"},
		{`="0042"`, "0042"},
		{"=SUM(A1)", "SUM(A1)"},
		{`"quoted"`, "quoted"},
		{"'quoted'", "quoted"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanCell(tt.in); got != tt.want {
			t.Errorf("CleanCell(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
