// Package tabular turns uploaded spreadsheet exports into a plain header
// plus row matrix. The import engine never touches file formats directly;
// everything downstream of this package works on Matrix values.
//
// Supported containers: delimited text (CSV) and XLSX workbooks (first
// sheet only). Anything else is rejected up front.
package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Matrix is the parsed content of one uploaded file: the header row and
// the data rows beneath it, in source order. Rows may be ragged; short
// rows are padded on access by the projector, never here.
type Matrix struct {
	Columns []string
	Rows    [][]string
}

// xlsxMagic is the ZIP local-file-header signature; XLSX files are ZIP
// containers regardless of their extension.
var xlsxMagic = []byte{0x50, 0x4b, 0x03, 0x04}

// Load parses file data into a Matrix. The container format is chosen by
// extension first, content sniffing second, so a CSV renamed to .xlsx
// still parses.
func Load(fileName string, data []byte) (*Matrix, error) {
	switch {
	case strings.EqualFold(filepath.Ext(fileName), ".xlsx"), bytes.HasPrefix(data, xlsxMagic):
		return loadXLSX(data)
	default:
		return loadCSV(data)
	}
}

func loadCSV(data []byte) (*Matrix, error) {
	data = sanitizeUTF8(data)

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse CSV: %w", err)
	}
	return fromRecords(records)
}

func loadXLSX(data []byte) (*Matrix, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return fromRecords(records)
}

// fromRecords splits raw records into header and data rows, cleaning the
// header cells and dropping rows that are entirely blank.
func fromRecords(records [][]string) (*Matrix, error) {
	for len(records) > 0 && isEmptyRow(records[0]) {
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = CleanCell(h)
	}

	m := &Matrix{Columns: header}
	for _, row := range records[1:] {
		if isEmptyRow(row) {
			continue
		}
		m.Rows = append(m.Rows, row)
	}
	return m, nil
}

// CleanCell trims whitespace and strips spreadsheet formula-escape
// artifacts ( ="0042" style quoting survives many CSV exporters).
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.Trim(s, `"'`)
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// sanitizeUTF8 replaces invalid byte sequences with the Unicode
// replacement character so the CSV reader never chokes on exports from
// legacy encodings.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
