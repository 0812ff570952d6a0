package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hiredesk/hiredesk/internal/mapping"
	"github.com/hiredesk/hiredesk/internal/schema"
	"github.com/hiredesk/hiredesk/internal/tabular"
	"github.com/hiredesk/hiredesk/internal/validate"
)

// mappingPreview is the response for the mapping screen: the proposed
// mapping for the uploaded file plus everything the UI needs to highlight
// problems before the user commits to an import.
type mappingPreview struct {
	Columns          []string         `json:"columns"`
	Mapping          mapping.Mapping  `json:"mapping"`
	RequiredUnmapped []schema.Field   `json:"requiredUnmapped"`
	RowCount         int              `json:"rowCount"`
	ValidationErrors []validate.Error `json:"validationErrors"`
}

// handleMappingPreview loads the file, resolves (or infers and persists)
// the mapping for its column signature, and validates the projected rows
// without touching customer or document data.
func (s *Server) handleMappingPreview(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("file too large or invalid form: %w", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("no file provided"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, fmt.Errorf("read file: %w", err))
		return
	}

	matrix, err := tabular.Load(header.Filename, data)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	m, err := s.mapper.Resolve(r.Context(), matrix.Columns)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	preview := mappingPreview{
		Columns:          matrix.Columns,
		Mapping:          m,
		RequiredUnmapped: []schema.Field{},
		RowCount:         len(matrix.Rows),
	}
	for _, f := range schema.Fields() {
		if f.Required() {
			if _, ok := m[f]; !ok {
				preview.RequiredUnmapped = append(preview.RequiredUnmapped, f)
			}
		}
	}
	preview.ValidationErrors = validate.Rows(mapping.Project(matrix, m), m)

	writeJSON(w, http.StatusOK, preview)
}

// handleMappingOverride changes one field's mapped column for a column
// signature and re-persists the mapping.
func (s *Server) handleMappingOverride(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Columns []string `json:"columns"`
		Field   string   `json:"field"`
		Column  string   `json:"column"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}

	field, ok := schema.FieldByKey(body.Field)
	if !ok {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("unknown field: %s", body.Field))
		return
	}

	m, err := s.mapper.Override(r.Context(), body.Columns, field, body.Column)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mapping": m})
}
