package web

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hiredesk/hiredesk/internal/importer"
	"github.com/hiredesk/hiredesk/internal/mapping"
	"github.com/hiredesk/hiredesk/internal/tabular"
	"github.com/hiredesk/hiredesk/internal/validate"
)

// handleStartImport runs the whole pre-flight pipeline (load, map,
// project, validate) and, if the file is clean, starts an asynchronous
// run and returns its id.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
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

	importType := importer.ImportType(r.FormValue("importType"))

	// A mapping submitted with the file replaces whatever is persisted
	// for this column signature; otherwise the persisted or auto-inferred
	// mapping is used.
	var m mapping.Mapping
	if raw := r.FormValue("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid mapping: %w", err))
			return
		}
		if err := s.mapper.Put(r.Context(), matrix.Columns, m); err != nil {
			s.writeError(w, r, http.StatusInternalServerError, err)
			return
		}
	} else {
		if m, err = s.mapper.Resolve(r.Context(), matrix.Columns); err != nil {
			s.writeError(w, r, http.StatusInternalServerError, err)
			return
		}
	}

	rows := mapping.Project(matrix, m)

	if errs := validate.Rows(rows, m); len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"validationErrors": errs,
		})
		return
	}

	run, err := s.service.Start(r.Context(), header.Filename, importType, rows)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, importer.ErrRunActive) {
			status = http.StatusConflict
		}
		s.writeError(w, r, status, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"runId":     run.ID,
		"totalRows": len(rows),
	})
}

// handleProgress returns the current progress snapshot.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.Get(chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, run.Progress())
}

// handleProgressEvents streams progress via Server-Sent Events. The event
// id is the percentage complete, so a reconnecting client can pass
// lastEventId to skip frames it has already seen.
func (s *Server) handleProgressEvents(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.Get(chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, err)
		return
	}

	lastEventID := -1
	if v := r.URL.Query().Get("lastEventId"); v != "" {
		lastEventID, _ = strconv.Atoi(v)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// The response controller flushes through middleware wrappers via
	// their Unwrap methods.
	rc := http.NewResponseController(w)

	events := run.Subscribe()
	for {
		select {
		case progress, open := <-events:
			if !open {
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				_ = rc.Flush()
				return
			}
			if progress.PercentComplete <= lastEventID {
				continue
			}
			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", progress.PercentComplete, data)
			if err := rc.Flush(); err != nil {
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}

// handleResult returns the terminal result, or the current progress with
// 202 while the run is still going.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.Get(chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, err)
		return
	}

	select {
	case <-run.Done():
		writeJSON(w, http.StatusOK, run.Result())
	default:
		writeJSON(w, http.StatusAccepted, run.Progress())
	}
}

// handleSkippedCSV exports every skipped and failed row of a finished run
// as CSV, one line per item.
func (s *Server) handleSkippedCSV(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.Get(chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, err)
		return
	}

	select {
	case <-run.Done():
	default:
		s.writeError(w, r, http.StatusConflict, fmt.Errorf("run %s has not finished", run.ID))
		return
	}
	result := run.Result()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="import-`+run.ID+`-skipped.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"kind", "description", "product_code", "reason", "row"})
	for _, item := range result.Skipped {
		_ = cw.Write([]string{"skip", item.Description, item.ProductCode, item.Reason, ""})
	}
	for _, re := range result.Errors {
		row := ""
		if re.Row != nil {
			row = strconv.Itoa(*re.Row)
		}
		_ = cw.Write([]string{"error", "", "", re.Type + ": " + re.Message, row})
	}
	cw.Flush()
}

// handleCancel requests cooperative cancellation.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Cancel(chi.URLParam(r, "runID")); err != nil {
		s.writeError(w, r, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// handleResume restarts a paused run from the submitted row index.
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}

	if err := s.service.Resume(chi.URLParam(r, "runID"), body.Index); err != nil {
		s.writeError(w, r, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
}
