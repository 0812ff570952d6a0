package web

import (
	"encoding/json"
	"net/http"

	"github.com/hiredesk/hiredesk/internal/logging"
)

// ErrorResponse is the JSON body for API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
	)
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
