package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"shiptwin/internal/tracker"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	// Errors lists rejected fields for validation problems.
	Errors []tracker.Violation `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// writeError maps engine errors to problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *tracker.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, Problem{
			Type:     "about:blank",
			Title:    "Validation failed",
			Status:   http.StatusBadRequest,
			Detail:   err.Error(),
			Instance: r.URL.Path,
			Errors:   ve.Violations,
		})
	case tracker.IsNotFound(err):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error(), r.URL.Path)
	default:
		writeProblem(w, http.StatusInternalServerError, "Internal error", err.Error(), r.URL.Path)
	}
}
