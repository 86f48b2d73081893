package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/snarg/lyrics-engine/internal/lyrics"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// SegmentsResponse is the success body of both /analyze and /translate.
type SegmentsResponse struct {
	Segments []lyrics.Line `json:"segments"`
}

// WriteSegments writes 200 {"segments": [...]}, encoding nil as [].
func WriteSegments(w http.ResponseWriter, lines []lyrics.Line) {
	if lines == nil {
		lines = []lyrics.Line{}
	}
	WriteJSON(w, http.StatusOK, SegmentsResponse{Segments: lines})
}

// DecodeJSON reads and decodes a JSON request body into v.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("missing request body")
	}
	return json.NewDecoder(r.Body).Decode(v)
}
