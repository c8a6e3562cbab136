package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/wardenmcp/toolgate/internal/apierr"
)

// Respond writes a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// ErrorResponse is the standard JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// RespondError writes a JSON error response.
func RespondError(w http.ResponseWriter, status int, err string, message string) {
	Respond(w, status, ErrorResponse{
		Error:   err,
		Message: message,
	})
}

// RespondAPIErr renders err using the spec's {"error": "<message>"} envelope
// (spec.md §7). Any error that is not an *apierr.Error is treated as INTERNAL.
func RespondAPIErr(w http.ResponseWriter, err error) {
	if e, ok := apierr.As(err); ok {
		Respond(w, e.Status(), map[string]string{"error": e.Message})
		return
	}
	Respond(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
