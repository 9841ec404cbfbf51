// Package respond writes JSON responses and keeps internal failure details out of them.
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// JSON writes v as a JSON response with the given status code.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent; all that is left is to log.
		slog.Error("failed to encode JSON response",
			slog.Int("status_code", code),
			slog.Any("error", err))
	}
}

// Error writes an error response with a stable machine-readable code and a
// human-readable message. The message must be safe to show to clients.
func Error(w http.ResponseWriter, code int, errCode, message string) {
	JSON(w, code, ErrorBody{Error: errCode, Message: message})
}

// Internal logs err with secrets masked and answers with a generic 500.
func Internal(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", SanitizeError(err)))
	Error(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
