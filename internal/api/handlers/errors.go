package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/nikhilbhutani/docrag/internal/ingest"
	"github.com/nikhilbhutani/docrag/internal/models"
)

// writeError maps pipeline errors to HTTP statuses. Server-side failures are
// logged and reported without internal detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrUnsupportedFormat):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, models.ErrAlreadyClaimed), errors.Is(err, ingest.ErrRunInProgress):
		status = http.StatusConflict
	case errors.Is(err, models.ErrEmbeddingUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, models.ErrStorage):
		status = http.StatusBadGateway
	}

	msg := err.Error()
	if status >= 500 {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
