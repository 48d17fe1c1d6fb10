package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/nikhilbhutani/docrag/internal/ingest"
)

type IngestRunner interface {
	Run(ctx context.Context, limit int) (*ingest.BatchResult, error)
}

type IngestHandler struct {
	runner       IngestRunner
	defaultLimit int
}

func NewIngestHandler(runner IngestRunner, defaultLimit int) *IngestHandler {
	return &IngestHandler{runner: runner, defaultLimit: defaultLimit}
}

type runRequest struct {
	Limit int `json:"limit"`
}

// Run processes pending documents synchronously and returns the batch summary.
func (h *IngestHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "invalid request body")
		return
	}
	if req.Limit < 0 {
		badRequest(w, "limit must not be negative")
		return
	}
	if req.Limit == 0 {
		req.Limit = h.defaultLimit
	}

	res, err := h.runner.Run(r.Context(), req.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
