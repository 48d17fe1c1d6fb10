package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/nikhilbhutani/docrag/internal/rag"
)

type Retriever interface {
	Retrieve(ctx context.Context, query string, opts rag.RetrieveOptions) ([]rag.Result, error)
}

type RAGHandler struct {
	retriever Retriever
}

func NewRAGHandler(retriever Retriever) *RAGHandler {
	return &RAGHandler{retriever: retriever}
}

type searchRequest struct {
	Query     string   `json:"query"`
	Limit     int      `json:"limit,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

func (h *RAGHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Limit < 0 || req.Limit > 50 {
		badRequest(w, "limit must be between 0 and 50")
		return
	}
	if req.Threshold != nil && (*req.Threshold < 0 || *req.Threshold > 1) {
		badRequest(w, "threshold must be between 0 and 1")
		return
	}

	results, err := h.retriever.Retrieve(r.Context(), req.Query, rag.RetrieveOptions{
		Limit:     req.Limit,
		Threshold: req.Threshold,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}
