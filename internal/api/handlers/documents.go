package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/docrag/internal/auth"
	"github.com/nikhilbhutani/docrag/internal/document"
	"github.com/nikhilbhutani/docrag/internal/models"
)

type Uploader interface {
	Upload(ctx context.Context, req document.UploadRequest) (*models.Document, error)
}

type DocumentStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Document, error)
	List(ctx context.Context, f document.ListFilter) ([]models.Document, error)
	Approve(ctx context.Context, ids []uuid.UUID) (int64, error)
	Requeue(ctx context.Context, id uuid.UUID) error
}

// IngestEnqueuer schedules an asynchronous ingest run.
type IngestEnqueuer interface {
	EnqueueIngestBatch(ctx context.Context, limit int) error
}

type DocumentHandler struct {
	uploader Uploader
	docs     DocumentStore
	queue    IngestEnqueuer
}

func NewDocumentHandler(uploader Uploader, docs DocumentStore, queue IngestEnqueuer) *DocumentHandler {
	return &DocumentHandler{uploader: uploader, docs: docs, queue: queue}
}

const maxUploadBytes = 50 << 20

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		badRequest(w, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "file required")
		return
	}
	defer file.Close()

	ready, _ := strconv.ParseBool(r.FormValue("ready"))

	req := document.UploadRequest{
		Filename:   header.Filename,
		MimeType:   header.Header.Get("Content-Type"),
		Size:       header.Size,
		Data:       file,
		Department: r.FormValue("afdeling"),
		Category:   r.FormValue("categorie"),
		Subject:    r.FormValue("onderwerp"),
		Ready:      ready,
	}
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		if id, err := claims.UserID(); err == nil {
			req.UploadedBy = &id
		}
	}

	doc, err := h.uploader.Upload(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if doc.ReadyForIndexing {
		h.enqueue(r.Context())
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	docs, err := h.docs.List(r.Context(), document.ListFilter{
		State:  models.State(q.Get("state")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "count": len(docs)})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type statusResponse struct {
	ID          uuid.UUID    `json:"id"`
	State       models.State `json:"state"`
	Processed   bool         `json:"processed"`
	ChunkCount  *int         `json:"chunk_count,omitempty"`
	LastError   *string      `json:"last_error,omitempty"`
	Attempts    int          `json:"attempts"`
	LastUpdated time.Time    `json:"last_updated"`
}

func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		ID:          doc.ID,
		State:       doc.State(),
		Processed:   doc.Processed,
		ChunkCount:  doc.ChunkCount,
		LastError:   doc.LastError,
		Attempts:    doc.Attempts,
		LastUpdated: doc.LastUpdated,
	})
}

type approveRequest struct {
	IDs []uuid.UUID `json:"ids"`
	// Process enqueues an ingest run right away.
	Process bool `json:"process"`
}

func (h *DocumentHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		badRequest(w, "ids required")
		return
	}

	n, err := h.docs.Approve(r.Context(), req.IDs)
	if err != nil {
		writeError(w, r, err)
		return
	}

	enqueued := false
	if req.Process && n > 0 {
		enqueued = h.enqueue(r.Context())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"approved": n, "enqueued": enqueued})
}

func (h *DocumentHandler) Requeue(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid document ID")
		return
	}
	if err := h.docs.Requeue(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	enqueued := h.enqueue(r.Context())
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"id": id, "state": models.StateQueued, "enqueued": enqueued})
}

func (h *DocumentHandler) load(w http.ResponseWriter, r *http.Request) (*models.Document, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid document ID")
		return nil, false
	}
	doc, err := h.docs.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return doc, true
}

// enqueue asks the worker for a run. The scheduler picks queued documents up
// anyway, so a failure here is only logged.
func (h *DocumentHandler) enqueue(ctx context.Context) bool {
	if h.queue == nil {
		return false
	}
	if err := h.queue.EnqueueIngestBatch(ctx, 0); err != nil {
		slog.Warn("failed to enqueue ingest run", "error", err)
		return false
	}
	return true
}
