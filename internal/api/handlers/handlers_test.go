package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docrag/internal/auth"
	"github.com/nikhilbhutani/docrag/internal/document"
	"github.com/nikhilbhutani/docrag/internal/ingest"
	"github.com/nikhilbhutani/docrag/internal/models"
	"github.com/nikhilbhutani/docrag/internal/rag"
)

type fakeUploader struct {
	got  document.UploadRequest
	body string
	err  error
}

func (f *fakeUploader) Upload(_ context.Context, req document.UploadRequest) (*models.Document, error) {
	f.got = req
	data, _ := io.ReadAll(req.Data)
	f.body = string(data)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Document{ID: uuid.New(), Filename: req.Filename, ReadyForIndexing: req.Ready}, nil
}

type fakeDocs struct {
	docs       map[uuid.UUID]*models.Document
	filter     document.ListFilter
	approved   []uuid.UUID
	requeued   uuid.UUID
	requeueErr error
}

func (f *fakeDocs) Get(_ context.Context, id uuid.UUID) (*models.Document, error) {
	if d, ok := f.docs[id]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("get document: %w", models.ErrNotFound)
}

func (f *fakeDocs) List(_ context.Context, flt document.ListFilter) ([]models.Document, error) {
	f.filter = flt
	var out []models.Document
	for _, d := range f.docs {
		out = append(out, *d)
	}
	return out, nil
}

func (f *fakeDocs) Approve(_ context.Context, ids []uuid.UUID) (int64, error) {
	f.approved = ids
	return int64(len(ids)), nil
}

func (f *fakeDocs) Requeue(_ context.Context, id uuid.UUID) error {
	f.requeued = id
	return f.requeueErr
}

type fakeQueue struct {
	calls int
	err   error
}

func (f *fakeQueue) EnqueueIngestBatch(context.Context, int) error {
	f.calls++
	return f.err
}

func routes(h *DocumentHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/documents", h.Upload)
	r.Get("/documents", h.List)
	r.Post("/documents/approve", h.Approve)
	r.Get("/documents/{id}", h.Get)
	r.Get("/documents/{id}/status", h.Status)
	r.Post("/documents/{id}/requeue", h.Requeue)
	return r
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func multipartUpload(t *testing.T, fields map[string]string, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		io.WriteString(fw, content)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	up := &fakeUploader{}
	q := &fakeQueue{}
	h := routes(NewDocumentHandler(up, &fakeDocs{}, q))

	user := uuid.New()
	req := multipartUpload(t, map[string]string{
		"afdeling":  "Werkplaats",
		"categorie": "Handleiding",
		"onderwerp": "Remmen",
		"ready":     "true",
	}, "remmen.txt", "check brake pads")
	req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.String()},
	}))

	rec := do(h, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, "remmen.txt", up.got.Filename)
	assert.Equal(t, "check brake pads", up.body)
	assert.Equal(t, "Werkplaats", up.got.Department)
	assert.Equal(t, "Handleiding", up.got.Category)
	assert.Equal(t, "Remmen", up.got.Subject)
	assert.True(t, up.got.Ready)
	require.NotNil(t, up.got.UploadedBy)
	assert.Equal(t, user, *up.got.UploadedBy)
	assert.Equal(t, 1, q.calls)
}

func TestUpload_NotReadyDoesNotEnqueue(t *testing.T) {
	q := &fakeQueue{}
	h := routes(NewDocumentHandler(&fakeUploader{}, &fakeDocs{}, q))

	rec := do(h, multipartUpload(t, nil, "a.txt", "x"))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Zero(t, q.calls)
}

func TestUpload_Errors(t *testing.T) {
	h := routes(NewDocumentHandler(&fakeUploader{}, &fakeDocs{}, nil))
	rec := do(h, multipartUpload(t, map[string]string{"afdeling": "x"}, "", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("a.exe: %w", models.ErrUnsupportedFormat), http.StatusUnsupportedMediaType},
		{fmt.Errorf("filename required: %w", models.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("upload: %w: boom", models.ErrStorage), http.StatusBadGateway},
		{errors.New("something else"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h := routes(NewDocumentHandler(&fakeUploader{err: tt.err}, &fakeDocs{}, nil))
			rec := do(h, multipartUpload(t, nil, "a.txt", "x"))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestUpload_ServerErrorsHideDetail(t *testing.T) {
	h := routes(NewDocumentHandler(&fakeUploader{err: fmt.Errorf("insert: %w: password=hunter2", models.ErrStorage)}, &fakeDocs{}, nil))
	rec := do(h, multipartUpload(t, nil, "a.txt", "x"))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestGetAndStatus(t *testing.T) {
	id := uuid.New()
	msg := "no text extracted"
	docs := &fakeDocs{docs: map[uuid.UUID]*models.Document{
		id: {ID: id, Filename: "scan.png", ReadyForIndexing: true, LastError: &msg, Attempts: 2},
	}}
	h := routes(NewDocumentHandler(&fakeUploader{}, docs, nil))

	rec := do(h, httptest.NewRequest(http.MethodGet, "/documents/"+id.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "scan.png", decode(t, rec)["filename"])

	rec = do(h, httptest.NewRequest(http.MethodGet, "/documents/"+id.String()+"/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "failed", body["state"])
	assert.Equal(t, msg, body["last_error"])
	assert.EqualValues(t, 2, body["attempts"])

	rec = do(h, httptest.NewRequest(http.MethodGet, "/documents/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h, httptest.NewRequest(http.MethodGet, "/documents/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestList_PassesFilter(t *testing.T) {
	docs := &fakeDocs{}
	h := routes(NewDocumentHandler(&fakeUploader{}, docs, nil))

	rec := do(h, httptest.NewRequest(http.MethodGet, "/documents?state=queued&limit=5&offset=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StateQueued, docs.filter.State)
	assert.Equal(t, 5, docs.filter.Limit)
	assert.Equal(t, 10, docs.filter.Offset)
}

func TestApprove(t *testing.T) {
	docs := &fakeDocs{}
	q := &fakeQueue{}
	h := routes(NewDocumentHandler(&fakeUploader{}, docs, q))

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	body, _ := json.Marshal(map[string]interface{}{"ids": ids, "process": true})
	rec := do(h, httptest.NewRequest(http.MethodPost, "/documents/approve", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ids, docs.approved)
	assert.Equal(t, 1, q.calls)
	assert.Equal(t, true, decode(t, rec)["enqueued"])

	body, _ = json.Marshal(map[string]interface{}{"ids": ids})
	rec = do(h, httptest.NewRequest(http.MethodPost, "/documents/approve", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, q.calls)

	rec = do(h, httptest.NewRequest(http.MethodPost, "/documents/approve", strings.NewReader(`{"ids":[]}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApprove_EnqueueFailureIsNotFatal(t *testing.T) {
	q := &fakeQueue{err: errors.New("redis down")}
	h := routes(NewDocumentHandler(&fakeUploader{}, &fakeDocs{}, q))

	body, _ := json.Marshal(map[string]interface{}{"ids": []uuid.UUID{uuid.New()}, "process": true})
	rec := do(h, httptest.NewRequest(http.MethodPost, "/documents/approve", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["enqueued"])
}

func TestRequeue(t *testing.T) {
	docs := &fakeDocs{}
	q := &fakeQueue{}
	h := routes(NewDocumentHandler(&fakeUploader{}, docs, q))

	id := uuid.New()
	rec := do(h, httptest.NewRequest(http.MethodPost, "/documents/"+id.String()+"/requeue", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, id, docs.requeued)
	assert.Equal(t, 1, q.calls)

	docs.requeueErr = fmt.Errorf("requeue: %w", models.ErrNotFound)
	rec = do(h, httptest.NewRequest(http.MethodPost, "/documents/"+id.String()+"/requeue", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeRunner struct {
	limit int
	res   *ingest.BatchResult
	err   error
}

func (f *fakeRunner) Run(_ context.Context, limit int) (*ingest.BatchResult, error) {
	f.limit = limit
	return f.res, f.err
}

func TestIngestRun(t *testing.T) {
	runner := &fakeRunner{res: &ingest.BatchResult{Processed: 2}}
	h := NewIngestHandler(runner, 10)

	rec := do(http.HandlerFunc(h.Run), httptest.NewRequest(http.MethodPost, "/ingest/run", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, runner.limit)

	rec = do(http.HandlerFunc(h.Run), httptest.NewRequest(http.MethodPost, "/ingest/run", strings.NewReader(`{"limit":3}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, runner.limit)

	rec = do(http.HandlerFunc(h.Run), httptest.NewRequest(http.MethodPost, "/ingest/run", strings.NewReader(`{"limit":-1}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	runner.err = ingest.ErrRunInProgress
	rec = do(http.HandlerFunc(h.Run), httptest.NewRequest(http.MethodPost, "/ingest/run", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

type fakeRetriever struct {
	query string
	opts  rag.RetrieveOptions
	err   error
}

func (f *fakeRetriever) Retrieve(_ context.Context, q string, opts rag.RetrieveOptions) ([]rag.Result, error) {
	f.query, f.opts = q, opts
	if f.err != nil {
		return nil, f.err
	}
	return []rag.Result{{Content: "brake pads", Source: rag.SourceLexical}}, nil
}

func TestSearch(t *testing.T) {
	r := &fakeRetriever{}
	h := http.HandlerFunc(NewRAGHandler(r).Search)

	rec := do(h, httptest.NewRequest(http.MethodPost, "/rag/search", strings.NewReader(`{"query":"remmen","limit":3,"threshold":0.5}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "remmen", r.query)
	assert.Equal(t, 3, r.opts.Limit)
	require.NotNil(t, r.opts.Threshold)
	assert.InDelta(t, 0.5, *r.opts.Threshold, 1e-9)
	assert.EqualValues(t, 1, decode(t, rec)["count"])

	for _, body := range []string{`{"query":"x","limit":100}`, `{"query":"x","threshold":2}`, `not json`} {
		rec = do(h, httptest.NewRequest(http.MethodPost, "/rag/search", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	r.err = fmt.Errorf("query: %w", models.ErrInvalidInput)
	rec = do(h, httptest.NewRequest(http.MethodPost, "/rag/search", strings.NewReader(`{"query":""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	r.err = fmt.Errorf("embed: %w", models.ErrEmbeddingUnavailable)
	rec = do(h, httptest.NewRequest(http.MethodPost, "/rag/search", strings.NewReader(`{"query":"x"}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestReadyz(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{"database": pinger{}, "redis": nil})
	rec := do(http.HandlerFunc(h.Readyz), httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	h = NewHealthHandler(map[string]Pinger{"database": pinger{}, "redis": pinger{err: errors.New("refused")}})
	rec = do(http.HandlerFunc(h.Readyz), httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", decode(t, rec)["status"])
}
