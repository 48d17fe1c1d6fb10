package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/nikhilbhutani/docrag/internal/config"
	"github.com/nikhilbhutani/docrag/internal/models"
	"github.com/nikhilbhutani/docrag/pkg/chunker"
	"github.com/nikhilbhutani/docrag/pkg/textextract"
)

type Registry interface {
	ListPending(ctx context.Context, limit int) ([]models.Document, error)
	Claim(ctx context.Context, id uuid.UUID, lease time.Duration) error
	MarkProcessed(ctx context.Context, id uuid.UUID, chunkCount int) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string)
}

type FileSource interface {
	Download(ctx context.Context, doc *models.Document) ([]byte, error)
}

type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType, filename string) (*textextract.ExtractedText, error)
}

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type ChunkStore interface {
	InsertChunks(ctx context.Context, chunks []models.DocumentChunk) error
	DeleteByDocument(ctx context.Context, documentID uuid.UUID) (int64, error)
}

type Config struct {
	ChunkSize    int
	ChunkOverlap int
	// PaceEvery chunks are embedded per call, with PaceDelay between calls.
	PaceEvery   int
	PaceDelay   time.Duration
	CallTimeout time.Duration
	ClaimLease  time.Duration
}

func ConfigFrom(cfg config.IngestConfig) Config {
	return Config{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		PaceEvery:    cfg.PaceEvery,
		PaceDelay:    cfg.PaceDelay,
		CallTimeout:  cfg.CallTimeout,
		ClaimLease:   cfg.ClaimLease,
	}
}

// DocumentResult is the outcome of one document in a run.
type DocumentResult struct {
	DocumentID    uuid.UUID     `json:"document_id"`
	Filename      string        `json:"filename"`
	State         models.State  `json:"state"`
	Chunks        int           `json:"chunks"`
	// SkippedChunks failed to embed and were left out.
	SkippedChunks int           `json:"skipped_chunks,omitempty"`
	Error         string        `json:"error,omitempty"`
	Duration      time.Duration `json:"duration_ns"`
	claimed       bool
}

// BatchResult summarizes a run. Skipped counts documents another worker
// had already claimed.
type BatchResult struct {
	Processed  int              `json:"processed"`
	Successful int              `json:"successful"`
	Failed     int              `json:"failed"`
	Skipped    int              `json:"skipped"`
	Results    []DocumentResult `json:"results"`
}

type Orchestrator struct {
	registry  Registry
	files     FileSource
	extractor Extractor
	embedder  Embedder
	store     ChunkStore
	chunker   *chunker.Chunker
	cfg       Config
	logger    *slog.Logger
	observer  func(id uuid.UUID, state models.State)
}

type Option func(*Orchestrator)

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithStateObserver registers fn to be called on every state transition.
func WithStateObserver(fn func(id uuid.UUID, state models.State)) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

func New(reg Registry, files FileSource, ext Extractor, emb Embedder, store ChunkStore, cfg Config, opts ...Option) *Orchestrator {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunker.DefaultTargetSize
		cfg.ChunkOverlap = chunker.DefaultOverlap
	}
	if cfg.PaceEvery <= 0 {
		cfg.PaceEvery = 10
	}
	o := &Orchestrator{
		registry:  reg,
		files:     files,
		extractor: ext,
		embedder:  emb,
		store:     store,
		chunker:   chunker.New(chunker.WithTargetSize(cfg.ChunkSize), chunker.WithOverlap(cfg.ChunkOverlap)),
		cfg:       cfg,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessDocuments runs one batch over up to limit pending documents, one at
// a time. Per-document failures are recorded on the document; only a failure
// to list pending documents is returned.
func (o *Orchestrator) ProcessDocuments(ctx context.Context, limit int) (*BatchResult, error) {
	callCtx, cancel := o.callContext(ctx)
	docs, err := o.registry.ListPending(callCtx, limit)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("list pending documents: %w", err)
	}

	result := &BatchResult{Results: make([]DocumentResult, 0, len(docs))}
	if len(docs) == 0 {
		o.logger.Info("no documents to process")
		return result, nil
	}
	o.logger.Info("processing documents", "count", len(docs))

	for i := range docs {
		if ctx.Err() != nil {
			o.logger.Warn("ingest run cancelled", "remaining", len(docs)-i)
			break
		}

		r := o.ProcessDocument(ctx, &docs[i])
		result.Results = append(result.Results, r)
		if !r.claimed {
			result.Skipped++
			continue
		}
		result.Processed++
		if r.State == models.StateProcessed {
			result.Successful++
		} else {
			result.Failed++
		}
	}

	o.logger.Info("ingest run finished",
		"processed", result.Processed,
		"successful", result.Successful,
		"failed", result.Failed,
		"skipped", result.Skipped,
	)
	return result, nil
}

// ProcessDocument drives one document from queued to processed or failed.
func (o *Orchestrator) ProcessDocument(ctx context.Context, doc *models.Document) (result DocumentResult) {
	start := time.Now()
	result = DocumentResult{DocumentID: doc.ID, Filename: doc.Filename, State: models.StateQueued}

	callCtx, cancel := o.callContext(ctx)
	err := o.registry.Claim(callCtx, doc.ID, o.cfg.ClaimLease)
	cancel()
	if errors.Is(err, models.ErrAlreadyClaimed) {
		o.logger.Info("document already claimed, skipping", "document_id", doc.ID)
		result.Error = err.Error()
		return result
	}
	result.claimed = true

	defer func() {
		if p := recover(); p != nil {
			o.fail(ctx, doc, &result, fmt.Errorf("panic: %v", p))
		}
		result.Duration = time.Since(start)
	}()

	if err != nil {
		o.fail(ctx, doc, &result, fmt.Errorf("claim document: %w", err))
		return result
	}

	stored, skipped, err := o.run(ctx, doc)
	result.SkippedChunks = skipped
	if err != nil {
		o.fail(ctx, doc, &result, err)
		return result
	}

	result.Chunks = stored
	o.transition(doc, &result, models.StateProcessed)
	o.logger.Info("document processed",
		"document_id", doc.ID,
		"filename", doc.Filename,
		"chunks", stored,
		"skipped_chunks", skipped,
	)
	return result
}

func (o *Orchestrator) run(ctx context.Context, doc *models.Document) (stored, skipped int, err error) {
	callCtx, cancel := o.callContext(ctx)
	data, err := o.files.Download(callCtx, doc)
	cancel()
	if err != nil {
		return 0, 0, fmt.Errorf("download file: %w", err)
	}

	o.observe(doc.ID, models.StateExtracting)
	callCtx, cancel = o.callContext(ctx)
	text, err := o.extractor.Extract(callCtx, data, doc.MimeType, doc.Filename)
	cancel()
	if err != nil {
		return 0, 0, fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text.Content) == "" {
		return 0, 0, models.ErrNoText
	}

	o.observe(doc.ID, models.StateChunking)
	pieces := o.chunker.Chunk(text.Content)
	if len(pieces) == 0 {
		return 0, 0, models.ErrNoText
	}

	o.observe(doc.ID, models.StateEmbedding)
	embedded, err := o.embedChunks(ctx, doc.ID, pieces)
	if err != nil {
		return 0, 0, err
	}
	skipped = len(pieces) - len(embedded)
	if len(embedded) == 0 {
		return 0, skipped, models.ErrNoEmbeddings
	}

	o.observe(doc.ID, models.StateStoring)
	chunks := buildChunks(doc, embedded)

	callCtx, cancel = o.callContext(ctx)
	purged, err := o.store.DeleteByDocument(callCtx, doc.ID)
	cancel()
	if err != nil {
		return 0, skipped, fmt.Errorf("purge previous chunks: %w", err)
	}
	if purged > 0 {
		o.logger.Info("replaced previous chunks", "document_id", doc.ID, "purged", purged)
	}

	callCtx, cancel = o.callContext(ctx)
	err = o.store.InsertChunks(callCtx, chunks)
	cancel()
	if err != nil {
		return 0, skipped, fmt.Errorf("store chunks: %w", err)
	}

	callCtx, cancel = o.callContext(ctx)
	err = o.registry.MarkProcessed(callCtx, doc.ID, len(chunks))
	cancel()
	if err != nil {
		// The document is about to be marked failed; its chunks must not
		// outlive that.
		o.purge(ctx, doc.ID)
		return 0, skipped, fmt.Errorf("mark processed: %w", err)
	}
	return len(chunks), skipped, nil
}

// purge removes a document's chunks after a failure that follows the insert.
// It runs even when ctx is canceled; errors are only logged.
func (o *Orchestrator) purge(ctx context.Context, id uuid.UUID) {
	callCtx, cancel := o.callContext(context.WithoutCancel(ctx))
	defer cancel()
	if _, err := o.store.DeleteByDocument(callCtx, id); err != nil {
		o.logger.Error("failed to remove chunks of failed document", "document_id", id, "error", err)
	}
}

type embeddedChunk struct {
	content string
	vector  []float32
}

// embedChunks embeds pieces in paced groups. A failed group is retried one
// chunk at a time and chunks that still fail are dropped. Only context
// cancellation is returned as an error.
func (o *Orchestrator) embedChunks(ctx context.Context, docID uuid.UUID, pieces []string) ([]embeddedChunk, error) {
	out := make([]embeddedChunk, 0, len(pieces))

	for start := 0; start < len(pieces); start += o.cfg.PaceEvery {
		if start > 0 {
			if err := sleep(ctx, o.cfg.PaceDelay); err != nil {
				return nil, err
			}
		}
		group := pieces[start:min(start+o.cfg.PaceEvery, len(pieces))]

		vecs, err := o.embed(ctx, group)
		if err == nil {
			for i, content := range group {
				out = append(out, embeddedChunk{content: content, vector: vecs[i]})
			}
			continue
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		o.logger.Warn("embedding group failed, retrying per chunk",
			"document_id", docID,
			"first_chunk", start,
			"size", len(group),
			"error", err,
		)
		for i, content := range group {
			vecs, err := o.embed(ctx, []string{content})
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				o.logger.Warn("skipping chunk that failed to embed",
					"document_id", docID,
					"chunk", start+i,
					"error", err,
				)
				continue
			}
			out = append(out, embeddedChunk{content: content, vector: vecs[0]})
		}
	}
	return out, nil
}

func (o *Orchestrator) embed(ctx context.Context, texts []string) ([][]float32, error) {
	callCtx, cancel := o.callContext(ctx)
	defer cancel()

	vecs, err := o.embedder.Embed(callCtx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", models.ErrEmbeddingUnavailable, len(vecs), len(texts))
	}
	return vecs, nil
}

func (o *Orchestrator) fail(ctx context.Context, doc *models.Document, result *DocumentResult, err error) {
	result.Error = err.Error()
	o.transition(doc, result, models.StateFailed)
	o.logger.Error("document processing failed",
		"document_id", doc.ID,
		"filename", doc.Filename,
		"error", err,
	)

	// Record the failure even when the run's context is already done.
	callCtx, cancel := o.callContext(context.WithoutCancel(ctx))
	defer cancel()
	o.registry.MarkFailed(callCtx, doc.ID, err.Error())
}

func (o *Orchestrator) transition(doc *models.Document, result *DocumentResult, state models.State) {
	result.State = state
	o.observe(doc.ID, state)
}

func (o *Orchestrator) observe(id uuid.UUID, state models.State) {
	o.logger.Debug("document state", "document_id", id, "state", state)
	if o.observer != nil {
		o.observer(id, state)
	}
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.CallTimeout > 0 {
		return context.WithTimeout(ctx, o.cfg.CallTimeout)
	}
	return context.WithCancel(ctx)
}

// buildChunks numbers embedded chunks contiguously from zero so stored
// indices have no gaps where chunks were skipped.
func buildChunks(doc *models.Document, embedded []embeddedChunk) []models.DocumentChunk {
	meta := models.NewChunkMetadata(doc, len(embedded))
	chunks := make([]models.DocumentChunk, len(embedded))
	for i, e := range embedded {
		chunks[i] = models.DocumentChunk{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			ChunkIndex: i,
			Content:    e.content,
			Embedding:  pgvector.NewVector(e.vector),
			Metadata:   meta,
		}
	}
	return chunks
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
