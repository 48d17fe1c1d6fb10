package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/docrag/internal/config"
	"github.com/nikhilbhutani/docrag/internal/models"
)

const (
	SourceVector  = "vector"
	SourceLexical = "lexical"
)

type QueryEmbedder interface {
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
}

type Searcher interface {
	SimilaritySearch(ctx context.Context, query []float32, threshold float64, limit int) ([]models.ScoredChunk, error)
	LexicalSearch(ctx context.Context, query string, limit int) ([]models.ScoredChunk, error)
}

// Result is one retrieved chunk as handed to the response assembler.
// Score is absent for lexical results and not comparable across sources.
type Result struct {
	Content    string               `json:"content"`
	Metadata   models.ChunkMetadata `json:"metadata"`
	Score      *float64             `json:"score,omitempty"`
	Source     string               `json:"source"`
	DocumentID uuid.UUID            `json:"document_id"`
	ChunkIndex int                  `json:"chunk_index"`
}

type RetrieveOptions struct {
	Limit int
	// Threshold overrides the configured minimum similarity when set.
	Threshold *float64
}

type Retriever struct {
	embedder  QueryEmbedder
	store     Searcher
	limit     int
	threshold float64
}

func NewRetriever(store Searcher, embedder QueryEmbedder, cfg config.RAGConfig) *Retriever {
	r := &Retriever{
		embedder:  embedder,
		store:     store,
		limit:     cfg.MaxResults,
		threshold: cfg.SimilarityThreshold,
	}
	if r.limit <= 0 {
		r.limit = 5
	}
	return r
}

// Retrieve returns the chunks most similar to query. When the query cannot
// be embedded or the vector index is unusable it degrades to keyword search.
// Storage failures are returned.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts RetrieveOptions) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query: %w", models.ErrInvalidInput)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = r.limit
	}
	threshold := r.threshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}

	vec, err := r.embedder.EmbedSingle(ctx, query)
	if err != nil {
		if !errors.Is(err, models.ErrEmbeddingUnavailable) {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		slog.Warn("query embedding failed, using lexical search", "error", err)
		return r.lexical(ctx, query, limit)
	}

	hits, err := r.store.SimilaritySearch(ctx, vec, threshold, limit)
	if errors.Is(err, models.ErrVectorSearchUnavailable) {
		slog.Warn("vector search unavailable, using lexical search", "error", err)
		return r.lexical(ctx, query, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return toResults(hits, SourceVector), nil
}

func (r *Retriever) lexical(ctx context.Context, query string, limit int) ([]Result, error) {
	hits, err := r.store.LexicalSearch(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	for i := range hits {
		hits[i].Score = nil
	}
	return toResults(hits, SourceLexical), nil
}

func toResults(hits []models.ScoredChunk, source string) []Result {
	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = Result{
			Content:    h.Content,
			Metadata:   h.Metadata,
			Score:      h.Score,
			Source:     source,
			DocumentID: h.DocumentID,
			ChunkIndex: h.ChunkIndex,
		}
	}
	return out
}
