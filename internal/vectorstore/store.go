package vectorstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/docrag/internal/models"
)

// ChunkStore persists embedded chunks and answers similarity and keyword
// queries over them.
type ChunkStore interface {
	// InsertChunks writes all chunks of one document atomically.
	InsertChunks(ctx context.Context, chunks []models.DocumentChunk) error
	// SimilaritySearch returns chunks with cosine similarity >= threshold,
	// best first, at most limit.
	SimilaritySearch(ctx context.Context, query []float32, threshold float64, limit int) ([]models.ScoredChunk, error)
	// LexicalSearch matches query terms against chunk content. Scores are nil.
	LexicalSearch(ctx context.Context, query string, limit int) ([]models.ScoredChunk, error)
	DeleteByDocument(ctx context.Context, documentID uuid.UUID) (int64, error)
	CountByDocument(ctx context.Context, documentID uuid.UUID) (int, error)
}
