package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Document is one row of documents_metadata.
type Document struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	Filename         string     `json:"filename" db:"filename"`
	SafeFilename     string     `json:"safe_filename" db:"safe_filename"`
	StoragePath      string     `json:"storage_path" db:"storage_path"`
	FileSize         int64      `json:"file_size" db:"file_size"`
	MimeType         string     `json:"mime_type" db:"mime_type"`
	Department       string     `json:"afdeling,omitempty" db:"afdeling"`
	Category         string     `json:"categorie,omitempty" db:"categorie"`
	Subject          string     `json:"onderwerp,omitempty" db:"onderwerp"`
	UploadedBy       *uuid.UUID `json:"uploaded_by,omitempty" db:"uploaded_by"`
	ReadyForIndexing bool       `json:"ready_for_indexing" db:"ready_for_indexing"`
	Processed        bool       `json:"processed" db:"processed"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty" db:"processed_at"`
	ChunkCount       *int       `json:"chunk_count,omitempty" db:"chunk_count"`
	LastError        *string    `json:"last_error,omitempty" db:"last_error"`
	Attempts         int        `json:"attempts" db:"attempts"`
	ClaimedAt        *time.Time `json:"claimed_at,omitempty" db:"claimed_at"`
	LastUpdated      time.Time  `json:"last_updated" db:"last_updated"`
}

// State derives the persisted lifecycle state. In-flight states are only
// observable through the orchestrator while it runs.
func (d *Document) State() State {
	switch {
	case d.Processed:
		return StateProcessed
	case d.LastError != nil:
		return StateFailed
	case d.ReadyForIndexing:
		return StateQueued
	default:
		return StatePending
	}
}

// ChunkMetadata is denormalized onto every chunk so retrieval results are
// self-describing without a join.
type ChunkMetadata struct {
	DocumentID  uuid.UUID `json:"document_id"`
	Filename    string    `json:"filename"`
	TotalChunks int       `json:"total_chunks"`
	FileSize    int64     `json:"file_size"`
	MimeType    string    `json:"mime_type"`
	Department  string    `json:"afdeling,omitempty"`
	Category    string    `json:"categorie,omitempty"`
	Subject     string    `json:"onderwerp,omitempty"`
}

// NewChunkMetadata copies the classification fields of doc.
func NewChunkMetadata(doc *Document, totalChunks int) ChunkMetadata {
	return ChunkMetadata{
		DocumentID:  doc.ID,
		Filename:    doc.Filename,
		TotalChunks: totalChunks,
		FileSize:    doc.FileSize,
		MimeType:    doc.MimeType,
		Department:  doc.Department,
		Category:    doc.Category,
		Subject:     doc.Subject,
	}
}

type DocumentChunk struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	DocumentID uuid.UUID       `json:"document_id" db:"document_id"`
	ChunkIndex int             `json:"chunk_index" db:"chunk_index"`
	Content    string          `json:"content" db:"content"`
	Embedding  pgvector.Vector `json:"-" db:"embedding"`
	Metadata   ChunkMetadata   `json:"metadata" db:"metadata"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// ScoredChunk is a chunk returned by a search. Score is nil for lexical matches.
type ScoredChunk struct {
	DocumentChunk
	Score *float64 `json:"score,omitempty"`
}

type State string

const (
	StatePending    State = "pending"
	StateQueued     State = "queued"
	StateExtracting State = "extracting"
	StateChunking   State = "chunking"
	StateEmbedding  State = "embedding"
	StateStoring    State = "storing"
	StateProcessed  State = "processed"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transition happens without an external re-queue.
func (s State) Terminal() bool {
	return s == StateProcessed || s == StateFailed
}
