package models

import "errors"

// Pipeline errors. Callers match them with errors.Is; the concrete cause is
// joined or wrapped alongside.
var (
	// ErrUnsupportedFormat means extraction could not interpret the file.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrEmbeddingUnavailable means the embedding provider failed or was unreachable.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrStorage means a chunk or metadata read/write against the store failed.
	ErrStorage = errors.New("storage error")

	// ErrVectorSearchUnavailable means the similarity path failed while the
	// store itself is reachable (missing extension, index or operator).
	ErrVectorSearchUnavailable = errors.New("vector search unavailable")

	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrAlreadyClaimed = errors.New("document already claimed")

	// ErrNoEmbeddings is recorded when every chunk of a document failed to embed.
	ErrNoEmbeddings = errors.New("no embeddings generated")

	// ErrNoText is recorded when extraction produced only whitespace.
	ErrNoText = errors.New("no text extracted")
)
