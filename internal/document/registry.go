package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/docrag/internal/models"
)

// Registry tracks documents_metadata rows through the ingestion lifecycle.
type Registry struct {
	db *pgxpool.Pool
}

func NewRegistry(db *pgxpool.Pool) *Registry {
	return &Registry{db: db}
}

const documentColumns = `id, filename, safe_filename, storage_path, file_size, mime_type,
	afdeling, categorie, onderwerp, uploaded_by, ready_for_indexing, processed, processed_at,
	chunk_count, last_error, attempts, claimed_at, last_updated`

const queuedPredicate = `ready_for_indexing AND NOT processed AND last_error IS NULL`

func scanDocument(row pgx.Row) (*models.Document, error) {
	var d models.Document
	err := row.Scan(&d.ID, &d.Filename, &d.SafeFilename, &d.StoragePath, &d.FileSize, &d.MimeType,
		&d.Department, &d.Category, &d.Subject, &d.UploadedBy, &d.ReadyForIndexing, &d.Processed, &d.ProcessedAt,
		&d.ChunkCount, &d.LastError, &d.Attempts, &d.ClaimedAt, &d.LastUpdated)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func collectDocuments(rows pgx.Rows) ([]models.Document, error) {
	defer rows.Close()
	docs := []models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, models.ErrStorage, err)
}

// ListPending returns documents approved for indexing that are neither
// processed nor failed, oldest first.
func (r *Registry) ListPending(ctx context.Context, limit int) ([]models.Document, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM documents_metadata
		 WHERE `+queuedPredicate+`
		 ORDER BY last_updated ASC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, storageErr("list pending documents", err)
	}
	docs, err := collectDocuments(rows)
	if err != nil {
		return nil, storageErr("list pending documents", err)
	}
	return docs, nil
}

// Claim marks a queued document as taken by this worker. A claim older than
// lease is considered abandoned and can be taken over.
func (r *Registry) Claim(ctx context.Context, id uuid.UUID, lease time.Duration) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents_metadata SET claimed_at = now()
		 WHERE id = $1 AND `+queuedPredicate+`
		   AND (claimed_at IS NULL OR claimed_at < now() - make_interval(secs => $2))`,
		id, lease.Seconds())
	if err != nil {
		return storageErr("claim document", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("claim %s: %w", id, models.ErrAlreadyClaimed)
	}
	return nil
}

func (r *Registry) MarkProcessed(ctx context.Context, id uuid.UUID, chunkCount int) error {
	if chunkCount < 1 {
		return fmt.Errorf("mark processed with %d chunks: %w", chunkCount, models.ErrInvalidInput)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE documents_metadata
		 SET processed = true, processed_at = now(), chunk_count = $2, last_error = NULL,
		     claimed_at = NULL, last_updated = now()
		 WHERE id = $1`,
		id, chunkCount)
	if err != nil {
		return storageErr("mark processed", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark processed %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// MarkFailed records message as the document's last error and takes it out of
// the queue. Failures to write are logged, never returned.
func (r *Registry) MarkFailed(ctx context.Context, id uuid.UUID, message string) {
	_, err := r.db.Exec(ctx,
		`UPDATE documents_metadata
		 SET processed = false, ready_for_indexing = false, last_error = $2,
		     attempts = attempts + 1, claimed_at = NULL, last_updated = now()
		 WHERE id = $1`,
		id, message)
	if err != nil {
		slog.Error("failed to record document failure",
			"document_id", id,
			"last_error", message,
			"error", err,
		)
	}
}

// Approve flags pending documents as ready for indexing and returns how many
// rows changed. Processed and failed documents are left alone.
func (r *Registry) Approve(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE documents_metadata SET ready_for_indexing = true, last_updated = now()
		 WHERE id = ANY($1) AND NOT processed AND last_error IS NULL AND NOT ready_for_indexing`,
		ids)
	if err != nil {
		return 0, storageErr("approve documents", err)
	}
	return tag.RowsAffected(), nil
}

// Requeue puts a failed or processed document back in the queue for a fresh
// run and resets its attempt counter.
func (r *Registry) Requeue(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents_metadata
		 SET ready_for_indexing = true, processed = false, processed_at = NULL, last_error = NULL,
		     attempts = 0, claimed_at = NULL, last_updated = now()
		 WHERE id = $1`,
		id)
	if err != nil {
		return storageErr("requeue document", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("requeue %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// RequeueFailed re-queues failed documents with fewer than maxAttempts
// failures once backoff·2^(attempts-1) has passed since the last failure.
func (r *Registry) RequeueFailed(ctx context.Context, maxAttempts int, backoff time.Duration) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents_metadata
		 SET ready_for_indexing = true, last_error = NULL, claimed_at = NULL, last_updated = now()
		 WHERE last_error IS NOT NULL AND NOT processed
		   AND attempts < $1
		   AND last_updated < now() - make_interval(secs => $2 * power(2, GREATEST(attempts - 1, 0)))`,
		maxAttempts, backoff.Seconds())
	if err != nil {
		return 0, storageErr("requeue failed documents", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Registry) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO documents_metadata (id, filename, safe_filename, storage_path, file_size, mime_type,
		     afdeling, categorie, onderwerp, uploaded_by, ready_for_indexing)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING last_updated`,
		doc.ID, doc.Filename, doc.SafeFilename, doc.StoragePath, doc.FileSize, doc.MimeType,
		doc.Department, doc.Category, doc.Subject, doc.UploadedBy, doc.ReadyForIndexing,
	).Scan(&doc.LastUpdated)
	if err != nil {
		return storageErr("insert document", err)
	}
	return nil
}

func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	doc, err := scanDocument(r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents_metadata WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get document %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get document", err)
	}
	return doc, nil
}

type ListFilter struct {
	State  models.State
	Limit  int
	Offset int
}

func (r *Registry) List(ctx context.Context, f ListFilter) ([]models.Document, error) {
	where, err := stateClause(f.State)
	if err != nil {
		return nil, err
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM documents_metadata
		 WHERE `+where+`
		 ORDER BY last_updated DESC
		 LIMIT $1 OFFSET $2`,
		f.Limit, max(f.Offset, 0))
	if err != nil {
		return nil, storageErr("list documents", err)
	}
	docs, err := collectDocuments(rows)
	if err != nil {
		return nil, storageErr("list documents", err)
	}
	return docs, nil
}

// stateClause maps a persisted state to its SQL predicate. Keep in sync
// with models.Document.State.
func stateClause(s models.State) (string, error) {
	switch s {
	case "":
		return "true", nil
	case models.StatePending:
		return "NOT ready_for_indexing AND NOT processed AND last_error IS NULL", nil
	case models.StateQueued:
		return queuedPredicate, nil
	case models.StateProcessed:
		return "processed", nil
	case models.StateFailed:
		return "last_error IS NOT NULL AND NOT processed", nil
	default:
		return "", fmt.Errorf("unknown state %q: %w", strings.ToLower(string(s)), models.ErrInvalidInput)
	}
}
