package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/nikhilbhutani/docrag/internal/models"
)

const DefaultInsertBatchSize = 100

type PgVectorStore struct {
	db        *pgxpool.Pool
	batchSize int
}

func NewPgVectorStore(db *pgxpool.Pool, batchSize int) *PgVectorStore {
	if batchSize <= 0 {
		batchSize = DefaultInsertBatchSize
	}
	return &PgVectorStore{db: db, batchSize: batchSize}
}

const insertChunkSQL = `INSERT INTO document_chunks (id, document_id, chunk_index, content, embedding, metadata)
	VALUES ($1, $2, $3, $4, $5, $6)`

func (s *PgVectorStore) InsertChunks(ctx context.Context, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return storageErr("begin tx", err)
	}
	defer tx.Rollback(ctx)

	for _, group := range partition(chunks, s.batchSize) {
		batch := &pgx.Batch{}
		for _, c := range group {
			id := c.ID
			if id == uuid.Nil {
				id = uuid.New()
			}
			batch.Queue(insertChunkSQL, id, c.DocumentID, c.ChunkIndex, c.Content, c.Embedding, c.Metadata)
		}

		br := tx.SendBatch(ctx, batch)
		for _, c := range group {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return storageErr(fmt.Sprintf("insert chunk %d", c.ChunkIndex), err)
			}
		}
		if err := br.Close(); err != nil {
			return storageErr("close batch", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return storageErr("commit chunks", err)
	}
	return nil
}

const chunkColumns = `id, document_id, chunk_index, content, metadata, created_at`

func (s *PgVectorStore) SimilaritySearch(ctx context.Context, query []float32, threshold float64, limit int) ([]models.ScoredChunk, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+chunkColumns+`, 1 - (embedding <=> $1) AS score
		 FROM document_chunks
		 WHERE 1 - (embedding <=> $1) >= $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(query), threshold, limit,
	)
	if err != nil {
		return nil, classifyVectorError("similarity search", err)
	}
	defer rows.Close()

	results, err := scanChunks(rows, true)
	if err != nil {
		return nil, classifyVectorError("scan similarity result", err)
	}
	return results, nil
}

func (s *PgVectorStore) LexicalSearch(ctx context.Context, query string, limit int) ([]models.ScoredChunk, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+chunkColumns+`
		 FROM document_chunks
		 WHERE tsv @@ plainto_tsquery('simple', $1)
		 ORDER BY ts_rank(tsv, plainto_tsquery('simple', $1)) DESC, chunk_index
		 LIMIT $2`,
		query, limit,
	)
	if err != nil {
		return nil, storageErr("lexical search", err)
	}
	results, err := scanChunks(rows, false)
	rows.Close()
	if err != nil {
		return nil, storageErr("scan lexical result", err)
	}
	if len(results) > 0 {
		return results, nil
	}

	// Substring match catches compound words and partial terms the
	// tokenizer does not split.
	patterns := likePatterns(query)
	if len(patterns) == 0 {
		return []models.ScoredChunk{}, nil
	}

	rows, err = s.db.Query(ctx,
		`SELECT `+chunkColumns+`
		 FROM document_chunks
		 WHERE content ILIKE ANY($1)
		 ORDER BY created_at DESC, chunk_index
		 LIMIT $2`,
		patterns, limit,
	)
	if err != nil {
		return nil, storageErr("substring search", err)
	}
	defer rows.Close()

	results, err = scanChunks(rows, false)
	if err != nil {
		return nil, storageErr("scan substring result", err)
	}
	return results, nil
}

func (s *PgVectorStore) DeleteByDocument(ctx context.Context, documentID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx, "DELETE FROM document_chunks WHERE document_id = $1", documentID)
	if err != nil {
		return 0, storageErr("delete chunks", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PgVectorStore) CountByDocument(ctx context.Context, documentID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, "SELECT count(*) FROM document_chunks WHERE document_id = $1", documentID).Scan(&n)
	if err != nil {
		return 0, storageErr("count chunks", err)
	}
	return n, nil
}

func scanChunks(rows pgx.Rows, withScore bool) ([]models.ScoredChunk, error) {
	results := []models.ScoredChunk{}
	for rows.Next() {
		var r models.ScoredChunk
		dest := []any{&r.ID, &r.DocumentID, &r.ChunkIndex, &r.Content, &r.Metadata, &r.CreatedAt}
		var score float64
		if withScore {
			dest = append(dest, &score)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if withScore {
			r.Score = &score
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func partition(chunks []models.DocumentChunk, size int) [][]models.DocumentChunk {
	var groups [][]models.DocumentChunk
	for i := 0; i < len(chunks); i += size {
		groups = append(groups, chunks[i:min(i+size, len(chunks))])
	}
	return groups
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePatterns builds one ILIKE pattern per query term of two or more characters.
func likePatterns(query string) []string {
	var patterns []string
	seen := map[string]bool{}
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if len([]rune(term)) < 2 || seen[term] {
			continue
		}
		seen[term] = true
		patterns = append(patterns, "%"+likeEscaper.Replace(term)+"%")
	}
	return patterns
}

// Postgres error codes meaning the vector machinery itself is missing or
// unusable rather than the database being down.
var vectorUnavailableCodes = map[string]bool{
	"42883": true, // undefined_function
	"42704": true, // undefined_object
	"42703": true, // undefined_column
	"58P01": true, // undefined_file
	"0A000": true, // feature_not_supported
}

func classifyVectorError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && vectorUnavailableCodes[pgErr.Code] {
		return fmt.Errorf("%s: %w: %w", op, models.ErrVectorSearchUnavailable, err)
	}
	return storageErr(op, err)
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, models.ErrStorage, err)
}
