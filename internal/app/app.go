// Package app assembles the ingestion and retrieval services from config.
// The API server, the worker and the ingest CLI all start from here.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/docrag/internal/cache"
	"github.com/nikhilbhutani/docrag/internal/config"
	"github.com/nikhilbhutani/docrag/internal/database"
	"github.com/nikhilbhutani/docrag/internal/document"
	"github.com/nikhilbhutani/docrag/internal/embedding"
	"github.com/nikhilbhutani/docrag/internal/ingest"
	"github.com/nikhilbhutani/docrag/internal/llm"
	"github.com/nikhilbhutani/docrag/internal/queue"
	"github.com/nikhilbhutani/docrag/internal/rag"
	"github.com/nikhilbhutani/docrag/internal/storage"
	"github.com/nikhilbhutani/docrag/internal/vectorstore"
)

const runLockKey = "ingest:run"

type App struct {
	Config    *config.Config
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Cache     *cache.Cache
	Registry  *document.Registry
	Documents *document.Service
	Chunks    *vectorstore.PgVectorStore
	Embedder  *embedding.Service
	Retriever *rag.Retriever
	Runner    *ingest.Runner
}

// New connects to Postgres and Redis, applies migrations and wires the
// pipeline. Redis is optional: without it the query cache and the cross
// process run lock are disabled.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(ctx, db, cfg.Database.MigrationsPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	a := &App{Config: cfg, DB: db}

	a.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, running without query cache and run lock", "error", err)
		a.Redis.Close()
		a.Redis = nil
	} else {
		a.Cache = cache.NewCache(a.Redis, "docrag:")
	}

	blobs, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Registry = document.NewRegistry(db)
	a.Documents = document.NewService(a.Registry, blobs, cfg.Storage.Bucket)
	a.Chunks = vectorstore.NewPgVectorStore(db, cfg.Ingest.InsertBatchSize)
	a.Embedder = embedding.NewService(llm.NewGateway(cfg.LLM), cfg.Embedding)

	var queryEmbedder rag.QueryEmbedder = a.Embedder
	if a.Cache != nil {
		queryEmbedder = embedding.NewCachedEmbedder(a.Embedder, a.Cache, a.Embedder.Model(), cfg.RAG.QueryCacheTTL)
	}
	a.Retriever = rag.NewRetriever(a.Chunks, queryEmbedder, cfg.RAG)

	orch := ingest.New(
		a.Registry,
		a.Documents,
		document.NewExtractor(cfg.Ingest.OCRLanguages),
		a.Embedder,
		a.Chunks,
		ingest.ConfigFrom(cfg.Ingest),
	)
	var lock ingest.RunLock
	if a.Cache != nil {
		lock = ingest.NewRedisRunLock(a.Cache, runLockKey, runLockTTL(cfg.Ingest))
	}
	a.Runner = ingest.NewRunner(orch, lock)

	return a, nil
}

// runLockTTL is never shorter than a queued run may last, so a worker run
// cannot outlive its lock.
func runLockTTL(cfg config.IngestConfig) time.Duration {
	return max(cfg.RunLockTTL, queue.IngestTaskTimeout)
}

func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
