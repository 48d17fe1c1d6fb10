package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Ingest.ChunkSize)
	assert.Equal(t, 200, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, 100, cfg.Ingest.InsertBatchSize)
	assert.Equal(t, 10, cfg.Ingest.PaceEvery)
	assert.Equal(t, 100*time.Millisecond, cfg.Ingest.PaceDelay)
	assert.Equal(t, 3, cfg.Ingest.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Ingest.ClaimLease)
	assert.Equal(t, 30*time.Minute, cfg.Ingest.RunLockTTL)
	assert.Equal(t, 1536, cfg.Embedding.Dimension)
	assert.Equal(t, 8000, cfg.Embedding.MaxInputChars)
	assert.InDelta(t, 0.7, cfg.RAG.SimilarityThreshold, 1e-9)
	assert.Equal(t, 5, cfg.RAG.MaxResults)
	assert.Equal(t, "@every 1m", cfg.Ingest.Schedule)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("INGEST_PACE_DELAY", "250ms")
	t.Setenv("RAG_SIMILARITY_THRESHOLD", "0.5")
	t.Setenv("INGEST_RUN_LOCK_TTL", "45m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, cfg.Ingest.RunLockTTL)
	assert.Equal(t, 500, cfg.Ingest.ChunkSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Ingest.PaceDelay)
	assert.InDelta(t, 0.5, cfg.RAG.SimilarityThreshold, 1e-9)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := map[string]string{
		"SERVER_PORT":              "eighty",
		"INGEST_CALL_TIMEOUT":      "soon",
		"RAG_SIMILARITY_THRESHOLD": "high",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func validConfig() *Config {
	return &Config{
		Database:  DatabaseConfig{URL: "postgres://localhost/docrag"},
		Auth:      AuthConfig{JWTSecret: "secret"},
		LLM:       LLMConfig{DefaultProvider: "ollama"},
		Embedding: EmbeddingConfig{Dimension: 1536},
		Storage:   StorageConfig{Backend: "local"},
		Ingest:    IngestConfig{ChunkSize: 1000, ChunkOverlap: 200, RunLockTTL: 30 * time.Minute},
		RAG:       RAGConfig{SimilarityThreshold: 0.7},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.Database.URL = ""
	cfg.Auth.JWTSecret = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "SUPABASE_JWT_SECRET")

	cfg = validConfig()
	cfg.Ingest.ChunkOverlap = 1000
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Storage.Backend = "s3"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AWS_REGION")

	cfg = validConfig()
	cfg.Ingest.RunLockTTL = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Storage.Backend = "ftp"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.LLM.DefaultProvider = "openai"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}
