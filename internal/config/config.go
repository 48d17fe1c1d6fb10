package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Storage   StorageConfig
	Ingest    IngestConfig
	RAG       RAGConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

type LLMConfig struct {
	OpenAIKey        string
	OpenAIBaseURL    string
	OllamaURL        string
	DefaultProvider  string
	FallbackProvider string
	MaxRetries       int
}

type EmbeddingConfig struct {
	Model         string
	Dimension     int
	MaxInputChars int
	BatchSize     int
	Timeout       time.Duration
}

type StorageConfig struct {
	Backend      string // "supabase", "s3" or "local"
	Bucket       string
	SupabaseURL  string
	SupabaseKey  string
	AWSRegion    string
	AWSAccessKey string
	AWSSecretKey string
	S3Endpoint   string
	LocalDir     string
}

type IngestConfig struct {
	ChunkSize       int
	ChunkOverlap    int
	InsertBatchSize int
	BatchLimit      int
	PaceEvery       int
	PaceDelay       time.Duration
	CallTimeout     time.Duration
	ClaimLease      time.Duration
	RunLockTTL      time.Duration
	MaxAttempts     int
	RetryBackoff    time.Duration
	Schedule        string
	RetrySchedule   string
	OCRLanguages    string
}

type RAGConfig struct {
	SimilarityThreshold float64
	MaxResults          int
	QueryCacheTTL       time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real env vars take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	l := &loader{}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: l.int("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       l.int("DB_MAX_CONNS", 20),
			MinConns:       l.int("DB_MIN_CONNS", 2),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       l.int("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("SUPABASE_JWT_SECRET", ""),
		},
		LLM: LLMConfig{
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
			OllamaURL:        getEnv("OLLAMA_URL", "http://localhost:11434"),
			DefaultProvider:  getEnv("EMBEDDING_PROVIDER", "openai"),
			FallbackProvider: getEnv("EMBEDDING_FALLBACK_PROVIDER", ""),
			MaxRetries:       l.int("LLM_MAX_RETRIES", 3),
		},
		Embedding: EmbeddingConfig{
			Model:         getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimension:     l.int("EMBEDDING_DIMENSION", 1536),
			MaxInputChars: l.int("EMBEDDING_MAX_INPUT_CHARS", 8000),
			BatchSize:     l.int("EMBEDDING_BATCH_SIZE", 100),
			Timeout:       l.duration("EMBEDDING_TIMEOUT", 60*time.Second),
		},
		Storage: StorageConfig{
			Backend:      getEnv("STORAGE_BACKEND", "supabase"),
			Bucket:       getEnv("STORAGE_BUCKET", "documents"),
			SupabaseURL:  getEnv("SUPABASE_URL", ""),
			SupabaseKey:  getEnv("SUPABASE_SERVICE_KEY", ""),
			AWSRegion:    getEnv("AWS_REGION", ""),
			AWSAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
			AWSSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Endpoint:   getEnv("S3_ENDPOINT", ""),
			LocalDir:     getEnv("STORAGE_LOCAL_DIR", "data"),
		},
		Ingest: IngestConfig{
			ChunkSize:       l.int("CHUNK_SIZE", 1000),
			ChunkOverlap:    l.int("CHUNK_OVERLAP", 200),
			InsertBatchSize: l.int("INSERT_BATCH_SIZE", 100),
			BatchLimit:      l.int("INGEST_BATCH_LIMIT", 10),
			PaceEvery:       l.int("INGEST_PACE_EVERY", 10),
			PaceDelay:       l.duration("INGEST_PACE_DELAY", 100*time.Millisecond),
			CallTimeout:     l.duration("INGEST_CALL_TIMEOUT", 60*time.Second),
			ClaimLease:      l.duration("INGEST_CLAIM_LEASE", 15*time.Minute),
			RunLockTTL:      l.duration("INGEST_RUN_LOCK_TTL", 30*time.Minute),
			MaxAttempts:     l.int("INGEST_MAX_ATTEMPTS", 3),
			RetryBackoff:    l.duration("INGEST_RETRY_BACKOFF", 5*time.Minute),
			Schedule:        getEnv("INGEST_SCHEDULE", "@every 1m"),
			RetrySchedule:   getEnv("RETRY_SCHEDULE", "@every 5m"),
			OCRLanguages:    getEnv("OCR_LANGUAGES", "nld+eng"),
		},
		RAG: RAGConfig{
			SimilarityThreshold: l.float("RAG_SIMILARITY_THRESHOLD", 0.7),
			MaxResults:          l.int("RAG_MAX_RESULTS", 5),
			QueryCacheTTL:       l.duration("RAG_QUERY_CACHE_TTL", time.Hour),
		},
	}

	if l.err != nil {
		return nil, l.err
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate reports missing required settings and inconsistent values.
func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "SUPABASE_JWT_SECRET")
	}
	if c.LLM.DefaultProvider == "openai" && c.LLM.OpenAIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	switch c.Storage.Backend {
	case "supabase":
		if c.Storage.SupabaseURL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
		if c.Storage.SupabaseKey == "" {
			missing = append(missing, "SUPABASE_SERVICE_KEY")
		}
	case "s3":
		if c.Storage.AWSRegion == "" {
			missing = append(missing, "AWS_REGION")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}

	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.Ingest.ChunkOverlap)
	}
	if c.Ingest.RunLockTTL <= 0 {
		return fmt.Errorf("INGEST_RUN_LOCK_TTL must be positive, got %v", c.Ingest.RunLockTTL)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSION must be positive, got %d", c.Embedding.Dimension)
	}
	if c.RAG.SimilarityThreshold < 0 || c.RAG.SimilarityThreshold > 1 {
		return fmt.Errorf("RAG_SIMILARITY_THRESHOLD must be in [0, 1], got %v", c.RAG.SimilarityThreshold)
	}
	switch c.Storage.Backend {
	case "supabase", "s3", "local":
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}
	return nil
}

// loader collects the first parse error so Load reads top to bottom.
type loader struct {
	err error
}

func (l *loader) int(key string, fallback int) int {
	v, err := getEnvInt(key, fallback)
	if err != nil && l.err == nil {
		l.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

func (l *loader) float(key string, fallback float64) float64 {
	v, err := getEnvFloat(key, fallback)
	if err != nil && l.err == nil {
		l.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

func (l *loader) duration(key string, fallback time.Duration) time.Duration {
	v, err := getEnvDuration(key, fallback)
	if err != nil && l.err == nil {
		l.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
