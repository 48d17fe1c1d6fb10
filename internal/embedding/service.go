package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/nikhilbhutani/docrag/internal/config"
	"github.com/nikhilbhutani/docrag/internal/llm"
	"github.com/nikhilbhutani/docrag/internal/models"
)

// Embedder turns text into vectors. Every error wraps
// models.ErrEmbeddingUnavailable.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
}

type Service struct {
	gateway       llm.Gateway
	model         string
	dimension     int
	maxInputChars int
	batchSize     int
	timeout       time.Duration
}

func NewService(gw llm.Gateway, cfg config.EmbeddingConfig) *Service {
	s := &Service{
		gateway:       gw,
		model:         cfg.Model,
		dimension:     cfg.Dimension,
		maxInputChars: cfg.MaxInputChars,
		batchSize:     cfg.BatchSize,
		timeout:       cfg.Timeout,
	}
	if s.model == "" {
		s.model = llm.DefaultOpenAIEmbeddingModel
	}
	if s.batchSize <= 0 {
		s.batchSize = 100
	}
	return s
}

func (s *Service) Model() string { return s.model }

func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	allEmbeddings := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += s.batchSize {
		end := min(i+s.batchSize, len(texts))

		batch := make([]string, end-i)
		for j, t := range texts[i:end] {
			batch[j] = Truncate(t, s.maxInputChars)
		}

		embeddings, err := s.embedBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embed batch %d: %w", i/s.batchSize, err)
		}
		allEmbeddings = append(allEmbeddings, embeddings...)
	}

	return allEmbeddings, nil
}

func (s *Service) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.gateway.Embed(ctx, llm.EmbeddingRequest{
		Model: s.model,
		Input: batch,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingUnavailable, err)
	}

	if len(resp.Embeddings) != len(batch) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs",
			models.ErrEmbeddingUnavailable, len(resp.Embeddings), len(batch))
	}
	if s.dimension > 0 {
		for i, e := range resp.Embeddings {
			if len(e) != s.dimension {
				return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d",
					models.ErrEmbeddingUnavailable, i, len(e), s.dimension)
			}
		}
	}

	slog.Debug("embedded batch",
		"provider", resp.Provider,
		"model", resp.Model,
		"inputs", len(batch),
		"tokens", resp.Tokens,
		"cost_usd", resp.CostUSD,
	)
	return resp.Embeddings, nil
}

func (s *Service) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", models.ErrEmbeddingUnavailable)
	}
	return embeddings[0], nil
}

// Truncate cuts text to at most maxChars characters without splitting a
// multi-byte rune. maxChars <= 0 disables truncation.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i]
		}
		n++
	}
	return text
}
