package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/docrag/internal/ingest"
	"github.com/nikhilbhutani/docrag/internal/queue"
)

type BatchRunner interface {
	Run(ctx context.Context, limit int) (*ingest.BatchResult, error)
}

// IngestWorker handles ingest:batch tasks.
type IngestWorker struct {
	runner       BatchRunner
	defaultLimit int
}

func NewIngestWorker(runner BatchRunner, defaultLimit int) *IngestWorker {
	return &IngestWorker{runner: runner, defaultLimit: defaultLimit}
}

func (w *IngestWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload, err := queue.ParseIngestBatchPayload(t)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	limit := payload.Limit
	if limit == 0 {
		limit = w.defaultLimit
	}

	res, err := w.runner.Run(ctx, limit)
	if errors.Is(err, ingest.ErrRunInProgress) {
		slog.Info("ingest run already in progress, skipping task")
		return nil
	}
	if err != nil {
		return fmt.Errorf("ingest batch: %w", err)
	}

	slog.Info("ingest task completed",
		"processed", res.Processed,
		"successful", res.Successful,
		"failed", res.Failed,
		"skipped", res.Skipped,
	)
	return nil
}

type FailedRequeuer interface {
	RequeueFailed(ctx context.Context, maxAttempts int, backoff time.Duration) (int64, error)
}

// RequeueWorker handles ingest:requeue_failed tasks, returning failed
// documents to the queue under the bounded retry policy.
type RequeueWorker struct {
	registry    FailedRequeuer
	maxAttempts int
	backoff     time.Duration
}

func NewRequeueWorker(registry FailedRequeuer, maxAttempts int, backoff time.Duration) *RequeueWorker {
	return &RequeueWorker{registry: registry, maxAttempts: maxAttempts, backoff: backoff}
}

func (w *RequeueWorker) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	if w.maxAttempts <= 0 {
		return nil
	}
	n, err := w.registry.RequeueFailed(ctx, w.maxAttempts, w.backoff)
	if err != nil {
		return fmt.Errorf("requeue failed documents: %w", err)
	}
	if n > 0 {
		slog.Info("requeued failed documents", "count", n)
	}
	return nil
}
