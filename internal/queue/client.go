package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/docrag/internal/config"
)

// IngestTaskTimeout bounds one ingest:batch run on the worker.
const IngestTaskTimeout = 30 * time.Minute

type Client struct {
	client *asynq.Client
}

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{client: asynq.NewClient(RedisOpt(cfg))}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueIngestBatch schedules an ingest run. A run already waiting in the
// queue absorbs the request, so bursts of approvals trigger one run.
func (c *Client) EnqueueIngestBatch(ctx context.Context, limit int) error {
	task, err := NewIngestBatchTask(limit)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(2),
		asynq.Timeout(IngestTaskTimeout),
		asynq.Unique(time.Minute),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeIngestBatch, err)
	}
	return nil
}
