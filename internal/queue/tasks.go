package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	TypeIngestBatch         = "ingest:batch"
	TypeIngestRequeueFailed = "ingest:requeue_failed"
)

type IngestBatchPayload struct {
	// Limit caps documents per run; zero means the configured default.
	Limit int `json:"limit,omitempty"`
}

// NewIngestBatchTask builds an ingest:batch task. Used by both the client and
// the scheduler.
func NewIngestBatchTask(limit int) (*asynq.Task, error) {
	data, err := json.Marshal(IngestBatchPayload{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypeIngestBatch, data), nil
}

func NewRequeueFailedTask() *asynq.Task {
	return asynq.NewTask(TypeIngestRequeueFailed, nil)
}

func ParseIngestBatchPayload(t *asynq.Task) (IngestBatchPayload, error) {
	var p IngestBatchPayload
	if len(t.Payload()) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("unmarshal payload: %w", err)
	}
	if p.Limit < 0 {
		return p, fmt.Errorf("negative limit %d", p.Limit)
	}
	return p, nil
}
