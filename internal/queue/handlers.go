package queue

import (
	"fmt"

	"github.com/hibiken/asynq"
)

type HandlersRegistry struct {
	mux *asynq.ServeMux
}

func NewHandlersRegistry() *HandlersRegistry {
	return &HandlersRegistry{
		mux: asynq.NewServeMux(),
	}
}

func (r *HandlersRegistry) Register(taskType string, handler asynq.Handler) {
	r.mux.Handle(taskType, handler)
}

func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}

// NewScheduler enqueues the periodic ingest and retry tasks. An empty schedule
// disables that entry.
func NewScheduler(opt asynq.RedisClientOpt, ingestSchedule, retrySchedule string, batchLimit int) (*asynq.Scheduler, error) {
	s := asynq.NewScheduler(opt, nil)

	if ingestSchedule != "" {
		task, err := NewIngestBatchTask(batchLimit)
		if err != nil {
			return nil, err
		}
		if _, err := s.Register(ingestSchedule, task, asynq.MaxRetry(0), asynq.Timeout(IngestTaskTimeout)); err != nil {
			return nil, fmt.Errorf("register %s schedule: %w", TypeIngestBatch, err)
		}
	}
	if retrySchedule != "" {
		if _, err := s.Register(retrySchedule, NewRequeueFailedTask(), asynq.MaxRetry(0)); err != nil {
			return nil, fmt.Errorf("register %s schedule: %w", TypeIngestRequeueFailed, err)
		}
	}
	return s, nil
}
