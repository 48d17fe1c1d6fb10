package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/docrag/internal/cache"
)

// ErrRunInProgress is returned by Runner.Run when another run holds the lock.
var ErrRunInProgress = errors.New("ingest run already in progress")

// RunLock serializes ingest runs across processes.
type RunLock interface {
	Acquire(ctx context.Context) (release func(), err error)
}

type redisRunLock struct {
	cache *cache.Cache
	key   string
	ttl   time.Duration
}

// NewRedisRunLock holds key in Redis for at most ttl per run.
func NewRedisRunLock(c *cache.Cache, key string, ttl time.Duration) RunLock {
	return &redisRunLock{cache: c, key: key, ttl: ttl}
}

func (l *redisRunLock) Acquire(ctx context.Context) (func(), error) {
	lock, err := l.cache.TryLock(ctx, l.key, l.ttl)
	if err != nil {
		return nil, err
	}
	if lock == nil {
		return nil, ErrRunInProgress
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(ctx); err != nil {
			slog.Warn("failed to release ingest run lock", "error", err)
		}
	}, nil
}

// Runner wraps an Orchestrator so scheduled, queued and manual runs never
// overlap. A nil lock runs unguarded.
type Runner struct {
	orch *Orchestrator
	lock RunLock
}

func NewRunner(orch *Orchestrator, lock RunLock) *Runner {
	return &Runner{orch: orch, lock: lock}
}

func (r *Runner) Run(ctx context.Context, limit int) (*BatchResult, error) {
	if r.lock != nil {
		release, err := r.lock.Acquire(ctx)
		if err != nil {
			if errors.Is(err, ErrRunInProgress) {
				return nil, err
			}
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		defer release()
	}
	return r.orch.ProcessDocuments(ctx, limit)
}
