package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/docrag/internal/app"
	"github.com/nikhilbhutani/docrag/internal/config"
	"github.com/nikhilbhutani/docrag/internal/queue"
	"github.com/nikhilbhutani/docrag/internal/queue/workers"
)

const concurrency = 2

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	redisOpt := queue.RedisOpt(cfg.Redis)
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			"default": 1,
		},
	})

	registry := queue.NewHandlersRegistry()

	ingestWorker := workers.NewIngestWorker(a.Runner, cfg.Ingest.BatchLimit)
	requeueWorker := workers.NewRequeueWorker(a.Registry, cfg.Ingest.MaxAttempts, cfg.Ingest.RetryBackoff)

	registry.Register(queue.TypeIngestBatch, asynq.HandlerFunc(ingestWorker.ProcessTask))
	registry.Register(queue.TypeIngestRequeueFailed, asynq.HandlerFunc(requeueWorker.ProcessTask))

	scheduler, err := queue.NewScheduler(redisOpt, cfg.Ingest.Schedule, cfg.Ingest.RetrySchedule, cfg.Ingest.BatchLimit)
	if err != nil {
		slog.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}

	if err := scheduler.Start(); err != nil {
		slog.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	if err := srv.Start(registry.Mux()); err != nil {
		slog.Error("failed to start worker", "error", err)
		os.Exit(1)
	}
	slog.Info("worker started",
		"concurrency", concurrency,
		"ingest_schedule", cfg.Ingest.Schedule,
		"retry_schedule", cfg.Ingest.RetrySchedule,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	scheduler.Shutdown()
	srv.Shutdown()
	slog.Info("worker stopped")
}
