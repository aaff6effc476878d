package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joshu-sajeev/lorequeue/internal/config"
	"github.com/joshu-sajeev/lorequeue/internal/dto"
	"github.com/joshu-sajeev/lorequeue/internal/logging"
	"github.com/joshu-sajeev/lorequeue/internal/pool"
	"github.com/joshu-sajeev/lorequeue/internal/queue"
	"github.com/joshu-sajeev/lorequeue/internal/queueapi"
	"github.com/joshu-sajeev/lorequeue/internal/storage"
	"github.com/joshu-sajeev/lorequeue/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		slog.Error("failed to build logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	backend, err := storage.Open(ctx, cfg.StorageOptions(), logger)
	if err != nil {
		logger.Error("failed to open queue backend", "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	latency := 500 * time.Millisecond
	if v, err := strconv.Atoi(os.Getenv("WORKER_SIMULATED_LATENCY_MS")); err == nil && v >= 0 {
		latency = time.Duration(v) * time.Millisecond
	}
	sim := worker.Simulator{Latency: latency, RetryDelay: 10 * time.Second, Logger: logger}

	queueOpts := func(name string) []queue.Option {
		return []queue.Option{
			queue.WithBatchSize(cfg.BatchSize(name)),
			queue.WithNotifier(backend.Notifier(name)),
			queue.WithLogger(logger),
		}
	}
	llm := queue.New[dto.LLMRequestPayload](backend.Repo, config.QueueLLMRequests, queueOpts(config.QueueLLMRequests)...)
	assets := queue.New[dto.AssetGenerationPayload](backend.Repo, config.QueueAssetGeneration, queueOpts(config.QueueAssetGeneration)...)

	sweeper := queue.NewSweeper(
		cfg.SweepPolicy(),
		logger,
		queueapi.NewRegistry(backend.Repo, cfg.BatchSize, nil, logger).Sweepables()...,
	)
	workerPool := pool.NewWorkerPool(sweeper, cfg.SweepInterval.Std(), logger)

	recovery := cfg.Recovery.Std()
	id := 0
	for range llm.BatchSize() {
		id++
		workerPool.Add(worker.New(id, llm, sim.LLMRequest, backend.Waiter(llm.Name()), recovery, logger))
	}
	for range assets.BatchSize() {
		id++
		workerPool.Add(worker.New(id, assets, sim.AssetGeneration, backend.Waiter(assets.Name()), recovery, logger))
	}

	workerPool.Start()
	logger.Info("worker pool active, press Ctrl+C to stop", "workers", workerPool.Size())

	<-ctx.Done()

	workerPool.Stop()
	logger.Info("shutdown complete")
}
