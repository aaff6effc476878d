package pool

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joshu-sajeev/lorequeue/internal/queue"
)

// Runner is a long-lived consumer the pool starts and stops.
type Runner interface {
	Start(ctx context.Context)
	Stop()
}

// Janitor runs retention sweeps on a fixed interval.
type Janitor interface {
	SweepOnce(ctx context.Context) ([]queue.SweepResult, error)
}

type WorkerPool struct {
	workers       []Runner
	janitor       Janitor
	sweepInterval time.Duration
	logger        *slog.Logger
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorkerPool builds a pool. A nil janitor or a non-positive interval
// disables sweeping.
func NewWorkerPool(janitor Janitor, sweepInterval time.Duration, logger *slog.Logger, workers ...Runner) *WorkerPool {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		workers:       workers,
		janitor:       janitor,
		sweepInterval: sweepInterval,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Add registers more workers. Call before Start.
func (p *WorkerPool) Add(workers ...Runner) {
	p.workers = append(p.workers, workers...)
}

func (p *WorkerPool) Size() int { return len(p.workers) }

func (p *WorkerPool) Start() {
	for _, w := range p.workers {
		w.Start(p.ctx)
	}

	if p.janitor != nil && p.sweepInterval > 0 {
		p.wg.Add(1)
		go p.runJanitor()
	}
	p.logger.Info("worker pool started", "workers", len(p.workers), "sweep_interval", p.sweepInterval)
}

func (p *WorkerPool) runJanitor() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			results, err := p.janitor.SweepOnce(p.ctx)
			if err != nil && p.ctx.Err() == nil {
				p.logger.Error("retention sweep failed", "error", err)
			}
			for _, r := range results {
				if r.Expired > 0 || r.Removed > 0 {
					p.logger.Info("retention sweep", "queue", r.Queue, "expired", r.Expired, "removed", r.Removed)
				}
			}
		case <-p.ctx.Done():
			return
		}
	}
}

// Stop cancels every worker and waits for them and the janitor to exit.
func (p *WorkerPool) Stop() {
	p.cancel()
	for _, w := range p.workers {
		w.Stop()
	}
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}
