package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Sweepable is the retention surface the sweeper drives.
type Sweepable interface {
	Name() string
	ExpireOld(ctx context.Context, olderThan time.Duration) (int, error)
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)
}

// SweepPolicy holds retention windows. A zero window disables that step.
type SweepPolicy struct {
	// ExpireAfter expires pending and delayed items older than this.
	ExpireAfter time.Duration
	// Retention deletes completed and failed items not updated for this long.
	Retention time.Duration
}

// SweepResult is the per-queue outcome of one sweep.
type SweepResult struct {
	Queue   string
	Expired int
	Removed int
}

type Sweeper struct {
	queues []Sweepable
	policy SweepPolicy
	logger *slog.Logger
}

func NewSweeper(policy SweepPolicy, logger *slog.Logger, queues ...Sweepable) *Sweeper {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sweeper{queues: queues, policy: policy, logger: logger}
}

// SweepOnce expires then cleans every queue. A failing queue does not stop
// the others; all errors are joined.
func (s *Sweeper) SweepOnce(ctx context.Context) ([]SweepResult, error) {
	results := make([]SweepResult, 0, len(s.queues))
	var errs []error

	for _, q := range s.queues {
		res := SweepResult{Queue: q.Name()}

		if s.policy.ExpireAfter > 0 {
			n, err := q.ExpireOld(ctx, s.policy.ExpireAfter)
			if err != nil {
				s.logger.Warn("expire step failed", "queue", q.Name(), "error", err)
				errs = append(errs, fmt.Errorf("expire %s: %w", q.Name(), err))
			}
			res.Expired = n
		}

		if s.policy.Retention > 0 {
			n, err := q.Cleanup(ctx, s.policy.Retention)
			if err != nil {
				s.logger.Warn("cleanup step failed", "queue", q.Name(), "error", err)
				errs = append(errs, fmt.Errorf("cleanup %s: %w", q.Name(), err))
			}
			res.Removed = n
		}

		results = append(results, res)
	}

	return results, errors.Join(errs...)
}
