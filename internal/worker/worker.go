package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/lorequeue/internal/queue"
)

const (
	// ErrorBackoff is how long a worker sleeps after a store error.
	ErrorBackoff = time.Second
	// GateBackoff is how long a worker waits when its queue is at capacity.
	GateBackoff = 250 * time.Millisecond

	reportTimeout = 5 * time.Second
)

// Handler executes one claimed item. Returning nil completes the item,
// returning RetryAfter delays it, and any other error fails it.
type Handler[T any] func(ctx context.Context, item *queue.Item[T]) error

// Source is the part of a queue a worker consumes.
type Source[T any] interface {
	Name() string
	Dequeue(ctx context.Context) (*queue.Item[T], error)
	Complete(ctx context.Context, id uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID, message string) error
	Delay(ctx context.Context, id uuid.UUID, until time.Time) error
	HasCapacity(ctx context.Context) (bool, error)
}

// Waiter hands out a channel closed on the next work notification.
type Waiter interface {
	Watch() <-chan struct{}
}

type retryError struct {
	after time.Duration
	err   error
}

func (e *retryError) Error() string {
	return fmt.Sprintf("retry after %s: %v", e.after, e.err)
}

func (e *retryError) Unwrap() error { return e.err }

// RetryAfter asks the worker to put the item back after d. Once the item has
// used all of its attempts it is failed instead.
func RetryAfter(d time.Duration, err error) error {
	if err == nil {
		err = errors.New("retry requested")
	}
	return &retryError{after: d, err: err}
}

type Worker[T any] struct {
	ID       int
	queue    Source[T]
	handler  Handler[T]
	waiter   Waiter
	recovery time.Duration
	logger   *slog.Logger
	now      func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a worker for one queue. recovery bounds how long an idle worker
// waits for a notification before polling again.
func New[T any](id int, q Source[T], h Handler[T], waiter Waiter, recovery time.Duration, logger *slog.Logger) *Worker[T] {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Worker[T]{
		ID:       id,
		queue:    q,
		handler:  h,
		waiter:   waiter,
		recovery: recovery,
		logger:   logger.With("worker", id, "queue", q.Name()),
		now:      time.Now,
	}
}

func (w *Worker[T]) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)
		w.loop(ctx)
	}()
}

func (w *Worker[T]) loop(ctx context.Context) {
	for ctx.Err() == nil {
		var watch <-chan struct{}
		if w.waiter != nil {
			watch = w.waiter.Watch()
		}
		res, err := w.RunOnce(ctx)

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("worker iteration failed", "error", err)
			sleep(ctx, ErrorBackoff)
		case res == Processed:
		case res == AtCapacity:
			sleep(ctx, GateBackoff)
		case w.waiter == nil:
			sleep(ctx, w.recovery)
		default:
			if queue.Wait(ctx, watch, w.recovery) == queue.TimedOut {
				w.logger.Debug("no notification, polling")
			}
		}
	}
}

// Result is the outcome of one RunOnce call.
type Result int

const (
	Idle Result = iota
	Processed
	AtCapacity
)

// RunOnce consults the gate, claims at most one item and reports its
// outcome.
func (w *Worker[T]) RunOnce(ctx context.Context) (Result, error) {
	open, err := w.queue.HasCapacity(ctx)
	if err != nil {
		return Idle, fmt.Errorf("check capacity: %w", err)
	}
	if !open {
		return AtCapacity, nil
	}

	item, err := w.queue.Dequeue(ctx)
	if err != nil {
		return Idle, fmt.Errorf("claim: %w", err)
	}
	if item == nil {
		return Idle, nil
	}

	return Processed, w.process(ctx, item)
}

func (w *Worker[T]) process(ctx context.Context, item *queue.Item[T]) error {
	log := w.logger.With("id", item.ID, "attempt", item.Attempts)
	start := w.now()
	herr := w.handler(ctx, item)

	// The outcome is recorded even when the worker is shutting down.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	var retry *retryError
	switch {
	case herr == nil:
		log.Info("item completed", "duration", w.now().Sub(start))
		return w.report(w.queue.Complete(rctx, item.ID), "complete")

	case ctx.Err() != nil && errors.Is(herr, ctx.Err()):
		log.Warn("worker stopped mid-item, requeueing")
		return w.report(w.queue.Delay(rctx, item.ID, w.now()), "requeue")

	case errors.As(herr, &retry) && item.Attempts < item.MaxAttempts:
		log.Warn("item will be retried", "after", retry.after, "error", retry.err)
		return w.report(w.queue.Delay(rctx, item.ID, w.now().Add(retry.after)), "delay")

	default:
		log.Error("item failed", "error", herr)
		return w.report(w.queue.Fail(rctx, item.ID, herr.Error()), "fail")
	}
}

func (w *Worker[T]) report(err error, op string) error {
	if err == nil {
		return nil
	}
	if queue.IsNotFound(err) {
		w.logger.Warn("item left the live set before "+op, "error", err)
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (w *Worker[T]) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
