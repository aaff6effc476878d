package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/lorequeue/internal/models"
)

// Queue is a typed view of one named queue over a shared Repository.
// Payloads are stored as JSON; any T that encoding/json round-trips works.
type Queue[T any] struct {
	repo      Repository
	name      string
	batchSize int
	notifier  Notifier
	clock     func() time.Time
	logger    *slog.Logger
}

type Option func(*options)

type options struct {
	batchSize int
	notifier  Notifier
	clock     func() time.Time
	logger    *slog.Logger
}

// WithBatchSize sets the advisory processing capacity. Values below 1 are
// treated as 1.
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithClock replaces the wall clock used for every timestamp and for
// eligibility checks.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func New[T any](repo Repository, name string, opts ...Option) *Queue[T] {
	o := options{
		batchSize: 1,
		notifier:  Nop{},
		clock:     time.Now,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.batchSize < 1 {
		o.batchSize = 1
	}
	if o.notifier == nil {
		o.notifier = Nop{}
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	return &Queue[T]{
		repo:      repo,
		name:      name,
		batchSize: o.batchSize,
		notifier:  o.notifier,
		clock:     o.clock,
		logger:    o.logger.With("queue", name),
	}
}

var (
	_ WorkQueue[json.RawMessage]       = (*Queue[json.RawMessage])(nil)
	_ ApprovalQueue[json.RawMessage]   = (*Queue[json.RawMessage])(nil)
	_ ProcessingQueue[json.RawMessage] = (*Queue[json.RawMessage])(nil)
)

func (q *Queue[T]) Name() string { return q.name }

func (q *Queue[T]) now() time.Time {
	return q.clock().UTC().Truncate(time.Microsecond)
}

func (q *Queue[T]) Enqueue(ctx context.Context, payload T, priority uint8) (uuid.UUID, error) {
	return q.EnqueueWith(ctx, payload, EnqueueOptions{Priority: priority})
}

func (q *Queue[T]) EnqueueWith(ctx context.Context, payload T, opts EnqueueOptions) (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("enqueue: generate id: %w", err)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("enqueue: encode payload: %w", err)
	}

	metadata := opts.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	rawMeta, err := json.Marshal(metadata)
	if err != nil {
		return uuid.Nil, fmt.Errorf("enqueue: encode metadata: %w", err)
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	key := strings.TrimSpace(opts.CorrelationKey)
	if key == "" {
		key = ExtractCorrelationKey(raw)
	}

	now := q.now()
	row := &models.QueueItem{
		ID:          id.String(),
		QueueName:   q.name,
		Payload:     raw,
		Status:      models.StatusPending.String(),
		Priority:    int(opts.Priority),
		CreatedAt:   now,
		UpdatedAt:   now,
		MaxAttempts: maxAttempts,
		Metadata:    rawMeta,
	}
	if key != "" {
		row.CorrelationKey = &key
	}

	if err := q.repo.Insert(ctx, row); err != nil {
		return uuid.Nil, err
	}

	q.logger.Debug("item enqueued", "id", row.ID, "priority", opts.Priority, "correlation_key", key)
	q.notifier.NotifyWorkAvailable()
	return id, nil
}

// Dequeue claims the highest-priority, oldest eligible item. It returns
// (nil, nil) when nothing is eligible. If the claimed row cannot be decoded
// it stays processing and the returned error carries its id.
func (q *Queue[T]) Dequeue(ctx context.Context) (*Item[T], error) {
	row, err := q.repo.ClaimNext(ctx, q.name, q.now())
	if err != nil || row == nil {
		return nil, err
	}

	item, err := decodeItem[T](row)
	if err != nil {
		q.logger.Error("claimed item is corrupt", "id", row.ID, "error", err)
		return nil, err
	}
	return item, nil
}

func (q *Queue[T]) Peek(ctx context.Context) (*Item[T], error) {
	row, err := q.repo.PeekNext(ctx, q.name, q.now())
	if err != nil || row == nil {
		return nil, err
	}
	return decodeItem[T](row)
}

func (q *Queue[T]) Complete(ctx context.Context, id uuid.UUID) error {
	return q.repo.Complete(ctx, q.name, id.String(), q.now())
}

func (q *Queue[T]) Fail(ctx context.Context, id uuid.UUID, message string) error {
	return q.repo.Fail(ctx, q.name, id.String(), message, q.now())
}

// Delay parks a live item until the given instant. created_at is kept, so the
// item competes with its original position once eligible again.
func (q *Queue[T]) Delay(ctx context.Context, id uuid.UUID, until time.Time) error {
	return q.repo.Delay(ctx, q.name, id.String(), until.UTC().Truncate(time.Microsecond), q.now())
}

// Get returns (nil, nil) when the id does not exist under this queue.
func (q *Queue[T]) Get(ctx context.Context, id uuid.UUID) (*Item[T], error) {
	row, err := q.repo.Get(ctx, q.name, id.String())
	if err != nil || row == nil {
		return nil, err
	}
	return decodeItem[T](row)
}

func (q *Queue[T]) ListByStatus(ctx context.Context, status models.Status) ([]Item[T], error) {
	rows, err := q.repo.ListByStatus(ctx, q.name, status)
	if err != nil {
		return nil, err
	}
	return decodeItems[T](rows)
}

// Depth counts pending items. Delayed items are not included.
func (q *Queue[T]) Depth(ctx context.Context) (int, error) {
	n, err := q.repo.CountByStatus(ctx, q.name, models.StatusPending)
	return int(n), err
}

// Cleanup deletes completed and failed items last updated before
// now-olderThan.
func (q *Queue[T]) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	n, err := q.repo.DeleteTerminal(ctx, q.name, q.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		q.logger.Info("removed finished items", "count", n, "older_than", olderThan)
	}
	return int(n), nil
}

// ListByCorrelation returns the key's pending and processing items in claim
// order.
func (q *Queue[T]) ListByCorrelation(ctx context.Context, key string) ([]Item[T], error) {
	rows, err := q.repo.ListByCorrelation(ctx, q.name, key)
	if err != nil {
		return nil, err
	}
	return decodeItems[T](rows)
}

// HistoryByCorrelation returns up to limit finished items for the key,
// newest first.
func (q *Queue[T]) HistoryByCorrelation(ctx context.Context, key string, limit int) ([]Item[T], error) {
	if limit <= 0 {
		return []Item[T]{}, nil
	}
	rows, err := q.repo.HistoryByCorrelation(ctx, q.name, key, limit)
	if err != nil {
		return nil, err
	}
	return decodeItems[T](rows)
}

// ExpireOld marks pending and delayed items created before now-olderThan as
// expired.
func (q *Queue[T]) ExpireOld(ctx context.Context, olderThan time.Duration) (int, error) {
	now := q.now()
	n, err := q.repo.ExpireStale(ctx, q.name, now.Add(-olderThan), now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		q.logger.Info("expired stale items", "count", n, "older_than", olderThan)
	}
	return int(n), nil
}

func (q *Queue[T]) BatchSize() int { return q.batchSize }

func (q *Queue[T]) ProcessingCount(ctx context.Context) (int, error) {
	n, err := q.repo.CountByStatus(ctx, q.name, models.StatusProcessing)
	return int(n), err
}

// HasCapacity reports processing < batch size. It is advisory: Dequeue does
// not consult it.
func (q *Queue[T]) HasCapacity(ctx context.Context) (bool, error) {
	n, err := q.ProcessingCount(ctx)
	if err != nil {
		return false, err
	}
	return n < q.batchSize, nil
}

// Stats is a point-in-time count of a queue's items per status.
type Stats struct {
	Queue  string
	Counts map[models.Status]int
	Total  int
}

func (s Stats) Depth() int { return s.Counts[models.StatusPending] }

func (q *Queue[T]) Stats(ctx context.Context) (Stats, error) {
	grouped, err := q.repo.CountGrouped(ctx, q.name)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Queue: q.name, Counts: make(map[models.Status]int, len(models.AllStatuses))}
	for _, s := range models.AllStatuses {
		stats.Counts[s] = 0
	}
	for raw, n := range grouped {
		status, err := models.ParseStatus(raw)
		if err != nil {
			return Stats{}, fmt.Errorf("%w: stats for %s: %w", ErrCorrupt, q.name, err)
		}
		stats.Counts[status] = int(n)
		stats.Total += int(n)
	}
	return stats, nil
}

// IsNotFound reports whether err means the item is missing or already
// finished.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
