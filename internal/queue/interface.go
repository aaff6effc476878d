package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/lorequeue/internal/models"
)

// Repository is the storage contract behind every queue. All methods are
// scoped to one queue name. Methods that target a single live item return an
// error matching ErrNotFound when no row changed; lookups return (nil, nil).
type Repository interface {
	Insert(ctx context.Context, item *models.QueueItem) error

	// ClaimNext atomically moves the best eligible item to processing and
	// returns the updated row, or nil when nothing is eligible at now.
	ClaimNext(ctx context.Context, queueName string, now time.Time) (*models.QueueItem, error)
	PeekNext(ctx context.Context, queueName string, now time.Time) (*models.QueueItem, error)
	Get(ctx context.Context, queueName, id string) (*models.QueueItem, error)

	Complete(ctx context.Context, queueName, id string, now time.Time) error
	Fail(ctx context.Context, queueName, id, message string, now time.Time) error
	Delay(ctx context.Context, queueName, id string, until, now time.Time) error

	ListByStatus(ctx context.Context, queueName string, status models.Status) ([]models.QueueItem, error)
	CountByStatus(ctx context.Context, queueName string, status models.Status) (int64, error)
	CountGrouped(ctx context.Context, queueName string) (map[string]int64, error)

	ListByCorrelation(ctx context.Context, queueName, key string) ([]models.QueueItem, error)
	HistoryByCorrelation(ctx context.Context, queueName, key string, limit int) ([]models.QueueItem, error)

	DeleteTerminal(ctx context.Context, queueName string, cutoff time.Time) (int64, error)
	ExpireStale(ctx context.Context, queueName string, cutoff, now time.Time) (int64, error)
}

// WorkQueue is the producer/consumer surface of a single logical queue.
type WorkQueue[T any] interface {
	Name() string
	Enqueue(ctx context.Context, payload T, priority uint8) (uuid.UUID, error)
	EnqueueWith(ctx context.Context, payload T, opts EnqueueOptions) (uuid.UUID, error)
	Dequeue(ctx context.Context) (*Item[T], error)
	Peek(ctx context.Context) (*Item[T], error)
	Complete(ctx context.Context, id uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID, message string) error
	Delay(ctx context.Context, id uuid.UUID, until time.Time) error
	Get(ctx context.Context, id uuid.UUID) (*Item[T], error)
	ListByStatus(ctx context.Context, status models.Status) ([]Item[T], error)
	Depth(ctx context.Context) (int, error)
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)
}

// ApprovalQueue adds the world-scoped projections behind the DM inbox.
type ApprovalQueue[T any] interface {
	WorkQueue[T]
	ListByCorrelation(ctx context.Context, key string) ([]Item[T], error)
	HistoryByCorrelation(ctx context.Context, key string, limit int) ([]Item[T], error)
	ExpireOld(ctx context.Context, olderThan time.Duration) (int, error)
}

// ProcessingQueue adds the advisory capacity gate used by schedulers.
type ProcessingQueue[T any] interface {
	WorkQueue[T]
	BatchSize() int
	ProcessingCount(ctx context.Context) (int, error)
	HasCapacity(ctx context.Context) (bool, error)
}

// Notifier is the enqueue-side notification hook. Implementations must
// return promptly and never fail.
type Notifier interface {
	NotifyWorkAvailable()
}
