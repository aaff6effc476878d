// Package memory is a process-local queue store. Every operation runs under
// one mutex, which makes claim trivially atomic. Nothing survives a restart.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/joshu-sajeev/lorequeue/internal/models"
	"github.com/joshu-sajeev/lorequeue/internal/queue"
)

type Repository struct {
	mu    sync.Mutex
	items map[string]*models.QueueItem
}

func NewRepository() *Repository {
	return &Repository{items: make(map[string]*models.QueueItem)}
}

var _ queue.Repository = (*Repository)(nil)

func clone(item *models.QueueItem) models.QueueItem {
	c := *item
	c.Payload = slices.Clone(item.Payload)
	c.Metadata = slices.Clone(item.Metadata)
	if item.CorrelationKey != nil {
		k := *item.CorrelationKey
		c.CorrelationKey = &k
	}
	if item.ScheduledAt != nil {
		t := *item.ScheduledAt
		c.ScheduledAt = &t
	}
	if item.ErrorMessage != nil {
		m := *item.ErrorMessage
		c.ErrorMessage = &m
	}
	return c
}

func eligible(item *models.QueueItem, now time.Time) bool {
	switch models.Status(item.Status) {
	case models.StatusPending:
		return true
	case models.StatusDelayed:
		return item.ScheduledAt != nil && !item.ScheduledAt.After(now)
	}
	return false
}

func live(item *models.QueueItem) bool {
	switch models.Status(item.Status) {
	case models.StatusPending, models.StatusProcessing, models.StatusDelayed:
		return true
	}
	return false
}

// claimOrder sorts by priority descending, then created_at, then id.
func claimOrder(a, b *models.QueueItem) int {
	if a.Priority != b.Priority {
		return b.Priority - a.Priority
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	if a.ID < b.ID {
		return -1
	}
	if a.ID > b.ID {
		return 1
	}
	return 0
}

// selectLocked returns matching rows in claim order. Callers hold r.mu.
func (r *Repository) selectLocked(queueName string, match func(*models.QueueItem) bool) []*models.QueueItem {
	var out []*models.QueueItem
	for _, item := range r.items {
		if item.QueueName == queueName && match(item) {
			out = append(out, item)
		}
	}
	slices.SortFunc(out, claimOrder)
	return out
}

func copies(rows []*models.QueueItem) []models.QueueItem {
	out := make([]models.QueueItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, clone(row))
	}
	return out
}

// canceled reports a done context as a database error, as the sql backends do.
func canceled(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return queue.DatabaseError(op, err)
	}
	return nil
}

func (r *Repository) Insert(ctx context.Context, item *models.QueueItem) error {
	if err := canceled(ctx, "insert item"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[item.ID]; exists {
		return queue.DatabaseError("insert item", errDuplicateID)
	}
	c := clone(item)
	r.items[item.ID] = &c
	return nil
}

func (r *Repository) ClaimNext(ctx context.Context, queueName string, now time.Time) (*models.QueueItem, error) {
	if err := canceled(ctx, "claim next"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	candidates := r.selectLocked(queueName, func(i *models.QueueItem) bool { return eligible(i, now) })
	if len(candidates) == 0 {
		return nil, nil
	}

	item := candidates[0]
	item.Status = models.StatusProcessing.String()
	item.Attempts++
	item.UpdatedAt = now
	item.ScheduledAt = nil
	item.ErrorMessage = nil

	c := clone(item)
	return &c, nil
}

func (r *Repository) PeekNext(ctx context.Context, queueName string, now time.Time) (*models.QueueItem, error) {
	if err := canceled(ctx, "peek next"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	candidates := r.selectLocked(queueName, func(i *models.QueueItem) bool { return eligible(i, now) })
	if len(candidates) == 0 {
		return nil, nil
	}
	c := clone(candidates[0])
	return &c, nil
}

func (r *Repository) Get(ctx context.Context, queueName, id string) (*models.QueueItem, error) {
	if err := canceled(ctx, "get item"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok || item.QueueName != queueName {
		return nil, nil
	}
	c := clone(item)
	return &c, nil
}

func (r *Repository) transition(ctx context.Context, op, queueName, id string, apply func(*models.QueueItem)) error {
	if err := canceled(ctx, op); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok || item.QueueName != queueName || !live(item) {
		return queue.NotFoundError(queueName, id)
	}
	apply(item)
	return nil
}

func (r *Repository) Complete(ctx context.Context, queueName, id string, now time.Time) error {
	return r.transition(ctx, "complete item", queueName, id, func(item *models.QueueItem) {
		item.Status = models.StatusCompleted.String()
		item.UpdatedAt = now
		item.ScheduledAt = nil
		item.ErrorMessage = nil
	})
}

func (r *Repository) Fail(ctx context.Context, queueName, id, message string, now time.Time) error {
	return r.transition(ctx, "fail item", queueName, id, func(item *models.QueueItem) {
		item.Status = models.StatusFailed.String()
		item.UpdatedAt = now
		item.ScheduledAt = nil
		item.ErrorMessage = &message
	})
}

func (r *Repository) Delay(ctx context.Context, queueName, id string, until, now time.Time) error {
	return r.transition(ctx, "delay item", queueName, id, func(item *models.QueueItem) {
		item.Status = models.StatusDelayed.String()
		item.UpdatedAt = now
		item.ScheduledAt = &until
		item.ErrorMessage = nil
	})
}

func (r *Repository) ListByStatus(ctx context.Context, queueName string, status models.Status) ([]models.QueueItem, error) {
	if err := canceled(ctx, "list by status"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	return copies(r.selectLocked(queueName, func(i *models.QueueItem) bool {
		return i.Status == status.String()
	})), nil
}

func (r *Repository) CountByStatus(ctx context.Context, queueName string, status models.Status) (int64, error) {
	if err := canceled(ctx, "count by status"); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, item := range r.items {
		if item.QueueName == queueName && item.Status == status.String() {
			n++
		}
	}
	return n, nil
}

func (r *Repository) CountGrouped(ctx context.Context, queueName string) (map[string]int64, error) {
	if err := canceled(ctx, "count grouped"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]int64)
	for _, item := range r.items {
		if item.QueueName == queueName {
			out[item.Status]++
		}
	}
	return out, nil
}

func hasKey(item *models.QueueItem, key string) bool {
	return item.CorrelationKey != nil && *item.CorrelationKey == key
}

func (r *Repository) ListByCorrelation(ctx context.Context, queueName, key string) ([]models.QueueItem, error) {
	if err := canceled(ctx, "list by correlation"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	return copies(r.selectLocked(queueName, func(i *models.QueueItem) bool {
		status := models.Status(i.Status)
		return hasKey(i, key) && (status == models.StatusPending || status == models.StatusProcessing)
	})), nil
}

func (r *Repository) HistoryByCorrelation(ctx context.Context, queueName, key string, limit int) ([]models.QueueItem, error) {
	if err := canceled(ctx, "history by correlation"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := r.selectLocked(queueName, func(i *models.QueueItem) bool {
		switch models.Status(i.Status) {
		case models.StatusCompleted, models.StatusFailed, models.StatusExpired:
			return hasKey(i, key)
		}
		return false
	})
	slices.SortFunc(rows, func(a, b *models.QueueItem) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		if a.ID > b.ID {
			return -1
		}
		if a.ID < b.ID {
			return 1
		}
		return 0
	})
	if limit >= 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return copies(rows), nil
}

func (r *Repository) DeleteTerminal(ctx context.Context, queueName string, cutoff time.Time) (int64, error) {
	if err := canceled(ctx, "delete terminal"); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, item := range r.items {
		if item.QueueName != queueName || !item.UpdatedAt.Before(cutoff) {
			continue
		}
		switch models.Status(item.Status) {
		case models.StatusCompleted, models.StatusFailed:
			delete(r.items, id)
			n++
		}
	}
	return n, nil
}

func (r *Repository) ExpireStale(ctx context.Context, queueName string, cutoff, now time.Time) (int64, error) {
	if err := canceled(ctx, "expire stale"); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, item := range r.items {
		if item.QueueName != queueName || !item.CreatedAt.Before(cutoff) {
			continue
		}
		switch models.Status(item.Status) {
		case models.StatusPending, models.StatusDelayed:
			item.Status = models.StatusExpired.String()
			item.UpdatedAt = now
			item.ScheduledAt = nil
			item.ErrorMessage = nil
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored rows across all queues.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
