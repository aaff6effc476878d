package sqlstore

import (
	"context"
	"errors"
	"time"

	"github.com/joshu-sajeev/lorequeue/internal/models"
	"github.com/joshu-sajeev/lorequeue/internal/queue"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const claimOrder = "priority DESC, created_at ASC, id ASC"

var (
	liveStatuses     = models.Strings(models.StatusPending, models.StatusProcessing, models.StatusDelayed)
	activeStatuses   = models.Strings(models.StatusPending, models.StatusProcessing)
	finishedStatuses = models.Strings(models.StatusCompleted, models.StatusFailed, models.StatusExpired)
	removable        = models.Strings(models.StatusCompleted, models.StatusFailed)
	expirable        = models.Strings(models.StatusPending, models.StatusDelayed)
)

// QueueRepository stores every queue in the queue_items table.
type QueueRepository struct {
	db      *gorm.DB
	dialect Dialect
}

func NewQueueRepository(db *gorm.DB) *QueueRepository {
	dialect, err := DialectOf(db)
	if err != nil {
		dialect = DialectSQLite
	}
	return &QueueRepository{db: db, dialect: dialect}
}

var _ queue.Repository = (*QueueRepository)(nil)

func eligibleAt(now time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("(status = ? OR (status = ? AND scheduled_at <= ?))",
			models.StatusPending.String(), models.StatusDelayed.String(), now)
	}
}

func (r *QueueRepository) items(ctx context.Context, queueName string) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.QueueItem{}).Where("queue_name = ?", queueName)
}

// Insert stores a new row.
func (r *QueueRepository) Insert(ctx context.Context, item *models.QueueItem) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return queue.DatabaseError("insert item", err)
	}
	return nil
}

// ClaimNext picks the best eligible id and moves it to processing with a
// conditional update that only matches while the row is still eligible. On
// postgres the candidate row is locked with SKIP LOCKED so concurrent
// claimers move on to the next row instead of colliding. On sqlite the
// transaction begins IMMEDIATE, which serializes writers.
func (r *QueueRepository) ClaimNext(ctx context.Context, queueName string, now time.Time) (*models.QueueItem, error) {
	var claimed *models.QueueItem

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pick := tx.Model(&models.QueueItem{}).
			Where("queue_name = ?", queueName).
			Scopes(eligibleAt(now)).
			Order(claimOrder).
			Limit(1)
		if r.dialect == DialectPostgres {
			pick = pick.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var ids []string
		if err := pick.Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		res := tx.Model(&models.QueueItem{}).
			Where("id = ? AND queue_name = ?", ids[0], queueName).
			Scopes(eligibleAt(now)).
			Updates(map[string]any{
				"status":        models.StatusProcessing.String(),
				"attempts":      gorm.Expr("attempts + 1"),
				"updated_at":    now,
				"scheduled_at":  nil,
				"error_message": nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var row models.QueueItem
		if err := tx.Where("id = ?", ids[0]).Take(&row).Error; err != nil {
			return err
		}
		claimed = &row
		return nil
	})
	if err != nil {
		return nil, queue.DatabaseError("claim next", err)
	}
	return claimed, nil
}

func (r *QueueRepository) PeekNext(ctx context.Context, queueName string, now time.Time) (*models.QueueItem, error) {
	var rows []models.QueueItem
	err := r.items(ctx, queueName).
		Scopes(eligibleAt(now)).
		Order(claimOrder).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, queue.DatabaseError("peek next", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Get returns (nil, nil) when the id is not stored under queueName.
func (r *QueueRepository) Get(ctx context.Context, queueName, id string) (*models.QueueItem, error) {
	var row models.QueueItem
	err := r.items(ctx, queueName).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, queue.DatabaseError("get item", err)
	}
	return &row, nil
}

func (r *QueueRepository) transition(ctx context.Context, op, queueName, id string, updates map[string]any) error {
	res := r.items(ctx, queueName).
		Where("id = ? AND status IN ?", id, liveStatuses).
		Updates(updates)
	if res.Error != nil {
		return queue.DatabaseError(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return queue.NotFoundError(queueName, id)
	}
	return nil
}

func (r *QueueRepository) Complete(ctx context.Context, queueName, id string, now time.Time) error {
	return r.transition(ctx, "complete item", queueName, id, map[string]any{
		"status":        models.StatusCompleted.String(),
		"updated_at":    now,
		"scheduled_at":  nil,
		"error_message": nil,
	})
}

func (r *QueueRepository) Fail(ctx context.Context, queueName, id, message string, now time.Time) error {
	return r.transition(ctx, "fail item", queueName, id, map[string]any{
		"status":        models.StatusFailed.String(),
		"updated_at":    now,
		"scheduled_at":  nil,
		"error_message": message,
	})
}

func (r *QueueRepository) Delay(ctx context.Context, queueName, id string, until, now time.Time) error {
	return r.transition(ctx, "delay item", queueName, id, map[string]any{
		"status":        models.StatusDelayed.String(),
		"updated_at":    now,
		"scheduled_at":  until,
		"error_message": nil,
	})
}

func (r *QueueRepository) ListByStatus(ctx context.Context, queueName string, status models.Status) ([]models.QueueItem, error) {
	var rows []models.QueueItem
	err := r.items(ctx, queueName).
		Where("status = ?", status.String()).
		Order(claimOrder).
		Find(&rows).Error
	if err != nil {
		return nil, queue.DatabaseError("list by status", err)
	}
	return rows, nil
}

func (r *QueueRepository) CountByStatus(ctx context.Context, queueName string, status models.Status) (int64, error) {
	var n int64
	if err := r.items(ctx, queueName).Where("status = ?", status.String()).Count(&n).Error; err != nil {
		return 0, queue.DatabaseError("count by status", err)
	}
	return n, nil
}

// CountGrouped returns raw stored status strings with their counts.
func (r *QueueRepository) CountGrouped(ctx context.Context, queueName string) (map[string]int64, error) {
	var groups []struct {
		Status string
		Count  int64
	}
	err := r.items(ctx, queueName).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&groups).Error
	if err != nil {
		return nil, queue.DatabaseError("count grouped", err)
	}

	out := make(map[string]int64, len(groups))
	for _, g := range groups {
		out[g.Status] = g.Count
	}
	return out, nil
}

func (r *QueueRepository) ListByCorrelation(ctx context.Context, queueName, key string) ([]models.QueueItem, error) {
	var rows []models.QueueItem
	err := r.items(ctx, queueName).
		Where("correlation_key = ? AND status IN ?", key, activeStatuses).
		Order(claimOrder).
		Find(&rows).Error
	if err != nil {
		return nil, queue.DatabaseError("list by correlation", err)
	}
	return rows, nil
}

func (r *QueueRepository) HistoryByCorrelation(ctx context.Context, queueName, key string, limit int) ([]models.QueueItem, error) {
	var rows []models.QueueItem
	err := r.items(ctx, queueName).
		Where("correlation_key = ? AND status IN ?", key, finishedStatuses).
		Order("updated_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, queue.DatabaseError("history by correlation", err)
	}
	return rows, nil
}

// DeleteTerminal removes completed and failed rows updated before cutoff.
// Expired rows are kept as history.
func (r *QueueRepository) DeleteTerminal(ctx context.Context, queueName string, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("queue_name = ? AND status IN ? AND updated_at < ?", queueName, removable, cutoff).
		Delete(&models.QueueItem{})
	if res.Error != nil {
		return 0, queue.DatabaseError("delete finished items", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *QueueRepository) ExpireStale(ctx context.Context, queueName string, cutoff, now time.Time) (int64, error) {
	res := r.items(ctx, queueName).
		Where("status IN ? AND created_at < ?", expirable, cutoff).
		Updates(map[string]any{
			"status":        models.StatusExpired.String(),
			"updated_at":    now,
			"scheduled_at":  nil,
			"error_message": nil,
		})
	if res.Error != nil {
		return 0, queue.DatabaseError("expire stale items", res.Error)
	}
	return res.RowsAffected, nil
}
