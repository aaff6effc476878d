package queue

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/lorequeue/internal/models"
)

const (
	// PriorityLow is the default enqueue priority.
	PriorityLow uint8 = 0
	// PriorityHigh is used for work a player is actively waiting on.
	PriorityHigh uint8 = 10

	DefaultMaxAttempts = 3
)

// Item is a decoded queue row carrying a typed payload.
type Item[T any] struct {
	ID             uuid.UUID
	QueueName      string
	CorrelationKey string
	Payload        T
	Status         models.Status
	Priority       uint8
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ScheduledAt    *time.Time
	Attempts       int
	MaxAttempts    int
	ErrorMessage   string
	Metadata       map[string]string
}

// EnqueueOptions carries the optional enqueue parameters. A blank
// CorrelationKey falls back to ExtractCorrelationKey on the payload.
type EnqueueOptions struct {
	Priority       uint8
	CorrelationKey string
	MaxAttempts    int
	Metadata       map[string]string
}

func decodeItem[T any](row *models.QueueItem) (*Item[T], error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, corruptError(row.ID, fmt.Errorf("parse id: %w", err))
	}

	status, err := models.ParseStatus(row.Status)
	if err != nil {
		return nil, corruptError(row.ID, err)
	}

	if row.Priority < 0 || row.Priority > math.MaxUint8 {
		return nil, corruptError(row.ID, fmt.Errorf("priority %d out of range", row.Priority))
	}

	var payload T
	if err := json.Unmarshal(row.Payload, &payload); err != nil {
		return nil, corruptError(row.ID, fmt.Errorf("decode payload: %w", err))
	}

	metadata := map[string]string{}
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			return nil, corruptError(row.ID, fmt.Errorf("decode metadata: %w", err))
		}
		if metadata == nil {
			metadata = map[string]string{}
		}
	}

	item := &Item[T]{
		ID:          id,
		QueueName:   row.QueueName,
		Payload:     payload,
		Status:      status,
		Priority:    uint8(row.Priority),
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
		Attempts:    row.Attempts,
		MaxAttempts: row.MaxAttempts,
		Metadata:    metadata,
	}
	if row.CorrelationKey != nil {
		item.CorrelationKey = *row.CorrelationKey
	}
	if row.ScheduledAt != nil {
		scheduled := row.ScheduledAt.UTC()
		item.ScheduledAt = &scheduled
	}
	if row.ErrorMessage != nil {
		item.ErrorMessage = *row.ErrorMessage
	}
	return item, nil
}

func decodeItems[T any](rows []models.QueueItem) ([]Item[T], error) {
	items := make([]Item[T], 0, len(rows))
	for i := range rows {
		item, err := decodeItem[T](&rows[i])
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, nil
}
