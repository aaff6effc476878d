package models

import (
	"time"

	"gorm.io/datatypes"
)

// QueueItem is the persisted row shared by every logical queue. The payload
// and metadata are stored as serialized JSON text and are never interpreted
// at this layer.
type QueueItem struct {
	ID             string         `gorm:"primaryKey;type:varchar(36)"`
	QueueName      string         `gorm:"type:varchar(255);not null"`
	CorrelationKey *string        `gorm:"type:varchar(255)"`
	Payload        datatypes.JSON `gorm:"type:text;not null"`
	Status         string         `gorm:"type:varchar(32);not null"`
	Priority       int            `gorm:"not null"`
	CreatedAt      time.Time      `gorm:"not null;autoCreateTime:false"`
	UpdatedAt      time.Time      `gorm:"not null;autoUpdateTime:false"`
	ScheduledAt    *time.Time
	Attempts       int            `gorm:"not null"`
	MaxAttempts    int            `gorm:"not null"`
	ErrorMessage   *string        `gorm:"type:text"`
	Metadata       datatypes.JSON `gorm:"type:text"`
}

// TableName pins the table name so every backend and migration agrees on it.
func (QueueItem) TableName() string {
	return "queue_items"
}
