package dto

import (
	"encoding/json"
	"time"
)

type EnqueueDTO struct {
	Payload        json.RawMessage   `json:"payload" validate:"required"`
	Priority       uint8             `json:"priority"`
	CorrelationKey string            `json:"correlation_key,omitempty" validate:"max=255"`
	MaxAttempts    int               `json:"max_attempts" validate:"gte=0,lte=50"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type EnqueueResponseDTO struct {
	ID string `json:"id"`
}

type ItemResponseDTO struct {
	ID             string            `json:"id"`
	Queue          string            `json:"queue"`
	CorrelationKey string            `json:"correlation_key,omitempty"`
	Payload        json.RawMessage   `json:"payload"`
	Status         string            `json:"status"`
	Priority       uint8             `json:"priority"`
	Attempts       int               `json:"attempts"`
	MaxAttempts    int               `json:"max_attempts"`
	Error          string            `json:"error,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	ScheduledAt    *time.Time        `json:"scheduled_at,omitempty"`
}

type FailDTO struct {
	Message string `json:"message" validate:"required,max=4000"`
}

// DelayDTO sets either an absolute instant or a relative delay.
type DelayDTO struct {
	Until        *time.Time `json:"until,omitempty"`
	DelaySeconds int        `json:"delay_seconds,omitempty" validate:"gte=0"`
}

type OlderThanDTO struct {
	OlderThan string `json:"older_than" validate:"required"`
}

type CountDTO struct {
	Count int `json:"count"`
}

type StatsDTO struct {
	Queue  string         `json:"queue"`
	Depth  int            `json:"depth"`
	Total  int            `json:"total"`
	Counts map[string]int `json:"counts"`
}

type GateDTO struct {
	Queue       string `json:"queue"`
	BatchSize   int    `json:"batch_size"`
	Processing  int    `json:"processing"`
	HasCapacity bool   `json:"has_capacity"`
}
