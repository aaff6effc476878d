package queue

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/lorequeue/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type samplePayload struct {
	WorldID string `json:"world_id"`
	Prompt  string `json:"prompt"`
}

func validRow() *models.QueueItem {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	key := "w1"
	msg := "boom"
	return &models.QueueItem{
		ID:             uuid.Must(uuid.NewV7()).String(),
		QueueName:      "llm_requests",
		CorrelationKey: &key,
		Payload:        datatypes.JSON(`{"world_id":"w1","prompt":"describe the tavern"}`),
		Status:         "failed",
		Priority:       10,
		CreatedAt:      now,
		UpdatedAt:      now.Add(time.Minute),
		Attempts:       2,
		MaxAttempts:    3,
		ErrorMessage:   &msg,
		Metadata:       datatypes.JSON(`{"trace":"abc"}`),
	}
}

func TestDecodeItem(t *testing.T) {
	row := validRow()

	item, err := decodeItem[samplePayload](row)
	require.NoError(t, err)

	assert.Equal(t, row.ID, item.ID.String())
	assert.Equal(t, "llm_requests", item.QueueName)
	assert.Equal(t, "w1", item.CorrelationKey)
	assert.Equal(t, samplePayload{WorldID: "w1", Prompt: "describe the tavern"}, item.Payload)
	assert.Equal(t, models.StatusFailed, item.Status)
	assert.Equal(t, uint8(10), item.Priority)
	assert.Equal(t, 2, item.Attempts)
	assert.Equal(t, "boom", item.ErrorMessage)
	assert.Equal(t, map[string]string{"trace": "abc"}, item.Metadata)
	assert.Nil(t, item.ScheduledAt)
}

func TestDecodeItem_EmptyMetadata(t *testing.T) {
	row := validRow()
	row.Metadata = nil

	item, err := decodeItem[samplePayload](row)
	require.NoError(t, err)
	assert.NotNil(t, item.Metadata)
	assert.Empty(t, item.Metadata)
}

func TestDecodeItem_Corrupt(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.QueueItem)
		want   string
	}{
		{"bad id", func(r *models.QueueItem) { r.ID = "not-a-uuid" }, "parse id"},
		{"unknown status", func(r *models.QueueItem) { r.Status = "archived" }, "unknown queue item status"},
		{"negative priority", func(r *models.QueueItem) { r.Priority = -1 }, "out of range"},
		{"priority too large", func(r *models.QueueItem) { r.Priority = 256 }, "out of range"},
		{"payload shape", func(r *models.QueueItem) { r.Payload = datatypes.JSON(`[1,2]`) }, "decode payload"},
		{"payload syntax", func(r *models.QueueItem) { r.Payload = datatypes.JSON(`{`) }, "decode payload"},
		{"metadata shape", func(r *models.QueueItem) { r.Metadata = datatypes.JSON(`{"n":1}`) }, "decode metadata"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := validRow()
			tt.mutate(row)

			item, err := decodeItem[samplePayload](row)
			assert.Nil(t, item)
			require.ErrorIs(t, err, ErrCorrupt)
			assert.NotErrorIs(t, err, ErrNotFound)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecodeItems_StopsAtFirstCorruptRow(t *testing.T) {
	good := validRow()
	bad := validRow()
	bad.Status = "bogus"

	_, err := decodeItems[samplePayload]([]models.QueueItem{*good, *bad})
	require.ErrorIs(t, err, ErrCorrupt)
	assert.Contains(t, err.Error(), bad.ID)
}
