package sqlstore

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/lorequeue/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// SetupTestDB opens a migrated sqlite database in a temp dir. A file is used
// instead of :memory: so every pooled connection sees the same data.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := &Config{
		SQLitePath: filepath.Join(t.TempDir(), "queue.db"),
		MaxRetries: 1,
		RetryDelay: 10 * time.Millisecond,
		LogLevel:   logger.Silent,
	}
	db, err := ConnectDB(context.Background(), DialectSQLite, cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	_, err = Migrate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newRow(t *testing.T, queueName string, priority int, created time.Time) *models.QueueItem {
	t.Helper()
	id, err := uuid.NewV7()
	require.NoError(t, err)
	return &models.QueueItem{
		ID:          id.String(),
		QueueName:   queueName,
		Payload:     datatypes.JSON(`{"n":1}`),
		Status:      models.StatusPending.String(),
		Priority:    priority,
		CreatedAt:   created,
		UpdatedAt:   created,
		MaxAttempts: 3,
		Metadata:    datatypes.JSON(`{}`),
	}
}

func withKey(row *models.QueueItem, key string) *models.QueueItem {
	row.CorrelationKey = &key
	return row
}
