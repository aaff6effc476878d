package mocks

import (
	"context"
	"time"

	"github.com/joshu-sajeev/lorequeue/internal/models"
	"github.com/stretchr/testify/mock"
)

// RepositoryMock is a testify mock of queue.Repository.
type RepositoryMock struct {
	mock.Mock
}

func (m *RepositoryMock) Insert(ctx context.Context, item *models.QueueItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *RepositoryMock) ClaimNext(ctx context.Context, queueName string, now time.Time) (*models.QueueItem, error) {
	args := m.Called(ctx, queueName, now)

	item, _ := args.Get(0).(*models.QueueItem)
	return item, args.Error(1)
}

func (m *RepositoryMock) PeekNext(ctx context.Context, queueName string, now time.Time) (*models.QueueItem, error) {
	args := m.Called(ctx, queueName, now)

	item, _ := args.Get(0).(*models.QueueItem)
	return item, args.Error(1)
}

func (m *RepositoryMock) Get(ctx context.Context, queueName, id string) (*models.QueueItem, error) {
	args := m.Called(ctx, queueName, id)

	item, _ := args.Get(0).(*models.QueueItem)
	return item, args.Error(1)
}

func (m *RepositoryMock) Complete(ctx context.Context, queueName, id string, now time.Time) error {
	args := m.Called(ctx, queueName, id, now)
	return args.Error(0)
}

func (m *RepositoryMock) Fail(ctx context.Context, queueName, id, message string, now time.Time) error {
	args := m.Called(ctx, queueName, id, message, now)
	return args.Error(0)
}

func (m *RepositoryMock) Delay(ctx context.Context, queueName, id string, until, now time.Time) error {
	args := m.Called(ctx, queueName, id, until, now)
	return args.Error(0)
}

func (m *RepositoryMock) ListByStatus(ctx context.Context, queueName string, status models.Status) ([]models.QueueItem, error) {
	args := m.Called(ctx, queueName, status)

	items, _ := args.Get(0).([]models.QueueItem)
	return items, args.Error(1)
}

func (m *RepositoryMock) CountByStatus(ctx context.Context, queueName string, status models.Status) (int64, error) {
	args := m.Called(ctx, queueName, status)
	return args.Get(0).(int64), args.Error(1)
}

func (m *RepositoryMock) CountGrouped(ctx context.Context, queueName string) (map[string]int64, error) {
	args := m.Called(ctx, queueName)

	counts, _ := args.Get(0).(map[string]int64)
	return counts, args.Error(1)
}

func (m *RepositoryMock) ListByCorrelation(ctx context.Context, queueName, key string) ([]models.QueueItem, error) {
	args := m.Called(ctx, queueName, key)

	items, _ := args.Get(0).([]models.QueueItem)
	return items, args.Error(1)
}

func (m *RepositoryMock) HistoryByCorrelation(ctx context.Context, queueName, key string, limit int) ([]models.QueueItem, error) {
	args := m.Called(ctx, queueName, key, limit)

	items, _ := args.Get(0).([]models.QueueItem)
	return items, args.Error(1)
}

func (m *RepositoryMock) DeleteTerminal(ctx context.Context, queueName string, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, queueName, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *RepositoryMock) ExpireStale(ctx context.Context, queueName string, cutoff, now time.Time) (int64, error) {
	args := m.Called(ctx, queueName, cutoff, now)
	return args.Get(0).(int64), args.Error(1)
}
