package mocks

import (
	"context"

	"github.com/joshu-sajeev/lorequeue/internal/dto"
	"github.com/stretchr/testify/mock"
)

// ServiceMock is a testify mock of the HTTP queue service.
type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Enqueue(ctx context.Context, queueName string, req *dto.EnqueueDTO) (*dto.EnqueueResponseDTO, error) {
	args := m.Called(ctx, queueName, req)

	resp, _ := args.Get(0).(*dto.EnqueueResponseDTO)
	return resp, args.Error(1)
}

func (m *ServiceMock) Claim(ctx context.Context, queueName string) (*dto.ItemResponseDTO, error) {
	args := m.Called(ctx, queueName)

	item, _ := args.Get(0).(*dto.ItemResponseDTO)
	return item, args.Error(1)
}

func (m *ServiceMock) Peek(ctx context.Context, queueName string) (*dto.ItemResponseDTO, error) {
	args := m.Called(ctx, queueName)

	item, _ := args.Get(0).(*dto.ItemResponseDTO)
	return item, args.Error(1)
}

func (m *ServiceMock) Get(ctx context.Context, queueName, id string) (*dto.ItemResponseDTO, error) {
	args := m.Called(ctx, queueName, id)

	item, _ := args.Get(0).(*dto.ItemResponseDTO)
	return item, args.Error(1)
}

func (m *ServiceMock) List(ctx context.Context, queueName, status string) ([]dto.ItemResponseDTO, error) {
	args := m.Called(ctx, queueName, status)

	items, _ := args.Get(0).([]dto.ItemResponseDTO)
	return items, args.Error(1)
}

func (m *ServiceMock) Complete(ctx context.Context, queueName, id string) error {
	args := m.Called(ctx, queueName, id)
	return args.Error(0)
}

func (m *ServiceMock) Fail(ctx context.Context, queueName, id string, req *dto.FailDTO) error {
	args := m.Called(ctx, queueName, id, req)
	return args.Error(0)
}

func (m *ServiceMock) Delay(ctx context.Context, queueName, id string, req *dto.DelayDTO) error {
	args := m.Called(ctx, queueName, id, req)
	return args.Error(0)
}

func (m *ServiceMock) Stats(ctx context.Context, queueName string) (*dto.StatsDTO, error) {
	args := m.Called(ctx, queueName)

	stats, _ := args.Get(0).(*dto.StatsDTO)
	return stats, args.Error(1)
}

func (m *ServiceMock) Gate(ctx context.Context, queueName string) (*dto.GateDTO, error) {
	args := m.Called(ctx, queueName)

	gate, _ := args.Get(0).(*dto.GateDTO)
	return gate, args.Error(1)
}

func (m *ServiceMock) WorldPending(ctx context.Context, queueName, worldID string) ([]dto.ItemResponseDTO, error) {
	args := m.Called(ctx, queueName, worldID)

	items, _ := args.Get(0).([]dto.ItemResponseDTO)
	return items, args.Error(1)
}

func (m *ServiceMock) WorldHistory(ctx context.Context, queueName, worldID string, limit int) ([]dto.ItemResponseDTO, error) {
	args := m.Called(ctx, queueName, worldID, limit)

	items, _ := args.Get(0).([]dto.ItemResponseDTO)
	return items, args.Error(1)
}

func (m *ServiceMock) Cleanup(ctx context.Context, queueName string, req *dto.OlderThanDTO) (*dto.CountDTO, error) {
	args := m.Called(ctx, queueName, req)

	count, _ := args.Get(0).(*dto.CountDTO)
	return count, args.Error(1)
}

func (m *ServiceMock) Expire(ctx context.Context, queueName string, req *dto.OlderThanDTO) (*dto.CountDTO, error) {
	args := m.Called(ctx, queueName, req)

	count, _ := args.Get(0).(*dto.CountDTO)
	return count, args.Error(1)
}
