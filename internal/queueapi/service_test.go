package queueapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/lorequeue/common"
	"github.com/joshu-sajeev/lorequeue/internal/config"
	"github.com/joshu-sajeev/lorequeue/internal/dto"
	"github.com/joshu-sajeev/lorequeue/internal/mocks"
	"github.com/joshu-sajeev/lorequeue/internal/models"
	"github.com/joshu-sajeev/lorequeue/internal/queue"
	"github.com/joshu-sajeev/lorequeue/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var _ ServiceInterface = (*mocks.ServiceMock)(nil)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// tickingClock advances one millisecond per reading so every write gets a
// distinct timestamp.
func tickingClock() func() time.Time {
	var ticks atomic.Int64
	return func() time.Time {
		return fixedNow.Add(time.Duration(ticks.Add(1)) * time.Millisecond)
	}
}

func newTestService(repo queue.Repository) *QueueService {
	reg := NewRegistry(repo, func(name string) int {
		if name == config.QueueLLMRequests {
			return 2
		}
		return 1
	}, nil, nil, queue.WithClock(tickingClock()))
	svc := NewQueueService(reg)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func requireAPIError(t *testing.T, err error, status int) common.APIError {
	t.Helper()
	var apiErr common.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, status, apiErr.Status)
	return apiErr
}

func playerAction(world string) *dto.EnqueueDTO {
	return &dto.EnqueueDTO{
		Payload: json.RawMessage(`{"world_id":"` + world + `","player_id":"p1","action":"open the door"}`),
	}
}

func TestQueueService_Enqueue(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name       string
		ctx        context.Context
		queue      string
		req        *dto.EnqueueDTO
		wantStatus int
		wantFields bool
	}{
		{
			name:  "valid player action",
			ctx:   context.Background(),
			queue: config.QueuePlayerActions,
			req:   playerAction("w1"),
		},
		{
			name:       "unknown queue",
			ctx:        context.Background(),
			queue:      "tavern_gossip",
			req:        playerAction("w1"),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "payload missing world",
			ctx:        context.Background(),
			queue:      config.QueuePlayerActions,
			req:        &dto.EnqueueDTO{Payload: json.RawMessage(`{"player_id":"p1","action":"wave"}`)},
			wantStatus: http.StatusBadRequest,
			wantFields: true,
		},
		{
			name:       "payload of the wrong shape",
			ctx:        context.Background(),
			queue:      config.QueueAssetGeneration,
			req:        &dto.EnqueueDTO{Payload: json.RawMessage(`["not","an","object"]`)},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "payload not json",
			ctx:        context.Background(),
			queue:      config.QueueApprovals,
			req:        &dto.EnqueueDTO{Payload: json.RawMessage(`{oops`)},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "canceled context",
			ctx:        canceled,
			queue:      config.QueuePlayerActions,
			req:        playerAction("w1"),
			wantStatus: http.StatusRequestTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(memory.NewRepository())

			resp, err := svc.Enqueue(tt.ctx, tt.queue, tt.req)

			if tt.wantStatus != 0 {
				apiErr := requireAPIError(t, err, tt.wantStatus)
				assert.Nil(t, resp)
				if tt.wantFields {
					assert.Contains(t, apiErr.Fields, "world_id")
				}
				return
			}

			require.NoError(t, err)
			_, err = uuid.Parse(resp.ID)
			assert.NoError(t, err)
		})
	}
}

func TestQueueService_Enqueue_StoreFailure(t *testing.T) {
	repo := new(mocks.RepositoryMock)
	repo.On("Insert", mock.Anything, mock.Anything).
		Return(queue.DatabaseError("insert", errors.New("disk full")))

	svc := newTestService(repo)
	_, err := svc.Enqueue(context.Background(), config.QueuePlayerActions, playerAction("w1"))

	apiErr := requireAPIError(t, err, http.StatusInternalServerError)
	assert.Equal(t, "failed to enqueue item", apiErr.Message)
	repo.AssertExpectations(t)
}

func TestQueueService_Enqueue_UsesOptions(t *testing.T) {
	svc := newTestService(memory.NewRepository())
	ctx := context.Background()

	req := playerAction("w1")
	req.Priority = queue.PriorityHigh
	req.CorrelationKey = "w9"
	req.MaxAttempts = 5
	req.Metadata = map[string]string{"source": "discord"}

	resp, err := svc.Enqueue(ctx, config.QueuePlayerActions, req)
	require.NoError(t, err)

	item, err := svc.Get(ctx, config.QueuePlayerActions, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "w9", item.CorrelationKey)
	assert.Equal(t, uint8(queue.PriorityHigh), item.Priority)
	assert.Equal(t, 5, item.MaxAttempts)
	assert.Equal(t, "discord", item.Metadata["source"])
	assert.Equal(t, models.StatusPending.String(), item.Status)
}

func TestQueueService_ClaimLifecycle(t *testing.T) {
	svc := newTestService(memory.NewRepository())
	ctx := context.Background()
	q := config.QueuePlayerActions

	low, err := svc.Enqueue(ctx, q, playerAction("w1"))
	require.NoError(t, err)
	highReq := playerAction("w1")
	highReq.Priority = queue.PriorityHigh
	high, err := svc.Enqueue(ctx, q, highReq)
	require.NoError(t, err)

	peeked, err := svc.Peek(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, high.ID, peeked.ID)
	assert.Equal(t, models.StatusPending.String(), peeked.Status)

	claimed, err := svc.Claim(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, high.ID, claimed.ID)
	assert.Equal(t, models.StatusProcessing.String(), claimed.Status)
	assert.Equal(t, 1, claimed.Attempts)

	require.NoError(t, svc.Complete(ctx, q, claimed.ID))
	err = svc.Complete(ctx, q, claimed.ID)
	requireAPIError(t, err, http.StatusNotFound)

	next, err := svc.Claim(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, low.ID, next.ID)

	require.NoError(t, svc.Fail(ctx, q, next.ID, &dto.FailDTO{Message: "dice rolled off the table"}))

	got, err := svc.Get(ctx, q, next.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed.String(), got.Status)
	assert.Equal(t, "dice rolled off the table", got.Error)

	empty, err := svc.Claim(ctx, q)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestQueueService_ItemIDs(t *testing.T) {
	svc := newTestService(memory.NewRepository())
	ctx := context.Background()
	q := config.QueueDMActions

	tests := []struct {
		name       string
		call       func() error
		wantStatus int
	}{
		{
			name: "get with malformed id",
			call: func() error {
				_, err := svc.Get(ctx, q, "not-a-uuid")
				return err
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "get unknown id",
			call: func() error {
				_, err := svc.Get(ctx, q, uuid.NewString())
				return err
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "complete unknown id",
			call:       func() error { return svc.Complete(ctx, q, uuid.NewString()) },
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "fail malformed id",
			call:       func() error { return svc.Fail(ctx, q, "42", &dto.FailDTO{Message: "x"}) },
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "delay unknown queue",
			call: func() error {
				return svc.Delay(ctx, "nope", uuid.NewString(), &dto.DelayDTO{DelaySeconds: 5})
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireAPIError(t, tt.call(), tt.wantStatus)
		})
	}
}

func TestQueueService_Delay(t *testing.T) {
	ctx := context.Background()
	q := config.QueueLLMRequests
	until := fixedNow.Add(time.Hour)

	tests := []struct {
		name       string
		req        *dto.DelayDTO
		wantAt     time.Time
		wantStatus int
	}{
		{
			name:   "relative delay",
			req:    &dto.DelayDTO{DelaySeconds: 90},
			wantAt: fixedNow.Add(90 * time.Second),
		},
		{
			name:   "absolute until wins",
			req:    &dto.DelayDTO{Until: &until, DelaySeconds: 90},
			wantAt: until,
		},
		{
			name:       "neither set",
			req:        &dto.DelayDTO{},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(memory.NewRepository())
			resp, err := svc.Enqueue(ctx, q, &dto.EnqueueDTO{
				Payload: json.RawMessage(`{"world_id":"w1","prompt":"describe the bridge"}`),
			})
			require.NoError(t, err)

			err = svc.Delay(ctx, q, resp.ID, tt.req)
			if tt.wantStatus != 0 {
				requireAPIError(t, err, tt.wantStatus)
				return
			}
			require.NoError(t, err)

			item, err := svc.Get(ctx, q, resp.ID)
			require.NoError(t, err)
			assert.Equal(t, models.StatusDelayed.String(), item.Status)
			require.NotNil(t, item.ScheduledAt)
			assert.True(t, tt.wantAt.Equal(*item.ScheduledAt))
		})
	}
}

func TestQueueService_List(t *testing.T) {
	svc := newTestService(memory.NewRepository())
	ctx := context.Background()
	q := config.QueuePlayerActions

	_, err := svc.Enqueue(ctx, q, playerAction("w1"))
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, q, playerAction("w2"))
	require.NoError(t, err)

	items, err := svc.List(ctx, q, "pending")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = svc.List(ctx, q, "completed")
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = svc.List(ctx, q, "stuck")
	apiErr := requireAPIError(t, err, http.StatusBadRequest)
	assert.Equal(t, models.Strings(models.AllStatuses...), apiErr.Fields["allowed"])
}

func TestQueueService_StatsAndGate(t *testing.T) {
	svc := newTestService(memory.NewRepository())
	ctx := context.Background()
	q := config.QueueLLMRequests

	for range 3 {
		_, err := svc.Enqueue(ctx, q, &dto.EnqueueDTO{
			Payload: json.RawMessage(`{"world_id":"w1","prompt":"name the innkeeper"}`),
		})
		require.NoError(t, err)
	}

	_, err := svc.Claim(ctx, q)
	require.NoError(t, err)

	gate, err := svc.Gate(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, &dto.GateDTO{Queue: q, BatchSize: 2, Processing: 1, HasCapacity: true}, gate)

	_, err = svc.Claim(ctx, q)
	require.NoError(t, err)

	gate, err = svc.Gate(ctx, q)
	require.NoError(t, err)
	assert.False(t, gate.HasCapacity)

	stats, err := svc.Stats(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Depth)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Counts["processing"])
	assert.Equal(t, 0, stats.Counts["failed"])
}

func TestQueueService_World(t *testing.T) {
	svc := newTestService(memory.NewRepository())
	ctx := context.Background()
	q := config.QueueApprovals

	enqueue := func(world string) string {
		resp, err := svc.Enqueue(ctx, q, &dto.EnqueueDTO{
			Payload: json.RawMessage(`{"world_id":"` + world + `","kind":"npc","summary":"add a blacksmith","proposed":{"name":"Brann"}}`),
		})
		require.NoError(t, err)
		return resp.ID
	}

	a := enqueue("w1")
	b := enqueue("w1")
	enqueue("w2")

	pending, err := svc.WorldPending(ctx, q, "w1")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, a, pending[0].ID)
	assert.Equal(t, b, pending[1].ID)

	require.NoError(t, svc.Complete(ctx, q, a))

	history, err := svc.WorldHistory(ctx, q, "w1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, a, history[0].ID)

	history, err = svc.WorldHistory(ctx, q, "w1", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestQueueService_Retention(t *testing.T) {
	ctx := context.Background()
	q := config.QueueDMActions

	tests := []struct {
		name       string
		olderThan  string
		run        func(*QueueService, *dto.OlderThanDTO) (*dto.CountDTO, error)
		wantCount  int
		wantStatus int
	}{
		{
			name:      "expire everything pending",
			olderThan: "0s",
			run: func(s *QueueService, req *dto.OlderThanDTO) (*dto.CountDTO, error) {
				return s.Expire(ctx, q, req)
			},
			wantCount: 1,
		},
		{
			name:      "cleanup keeps pending items",
			olderThan: "0s",
			run: func(s *QueueService, req *dto.OlderThanDTO) (*dto.CountDTO, error) {
				return s.Cleanup(ctx, q, req)
			},
			wantCount: 0,
		},
		{
			name:      "invalid duration",
			olderThan: "a fortnight",
			run: func(s *QueueService, req *dto.OlderThanDTO) (*dto.CountDTO, error) {
				return s.Cleanup(ctx, q, req)
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:      "negative duration",
			olderThan: "-1h",
			run: func(s *QueueService, req *dto.OlderThanDTO) (*dto.CountDTO, error) {
				return s.Expire(ctx, q, req)
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(memory.NewRepository())
			_, err := svc.Enqueue(ctx, q, &dto.EnqueueDTO{
				Payload: json.RawMessage(`{"world_id":"w1","dm_id":"dm","kind":"narrate","content":"night falls"}`),
			})
			require.NoError(t, err)

			resp, err := tt.run(svc, &dto.OlderThanDTO{OlderThan: tt.olderThan})
			if tt.wantStatus != 0 {
				requireAPIError(t, err, tt.wantStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, resp.Count)
		})
	}
}

func TestQueueService_ErrorMapping(t *testing.T) {
	corrupt := &models.QueueItem{
		ID:        uuid.NewString(),
		QueueName: config.QueueDMActions,
		Payload:   datatypes.JSON(`{}`),
		Status:    "haunted",
	}

	tests := []struct {
		name        string
		setupMock   func(*mocks.RepositoryMock)
		wantStatus  int
		wantMessage string
	}{
		{
			name: "database failure",
			setupMock: func(m *mocks.RepositoryMock) {
				m.On("ClaimNext", mock.Anything, config.QueueDMActions, mock.Anything).
					Return(nil, queue.DatabaseError("claim", errors.New("connection reset")))
			},
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "failed to claim item",
		},
		{
			name: "corrupt row",
			setupMock: func(m *mocks.RepositoryMock) {
				m.On("ClaimNext", mock.Anything, config.QueueDMActions, mock.Anything).
					Return(corrupt, nil)
			},
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "stored item is corrupt: claim item",
		},
		{
			name: "deadline from the store",
			setupMock: func(m *mocks.RepositoryMock) {
				m.On("ClaimNext", mock.Anything, config.QueueDMActions, mock.Anything).
					Return(nil, context.DeadlineExceeded)
			},
			wantStatus:  http.StatusRequestTimeout,
			wantMessage: "request timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mocks.RepositoryMock)
			tt.setupMock(repo)

			svc := newTestService(repo)
			item, err := svc.Claim(context.Background(), config.QueueDMActions)

			assert.Nil(t, item)
			apiErr := requireAPIError(t, err, tt.wantStatus)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			repo.AssertExpectations(t)
		})
	}
}
