package queueapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/lorequeue/common"
	"github.com/joshu-sajeev/lorequeue/internal/config"
	"github.com/joshu-sajeev/lorequeue/internal/dto"
	"github.com/joshu-sajeev/lorequeue/internal/models"
	"github.com/joshu-sajeev/lorequeue/internal/queue"
)

// Registry holds one raw-JSON queue per catalogue name.
type Registry map[string]*queue.Queue[json.RawMessage]

// NewRegistry builds a queue for every allowed queue name over repo.
// batchSize and notifierFor may be nil. extra is applied to every queue.
func NewRegistry(
	repo queue.Repository,
	batchSize func(string) int,
	notifierFor func(string) queue.Notifier,
	logger *slog.Logger,
	extra ...queue.Option,
) Registry {
	reg := make(Registry, len(config.AllowedQueues))
	for _, name := range config.AllowedQueues {
		opts := []queue.Option{queue.WithLogger(logger)}
		if batchSize != nil {
			opts = append(opts, queue.WithBatchSize(batchSize(name)))
		}
		if notifierFor != nil {
			opts = append(opts, queue.WithNotifier(notifierFor(name)))
		}
		opts = append(opts, extra...)
		reg[name] = queue.New[json.RawMessage](repo, name, opts...)
	}
	return reg
}

// Sweepables returns the registry's queues for a queue.Sweeper.
func (r Registry) Sweepables() []queue.Sweepable {
	out := make([]queue.Sweepable, 0, len(r))
	for _, name := range config.AllowedQueues {
		if q, ok := r[name]; ok {
			out = append(out, q)
		}
	}
	return out
}

type QueueService struct {
	queues Registry
	now    func() time.Time
}

func NewQueueService(queues Registry) *QueueService {
	return &QueueService{queues: queues, now: time.Now}
}

var _ ServiceInterface = (*QueueService)(nil)

func (s *QueueService) lookup(ctx context.Context, name string) (*queue.Queue[json.RawMessage], error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request canceled or timed out")
	}

	q, ok := s.queues[name]
	if !ok {
		return nil, common.NewAPIError(
			http.StatusNotFound,
			"unknown queue",
			map[string]any{
				"provided": name,
				"allowed":  config.AllowedQueues,
			},
		)
	}
	return q, nil
}

// mapError converts engine errors into API errors. action names the
// operation in the 500 message.
func mapError(err error, action string) error {
	switch {
	case errors.Is(err, context.Canceled):
		return common.Errf(http.StatusRequestTimeout, "request was canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return common.Errf(http.StatusRequestTimeout, "request timeout")
	case errors.Is(err, queue.ErrNotFound):
		return common.Errf(http.StatusNotFound, "item not found")
	case errors.Is(err, queue.ErrCorrupt):
		return common.Errf(http.StatusInternalServerError, "stored item is corrupt: %s", action)
	default:
		return common.Errf(http.StatusInternalServerError, "failed to %s", action)
	}
}

func parseID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, common.Errf(http.StatusBadRequest, "invalid item id")
	}
	return parsed, nil
}

func parseOlderThan(req *dto.OlderThanDTO) (time.Duration, error) {
	d, err := time.ParseDuration(req.OlderThan)
	if err != nil || d < 0 {
		return 0, common.NewAPIError(
			http.StatusBadRequest,
			"invalid duration",
			map[string]any{"older_than": req.OlderThan},
		)
	}
	return d, nil
}

// Enqueue validates the payload against the queue's payload type and inserts
// it.
func (s *QueueService) Enqueue(ctx context.Context, queueName string, req *dto.EnqueueDTO) (*dto.EnqueueResponseDTO, error) {
	q, err := s.lookup(ctx, queueName)
	if err != nil {
		return nil, err
	}

	if !json.Valid(req.Payload) {
		return nil, common.Errf(http.StatusBadRequest, "payload must be valid JSON")
	}
	if validate, ok := payloadValidators[queueName]; ok {
		if err := validate(req.Payload); err != nil {
			return nil, err
		}
	}

	id, err := q.EnqueueWith(ctx, req.Payload, queue.EnqueueOptions{
		Priority:       req.Priority,
		CorrelationKey: req.CorrelationKey,
		MaxAttempts:    req.MaxAttempts,
		Metadata:       req.Metadata,
	})
	if err != nil {
		return nil, mapError(err, "enqueue item")
	}

	return &dto.EnqueueResponseDTO{ID: id.String()}, nil
}

// Claim takes the next eligible item. A nil item with a nil error means the
// queue has nothing eligible.
func (s *QueueService) Claim(ctx context.Context, queueName string) (*dto.ItemResponseDTO, error) {
	q, err := s.lookup(ctx, queueName)
	if err != nil {
		return nil, err
	}

	item, err := q.Dequeue(ctx)
	if err != nil {
		return nil, mapError(err, "claim item")
	}
	return toResponse(item), nil
}

func (s *QueueService) Peek(ctx context.Context, queueName string) (*dto.ItemResponseDTO, error) {
	q, err := s.lookup(ctx, queueName)
	if err != nil {
		return nil, err
	}

	item, err := q.Peek(ctx)
	if err != nil {
		return nil, mapError(err, "peek queue")
	}
	return toResponse(item), nil
}

func (s *QueueService) Get(ctx context.Context, queueName, id string) (*dto.ItemResponseDTO, error) {
	q, err := s.lookup(ctx, queueName)
	if err != nil {
		return nil, err
	}
	itemID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	item, err := q.Get(ctx, itemID)
	if err != nil {
		return nil, mapError(err, "get item")
	}
	if item == nil {
		return nil, common.Errf(http.StatusNotFound, "item not found")
	}
	return toResponse(item), nil
}

func (s *QueueService) List(ctx context.Context, queueName, status string) ([]dto.ItemResponseDTO, error) {
	q, err := s.lookup(ctx, queueName)
	if err != nil {
		return nil, err
	}

	st, err := models.ParseStatus(status)
	if err != nil {
		return nil, common.NewAPIError(
			http.StatusBadRequest,
			"invalid status",
			map[string]any{
				"provided": status,
				"allowed":  models.Strings(models.AllStatuses...),
			},
		)
	}

	items, err := q.ListByStatus(ctx, st)
	if err != nil {
		return nil, mapError(err, "list items")
	}
	return toResponses(items), nil
}

func (s *QueueService) Complete(ctx context.Context, queueName, id string) error {
	q, err := s.lookup(ctx, queueName)
	if err != nil {
		return err
	}
	itemID, err := parseID(id)
	if err != nil {
		return err
	}

	if err := q.Complete(ctx, itemID); err != nil {
		return mapError(err, "complete item")
	}
	return nil
}

func (s *QueueService) Fail(ctx context.Context, queueName, id string, req *dto.FailDTO) error {
	q, err := s.lookup(ctx, queueName)
	if err != nil {
		return err
	}
	itemID, err := parseID(id)
	if err != nil {
		return err
	}

	if err := q.Fail(ctx, itemID, req.Message); err != nil {
		return mapError(err, "fail item")
	}
	return nil
}

// Delay reschedules an item. An explicit until wins over delay_seconds.
func (s *QueueService) Delay(ctx context.Context, queueName, id string, req *dto.DelayDTO) error {
	q, err := s.lookup(ctx, queueName)
	if err != nil {
		return err
	}
	itemID, err := parseID(id)
	if err != nil {
		return err
	}

	var until time.Time
	switch {
	case req.Until != nil:
		until = *req.Until
	case req.DelaySeconds > 0:
		until = s.now().Add(time.Duration(req.DelaySeconds) * time.Second)
	default:
		return common.Errf(http.StatusBadRequest, "either until or delay_seconds is required")
	}

	if err := q.Delay(ctx, itemID, until); err != nil {
		return mapError(err, "delay item")
	}
	return nil
}

func (s *QueueService) Stats(ctx context.Context, queueName string) (*dto.StatsDTO, error) {
	q, err := s.lookup(ctx, queueName)
	if err != nil {
		return nil, err
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		return nil, mapError(err, "read queue stats")
	}

	counts := make(map[string]int, len(stats.Counts))
	for st, n := range stats.Counts {
		counts[st.String()] = n
	}
	return &dto.StatsDTO{
		Queue:  stats.Queue,
		Depth:  stats.Depth(),
		Total:  stats.Total,
		Counts: counts,
	}, nil
}

func (s *QueueService) Gate(ctx context.Context, queueName string) (*dto.GateDTO, error) {
	q, err := s.lookup(ctx, queueName)
	if err != nil {
		return nil, err
	}

	processing, err := q.ProcessingCount(ctx)
	if err != nil {
		return nil, mapError(err, "count processing items")
	}
	return &dto.GateDTO{
		Queue:       queueName,
		BatchSize:   q.BatchSize(),
		Processing:  processing,
		HasCapacity: processing < q.BatchSize(),
	}, nil
}

func (s *QueueService) WorldPending(ctx context.Context, queueName, worldID string) ([]dto.ItemResponseDTO, error) {
	q, err := s.lookup(ctx, queueName)
	if err != nil {
		return nil, err
	}

	items, err := q.ListByCorrelation(ctx, worldID)
	if err != nil {
		return nil, mapError(err, "list world items")
	}
	return toResponses(items), nil
}

func (s *QueueService) WorldHistory(ctx context.Context, queueName, worldID string, limit int) ([]dto.ItemResponseDTO, error) {
	q, err := s.lookup(ctx, queueName)
	if err != nil {
		return nil, err
	}

	items, err := q.HistoryByCorrelation(ctx, worldID, limit)
	if err != nil {
		return nil, mapError(err, "read world history")
	}
	return toResponses(items), nil
}

func (s *QueueService) Cleanup(ctx context.Context, queueName string, req *dto.OlderThanDTO) (*dto.CountDTO, error) {
	q, err := s.lookup(ctx, queueName)
	if err != nil {
		return nil, err
	}
	olderThan, err := parseOlderThan(req)
	if err != nil {
		return nil, err
	}

	n, err := q.Cleanup(ctx, olderThan)
	if err != nil {
		return nil, mapError(err, "clean up queue")
	}
	return &dto.CountDTO{Count: n}, nil
}

func (s *QueueService) Expire(ctx context.Context, queueName string, req *dto.OlderThanDTO) (*dto.CountDTO, error) {
	q, err := s.lookup(ctx, queueName)
	if err != nil {
		return nil, err
	}
	olderThan, err := parseOlderThan(req)
	if err != nil {
		return nil, err
	}

	n, err := q.ExpireOld(ctx, olderThan)
	if err != nil {
		return nil, mapError(err, "expire items")
	}
	return &dto.CountDTO{Count: n}, nil
}

func toResponse(item *queue.Item[json.RawMessage]) *dto.ItemResponseDTO {
	if item == nil {
		return nil
	}
	return &dto.ItemResponseDTO{
		ID:             item.ID.String(),
		Queue:          item.QueueName,
		CorrelationKey: item.CorrelationKey,
		Payload:        item.Payload,
		Status:         item.Status.String(),
		Priority:       item.Priority,
		Attempts:       item.Attempts,
		MaxAttempts:    item.MaxAttempts,
		Error:          item.ErrorMessage,
		Metadata:       item.Metadata,
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
		ScheduledAt:    item.ScheduledAt,
	}
}

func toResponses(items []queue.Item[json.RawMessage]) []dto.ItemResponseDTO {
	out := make([]dto.ItemResponseDTO, len(items))
	for i := range items {
		out[i] = *toResponse(&items[i])
	}
	return out
}
