package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joshu-sajeev/lorequeue/internal/dto"
	"github.com/joshu-sajeev/lorequeue/internal/queue"
)

// ErrGeneratorBusy is returned by the simulated generators when a request
// should be retried later.
var ErrGeneratorBusy = errors.New("generator busy")

// Simulator stands in for the LLM and image backends. Latency is the time
// each request takes.
type Simulator struct {
	Latency    time.Duration
	RetryDelay time.Duration
	Logger     *slog.Logger
}

func (s Simulator) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

func (s Simulator) wait(ctx context.Context) error {
	select {
	case <-time.After(s.Latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LLMRequest simulates a text completion for a world.
func (s Simulator) LLMRequest(ctx context.Context, item *queue.Item[dto.LLMRequestPayload]) error {
	req := item.Payload
	if strings.TrimSpace(req.Prompt) == "" {
		return fmt.Errorf("llm request %s: empty prompt", item.ID)
	}

	if err := s.wait(ctx); err != nil {
		return err
	}

	model := req.Model
	if model == "" {
		model = "default"
	}
	s.logger().Info("llm completion generated",
		"id", item.ID,
		"world_id", req.WorldID,
		"model", model,
		"prompt_chars", len(req.Prompt),
	)
	return nil
}

// AssetGeneration simulates rendering an image asset. Maps are expensive and
// are pushed back once before being rendered.
func (s Simulator) AssetGeneration(ctx context.Context, item *queue.Item[dto.AssetGenerationPayload]) error {
	asset := item.Payload

	if asset.AssetType == "map" && item.Attempts == 1 {
		return RetryAfter(s.RetryDelay, fmt.Errorf("asset %s: %w", item.ID, ErrGeneratorBusy))
	}

	if err := s.wait(ctx); err != nil {
		return fmt.Errorf("asset generation cancelled or timed out: %w", err)
	}

	s.logger().Info("asset generated",
		"id", item.ID,
		"world_id", asset.WorldID,
		"asset_type", asset.AssetType,
		"style", asset.Style,
	)
	return nil
}
