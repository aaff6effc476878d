package queueapi

import (
	"encoding/json"
	"net/http"

	"github.com/joshu-sajeev/lorequeue/common"
	"github.com/joshu-sajeev/lorequeue/internal/config"
	"github.com/joshu-sajeev/lorequeue/internal/dto"
	"github.com/joshu-sajeev/lorequeue/middleware"
)

// payloadValidators checks the body of an enqueue request for each queue.
var payloadValidators = map[string]func(json.RawMessage) error{
	config.QueuePlayerActions:   validatePayload[dto.PlayerActionPayload],
	config.QueueLLMRequests:     validatePayload[dto.LLMRequestPayload],
	config.QueueDMActions:       validatePayload[dto.DMActionPayload],
	config.QueueAssetGeneration: validatePayload[dto.AssetGenerationPayload],
	config.QueueApprovals:       validatePayload[dto.ApprovalPayload],
}

func validatePayload[T any](raw json.RawMessage) error {
	var payload T

	if err := json.Unmarshal(raw, &payload); err != nil {
		return common.APIError{
			Status:  http.StatusBadRequest,
			Message: "invalid payload format",
		}
	}

	if err := middleware.Validator().Struct(payload); err != nil {
		return common.APIError{
			Status:  http.StatusBadRequest,
			Message: "payload validation failed",
			Fields:  middleware.FormatValidationErrors(err),
		}
	}

	return nil
}
