package dto

import "encoding/json"

// Queue payloads. Every payload carries the world it belongs to so the
// approval inbox and history can be scoped per world.

type PlayerActionPayload struct {
	WorldID  string `json:"world_id" validate:"required"`
	PlayerID string `json:"player_id" validate:"required"`
	Action   string `json:"action" validate:"required,max=2000"`
}

type LLMRequestPayload struct {
	WorldID   string `json:"world_id" validate:"required"`
	Prompt    string `json:"prompt" validate:"required"`
	Model     string `json:"model,omitempty"`
	MaxTokens int    `json:"max_tokens" validate:"gte=0,lte=32000"`
}

type DMActionPayload struct {
	WorldID string `json:"world_id" validate:"required"`
	DMID    string `json:"dm_id" validate:"required"`
	Kind    string `json:"kind" validate:"required,oneof=narrate spawn_npc reveal roll"`
	Content string `json:"content" validate:"required"`
}

type AssetGenerationPayload struct {
	WorldID   string `json:"world_id" validate:"required"`
	AssetType string `json:"asset_type" validate:"required,oneof=image portrait map token"`
	Prompt    string `json:"prompt" validate:"required,max=4000"`
	Style     string `json:"style,omitempty"`
}

type ApprovalPayload struct {
	WorldID     string          `json:"world_id" validate:"required"`
	Kind        string          `json:"kind" validate:"required"`
	Summary     string          `json:"summary" validate:"required,max=500"`
	Proposed    json.RawMessage `json:"proposed" validate:"required"`
	RequestedBy string          `json:"requested_by,omitempty"`
}
