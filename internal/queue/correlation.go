package queue

import (
	"encoding/json"
	"strings"
)

// CorrelationField is the conventional payload field that carries the world
// id used by the approval projection.
const CorrelationField = "world_id"

// ExtractCorrelationKey inspects a serialized payload for a string
// CorrelationField. Anything that is not a JSON object with a string value at
// that field yields "".
func ExtractCorrelationKey(payload []byte) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return ""
	}
	raw, ok := fields[CorrelationField]
	if !ok {
		return ""
	}
	var key string
	if err := json.Unmarshal(raw, &key); err != nil {
		return ""
	}
	return strings.TrimSpace(key)
}
