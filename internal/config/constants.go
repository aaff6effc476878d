package config

// Queue names. Each is a logical queue sharing the one queue_items table.
const (
	QueuePlayerActions   = "player_actions"
	QueueLLMRequests     = "llm_requests"
	QueueDMActions       = "dm_actions"
	QueueAssetGeneration = "asset_generation"
	QueueApprovals       = "approvals"
)

var AllowedQueues = []string{
	QueuePlayerActions,
	QueueLLMRequests,
	QueueDMActions,
	QueueAssetGeneration,
	QueueApprovals,
}

const (
	// FileEnv names the optional TOML config file.
	FileEnv = "LOREQUEUE_CONFIG"

	DefaultHTTPAddr = ":8080"
)

func IsAllowedQueue(name string) bool {
	for _, q := range AllowedQueues {
		if q == name {
			return true
		}
	}
	return false
}
