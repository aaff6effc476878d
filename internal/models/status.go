package models

import "fmt"

// Status is the closed set of states a queue item can be in.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusDelayed    Status = "delayed"
	StatusExpired    Status = "expired"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusDelayed,
	StatusCompleted,
	StatusFailed,
	StatusExpired,
}

// ParseStatus maps a stored status string back to the enum. Unknown values
// are errors; they never default to pending.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusProcessing, StatusCompleted,
		StatusFailed, StatusDelayed, StatusExpired:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown queue item status %q", s)
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusExpired
}

func (s Status) String() string {
	return string(s)
}

// Strings converts a status list to plain strings for SQL IN clauses.
func Strings(statuses ...Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
