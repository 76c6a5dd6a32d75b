package model

import "time"

// SyncSummary describes a single reconciliation pass.
type SyncSummary struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Exhausted int           `json:"exhausted"`
	Pruned    int           `json:"pruned"`
}

// QueueStatus is the read model shown to the user next to the emergency form.
type QueueStatus struct {
	Online   bool         `json:"online"`
	Pending  int          `json:"pending"`
	Failed   int          `json:"failed"`
	LastSync *time.Time   `json:"last_sync,omitempty"`
	Storage  StorageUsage `json:"storage"`
}

type StorageUsage struct {
	Used      int64 `json:"used"`
	Available int64 `json:"available"`
	Capacity  int64 `json:"capacity"`
}
