package models

import (
	"time"
)

// QueuedWrite is a submission accepted locally but not yet confirmed by the
// remote store. Rows are never updated; they are inserted once and deleted
// on confirmation.
type QueuedWrite struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	Payload    map[string]any `json:"payload"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}
