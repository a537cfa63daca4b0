package models

import (
	"time"
)

type RecordState string

const (
	// RecordLocal is visible on this device but not yet confirmed remotely.
	RecordLocal RecordState = "local"
	// RecordConfirmed was accepted by the remote store.
	RecordConfirmed RecordState = "confirmed"
)

// Receipt is what a submission surface hands back to the UI. Server-assigned
// fields (row id, created_at) are unknown until the remote store confirms the
// write, so a local receipt only carries client-side identifiers.
type Receipt struct {
	Kind        string         `json:"kind"`
	Collection  string         `json:"collection"`
	State       RecordState    `json:"state"`
	QueueID     string         `json:"queue_id,omitempty"`
	SubmittedAt time.Time      `json:"submitted_at"`
	Derived     map[string]any `json:"derived,omitempty"`
}
