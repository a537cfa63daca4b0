package models

import (
	"time"
)

// AgentStatus is the heartbeat an agent publishes so head office can see
// which stores are holding unsynced submissions.
type AgentStatus struct {
	StoreID  string    `json:"store_id"`
	AgentID  string    `json:"agent_id"`
	Online   bool      `json:"online"`
	Pending  int       `json:"pending"`
	LastSeen time.Time `json:"last_seen"`
}
