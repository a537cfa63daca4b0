package models

import (
	"encoding/json"
	"time"
)

type CacheEntry struct {
	Key        string          `json:"key"`
	Collection string          `json:"collection"`
	Value      json.RawMessage `json:"value"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
