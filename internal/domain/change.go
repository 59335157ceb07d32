package domain

import (
	"encoding/json"
	"time"
)

// Record kinds carried on change events.
const (
	KindLocation = "location"
	KindWeather  = "weather"
	KindStorm    = "storm"
)

// Change operations.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// ChangeEvent describes one write to the relay. Payload is the stored
// document for upserts and empty for deletes.
type ChangeEvent struct {
	Kind       string          `json:"kind"`
	Op         string          `json:"op"`
	ID         string          `json:"id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
