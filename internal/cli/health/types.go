// Package health defines the JSON response shapes returned by the kiln
// health endpoints, consumed by the status command.
package health

import (
	"encoding/json"
	"time"
)

// Envelope is the common wrapper around every health response.
type Envelope struct {
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Healthy reports whether the envelope carries a healthy status.
func (e *Envelope) Healthy() bool {
	return e.Status == "healthy"
}

// Decode unmarshals the envelope payload into v.
func (e *Envelope) Decode(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Liveness is the payload of GET /health.
type Liveness struct {
	Service string `json:"service"`
	Version string `json:"version"`
}

// Readiness is the payload of GET /health/ready.
type Readiness struct {
	Generation uint64 `json:"generation"`
	Templates  int    `json:"templates"`
	Uptime     string `json:"uptime"`
}

// Templates is the payload of GET /health/templates.
type Templates struct {
	Generation uint64    `json:"generation"`
	LoadedAt   time.Time `json:"loaded_at"`
	Roots      []string  `json:"roots"`
	Templates  []string  `json:"templates"`
}
