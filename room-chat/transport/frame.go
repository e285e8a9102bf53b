package transport

import "encoding/json"

// Envelope is the JSON text frame carrying one named event in either direction.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
