package model

import "encoding/json"

// Envelope is the uniform response wrapper of the daemon's REST API.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// HasData reports whether the envelope carries a non-null data field.
func (e Envelope) HasData() bool {
	if len(e.Data) == 0 {
		return false
	}
	return string(e.Data) != "null"
}
