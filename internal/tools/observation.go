package tools

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// Status is the outcome of a provisioning call.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Observation is the structured result of a tool invocation.
type Observation struct {
	RequestID    string                 `json:"request_id"`
	ResourceType string                 `json:"resource_type"`
	Status       Status                 `json:"status"`
	ResourceID   string                 `json:"resource_id,omitempty"`
	Message      string                 `json:"message"`
	Details      map[string]interface{} `json:"details,omitempty"`
	ErrorCode    string                 `json:"error_code,omitempty"`
}

// NewRequestID returns a fresh correlation token for one tool call.
func NewRequestID() string {
	return uuid.NewString()
}

// Failed builds a failed observation.
func Failed(resourceType, code, message string) *Observation {
	return &Observation{
		RequestID:    NewRequestID(),
		ResourceType: resourceType,
		Status:       StatusFailed,
		Message:      message,
		ErrorCode:    code,
	}
}

// Encode serializes the observation for the conversation. Non-ASCII text is
// kept as-is so the model sees the original wording.
func (o *Observation) Encode() string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(o); err != nil {
		return `{"status":"failed","message":"unencodable observation"}`
	}
	return strings.TrimRight(buf.String(), "\n")
}
