// Package transport carries the remote-control channel: JSON envelopes over a
// WebSocket, a binary side channel for bulk payloads, and an out-of-band
// upload fallback when the binary channel is unavailable.
package transport

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// SchemaVersion is the envelope schema carried in every message.
const SchemaVersion = 1

// Kind enumerates the message kinds on the channel.
type Kind string

const (
	KindReady           Kind = "ready"
	KindPing            Kind = "ping"
	KindPong            Kind = "pong"
	KindCommand         Kind = "command"
	KindCommandResponse Kind = "command_response"
	KindTaskRequest     Kind = "task_request"
	KindTaskStatus      Kind = "task_status"
	KindTaskResponse    Kind = "task_response"
	KindError           Kind = "error"
)

// Envelope status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the structured message exchanged with the remote caller. Bulk
// payloads travel outside it, on the binary frame channel.
type Envelope struct {
	Version       int                    `json:"version"`
	MessageID     string                 `json:"message_id"`
	Type          Kind                   `json:"type"`
	Timestamp     int64                  `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	OriginatorID  string                 `json:"originator_id,omitempty"`
	Status        string                 `json:"status,omitempty"`
	Data          map[string]interface{} `json:"data,omitempty"`
	Error         string                 `json:"error,omitempty"`
}

// NewEnvelope creates a stamped envelope of the given kind.
func NewEnvelope(kind Kind) *Envelope {
	return &Envelope{
		Version:   SchemaVersion,
		MessageID: uuid.NewString(),
		Type:      kind,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Ready builds the readiness announcement sent on connect.
func Ready(deviceID string) *Envelope {
	e := NewEnvelope(KindReady)
	e.OriginatorID = deviceID
	e.Status = StatusSuccess
	return e
}

// Pong answers a keep-alive ping.
func Pong() *Envelope {
	return NewEnvelope(KindPong)
}

// Success builds a command response with a structured payload.
func Success(correlationID string, data map[string]interface{}) *Envelope {
	e := NewEnvelope(KindCommandResponse)
	e.CorrelationID = correlationID
	e.Status = StatusSuccess
	e.Data = data
	return e
}

// Failure builds a command response carrying a typed error string.
func Failure(correlationID, kind, message string) *Envelope {
	e := NewEnvelope(KindCommandResponse)
	e.CorrelationID = correlationID
	e.Status = StatusError
	e.Error = kind + ": " + message
	return e
}

// TaskStatus builds a progress notice for a long-running task.
func TaskStatus(correlationID, notice string) *Envelope {
	e := NewEnvelope(KindTaskStatus)
	e.CorrelationID = correlationID
	e.Status = StatusSuccess
	e.Data = map[string]interface{}{"message": notice}
	return e
}

// Validate enforces the channel rules: commands and command responses carry a
// correlation id; task requests carry a non-empty goal.
func (e *Envelope) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("envelope: missing type")
	}
	switch e.Type {
	case KindCommand, KindCommandResponse:
		if e.CorrelationID == "" {
			return fmt.Errorf("envelope: %s requires a correlation_id", e.Type)
		}
	case KindTaskRequest:
		goal, _ := e.Data["goal"].(string)
		if goal == "" {
			return fmt.Errorf("envelope: task_request requires a non-empty goal")
		}
	}
	return nil
}

// Command returns the command name for a command envelope.
func (e *Envelope) Command() string {
	name, _ := e.Data["name"].(string)
	return name
}

// Params returns the command parameters, never nil.
func (e *Envelope) Params() map[string]interface{} {
	if p, ok := e.Data["params"].(map[string]interface{}); ok {
		return p
	}
	return map[string]interface{}{}
}

// Encode serializes the envelope.
func (e *Envelope) Encode() ([]byte, error) {
	return sonic.Marshal(e)
}

// DecodeEnvelope parses and validates one envelope.
func DecodeEnvelope(raw []byte) (*Envelope, error) {
	var e Envelope
	if err := sonic.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("envelope: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
