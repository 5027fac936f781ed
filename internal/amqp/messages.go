package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"sahayak/internal/core"
)

// ChangeMessage announces that accounts or transactions changed upstream.
// It carries no data; receivers reload from the backend.
type ChangeMessage struct {
	Kind      core.ChangeKind `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewChangeMessage creates a change message stamped now
func NewChangeMessage(kind core.ChangeKind) *ChangeMessage {
	return &ChangeMessage{
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes a message and checks its kind.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Kind.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %q", err, msg.Kind)
	}
	return &msg, nil
}
