package amqp

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mutation actions
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// MutationMessage announces that an entity changed somewhere in the system.
// Consumers only need the entity name to decide which cached data is stale.
type MutationMessage struct {
	Entity    string    `json:"entity"`
	Action    string    `json:"action"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMutationMessage creates a message with a fresh id.
func NewMutationMessage(entity, action string) *MutationMessage {
	return &MutationMessage{
		Entity:    strings.TrimSpace(entity),
		Action:    action,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
	}
}

// Validate rejects messages that carry no entity.
func (m *MutationMessage) Validate() error {
	if m.Entity == "" {
		return errors.New("mutation message has no entity")
	}
	switch m.Action {
	case "", ActionCreated, ActionUpdated, ActionDeleted:
		return nil
	default:
		return errors.New("unknown mutation action " + m.Action)
	}
}

// ToJSON converts the message to JSON bytes
func (m *MutationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MutationMessageFromJSON decodes and validates a message.
func MutationMessageFromJSON(data []byte) (*MutationMessage, error) {
	var msg MutationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
