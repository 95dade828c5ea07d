// Package v1 defines the Gather event-chat stream contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between the SSE and WebSocket transports so the wire
// payloads stay authoritative in one place.
package v1

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Payload type constants (wire-stable).
const (
	// TypeConnection is pushed once when a stream is established (server -> the new client).
	TypeConnection = "connection"
	// TypeUserJoined announces a new listener on the event's chat (server -> other clients).
	TypeUserJoined = "user-joined"
	// TypeUserLeft announces a departed listener (server -> remaining clients).
	TypeUserLeft = "user-left"
	// TypeMessage carries a persisted chat message (server -> all clients, sender included).
	TypeMessage = "message"
)

// Payload is one discrete unit pushed to a streaming client.
// Exactly one payload is emitted per occurrence; there is no batching.
type Payload struct {
	Type string `json:"type"`

	// Greeting text, only set for TypeConnection.
	Message string `json:"message,omitempty"`

	// Message fields, only set for TypeMessage.
	ID        string     `json:"id,omitempty"`
	EventID   string     `json:"eventId,omitempty"`
	Content   string     `json:"content,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`

	// Actor fields, set for TypeUserJoined, TypeUserLeft and TypeMessage.
	UserID   string `json:"userId,omitempty"`
	UserName string `json:"userName,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Validate performs structural validation for a Payload.
func (p Payload) Validate() error {
	if strings.TrimSpace(p.Type) == "" {
		return errors.New("missing field: type")
	}
	switch p.Type {
	case TypeConnection, TypeUserJoined, TypeUserLeft, TypeMessage:
	default:
		return fmt.Errorf("unknown type: %q", p.Type)
	}
	if p.Timestamp.IsZero() {
		return errors.New("missing field: timestamp")
	}
	if p.Type == TypeMessage && strings.TrimSpace(p.ID) == "" {
		return errors.New("missing field: id")
	}
	return nil
}

// SendRequest is the client input for posting a chat message.
type SendRequest struct {
	Content string `json:"content"`
}
