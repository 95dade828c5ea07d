// Package chat contains Gather's event-chat core: the broadcast registry,
// message persistence primitives, and the SSE/WebSocket stream gateways.
package chat

import (
	"context"
	"errors"
	"time"
)

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	// ErrEmptyContent reports message content that trims to empty.
	ErrEmptyContent = errors.New("empty_content")
	// ErrContentTooLong reports message content above the rune limit.
	ErrContentTooLong = errors.New("content_too_long")
	// ErrInvalidInput reports a structurally invalid append request.
	ErrInvalidInput = errors.New("invalid_input")
)

// IsValidation reports whether err is a message validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyContent) || errors.Is(err, ErrContentTooLong) || errors.Is(err, ErrInvalidInput)
}

// Message is the canonical persisted chat message. Immutable once created.
type Message struct {
	ID        string
	EventID   string
	UserID    string
	UserName  string
	Content   string
	CreatedAt time.Time
}

// AppendInput describes a message append request. Content is validated
// (trimmed non-empty, bounded length) by the store before any write.
type AppendInput struct {
	EventID  string
	UserID   string
	UserName string
	Content  string
	Now      time.Time
}

// MessageStore persists and queries the append-only chat log.
//
// Requirements:
//   - Append assigns the id and server timestamp; a rejected append leaves
//     the log unchanged.
//   - ListByEvent returns ascending creation-time order, stable for equal
//     timestamps by insertion order.
type MessageStore interface {
	Append(ctx context.Context, in AppendInput) (Message, error)
	ListByEvent(ctx context.Context, eventID string) ([]Message, error)
	Close() error
}
