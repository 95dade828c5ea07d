package chat

import (
	"context"
	"errors"
)

// ErrEventNotFound is returned when a chat operation targets an event
// that does not exist.
var ErrEventNotFound = errors.New("chat: event not found")

// EventDirectory answers whether an event exists. The events package
// provides the real implementation.
type EventDirectory interface {
	Exists(ctx context.Context, eventID string) (bool, error)
}
