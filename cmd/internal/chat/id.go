package chat

import (
	"time"

	"gather/cmd/identity/ids"
)

// NewMessageID returns a ULID used as a message id.
// ULID keeps ids time-ordered, so "ORDER BY created_at, id" stays stable
// for messages created within the same timestamp.
func NewMessageID(now time.Time) (string, error) {
	return ids.NewULID(now)
}
