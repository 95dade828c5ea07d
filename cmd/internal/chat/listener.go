package chat

import (
	"sync"

	v1 "gather/shared/contracts/chat/v1"
)

// Listener is one connected client's live interest in one event's chat stream.
//
// Design notes:
// - Send is intentionally NOT closed by the registry to avoid panics from
//   concurrent publishers.
// - done signals the owning connection's goroutines to stop.
// - Close is idempotent.
type Listener struct {
	EventID  string
	UserID   string
	UserName string
	Send     chan v1.Payload

	done      chan struct{}
	closeOnce sync.Once
}

// NewListener constructs a Listener with a bounded send queue.
func NewListener(eventID, userID, userName string, sendQueueSize int) *Listener {
	if sendQueueSize <= 0 {
		sendQueueSize = defaultSendQueueSize
	}
	return &Listener{
		EventID:  eventID,
		UserID:   userID,
		UserName: userName,
		Send:     make(chan v1.Payload, sendQueueSize),
		done:     make(chan struct{}),
	}
}

// Done returns a channel that is closed when the listener is shutting down.
func (l *Listener) Done() <-chan struct{} {
	if l == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return l.done
}

// Close signals the owning connection to stop (idempotent).
// It does NOT close Send, keeping publish safe under concurrency.
func (l *Listener) Close() {
	if l == nil {
		return
	}
	l.closeOnce.Do(func() {
		close(l.done)
	})
}
