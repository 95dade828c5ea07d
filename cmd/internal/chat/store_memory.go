package chat

import (
	"context"
	"strings"
	"sync"
	"time"
)

const memMaxMessagesPerEvent = 10_000

// InMemoryStore is the dev/test fallback when no database is configured.
// Messages are held per event in insertion order, which is also creation
// order because Append assigns the timestamp under the store lock.
type InMemoryStore struct {
	mu     sync.Mutex
	events map[string]*memEventLog
}

type memEventLog struct {
	msgs []Message
}

// NewInMemoryStore constructs an in-memory MessageStore implementation.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		events: make(map[string]*memEventLog),
	}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

// Append validates and persists a message, assigning id and timestamp.
func (s *InMemoryStore) Append(ctx context.Context, in AppendInput) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	content, err := validateContent(in)
	if err != nil {
		return Message{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := NewMessageID(now)
	if err != nil {
		return Message{}, err
	}

	msg := Message{
		ID:        id,
		EventID:   in.EventID,
		UserID:    in.UserID,
		UserName:  in.UserName,
		Content:   content,
		CreatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.events[in.EventID]
	if log == nil {
		log = &memEventLog{msgs: make([]Message, 0, 64)}
		s.events[in.EventID] = log
	}
	log.msgs = append(log.msgs, msg)

	// Bound memory to avoid unbounded growth in dev.
	if len(log.msgs) > memMaxMessagesPerEvent {
		log.msgs = log.msgs[len(log.msgs)-memMaxMessagesPerEvent:]
	}

	return msg, nil
}

// ListByEvent returns the event's messages in creation order.
func (s *InMemoryStore) ListByEvent(ctx context.Context, eventID string) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.events[eventID]
	if log == nil {
		return nil, nil
	}
	return append([]Message(nil), log.msgs...), nil
}

func validateContent(in AppendInput) (string, error) {
	if strings.TrimSpace(in.EventID) == "" || strings.TrimSpace(in.UserID) == "" {
		return "", ErrInvalidInput
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return "", ErrEmptyContent
	}
	if len([]rune(content)) > maxContentChars {
		return "", ErrContentTooLong
	}
	return content, nil
}
