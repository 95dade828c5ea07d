package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a MessageStore backed by PostgreSQL.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
// - Close() is therefore a no-op.
//
// Ordering model:
// - A bigserial seq column records insertion order; history reads order by
//   seq, which matches creation-time order (timestamps are server-assigned
//   at insert) and stays stable for equal timestamps.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "gather").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("chat: empty schema")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed MessageStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "gather",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("chat: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

func (s *PostgresStore) messagesTable() string {
	return pgx.Identifier{s.schema, "messages"}.Sanitize()
}

// Append validates and persists a message, assigning id and timestamp.
func (s *PostgresStore) Append(ctx context.Context, in AppendInput) (Message, error) {
	if s == nil || s.pool == nil {
		return Message{}, errors.New("chat: nil store")
	}

	content, err := validateContent(in)
	if err != nil {
		return Message{}, err
	}
	if err := ctx.Err(); err != nil {
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

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.messagesTable()+` (id, event_id, user_id, user_name, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, in.EventID, in.UserID, in.UserName, content, now,
	); err != nil {
		return Message{}, err
	}

	return Message{
		ID:        id,
		EventID:   in.EventID,
		UserID:    in.UserID,
		UserName:  in.UserName,
		Content:   content,
		CreatedAt: now,
	}, nil
}

// ListByEvent returns the event's messages ordered by insertion.
func (s *PostgresStore) ListByEvent(ctx context.Context, eventID string) ([]Message, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("chat: nil store")
	}
	if strings.TrimSpace(eventID) == "" {
		return nil, ErrInvalidInput
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, event_id, user_id, user_name, content, created_at
		   FROM `+s.messagesTable()+`
		  WHERE event_id = $1
		  ORDER BY seq ASC`,
		eventID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.EventID, &m.UserID, &m.UserName, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
