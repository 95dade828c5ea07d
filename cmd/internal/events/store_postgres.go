package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gather/cmd/identity/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by PostgreSQL.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
// - Close() is therefore a no-op.
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
			return errors.New("events: empty schema")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed event Store.
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
		return nil, errors.New("events: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

func (s *PostgresStore) eventsTable() string {
	return pgx.Identifier{s.schema, "events"}.Sanitize()
}

func (s *PostgresStore) rsvpsTable() string {
	return pgx.Identifier{s.schema, "event_rsvps"}.Sanitize()
}

func (s *PostgresStore) attendanceTable() string {
	return pgx.Identifier{s.schema, "event_attendance"}.Sanitize()
}

const eventColumns = `id, title, description, category, date, meeting_link, cover_image, capacity, created_by, created_at, updated_at`

func scanEvent(row pgx.Row) (Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Category, &e.Date,
		&e.MeetingLink, &e.CoverImage, &e.Capacity, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (s *PostgresStore) CreateEvent(ctx context.Context, in CreateEventInput) (Event, error) {
	if err := validateCreate(in); err != nil {
		return Event{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return Event{}, fmt.Errorf("events: new id: %w", err)
	}

	e := Event{
		ID:          id,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Date:        in.Date.UTC(),
		MeetingLink: strings.TrimSpace(in.MeetingLink),
		CoverImage:  strings.TrimSpace(in.CoverImage),
		Capacity:    in.Capacity,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.eventsTable()+` (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.Title, e.Description, e.Category, e.Date,
		e.MeetingLink, e.CoverImage, e.Capacity, e.CreatedBy, e.CreatedAt, e.UpdatedAt,
	); err != nil {
		return Event{}, err
	}
	return e, nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, id string) (Event, error) {
	e, err := scanEvent(s.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM `+s.eventsTable()+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, fmt.Errorf("%w: event %q", ErrNotFound, id)
		}
		return Event{}, err
	}
	return e, nil
}

func (s *PostgresStore) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+s.eventsTable()+` WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

func (s *PostgresStore) ListEvents(ctx context.Context) ([]Event, error) {
	return s.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM `+s.eventsTable()+` ORDER BY date ASC, id ASC`)
}

func (s *PostgresStore) ListByCreator(ctx context.Context, userID string) ([]Event, error) {
	return s.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM `+s.eventsTable()+`
		  WHERE created_by = $1 ORDER BY date ASC, id ASC`, userID)
}

func (s *PostgresStore) queryEvents(ctx context.Context, sql string, args ...any) ([]Event, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateEvent applies the partial update inside a transaction so
// concurrent updates do not interleave field-wise.
func (s *PostgresStore) UpdateEvent(ctx context.Context, id string, in UpdateEventInput) (Event, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Event{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	e, err := scanEvent(tx.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM `+s.eventsTable()+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, fmt.Errorf("%w: event %q", ErrNotFound, id)
		}
		return Event{}, err
	}

	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return Event{}, fmt.Errorf("%w: title must not be blank", ErrInvalidInput)
		}
		e.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		e.Description = strings.TrimSpace(*in.Description)
	}
	if in.Category != nil {
		e.Category = strings.TrimSpace(*in.Category)
	}
	if in.Date != nil {
		e.Date = in.Date.UTC()
	}
	if in.MeetingLink != nil {
		e.MeetingLink = strings.TrimSpace(*in.MeetingLink)
	}
	if in.CoverImage != nil {
		e.CoverImage = strings.TrimSpace(*in.CoverImage)
	}
	if in.Capacity != nil {
		if *in.Capacity < 0 {
			return Event{}, fmt.Errorf("%w: capacity must not be negative", ErrInvalidInput)
		}
		e.Capacity = *in.Capacity
	}

	e.UpdatedAt = in.Now
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now().UTC()
	}

	if _, err := tx.Exec(ctx,
		`UPDATE `+s.eventsTable()+`
		    SET title = $2, description = $3, category = $4, date = $5,
		        meeting_link = $6, cover_image = $7, capacity = $8, updated_at = $9
		  WHERE id = $1`,
		e.ID, e.Title, e.Description, e.Category, e.Date,
		e.MeetingLink, e.CoverImage, e.Capacity, e.UpdatedAt,
	); err != nil {
		return Event{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Event{}, err
	}
	return e, nil
}

func (s *PostgresStore) DeleteEvent(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+s.eventsTable()+` WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: event %q", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) SetRSVP(ctx context.Context, r RSVP) error {
	if !ValidRSVPStatus(r.Status) {
		return fmt.Errorf("%w: rsvp status %q", ErrInvalidInput, r.Status)
	}

	ok, err := s.Exists(ctx, r.EventID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: event %q", ErrNotFound, r.EventID)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+s.rsvpsTable()+` (event_id, user_id, user_name, status, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (event_id, user_id)
		 DO UPDATE SET user_name = EXCLUDED.user_name,
		               status = EXCLUDED.status,
		               updated_at = EXCLUDED.updated_at`,
		r.EventID, r.UserID, r.UserName, r.Status, r.UpdatedAt.UTC(),
	)
	return err
}

func (s *PostgresStore) ListByRSVP(ctx context.Context, userID string) ([]EventWithRSVP, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT e.id, e.title, e.description, e.category, e.date,
		        e.meeting_link, e.cover_image, e.capacity, e.created_by,
		        e.created_at, e.updated_at, r.status
		   FROM `+s.eventsTable()+` e
		   JOIN `+s.rsvpsTable()+` r ON r.event_id = e.id
		  WHERE r.user_id = $1
		  ORDER BY e.date ASC, e.id ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventWithRSVP
	for rows.Next() {
		var e EventWithRSVP
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Category, &e.Date,
			&e.MeetingLink, &e.CoverImage, &e.Capacity, &e.CreatedBy,
			&e.CreatedAt, &e.UpdatedAt, &e.RSVPStatus); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RecordJoin(ctx context.Context, eventID, userID, userName string, at time.Time) (AttendanceRecord, error) {
	ok, err := s.Exists(ctx, eventID)
	if err != nil {
		return AttendanceRecord{}, err
	}
	if !ok {
		return AttendanceRecord{}, fmt.Errorf("%w: event %q", ErrNotFound, eventID)
	}

	rec := AttendanceRecord{
		EventID:  eventID,
		UserID:   userID,
		UserName: userName,
		JoinedAt: at.UTC(),
		Status:   AttendanceAttending,
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+s.attendanceTable()+` (event_id, user_id, user_name, joined_at, left_at, status)
		 VALUES ($1, $2, $3, $4, NULL, $5)
		 ON CONFLICT (event_id, user_id)
		 DO UPDATE SET user_name = EXCLUDED.user_name,
		               joined_at = EXCLUDED.joined_at,
		               left_at = NULL,
		               status = EXCLUDED.status`,
		rec.EventID, rec.UserID, rec.UserName, rec.JoinedAt, rec.Status,
	)
	if err != nil {
		return AttendanceRecord{}, err
	}
	return rec, nil
}

func (s *PostgresStore) RecordLeave(ctx context.Context, eventID, userID string, at time.Time) (AttendanceRecord, error) {
	left := at.UTC()

	var rec AttendanceRecord
	err := s.pool.QueryRow(ctx,
		`UPDATE `+s.attendanceTable()+`
		    SET left_at = $3, status = $4
		  WHERE event_id = $1 AND user_id = $2
		  RETURNING event_id, user_id, user_name, joined_at, left_at, status`,
		eventID, userID, left, AttendanceAttended,
	).Scan(&rec.EventID, &rec.UserID, &rec.UserName, &rec.JoinedAt, &rec.LeftAt, &rec.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AttendanceRecord{}, fmt.Errorf("%w: no attendance for user %q", ErrInvalidInput, userID)
		}
		return AttendanceRecord{}, err
	}
	return rec, nil
}

func (s *PostgresStore) ListAttendance(ctx context.Context, eventID string) ([]AttendanceRecord, error) {
	ok, err := s.Exists(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: event %q", ErrNotFound, eventID)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT event_id, user_id, user_name, joined_at, left_at, status
		   FROM `+s.attendanceTable()+`
		  WHERE event_id = $1
		  ORDER BY joined_at ASC, user_id ASC`,
		eventID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]AttendanceRecord, 0)
	for rows.Next() {
		var rec AttendanceRecord
		if err := rows.Scan(&rec.EventID, &rec.UserID, &rec.UserName, &rec.JoinedAt, &rec.LeftAt, &rec.Status); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AttendingCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT event_id, COUNT(*) FROM `+s.rsvpsTable()+`
		  WHERE status = $1 GROUP BY event_id`,
		RSVPAttending,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var eventID string
		var n int
		if err := rows.Scan(&eventID, &n); err != nil {
			return nil, err
		}
		out[eventID] = n
	}
	return out, rows.Err()
}
