package events

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CreateEventInput carries the fields for a new event. Now is the
// creation timestamp supplied by the caller.
type CreateEventInput struct {
	Title       string
	Description string
	Category    string
	Date        time.Time
	MeetingLink string
	CoverImage  string
	Capacity    int
	CreatedBy   string
	Now         time.Time
}

// UpdateEventInput holds the updatable fields. Nil pointers leave the
// stored value untouched. Ownership and timestamps are not updatable.
type UpdateEventInput struct {
	Title       *string
	Description *string
	Category    *string
	Date        *time.Time
	MeetingLink *string
	CoverImage  *string
	Capacity    *int
	Now         time.Time
}

// Store is the event directory persistence boundary.
type Store interface {
	CreateEvent(ctx context.Context, in CreateEventInput) (Event, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	Exists(ctx context.Context, id string) (bool, error)
	ListEvents(ctx context.Context) ([]Event, error)
	ListByCreator(ctx context.Context, userID string) ([]Event, error)
	UpdateEvent(ctx context.Context, id string, in UpdateEventInput) (Event, error)
	DeleteEvent(ctx context.Context, id string) error

	SetRSVP(ctx context.Context, r RSVP) error
	ListByRSVP(ctx context.Context, userID string) ([]EventWithRSVP, error)

	RecordJoin(ctx context.Context, eventID, userID, userName string, at time.Time) (AttendanceRecord, error)
	RecordLeave(ctx context.Context, eventID, userID string, at time.Time) (AttendanceRecord, error)
	ListAttendance(ctx context.Context, eventID string) ([]AttendanceRecord, error)

	// AttendingCounts returns the number of attending RSVPs per event id.
	AttendingCounts(ctx context.Context) (map[string]int, error)

	Close() error
}

func validateCreate(in CreateEventInput) error {
	if strings.TrimSpace(in.Title) == "" ||
		strings.TrimSpace(in.Description) == "" ||
		strings.TrimSpace(in.Category) == "" ||
		strings.TrimSpace(in.MeetingLink) == "" {
		return fmt.Errorf("%w: title, description, category and meeting link are required", ErrInvalidInput)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.CreatedBy) == "" {
		return fmt.Errorf("%w: missing creator", ErrInvalidInput)
	}
	if in.Capacity < 0 {
		return fmt.Errorf("%w: capacity must not be negative", ErrInvalidInput)
	}
	return nil
}
