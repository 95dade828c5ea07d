package events

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when an event id is unknown.
	ErrNotFound = errors.New("events: not found")

	// ErrInvalidInput covers malformed or out-of-range fields.
	ErrInvalidInput = errors.New("events: invalid input")
)

// IsNotFound reports whether err is an unknown-event error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidInput reports whether err is a validation failure.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// RSVP statuses.
const (
	RSVPAttending = "attending"
	RSVPMaybe     = "maybe"
	RSVPDeclined  = "declined"
)

// ValidRSVPStatus reports whether s is a known RSVP status.
func ValidRSVPStatus(s string) bool {
	switch s {
	case RSVPAttending, RSVPMaybe, RSVPDeclined:
		return true
	}
	return false
}

// Attendance statuses. A record starts as "attending" when the user
// joins the meeting and becomes "attended" once they leave.
const (
	AttendanceAttending = "attending"
	AttendanceAttended  = "attended"
	AttendanceMissed    = "missed"
)

// Event is a scheduled virtual gathering.
type Event struct {
	ID          string
	Title       string
	Description string
	Category    string
	Date        time.Time
	MeetingLink string
	CoverImage  string
	Capacity    int
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RSVP is one user's standing reply to an event, upserted per user.
type RSVP struct {
	EventID   string
	UserID    string
	UserName  string
	Status    string
	UpdatedAt time.Time
}

// EventWithRSVP pairs an event with the caller's own RSVP status.
type EventWithRSVP struct {
	Event
	RSVPStatus string
}

// AttendanceRecord tracks one user's presence in an event's meeting.
type AttendanceRecord struct {
	EventID  string
	UserID   string
	UserName string
	JoinedAt time.Time
	LeftAt   *time.Time
	Status   string
}

// Duration returns the minutes between join and leave, zero while the
// user is still present.
func (r AttendanceRecord) Duration() int {
	if r.LeftAt == nil {
		return 0
	}
	return int(r.LeftAt.Sub(r.JoinedAt) / time.Minute)
}
