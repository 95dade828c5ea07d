package events

import (
	"context"
	"testing"
	"time"
)

func validCreateInput(now time.Time) CreateEventInput {
	return CreateEventInput{
		Title:       "Go Meetup",
		Description: "Monthly Go talks",
		Category:    "tech",
		Date:        now.Add(48 * time.Hour),
		MeetingLink: "https://meet.example.com/go",
		CreatedBy:   "u-owner",
		Now:         now,
	}
}

func mustCreateEvent(t *testing.T, s Store, in CreateEventInput) Event {
	t.Helper()

	e, err := s.CreateEvent(context.Background(), in)
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return e
}

func TestInMemoryStoreCreateValidation(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		mutate func(*CreateEventInput)
	}{
		{name: "missing title", mutate: func(in *CreateEventInput) { in.Title = "  " }},
		{name: "missing description", mutate: func(in *CreateEventInput) { in.Description = "" }},
		{name: "missing category", mutate: func(in *CreateEventInput) { in.Category = "" }},
		{name: "missing date", mutate: func(in *CreateEventInput) { in.Date = time.Time{} }},
		{name: "missing meeting link", mutate: func(in *CreateEventInput) { in.MeetingLink = "" }},
		{name: "missing creator", mutate: func(in *CreateEventInput) { in.CreatedBy = "" }},
		{name: "negative capacity", mutate: func(in *CreateEventInput) { in.Capacity = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			in := validCreateInput(now)
			tc.mutate(&in)
			if _, err := s.CreateEvent(context.Background(), in); !IsInvalidInput(err) {
				t.Fatalf("got %v, want invalid input", err)
			}
		})
	}
}

func TestInMemoryStoreCRUD(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	e := mustCreateEvent(t, s, validCreateInput(now))
	if e.ID == "" || !e.CreatedAt.Equal(now) || !e.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected created event: %+v", e)
	}

	ok, err := s.Exists(ctx, e.ID)
	if err != nil || !ok {
		t.Fatalf("exists: ok=%v err=%v", ok, err)
	}
	if ok, _ := s.Exists(ctx, "missing"); ok {
		t.Fatalf("missing event must not exist")
	}

	title := "Go Meetup (rescheduled)"
	later := now.Add(time.Hour)
	updated, err := s.UpdateEvent(ctx, e.ID, UpdateEventInput{Title: &title, Now: later})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != title || !updated.UpdatedAt.Equal(later) {
		t.Fatalf("update not applied: %+v", updated)
	}
	if updated.Description != e.Description {
		t.Fatalf("untouched field changed: %q", updated.Description)
	}

	blank := "  "
	if _, err := s.UpdateEvent(ctx, e.ID, UpdateEventInput{Title: &blank}); !IsInvalidInput(err) {
		t.Fatalf("blank title: got %v, want invalid input", err)
	}
	if _, err := s.UpdateEvent(ctx, "missing", UpdateEventInput{Title: &title}); !IsNotFound(err) {
		t.Fatalf("update missing: got %v, want not found", err)
	}

	if err := s.DeleteEvent(ctx, e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteEvent(ctx, e.ID); !IsNotFound(err) {
		t.Fatalf("double delete: got %v, want not found", err)
	}
	if _, err := s.GetEvent(ctx, e.ID); !IsNotFound(err) {
		t.Fatalf("get after delete: got %v, want not found", err)
	}
}

func TestInMemoryStoreListOrdersByDate(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for _, offset := range []time.Duration{72 * time.Hour, 24 * time.Hour, 48 * time.Hour} {
		in := validCreateInput(now)
		in.Date = now.Add(offset)
		mustCreateEvent(t, s, in)
	}

	evs, err := s.ListEvents(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(evs) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evs))
	}
	for i := 1; i < len(evs); i++ {
		if evs[i].Date.Before(evs[i-1].Date) {
			t.Fatalf("events not ordered by date at %d", i)
		}
	}
}

func TestInMemoryStoreListByCreator(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	mine := validCreateInput(now)
	mustCreateEvent(t, s, mine)

	other := validCreateInput(now)
	other.CreatedBy = "u-other"
	mustCreateEvent(t, s, other)

	evs, err := s.ListByCreator(context.Background(), "u-owner")
	if err != nil {
		t.Fatalf("list by creator: %v", err)
	}
	if len(evs) != 1 || evs[0].CreatedBy != "u-owner" {
		t.Fatalf("unexpected creator listing: %+v", evs)
	}
}

func TestInMemoryStoreRSVPUpsert(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	e := mustCreateEvent(t, s, validCreateInput(now))

	set := func(status string) error {
		return s.SetRSVP(ctx, RSVP{
			EventID:   e.ID,
			UserID:    "u-1",
			UserName:  "Alice",
			Status:    status,
			UpdatedAt: now,
		})
	}

	if err := set(RSVPMaybe); err != nil {
		t.Fatalf("set rsvp: %v", err)
	}
	// A second reply replaces the first.
	if err := set(RSVPAttending); err != nil {
		t.Fatalf("update rsvp: %v", err)
	}

	evs, err := s.ListByRSVP(ctx, "u-1")
	if err != nil {
		t.Fatalf("list by rsvp: %v", err)
	}
	if len(evs) != 1 || evs[0].RSVPStatus != RSVPAttending {
		t.Fatalf("unexpected rsvp listing: %+v", evs)
	}

	if err := set("whenever"); !IsInvalidInput(err) {
		t.Fatalf("bad status: got %v, want invalid input", err)
	}
	if err := s.SetRSVP(ctx, RSVP{EventID: "missing", UserID: "u-1", Status: RSVPMaybe}); !IsNotFound(err) {
		t.Fatalf("missing event: got %v, want not found", err)
	}

	counts, err := s.AttendingCounts(ctx)
	if err != nil {
		t.Fatalf("attending counts: %v", err)
	}
	if counts[e.ID] != 1 {
		t.Fatalf("attending count: got %d want 1", counts[e.ID])
	}
}

func TestInMemoryStoreAttendanceLifecycle(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	e := mustCreateEvent(t, s, validCreateInput(now))

	// Leaving before joining is refused.
	if _, err := s.RecordLeave(ctx, e.ID, "u-1", now); !IsInvalidInput(err) {
		t.Fatalf("leave before join: got %v, want invalid input", err)
	}

	joined, err := s.RecordJoin(ctx, e.ID, "u-1", "Alice", now)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if joined.Status != AttendanceAttending || joined.LeftAt != nil {
		t.Fatalf("unexpected join record: %+v", joined)
	}
	if joined.Duration() != 0 {
		t.Fatalf("duration while present must be 0, got %d", joined.Duration())
	}

	left, err := s.RecordLeave(ctx, e.ID, "u-1", now.Add(45*time.Minute))
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if left.Status != AttendanceAttended || left.LeftAt == nil {
		t.Fatalf("unexpected leave record: %+v", left)
	}
	if left.Duration() != 45 {
		t.Fatalf("duration: got %d want 45", left.Duration())
	}

	recs, err := s.ListAttendance(ctx, e.ID)
	if err != nil {
		t.Fatalf("list attendance: %v", err)
	}
	if len(recs) != 1 || recs[0].UserID != "u-1" {
		t.Fatalf("unexpected attendance listing: %+v", recs)
	}

	if _, err := s.RecordJoin(ctx, "missing", "u-1", "Alice", now); !IsNotFound(err) {
		t.Fatalf("join missing event: got %v, want not found", err)
	}
}
