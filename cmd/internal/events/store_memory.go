package events

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gather/cmd/identity/ids"
)

// InMemoryStore keeps events, RSVPs and attendance in process memory.
// Suitable for dev and tests; state is lost on restart.
type InMemoryStore struct {
	mu         sync.RWMutex
	events     map[string]Event
	rsvps      map[string]map[string]RSVP             // event id -> user id
	attendance map[string]map[string]AttendanceRecord // event id -> user id
}

// NewInMemoryStore constructs an empty in-memory event store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		events:     make(map[string]Event),
		rsvps:      make(map[string]map[string]RSVP),
		attendance: make(map[string]map[string]AttendanceRecord),
	}
}

func (s *InMemoryStore) CreateEvent(_ context.Context, in CreateEventInput) (Event, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = e
	return e, nil
}

func (s *InMemoryStore) GetEvent(_ context.Context, id string) (Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok {
		return Event{}, fmt.Errorf("%w: event %q", ErrNotFound, id)
	}
	return e, nil
}

func (s *InMemoryStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.events[id]
	return ok, nil
}

func (s *InMemoryStore) ListEvents(_ context.Context) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e)
	}
	sortEvents(out)
	return out, nil
}

func (s *InMemoryStore) ListByCreator(_ context.Context, userID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range s.events {
		if e.CreatedBy == userID {
			out = append(out, e)
		}
	}
	sortEvents(out)
	return out, nil
}

func (s *InMemoryStore) UpdateEvent(_ context.Context, id string, in UpdateEventInput) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return Event{}, fmt.Errorf("%w: event %q", ErrNotFound, id)
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

	s.events[id] = e
	return e, nil
}

func (s *InMemoryStore) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return fmt.Errorf("%w: event %q", ErrNotFound, id)
	}
	delete(s.events, id)
	delete(s.rsvps, id)
	delete(s.attendance, id)
	return nil
}

func (s *InMemoryStore) SetRSVP(_ context.Context, r RSVP) error {
	if !ValidRSVPStatus(r.Status) {
		return fmt.Errorf("%w: rsvp status %q", ErrInvalidInput, r.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[r.EventID]; !ok {
		return fmt.Errorf("%w: event %q", ErrNotFound, r.EventID)
	}

	byUser, ok := s.rsvps[r.EventID]
	if !ok {
		byUser = make(map[string]RSVP)
		s.rsvps[r.EventID] = byUser
	}
	byUser[r.UserID] = r
	return nil
}

func (s *InMemoryStore) ListByRSVP(_ context.Context, userID string) ([]EventWithRSVP, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []EventWithRSVP
	for eventID, byUser := range s.rsvps {
		r, ok := byUser[userID]
		if !ok {
			continue
		}
		e, ok := s.events[eventID]
		if !ok {
			continue
		}
		out = append(out, EventWithRSVP{Event: e, RSVPStatus: r.Status})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *InMemoryStore) RecordJoin(_ context.Context, eventID, userID, userName string, at time.Time) (AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[eventID]; !ok {
		return AttendanceRecord{}, fmt.Errorf("%w: event %q", ErrNotFound, eventID)
	}

	byUser, ok := s.attendance[eventID]
	if !ok {
		byUser = make(map[string]AttendanceRecord)
		s.attendance[eventID] = byUser
	}

	rec := AttendanceRecord{
		EventID:  eventID,
		UserID:   userID,
		UserName: userName,
		JoinedAt: at.UTC(),
		Status:   AttendanceAttending,
	}
	byUser[userID] = rec
	return rec, nil
}

func (s *InMemoryStore) RecordLeave(_ context.Context, eventID, userID string, at time.Time) (AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byUser := s.attendance[eventID]
	rec, ok := byUser[userID]
	if !ok {
		return AttendanceRecord{}, fmt.Errorf("%w: no attendance for user %q", ErrInvalidInput, userID)
	}

	left := at.UTC()
	rec.LeftAt = &left
	rec.Status = AttendanceAttended
	byUser[userID] = rec
	return rec, nil
}

func (s *InMemoryStore) ListAttendance(_ context.Context, eventID string) ([]AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.events[eventID]; !ok {
		return nil, fmt.Errorf("%w: event %q", ErrNotFound, eventID)
	}

	byUser := s.attendance[eventID]
	out := make([]AttendanceRecord, 0, len(byUser))
	for _, rec := range byUser {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (s *InMemoryStore) AttendingCounts(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int, len(s.rsvps))
	for eventID, byUser := range s.rsvps {
		for _, r := range byUser {
			if r.Status == RSVPAttending {
				out[eventID]++
			}
		}
	}
	return out, nil
}

// Close satisfies Store. Nothing to release for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

func sortEvents(evs []Event) {
	sort.Slice(evs, func(i, j int) bool {
		if !evs[i].Date.Equal(evs[j].Date) {
			return evs[i].Date.Before(evs[j].Date)
		}
		return evs[i].ID < evs[j].ID
	})
}
