package events

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gather/cmd/identity"
	"gather/cmd/internal/auth"
)

type eventsFixture struct {
	srv    *httptest.Server
	store  Store
	tokens *auth.TokenManager
	users  identity.Store

	owner identity.User
	guest identity.User
	admin identity.User
}

func newEventsFixture(t *testing.T) *eventsFixture {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := identity.NewInMemoryStore()
	tokens, err := auth.NewTokenManager([]byte(strings.Repeat("s", 32)), time.Hour)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	resolver := auth.NewResolver(log, tokens, users)

	store := NewInMemoryStore()
	h := NewHandler(log, store, resolver)

	mux := http.NewServeMux()
	h.Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f := &eventsFixture{srv: srv, store: store, tokens: tokens, users: users}
	f.owner = f.mustCreateUser(t, "Owner", "owner@example.com", identity.RoleUser)
	f.guest = f.mustCreateUser(t, "Guest", "guest@example.com", identity.RoleUser)
	f.admin = f.mustCreateUser(t, "Admin", "admin@example.com", identity.RoleAdmin)
	return f
}

func (f *eventsFixture) mustCreateUser(t *testing.T, name, email, role string) identity.User {
	t.Helper()

	u, err := f.users.CreateUser(context.Background(), identity.CreateUserInput{
		Name:     name,
		Email:    email,
		Password: "long enough pw",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func (f *eventsFixture) do(t *testing.T, method, path string, body any, as *identity.User) *http.Response {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != nil {
		token, _, err := f.tokens.Issue(*as, time.Now())
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	}
	resp, err := f.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (f *eventsFixture) mustSeedEvent(t *testing.T) Event {
	t.Helper()

	e, err := f.store.CreateEvent(context.Background(), CreateEventInput{
		Title:       "Go Meetup",
		Description: "Monthly Go talks",
		Category:    "tech",
		Date:        time.Now().Add(48 * time.Hour),
		MeetingLink: "https://meet.example.com/go",
		CreatedBy:   f.owner.ID,
	})
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return e
}

func decodeJSONBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()

	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestCreateEvent(t *testing.T) {
	t.Parallel()

	f := newEventsFixture(t)

	body := map[string]any{
		"title":       "Go Meetup",
		"description": "Monthly Go talks",
		"category":    "tech",
		"date":        time.Now().Add(48 * time.Hour).Format(time.RFC3339),
		"meetingLink": "https://meet.example.com/go",
	}

	anon := f.do(t, http.MethodPost, "/api/events", body, nil)
	anon.Body.Close()
	if anon.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous create: %d want 401", anon.StatusCode)
	}

	resp := f.do(t, http.MethodPost, "/api/events", body, &f.owner)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status: %d", resp.StatusCode)
	}
	var created eventResponse
	decodeJSONBody(t, resp, &created)
	if created.ID == "" || created.CreatedBy != f.owner.ID {
		t.Fatalf("unexpected created event: %+v", created)
	}

	// meetingLink must be a URL.
	bad := map[string]any{}
	for k, v := range body {
		bad[k] = v
	}
	bad["meetingLink"] = "not a url"
	badResp := f.do(t, http.MethodPost, "/api/events", bad, &f.owner)
	badResp.Body.Close()
	if badResp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad meeting link: %d want 400", badResp.StatusCode)
	}
}

func TestGetAndListEventsArePublic(t *testing.T) {
	t.Parallel()

	f := newEventsFixture(t)
	e := f.mustSeedEvent(t)

	get := f.do(t, http.MethodGet, "/api/events/"+e.ID, nil, nil)
	if get.StatusCode != http.StatusOK {
		t.Fatalf("get status: %d", get.StatusCode)
	}
	var got eventResponse
	decodeJSONBody(t, get, &got)
	if got.ID != e.ID {
		t.Fatalf("get mismatch: %+v", got)
	}

	missing := f.do(t, http.MethodGet, "/api/events/missing-id", nil, nil)
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("missing event: %d want 404", missing.StatusCode)
	}

	list := f.do(t, http.MethodGet, "/api/events", nil, nil)
	var all eventsResponse
	decodeJSONBody(t, list, &all)
	if len(all.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(all.Events))
	}
}

func TestUpdateEventOwnership(t *testing.T) {
	t.Parallel()

	f := newEventsFixture(t)
	e := f.mustSeedEvent(t)
	body := map[string]any{"title": "Renamed"}

	guest := f.do(t, http.MethodPut, "/api/events/"+e.ID, body, &f.guest)
	guest.Body.Close()
	if guest.StatusCode != http.StatusForbidden {
		t.Fatalf("non-owner update: %d want 403", guest.StatusCode)
	}

	owner := f.do(t, http.MethodPut, "/api/events/"+e.ID, body, &f.owner)
	if owner.StatusCode != http.StatusOK {
		t.Fatalf("owner update: %d", owner.StatusCode)
	}
	var updated eventResponse
	decodeJSONBody(t, owner, &updated)
	if updated.Title != "Renamed" {
		t.Fatalf("title not updated: %q", updated.Title)
	}

	// Admins can edit events they do not own.
	admin := f.do(t, http.MethodPut, "/api/events/"+e.ID, map[string]any{"category": "community"}, &f.admin)
	admin.Body.Close()
	if admin.StatusCode != http.StatusOK {
		t.Fatalf("admin update: %d", admin.StatusCode)
	}
}

func TestDeleteEventOwnership(t *testing.T) {
	t.Parallel()

	f := newEventsFixture(t)
	e := f.mustSeedEvent(t)

	guest := f.do(t, http.MethodDelete, "/api/events/"+e.ID, nil, &f.guest)
	guest.Body.Close()
	if guest.StatusCode != http.StatusForbidden {
		t.Fatalf("non-owner delete: %d want 403", guest.StatusCode)
	}

	owner := f.do(t, http.MethodDelete, "/api/events/"+e.ID, nil, &f.owner)
	owner.Body.Close()
	if owner.StatusCode != http.StatusNoContent {
		t.Fatalf("owner delete: %d want 204", owner.StatusCode)
	}

	gone := f.do(t, http.MethodGet, "/api/events/"+e.ID, nil, nil)
	gone.Body.Close()
	if gone.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted event lookup: %d want 404", gone.StatusCode)
	}
}

func TestRSVPEndpoints(t *testing.T) {
	t.Parallel()

	f := newEventsFixture(t)
	e := f.mustSeedEvent(t)

	set := f.do(t, http.MethodPost, "/api/events/"+e.ID+"/rsvp", map[string]string{"status": "maybe"}, &f.guest)
	var status map[string]string
	decodeJSONBody(t, set, &status)
	if set.StatusCode != http.StatusOK || status["status"] != "maybe" {
		t.Fatalf("rsvp: status=%d body=%v", set.StatusCode, status)
	}

	// Replying again replaces the previous answer.
	again := f.do(t, http.MethodPost, "/api/events/"+e.ID+"/rsvp", map[string]string{"status": "attending"}, &f.guest)
	again.Body.Close()
	if again.StatusCode != http.StatusOK {
		t.Fatalf("rsvp update: %d", again.StatusCode)
	}

	bad := f.do(t, http.MethodPost, "/api/events/"+e.ID+"/rsvp", map[string]string{"status": "whenever"}, &f.guest)
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad rsvp status: %d want 400", bad.StatusCode)
	}

	missing := f.do(t, http.MethodPost, "/api/events/missing-id/rsvp", map[string]string{"status": "maybe"}, &f.guest)
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("rsvp missing event: %d want 404", missing.StatusCode)
	}

	mine := f.do(t, http.MethodGet, "/api/events/rsvp", nil, &f.guest)
	var replied rsvpEventsResponse
	decodeJSONBody(t, mine, &replied)
	if len(replied.Events) != 1 || replied.Events[0].RSVPStatus != "attending" {
		t.Fatalf("unexpected rsvp listing: %+v", replied.Events)
	}
}

func TestMyEventsListsOwnedOnly(t *testing.T) {
	t.Parallel()

	f := newEventsFixture(t)
	e := f.mustSeedEvent(t)

	mine := f.do(t, http.MethodGet, "/api/events/my-events", nil, &f.owner)
	var owned eventsResponse
	decodeJSONBody(t, mine, &owned)
	if len(owned.Events) != 1 || owned.Events[0].ID != e.ID {
		t.Fatalf("unexpected my-events listing: %+v", owned.Events)
	}

	none := f.do(t, http.MethodGet, "/api/events/my-events", nil, &f.guest)
	var empty eventsResponse
	decodeJSONBody(t, none, &empty)
	if len(empty.Events) != 0 {
		t.Fatalf("guest owns no events, got %+v", empty.Events)
	}
}

func TestAttendanceEndpoints(t *testing.T) {
	t.Parallel()

	f := newEventsFixture(t)
	e := f.mustSeedEvent(t)
	path := "/api/events/" + e.ID + "/attendance"

	early := f.do(t, http.MethodPost, path, map[string]string{"action": "leave"}, &f.guest)
	early.Body.Close()
	if early.StatusCode != http.StatusBadRequest {
		t.Fatalf("leave before join: %d want 400", early.StatusCode)
	}

	join := f.do(t, http.MethodPost, path, map[string]string{"action": "join"}, &f.guest)
	var joined attendanceRecordResponse
	decodeJSONBody(t, join, &joined)
	if join.StatusCode != http.StatusOK || joined.Status != AttendanceAttending {
		t.Fatalf("join: status=%d record=%+v", join.StatusCode, joined)
	}

	leave := f.do(t, http.MethodPost, path, map[string]string{"action": "leave"}, &f.guest)
	var left attendanceRecordResponse
	decodeJSONBody(t, leave, &left)
	if leave.StatusCode != http.StatusOK || left.Status != AttendanceAttended || left.LeftAt == nil {
		t.Fatalf("leave: status=%d record=%+v", leave.StatusCode, left)
	}

	// The attendance sheet is owner/admin only.
	guestList := f.do(t, http.MethodGet, path, nil, &f.guest)
	guestList.Body.Close()
	if guestList.StatusCode != http.StatusForbidden {
		t.Fatalf("guest listing attendance: %d want 403", guestList.StatusCode)
	}

	ownerList := f.do(t, http.MethodGet, path, nil, &f.owner)
	var sheet attendanceResponse
	decodeJSONBody(t, ownerList, &sheet)
	if len(sheet.Records) != 1 || sheet.Records[0].UserName != "Guest" {
		t.Fatalf("unexpected attendance sheet: %+v", sheet.Records)
	}
}

func TestDownloadAttendanceCSV(t *testing.T) {
	t.Parallel()

	f := newEventsFixture(t)
	e := f.mustSeedEvent(t)

	joinedAt := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	if _, err := f.store.RecordJoin(context.Background(), e.ID, f.guest.ID, "Guest", joinedAt); err != nil {
		t.Fatalf("record join: %v", err)
	}
	if _, err := f.store.RecordLeave(context.Background(), e.ID, f.guest.ID, joinedAt.Add(30*time.Minute)); err != nil {
		t.Fatalf("record leave: %v", err)
	}

	resp := f.do(t, http.MethodGet, "/api/events/"+e.ID+"/attendance/download", nil, &f.owner)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download status: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type: %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "attendance-"+e.ID+".csv") {
		t.Fatalf("content disposition: %q", cd)
	}

	rows, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus 1 row, got %d rows", len(rows))
	}
	wantHeader := []string{"Name", "Status", "Join Time", "Leave Time", "Duration (minutes)"}
	for i, col := range wantHeader {
		if rows[0][i] != col {
			t.Fatalf("header column %d: got %q want %q", i, rows[0][i], col)
		}
	}
	row := rows[1]
	if row[0] != "Guest" || row[1] != AttendanceAttended || row[4] != "30" {
		t.Fatalf("unexpected csv row: %v", row)
	}
	if row[2] != joinedAt.Format(time.RFC3339) {
		t.Fatalf("join time: %q", row[2])
	}

	// Non-owners cannot download.
	guest := f.do(t, http.MethodGet, "/api/events/"+e.ID+"/attendance/download", nil, &f.guest)
	guest.Body.Close()
	if guest.StatusCode != http.StatusForbidden {
		t.Fatalf("guest download: %d want 403", guest.StatusCode)
	}
}

func TestAdminEventsIncludeAttendingCounts(t *testing.T) {
	t.Parallel()

	f := newEventsFixture(t)
	e := f.mustSeedEvent(t)

	for _, u := range []identity.User{f.guest, f.admin} {
		if err := f.store.SetRSVP(context.Background(), RSVP{
			EventID: e.ID, UserID: u.ID, UserName: u.Name, Status: RSVPAttending, UpdatedAt: time.Now(),
		}); err != nil {
			t.Fatalf("seed rsvp: %v", err)
		}
	}

	member := f.do(t, http.MethodGet, "/api/admin/events", nil, &f.guest)
	member.Body.Close()
	if member.StatusCode != http.StatusForbidden {
		t.Fatalf("member admin listing: %d want 403", member.StatusCode)
	}

	resp := f.do(t, http.MethodGet, "/api/admin/events", nil, &f.admin)
	var out adminEventsResponse
	decodeJSONBody(t, resp, &out)
	if resp.StatusCode != http.StatusOK || len(out.Events) != 1 {
		t.Fatalf("admin listing: status=%d events=%+v", resp.StatusCode, out.Events)
	}
	if out.Events[0].AttendingCount != 2 {
		t.Fatalf("attending count: got %d want 2", out.Events[0].AttendingCount)
	}
}
