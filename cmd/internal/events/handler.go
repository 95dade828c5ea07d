package events

import (
	"log/slog"
	"net/http"
	"time"

	"gather/cmd/identity"
	"gather/cmd/internal/auth"
	"gather/cmd/internal/webapi"

	"github.com/go-playground/validator/v10"
)

const maxEventBodyBytes = 1 << 20

// Handler wires the event directory endpoints.
type Handler struct {
	log      *slog.Logger
	store    Store
	resolver *auth.Resolver
	validate *validator.Validate
}

// NewHandler constructs an events Handler.
func NewHandler(log *slog.Logger, store Store, resolver *auth.Resolver) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		log:      log,
		store:    store,
		resolver: resolver,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Register wires event routes onto the provided mux. Literal segments
// beat {id} wildcards in ServeMux precedence, so /api/events/rsvp and
// /api/events/my-events do not shadow lookups by id.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("GET /api/events", h.handleList)
	mux.Handle("POST /api/events", h.resolver.RequireUser(http.HandlerFunc(h.handleCreate)))
	mux.Handle("GET /api/events/rsvp", h.resolver.RequireUser(http.HandlerFunc(h.handleMyRSVPs)))
	mux.Handle("GET /api/events/my-events", h.resolver.RequireUser(http.HandlerFunc(h.handleMyEvents)))
	mux.HandleFunc("GET /api/events/{id}", h.handleGet)
	mux.Handle("PUT /api/events/{id}", h.resolver.RequireUser(http.HandlerFunc(h.handleUpdate)))
	mux.Handle("DELETE /api/events/{id}", h.resolver.RequireUser(http.HandlerFunc(h.handleDelete)))
	mux.Handle("POST /api/events/{id}/rsvp", h.resolver.RequireUser(http.HandlerFunc(h.handleRSVP)))
	mux.Handle("POST /api/events/{id}/attendance", h.resolver.RequireUser(http.HandlerFunc(h.handleAttendance)))
	mux.Handle("GET /api/events/{id}/attendance", h.resolver.RequireUser(http.HandlerFunc(h.handleListAttendance)))
	mux.Handle("GET /api/events/{id}/attendance/download", h.resolver.RequireUser(http.HandlerFunc(h.handleDownloadAttendance)))
	mux.Handle("GET /api/admin/events", h.resolver.RequireAdmin(http.HandlerFunc(h.handleAdminEvents)))
}

// ---- CRUD ----

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	evs, err := h.store.ListEvents(r.Context())
	if err != nil {
		h.log.Error("events.list.fail", "err", err)
		webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	webapi.WriteJSON(w, http.StatusOK, toEventsResponse(evs))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.UserFrom(r.Context())
	if !ok {
		webapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req createEventRequest
	if err := webapi.DecodeJSON(w, r, maxEventBodyBytes, &req); err != nil {
		webapi.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		webapi.WriteError(w, http.StatusBadRequest, "invalid_request", "title, description, category, date and meetingLink are required")
		return
	}

	e, err := h.store.CreateEvent(r.Context(), CreateEventInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Date:        req.Date,
		MeetingLink: req.MeetingLink,
		CoverImage:  req.CoverImage,
		Capacity:    req.Capacity,
		CreatedBy:   u.ID,
		Now:         time.Now().UTC(),
	})
	if err != nil {
		if IsInvalidInput(err) {
			webapi.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid input")
			return
		}
		h.log.Error("events.create.fail", "err", err)
		webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.log.Info("events.created", "event_id", e.ID, "created_by", u.ID)
	webapi.WriteJSON(w, http.StatusCreated, toEventResponse(e))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	e, err := h.store.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		if IsNotFound(err) {
			webapi.WriteError(w, http.StatusNotFound, "not_found", "event not found")
			return
		}
		h.log.Error("events.get.fail", "err", err)
		webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	webapi.WriteJSON(w, http.StatusOK, toEventResponse(e))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	u, e, ok := h.requireOwnerOrAdmin(w, r)
	if !ok {
		return
	}

	var req updateEventRequest
	if err := webapi.DecodeJSON(w, r, maxEventBodyBytes, &req); err != nil {
		webapi.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		webapi.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid input")
		return
	}

	updated, err := h.store.UpdateEvent(r.Context(), e.ID, UpdateEventInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Date:        req.Date,
		MeetingLink: req.MeetingLink,
		CoverImage:  req.CoverImage,
		Capacity:    req.Capacity,
		Now:         time.Now().UTC(),
	})
	if err != nil {
		switch {
		case IsNotFound(err):
			webapi.WriteError(w, http.StatusNotFound, "not_found", "event not found")
		case IsInvalidInput(err):
			webapi.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid input")
		default:
			h.log.Error("events.update.fail", "err", err, "event_id", e.ID)
			webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.log.Info("events.updated", "event_id", updated.ID, "updated_by", u.ID)
	webapi.WriteJSON(w, http.StatusOK, toEventResponse(updated))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	u, e, ok := h.requireOwnerOrAdmin(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteEvent(r.Context(), e.ID); err != nil {
		if IsNotFound(err) {
			webapi.WriteError(w, http.StatusNotFound, "not_found", "event not found")
			return
		}
		h.log.Error("events.delete.fail", "err", err, "event_id", e.ID)
		webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.log.Info("events.deleted", "event_id", e.ID, "deleted_by", u.ID)
	w.WriteHeader(http.StatusNoContent)
}

// ---- RSVP ----

func (h *Handler) handleRSVP(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	u, ok := auth.UserFrom(r.Context())
	if !ok {
		webapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req rsvpRequest
	if err := webapi.DecodeJSON(w, r, maxEventBodyBytes, &req); err != nil {
		webapi.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		webapi.WriteError(w, http.StatusBadRequest, "invalid_request", "status must be attending, maybe or declined")
		return
	}

	err := h.store.SetRSVP(r.Context(), RSVP{
		EventID:   eventID,
		UserID:    u.ID,
		UserName:  u.Name,
		Status:    req.Status,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		switch {
		case IsNotFound(err):
			webapi.WriteError(w, http.StatusNotFound, "not_found", "event not found")
		case IsInvalidInput(err):
			webapi.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid rsvp status")
		default:
			h.log.Error("events.rsvp.fail", "err", err, "event_id", eventID)
			webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	webapi.WriteJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func (h *Handler) handleMyRSVPs(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFrom(r.Context())

	evs, err := h.store.ListByRSVP(r.Context(), u.ID)
	if err != nil {
		h.log.Error("events.rsvp.list.fail", "err", err, "user_id", u.ID)
		webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	out := make([]rsvpEventResponse, 0, len(evs))
	for _, e := range evs {
		out = append(out, rsvpEventResponse{
			eventResponse: toEventResponse(e.Event),
			RSVPStatus:    e.RSVPStatus,
		})
	}
	webapi.WriteJSON(w, http.StatusOK, rsvpEventsResponse{Events: out})
}

func (h *Handler) handleMyEvents(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFrom(r.Context())

	evs, err := h.store.ListByCreator(r.Context(), u.ID)
	if err != nil {
		h.log.Error("events.my_events.fail", "err", err, "user_id", u.ID)
		webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	webapi.WriteJSON(w, http.StatusOK, toEventsResponse(evs))
}

// ---- attendance ----

func (h *Handler) handleAttendance(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	u, ok := auth.UserFrom(r.Context())
	if !ok {
		webapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req attendanceRequest
	if err := webapi.DecodeJSON(w, r, maxEventBodyBytes, &req); err != nil {
		webapi.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		webapi.WriteError(w, http.StatusBadRequest, "invalid_request", "action must be join or leave")
		return
	}

	now := time.Now().UTC()
	var (
		rec AttendanceRecord
		err error
	)
	switch req.Action {
	case "join":
		rec, err = h.store.RecordJoin(r.Context(), eventID, u.ID, u.Name, now)
	case "leave":
		rec, err = h.store.RecordLeave(r.Context(), eventID, u.ID, now)
	}
	if err != nil {
		switch {
		case IsNotFound(err):
			webapi.WriteError(w, http.StatusNotFound, "not_found", "event not found")
		case IsInvalidInput(err):
			webapi.WriteError(w, http.StatusBadRequest, "invalid_request", "cannot leave before joining")
		default:
			h.log.Error("events.attendance.fail", "err", err, "event_id", eventID, "action", req.Action)
			webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	webapi.WriteJSON(w, http.StatusOK, toAttendanceRecordResponse(rec))
}

func (h *Handler) handleListAttendance(w http.ResponseWriter, r *http.Request) {
	_, e, ok := h.requireOwnerOrAdmin(w, r)
	if !ok {
		return
	}

	recs, err := h.store.ListAttendance(r.Context(), e.ID)
	if err != nil {
		h.log.Error("events.attendance.list.fail", "err", err, "event_id", e.ID)
		webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	out := make([]attendanceRecordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toAttendanceRecordResponse(rec))
	}
	webapi.WriteJSON(w, http.StatusOK, attendanceResponse{Records: out})
}

// ---- admin ----

func (h *Handler) handleAdminEvents(w http.ResponseWriter, r *http.Request) {
	evs, err := h.store.ListEvents(r.Context())
	if err != nil {
		h.log.Error("events.admin.list.fail", "err", err)
		webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	counts, err := h.store.AttendingCounts(r.Context())
	if err != nil {
		h.log.Error("events.admin.counts.fail", "err", err)
		webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	out := make([]adminEventResponse, 0, len(evs))
	for _, e := range evs {
		out = append(out, adminEventResponse{
			eventResponse:  toEventResponse(e),
			AttendingCount: counts[e.ID],
		})
	}
	webapi.WriteJSON(w, http.StatusOK, adminEventsResponse{Events: out})
}

// ---- helpers ----

// requireOwnerOrAdmin loads the target event and rejects callers who
// neither created it nor hold the admin role.
func (h *Handler) requireOwnerOrAdmin(w http.ResponseWriter, r *http.Request) (identity.User, Event, bool) {
	u, authed := auth.UserFrom(r.Context())
	if !authed {
		webapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return identity.User{}, Event{}, false
	}

	e, err := h.store.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		if IsNotFound(err) {
			webapi.WriteError(w, http.StatusNotFound, "not_found", "event not found")
			return identity.User{}, Event{}, false
		}
		h.log.Error("events.get.fail", "err", err)
		webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return identity.User{}, Event{}, false
	}

	if e.CreatedBy != u.ID && u.Role != identity.RoleAdmin {
		webapi.WriteError(w, http.StatusForbidden, "forbidden", "not the event owner")
		return identity.User{}, Event{}, false
	}
	return u, e, true
}

func toEventsResponse(evs []Event) eventsResponse {
	out := make([]eventResponse, 0, len(evs))
	for _, e := range evs {
		out = append(out, toEventResponse(e))
	}
	return eventsResponse{Events: out}
}
