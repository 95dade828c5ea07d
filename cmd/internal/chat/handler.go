package chat

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"gather/cmd/identity"
	"gather/cmd/internal/auth"
	"gather/cmd/internal/webapi"
	v1 "gather/shared/contracts/chat/v1"
)

const maxChatBodyBytes = 64 << 10

// Handler wires the chat endpoints: message history, message ingress,
// and the live stream transports (SSE and WebSocket).
type Handler struct {
	log      *slog.Logger
	registry *Registry
	store    MessageStore
	events   EventDirectory
	resolver *auth.Resolver

	queueSize    int
	keepalive    time.Duration
	writeTimeout time.Duration

	originRequired bool
	allowedOrigins []string
	originPatterns []string
}

// HandlerOption configures optional chat handler behavior.
type HandlerOption func(*Handler)

// WithSendQueueSize overrides the per-listener send queue size.
func WithSendQueueSize(n int) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// WithKeepalive overrides the SSE keepalive interval.
func WithKeepalive(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.keepalive = d
		}
	}
}

// WithAllowedOrigins sets the WebSocket origin allowlist.
func WithAllowedOrigins(origins []string) HandlerOption {
	return func(h *Handler) {
		h.allowedOrigins = origins
		h.originPatterns = deriveOriginPatterns(origins)
	}
}

// NewHandler constructs a chat Handler.
func NewHandler(log *slog.Logger, registry *Registry, store MessageStore, events EventDirectory, resolver *auth.Resolver, opts ...HandlerOption) *Handler {
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{
		log:            log,
		registry:       registry,
		store:          store,
		events:         events,
		resolver:       resolver,
		queueSize:      defaultSendQueueSize,
		keepalive:      defaultKeepalive,
		writeTimeout:   defaultWriteTimeout,
		originRequired: true,
		allowedOrigins: []string{"http://localhost", "http://127.0.0.1"},
	}
	h.originPatterns = deriveOriginPatterns(h.allowedOrigins)

	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Register wires chat routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.Handle("GET /api/events/{id}/messages", h.resolver.RequireUser(http.HandlerFunc(h.handleListMessages)))
	mux.Handle("POST /api/events/{id}/messages", h.resolver.RequireUser(http.HandlerFunc(h.handlePostMessage)))
	mux.Handle("GET /api/events/{id}/chat/stream", h.resolver.RequireUser(http.HandlerFunc(h.handleStream)))
	mux.Handle("GET /api/events/{id}/chat/ws", h.resolver.RequireUser(http.HandlerFunc(h.handleWS)))
}

// PostMessage validates and appends a message, then fans it out to
// every listener on the event, the sender included.
func (h *Handler) PostMessage(ctx context.Context, eventID string, sender identity.User, content string) (Message, error) {
	ok, err := h.events.Exists(ctx, eventID)
	if err != nil {
		return Message{}, err
	}
	if !ok {
		return Message{}, ErrEventNotFound
	}

	m, err := h.store.Append(ctx, AppendInput{
		EventID:  eventID,
		UserID:   sender.ID,
		UserName: sender.Name,
		Content:  content,
		Now:      time.Now().UTC(),
	})
	if err != nil {
		return Message{}, err
	}

	// Fan-out happens after the append succeeds. Delivery failures are
	// absorbed by the registry and never surface to the sender.
	h.registry.Publish(eventID, MessagePayload(m))
	return m, nil
}

// ---- HTTP handlers ----

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")

	ok, err := h.events.Exists(r.Context(), eventID)
	if err != nil {
		h.log.Error("chat.messages.list.fail", "err", err, "event_id", eventID)
		webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if !ok {
		webapi.WriteError(w, http.StatusNotFound, "not_found", "event not found")
		return
	}

	msgs, err := h.store.ListByEvent(r.Context(), eventID)
	if err != nil {
		h.log.Error("chat.messages.list.fail", "err", err, "event_id", eventID)
		webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	webapi.WriteJSON(w, http.StatusOK, messagesResponse{Messages: out})
}

func (h *Handler) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	u, ok := auth.UserFrom(r.Context())
	if !ok {
		webapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req v1.SendRequest
	if err := webapi.DecodeJSON(w, r, maxChatBodyBytes, &req); err != nil {
		webapi.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	m, err := h.PostMessage(r.Context(), eventID, u, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, ErrEventNotFound):
			webapi.WriteError(w, http.StatusNotFound, "not_found", "event not found")
		case IsValidation(err):
			webapi.WriteError(w, http.StatusBadRequest, "invalid_request", "message content is required")
		default:
			h.log.Error("chat.messages.post.fail", "err", err, "event_id", eventID)
			webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	webapi.WriteJSON(w, http.StatusCreated, toMessageResponse(m))
}

// ---- response models ----

type messageResponse struct {
	ID        string    `json:"id"`
	EventID   string    `json:"eventId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type messagesResponse struct {
	Messages []messageResponse `json:"messages"`
}

func toMessageResponse(m Message) messageResponse {
	return messageResponse{
		ID:        m.ID,
		EventID:   m.EventID,
		UserID:    m.UserID,
		UserName:  m.UserName,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}
