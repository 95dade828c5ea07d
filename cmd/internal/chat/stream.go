package chat

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"gather/cmd/internal/auth"
	"gather/cmd/internal/webapi"
	v1 "gather/shared/contracts/chat/v1"
)

// handleStream serves the Server-Sent Events feed for one event's chat.
//
// On open the listener is subscribed, a connection payload is pushed to
// it alone, and a user-joined payload is published to everyone else.
// On disconnect the listener is unsubscribed before the user-left
// payload goes out, so the departing client never hears about itself.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	u, ok := auth.UserFrom(r.Context())
	if !ok {
		webapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	exists, err := h.events.Exists(r.Context(), eventID)
	if err != nil {
		h.log.Error("chat.stream.lookup.fail", "err", err, "event_id", eventID)
		webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if !exists {
		webapi.WriteError(w, http.StatusNotFound, "not_found", "event not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		webapi.WriteError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	listener := NewListener(eventID, u.ID, u.Name, h.queueSize)
	sub := h.registry.Subscribe(eventID, listener)

	now := time.Now().UTC()
	if err := writeSSE(w, flusher, connectionPayload(now)); err != nil {
		h.registry.Unsubscribe(sub)
		return
	}
	h.registry.Publish(eventID, userJoinedPayload(u.ID, u.Name, now), ExcludeListener(listener))

	defer func() {
		h.registry.Unsubscribe(sub)
		h.registry.Publish(eventID, userLeftPayload(u.ID, u.Name, time.Now().UTC()))
	}()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-listener.Done():
			return
		case p := <-listener.Send:
			if err := writeSSE(w, flusher, p); err != nil {
				h.log.Info("chat.stream.write.fail", "err", err, "event_id", eventID, "user_id", u.ID)
				return
			}
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSE frames one payload as an SSE data event and flushes it.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, p v1.Payload) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
