package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"gather/cmd/internal/auth"
	v1 "gather/shared/contracts/chat/v1"

	"github.com/coder/websocket"
)

const (
	wsSubprotocolV1 = "gather.chat.v1"

	wsReadIdleTimeout = 2 * time.Minute
	wsPingInterval    = 25 * time.Second
	wsPingTimeout     = 5 * time.Second
	wsMaxPingFailures = 3
	wsCloseGrace      = 1 * time.Second
)

// handleWS upgrades the request and runs the same chat session the SSE
// endpoint offers, plus inbound message sends over the socket.
func (h *Handler) handleWS(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	u, ok := auth.UserFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.enforceOrigin(r); err != nil {
		h.log.Info("chat.ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	exists, err := h.events.Exists(r.Context(), eventID)
	if err != nil {
		h.log.Error("chat.ws.lookup.fail", "err", err, "event_id", eventID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !exists {
		http.Error(w, "event not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{wsSubprotocolV1},
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.log.Error("chat.ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != wsSubprotocolV1 {
		h.log.Info("chat.ws.reject.subprotocol", "got", sp, "want", wsSubprotocolV1)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(maxFrameBytes)

	listener := NewListener(eventID, u.ID, u.Name, h.queueSize)
	sub := h.registry.Subscribe(eventID, listener)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// shutdown is idempotent. Membership removal happens before the
	// user-left publish so the departing listener is never a recipient.
	var closeOnce sync.Once
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			h.registry.Unsubscribe(sub)
			h.registry.Publish(eventID, userLeftPayload(u.ID, u.Name, time.Now().UTC()))
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	now := time.Now().UTC()
	if err := writePayload(ctx, conn, connectionPayload(now), h.writeTimeout); err != nil {
		shutdown(websocket.StatusAbnormalClosure, "write failed")
		return
	}
	h.registry.Publish(eventID, userJoinedPayload(u.ID, u.Name, now), ExcludeListener(listener))

	rl := NewRateLimiter(rateLimitEvents, rateLimitWindow)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-listener.Done():
				return
			case p := <-listener.Send:
				if err := writePayload(ctx, conn, p, h.writeTimeout); err != nil {
					h.log.Info("chat.ws.write.fail", "event_id", eventID, "user_id", u.ID, "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	pingDone := make(chan struct{})
	go func() {
		defer close(pingDone)

		t := time.NewTicker(wsPingInterval)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-listener.Done():
				return
			case <-t.C:
				pingCtx, pingCancel := context.WithTimeout(ctx, wsPingTimeout)
				err := conn.Ping(pingCtx)
				pingCancel()

				if err != nil {
					failures++
					if failures >= wsMaxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

readLoop:
	for {
		readCtx, readCancel := context.WithTimeout(ctx, wsReadIdleTimeout)
		req, err := readSendRequest(readCtx, conn)
		readCancel()

		if err != nil {
			switch classifyReadErr(err) {
			case readErrBadJSON:
				continue readLoop
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
			case readErrCtxDone:
				shutdown(websocket.StatusNormalClosure, "context done")
			default:
				h.log.Info("chat.ws.read.fail", "event_id", eventID, "user_id", u.ID, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
			}
			break readLoop
		}

		if !rl.Allow(time.Now().UTC()) {
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			break readLoop
		}

		if _, err := h.PostMessage(ctx, eventID, u, req.Content); err != nil {
			if IsValidation(err) {
				continue readLoop
			}
			h.log.Error("chat.ws.send.fail", "event_id", eventID, "user_id", u.ID, "err", err)
			continue readLoop
		}
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-pingDone:
	case <-time.After(wsCloseGrace):
	}
}

// ---- frame IO ----

func readSendRequest(ctx context.Context, conn *websocket.Conn) (v1.SendRequest, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return v1.SendRequest{}, err
	}
	if mt != websocket.MessageText {
		return v1.SendRequest{}, errors.New("unsupported message type")
	}
	var req v1.SendRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return v1.SendRequest{}, errBadJSON
	}
	return req, nil
}

func writePayload(parent context.Context, conn *websocket.Conn, p v1.Payload, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// ---- read error classification ----

var errBadJSON = errors.New("bad json")

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrBadJSON
)

func classifyReadErr(err error) readErrKind {
	if errors.Is(err, errBadJSON) {
		return readErrBadJSON
	}
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrClose
	}
	return readErrUnknown
}

// ---- origin policy ----

func (h *Handler) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if h.originRequired {
			return errors.New("missing origin")
		}
		return nil
	}

	if len(h.allowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)

	for _, a := range h.allowedOrigins {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if a == "*" {
			return nil
		}
		if origin == a {
			return nil
		}
		if originHost != "" && originHost == originHostOnly(a) {
			return nil
		}
	}

	return errors.New("origin not allowed: " + origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		h := strings.TrimSpace(u.Host)
		if h == "" {
			return ""
		}
		if host, _, err := net.SplitHostPort(h); err == nil {
			return strings.ToLower(host)
		}
		return strings.ToLower(h)
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

// deriveOriginPatterns extracts host patterns for websocket.Accept from
// the configured origin allowlist so both layers agree.
func deriveOriginPatterns(allowed []string) []string {
	seen := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		h := originHostOnly(a)
		if h == "" || h == "*" {
			continue
		}
		seen[h] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}

	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j] < out[i] {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}
