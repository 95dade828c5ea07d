package chat

import (
	"log/slog"
	"sync"

	v1 "gather/shared/contracts/chat/v1"
)

// Registry is the process-wide mapping from event id to the set of currently
// connected listeners for that event's chat.
//
// Concurrency guarantees:
// - Subscribe/Unsubscribe are safe under concurrent Publish.
// - Publish iterates a snapshot of the listener set, so membership churn
//   during an in-flight publish never skips a stable listener, double
//   delivers, or panics.
// - Publish never blocks: a listener whose queue is full or whose connection
//   is shutting down has that delivery dropped (recorded, never escalated).
//
// Deployment note: the registry is process-local. Multi-instance fan-out
// requires a shared pub/sub bus behind this same contract; the
// subscribe/unsubscribe/publish surface is designed to keep that swap
// internal.
type Registry struct {
	log     *slog.Logger
	metrics *Metrics

	mu    sync.RWMutex
	rooms map[string]*room
}

// room is one event's listener set.
type room struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
}

// NewRegistry constructs a Registry. metrics may be nil.
func NewRegistry(log *slog.Logger, metrics *Metrics) *Registry {
	return &Registry{
		log:     log,
		metrics: metrics,
		rooms:   make(map[string]*room),
	}
}

// Subscription is the handle returned by Subscribe. Unsubscribing through it
// is idempotent.
type Subscription struct {
	registry *Registry
	eventID  string
	listener *Listener
	once     sync.Once
}

// Listener returns the subscribed listener.
func (s *Subscription) Listener() *Listener {
	if s == nil {
		return nil
	}
	return s.listener
}

// Subscribe registers listener under eventID, creating the room on first use.
func (r *Registry) Subscribe(eventID string, l *Listener) *Subscription {
	// The insertion happens under r.mu so a concurrent Unsubscribe of the
	// room's last listener cannot delete the room entry between the lookup
	// and the insert, which would strand the new listener in a room Publish
	// can no longer find.
	r.mu.Lock()
	rm, ok := r.rooms[eventID]
	if !ok {
		rm = &room{listeners: make(map[*Listener]struct{})}
		r.rooms[eventID] = rm
	}
	rm.mu.Lock()
	rm.listeners[l] = struct{}{}
	rm.mu.Unlock()
	r.mu.Unlock()

	r.metrics.listenerAdded()
	r.log.Info("chat.room.join", "event_id", eventID, "user_id", l.UserID)

	return &Subscription{registry: r, eventID: eventID, listener: l}
}

// Unsubscribe removes the subscription's listener and drops the room entry
// when its set empties. Unsubscribing an already-removed handle is a no-op.
func (r *Registry) Unsubscribe(sub *Subscription) {
	if r == nil || sub == nil || sub.registry != r {
		return
	}

	sub.once.Do(func() {
		r.mu.Lock()
		rm, ok := r.rooms[sub.eventID]
		if ok {
			rm.mu.Lock()
			delete(rm.listeners, sub.listener)
			empty := len(rm.listeners) == 0
			rm.mu.Unlock()
			if empty {
				delete(r.rooms, sub.eventID)
			}
		}
		r.mu.Unlock()

		// Signal the connection after removal so an in-flight publish cannot
		// hold a pointer to a listener being torn down without seeing done.
		sub.listener.Close()

		if ok {
			r.metrics.listenerRemoved()
			r.log.Info("chat.room.leave", "event_id", sub.eventID, "user_id", sub.listener.UserID)
		}
	})
}

// PublishOption configures a single Publish call.
type PublishOption func(*publishOptions)

type publishOptions struct {
	exclude *Listener
}

// ExcludeListener skips one listener for this publish (used for join/leave
// notifications, which the actor should not receive itself). Chat messages
// are published without exclusion so the sender sees its own message come
// back through the stream.
func ExcludeListener(l *Listener) PublishOption {
	return func(o *publishOptions) { o.exclude = l }
}

// Publish delivers payload to every current listener registered under
// eventID. Delivery to one listener failing never aborts delivery to the
// others. Nothing is queued for listeners that join after Publish returns.
func (r *Registry) Publish(eventID string, p v1.Payload, opts ...PublishOption) {
	var o publishOptions
	for _, opt := range opts {
		opt(&o)
	}

	r.mu.RLock()
	rm := r.rooms[eventID]
	r.mu.RUnlock()

	r.metrics.published()
	if rm == nil {
		return
	}

	rm.mu.RLock()
	snapshot := make([]*Listener, 0, len(rm.listeners))
	for l := range rm.listeners {
		snapshot = append(snapshot, l)
	}
	rm.mu.RUnlock()

	for _, l := range snapshot {
		if l == nil || l == o.exclude {
			continue
		}

		select {
		case <-l.Done():
			// Connection is shutting down; local delivery failure only.
			r.metrics.deliveryFailed(reasonClosed)
			r.log.Debug("chat.publish.drop", "event_id", eventID, "user_id", l.UserID, "reason", reasonClosed)
			continue
		default:
		}

		select {
		case l.Send <- p:
			r.metrics.delivered()
		default:
			// Drop rather than block the whole room.
			r.metrics.deliveryFailed(reasonSlow)
			r.log.Warn("chat.publish.drop", "event_id", eventID, "user_id", l.UserID, "reason", reasonSlow)
		}
	}
}

// ListenerCount reports the current number of listeners for eventID.
func (r *Registry) ListenerCount(eventID string) int {
	r.mu.RLock()
	rm := r.rooms[eventID]
	r.mu.RUnlock()
	if rm == nil {
		return 0
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.listeners)
}

// RoomCount reports the number of event ids with at least one listener.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
