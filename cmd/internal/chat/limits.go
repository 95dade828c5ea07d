package chat

import "time"

// Limits shared by the SSE and WebSocket transports.
const (
	// Per-listener send queue (payloads buffered before drops kick in).
	defaultSendQueueSize = 64

	// Max message content length (runes).
	maxContentChars = 4000

	// Max bytes per websocket frame read (hard limit).
	maxFrameBytes = 64 << 10 // 64 KiB

	// SSE comment keep-alive cadence.
	defaultKeepalive = 25 * time.Second

	// Per-connection websocket write deadline.
	defaultWriteTimeout = 5 * time.Second

	// Per-connection rate limits (messages per window).
	rateLimitEvents = 60
	rateLimitWindow = 10 * time.Second
)
