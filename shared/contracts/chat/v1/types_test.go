package v1

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestPayloadValidate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		payload Payload
		wantErr string
	}{
		{
			name:    "valid connection",
			payload: Payload{Type: TypeConnection, Message: "Connection established", Timestamp: now},
		},
		{
			name:    "valid user joined",
			payload: Payload{Type: TypeUserJoined, UserID: "u-1", UserName: "Alice", Timestamp: now},
		},
		{
			name:    "valid message",
			payload: Payload{Type: TypeMessage, ID: "m-1", UserID: "u-1", Content: "hi", Timestamp: now},
		},
		{
			name:    "missing type",
			payload: Payload{Timestamp: now},
			wantErr: "missing field: type",
		},
		{
			name:    "unknown type",
			payload: Payload{Type: "broadcast", Timestamp: now},
			wantErr: "unknown type",
		},
		{
			name:    "missing timestamp",
			payload: Payload{Type: TypeConnection},
			wantErr: "missing field: timestamp",
		},
		{
			name:    "message without id",
			payload: Payload{Type: TypeMessage, Content: "hi", Timestamp: now},
			wantErr: "missing field: id",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.payload.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("got %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestPayloadWireFieldNames(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	p := Payload{
		Type:      TypeMessage,
		ID:        "m-1",
		EventID:   "evt-1",
		Content:   "hello",
		CreatedAt: &created,
		UserID:    "u-1",
		UserName:  "Alice",
		Timestamp: created,
	}

	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"type"`, `"id"`, `"eventId"`, `"content"`, `"createdAt"`, `"userId"`, `"userName"`, `"timestamp"`} {
		if !strings.Contains(string(b), key) {
			t.Fatalf("wire payload missing %s: %s", key, b)
		}
	}

	// Connection payloads omit the message-only fields.
	conn, err := json.Marshal(Payload{Type: TypeConnection, Message: "hi", Timestamp: created})
	if err != nil {
		t.Fatalf("marshal connection: %v", err)
	}
	for _, key := range []string{`"eventId"`, `"userId"`, `"createdAt"`} {
		if strings.Contains(string(conn), key) {
			t.Fatalf("connection payload must omit %s: %s", key, conn)
		}
	}
}
