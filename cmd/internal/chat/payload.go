package chat

import (
	"time"

	v1 "gather/shared/contracts/chat/v1"
)

// Payload constructors. All timestamps are server-assigned UTC.

func connectionPayload(now time.Time) v1.Payload {
	return v1.Payload{
		Type:      v1.TypeConnection,
		Message:   "Connection established",
		Timestamp: now,
	}
}

func userJoinedPayload(userID, userName string, now time.Time) v1.Payload {
	return v1.Payload{
		Type:      v1.TypeUserJoined,
		UserID:    userID,
		UserName:  userName,
		Timestamp: now,
	}
}

func userLeftPayload(userID, userName string, now time.Time) v1.Payload {
	return v1.Payload{
		Type:      v1.TypeUserLeft,
		UserID:    userID,
		UserName:  userName,
		Timestamp: now,
	}
}

// MessagePayload converts a persisted message into its fan-out payload.
func MessagePayload(m Message) v1.Payload {
	created := m.CreatedAt
	return v1.Payload{
		Type:      v1.TypeMessage,
		ID:        m.ID,
		EventID:   m.EventID,
		UserID:    m.UserID,
		UserName:  m.UserName,
		Content:   m.Content,
		CreatedAt: &created,
		Timestamp: m.CreatedAt,
	}
}
