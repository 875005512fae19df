package models

import "time"

// PresencePayload is what a collaborator tracks on a diagram channel.
type PresencePayload struct {
	UserID     string    `json:"userId"`
	SessionID  string    `json:"sessionId,omitempty"`
	Email      string    `json:"email,omitempty"`
	Name       string    `json:"name,omitempty"`
	AvatarURL  string    `json:"avatarUrl,omitempty"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// PresenceParticipant is one visible entry in a diagram's participant list.
// PresenceRef is stable for the lifetime of the underlying connection.
type PresenceParticipant struct {
	PresencePayload
	PresenceRef string `json:"presenceRef"`
}

// RemoteCursor is the last known pointer position of a collaborator session,
// normalized to the viewport. Records outside the unit square or past the
// freshness window are kept but never rendered.
type RemoteCursor struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId,omitempty"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	UpdatedAt time.Time `json:"updatedAt"`
}
