// Package realtime provides the per-diagram presence channel and the cursor
// broadcast filter used for collaborative editing sessions.
package realtime

import (
	"context"
	"encoding/json"

	"diagramdb/internal/models"
)

type EventType string

const (
	EventSync      EventType = "sync"
	EventJoin      EventType = "join"
	EventLeave     EventType = "leave"
	EventBroadcast EventType = "broadcast"
)

// Event is one notification delivered by a channel. Presence events
// (sync/join/leave) carry no payload: consumers recompute from full channel
// state. Broadcast events carry the sender's encoded payload.
type Event struct {
	Type    EventType
	Name    string
	Payload json.RawMessage
}

// PresenceEntry is one tracked connection under a presence key. Ref is the
// connection's stable reference; it may be empty when the backing transport
// does not assign one.
type PresenceEntry struct {
	Ref     string
	Payload models.PresencePayload
}

// Channel is a named realtime endpoint scoped to one diagram, with presence
// tracking keyed by user id and arbitrary message broadcast.
type Channel interface {
	// Track registers (or refreshes) this connection's presence payload.
	Track(ctx context.Context, payload models.PresencePayload) error
	// Untrack removes this connection's presence entry.
	Untrack(ctx context.Context) error
	// State returns the full presence mapping: presence key to the list of
	// tracked entries. A user with several connections has several entries.
	State(ctx context.Context) (map[string][]PresenceEntry, error)
	// Broadcast publishes a named message to every subscriber.
	Broadcast(ctx context.Context, event string, payload any) error
	// Events delivers presence and broadcast notifications. The channel is
	// closed when the Channel closes.
	Events() <-chan Event
	// Close untracks, unsubscribes and releases the channel. Idempotent.
	Close(ctx context.Context) error
}

// Broker opens channels. Implementations: Redis (shared across processes)
// and in-memory (tests, local single-process mode).
type Broker interface {
	Channel(ctx context.Context, name, presenceKey string) (Channel, error)
}
