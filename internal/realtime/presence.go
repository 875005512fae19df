package realtime

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"diagramdb/internal/models"
)

// DefaultKeepalive re-tracks the local presence payload to keep the entry
// from expiring server-side.
const DefaultKeepalive = 30 * time.Second

type SessionState int

const (
	StateIdle SessionState = iota
	StateConnecting
	StateSubscribed
	StateActive
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Reduce flattens a raw presence mapping into the sorted visible participant
// list. Each entry keeps its server-provided reference, or falls back to a
// deterministic one derived from the user id and flattened position. Entries
// sort ascending by display name with case-insensitive collation; unnamed
// entries sort before named ones.
func Reduce(state map[string][]PresenceEntry) []models.PresenceParticipant {
	keys := make([]string, 0, len(state))
	for key := range state {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var participants []models.PresenceParticipant
	index := 0
	for _, key := range keys {
		for _, entry := range state[key] {
			ref := entry.Ref
			if ref == "" {
				ref = fmt.Sprintf("%s-%d", entry.Payload.UserID, index)
			}
			participants = append(participants, models.PresenceParticipant{
				PresencePayload: entry.Payload,
				PresenceRef:     ref,
			})
			index++
		}
	}

	collator := collate.New(language.Und, collate.Loose)
	sort.SliceStable(participants, func(i, j int) bool {
		return collator.CompareString(participants[i].Name, participants[j].Name) < 0
	})
	return participants
}

// Manager maintains one editing session's presence membership on a diagram
// channel: it tracks the local payload on subscribe, recomputes the visible
// participant list from full channel state on every notification, refreshes
// its entry on a fixed keepalive interval, and tears everything down
// idempotently. Channel failures degrade to an empty participant list; they
// never surface to the editor.
type Manager struct {
	broker    Broker
	keepalive time.Duration
	logger    *log.Logger // nil outside development mode

	mu           sync.Mutex
	state        SessionState
	channel      Channel
	self         models.PresencePayload
	participants []models.PresenceParticipant
	onBroadcast  func(event string, payload []byte)
	stop         chan struct{}
	done         chan struct{}
}

type ManagerOption func(*Manager)

// WithKeepalive overrides the keepalive interval.
func WithKeepalive(interval time.Duration) ManagerOption {
	return func(m *Manager) { m.keepalive = interval }
}

// WithLogger enables development-mode logging of channel errors.
func WithLogger(logger *log.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

func NewManager(broker Broker, opts ...ManagerOption) *Manager {
	m := &Manager{
		broker:    broker,
		keepalive: DefaultKeepalive,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}

// Start joins the diagram's channel and begins tracking presence. With no
// diagram, no user or no broker the manager stays Idle with an empty
// participant list. Channel errors leave the manager Idle as well: the
// collaboration features vanish, the editor keeps working.
func (m *Manager) Start(ctx context.Context, diagramID string, self models.PresencePayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle && m.state != StateClosed {
		return fmt.Errorf("presence session already started")
	}
	if diagramID == "" || self.UserID == "" || m.broker == nil {
		m.state = StateIdle
		m.participants = nil
		return nil
	}

	m.state = StateConnecting
	channel, err := m.broker.Channel(ctx, "diagram:"+diagramID, self.UserID)
	if err != nil {
		m.logf("presence: open channel for diagram %s: %v", diagramID, err)
		m.state = StateIdle
		m.participants = nil
		return nil
	}
	m.state = StateSubscribed
	m.channel = channel
	m.self = self

	payload := self
	payload.LastSeenAt = time.Now().UTC()
	if err := channel.Track(ctx, payload); err != nil {
		m.logf("presence: track self: %v", err)
	}
	m.recomputeLocked(ctx)

	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	m.state = StateActive
	go m.loop(channel, m.stop, m.done)
	return nil
}

// loop consumes channel events and drives the keepalive timer until stopped.
func (m *Manager) loop(channel Channel, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case ev, ok := <-channel.Events():
			if !ok {
				return
			}
			switch ev.Type {
			case EventSync, EventJoin, EventLeave:
				m.mu.Lock()
				m.recomputeLocked(context.Background())
				m.mu.Unlock()
			case EventBroadcast:
				m.handleBroadcast(ev)
			}
		case <-ticker.C:
			payload := m.self
			payload.LastSeenAt = time.Now().UTC()
			if err := channel.Track(context.Background(), payload); err != nil {
				m.logf("presence: keepalive track: %v", err)
			}
		}
	}
}

// OnBroadcast registers a handler for broadcast events (cursor updates ride
// this path). Must be called before Start.
func (m *Manager) OnBroadcast(fn func(event string, payload []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onBroadcast = fn
}

func (m *Manager) handleBroadcast(ev Event) {
	m.mu.Lock()
	fn := m.onBroadcast
	m.mu.Unlock()
	if fn != nil {
		fn(ev.Name, ev.Payload)
	}
}

// Broadcast publishes a named message on the session's channel.
func (m *Manager) Broadcast(ctx context.Context, event string, payload any) error {
	m.mu.Lock()
	channel := m.channel
	state := m.state
	m.mu.Unlock()
	if channel == nil || state != StateActive && state != StateSubscribed {
		return fmt.Errorf("presence session not active")
	}
	return channel.Broadcast(ctx, event, payload)
}

// recomputeLocked rebuilds the participant list from full channel state.
// Callers hold m.mu.
func (m *Manager) recomputeLocked(ctx context.Context) {
	if m.channel == nil {
		m.participants = nil
		return
	}
	state, err := m.channel.State(ctx)
	if err != nil {
		m.logf("presence: read channel state: %v", err)
		m.participants = nil
		return
	}
	m.participants = Reduce(state)
}

// Participants returns a copy of the current visible participant list.
func (m *Manager) Participants() []models.PresenceParticipant {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.PresenceParticipant(nil), m.participants...)
}

// State returns the session's lifecycle state.
func (m *Manager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Close cancels the keepalive, clears the participant list and unsubscribes
// the channel. Safe to call on every exit path, any number of times, even if
// the session never subscribed.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateClosed || m.state == StateClosing {
		m.mu.Unlock()
		return nil
	}
	m.state = StateClosing
	channel := m.channel
	stop := m.stop
	done := m.done
	m.channel = nil
	m.stop = nil
	m.done = nil
	m.participants = nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	if channel != nil {
		if err := channel.Close(ctx); err != nil {
			m.logf("presence: close channel: %v", err)
		}
	}

	m.mu.Lock()
	m.state = StateClosed
	m.mu.Unlock()
	return nil
}
