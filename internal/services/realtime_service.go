package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"diagramdb/internal/auth"
	"diagramdb/internal/models"
	"diagramdb/internal/realtime"
)

// cursorEvent is the broadcast name cursor updates ride on, outside the
// presence-tracking path.
const cursorEvent = "cursor"

// RealtimeSession is one live collaborative editing session: a presence
// manager on the diagram's channel plus the session's view of remote
// cursors.
type RealtimeSession struct {
	ID        string
	DiagramID string
	UserID    string
	manager   *realtime.Manager
	cursors   *realtime.CursorTracker
}

// ActiveCursor is a renderable remote cursor with its derived display color.
type ActiveCursor struct {
	models.RemoteCursor
	Color string `json:"color"`
}

// RealtimeService owns the registry of live sessions.
type RealtimeService struct {
	broker    realtime.Broker
	keepalive time.Duration
	logger    *log.Logger

	mu       sync.Mutex
	sessions map[string]*RealtimeSession
}

type RealtimeOption func(*RealtimeService)

func WithKeepalive(interval time.Duration) RealtimeOption {
	return func(s *RealtimeService) { s.keepalive = interval }
}

func WithLogger(logger *log.Logger) RealtimeOption {
	return func(s *RealtimeService) { s.logger = logger }
}

func NewRealtimeService(broker realtime.Broker, opts ...RealtimeOption) *RealtimeService {
	s := &RealtimeService{
		broker:    broker,
		keepalive: realtime.DefaultKeepalive,
		sessions:  make(map[string]*RealtimeSession),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Join opens a presence session on the diagram's channel for this user and
// returns its session id.
func (s *RealtimeService) Join(ctx context.Context, user *auth.Identity, diagramID string) (*RealtimeSession, error) {
	if user == nil {
		return nil, fmt.Errorf("a signed-in user is required")
	}
	if diagramID == "" {
		return nil, fmt.Errorf("diagram id is required")
	}

	opts := []realtime.ManagerOption{realtime.WithKeepalive(s.keepalive)}
	if s.logger != nil {
		opts = append(opts, realtime.WithLogger(s.logger))
	}
	manager := realtime.NewManager(s.broker, opts...)

	session := &RealtimeSession{
		ID:        uuid.NewString(),
		DiagramID: diagramID,
		UserID:    user.ID,
		manager:   manager,
		cursors:   realtime.NewCursorTracker(),
	}
	manager.OnBroadcast(func(event string, payload []byte) {
		if event != cursorEvent {
			return
		}
		var cursor models.RemoteCursor
		if err := json.Unmarshal(payload, &cursor); err != nil {
			return
		}
		session.cursors.Observe(cursor)
	})

	if err := manager.Start(ctx, diagramID, models.PresencePayload{
		UserID:     user.ID,
		SessionID:  session.ID,
		Email:      user.Email,
		Name:       user.DisplayName(),
		AvatarURL:  user.AvatarURL,
		LastSeenAt: time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return session, nil
}

func (s *RealtimeService) session(id string) (*RealtimeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("unknown realtime session %s", id)
	}
	return session, nil
}

// Participants returns the session's current visible participant list.
func (s *RealtimeService) Participants(sessionID string) ([]models.PresenceParticipant, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return session.manager.Participants(), nil
}

// Cursors returns the renderable remote cursors for the session, excluding
// its own, with display colors attached.
func (s *RealtimeService) Cursors(sessionID string) ([]ActiveCursor, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	active := realtime.ActiveCursors(session.cursors.Snapshot(now), session.ID, now)
	out := make([]ActiveCursor, 0, len(active))
	for _, cursor := range active {
		out = append(out, ActiveCursor{
			RemoteCursor: cursor,
			Color:        realtime.SessionColor(cursor.SessionID),
		})
	}
	return out, nil
}

// SendCursor broadcasts the session's cursor position to the channel.
func (s *RealtimeService) SendCursor(ctx context.Context, sessionID string, x, y float64) error {
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	cursor := models.RemoteCursor{
		SessionID: session.ID,
		UserID:    session.UserID,
		X:         x,
		Y:         y,
		UpdatedAt: time.Now().UTC(),
	}
	return session.manager.Broadcast(ctx, cursorEvent, cursor)
}

// Leave tears the session down and removes it from the registry. Tearing
// down an already-left session is a no-op.
func (s *RealtimeService) Leave(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return session.manager.Close(ctx)
}

// Close tears down every live session, for server shutdown.
func (s *RealtimeService) Close(ctx context.Context) {
	s.mu.Lock()
	sessions := make([]*RealtimeSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.sessions = make(map[string]*RealtimeSession)
	s.mu.Unlock()

	for _, session := range sessions {
		_ = session.manager.Close(ctx)
	}
}
