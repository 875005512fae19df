package realtime

import (
	"fmt"
	"sync"
	"time"

	"diagramdb/internal/models"
)

// CursorFreshness is the window after which a cursor stops rendering. The
// record itself is not deleted; staleness is re-evaluated on every read.
const CursorFreshness = 10 * time.Second

// cursorRetention bounds tracker memory for long-lived sessions: entries this
// much older than the freshness window are swept when a snapshot is taken.
const cursorRetention = 10 * CursorFreshness

// CursorTracker accumulates raw remote cursor records, one per session.
type CursorTracker struct {
	mu      sync.Mutex
	cursors map[string]models.RemoteCursor
}

func NewCursorTracker() *CursorTracker {
	return &CursorTracker{cursors: make(map[string]models.RemoteCursor)}
}

// Observe records the latest cursor state for its session.
func (t *CursorTracker) Observe(cursor models.RemoteCursor) {
	if cursor.SessionID == "" {
		return
	}
	t.mu.Lock()
	t.cursors[cursor.SessionID] = cursor
	t.mu.Unlock()
}

// Snapshot returns every tracked record, sweeping entries past the retention
// horizon. Staleness within the freshness window is left to ActiveCursors.
func (t *CursorTracker) Snapshot(now time.Time) []models.RemoteCursor {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]models.RemoteCursor, 0, len(t.cursors))
	for session, cursor := range t.cursors {
		if now.Sub(cursor.UpdatedAt) >= cursorRetention {
			delete(t.cursors, session)
			continue
		}
		out = append(out, cursor)
	}
	return out
}

// ActiveCursors derives the renderable set from raw records: a cursor shows
// iff its session differs from the local session, both coordinates lie in
// [0,1], and it is younger than the freshness window.
func ActiveCursors(cursors []models.RemoteCursor, localSession string, now time.Time) []models.RemoteCursor {
	var active []models.RemoteCursor
	for _, cursor := range cursors {
		if cursor.SessionID == localSession {
			continue
		}
		if cursor.X < 0 || cursor.X > 1 || cursor.Y < 0 || cursor.Y > 1 {
			continue
		}
		if now.Sub(cursor.UpdatedAt) >= CursorFreshness {
			continue
		}
		active = append(active, cursor)
	}
	return active
}

// SessionColor maps a session id to a stable display color. The hash is a
// 32-bit rolling combination of character codes reduced to a hue; the same
// session always yields the same color with no shared state.
func SessionColor(sessionID string) string {
	return fmt.Sprintf("hsl(%d, 85%%, 60%%)", SessionHue(sessionID))
}

// SessionHue returns the hue component of a session's color, in [0, 360).
func SessionHue(sessionID string) int {
	var hash int32
	for _, r := range sessionID {
		hash = r + (hash<<5 - hash)
	}
	// Widen before taking the absolute value: negating MinInt32 in 32 bits
	// overflows back to itself.
	h := int64(hash)
	if h < 0 {
		h = -h
	}
	return int(h % 360)
}
