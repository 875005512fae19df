package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagramdb/internal/models"
)

func TestActiveCursors(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	cursors := []models.RemoteCursor{
		{SessionID: "stale", X: 0.5, Y: 0.5, UpdatedAt: now.Add(-15 * time.Second)},
		{SessionID: "outside", X: 1.5, Y: 0.5, UpdatedAt: now},
		{SessionID: "negative", X: 0.5, Y: -0.1, UpdatedAt: now},
		{SessionID: "mine", X: 0.5, Y: 0.5, UpdatedAt: now},
		{SessionID: "fresh", X: 0.5, Y: 0.5, UpdatedAt: now.Add(-time.Second)},
	}

	active := ActiveCursors(cursors, "mine", now)
	require.Len(t, active, 1)
	assert.Equal(t, "fresh", active[0].SessionID)
}

func TestActiveCursors_Boundaries(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	// Corner coordinates are inside the unit square.
	corners := []models.RemoteCursor{
		{SessionID: "origin", X: 0, Y: 0, UpdatedAt: now},
		{SessionID: "far", X: 1, Y: 1, UpdatedAt: now},
	}
	assert.Len(t, ActiveCursors(corners, "local", now), 2)

	// A cursor exactly at the freshness boundary is stale.
	boundary := []models.RemoteCursor{
		{SessionID: "edge", X: 0.5, Y: 0.5, UpdatedAt: now.Add(-CursorFreshness)},
	}
	assert.Empty(t, ActiveCursors(boundary, "local", now))
}

func TestCursorTracker_ObserveReplacesPerSession(t *testing.T) {
	tracker := NewCursorTracker()
	now := time.Now().UTC()

	tracker.Observe(models.RemoteCursor{SessionID: "s1", X: 0.1, Y: 0.1, UpdatedAt: now})
	tracker.Observe(models.RemoteCursor{SessionID: "s1", X: 0.9, Y: 0.9, UpdatedAt: now})
	tracker.Observe(models.RemoteCursor{SessionID: "s2", X: 0.2, Y: 0.2, UpdatedAt: now})
	tracker.Observe(models.RemoteCursor{SessionID: "", X: 0.3, Y: 0.3, UpdatedAt: now})

	snapshot := tracker.Snapshot(now)
	require.Len(t, snapshot, 2)

	bySession := map[string]models.RemoteCursor{}
	for _, c := range snapshot {
		bySession[c.SessionID] = c
	}
	assert.Equal(t, 0.9, bySession["s1"].X, "later observation wins")
}

func TestCursorTracker_SnapshotSweepsOldEntries(t *testing.T) {
	tracker := NewCursorTracker()
	now := time.Now().UTC()

	tracker.Observe(models.RemoteCursor{SessionID: "ancient", X: 0.5, Y: 0.5, UpdatedAt: now.Add(-cursorRetention)})
	tracker.Observe(models.RemoteCursor{SessionID: "merely-stale", X: 0.5, Y: 0.5, UpdatedAt: now.Add(-30 * time.Second)})

	snapshot := tracker.Snapshot(now)
	require.Len(t, snapshot, 1)
	assert.Equal(t, "merely-stale", snapshot[0].SessionID, "stale records are kept, only ancient ones are swept")

	// The ancient entry is gone for good.
	assert.Len(t, tracker.Snapshot(now), 1)
}

func TestSessionColor(t *testing.T) {
	assert.Equal(t, SessionColor("abc-123"), SessionColor("abc-123"), "same session, same color")

	hue := SessionHue("abc-123")
	assert.GreaterOrEqual(t, hue, 0)
	assert.Less(t, hue, 360)

	assert.Equal(t, "hsl(0, 85%, 60%)", SessionColor(""))
}

func TestSessionHue_KnownValues(t *testing.T) {
	// hash("a") = 97, hash("ab") = 97*31 + 98 = 3105
	assert.Equal(t, 97%360, SessionHue("a"))
	assert.Equal(t, 3105%360, SessionHue("ab"))
}

func TestSessionHue_MinInt32Hash(t *testing.T) {
	// This id's rolling hash is exactly math.MinInt32, whose 32-bit negation
	// overflows back to itself. The absolute value must be taken in 64 bits:
	// 2147483648 % 360 = 128.
	assert.Equal(t, 128, SessionHue("aAgaAXq"))
}
