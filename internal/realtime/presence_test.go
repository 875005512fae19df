package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagramdb/internal/models"
)

func TestReduce_SortsByNameUnnamedFirst(t *testing.T) {
	state := map[string][]PresenceEntry{
		"u-bob":   {{Ref: "r1", Payload: models.PresencePayload{UserID: "u-bob", Name: "Bob"}}},
		"u-anon":  {{Ref: "r2", Payload: models.PresencePayload{UserID: "u-anon", Name: ""}}},
		"u-alice": {{Ref: "r3", Payload: models.PresencePayload{UserID: "u-alice", Name: "alice"}}},
	}

	participants := Reduce(state)
	require.Len(t, participants, 3)
	assert.Equal(t, "", participants[0].Name)
	assert.Equal(t, "alice", participants[1].Name, "ordering ignores case")
	assert.Equal(t, "Bob", participants[2].Name)
}

func TestReduce_FallbackRefs(t *testing.T) {
	state := map[string][]PresenceEntry{
		"u1": {
			{Ref: "", Payload: models.PresencePayload{UserID: "u1", Name: "A"}},
			{Ref: "", Payload: models.PresencePayload{UserID: "u1", Name: "B"}},
		},
		"u2": {
			{Ref: "server-ref", Payload: models.PresencePayload{UserID: "u2", Name: "C"}},
		},
	}

	participants := Reduce(state)
	require.Len(t, participants, 3)

	refs := map[string]string{}
	for _, p := range participants {
		refs[p.Name] = p.PresenceRef
	}
	// Fallback refs come from the user id and the flattened position over
	// key-sorted entries, so they are deterministic.
	assert.Equal(t, "u1-0", refs["A"])
	assert.Equal(t, "u1-1", refs["B"])
	assert.Equal(t, "server-ref", refs["C"])
}

func TestReduce_Idempotent(t *testing.T) {
	state := map[string][]PresenceEntry{
		"u1": {{Ref: "r1", Payload: models.PresencePayload{UserID: "u1", Name: "Zoe"}}},
		"u2": {{Ref: "r2", Payload: models.PresencePayload{UserID: "u2", Name: "Ada"}}},
	}

	first := Reduce(state)
	second := Reduce(state)
	assert.Equal(t, first, second)
}

func TestReduce_Empty(t *testing.T) {
	assert.Empty(t, Reduce(nil))
	assert.Empty(t, Reduce(map[string][]PresenceEntry{}))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestManager_Lifecycle(t *testing.T) {
	broker := NewMemoryBroker()
	ctx := context.Background()

	first := NewManager(broker)
	require.NoError(t, first.Start(ctx, "d1", models.PresencePayload{UserID: "u1", Name: "Alice"}))
	assert.Equal(t, StateActive, first.State())

	participants := first.Participants()
	require.Len(t, participants, 1)
	assert.Equal(t, "Alice", participants[0].Name)

	second := NewManager(broker)
	require.NoError(t, second.Start(ctx, "d1", models.PresencePayload{UserID: "u2", Name: "Bob"}))

	waitFor(t, func() bool { return len(first.Participants()) == 2 })
	waitFor(t, func() bool { return len(second.Participants()) == 2 })

	require.NoError(t, second.Close(ctx))
	waitFor(t, func() bool { return len(first.Participants()) == 1 })
	assert.Equal(t, "Alice", first.Participants()[0].Name)

	require.NoError(t, first.Close(ctx))
	assert.Equal(t, StateClosed, first.State())
	assert.Empty(t, first.Participants())
}

func TestManager_IdleWithoutDiagramOrUser(t *testing.T) {
	broker := NewMemoryBroker()
	ctx := context.Background()

	m := NewManager(broker)
	require.NoError(t, m.Start(ctx, "", models.PresencePayload{UserID: "u1"}))
	assert.Equal(t, StateIdle, m.State())
	assert.Empty(t, m.Participants())

	m = NewManager(broker)
	require.NoError(t, m.Start(ctx, "d1", models.PresencePayload{}))
	assert.Equal(t, StateIdle, m.State())

	m = NewManager(nil)
	require.NoError(t, m.Start(ctx, "d1", models.PresencePayload{UserID: "u1"}))
	assert.Equal(t, StateIdle, m.State())
}

func TestManager_DoubleStartFails(t *testing.T) {
	broker := NewMemoryBroker()
	ctx := context.Background()

	m := NewManager(broker)
	require.NoError(t, m.Start(ctx, "d1", models.PresencePayload{UserID: "u1"}))
	defer m.Close(ctx)

	require.Error(t, m.Start(ctx, "d1", models.PresencePayload{UserID: "u1"}))
}

func TestManager_CloseIsIdempotent(t *testing.T) {
	broker := NewMemoryBroker()
	ctx := context.Background()

	m := NewManager(broker)
	require.NoError(t, m.Start(ctx, "d1", models.PresencePayload{UserID: "u1"}))

	require.NoError(t, m.Close(ctx))
	require.NoError(t, m.Close(ctx))
	assert.Equal(t, StateClosed, m.State())

	// Closing a never-started manager is also fine.
	require.NoError(t, NewManager(broker).Close(ctx))
}

func TestManager_KeepaliveRefreshesPresence(t *testing.T) {
	broker := NewMemoryBroker()
	ctx := context.Background()

	m := NewManager(broker, WithKeepalive(10*time.Millisecond))
	require.NoError(t, m.Start(ctx, "d1", models.PresencePayload{UserID: "u1", Name: "Alice"}))
	defer m.Close(ctx)

	initial := m.Participants()[0].LastSeenAt
	waitFor(t, func() bool {
		participants := m.Participants()
		return len(participants) == 1 && participants[0].LastSeenAt.After(initial)
	})
}

func TestManager_Broadcast(t *testing.T) {
	broker := NewMemoryBroker()
	ctx := context.Background()

	sender := NewManager(broker)
	require.NoError(t, sender.Start(ctx, "d1", models.PresencePayload{UserID: "u1"}))
	defer sender.Close(ctx)

	received := make(chan models.RemoteCursor, 1)
	receiver := NewManager(broker)
	receiver.OnBroadcast(func(event string, payload []byte) {
		if event != "cursor" {
			return
		}
		var cursor models.RemoteCursor
		if err := json.Unmarshal(payload, &cursor); err == nil {
			select {
			case received <- cursor:
			default:
			}
		}
	})
	require.NoError(t, receiver.Start(ctx, "d1", models.PresencePayload{UserID: "u2"}))
	defer receiver.Close(ctx)

	cursor := models.RemoteCursor{SessionID: "s1", UserID: "u1", X: 0.25, Y: 0.75, UpdatedAt: time.Now().UTC()}
	require.NoError(t, sender.Broadcast(ctx, "cursor", cursor))

	select {
	case got := <-received:
		assert.Equal(t, "s1", got.SessionID)
		assert.Equal(t, 0.25, got.X)
		assert.Equal(t, 0.75, got.Y)
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast never arrived")
	}
}

func TestManager_BroadcastRequiresActiveSession(t *testing.T) {
	m := NewManager(NewMemoryBroker())
	require.Error(t, m.Broadcast(context.Background(), "cursor", nil))
}
