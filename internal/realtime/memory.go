package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"diagramdb/internal/models"
)

// MemoryBroker is an in-process channel broker. It backs local
// single-process sessions and tests; semantics match the Redis broker.
type MemoryBroker struct {
	mu     sync.Mutex
	topics map[string]*memoryTopic
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{topics: make(map[string]*memoryTopic)}
}

func (b *MemoryBroker) Channel(_ context.Context, name, presenceKey string) (Channel, error) {
	if name == "" {
		return nil, fmt.Errorf("channel name is required")
	}
	b.mu.Lock()
	topic, ok := b.topics[name]
	if !ok {
		topic = &memoryTopic{
			name:    name,
			entries: make(map[string][]PresenceEntry),
			subs:    make(map[*memoryChannel]struct{}),
		}
		b.topics[name] = topic
	}
	b.mu.Unlock()

	ch := &memoryChannel{
		topic:       topic,
		presenceKey: presenceKey,
		ref:         uuid.NewString(),
		events:      make(chan Event, 64),
	}
	topic.mu.Lock()
	topic.subs[ch] = struct{}{}
	topic.mu.Unlock()
	return ch, nil
}

type memoryTopic struct {
	name    string
	mu      sync.Mutex
	entries map[string][]PresenceEntry
	subs    map[*memoryChannel]struct{}
}

// notify fans an event out to every subscriber. Slow consumers drop events;
// presence consumers recompute from full state so a dropped notification is
// recovered by the next one.
func (t *memoryTopic) notify(ev Event) {
	for sub := range t.subs {
		select {
		case sub.events <- ev:
		default:
		}
	}
}

type memoryChannel struct {
	topic       *memoryTopic
	presenceKey string
	ref         string
	events      chan Event

	mu     sync.Mutex
	closed bool
}

func (c *memoryChannel) Track(_ context.Context, payload models.PresencePayload) error {
	t := c.topic
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := t.entries[c.presenceKey]
	replaced := false
	for i, entry := range entries {
		if entry.Ref == c.ref {
			entries[i].Payload = payload
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, PresenceEntry{Ref: c.ref, Payload: payload})
	}
	t.entries[c.presenceKey] = entries
	t.notify(Event{Type: EventJoin})
	return nil
}

func (c *memoryChannel) Untrack(_ context.Context) error {
	t := c.topic
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := t.entries[c.presenceKey]
	kept := entries[:0]
	for _, entry := range entries {
		if entry.Ref != c.ref {
			kept = append(kept, entry)
		}
	}
	if len(kept) == 0 {
		delete(t.entries, c.presenceKey)
	} else {
		t.entries[c.presenceKey] = kept
	}
	t.notify(Event{Type: EventLeave})
	return nil
}

func (c *memoryChannel) State(_ context.Context) (map[string][]PresenceEntry, error) {
	t := c.topic
	t.mu.Lock()
	defer t.mu.Unlock()

	state := make(map[string][]PresenceEntry, len(t.entries))
	for key, entries := range t.entries {
		state[key] = append([]PresenceEntry(nil), entries...)
	}
	return state, nil
}

func (c *memoryChannel) Broadcast(_ context.Context, event string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode broadcast payload: %w", err)
	}
	t := c.topic
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notify(Event{Type: EventBroadcast, Name: event, Payload: encoded})
	return nil
}

func (c *memoryChannel) Events() <-chan Event {
	return c.events
}

func (c *memoryChannel) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	_ = c.Untrack(ctx)

	t := c.topic
	t.mu.Lock()
	delete(t.subs, c)
	t.mu.Unlock()

	close(c.events)
	return nil
}
