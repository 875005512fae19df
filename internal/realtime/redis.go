package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"diagramdb/internal/models"
)

// DefaultPresenceTTL expires presence entries whose connection stopped
// refreshing them. Three keepalive intervals of headroom.
const DefaultPresenceTTL = 90 * time.Second

// RedisBroker backs channels with Redis: presence entries are TTL'd keys
// refreshed on every track, events and broadcasts ride Pub/Sub.
type RedisBroker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisBroker(rdb *redis.Client) *RedisBroker {
	return &RedisBroker{rdb: rdb, ttl: DefaultPresenceTTL}
}

func (b *RedisBroker) Channel(ctx context.Context, name, presenceKey string) (Channel, error) {
	if name == "" {
		return nil, fmt.Errorf("channel name is required")
	}
	ch := &redisChannel{
		rdb:         b.rdb,
		ttl:         b.ttl,
		name:        name,
		presenceKey: presenceKey,
		ref:         uuid.NewString(),
		events:      make(chan Event, 64),
	}
	ch.pubsub = b.rdb.Subscribe(ctx, ch.topic())
	// Force the subscription before returning so no event is missed.
	if _, err := ch.pubsub.Receive(ctx); err != nil {
		_ = ch.pubsub.Close()
		return nil, fmt.Errorf("subscribe channel %s: %w", name, err)
	}
	go ch.pump()
	return ch, nil
}

// envelope is the wire format for every published message.
type envelope struct {
	Type    EventType       `json:"type"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type redisChannel struct {
	rdb         *redis.Client
	ttl         time.Duration
	name        string
	presenceKey string
	ref         string
	pubsub      *redis.PubSub
	events      chan Event

	closeOnce  sync.Once
	eventsOnce sync.Once
}

func (c *redisChannel) topic() string {
	return "realtime:" + c.name
}

func (c *redisChannel) presenceKeyName() string {
	return fmt.Sprintf("presence:%s:%s:%s", c.name, c.presenceKey, c.ref)
}

func (c *redisChannel) presencePrefix() string {
	return fmt.Sprintf("presence:%s:", c.name)
}

// pump forwards Pub/Sub messages to the events channel until the
// subscription closes. Slow consumers drop events; presence state is always
// recomputed from full channel state, so drops self-heal.
func (c *redisChannel) pump() {
	for msg := range c.pubsub.Channel() {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			continue
		}
		select {
		case c.events <- Event{Type: env.Type, Name: env.Event, Payload: env.Payload}:
		default:
		}
	}
	c.eventsOnce.Do(func() { close(c.events) })
}

func (c *redisChannel) publish(ctx context.Context, env envelope) error {
	encoded, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode channel message: %w", err)
	}
	return c.rdb.Publish(ctx, c.topic(), encoded).Err()
}

func (c *redisChannel) Track(ctx context.Context, payload models.PresencePayload) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode presence payload: %w", err)
	}
	if err := c.rdb.Set(ctx, c.presenceKeyName(), encoded, c.ttl).Err(); err != nil {
		return fmt.Errorf("track presence: %w", err)
	}
	return c.publish(ctx, envelope{Type: EventJoin})
}

func (c *redisChannel) Untrack(ctx context.Context) error {
	if err := c.rdb.Del(ctx, c.presenceKeyName()).Err(); err != nil {
		return fmt.Errorf("untrack presence: %w", err)
	}
	return c.publish(ctx, envelope{Type: EventLeave})
}

func (c *redisChannel) State(ctx context.Context) (map[string][]PresenceEntry, error) {
	prefix := c.presencePrefix()
	state := make(map[string][]PresenceEntry)

	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan presence keys: %w", err)
		}
		for _, key := range keys {
			value, err := c.rdb.Get(ctx, key).Result()
			if err != nil {
				if err == redis.Nil {
					continue // expired between scan and get
				}
				return nil, fmt.Errorf("read presence entry: %w", err)
			}
			var payload models.PresencePayload
			if err := json.Unmarshal([]byte(value), &payload); err != nil {
				continue
			}
			rest := strings.TrimPrefix(key, prefix)
			sep := strings.LastIndex(rest, ":")
			if sep < 0 {
				continue
			}
			presenceKey, ref := rest[:sep], rest[sep+1:]
			state[presenceKey] = append(state[presenceKey], PresenceEntry{Ref: ref, Payload: payload})
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return state, nil
}

func (c *redisChannel) Broadcast(ctx context.Context, event string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode broadcast payload: %w", err)
	}
	return c.publish(ctx, envelope{Type: EventBroadcast, Event: event, Payload: encoded})
}

func (c *redisChannel) Events() <-chan Event {
	return c.events
}

func (c *redisChannel) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.Untrack(ctx)
		// Closing the subscription ends pump, which closes the events channel.
		err = c.pubsub.Close()
	})
	return err
}
