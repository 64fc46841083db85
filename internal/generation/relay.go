package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"cvbuilder-backend/internal/shared/telemetry"
)

// DefaultRelayChannel is the Redis pub/sub channel carrying generation events.
const DefaultRelayChannel = "cvbuilder:generation:events"

// Relay carries events between API instances.
type Relay interface {
	Publish(ctx context.Context, ev Event) error
	// Start forwards events published by other instances to onEvent.
	Start(ctx context.Context, onEvent func(Event)) error
	Close() error
}

// envelope is the wire form; Event hides OwnerID from API clients.
type envelope struct {
	Origin  string `json:"origin"`
	OwnerID string `json:"ownerId"`
	Event   Event  `json:"event"`
}

// RedisRelay relays events through Redis pub/sub.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	origin  string
}

// NewRedisRelay wraps an existing client.
func NewRedisRelay(rdb *redis.Client, channel string) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &RedisRelay{rdb: rdb, channel: channel, origin: uuid.NewString()}
}

// DialRedis connects and pings Redis.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Publish sends ev to other instances.
func (r *RedisRelay) Publish(ctx context.Context, ev Event) error {
	raw, err := encodeEnvelope(r.origin, ev)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, raw).Err()
}

// Start subscribes and forwards remote events until ctx ends.
func (r *RedisRelay) Start(ctx context.Context, onEvent func(Event)) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		r.forward(ctx, sub.Channel(), onEvent)
	}()
	return nil
}

// forward delivers remote messages from ch until ctx ends or ch closes.
func (r *RedisRelay) forward(ctx context.Context, ch <-chan *redis.Message, onEvent func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok || m == nil {
				return
			}
			ev, remote, err := decodeEnvelope(r.origin, []byte(m.Payload))
			if err != nil {
				telemetry.Warn("generation.relay.bad_payload", map[string]any{"error": err})
				continue
			}
			if remote {
				onEvent(ev)
			}
		}
	}
}

// Close closes the Redis client.
func (r *RedisRelay) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}

func encodeEnvelope(origin string, ev Event) ([]byte, error) {
	return json.Marshal(envelope{Origin: origin, OwnerID: ev.OwnerID, Event: ev})
}

// decodeEnvelope reports remote=false for events this instance published.
func decodeEnvelope(origin string, raw []byte) (Event, bool, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, false, err
	}
	ev := env.Event
	ev.OwnerID = env.OwnerID
	return ev, env.Origin != origin, nil
}

var _ Relay = (*RedisRelay)(nil)
