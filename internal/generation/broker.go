package generation

import (
	"context"
	"sync"

	"cvbuilder-backend/internal/shared/telemetry"
)

const defaultBuffer = 16

// Subscription is a stream of events. C is closed after a terminal session
// event or when Close is called.
type Subscription struct {
	C <-chan Event

	ch     chan Event
	owner  string
	closed bool
	topic  *topic
	broker *Broker
}

// Close stops delivery and releases the subscription.
func (s *Subscription) Close() {
	if s == nil || s.broker == nil {
		return
	}
	b := s.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	s.topic.remove(s)
	b.gc(s.topic)
}

type topic struct {
	key     string
	session bool
	subs    map[*Subscription]struct{}
	final   *Event
	known   bool
}

func (t *topic) remove(s *Subscription) {
	if _, ok := t.subs[s]; ok {
		delete(t.subs, s)
	}
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Broker fans events out to per-session and per-owner subscribers and,
// when a Relay is set, to other instances.
type Broker struct {
	Buffer int
	Relay  Relay

	mu       sync.Mutex
	sessions map[string]*topic
	owners   map[string]*topic
	closing  bool
}

// NewBroker constructs a Broker with per-subscriber buffers of size buffer.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Broker{
		Buffer:   buffer,
		sessions: make(map[string]*topic),
		owners:   make(map[string]*topic),
	}
}

// Start relays remote events into local subscribers until ctx ends.
func (b *Broker) Start(ctx context.Context) error {
	if b.Relay == nil {
		return nil
	}
	return b.Relay.Start(ctx, b.deliver)
}

// Publish delivers ev locally and forwards it to the relay.
func (b *Broker) Publish(ctx context.Context, ev Event) {
	b.deliver(ev)
	if b.Relay != nil {
		if err := b.Relay.Publish(ctx, ev); err != nil {
			telemetry.Warn("generation.relay.publish_failed", map[string]any{
				"session_id": ev.SessionID,
				"type":       string(ev.Type),
				"error":      err,
			})
		}
	}
}

// Track marks a session as owned by this instance so late subscribers are
// accepted.
func (b *Broker) Track(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessionTopic(sessionID).known = true
}

// Forget drops all state for a finished session.
func (b *Broker) Forget(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.sessions[sessionID]
	if !ok {
		return
	}
	for s := range t.subs {
		t.remove(s)
	}
	delete(b.sessions, sessionID)
}

// CloseSubscribers ends every open stream and makes later subscriptions
// start closed. Used on shutdown so long-lived SSE responses return.
func (b *Broker) CloseSubscribers() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closing = true
	for _, topics := range []map[string]*topic{b.sessions, b.owners} {
		for _, t := range topics {
			for s := range t.subs {
				t.remove(s)
			}
			b.gc(t)
		}
	}
}

// SubscribeSession streams events of one session. Events belonging to other
// owners are filtered out. initial, when set, is queued first. A session
// that already ended yields its terminal event and a closed channel.
func (b *Broker) SubscribeSession(sessionID, ownerID string, initial *Event) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.sessionTopic(sessionID)
	sub := b.newSub(t, ownerID)
	if b.closing {
		t.remove(sub)
		b.gc(t)
		return sub
	}
	if t.final != nil {
		if t.final.OwnerID == ownerID {
			sub.ch <- *t.final
		}
		t.remove(sub)
		return sub
	}
	if initial != nil {
		sub.ch <- *initial
	}
	t.subs[sub] = struct{}{}
	return sub
}

// SubscribeOwner streams notifications addressed to ownerID.
func (b *Broker) SubscribeOwner(ownerID string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.owners[ownerID]
	if !ok {
		t = &topic{key: ownerID, subs: map[*Subscription]struct{}{}}
		b.owners[ownerID] = t
	}
	sub := b.newSub(t, ownerID)
	if b.closing {
		t.remove(sub)
		b.gc(t)
		return sub
	}
	t.subs[sub] = struct{}{}
	return sub
}

func (b *Broker) deliver(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ev.Type == EventNotification {
		if t, ok := b.owners[ev.OwnerID]; ok {
			b.fanout(t, ev)
		}
		return
	}
	if ev.SessionID == "" {
		return
	}
	t, ok := b.sessions[ev.SessionID]
	if !ok || t.final != nil {
		return
	}
	b.fanout(t, ev)
	if ev.Terminal() {
		final := ev
		t.final = &final
		for s := range t.subs {
			t.remove(s)
		}
		b.gc(t)
	}
}

// fanout sends without blocking. Droppable events are skipped for a full
// buffer; must-deliver events evict the oldest queued event instead.
func (b *Broker) fanout(t *topic, ev Event) {
	for s := range t.subs {
		if s.owner != "" && ev.OwnerID != s.owner {
			continue
		}
		if !ev.mustDeliver() {
			select {
			case s.ch <- ev:
			default:
			}
			continue
		}
		for sent := false; !sent; {
			select {
			case s.ch <- ev:
				sent = true
			default:
				select {
				case <-s.ch:
				default:
				}
			}
		}
	}
}

func (b *Broker) newSub(t *topic, ownerID string) *Subscription {
	ch := make(chan Event, b.Buffer+1)
	return &Subscription{C: ch, ch: ch, owner: ownerID, topic: t, broker: b}
}

func (b *Broker) sessionTopic(id string) *topic {
	t, ok := b.sessions[id]
	if !ok {
		t = &topic{key: id, session: true, subs: map[*Subscription]struct{}{}}
		b.sessions[id] = t
	}
	return t
}

// gc drops topics nobody needs any more. Sessions run by this instance are
// kept until Forget. Caller holds b.mu.
func (b *Broker) gc(t *topic) {
	if len(t.subs) > 0 {
		return
	}
	if t.session {
		if !t.known && b.sessions[t.key] == t {
			delete(b.sessions, t.key)
		}
		return
	}
	if b.owners[t.key] == t {
		delete(b.owners, t.key)
	}
}
