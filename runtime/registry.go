package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"salon-sync/contract"
	"salon-sync/domain"
	"salon-sync/errors"
	"sort"
	"sync"
)

// Handler processes the frames delivered on one topic.
type Handler func(ctx context.Context, frame contract.Frame) error

type topicEntry struct {
	id      string
	handler Handler
	active  bool
}

// Registry maps topics to handlers for the current connection generation.
// A topic has at most one subscription; subscribing again replaces it.
// Topics survive reconnects: Attach re-applies all of them on the new connection.
type Registry struct {
	mu     sync.RWMutex
	log    *slog.Logger
	topics map[string]*topicEntry // map topic -> subscription
	byID   map[string]string      // map subscription id -> topic
	conn   contract.BrokerConn
	seq    int
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:    log,
		topics: make(map[string]*topicEntry),
		byID:   make(map[string]string),
	}
}

// Subscribe registers handler for topic. When a connection is attached the
// subscription is sent right away, otherwise on the next Attach.
func (r *Registry) Subscribe(ctx context.Context, topic string, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.topics[topic]; ok {
		if err := r.dropLocked(ctx, old); err != nil {
			r.log.Warn("Unsubscribe of replaced subscription failed", "topic", topic, "error", err)
		}
	}

	entry := &topicEntry{id: r.nextIDLocked(), handler: handler}
	r.topics[topic] = entry
	r.byID[entry.id] = topic

	if r.conn == nil {
		return nil
	}
	if err := r.conn.Subscribe(ctx, entry.id, topic); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	entry.active = true
	return nil
}

// Unsubscribe forgets topic. Unknown topics are ignored.
func (r *Registry) Unsubscribe(ctx context.Context, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.topics[topic]
	if !ok {
		return nil
	}
	delete(r.topics, topic)
	return r.dropLocked(ctx, entry)
}

// Attach makes conn the current connection and subscribes every known topic
// on it, in a stable order.
func (r *Registry) Attach(ctx context.Context, conn contract.BrokerConn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conn = conn
	// Subscription ids are per connection.
	r.byID = make(map[string]string, len(r.topics))
	r.seq = 0

	for _, topic := range r.sortedTopicsLocked() {
		entry := r.topics[topic]
		entry.id = r.nextIDLocked()
		entry.active = false
		r.byID[entry.id] = topic
		if err := conn.Subscribe(ctx, entry.id, topic); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		entry.active = true
		r.log.Debug("Subscribed", "topic", topic, "id", entry.id)
	}
	return nil
}

// Detach marks every subscription inactive after the connection was lost.
func (r *Registry) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conn = nil
	for _, entry := range r.topics {
		entry.active = false
	}
}

// Dispatch routes frame to the handler of its subscription. Frames that
// cannot be routed or handled are dropped and logged.
func (r *Registry) Dispatch(ctx context.Context, frame contract.Frame) {
	handler, topic, ok := r.lookup(frame)
	if !ok {
		r.log.Warn("Dropping frame", "error", errors.ErrUnknownSubscriber,
			"subscription", frame.SubscriptionID, "destination", frame.Destination)
		return
	}
	if err := safeHandle(ctx, handler, frame); err != nil {
		r.log.Warn("Dropping garbled frame", "topic", topic, "error", err)
	}
}

// Subscriptions lists the known topics and whether they are active.
func (r *Registry) Subscriptions() []domain.Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := make([]domain.Subscription, 0, len(r.topics))
	for _, topic := range r.sortedTopicsLocked() {
		subs = append(subs, domain.Subscription{Topic: topic, Active: r.topics[topic].active})
	}
	return subs
}

func (r *Registry) lookup(frame contract.Frame) (Handler, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topic, ok := r.byID[frame.SubscriptionID]
	if !ok {
		topic = frame.Destination
	}
	entry, ok := r.topics[topic]
	if !ok {
		return nil, "", false
	}
	return entry.handler, topic, true
}

func (r *Registry) dropLocked(ctx context.Context, entry *topicEntry) error {
	delete(r.byID, entry.id)
	if r.conn == nil || !entry.active {
		return nil
	}
	entry.active = false
	return r.conn.Unsubscribe(ctx, entry.id)
}

func (r *Registry) nextIDLocked() string {
	id := fmt.Sprintf("sub-%d", r.seq)
	r.seq++
	return id
}

func (r *Registry) sortedTopicsLocked() []string {
	topics := make([]string, 0, len(r.topics))
	for topic := range r.topics {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

func safeHandle(ctx context.Context, handler Handler, frame contract.Frame) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", errors.ErrInvalidPayload, rec)
		}
	}()
	return handler(ctx, frame)
}
