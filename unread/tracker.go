// Package unread keeps the unread counters of chat rooms and of the
// notification feed.
package unread

import (
	"context"
	"fmt"
	"log/slog"
	"salon-sync/contract"
	"salon-sync/domain"
	"salon-sync/domain/event"
	"sync"
	"time"
)

// DefaultStaleAfter is how long the notification count may go without a push
// update before a focus or timer tick re-fetches it.
const DefaultStaleAfter = 30 * time.Second

type ReadState string

const (
	StateUnread      ReadState = "unread"
	StatePendingRead ReadState = "pending-read"
	StateRead        ReadState = "read"
)

type counter struct {
	count int
	state ReadState
}

// Tracker maintains one counter per room plus the notification counter.
//
// Push events apply deltas, server counts (room list, polling) replace the
// local value: on conflict the server count wins. Counts never go below zero.
//
// MarkRead is optimistic and two-phase: the counter is zeroed and flagged
// pending-read, then becomes read when the backend confirms, or goes back to
// unread with its previous count when the backend call fails.
type Tracker struct {
	log           *slog.Logger
	chat          contract.ChatAPI
	notifications contract.NotificationAPI
	emitter       contract.Emitter
	staleAfter    time.Duration
	now           func() time.Time

	mu         sync.Mutex
	reader     domain.SenderType
	rooms      map[domain.RoomID]*counter
	feed       counter
	lastUpdate time.Time
}

func NewTracker(
	log *slog.Logger,
	chat contract.ChatAPI,
	notifications contract.NotificationAPI,
	emitter contract.Emitter,
	staleAfter time.Duration,
) *Tracker {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Tracker{
		log:           log,
		chat:          chat,
		notifications: notifications,
		emitter:       emitter,
		staleAfter:    staleAfter,
		now:           time.Now,
		rooms:         make(map[domain.RoomID]*counter),
		feed:          counter{state: StateRead},
	}
}

// SetReader sets the role marking rooms as read, the local identity's role.
func (t *Tracker) SetReader(reader domain.SenderType) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reader = reader
}

func (t *Tracker) Count(scope domain.Scope) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counterLocked(scope).count
}

func (t *Tracker) State(scope domain.Scope) ReadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counterLocked(scope).state
}

// Total returns the sum of every room counter.
func (t *Tracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for _, c := range t.rooms {
		total += c.count
	}
	return total
}

// Increment adds one unread item to scope, typically on a push event.
func (t *Tracker) Increment(ctx context.Context, scope domain.Scope) {
	t.mu.Lock()
	c := t.counterLocked(scope)
	c.count++
	if c.state != StatePendingRead {
		c.state = StateUnread
	}
	if scope.Notifications {
		t.lastUpdate = t.now()
	}
	changed := t.changedLocked(scope)
	t.mu.Unlock()
	t.emitter.Emit(ctx, changed)
}

// Decrement removes one unread item from scope, never going below zero.
func (t *Tracker) Decrement(ctx context.Context, scope domain.Scope) {
	t.mu.Lock()
	c := t.counterLocked(scope)
	if c.count > 0 {
		c.count--
	}
	if c.count == 0 && c.state == StateUnread {
		c.state = StateRead
	}
	changed := t.changedLocked(scope)
	t.mu.Unlock()
	t.emitter.Emit(ctx, changed)
}

// Apply replaces the local count of scope with an authoritative server count.
func (t *Tracker) Apply(ctx context.Context, scope domain.Scope, serverCount int) {
	t.mu.Lock()
	t.applyLocked(scope, serverCount)
	changed := t.changedLocked(scope)
	t.mu.Unlock()
	t.emitter.Emit(ctx, changed)
}

// Seed applies the unread counts carried by a fetched room list.
func (t *Tracker) Seed(ctx context.Context, rooms []domain.ChatRoom) {
	for _, r := range rooms {
		t.Apply(ctx, domain.RoomScope(r.ID), r.UnreadCount)
	}
}

// Zero clears a room counter after a message-read event, without calling
// the backend. It is applied even for rooms that are not displayed.
func (t *Tracker) Zero(ctx context.Context, scope domain.Scope) {
	t.Apply(ctx, scope, 0)
}

// MarkRead marks scope as read, optimistically. It is a no-op when the scope
// is already read or a mark-read is pending.
func (t *Tracker) MarkRead(ctx context.Context, scope domain.Scope) error {
	t.mu.Lock()
	c := t.counterLocked(scope)
	if c.state == StatePendingRead || (c.state == StateRead && c.count == 0) {
		t.mu.Unlock()
		return nil
	}
	previous := c.count
	c.count = 0
	c.state = StatePendingRead
	reader := t.reader
	pending := t.changedLocked(scope)
	t.mu.Unlock()
	t.emitter.Emit(ctx, pending)

	err := t.markReadRemote(ctx, scope, reader)

	t.mu.Lock()
	c = t.counterLocked(scope)
	if c.state != StatePendingRead {
		// A server count arrived meanwhile and already decided.
		t.mu.Unlock()
		return err
	}
	if err != nil {
		c.state = StateUnread
		// Items pushed while pending are kept on top of the reverted count.
		c.count += previous
	} else if c.count > 0 {
		c.state = StateUnread
	} else {
		c.state = StateRead
	}
	done := t.changedLocked(scope)
	t.mu.Unlock()
	t.emitter.Emit(ctx, done)

	if err != nil {
		t.log.Warn("Mark read failed, reverted", "scope", scope.String(), "error", err)
		t.emitter.Emit(ctx, event.MarkReadFailed{Scope: scope, Reason: err.Error()})
		return fmt.Errorf("mark %s read: %w", scope, err)
	}
	return nil
}

// RefreshNotifications fetches the authoritative notification count and
// replaces the local one.
func (t *Tracker) RefreshNotifications(ctx context.Context) error {
	n, err := t.notifications.UnreadCount(ctx)
	if err != nil {
		return fmt.Errorf("fetch notification count: %w", err)
	}
	t.Apply(ctx, domain.NotificationScope(), n)
	return nil
}

// RefreshIfStale re-fetches the notification count when no push or poll has
// updated it within the stale interval. It reports whether a fetch happened.
func (t *Tracker) RefreshIfStale(ctx context.Context) (bool, error) {
	t.mu.Lock()
	stale := t.now().Sub(t.lastUpdate) >= t.staleAfter
	t.mu.Unlock()
	if !stale {
		return false, nil
	}
	return true, t.RefreshNotifications(ctx)
}

// Reset forgets every counter, used when the identity changes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rooms = make(map[domain.RoomID]*counter)
	t.feed = counter{state: StateRead}
	t.lastUpdate = time.Time{}
}

func (t *Tracker) markReadRemote(ctx context.Context, scope domain.Scope, reader domain.SenderType) error {
	if scope.Notifications {
		return t.notifications.MarkAllRead(ctx)
	}
	return t.chat.MarkRoomRead(ctx, scope.Room, reader)
}

func (t *Tracker) applyLocked(scope domain.Scope, serverCount int) {
	c := t.counterLocked(scope)
	c.count = max(0, serverCount)
	if c.count == 0 {
		c.state = StateRead
	} else {
		c.state = StateUnread
	}
	if scope.Notifications {
		t.lastUpdate = t.now()
	}
}

func (t *Tracker) counterLocked(scope domain.Scope) *counter {
	if scope.Notifications {
		return &t.feed
	}
	c, ok := t.rooms[scope.Room]
	if !ok {
		c = &counter{state: StateRead}
		t.rooms[scope.Room] = c
	}
	return c
}

func (t *Tracker) changedLocked(scope domain.Scope) event.UnreadChanged {
	c := t.counterLocked(scope)
	return event.UnreadChanged{Scope: scope, Count: c.count, Pending: c.state == StatePendingRead}
}
