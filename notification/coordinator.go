// Package notification decides how each incoming notification is surfaced
// and keeps the in-memory notification list.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"salon-sync/contract"
	"salon-sync/domain"
	"salon-sync/domain/event"
	"salon-sync/errors"
	"salon-sync/unread"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

const DefaultAlertDuration = 3 * time.Second

// Coordinator surfaces notifications: a transient alert when the window has
// focus, and always a badge increment. It also owns the notification list
// shown in the popover and its read / delete actions.
type Coordinator struct {
	log           *slog.Logger
	api           contract.NotificationAPI
	tracker       *unread.Tracker
	focus         contract.FocusState
	emitter       contract.Emitter
	alertDuration time.Duration

	mu     sync.Mutex
	items  []domain.Notification
	alerts map[int64]*time.Timer
}

func NewCoordinator(
	log *slog.Logger,
	api contract.NotificationAPI,
	tracker *unread.Tracker,
	focus contract.FocusState,
	emitter contract.Emitter,
	alertDuration time.Duration,
) *Coordinator {
	if alertDuration <= 0 {
		alertDuration = DefaultAlertDuration
	}
	return &Coordinator{
		log:           log,
		api:           api,
		tracker:       tracker,
		focus:         focus,
		emitter:       emitter,
		alertDuration: alertDuration,
		alerts:        make(map[int64]*time.Timer),
	}
}

// Load fetches the notification list and the authoritative unread count.
func (c *Coordinator) Load(ctx context.Context) error {
	items, err := c.api.List(ctx)
	if err != nil {
		return fmt.Errorf("fetch notifications: %w", err)
	}
	sortNewestFirst(items)

	c.mu.Lock()
	c.items = items
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.emitter.Emit(ctx, event.NotificationsChanged{Items: snapshot})

	return c.tracker.RefreshNotifications(ctx)
}

// Deliver handles a pushed notification.
func (c *Coordinator) Deliver(ctx context.Context, n domain.Notification) {
	c.mu.Lock()
	if lo.ContainsBy(c.items, func(it domain.Notification) bool { return it.ID == n.ID }) {
		c.mu.Unlock()
		c.log.Debug("Duplicate notification ignored", "id", n.ID)
		return
	}
	c.items = append([]domain.Notification{n}, c.items...)
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.emitter.Emit(ctx, event.NotificationsChanged{Items: snapshot})

	if !n.Read {
		c.tracker.Increment(ctx, domain.NotificationScope())
	}
	if c.focus.HasFocus() {
		c.raise(ctx, n)
	}
}

// Open handles a click on an alert or a list entry: the notification is
// marked read, its alert is closed and a navigation intent is emitted.
func (c *Coordinator) Open(ctx context.Context, id int64) error {
	c.mu.Lock()
	idx := c.indexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d", errors.ErrUnknownNotification, id)
	}
	n := c.items[idx]
	wasUnread := !n.Read
	c.items[idx].Read = true
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.dismiss(ctx, id)
	if wasUnread {
		c.emitter.Emit(ctx, event.NotificationsChanged{Items: snapshot})
		c.tracker.Decrement(ctx, domain.NotificationScope())
		if err := c.api.MarkRead(ctx, id); err != nil {
			c.log.Warn("Mark notification read failed", "id", id, "error", err)
		}
	}
	c.emitter.Emit(ctx, event.NavigationRequested{Kind: n.Kind, ReferenceID: n.ReferenceID})
	return nil
}

// MarkAllRead marks the whole feed read.
func (c *Coordinator) MarkAllRead(ctx context.Context) error {
	if err := c.tracker.MarkRead(ctx, domain.NotificationScope()); err != nil {
		return err
	}
	c.mu.Lock()
	for i := range c.items {
		c.items[i].Read = true
	}
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.emitter.Emit(ctx, event.NotificationsChanged{Items: snapshot})
	return nil
}

// Delete removes notifications on the backend and from the local list.
// Deleted unread notifications leave the badge count.
func (c *Coordinator) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.api.Delete(ctx, ids); err != nil {
		return fmt.Errorf("delete notifications: %w", err)
	}

	c.mu.Lock()
	removed := lo.Filter(c.items, func(n domain.Notification, _ int) bool { return lo.Contains(ids, n.ID) })
	c.items = lo.Reject(c.items, func(n domain.Notification, _ int) bool { return lo.Contains(ids, n.ID) })
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	for _, n := range removed {
		c.dismiss(ctx, n.ID)
		if !n.Read {
			c.tracker.Decrement(ctx, domain.NotificationScope())
		}
	}
	c.emitter.Emit(ctx, event.NotificationsChanged{Items: snapshot})
	return nil
}

func (c *Coordinator) Items() []domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Reset drops the list and cancels pending alert timers.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, timer := range c.alerts {
		timer.Stop()
		delete(c.alerts, id)
	}
	c.items = nil
}

func (c *Coordinator) raise(ctx context.Context, n domain.Notification) {
	c.emitter.Emit(ctx, event.AlertRaised{
		Notification: n,
		Severity:     n.Kind.Severity(),
		Duration:     c.alertDuration,
	})

	detached := context.WithoutCancel(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.alerts[n.ID]; ok {
		old.Stop()
	}
	c.alerts[n.ID] = time.AfterFunc(c.alertDuration, func() { c.dismiss(detached, n.ID) })
}

// dismiss closes the alert of id when one is showing.
func (c *Coordinator) dismiss(ctx context.Context, id int64) {
	c.mu.Lock()
	timer, ok := c.alerts[id]
	delete(c.alerts, id)
	c.mu.Unlock()
	if !ok {
		return
	}
	timer.Stop()
	c.emitter.Emit(ctx, event.AlertDismissed{NotificationID: id})
}

func (c *Coordinator) indexLocked(id int64) int {
	_, idx, ok := lo.FindIndexOf(c.items, func(n domain.Notification) bool { return n.ID == id })
	if !ok {
		return -1
	}
	return idx
}

func (c *Coordinator) snapshotLocked() []domain.Notification {
	out := make([]domain.Notification, len(c.items))
	copy(out, c.items)
	return out
}

func sortNewestFirst(items []domain.Notification) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
