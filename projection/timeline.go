// Package projection builds local read models from observed events.
// Handles ordering, deduplication, and projections.
// Does not emit events or interact with UI directly.
package projection

import (
	"salon-sync/domain"
	"sync"
	"time"
)

// DedupWindow is how close in time an echoed message must be to a local one
// to be considered the same logical send.
const DedupWindow = 5 * time.Second

type Match string

const (
	MatchNone      Match = "none"
	MatchID        Match = "id"
	MatchClientID  Match = "client-id"
	MatchHeuristic Match = "heuristic"
)

// Outcome describes what Reconcile did with an inbound message.
type Outcome struct {
	Replaced bool
	Index    int
	Match    Match
	Previous domain.Message
}

// Timeline holds the visible message timeline of every known room and makes
// sure a logical send appears once, whether it was inserted optimistically,
// echoed by the broker, or delivered again after a reconnect.
type Timeline struct {
	mu             sync.RWMutex
	window         time.Duration
	mergeConfirmed bool
	rooms          map[domain.RoomID][]domain.Message
}

type Option func(*Timeline)

// WithWindow overrides DedupWindow.
func WithWindow(window time.Duration) Option {
	return func(t *Timeline) { t.window = window }
}

// WithConfirmedMerge lets the content heuristic also pair two messages that
// both carry a server id, so identical texts from the same sender type sent
// within the window collapse into one entry.
func WithConfirmedMerge() Option {
	return func(t *Timeline) { t.mergeConfirmed = true }
}

func NewTimeline(opts ...Option) *Timeline {
	t := &Timeline{window: DedupWindow, rooms: make(map[domain.RoomID][]domain.Message)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Load replaces the timeline of room with a fetched history snapshot.
// Provisional entries not yet confirmed are kept at the end.
func (t *Timeline) Load(room domain.RoomID, history []domain.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	messages := make([]domain.Message, 0, len(history))
	messages = append(messages, history...)
	for _, m := range t.rooms[room] {
		if m.IsProvisional() {
			messages = append(messages, m)
		}
	}
	t.rooms[room] = messages
}

// AddOptimistic appends a locally created message before the server confirmed it.
func (t *Timeline) AddOptimistic(m domain.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rooms[m.RoomID] = append(t.rooms[m.RoomID], m)
}

// Reconcile merges an inbound message into its room timeline. An existing
// entry for the same logical message is replaced in place, otherwise the
// message is appended.
//
// Matching order: same server id (re-delivery), same client correlation id,
// then the content heuristic: same text, same sender type, sent less than
// the dedup window apart. Unless WithConfirmedMerge is set, the heuristic
// only considers provisional entries: two messages that both carry a server
// id are never merged.
func (t *Timeline) Reconcile(m domain.Message) Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	messages := t.rooms[m.RoomID]
	idx, match := t.find(messages, m)
	if idx < 0 {
		t.rooms[m.RoomID] = append(messages, m)
		return Outcome{Index: len(messages), Match: MatchNone}
	}

	previous := messages[idx]
	if m.ClientID == "" {
		m.ClientID = previous.ClientID
	}
	messages[idx] = m
	return Outcome{Replaced: true, Index: idx, Match: match, Previous: previous}
}

// Remove drops the entry identified by key, typically an optimistic message
// whose publish failed.
func (t *Timeline) Remove(room domain.RoomID, key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	messages := t.rooms[room]
	for i, m := range messages {
		if m.Key() == key {
			t.rooms[room] = append(messages[:i:i], messages[i+1:]...)
			return true
		}
	}
	return false
}

// MarkRead flags every message of room sent by sender as read.
func (t *Timeline) MarkRead(room domain.RoomID, sender domain.SenderType) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	changed := 0
	for i := range t.rooms[room] {
		m := &t.rooms[room][i]
		if m.SenderType == sender && !m.Read {
			m.Read = true
			changed++
		}
	}
	return changed
}

// Snapshot returns a copy of the visible timeline of room.
func (t *Timeline) Snapshot(room domain.RoomID) []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	messages := t.rooms[room]
	out := make([]domain.Message, len(messages))
	copy(out, messages)
	return out
}

// Forget drops every room, used on identity switch.
func (t *Timeline) Forget() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rooms = make(map[domain.RoomID][]domain.Message)
}

func (t *Timeline) find(messages []domain.Message, m domain.Message) (int, Match) {
	if m.ID != 0 {
		for i, e := range messages {
			if e.ID == m.ID {
				return i, MatchID
			}
		}
	}
	if m.ClientID != "" {
		for i, e := range messages {
			if e.ClientID == m.ClientID {
				return i, MatchClientID
			}
		}
	}
	for i, e := range messages {
		if !t.mergeConfirmed && !e.IsProvisional() && !m.IsProvisional() {
			continue
		}
		if e.Text == m.Text && e.SenderType == m.SenderType && t.within(e.SentAt, m.SentAt) {
			return i, MatchHeuristic
		}
	}
	return -1, MatchNone
}

func (t *Timeline) within(a, b time.Time) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d < t.window
}
