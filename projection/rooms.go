package projection

import (
	"salon-sync/domain"
	"sort"
	"sync"
)

// RoomList is the local chat room list, most recent conversation first.
// Unread counts are not stored here; callers fill them from the unread tracker.
type RoomList struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]domain.ChatRoom
}

func NewRoomList() *RoomList {
	return &RoomList{rooms: make(map[domain.RoomID]domain.ChatRoom)}
}

// Load replaces the list with a fetched snapshot.
func (l *RoomList) Load(rooms []domain.ChatRoom) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rooms = make(map[domain.RoomID]domain.ChatRoom, len(rooms))
	for _, r := range rooms {
		l.rooms[r.ID] = r
	}
}

// Touch updates the last message preview of the message's room, creating
// the room entry when the message is the first one seen for it.
func (l *RoomList) Touch(m domain.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	room, ok := l.rooms[m.RoomID]
	if !ok {
		room = domain.ChatRoom{ID: m.RoomID}
	}
	room.Touch(m)
	l.rooms[m.RoomID] = room
}

func (l *RoomList) Get(id domain.RoomID) (domain.ChatRoom, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.rooms[id]
	return r, ok
}

// Rooms returns the rooms sorted by last message time, newest first.
func (l *RoomList) Rooms() []domain.ChatRoom {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.ChatRoom, 0, len(l.rooms))
	for _, r := range l.rooms {
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LastMessageAt.Equal(out[j].LastMessageAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out
}
