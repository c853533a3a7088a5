package runtime

import (
	"salon-sync/domain"
	"sync"
)

// Focus tracks whether the application window has input focus and which
// chat room is open. It is fed by the UI layer.
type Focus struct {
	mu      sync.RWMutex
	focused bool
	room    domain.RoomID
	open    bool
}

func NewFocus(focused bool) *Focus {
	return &Focus{focused: focused}
}

func (f *Focus) SetFocused(focused bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focused = focused
}

func (f *Focus) HasFocus() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.focused
}

func (f *Focus) OpenRoom(room domain.RoomID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.room, f.open = room, true
}

// CloseRoom closes room if it is the one currently open.
func (f *Focus) CloseRoom(room domain.RoomID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open && f.room == room {
		f.room, f.open = 0, false
	}
}

func (f *Focus) ActiveRoom() (domain.RoomID, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.room, f.open
}

// Viewing reports whether room is open in a focused window.
func (f *Focus) Viewing(room domain.RoomID) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.focused && f.open && f.room == room
}
