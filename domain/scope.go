package domain

import "fmt"

// Scope is what an unread counter counts: one chat room or the
// notification feed.
type Scope struct {
	Room          RoomID
	Notifications bool
}

func RoomScope(id RoomID) Scope {
	return Scope{Room: id}
}

func NotificationScope() Scope {
	return Scope{Notifications: true}
}

func (s Scope) String() string {
	if s.Notifications {
		return "notifications"
	}
	return fmt.Sprintf("room:%d", s.Room)
}
