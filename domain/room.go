package domain

import "time"

type RoomID int64

// ChatRoom is a conversation between one user and one salon.
// UnreadCount is derived state owned by the unread tracker.
type ChatRoom struct {
	ID             RoomID
	ParticipantIDs []int64
	LastMessage    string
	LastMessageAt  time.Time
	UnreadCount    int
}

// Touch records m as the latest message of the room when it is not older
// than the one already known.
func (r *ChatRoom) Touch(m Message) {
	if m.SentAt.Before(r.LastMessageAt) {
		return
	}
	r.LastMessage = m.Text
	r.LastMessageAt = m.SentAt
}
