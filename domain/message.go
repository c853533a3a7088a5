// Package domain contains core concepts of the salon messaging client.
// This file defines Message and Photo and the rules used to identify them.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"strconv"
	"time"
)

type SenderType string

const (
	SenderUser  SenderType = "USER"
	SenderSalon SenderType = "SALON"
)

func (s SenderType) Valid() bool {
	return s == SenderUser || s == SenderSalon
}

// Photo is an uploaded image attached to exactly one message.
type Photo struct {
	PhotoID int64
	URL     string
}

// Message is a chat message as seen by the local timeline.
// ID is zero until the server has assigned one; until then the message is
// provisional and identified by its client correlation id.
type Message struct {
	ID         int64
	ClientID   string
	RoomID     RoomID
	SenderType SenderType
	SenderID   int64
	Text       string
	SentAt     time.Time
	Read       bool
	Photos     []Photo
}

func (m Message) IsProvisional() bool {
	return m.ID == 0
}

// Key identifies the message for per-message state (translation, UI rows).
func (m Message) Key() string {
	if m.ID != 0 {
		return strconv.FormatInt(m.ID, 10)
	}
	return m.ClientID
}
