// Package event defines the events published on the local event bus.
// Each event name maps to exactly one concrete payload type.
package event

import (
	"salon-sync/domain"
	"time"
)

type Name string

const (
	MessageName        Name = "message"
	MessageReadName    Name = "message-read"
	NotificationName   Name = "notification"
	ConnectionName     Name = "connection-change"
	TimelineName       Name = "timeline-changed"
	UnreadName         Name = "unread-changed"
	MarkReadFailedName Name = "mark-read-failed"
	TranslationName    Name = "translation-changed"
	AlertRaisedName    Name = "alert-raised"
	AlertDismissedName Name = "alert-dismissed"
	NavigationName     Name = "navigation-requested"
	NotificationsName  Name = "notifications-changed"
)

type Event interface {
	Name() Name
}

// MessageReceived is an inbound message pushed by the broker.
type MessageReceived struct {
	Message domain.Message
}

func (MessageReceived) Name() Name { return MessageName }

// MessageRead tells that the messages of a room have been read by Reader.
type MessageRead struct {
	Room   domain.RoomID
	Reader domain.SenderType
	At     time.Time
}

func (MessageRead) Name() Name { return MessageReadName }

type NotificationReceived struct {
	Notification domain.Notification
}

func (NotificationReceived) Name() Name { return NotificationName }

type ConnectionChanged struct {
	Connected bool
	Identity  domain.Identity
}

func (ConnectionChanged) Name() Name { return ConnectionName }
