package event

import (
	"salon-sync/domain"
	"time"
)

// TimelineChanged carries the full visible timeline of a room after a change.
type TimelineChanged struct {
	Room     domain.RoomID
	Messages []domain.Message
}

func (TimelineChanged) Name() Name { return TimelineName }

type UnreadChanged struct {
	Scope   domain.Scope
	Count   int
	Pending bool
}

func (UnreadChanged) Name() Name { return UnreadName }

// MarkReadFailed is published when an optimistic mark-read was reverted.
type MarkReadFailed struct {
	Scope  domain.Scope
	Reason string
}

func (MarkReadFailed) Name() Name { return MarkReadFailedName }

type TranslationChanged struct {
	MessageKey string
	State      domain.TranslationState
}

func (TranslationChanged) Name() Name { return TranslationName }

type AlertRaised struct {
	Notification domain.Notification
	Severity     domain.Severity
	Duration     time.Duration
}

func (AlertRaised) Name() Name { return AlertRaisedName }

type AlertDismissed struct {
	NotificationID int64
}

func (AlertDismissed) Name() Name { return AlertDismissedName }

// NavigationRequested is consumed by routing.
type NavigationRequested struct {
	Kind        domain.NotificationKind
	ReferenceID int64
}

func (NavigationRequested) Name() Name { return NavigationName }

type NotificationsChanged struct {
	Items []domain.Notification
}

func (NotificationsChanged) Name() Name { return NotificationsName }
