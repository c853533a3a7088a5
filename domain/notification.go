package domain

import "time"

type NotificationKind string

const (
	KindChat        NotificationKind = "CHAT"
	KindReservation NotificationKind = "RESERVATION"
	KindReview      NotificationKind = "REVIEW"
	KindOther       NotificationKind = "OTHER"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
)

// Severity of the transient alert shown for this kind of notification.
func (k NotificationKind) Severity() Severity {
	switch k {
	case KindReservation:
		return SeveritySuccess
	case KindReview:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Notification is created by the backend and only ever mutated through
// mark-read or delete.
type Notification struct {
	ID          int64
	Kind        NotificationKind
	Title       string
	Body        string
	Read        bool
	ReferenceID int64
	CreatedAt   time.Time
}
