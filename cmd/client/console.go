package main

import (
	"context"
	"fmt"
	"io"
	"salon-sync/contract"
	"salon-sync/domain"
	"salon-sync/domain/event"
	"time"

	"github.com/gookit/color"
)

// console prints bus events as one colored line each.
type console struct {
	out io.Writer
}

var _ contract.EventSink = (*console)(nil)

func newConsole(out io.Writer) *console {
	return &console{out: out}
}

var severityStyle = map[domain.Severity]color.Style{
	domain.SeverityInfo:    color.New(color.FgCyan),
	domain.SeveritySuccess: color.New(color.FgGreen),
	domain.SeverityWarning: color.New(color.FgYellow),
}

func (c *console) Consume(_ context.Context, e event.Event) error {
	stamp := color.Gray.Render(time.Now().Format("15:04:05"))
	var line string
	switch e := e.(type) {
	case event.ConnectionChanged:
		if e.Connected {
			line = color.Green.Render("connected as " + e.Identity.String())
		} else {
			line = color.Red.Render("disconnected, retrying")
		}
	case event.TimelineChanged:
		line = fmt.Sprintf("room #%d: %d messages", e.Room, len(e.Messages))
		if n := len(e.Messages); n > 0 {
			last := e.Messages[n-1]
			line += fmt.Sprintf(" | last [%s] %s: %s", last.Key(), last.SenderType, last.Text)
		}
	case event.UnreadChanged:
		line = fmt.Sprintf("unread %s = %d", e.Scope, e.Count)
		if e.Pending {
			line += color.Gray.Render(" (pending)")
		}
	case event.MarkReadFailed:
		line = color.Red.Render(fmt.Sprintf("mark read of %s failed: %s", e.Scope, e.Reason))
	case event.TranslationChanged:
		line = fmt.Sprintf("translation %s: %s %s", e.MessageKey, e.State.Current(), e.State.Text+e.State.Reason)
	case event.AlertRaised:
		style, ok := severityStyle[e.Severity]
		if !ok {
			style = severityStyle[domain.SeverityInfo]
		}
		line = style.Render(fmt.Sprintf("[%s] %s: %s", e.Notification.Kind, e.Notification.Title, e.Notification.Body))
	case event.AlertDismissed:
		line = color.Gray.Render(fmt.Sprintf("alert %d dismissed", e.NotificationID))
	case event.NavigationRequested:
		line = color.Bold.Render(fmt.Sprintf("navigate to %s #%d", e.Kind, e.ReferenceID))
	case event.NotificationsChanged:
		line = fmt.Sprintf("%d notifications", len(e.Items))
	default:
		line = string(e.Name())
	}
	_, err := fmt.Fprintf(c.out, "%s %s\n", stamp, line)
	return err
}
