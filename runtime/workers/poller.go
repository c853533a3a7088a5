package workers

import (
	"context"
	"log/slog"
	"time"
)

// Refresher re-fetches a server count when the local one went stale.
type Refresher interface {
	RefreshIfStale(ctx context.Context) (bool, error)
}

// UnreadPoller is the polling fallback of the notification badge: on every
// tick, and whenever Trigger is called (window focus), it asks the refresher
// to re-fetch the count if no push updated it recently.
type UnreadPoller struct {
	log       *slog.Logger
	refresher Refresher
	interval  time.Duration
	trigger   chan struct{}
}

func NewUnreadPoller(log *slog.Logger, refresher Refresher, interval time.Duration) *UnreadPoller {
	return &UnreadPoller{
		log:       log,
		refresher: refresher,
		interval:  interval,
		trigger:   make(chan struct{}, 1),
	}
}

// Trigger asks for a check as soon as possible. It never blocks; triggers
// arriving while one is already queued are merged.
func (p *UnreadPoller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Run polls until ctx is done. Fetch failures are logged and retried on the
// next tick.
func (p *UnreadPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-p.trigger:
		}
		fetched, err := p.refresher.RefreshIfStale(ctx)
		if err != nil {
			p.log.Warn("Unread count refresh failed", "error", err)
			continue
		}
		if fetched {
			p.log.Debug("Unread count refreshed from backend")
		}
	}
}
