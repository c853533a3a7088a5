package workers

import (
	"context"
	"fmt"
	"log/slog"
	"salon-sync/contract"
	"salon-sync/errors"
	"time"
)

// HeartbeatWorker keeps a broker session alive and detects silent failures.
// Every interval it sends a heart-beat and checks when the last inbound
// frame was seen; silence longer than tolerance fails the worker so that the
// session is torn down and reconnected.
type HeartbeatWorker struct {
	log       *slog.Logger
	conn      contract.BrokerConn
	interval  time.Duration
	tolerance time.Duration
	lastSeen  func() time.Time
}

func NewHeartbeatWorker(
	log *slog.Logger,
	conn contract.BrokerConn,
	interval, tolerance time.Duration,
	lastSeen func() time.Time,
) *HeartbeatWorker {
	return &HeartbeatWorker{
		log:       log,
		conn:      conn,
		interval:  interval,
		tolerance: tolerance,
		lastSeen:  lastSeen,
	}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if silence := time.Since(w.lastSeen()); silence > w.tolerance {
				return fmt.Errorf("%w for %s", errors.ErrHeartbeatMissed, silence.Truncate(time.Millisecond))
			}
			if err := w.conn.Heartbeat(ctx); err != nil {
				w.log.Warn("Broker unreachable for heartbeat", "err", err)
				return err
			}
		}
	}
}
