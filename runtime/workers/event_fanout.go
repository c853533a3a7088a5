package workers

import (
	"context"
	"log/slog"
	"salon-sync/contract"
	"salon-sync/domain/event"
)

// EventFanout forwards bus events to sinks from its own goroutine, so that
// slow consumers (terminal output, logs) never hold the broker read loop.
//
// It provides best-effort fan-out with no guarantees regarding delivery or
// retries: when the buffer is full the event is dropped and logged.
//
// EventFanout is safe for concurrent use by multiple goroutines.
type EventFanout struct {
	log    *slog.Logger
	events chan event.Event
	sinks  []contract.EventSink
}

func NewEventFanout(log *slog.Logger, bufferSize int, sinks ...contract.EventSink) *EventFanout {
	return &EventFanout{log: log, events: make(chan event.Event, bufferSize), sinks: sinks}
}

// Handle queues e for the sinks. It is meant to be registered on the bus.
func (w *EventFanout) Handle(_ context.Context, e event.Event) error {
	select {
	case w.events <- e:
	default:
		w.log.Debug("Fan-out buffer full, event lost", "event", e.Name())
	}
	return nil
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case e := <-w.events:
			w.Fanout(ctx, e)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fan-out")
			return nil
		}
	}
}

// Fanout One sink for each event
func (w *EventFanout) Fanout(ctx context.Context, e event.Event) {
	for _, sink := range w.sinks {
		if err := sink.Consume(ctx, e); err != nil {
			w.log.Warn("Sink failed", "event", e.Name(), "error", err)
		}
	}
}
