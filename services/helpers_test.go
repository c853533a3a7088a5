package services

import (
	"context"
	"salon-sync/domain/event"
	"salon-sync/runtime"
	"sync"
)

// recorder keeps every event it is registered for, in emission order.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func record(bus *runtime.Bus, names ...event.Name) *recorder {
	r := &recorder{}
	for _, name := range names {
		bus.On(name, r)
	}
	return r
}

func (r *recorder) Handle(_ context.Context, e event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) named(name event.Name) []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.Event
	for _, e := range r.events {
		if e.Name() == name {
			out = append(out, e)
		}
	}
	return out
}
