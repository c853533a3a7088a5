package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"salon-sync/domain/event"
	"salon-sync/errors"
	"sync"
)

// Listener receives the events of the names it was registered for.
type Listener interface {
	Handle(ctx context.Context, e event.Event) error
}

// ListenerFunc adapts a plain function to a Listener.
type ListenerFunc func(ctx context.Context, e event.Event) error

func (f ListenerFunc) Handle(ctx context.Context, e event.Event) error {
	return f(ctx, e)
}

// Registration is the handle returned by On. Passing it to Off removes
// exactly this registration, even if the same listener was added twice.
type Registration struct {
	name     event.Name
	listener Listener
}

// Bus broadcasts events to in-process listeners.
//
// Emission is synchronous and follows registration order. Nothing is buffered:
// a listener registered after an event was emitted never sees it, so consumers
// fetch a snapshot first and then rely on events for increments.
//
// A failing or panicking listener is logged and skipped, the others still run.
// Bus is safe for concurrent use by multiple goroutines.
type Bus struct {
	log       *slog.Logger
	mu        sync.RWMutex
	listeners map[event.Name][]*Registration
}

func NewBus(log *slog.Logger) *Bus {
	return &Bus{log: log, listeners: make(map[event.Name][]*Registration)}
}

func (b *Bus) On(name event.Name, l Listener) *Registration {
	reg := &Registration{name: name, listener: l}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[name] = append(b.listeners[name], reg)
	return reg
}

func (b *Bus) Off(reg *Registration) {
	if reg == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.listeners[reg.name]
	for i, r := range regs {
		if r == reg {
			// Copy so that an in-flight Emit keeps iterating its own snapshot.
			next := make([]*Registration, 0, len(regs)-1)
			next = append(next, regs[:i]...)
			next = append(next, regs[i+1:]...)
			b.listeners[reg.name] = next
			break
		}
	}
	if len(b.listeners[reg.name]) == 0 {
		delete(b.listeners, reg.name)
	}
}

// Emit delivers e to every listener registered for e.Name().
func (b *Bus) Emit(ctx context.Context, e event.Event) {
	b.mu.RLock()
	regs := b.listeners[e.Name()]
	b.mu.RUnlock()

	for _, reg := range regs {
		if err := b.deliver(ctx, reg.listener, e); err != nil {
			b.log.Warn("Listener failed", "event", e.Name(), "error", err)
		}
	}
}

// Count returns the number of listeners registered for name.
func (b *Bus) Count(name event.Name) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[name])
}

func (b *Bus) deliver(ctx context.Context, l Listener, e event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errors.ErrListenerPanic, r)
		}
	}()
	return l.Handle(ctx, e)
}

// Listen registers a typed listener for the event type T.
func Listen[T event.Event](b *Bus, fn func(ctx context.Context, e T) error) *Registration {
	var zero T
	return b.On(zero.Name(), ListenerFunc(func(ctx context.Context, e event.Event) error {
		typed, ok := e.(T)
		if !ok {
			return fmt.Errorf("%w: %T for %s", errors.ErrInvalidPayload, e, zero.Name())
		}
		return fn(ctx, typed)
	}))
}
