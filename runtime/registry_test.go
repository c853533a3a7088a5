package runtime

import (
	"context"
	"log/slog"
	"salon-sync/contract"
	"salon-sync/domain"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return NewRegistry(logs.GetLoggerFromLevel(slog.LevelDebug))
}

func recordingHandler(got *[]string) Handler {
	return func(_ context.Context, f contract.Frame) error {
		*got = append(*got, string(f.Body))
		return nil
	}
}

func TestRegistry_Subscribe_BeforeConnection_IsPending(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	registry := newTestRegistry()

	// Given a subscription registered while offline
	req.NoError(registry.Subscribe(ctx, "/user/1/queue/messages", func(context.Context, contract.Frame) error { return nil }))
	req.Equal([]domain.Subscription{{Topic: "/user/1/queue/messages", Active: false}}, registry.Subscriptions())

	// When a connection is attached
	conn := newFakeConn()
	req.NoError(registry.Attach(ctx, conn))

	// Then it is sent and becomes active
	req.Equal([]string{"/user/1/queue/messages"}, conn.subscriptions())
	req.True(registry.Subscriptions()[0].Active)
}

func TestRegistry_Subscribe_SameTopic_ReplacesHandler(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	registry := newTestRegistry()
	conn := newFakeConn()
	req.NoError(registry.Attach(ctx, conn))

	var first, second []string
	req.NoError(registry.Subscribe(ctx, "/topic/rooms/7", recordingHandler(&first)))
	req.NoError(registry.Subscribe(ctx, "/topic/rooms/7", recordingHandler(&second)))

	// Then a single subscription remains and frames reach the new handler
	req.Len(registry.Subscriptions(), 1)
	req.Equal([]string{"/topic/rooms/7"}, conn.unsubscribed)
	registry.Dispatch(ctx, contract.Frame{SubscriptionID: conn.idOf("/topic/rooms/7"), Body: []byte("hi")})
	req.Empty(first)
	req.Equal([]string{"hi"}, second)
}

func TestRegistry_Attach_ResubscribesAfterReconnect(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	registry := newTestRegistry()
	noop := func(context.Context, contract.Frame) error { return nil }

	first := newFakeConn()
	req.NoError(registry.Attach(ctx, first))
	req.NoError(registry.Subscribe(ctx, "/user/1/queue/notifications", noop))
	req.NoError(registry.Subscribe(ctx, "/user/1/queue/messages", noop))

	// When the connection drops and a new one is attached
	registry.Detach()
	req.False(registry.Subscriptions()[0].Active)
	second := newFakeConn()
	req.NoError(registry.Attach(ctx, second))

	// Then every topic is re-applied, in a stable order
	req.Equal([]string{"/user/1/queue/messages", "/user/1/queue/notifications"}, second.subscriptions())
	for _, sub := range registry.Subscriptions() {
		req.True(sub.Active)
	}
}

func TestRegistry_Attach_Failure(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	registry := newTestRegistry()
	req.NoError(registry.Subscribe(ctx, "/topic/rooms/1", func(context.Context, contract.Frame) error { return nil }))

	conn := newFakeConn()
	conn.failOn = "/topic/rooms/1"

	req.Error(registry.Attach(ctx, conn))
	req.False(registry.Subscriptions()[0].Active)
}

func TestRegistry_Unsubscribe(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	registry := newTestRegistry()
	conn := newFakeConn()
	req.NoError(registry.Attach(ctx, conn))
	var got []string
	req.NoError(registry.Subscribe(ctx, "/topic/rooms/7", recordingHandler(&got)))
	id := conn.idOf("/topic/rooms/7")

	req.NoError(registry.Unsubscribe(ctx, "/topic/rooms/7"))
	req.NoError(registry.Unsubscribe(ctx, "/topic/rooms/unknown"))

	req.Empty(registry.Subscriptions())
	req.Equal([]string{"/topic/rooms/7"}, conn.unsubscribed)
	// Late frames of the dropped subscription are discarded
	registry.Dispatch(ctx, contract.Frame{SubscriptionID: id, Destination: "/topic/rooms/7", Body: []byte("late")})
	req.Empty(got)
}

func TestRegistry_Dispatch_FallsBackToDestination(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	registry := newTestRegistry()
	var got []string
	req.NoError(registry.Subscribe(ctx, "/user/1/queue/messages", recordingHandler(&got)))

	registry.Dispatch(ctx, contract.Frame{SubscriptionID: "unknown", Destination: "/user/1/queue/messages", Body: []byte("a")})

	req.Equal([]string{"a"}, got)
}

func TestRegistry_Dispatch_PanickingHandler_IsContained(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry()
	require.NoError(t, registry.Subscribe(ctx, "/topic/rooms/1", func(context.Context, contract.Frame) error {
		panic("garbled")
	}))

	require.NotPanics(t, func() {
		registry.Dispatch(ctx, contract.Frame{Destination: "/topic/rooms/1"})
	})
}
