package services

import (
	"context"
	"log/slog"
	"salon-sync/contract"
	"salon-sync/domain"
	"salon-sync/domain/event"
	"salon-sync/mocks"
	"salon-sync/runtime"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// fakeConn is an in-memory broker session fed through its frames channel.
type fakeConn struct {
	mu           sync.Mutex
	subscribed   map[string]string
	unsubscribed []string
	frames       chan contract.Frame
	closed       chan struct{}
	closeOnce    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		subscribed: make(map[string]string),
		frames:     make(chan contract.Frame, 16),
		closed:     make(chan struct{}),
	}
}

func (c *fakeConn) Subscribe(_ context.Context, id, destination string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed[id] = destination
	return nil
}

func (c *fakeConn) Unsubscribe(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribed = append(c.unsubscribed, c.subscribed[id])
	delete(c.subscribed, id)
	return nil
}

func (c *fakeConn) Send(context.Context, string, []byte) error { return nil }

func (c *fakeConn) Heartbeat(context.Context) error { return nil }

func (c *fakeConn) Receive(ctx context.Context) (contract.Frame, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.closed:
		return contract.Frame{}, context.Canceled
	case <-ctx.Done():
		return contract.Frame{}, ctx.Err()
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) destinations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lo.Values(c.subscribed)
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
}

func (d *fakeDialer) Dial(context.Context, domain.Identity) (contract.BrokerConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

type sessionFixture struct {
	dialer        *fakeDialer
	chat          *mocks.MockChatAPI
	notifications *mocks.MockNotificationAPI
	settings      *mocks.MockSettingsAPI
	session       *Session
}

func newSessionFixture(t *testing.T, focused bool) *sessionFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &sessionFixture{
		dialer:        &fakeDialer{},
		chat:          mocks.NewMockChatAPI(ctrl),
		notifications: mocks.NewMockNotificationAPI(ctrl),
		settings:      mocks.NewMockSettingsAPI(ctrl),
	}
	f.chat.EXPECT().Rooms(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
	f.notifications.EXPECT().List(gomock.Any()).Return(nil, nil).AnyTimes()
	f.notifications.EXPECT().UnreadCount(gomock.Any()).Return(0, nil).AnyTimes()

	f.session = NewSession(logs.GetLoggerFromLevel(slog.LevelDebug), Dependencies{
		Dialer:        f.dialer,
		Chat:          f.chat,
		Uploader:      mocks.NewMockUploader(ctrl),
		Translator:    mocks.NewMockTranslator(ctrl),
		Locales:       mocks.NewMockLocaleResolver(ctrl),
		Notifications: f.notifications,
		Settings:      f.settings,
	}, SessionConfig{
		Connection:   runtime.ConnectionConfig{ReconnectDelay: 10 * time.Millisecond, HeartbeatInterval: time.Hour},
		PollInterval: time.Hour,
		Focused:      focused,
	})
	t.Cleanup(f.session.Stop)
	return f
}

var customer = domain.Identity{ID: 1, Role: domain.SenderUser, Token: "tok"}

func TestSession_Start_SubscribesPersonalQueues(t *testing.T) {
	r := require.New(t)
	f := newSessionFixture(t, true)
	f.settings.EXPECT().NotificationsEnabled(gomock.Any()).Return(true, nil)

	// When the session starts
	r.NoError(f.session.Start(context.Background(), customer))

	// Then the three personal queues are subscribed once connected
	r.Eventually(f.session.IsConnected, time.Second, 5*time.Millisecond)
	r.ElementsMatch([]string{
		"/user/1/queue/messages",
		"/user/1/queue/notifications",
		"/user/1/queue/read-receipts",
	}, f.dialer.last().destinations())
	r.NotNil(f.session.Chat())
}

func TestSession_Start_NotificationsDisabled(t *testing.T) {
	r := require.New(t)
	f := newSessionFixture(t, true)
	f.settings.EXPECT().NotificationsEnabled(gomock.Any()).Return(false, nil)

	r.NoError(f.session.Start(context.Background(), customer))

	r.Eventually(f.session.IsConnected, time.Second, 5*time.Millisecond)
	r.NotContains(f.dialer.last().destinations(), "/user/1/queue/notifications")
}

func TestSession_InboundFrames_ReachReadModels(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	f := newSessionFixture(t, false)
	f.settings.EXPECT().NotificationsEnabled(gomock.Any()).Return(true, nil)
	alerts := record(f.session.Bus(), event.AlertRaisedName)

	r.NoError(f.session.Start(ctx, customer))
	r.Eventually(f.session.IsConnected, time.Second, 5*time.Millisecond)
	conn := f.dialer.last()

	// When a salon message, a garbled frame and a reservation notification arrive
	conn.frames <- contract.Frame{Command: "MESSAGE", Destination: "/user/1/queue/messages",
		Body: []byte(`{"id":5,"chatRoomId":7,"senderType":"SALON","senderId":3,"message":"See you at 10","sentAt":"2024-05-01T09:00:00Z","photos":[]}`)}
	conn.frames <- contract.Frame{Command: "MESSAGE", Destination: "/user/1/queue/messages", Body: []byte(`{oops`)}
	conn.frames <- contract.Frame{Command: "MESSAGE", Destination: "/user/1/queue/notifications",
		Body: []byte(`{"id":9,"type":"RESERVATION","title":"Booked","content":"Tomorrow 10:00","isRead":false,"referenceId":77}`)}

	// Then the room counts one unread message
	r.Eventually(func() bool {
		return f.session.Tracker().Count(domain.RoomScope(7)) == 1
	}, time.Second, 5*time.Millisecond)
	rooms := f.session.Chat().Rooms()
	r.Len(rooms, 1)
	r.Equal("See you at 10", rooms[0].LastMessage)
	r.Equal(1, rooms[0].UnreadCount)

	// And the unfocused window gets a badge but no alert
	r.Eventually(func() bool {
		return f.session.Tracker().Count(domain.NotificationScope()) == 1
	}, time.Second, 5*time.Millisecond)
	r.Empty(alerts.named(event.AlertRaisedName))
	r.Len(f.session.Notifications().Items(), 1)
}

func TestSession_ReadReceiptFrame_ZeroesRoom(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	f := newSessionFixture(t, false)
	f.settings.EXPECT().NotificationsEnabled(gomock.Any()).Return(true, nil)

	r.NoError(f.session.Start(ctx, customer))
	r.Eventually(f.session.IsConnected, time.Second, 5*time.Millisecond)
	f.session.Tracker().Apply(ctx, domain.RoomScope(4), 3)

	// When another device of the customer read room 4
	f.dialer.last().frames <- contract.Frame{Command: "MESSAGE", Destination: "/user/1/queue/read-receipts",
		Body: []byte(`{"chatRoomId":4,"readerType":"USER"}`)}

	r.Eventually(func() bool {
		return f.session.Tracker().Count(domain.RoomScope(4)) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestSession_Start_SameIdentityIsNoop(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	f := newSessionFixture(t, true)
	f.settings.EXPECT().NotificationsEnabled(gomock.Any()).Return(true, nil).Times(1)

	r.NoError(f.session.Start(ctx, customer))
	r.Eventually(f.session.IsConnected, time.Second, 5*time.Millisecond)
	r.NoError(f.session.Start(ctx, customer))

	r.Equal(1, f.dialer.count())
}

func TestSession_Start_OtherIdentityReconnects(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	f := newSessionFixture(t, true)
	f.settings.EXPECT().NotificationsEnabled(gomock.Any()).Return(true, nil).Times(2)

	// Given a running customer session with some state
	r.NoError(f.session.Start(ctx, customer))
	r.Eventually(f.session.IsConnected, time.Second, 5*time.Millisecond)
	first := f.dialer.last()
	f.session.Tracker().Apply(ctx, domain.RoomScope(4), 3)

	// When a salon logs in on the same client
	salonIdentity := domain.Identity{ID: 3, Role: domain.SenderSalon}
	r.NoError(f.session.Start(ctx, salonIdentity))

	// Then the old connection is gone, state is forgotten and the new queues are used
	r.True(first.isClosed())
	r.Equal(0, f.session.Tracker().Count(domain.RoomScope(4)))
	r.Eventually(func() bool { return f.dialer.count() == 2 && f.session.IsConnected() }, time.Second, 5*time.Millisecond)
	r.Contains(f.dialer.last().destinations(), "/user/3/queue/messages")
	r.NotContains(f.dialer.last().destinations(), "/user/1/queue/messages")
}

func TestSession_SetNotificationsEnabled_TogglesSubscription(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	f := newSessionFixture(t, true)
	f.settings.EXPECT().NotificationsEnabled(gomock.Any()).Return(true, nil)
	f.settings.EXPECT().SetNotificationsEnabled(gomock.Any(), false).Return(nil)

	r.NoError(f.session.Start(ctx, customer))
	r.Eventually(f.session.IsConnected, time.Second, 5*time.Millisecond)

	// When notifications are switched off
	r.NoError(f.session.SetNotificationsEnabled(ctx, false))

	// Then the notification queue is unsubscribed
	conn := f.dialer.last()
	r.NotContains(conn.destinations(), "/user/1/queue/notifications")
	conn.mu.Lock()
	r.Contains(conn.unsubscribed, "/user/1/queue/notifications")
	conn.mu.Unlock()
}

func TestSession_Stop_Disconnects(t *testing.T) {
	r := require.New(t)
	f := newSessionFixture(t, true)
	f.settings.EXPECT().NotificationsEnabled(gomock.Any()).Return(true, nil)

	r.NoError(f.session.Start(context.Background(), customer))
	r.Eventually(f.session.IsConnected, time.Second, 5*time.Millisecond)

	f.session.Stop()

	r.False(f.session.IsConnected())
	r.Nil(f.session.Chat())
	r.Empty(f.session.Subscriptions())
	r.True(f.dialer.last().isClosed())
}

func TestSession_Start_WithoutIdentity(t *testing.T) {
	f := newSessionFixture(t, true)
	require.Error(t, f.session.Start(context.Background(), domain.Identity{}))
}
