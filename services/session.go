package services

import (
	"context"
	"log/slog"
	"salon-sync/contract"
	"salon-sync/domain"
	"salon-sync/domain/event"
	"salon-sync/errors"
	"salon-sync/notification"
	"salon-sync/projection"
	"salon-sync/runtime"
	"salon-sync/runtime/workers"
	"salon-sync/translation"
	"salon-sync/unread"
	"sync"
	"time"
)

const DefaultPollInterval = 10 * time.Second

type SessionConfig struct {
	Connection    runtime.ConnectionConfig
	PollInterval  time.Duration
	StaleAfter    time.Duration
	AlertDuration time.Duration
	// Focused is the initial window focus.
	Focused bool
	// MergeConfirmed applies the content dedup heuristic to server-confirmed
	// messages too.
	MergeConfirmed bool
}

// Dependencies are the backend collaborators of a session.
type Dependencies struct {
	Dialer        contract.Dialer
	Chat          contract.ChatAPI
	Uploader      contract.Uploader
	Translator    contract.Translator
	Locales       contract.LocaleResolver
	Notifications contract.NotificationAPI
	Settings      contract.SettingsAPI
}

// Session is the messaging client of one logged-in identity. It owns the
// broker connection, the topic subscriptions, the local event bus and every
// read model fed by them. Start wires everything for an identity, Stop tears
// it down and forgets all state; starting with another identity does both.
type Session struct {
	log  *slog.Logger
	cfg  SessionConfig
	deps Dependencies

	bus           *runtime.Bus
	registry      *runtime.Registry
	conn          *runtime.ConnectionManager
	focus         *runtime.Focus
	timeline      *projection.Timeline
	rooms         *projection.RoomList
	tracker       *unread.Tracker
	translations  *translation.Coordinator
	notifications *notification.Coordinator
	poller        *workers.UnreadPoller

	mu                   sync.Mutex
	identity             domain.Identity
	chat                 *ChatService
	regs                 []*runtime.Registration
	notificationsEnabled bool
	stopPoller           context.CancelFunc
	pollerDone           chan struct{}
}

func NewSession(log *slog.Logger, deps Dependencies, cfg SessionConfig) *Session {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	bus := runtime.NewBus(log)
	registry := runtime.NewRegistry(log)
	focus := runtime.NewFocus(cfg.Focused)
	tracker := unread.NewTracker(log, deps.Chat, deps.Notifications, bus, cfg.StaleAfter)

	return &Session{
		log:           log,
		cfg:           cfg,
		deps:          deps,
		bus:           bus,
		registry:      registry,
		conn:          runtime.NewConnectionManager(log, deps.Dialer, registry, bus, cfg.Connection),
		focus:         focus,
		timeline:      projection.NewTimeline(timelineOptions(cfg)...),
		rooms:         projection.NewRoomList(),
		tracker:       tracker,
		translations:  translation.NewCoordinator(log, deps.Translator, deps.Locales, bus),
		notifications: notification.NewCoordinator(log, deps.Notifications, tracker, focus, bus, cfg.AlertDuration),
		poller:        workers.NewUnreadPoller(log, tracker, cfg.PollInterval),
	}
}

// Bus is where views register their listeners.
func (s *Session) Bus() *runtime.Bus { return s.bus }

func (s *Session) Tracker() *unread.Tracker { return s.tracker }

func (s *Session) Notifications() *notification.Coordinator { return s.notifications }

func (s *Session) Translations() *translation.Coordinator { return s.translations }

func (s *Session) IsConnected() bool { return s.conn.IsConnected() }

func (s *Session) Subscriptions() []domain.Subscription { return s.registry.Subscriptions() }

// Chat returns the chat service of the running identity, nil when stopped.
func (s *Session) Chat() *ChatService {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chat
}

// Start runs the session for identity: listeners first, then the room and
// notification snapshots, then the subscriptions and the connection. It is a
// no-op for the identity already running. Backend snapshot failures are
// logged; the session still starts and catches up on the next event or poll.
func (s *Session) Start(ctx context.Context, identity domain.Identity) error {
	if identity.IsZero() {
		return errors.ErrNoIdentity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chat != nil {
		if s.identity.Same(identity) {
			return nil
		}
		s.stopLocked()
	}

	s.identity = identity
	s.tracker.SetReader(identity.Role)
	chat := NewChatService(s.log, identity, ChatDeps{
		Publisher:    s.conn,
		Chat:         s.deps.Chat,
		Uploader:     s.deps.Uploader,
		Registry:     s.registry,
		Focus:        s.focus,
		Emitter:      s.bus,
		Timeline:     s.timeline,
		Rooms:        s.rooms,
		Tracker:      s.tracker,
		Translations: s.translations,
	})
	s.chat = chat

	s.regs = []*runtime.Registration{
		runtime.Listen(s.bus, chat.onMessage),
		runtime.Listen(s.bus, chat.onMessageRead),
		runtime.Listen(s.bus, func(ctx context.Context, e event.NotificationReceived) error {
			s.notifications.Deliver(ctx, e.Notification)
			return nil
		}),
		runtime.Listen(s.bus, s.onConnectionChanged),
	}

	s.notificationsEnabled = s.fetchNotificationsEnabled(ctx)
	if _, err := chat.LoadRooms(ctx); err != nil {
		s.log.Warn("Room list not loaded", "error", err)
	}
	if s.notificationsEnabled {
		if err := s.notifications.Load(ctx); err != nil {
			s.log.Warn("Notifications not loaded", "error", err)
		}
	}

	s.subscribeLocked(ctx, domain.MessagesTopic(identity), messageHandler(s.bus))
	s.subscribeLocked(ctx, domain.ReadReceiptsTopic(identity), readReceiptHandler(s.bus))
	if s.notificationsEnabled {
		s.subscribeLocked(ctx, domain.NotificationsTopic(identity), notificationHandler(s.bus))
	}

	s.conn.Connect(ctx, identity)
	s.startPollerLocked(ctx)
	s.log.Info("Session started", "identity", identity.String(), "notifications", s.notificationsEnabled)
	return nil
}

// Stop disconnects and forgets everything learnt for the current identity.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// SetNotificationsEnabled stores the setting on the backend and then opens
// or closes the notification subscription accordingly.
func (s *Session) SetNotificationsEnabled(ctx context.Context, enabled bool) error {
	if err := s.deps.Settings.SetNotificationsEnabled(ctx, enabled); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chat == nil || s.notificationsEnabled == enabled {
		s.notificationsEnabled = enabled
		return nil
	}
	s.notificationsEnabled = enabled

	topic := domain.NotificationsTopic(s.identity)
	if !enabled {
		if err := s.registry.Unsubscribe(ctx, topic); err != nil {
			s.log.Warn("Notification unsubscribe failed", "error", err)
		}
		return nil
	}
	if err := s.notifications.Load(ctx); err != nil {
		s.log.Warn("Notifications not loaded", "error", err)
	}
	s.subscribeLocked(ctx, topic, notificationHandler(s.bus))
	return nil
}

// SetFocused records window focus. Regaining focus re-checks a stale
// notification count and marks the open room read.
func (s *Session) SetFocused(ctx context.Context, focused bool) error {
	s.focus.SetFocused(focused)
	if !focused {
		return nil
	}
	s.poller.Trigger()

	chat := s.Chat()
	room, open := s.focus.ActiveRoom()
	if chat == nil || !open {
		return nil
	}
	return chat.MarkRoomRead(ctx, room)
}

func (s *Session) onConnectionChanged(ctx context.Context, e event.ConnectionChanged) error {
	if e.Connected {
		// Pushes may have been missed while offline.
		s.poller.Trigger()
	}
	return nil
}

func (s *Session) fetchNotificationsEnabled(ctx context.Context) bool {
	if s.deps.Settings == nil {
		return true
	}
	enabled, err := s.deps.Settings.NotificationsEnabled(ctx)
	if err != nil {
		s.log.Warn("Notification setting unavailable, assuming enabled", "error", err)
		return true
	}
	return enabled
}

func (s *Session) subscribeLocked(ctx context.Context, topic string, handler runtime.Handler) {
	if err := s.registry.Subscribe(ctx, topic, handler); err != nil {
		s.log.Warn("Subscription failed", "topic", topic, "error", err)
	}
}

func (s *Session) startPollerLocked(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	sup := workers.NewSupervisor(s.log, s.conn.ReconnectDelay())
	sup.Add(s.poller)
	go func() {
		defer close(done)
		sup.Run(runCtx)
	}()
	s.stopPoller, s.pollerDone = cancel, done
}

func (s *Session) stopLocked() {
	if s.chat == nil {
		return
	}
	s.conn.Disconnect()
	if s.stopPoller != nil {
		s.stopPoller()
		<-s.pollerDone
		s.stopPoller, s.pollerDone = nil, nil
	}
	for _, reg := range s.regs {
		s.bus.Off(reg)
	}
	s.regs = nil
	for _, sub := range s.registry.Subscriptions() {
		_ = s.registry.Unsubscribe(context.Background(), sub.Topic)
	}
	s.chat.Wait()
	if room, open := s.focus.ActiveRoom(); open {
		s.focus.CloseRoom(room)
	}

	s.tracker.Reset()
	s.timeline.Forget()
	s.rooms.Load(nil)
	s.translations.Reset()
	s.notifications.Reset()
	s.log.Info("Session stopped", "identity", s.identity.String())
	s.chat = nil
	s.identity = domain.Identity{}
}

func timelineOptions(cfg SessionConfig) []projection.Option {
	if cfg.MergeConfirmed {
		return []projection.Option{projection.WithConfirmedMerge()}
	}
	return nil
}
