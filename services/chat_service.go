package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"salon-sync/contract"
	"salon-sync/domain"
	"salon-sync/domain/event"
	"salon-sync/errors"
	"salon-sync/infrastructure/wire"
	"salon-sync/projection"
	"salon-sync/runtime"
	"salon-sync/translation"
	"salon-sync/unread"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IChatService interface {
	LoadRooms(ctx context.Context) ([]domain.ChatRoom, error)
	Rooms() []domain.ChatRoom
	OpenRoom(ctx context.Context, room domain.RoomID) ([]domain.Message, error)
	CloseRoom(ctx context.Context, room domain.RoomID)
	SendMessage(ctx context.Context, cmd SendCommand) (domain.Message, error)
	MarkRoomRead(ctx context.Context, room domain.RoomID) error
	Translate(ctx context.Context, room domain.RoomID, key string) (domain.TranslationState, error)
}

// ChatDeps are the collaborators and read models a ChatService works on.
type ChatDeps struct {
	Publisher    contract.Publisher
	Chat         contract.ChatAPI
	Uploader     contract.Uploader
	Registry     *runtime.Registry
	Focus        *runtime.Focus
	Emitter      contract.Emitter
	Timeline     *projection.Timeline
	Rooms        *projection.RoomList
	Tracker      *unread.Tracker
	Translations *translation.Coordinator
}

// ChatService is the chat side of a session for one identity: it sends
// messages optimistically, folds inbound messages and read receipts into the
// timelines, and keeps room unread counters in step with what is on screen.
type ChatService struct {
	log      *slog.Logger
	identity domain.Identity
	deps     ChatDeps
	now      func() time.Time
	newID    func() string
	wg       sync.WaitGroup
}

var _ IChatService = (*ChatService)(nil)

func NewChatService(log *slog.Logger, identity domain.Identity, deps ChatDeps) *ChatService {
	return &ChatService{
		log:      log,
		identity: identity,
		deps:     deps,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// LoadRooms fetches the room list and seeds the room unread counters with
// the server counts.
func (s *ChatService) LoadRooms(ctx context.Context) ([]domain.ChatRoom, error) {
	rooms, err := s.deps.Chat.Rooms(ctx, s.identity)
	if err != nil {
		return nil, fmt.Errorf("fetch rooms: %w", err)
	}
	s.deps.Rooms.Load(rooms)
	s.deps.Tracker.Seed(ctx, rooms)
	return s.Rooms(), nil
}

// Rooms returns the room list, newest conversation first, with the current
// unread counters.
func (s *ChatService) Rooms() []domain.ChatRoom {
	return lo.Map(s.deps.Rooms.Rooms(), func(r domain.ChatRoom, _ int) domain.ChatRoom {
		r.UnreadCount = s.deps.Tracker.Count(domain.RoomScope(r.ID))
		return r
	})
}

// OpenRoom shows room: the history snapshot is fetched first, then the room
// is marked read when the window has focus. Salons also follow the room topic
// while it is open.
func (s *ChatService) OpenRoom(ctx context.Context, room domain.RoomID) ([]domain.Message, error) {
	s.deps.Focus.OpenRoom(room)
	if s.identity.Role == domain.SenderSalon {
		if err := s.deps.Registry.Subscribe(ctx, domain.RoomTopic(room), messageHandler(s.deps.Emitter)); err != nil {
			s.log.Warn("Room subscription failed", "room", room, "error", err)
		}
	}

	history, err := s.deps.Chat.History(ctx, room)
	if err != nil {
		return nil, fmt.Errorf("fetch history of room %d: %w", room, err)
	}
	s.deps.Timeline.Load(room, history)
	snapshot := s.emitTimeline(ctx, room)

	if s.deps.Focus.HasFocus() {
		if err := s.MarkRoomRead(ctx, room); err != nil {
			s.log.Warn("Mark read on open failed", "room", room, "error", err)
		}
	}
	return snapshot, nil
}

func (s *ChatService) CloseRoom(ctx context.Context, room domain.RoomID) {
	s.deps.Focus.CloseRoom(room)
	if s.identity.Role == domain.SenderSalon {
		if err := s.deps.Registry.Unsubscribe(ctx, domain.RoomTopic(room)); err != nil {
			s.log.Debug("Room unsubscribe failed", "room", room, "error", err)
		}
	}
}

// SendMessage validates cmd, uploads its images, shows the message right
// away and publishes it. When the publish fails the optimistic entry is
// taken out of the timeline again and the error is returned.
func (s *ChatService) SendMessage(ctx context.Context, cmd SendCommand) (domain.Message, error) {
	if err := ValidateSend(cmd); err != nil {
		return domain.Message{}, err
	}

	var photos []domain.Photo
	if len(cmd.Images) > 0 {
		uploaded, err := s.deps.Uploader.UploadImages(ctx, cmd.Images)
		if err != nil {
			return domain.Message{}, fmt.Errorf("upload images: %w", err)
		}
		photos = uploaded
	}

	msg := domain.Message{
		ClientID:   s.newID(),
		RoomID:     cmd.Room,
		SenderType: s.identity.Role,
		SenderID:   s.identity.ID,
		Text:       strings.TrimSpace(cmd.Text),
		SentAt:     s.now(),
		Photos:     photos,
	}
	body, err := json.Marshal(wire.FromMessage(msg))
	if err != nil {
		return domain.Message{}, fmt.Errorf("encode message: %w", err)
	}

	s.deps.Timeline.AddOptimistic(msg)
	s.deps.Rooms.Touch(msg)
	s.emitTimeline(ctx, msg.RoomID)

	if err := s.deps.Publisher.Send(ctx, domain.SendDestination, body); err != nil {
		s.deps.Timeline.Remove(msg.RoomID, msg.Key())
		s.deps.Translations.Clear(ctx, msg.Key())
		s.emitTimeline(ctx, msg.RoomID)
		return domain.Message{}, fmt.Errorf("publish message: %w", err)
	}
	return msg, nil
}

// MarkRoomRead marks room read through the unread tracker and, once the
// backend agreed, flags the counterpart's messages as read.
func (s *ChatService) MarkRoomRead(ctx context.Context, room domain.RoomID) error {
	if err := s.deps.Tracker.MarkRead(ctx, domain.RoomScope(room)); err != nil {
		return err
	}
	if s.deps.Timeline.MarkRead(room, s.identity.Counterpart()) > 0 {
		s.emitTimeline(ctx, room)
	}
	return nil
}

// Translate toggles the translation of the message identified by key.
func (s *ChatService) Translate(ctx context.Context, room domain.RoomID, key string) (domain.TranslationState, error) {
	msg, ok := lo.Find(s.deps.Timeline.Snapshot(room), func(m domain.Message) bool { return m.Key() == key })
	if !ok {
		return domain.TranslationState{}, fmt.Errorf("%w: no message %s in room %d", errors.ErrInvalidMessage, key, room)
	}
	return s.deps.Translations.Request(ctx, msg)
}

// Wait blocks until background mark-read calls are done.
func (s *ChatService) Wait() {
	s.wg.Wait()
}

func (s *ChatService) onMessage(ctx context.Context, e event.MessageReceived) error {
	m := e.Message
	outcome := s.deps.Timeline.Reconcile(m)
	if outcome.Replaced && outcome.Previous.Key() != m.Key() {
		s.deps.Translations.Rekey(outcome.Previous.Key(), m.Key())
	}
	s.deps.Rooms.Touch(m)
	s.emitTimeline(ctx, m.RoomID)

	// Re-deliveries were counted the first time.
	if outcome.Match == projection.MatchID || m.SenderType == s.identity.Role || m.Read {
		return nil
	}
	s.deps.Tracker.Increment(ctx, domain.RoomScope(m.RoomID))
	if s.deps.Focus.Viewing(m.RoomID) {
		s.markReadAsync(ctx, m.RoomID)
	}
	return nil
}

func (s *ChatService) onMessageRead(ctx context.Context, e event.MessageRead) error {
	if e.Reader == s.identity.Counterpart() {
		if s.deps.Timeline.MarkRead(e.Room, s.identity.Role) > 0 {
			s.emitTimeline(ctx, e.Room)
		}
		return nil
	}
	s.deps.Tracker.Zero(ctx, domain.RoomScope(e.Room))
	if s.deps.Timeline.MarkRead(e.Room, s.identity.Counterpart()) > 0 {
		s.emitTimeline(ctx, e.Room)
	}
	return nil
}

// markReadAsync runs the mark-read call off the broker read loop.
func (s *ChatService) markReadAsync(ctx context.Context, room domain.RoomID) {
	detached := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.MarkRoomRead(detached, room); err != nil {
			s.log.Warn("Mark read of viewed room failed", "room", room, "error", err)
		}
	}()
}

func (s *ChatService) emitTimeline(ctx context.Context, room domain.RoomID) []domain.Message {
	snapshot := s.deps.Timeline.Snapshot(room)
	s.deps.Emitter.Emit(ctx, event.TimelineChanged{Room: room, Messages: snapshot})
	return snapshot
}
