//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"salon-sync/domain"
	"salon-sync/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Frame is one inbound unit read from the broker.
// Heartbeat frames carry no command and no body.
type Frame struct {
	Command        string
	Destination    string
	SubscriptionID string
	MessageID      string
	Body           []byte
	Heartbeat      bool
}

// BrokerConn is a single established broker session.
// Receive blocks until a frame arrives, the connection fails or ctx is done.
type BrokerConn interface {
	Subscribe(ctx context.Context, id, destination string) error
	Unsubscribe(ctx context.Context, id string) error
	Send(ctx context.Context, destination string, body []byte) error
	Heartbeat(ctx context.Context) error
	Receive(ctx context.Context) (Frame, error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, identity domain.Identity) (BrokerConn, error)
}

// Emitter publishes events to local listeners.
type Emitter interface {
	Emit(ctx context.Context, e event.Event)
}

// FocusState tells whether the application window has input focus and which
// room, if any, is currently open.
type FocusState interface {
	HasFocus() bool
	ActiveRoom() (domain.RoomID, bool)
}

type ChatAPI interface {
	Rooms(ctx context.Context, identity domain.Identity) ([]domain.ChatRoom, error)
	History(ctx context.Context, room domain.RoomID) ([]domain.Message, error)
	MarkRoomRead(ctx context.Context, room domain.RoomID, reader domain.SenderType) error
}

type Uploader interface {
	UploadImages(ctx context.Context, images [][]byte) ([]domain.Photo, error)
}

type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

type LocaleResolver interface {
	Locales(ctx context.Context, room domain.RoomID) (domain.Locales, error)
}

type NotificationAPI interface {
	List(ctx context.Context) ([]domain.Notification, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, ids []int64) error
}

type SettingsAPI interface {
	NotificationsEnabled(ctx context.Context) (bool, error)
	SetNotificationsEnabled(ctx context.Context, enabled bool) error
}

// Publisher sends an outbound payload on the broker connection.
type Publisher interface {
	Send(ctx context.Context, destination string, body []byte) error
}

// EventSink consumes events forwarded off the bus, outside of the emitting
// goroutine.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}
