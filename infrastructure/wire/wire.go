// Package wire holds the JSON shapes exchanged with the backend, over the
// broker and over REST, and their mapping to domain types.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"salon-sync/domain"
	"strconv"
	"time"

	"github.com/samber/lo"
)

// localLayout is how the backend prints timestamps without a zone.
const localLayout = "2006-01-02T15:04:05"

// Timestamp accepts RFC 3339 strings, zone-less local date-times and epoch
// milliseconds.
type Timestamp time.Time

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	if len(data) > 0 && data[0] != '"' {
		ms, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("timestamp %s: %w", data, err)
		}
		*t = Timestamp(time.UnixMilli(ms))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		*t = Timestamp(parsed)
		return nil
	}
	parsed, err := time.ParseInLocation(localLayout, s, time.Local)
	if err != nil {
		return fmt.Errorf("timestamp %q: %w", s, err)
	}
	*t = Timestamp(parsed)
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if time.Time(t).IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(time.Time(t).Format(time.RFC3339Nano))
}

type Photo struct {
	PhotoID  int64  `json:"photoId"`
	PhotoURL string `json:"photoUrl"`
}

// Message mirrors the chat message entity. Translation fields are sent by
// the backend but never populated by this client.
type Message struct {
	ID                int64     `json:"id"`
	ClientMessageID   string    `json:"clientMessageId,omitempty"`
	ChatRoomID        int64     `json:"chatRoomId"`
	SenderType        string    `json:"senderType"`
	SenderID          int64     `json:"senderId"`
	Message           string    `json:"message"`
	SentAt            Timestamp `json:"sentAt"`
	IsRead            bool      `json:"isRead"`
	Photos            []Photo   `json:"photos"`
	TranslatedMessage *string   `json:"translatedMessage,omitempty"`
	TranslationStatus *string   `json:"translationStatus,omitempty"`
}

// OutboundMessage is published to the send destination.
type OutboundMessage struct {
	ChatRoomID      int64   `json:"chatRoomId"`
	Message         string  `json:"message"`
	SenderType      string  `json:"senderType"`
	SenderID        int64   `json:"senderId"`
	ClientMessageID string  `json:"clientMessageId,omitempty"`
	Photos          []Photo `json:"photos"`
}

type ReadReceipt struct {
	ChatRoomID int64     `json:"chatRoomId"`
	ReaderType string    `json:"readerType"`
	ReadAt     Timestamp `json:"readAt"`
}

type Notification struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	IsRead      bool      `json:"isRead"`
	ReferenceID int64     `json:"referenceId"`
	CreatedAt   Timestamp `json:"createdAt"`
}

type ChatRoom struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"userId"`
	SalonID         int64     `json:"salonId"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime Timestamp `json:"lastMessageTime"`
	UnreadCount     int       `json:"unreadCount"`
}

func ToMessage(m Message) (domain.Message, error) {
	sender := domain.SenderType(m.SenderType)
	if !sender.Valid() {
		return domain.Message{}, fmt.Errorf("unknown sender type %q", m.SenderType)
	}
	if m.ChatRoomID == 0 {
		return domain.Message{}, fmt.Errorf("message %d has no chat room", m.ID)
	}
	return domain.Message{
		ID:         m.ID,
		ClientID:   m.ClientMessageID,
		RoomID:     domain.RoomID(m.ChatRoomID),
		SenderType: sender,
		SenderID:   m.SenderID,
		Text:       m.Message,
		SentAt:     time.Time(m.SentAt),
		Read:       m.IsRead,
		Photos: lo.Map(m.Photos, func(p Photo, _ int) domain.Photo {
			return domain.Photo{PhotoID: p.PhotoID, URL: p.PhotoURL}
		}),
	}, nil
}

func FromMessage(m domain.Message) OutboundMessage {
	return OutboundMessage{
		ChatRoomID:      int64(m.RoomID),
		Message:         m.Text,
		SenderType:      string(m.SenderType),
		SenderID:        m.SenderID,
		ClientMessageID: m.ClientID,
		Photos:          FromPhotos(m.Photos),
	}
}

func FromPhotos(photos []domain.Photo) []Photo {
	return lo.Map(photos, func(p domain.Photo, _ int) Photo {
		return Photo{PhotoID: p.PhotoID, PhotoURL: p.URL}
	})
}

func ToPhotos(photos []Photo) []domain.Photo {
	return lo.Map(photos, func(p Photo, _ int) domain.Photo {
		return domain.Photo{PhotoID: p.PhotoID, URL: p.PhotoURL}
	})
}

func ToNotification(n Notification) domain.Notification {
	kind := domain.NotificationKind(n.Type)
	switch kind {
	case domain.KindChat, domain.KindReservation, domain.KindReview:
	default:
		kind = domain.KindOther
	}
	return domain.Notification{
		ID:          n.ID,
		Kind:        kind,
		Title:       n.Title,
		Body:        n.Content,
		Read:        n.IsRead,
		ReferenceID: n.ReferenceID,
		CreatedAt:   time.Time(n.CreatedAt),
	}
}

func ToReadReceipt(r ReadReceipt) (domain.RoomID, domain.SenderType, time.Time, error) {
	if r.ChatRoomID == 0 {
		return 0, "", time.Time{}, fmt.Errorf("read receipt has no chat room")
	}
	return domain.RoomID(r.ChatRoomID), domain.SenderType(r.ReaderType), time.Time(r.ReadAt), nil
}

func ToChatRoom(r ChatRoom) domain.ChatRoom {
	return domain.ChatRoom{
		ID:             domain.RoomID(r.ID),
		ParticipantIDs: []int64{r.UserID, r.SalonID},
		LastMessage:    r.LastMessage,
		LastMessageAt:  time.Time(r.LastMessageTime),
		UnreadCount:    max(0, r.UnreadCount),
	}
}
