package domain

import "fmt"

const (
	// Endpoint is the path of the broker endpoint on the backend host.
	Endpoint = "/ws"
	// SendDestination is the application destination for outbound messages.
	SendDestination = "/app/chat.sendMessage"
)

// Subscription is ephemeral and recreated on every (re)connect.
type Subscription struct {
	Topic  string
	Active bool
}

func MessagesTopic(id Identity) string {
	return fmt.Sprintf("/user/%d/queue/messages", id.ID)
}

func NotificationsTopic(id Identity) string {
	return fmt.Sprintf("/user/%d/queue/notifications", id.ID)
}

func ReadReceiptsTopic(id Identity) string {
	return fmt.Sprintf("/user/%d/queue/read-receipts", id.ID)
}

func RoomTopic(room RoomID) string {
	return fmt.Sprintf("/topic/rooms/%d", room)
}
