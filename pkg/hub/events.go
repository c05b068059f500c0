package hub

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the canonical events fanned out to subscribers.
type EventType string

const (
	EventMessageCreated      EventType = "message_created"
	EventMessageUpdated      EventType = "message_updated"
	EventMessageDeleted      EventType = "message_deleted"
	EventMessageStatus       EventType = "message_status"
	EventConversationUpdated EventType = "conversation_updated"
	EventInstanceStatus      EventType = "instance_status"
	EventInstanceQR          EventType = "instance_qr"
	EventTicketUpdated       EventType = "ticket_updated"
	EventTyping              EventType = "typing"
)

// Event is one canonical mutation published to the hub. Every event is
// delivered to its rooms and to the global channel so list views that
// have not joined a room yet still refresh.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Rooms     []string  `json:"-"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent stamps an event with a fresh id and the server clock.
func NewEvent(eventType EventType, payload any, rooms ...string) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Rooms:     rooms,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Room name helpers. Every conversation, user and instance has an
// implicit room.
func ConversationRoom(id uint) string { return fmt.Sprintf("conversation:%d", id) }
func UserRoom(id uint) string         { return fmt.Sprintf("user:%d", id) }
func InstanceRoom(id uint) string     { return fmt.Sprintf("instance:%d", id) }
