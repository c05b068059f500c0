package entities

import (
	"time"

	"gorm.io/gorm"
)

type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageVideo    MessageType = "video"
	MessageAudio    MessageType = "audio"
	MessageDocument MessageType = "document"
	MessageSticker  MessageType = "sticker"
	MessageLocation MessageType = "location"
	MessageContact  MessageType = "contact"
	MessageEvent    MessageType = "event" // synthetic timeline marker
)

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// MarkerKind classifies synthetic event messages.
type MarkerKind string

const (
	MarkerTicketCreated        MarkerKind = "ticket_created"
	MarkerTicketClosed         MarkerKind = "ticket_closed"
	MarkerConversationReopened MarkerKind = "conversation_reopened"
)

// Message is one inbound or outbound unit in a conversation timeline.
// ProviderMessageID is the dedup key: the same provider event delivered
// twice upserts into a single row. Status, edit and delete markers are
// the only mutable fields after creation.
type Message struct {
	gorm.Model
	ConversationID    uint          `json:"conversation_id" gorm:"not null;index"`
	ProviderMessageID string        `json:"provider_message_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	FromMe            bool          `json:"is_from_me" gorm:"default:false"`
	Type              MessageType   `json:"type" gorm:"type:varchar(20);not null;default:text"`
	Content           string        `json:"content" gorm:"type:text"`
	MediaURL          string        `json:"media_url" gorm:"type:text"`
	MimeType          string        `json:"mime_type" gorm:"type:varchar(100)"`
	FileName          string        `json:"file_name" gorm:"type:varchar(255)"`
	Status            MessageStatus `json:"status" gorm:"type:varchar(20);not null;default:sent"`
	QuotedMessageID   string        `json:"quoted_message_id" gorm:"type:varchar(255)"`
	MarkerKind        MarkerKind    `json:"marker_kind,omitempty" gorm:"type:varchar(40)"`
	EditedAt          *time.Time    `json:"edited_at"`
	RevokedAt         *time.Time    `json:"revoked_at"`
	Timestamp         time.Time     `json:"timestamp" gorm:"index"`

	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID"`
}
