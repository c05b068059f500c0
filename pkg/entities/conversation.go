package entities

import (
	"time"

	"gorm.io/gorm"
)

type ConversationMode string

const (
	ModeAI     ConversationMode = "ai"
	ModeHuman  ConversationMode = "human"
	ModeHybrid ConversationMode = "hybrid"
)

type ConversationStatus string

const (
	ConversationActive ConversationStatus = "active"
	ConversationClosed ConversationStatus = "closed"
)

// Conversation is the single ongoing thread between an instance and a
// contact. The unique index on ContactID enforces the one-conversation
// invariant; concurrent first-contact inserts fall back to a re-fetch.
type Conversation struct {
	gorm.Model
	InstanceID     uint               `json:"instance_id" gorm:"not null;index"`
	ContactID      uint               `json:"contact_id" gorm:"not null;uniqueIndex"`
	SectorID       *uint              `json:"sector_id"`
	Mode           ConversationMode   `json:"mode" gorm:"type:varchar(10);not null;default:ai"`
	AssignedUserID *uint              `json:"assigned_user_id"`
	UnreadCount    int                `json:"unread_count" gorm:"default:0"`
	LastMessage    string             `json:"last_message" gorm:"type:text"`
	LastMessageAt  *time.Time         `json:"last_message_at"`
	Status         ConversationStatus `json:"status" gorm:"type:varchar(10);not null;default:active"`

	Instance Instance `json:"-" gorm:"foreignKey:InstanceID"`
	Contact  Contact  `json:"contact,omitempty" gorm:"foreignKey:ContactID"`
	Sector   *Sector  `json:"sector,omitempty" gorm:"foreignKey:SectorID"`
}
