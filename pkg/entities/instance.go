package entities

import (
	"gorm.io/gorm"
)

// ProviderKind selects which backend an instance speaks to.
type ProviderKind string

const (
	ProviderEmbedded ProviderKind = "embedded" // in-process whatsmeow socket
	ProviderHosted   ProviderKind = "hosted"   // external gateway + webhooks
)

// InstanceStatus is the connection state machine of an instance.
type InstanceStatus string

const (
	InstanceDisconnected InstanceStatus = "disconnected"
	InstanceConnecting   InstanceStatus = "connecting"
	InstanceQR           InstanceStatus = "qr"
	InstanceOpen         InstanceStatus = "open"
)

// Instance is one tenant-owned WhatsApp session. Status and QRCode are
// mutated only by the session manager.
type Instance struct {
	gorm.Model
	Name         string         `json:"name" gorm:"type:varchar(255);not null"`
	ProviderKind ProviderKind   `json:"provider_kind" gorm:"type:varchar(20);not null;default:embedded"`
	Status       InstanceStatus `json:"status" gorm:"type:varchar(20);not null;default:disconnected"`
	QRCode       string         `json:"qr_code" gorm:"type:text"`
	ExternalID   string         `json:"external_id" gorm:"type:varchar(255);index"`
	Phone        string         `json:"phone" gorm:"type:varchar(20)"`
	SectorID     *uint          `json:"sector_id"`

	Sector *Sector `json:"sector,omitempty" gorm:"foreignKey:SectorID"`
}
