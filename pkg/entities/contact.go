package entities

import (
	"gorm.io/gorm"
)

// Contact is a remote party (individual or group) known to an instance.
// The (instance, phone) pair is unique; RemoteJID is the provider-native
// identifier and is the first lookup key during ingestion.
type Contact struct {
	gorm.Model
	InstanceID uint   `json:"instance_id" gorm:"not null;uniqueIndex:ux_contact_instance_phone,priority:1"`
	Phone      string `json:"phone" gorm:"type:varchar(50);not null;uniqueIndex:ux_contact_instance_phone,priority:2"`
	RemoteJID  string `json:"remote_jid" gorm:"column:remote_jid;type:varchar(255);index"`
	Name       string `json:"name" gorm:"type:varchar(255)"`
	AvatarURL  string `json:"avatar_url" gorm:"type:text"`
	IsGroup    bool   `json:"is_group" gorm:"default:false"`

	Instance Instance `json:"-" gorm:"foreignKey:InstanceID"`
}
