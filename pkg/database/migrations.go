package database

import (
	"github.com/zapdesk/pkg/entities"
	"gorm.io/gorm"
)

// AutoMigrate runs database migrations
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entities.User{},
		&entities.Sector{},
		&entities.Instance{},
		&entities.Contact{},
		&entities.Conversation{},
		&entities.Message{},
		&entities.Ticket{},
		&entities.SlaConfig{},
		&entities.SlaViolation{},
	)
}
