package entities

import (
	"gorm.io/gorm"
)

// User is an operator account. Authentication lives in an external
// service; this row exists for assignment and display only.
type User struct {
	gorm.Model
	Email string `json:"email" gorm:"unique;not null"`
	Name  string `json:"name" gorm:"type:varchar(255);not null"`
}
