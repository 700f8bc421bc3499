package models

import (
	"time"
)

// User represents a registered account. Users are created once and never
// modified or deleted afterwards; every lead belongs to exactly one user.
type User struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}
