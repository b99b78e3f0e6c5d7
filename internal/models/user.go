package models

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleAlumni  Role = "alumni"
	RoleAdmin   Role = "admin"
)

// User is the directory entry the chat subsystem reads. Account
// management (registration, passwords, profiles) lives elsewhere; chat
// only needs identity, display fields and the role.
type User struct {
	ID        string         `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Email          string `gorm:"uniqueIndex" json:"email"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	ProfilePicture string `json:"profilePicture"`

	Role     Role `gorm:"type:text;default:'student'" json:"role"`
	IsActive bool `gorm:"default:true" json:"isActive"`
}

// PublicUser is the trimmed descriptor embedded in wire messages.
type PublicUser struct {
	ID             string `json:"id"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	Role           Role   `json:"role,omitempty"`
}

// Public returns the wire-safe descriptor for u.
func (u *User) Public() PublicUser {
	first := u.FirstName
	last := u.LastName
	if first == "" {
		first = "Unknown"
	}
	if last == "" {
		last = "User"
	}
	return PublicUser{
		ID:             u.ID,
		FirstName:      first,
		LastName:       last,
		ProfilePicture: u.ProfilePicture,
		Role:           u.Role,
	}
}
