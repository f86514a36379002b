package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Platform roles. Banned is a sentinel role that strips every permission.
const (
	RoleStudent = "student"
	RoleMentor  = "mentor"
	RoleCompany = "company"
	RoleAdmin   = "admin"
	RoleBanned  = "banned"
)

// User represents a platform account across every role.
type User struct {
	ID          string                      `gorm:"primaryKey;size:36" json:"id"`
	DisplayName string                      `gorm:"size:255;not null" json:"display_name"`
	Email       string                      `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role        string                      `gorm:"size:32;not null;default:student;index" json:"role"`
	Verified    bool                        `gorm:"not null;default:false" json:"verified"`
	AvatarURL   string                      `gorm:"size:512" json:"avatar_url"`
	Skills      datatypes.JSONSlice[string] `gorm:"type:json" json:"skills"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key when none was provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// IsBanned reports whether the account has been stripped of all permissions.
func (u *User) IsBanned() bool {
	return u.Role == RoleBanned
}
