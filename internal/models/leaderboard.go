package models

import (
	"time"

	"gorm.io/datatypes"
)

// LeaderboardEntry aggregates a user's points across quizzes and projects.
// Rank is recomputed on refresh, not stored incrementally.
type LeaderboardEntry struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	UserID      string            `gorm:"size:36;uniqueIndex;not null" json:"user_id"`
	TotalPoints int               `gorm:"not null;default:0;index" json:"total_points"`
	Breakdown   datatypes.JSONMap `gorm:"type:json" json:"breakdown"`
	UpdatedAt   time.Time         `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
}
