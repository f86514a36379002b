package models

import (
	"time"

	"gorm.io/datatypes"
)

// Channel types. Global channels are visible to every user regardless of
// membership; AI channels trigger an assistant reply on every send.
const (
	ChannelTypeGroup   = "group"
	ChannelTypePrivate = "private"
	ChannelTypeGlobal  = "global"
	ChannelTypeAI      = "ai"
)

// Channel is a named conversation scope with a member list and an optional
// per-channel admin list.
type Channel struct {
	ID        uint                        `gorm:"primaryKey" json:"id"`
	Name      string                      `gorm:"size:255;not null" json:"name"`
	Type      string                      `gorm:"size:32;not null;default:group;index" json:"type"`
	Members   datatypes.JSONSlice[string] `gorm:"type:json" json:"members"`
	Admins    datatypes.JSONSlice[string] `gorm:"type:json" json:"admins"`
	Metadata  datatypes.JSONMap           `gorm:"type:json" json:"metadata"`
	CreatedAt time.Time                   `json:"created_at"`
	UpdatedAt time.Time                   `gorm:"index" json:"updated_at"`
}

// HasMember reports whether the user id appears in the member list.
func (c *Channel) HasMember(userID string) bool {
	for _, id := range c.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// HasAdmin reports whether the user id appears in the channel admin list.
func (c *Channel) HasAdmin(userID string) bool {
	for _, id := range c.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

// AIEnabled reports whether sends into this channel should produce an
// assistant reply. Either the channel type or a metadata flag can enable it.
func (c *Channel) AIEnabled() bool {
	if c.Type == ChannelTypeAI {
		return true
	}
	if c.Metadata == nil {
		return false
	}
	enabled, _ := c.Metadata["ai_enabled"].(bool)
	return enabled
}
