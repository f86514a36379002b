package models

import (
	"time"

	"gorm.io/datatypes"
)

// Metadata keys distinguishing assistant traffic inside a channel. AI replies
// reuse the human sender id for threading and carry MetaAI instead.
const (
	MetaAIRequest = "ai_request"
	MetaAI        = "ai"
)

// Message is a single chat payload inside a channel.
type Message struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	ChannelID uint              `gorm:"index;not null" json:"channel_id"`
	SenderID  string            `gorm:"size:36;index;not null" json:"sender_id"`
	Content   string            `gorm:"type:text" json:"content"`
	Metadata  datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`

	Sender *User `gorm:"foreignKey:SenderID;references:ID" json:"sender,omitempty"`
}

// IsAIReply reports whether the row was written by the assistant.
func (m *Message) IsAIReply() bool {
	if m.Metadata == nil {
		return false
	}
	flag, _ := m.Metadata[MetaAI].(bool)
	return flag
}
