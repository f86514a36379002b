package dto

import (
	"time"

	"github.com/opvera/opvera-api/internal/models"
)

// ChannelCreateRequest creates a conversation scope.
type ChannelCreateRequest struct {
	Name     string                 `json:"name" validate:"required,min=2,max=255"`
	Type     string                 `json:"type" validate:"required,oneof=group private global ai"`
	Members  []string               `json:"members" validate:"omitempty,dive,max=36"`
	Metadata map[string]interface{} `json:"metadata"`
}

// MemberRequest targets one user inside a channel.
type MemberRequest struct {
	UserID string `json:"user_id" validate:"required,max=36"`
}

// LastMessagePreview annotates a directory row with the most recent message.
type LastMessagePreview struct {
	Content    string    `json:"content"`
	SenderName string    `json:"sender_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChannelResponse is a directory row.
type ChannelResponse struct {
	ID          uint                   `json:"id"`
	Name        string                 `json:"name"`
	Type        string                 `json:"type"`
	Members     []string               `json:"members"`
	Admins      []string               `json:"admins"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	LastMessage *LastMessagePreview    `json:"last_message,omitempty"`
	UpdatedAt   time.Time              `json:"updated_at"`
	CreatedAt   time.Time              `json:"created_at"`
}

// NewChannelResponse converts a model into a DTO.
func NewChannelResponse(channel models.Channel) ChannelResponse {
	return ChannelResponse{
		ID:        channel.ID,
		Name:      channel.Name,
		Type:      channel.Type,
		Members:   channel.Members,
		Admins:    channel.Admins,
		Metadata:  channel.Metadata,
		UpdatedAt: channel.UpdatedAt,
		CreatedAt: channel.CreatedAt,
	}
}
