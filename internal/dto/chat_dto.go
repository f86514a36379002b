package dto

import (
	"time"

	"github.com/opvera/opvera-api/internal/models"
)

// Websocket frame kinds exchanged on a chat connection.
const (
	FrameMessage   = "message"
	FrameTyping    = "typing"
	FrameDeleted   = "deleted"
	FrameDirectory = "directory"
)

// ChatFrame is the envelope read from a chat websocket. Message frames carry
// content; typing frames carry only the flag.
type ChatFrame struct {
	Type    string `json:"type" validate:"omitempty,oneof=message typing"`
	Content string `json:"content" validate:"omitempty,max=4000"`
	Typing  bool   `json:"typing"`
}

// ChatEvent is the envelope written to a chat websocket. Directory events
// carry only the channel id; clients re-fetch their channel list on receipt.
type ChatEvent struct {
	Type      string           `json:"type"`
	ChannelID uint             `json:"channel_id,omitempty"`
	Message   *MessageResponse `json:"message,omitempty"`
	Typing    []string         `json:"typing,omitempty"`
}

// ChatHistoryQuery filters a history fetch.
type ChatHistoryQuery struct {
	ChannelID uint `query:"channel_id" validate:"required"`
	Limit     int  `query:"limit" validate:"omitempty,min=1,max=500"`
}

// MessageResponse is the serialized representation of a message joined with
// its sender's display fields.
type MessageResponse struct {
	ID          uint                   `json:"id"`
	ChannelID   uint                   `json:"channel_id"`
	SenderID    string                 `json:"sender_id"`
	SenderName  string                 `json:"sender_name,omitempty"`
	SenderRole  string                 `json:"sender_role,omitempty"`
	AvatarURL   string                 `json:"avatar_url,omitempty"`
	Content     string                 `json:"content"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// NewMessageResponse converts a model into a DTO.
func NewMessageResponse(message models.Message) MessageResponse {
	response := MessageResponse{
		ID:        message.ID,
		ChannelID: message.ChannelID,
		SenderID:  message.SenderID,
		Content:   message.Content,
		Metadata:  message.Metadata,
		CreatedAt: message.CreatedAt,
	}
	if message.Sender != nil {
		response.SenderName = message.Sender.DisplayName
		response.SenderRole = message.Sender.Role
		response.AvatarURL = message.Sender.AvatarURL
	}
	return response
}

// NewMessageResponseSlice converts a slice of models into DTOs.
func NewMessageResponseSlice(messages []models.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewMessageResponse(message))
	}
	return out
}

// SendResult carries the rows created by one send. AI-enabled channels
// produce two: the human message and the assistant reply.
type SendResult struct {
	Message MessageResponse  `json:"message"`
	AIReply *MessageResponse `json:"ai_reply,omitempty"`
}
