package dto

import (
	"time"

	"github.com/opvera/opvera-api/internal/models"
)

// BanRequest strips a user of every role-based permission.
type BanRequest struct {
	UserID string `json:"user_id" validate:"required,max=36"`
}

// KickRequest removes a user from one channel's member list.
type KickRequest struct {
	UserID    string `json:"user_id" validate:"required,max=36"`
	ChannelID uint   `json:"channel_id" validate:"required"`
}

// BulkDeleteRequest removes a batch of messages in one logical operation.
type BulkDeleteRequest struct {
	MessageIDs []uint `json:"message_ids" validate:"required,min=1,dive,required"`
}

// AuditReviewRequest updates the review status of one audit entry.
type AuditReviewRequest struct {
	Status string `json:"status" validate:"required,oneof=pending approved rejected"`
	Notes  string `json:"notes" validate:"omitempty,max=2000"`
}

// AuditLogResponse is a serialized audit trail entry.
type AuditLogResponse struct {
	ID         uint                   `json:"id"`
	ActorID    string                 `json:"actor_id"`
	Action     string                 `json:"action"`
	TargetType string                 `json:"target_type"`
	TargetID   string                 `json:"target_id"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Status     string                 `json:"status"`
	AdminID    string                 `json:"admin_id,omitempty"`
	AdminNotes string                 `json:"admin_notes,omitempty"`
	ReviewedAt *time.Time             `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// NewAuditLogResponse converts a model into a DTO.
func NewAuditLogResponse(entry models.AuditLog) AuditLogResponse {
	return AuditLogResponse{
		ID:         entry.ID,
		ActorID:    entry.ActorID,
		Action:     entry.Action,
		TargetType: entry.TargetType,
		TargetID:   entry.TargetID,
		Details:    entry.Details,
		Status:     entry.Status,
		AdminID:    entry.AdminID,
		AdminNotes: entry.AdminNotes,
		ReviewedAt: entry.ReviewedAt,
		CreatedAt:  entry.CreatedAt,
	}
}

// NewAuditLogResponseSlice converts a slice of models into DTOs.
func NewAuditLogResponseSlice(entries []models.AuditLog) []AuditLogResponse {
	out := make([]AuditLogResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, NewAuditLogResponse(entry))
	}
	return out
}
