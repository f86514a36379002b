package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audit action tags. Every privileged mutation writes exactly one entry.
const (
	ActionDeleteMessage      = "delete_message"
	ActionFlagMessage        = "flag_message"
	ActionAdminDeleteMessage = "admin_delete_message"
	ActionBulkDeleteMessages = "admin_bulk_delete_messages"
	ActionBanUser            = "ban_user"
	ActionKickUser           = "kick_user"
	ActionDeleteChannel      = "delete_channel"
	ActionAddAdmin           = "add_admin"
	ActionRemoveAdmin        = "remove_admin"
	ActionAddMember          = "add_member"
	ActionRemoveMember       = "remove_member"
)

// Review statuses an admin can assign to an entry after the fact.
const (
	ReviewPending  = "pending"
	ReviewApproved = "approved"
	ReviewRejected = "rejected"
)

// AuditLog is an append-only record of a privileged action. Rows are never
// mutated except for a later admin review-status update.
type AuditLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    string            `gorm:"size:36;index;not null" json:"actor_id"`
	Action     string            `gorm:"size:64;index;not null" json:"action"`
	TargetType string            `gorm:"size:64;index" json:"target_type"`
	TargetID   string            `gorm:"size:64" json:"target_id"`
	Details    datatypes.JSONMap `gorm:"type:json" json:"details"`
	Status     string            `gorm:"size:32;default:pending" json:"status"`
	AdminID    string            `gorm:"size:36" json:"admin_id,omitempty"`
	AdminNotes string            `gorm:"type:text" json:"admin_notes,omitempty"`
	ReviewedAt *time.Time        `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`
}
