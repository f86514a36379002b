package dto

import (
	"time"

	"github.com/opvera/opvera-api/internal/models"
)

// LeaderboardEntryResponse is one ranked row.
type LeaderboardEntryResponse struct {
	UserID      string                 `json:"user_id"`
	DisplayName string                 `json:"display_name,omitempty"`
	AvatarURL   string                 `json:"avatar_url,omitempty"`
	TotalPoints int                    `json:"total_points"`
	Rank        int                    `json:"rank"`
	Breakdown   map[string]interface{} `json:"breakdown,omitempty"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// NewLeaderboardEntryResponse converts a model into a DTO; rank is assigned
// by the caller from the sorted position.
func NewLeaderboardEntryResponse(entry models.LeaderboardEntry, rank int) LeaderboardEntryResponse {
	response := LeaderboardEntryResponse{
		UserID:      entry.UserID,
		TotalPoints: entry.TotalPoints,
		Rank:        rank,
		Breakdown:   entry.Breakdown,
		UpdatedAt:   entry.UpdatedAt,
	}
	if entry.User != nil {
		response.DisplayName = entry.User.DisplayName
		response.AvatarURL = entry.User.AvatarURL
	}
	return response
}
