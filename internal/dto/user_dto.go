package dto

import (
	"time"

	"github.com/opvera/opvera-api/internal/models"
)

// ProfileUpdateRequest mutates the caller's own profile fields.
type ProfileUpdateRequest struct {
	DisplayName *string  `json:"display_name" validate:"omitempty,min=2,max=255"`
	AvatarURL   *string  `json:"avatar_url" validate:"omitempty,url,max=512"`
	Skills      []string `json:"skills" validate:"omitempty,dive,max=64"`
}

// UserResponse is a serialized account.
type UserResponse struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	Verified    bool      `json:"verified"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Skills      []string  `json:"skills,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewUserResponse converts a model into a DTO.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Role:        user.Role,
		Verified:    user.Verified,
		AvatarURL:   user.AvatarURL,
		Skills:      user.Skills,
		CreatedAt:   user.CreatedAt,
	}
}

// NewUserResponseSlice converts a slice of models into DTOs.
func NewUserResponseSlice(users []models.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, user := range users {
		out = append(out, NewUserResponse(user))
	}
	return out
}
