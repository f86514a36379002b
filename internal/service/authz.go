package service

import (
	"errors"

	"github.com/opvera/opvera-api/internal/models"
)

// ErrForbidden indicates the actor lacks the capability for an operation.
var ErrForbidden = errors.New("insufficient permissions")

// Actor is the minimal identity a capability check needs.
type Actor struct {
	ID   string
	Role string
}

// AuthorizationPolicy is the single capability evaluator consulted by every
// moderation entry point. Moderator capability is the union of platform-wide
// admin, platform-wide mentor, and channel-local admin privilege.
type AuthorizationPolicy struct{}

// NewAuthorizationPolicy constructs the policy.
func NewAuthorizationPolicy() *AuthorizationPolicy {
	return &AuthorizationPolicy{}
}

// CanModerate reports whether the actor may perform moderation inside the
// channel. A nil channel restricts the check to platform-wide capability.
func (p *AuthorizationPolicy) CanModerate(actor Actor, channel *models.Channel) bool {
	switch actor.Role {
	case models.RoleAdmin, models.RoleMentor:
		return true
	}
	return channel != nil && channel.HasAdmin(actor.ID)
}

// CanAdministrate reports whether the actor holds platform-wide admin rights.
func (p *AuthorizationPolicy) CanAdministrate(actor Actor) bool {
	return actor.Role == models.RoleAdmin
}

// CanTouchMessage reports whether the actor may delete or flag the message:
// the sender always can, moderators can for any message in the channel.
func (p *AuthorizationPolicy) CanTouchMessage(actor Actor, message models.Message, channel *models.Channel) bool {
	if actor.ID == message.SenderID {
		return true
	}
	return p.CanModerate(actor, channel)
}
