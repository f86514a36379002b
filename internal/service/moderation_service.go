package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/opvera/opvera-api/internal/dto"
	"github.com/opvera/opvera-api/internal/models"
	"github.com/opvera/opvera-api/internal/repository"
)

// ModerationService implements the privileged operations behind the admin
// surface. Every successful call leaves an audit trail entry.
type ModerationService interface {
	BanUser(ctx context.Context, actor Actor, req dto.BanRequest) error
	KickUser(ctx context.Context, actor Actor, req dto.KickRequest) error
	DeleteChannel(ctx context.Context, actor Actor, channelID uint) error
	BulkDeleteMessages(ctx context.Context, actor Actor, req dto.BulkDeleteRequest) (int64, error)
	SearchMessages(ctx context.Context, actor Actor, query string, limit int) ([]dto.MessageResponse, error)
}

type moderationService struct {
	users     repository.UserRepository
	channels  repository.ChannelRepository
	messages  repository.MessageRepository
	audit     AuditService
	policy    *AuthorizationPolicy
	directory DirectoryNotifier
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewModerationService constructs the moderation service.
func NewModerationService(
	users repository.UserRepository,
	channels repository.ChannelRepository,
	messages repository.MessageRepository,
	audit AuditService,
	policy *AuthorizationPolicy,
	directory DirectoryNotifier,
	validate *validator.Validate,
	logger zerolog.Logger,
) ModerationService {
	return &moderationService{
		users:     users,
		channels:  channels,
		messages:  messages,
		audit:     audit,
		policy:    policy,
		directory: directory,
		validator: validate,
		logger:    logger.With().Str("component", "moderation_service").Logger(),
	}
}

// BanUser switches the target's role to banned, which denies every permission
// check from then on. Admins cannot ban other admins.
func (s *moderationService) BanUser(ctx context.Context, actor Actor, req dto.BanRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	if !s.policy.CanAdministrate(actor) {
		return ErrForbidden
	}

	target, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if target.Role == models.RoleAdmin {
		return ErrForbidden
	}

	if err := s.users.UpdateRole(ctx, req.UserID, models.RoleBanned); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	s.audit.Record(ctx, actor, models.ActionBanUser, "user", req.UserID, map[string]interface{}{
		"previous_role": target.Role,
	})
	s.logger.Info().Str("target", req.UserID).Str("actor", actor.ID).Msg("user banned")
	return nil
}

// KickUser removes the target from one channel's membership.
func (s *moderationService) KickUser(ctx context.Context, actor Actor, req dto.KickRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}

	channel, err := s.channels.GetByID(ctx, req.ChannelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChannelNotFound
		}
		return err
	}

	if !s.policy.CanModerate(actor, &channel) {
		return ErrForbidden
	}
	if !channel.HasMember(req.UserID) {
		return ErrUserNotFound
	}

	channel.Members = removeString(channel.Members, req.UserID)
	channel.Admins = removeString(channel.Admins, req.UserID)
	if err := s.channels.Update(ctx, &channel); err != nil {
		return err
	}

	s.audit.Record(ctx, actor, models.ActionKickUser, "user", req.UserID, map[string]interface{}{
		"channel_id": req.ChannelID,
	})
	return nil
}

// DeleteChannel removes a channel and is restricted to platform admins.
func (s *moderationService) DeleteChannel(ctx context.Context, actor Actor, channelID uint) error {
	if !s.policy.CanAdministrate(actor) {
		return ErrForbidden
	}

	channel, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChannelNotFound
		}
		return err
	}

	if err := s.channels.Delete(ctx, channelID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChannelNotFound
		}
		return err
	}

	s.audit.Record(ctx, actor, models.ActionDeleteChannel, "channel", strconv.FormatUint(uint64(channelID), 10), map[string]interface{}{
		"name": channel.Name,
		"type": channel.Type,
	})
	s.logger.Info().Uint("channel_id", channelID).Str("actor", actor.ID).Msg("channel deleted")
	if s.directory != nil {
		s.directory.NotifyDirectoryChanged(ctx, channelID)
	}
	return nil
}

// BulkDeleteMessages removes a batch of messages under a single audit entry.
// Missing ids are skipped; the returned count reflects rows actually removed.
func (s *moderationService) BulkDeleteMessages(ctx context.Context, actor Actor, req dto.BulkDeleteRequest) (int64, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, err
	}
	if !s.policy.CanAdministrate(actor) {
		return 0, ErrForbidden
	}

	deleted, err := s.messages.DeleteMany(ctx, req.MessageIDs)
	if err != nil {
		return 0, err
	}

	s.audit.Record(ctx, actor, models.ActionBulkDeleteMessages, "message", "bulk", map[string]interface{}{
		"message_ids": req.MessageIDs,
		"requested":   len(req.MessageIDs),
		"deleted":     deleted,
	})
	return deleted, nil
}

// SearchMessages runs a content search across every channel for the admin
// panel. Read-only, so no audit entry.
func (s *moderationService) SearchMessages(ctx context.Context, actor Actor, query string, limit int) ([]dto.MessageResponse, error) {
	if !s.policy.CanAdministrate(actor) {
		return nil, ErrForbidden
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return []dto.MessageResponse{}, nil
	}

	messages, err := s.messages.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return dto.NewMessageResponseSlice(messages), nil
}
