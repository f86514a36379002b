package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/opvera/opvera-api/internal/dto"
	"github.com/opvera/opvera-api/internal/models"
	"github.com/opvera/opvera-api/internal/repository"
)

// DirectoryNotifier receives a hint whenever the channel directory changes
// so connected clients can re-fetch their channel lists. The chat service
// implements it; a nil notifier disables the hints.
type DirectoryNotifier interface {
	NotifyDirectoryChanged(ctx context.Context, channelID uint)
}

// ChannelService exposes the channel directory and membership operations.
type ChannelService interface {
	Create(ctx context.Context, actor Actor, req dto.ChannelCreateRequest) (dto.ChannelResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.ChannelResponse, error)
	ListForUser(ctx context.Context, actor Actor) ([]dto.ChannelResponse, error)
	AddMember(ctx context.Context, actor Actor, channelID uint, userID string) (dto.ChannelResponse, error)
	RemoveMember(ctx context.Context, actor Actor, channelID uint, userID string) (dto.ChannelResponse, error)
	PromoteAdmin(ctx context.Context, actor Actor, channelID uint, userID string) (dto.ChannelResponse, error)
	DemoteAdmin(ctx context.Context, actor Actor, channelID uint, userID string) (dto.ChannelResponse, error)
}

type channelService struct {
	channels  repository.ChannelRepository
	messages  repository.MessageRepository
	users     repository.UserRepository
	audit     AuditService
	policy    *AuthorizationPolicy
	directory DirectoryNotifier
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewChannelService constructs the channel directory service.
func NewChannelService(
	channels repository.ChannelRepository,
	messages repository.MessageRepository,
	users repository.UserRepository,
	audit AuditService,
	policy *AuthorizationPolicy,
	directory DirectoryNotifier,
	validate *validator.Validate,
	logger zerolog.Logger,
) ChannelService {
	return &channelService{
		channels:  channels,
		messages:  messages,
		users:     users,
		audit:     audit,
		policy:    policy,
		directory: directory,
		validator: validate,
		logger:    logger.With().Str("component", "channel_service").Logger(),
	}
}

func (s *channelService) notifyDirectory(ctx context.Context, channelID uint) {
	if s.directory != nil {
		s.directory.NotifyDirectoryChanged(ctx, channelID)
	}
}

func (s *channelService) Create(ctx context.Context, actor Actor, req dto.ChannelCreateRequest) (dto.ChannelResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ChannelResponse{}, err
	}

	members := req.Members
	if !containsString(members, actor.ID) {
		members = append(members, actor.ID)
	}

	channel := models.Channel{
		Name:     req.Name,
		Type:     req.Type,
		Members:  datatypes.NewJSONSlice(members),
		Admins:   datatypes.NewJSONSlice([]string{actor.ID}),
		Metadata: req.Metadata,
	}
	if err := s.channels.Create(ctx, &channel); err != nil {
		return dto.ChannelResponse{}, err
	}

	s.logger.Info().Uint("channel_id", channel.ID).Str("creator", actor.ID).Str("type", channel.Type).Msg("channel created")
	s.notifyDirectory(ctx, channel.ID)
	return dto.NewChannelResponse(channel), nil
}

func (s *channelService) Get(ctx context.Context, actor Actor, id uint) (dto.ChannelResponse, error) {
	channel, err := s.channels.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChannelResponse{}, ErrChannelNotFound
		}
		return dto.ChannelResponse{}, err
	}

	if !s.visibleTo(actor, &channel) {
		return dto.ChannelResponse{}, ErrForbidden
	}

	response := dto.NewChannelResponse(channel)
	s.attachPreview(ctx, &response)
	return response, nil
}

// ListForUser returns the channels visible to the user, most recently active
// first, each annotated with a preview of its latest message.
func (s *channelService) ListForUser(ctx context.Context, actor Actor) ([]dto.ChannelResponse, error) {
	channels, err := s.channels.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]dto.ChannelResponse, 0, len(channels))
	for i := range channels {
		if !s.visibleTo(actor, &channels[i]) {
			continue
		}
		response := dto.NewChannelResponse(channels[i])
		s.attachPreview(ctx, &response)
		out = append(out, response)
	}
	return out, nil
}

func (s *channelService) AddMember(ctx context.Context, actor Actor, channelID uint, userID string) (dto.ChannelResponse, error) {
	return s.mutateMembership(ctx, actor, channelID, userID, models.ActionAddMember, func(channel *models.Channel) bool {
		if channel.HasMember(userID) {
			return false
		}
		channel.Members = append(channel.Members, userID)
		return true
	})
}

func (s *channelService) RemoveMember(ctx context.Context, actor Actor, channelID uint, userID string) (dto.ChannelResponse, error) {
	return s.mutateMembership(ctx, actor, channelID, userID, models.ActionRemoveMember, func(channel *models.Channel) bool {
		if !channel.HasMember(userID) {
			return false
		}
		channel.Members = removeString(channel.Members, userID)
		channel.Admins = removeString(channel.Admins, userID)
		return true
	})
}

func (s *channelService) PromoteAdmin(ctx context.Context, actor Actor, channelID uint, userID string) (dto.ChannelResponse, error) {
	return s.mutateMembership(ctx, actor, channelID, userID, models.ActionAddAdmin, func(channel *models.Channel) bool {
		if channel.HasAdmin(userID) {
			return false
		}
		if !channel.HasMember(userID) {
			channel.Members = append(channel.Members, userID)
		}
		channel.Admins = append(channel.Admins, userID)
		return true
	})
}

func (s *channelService) DemoteAdmin(ctx context.Context, actor Actor, channelID uint, userID string) (dto.ChannelResponse, error) {
	return s.mutateMembership(ctx, actor, channelID, userID, models.ActionRemoveAdmin, func(channel *models.Channel) bool {
		if !channel.HasAdmin(userID) {
			return false
		}
		channel.Admins = removeString(channel.Admins, userID)
		return true
	})
}

func (s *channelService) mutateMembership(
	ctx context.Context,
	actor Actor,
	channelID uint,
	userID string,
	action string,
	mutate func(channel *models.Channel) bool,
) (dto.ChannelResponse, error) {
	channel, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChannelResponse{}, ErrChannelNotFound
		}
		return dto.ChannelResponse{}, err
	}

	if !s.policy.CanModerate(actor, &channel) {
		return dto.ChannelResponse{}, ErrForbidden
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChannelResponse{}, ErrUserNotFound
		}
		return dto.ChannelResponse{}, err
	}

	if !mutate(&channel) {
		// No-op mutation, return the current state without an audit entry.
		return dto.NewChannelResponse(channel), nil
	}

	if err := s.channels.Update(ctx, &channel); err != nil {
		return dto.ChannelResponse{}, err
	}

	s.audit.Record(ctx, actor, action, "channel", strconv.FormatUint(uint64(channelID), 10), map[string]interface{}{
		"user_id": userID,
	})
	s.notifyDirectory(ctx, channelID)

	return dto.NewChannelResponse(channel), nil
}

func (s *channelService) visibleTo(actor Actor, channel *models.Channel) bool {
	if channel.Type == models.ChannelTypeGlobal {
		return true
	}
	if channel.HasMember(actor.ID) {
		return true
	}
	return s.policy.CanModerate(actor, channel)
}

func (s *channelService) attachPreview(ctx context.Context, response *dto.ChannelResponse) {
	latest, err := s.messages.LatestByChannel(ctx, response.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Err(err).Uint("channel_id", response.ID).Msg("failed to load last message preview")
		}
		return
	}

	preview := dto.LastMessagePreview{
		Content:   latest.Content,
		CreatedAt: latest.CreatedAt,
	}
	if latest.Sender != nil {
		preview.SenderName = latest.Sender.DisplayName
	}
	response.LastMessage = &preview
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func removeString(list []string, value string) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		if item != value {
			out = append(out, item)
		}
	}
	return out
}
