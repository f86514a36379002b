package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/opvera/opvera-api/internal/dto"
	"github.com/opvera/opvera-api/internal/models"
	"github.com/opvera/opvera-api/internal/repository"
)

// ErrUserNotFound indicates the account does not exist.
var ErrUserNotFound = errors.New("user not found")

// ErrInvalidRole indicates a role change to an unknown role name.
var ErrInvalidRole = errors.New("invalid role")

var knownRoles = map[string]struct{}{
	models.RoleStudent: {},
	models.RoleMentor:  {},
	models.RoleCompany: {},
	models.RoleAdmin:   {},
	models.RoleBanned:  {},
}

// UserService exposes account lookup and profile management.
type UserService interface {
	Get(ctx context.Context, id string) (dto.UserResponse, error)
	List(ctx context.Context, limit, offset int) ([]dto.UserResponse, error)
	Search(ctx context.Context, query string, limit int) ([]dto.UserResponse, error)
	UpdateProfile(ctx context.Context, actor Actor, req dto.ProfileUpdateRequest) (dto.UserResponse, error)
	ChangeRole(ctx context.Context, actor Actor, userID, role string) (dto.UserResponse, error)
}

type userService struct {
	users     repository.UserRepository
	audit     AuditService
	policy    *AuthorizationPolicy
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewUserService constructs the user service.
func NewUserService(
	users repository.UserRepository,
	audit AuditService,
	policy *AuthorizationPolicy,
	validate *validator.Validate,
	logger zerolog.Logger,
) UserService {
	return &userService{
		users:     users,
		audit:     audit,
		policy:    policy,
		validator: validate,
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) Get(ctx context.Context, id string) (dto.UserResponse, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

func (s *userService) List(ctx context.Context, limit, offset int) ([]dto.UserResponse, error) {
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return dto.NewUserResponseSlice(users), nil
}

func (s *userService) Search(ctx context.Context, query string, limit int) ([]dto.UserResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []dto.UserResponse{}, nil
	}

	users, err := s.users.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return dto.NewUserResponseSlice(users), nil
}

func (s *userService) UpdateProfile(ctx context.Context, actor Actor, req dto.ProfileUpdateRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}

	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}
	if req.AvatarURL != nil {
		user.AvatarURL = *req.AvatarURL
	}
	if req.Skills != nil {
		user.Skills = datatypes.NewJSONSlice(req.Skills)
	}

	if err := s.users.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

// ChangeRole is admin-only and audited. Banning goes through the moderation
// service instead; this rejects direct role changes to banned so the two
// paths do not drift apart.
func (s *userService) ChangeRole(ctx context.Context, actor Actor, userID, role string) (dto.UserResponse, error) {
	if !s.policy.CanAdministrate(actor) {
		return dto.UserResponse{}, ErrForbidden
	}
	if _, ok := knownRoles[role]; !ok || role == models.RoleBanned {
		return dto.UserResponse{}, ErrInvalidRole
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}

	previous := user.Role
	if err := s.users.UpdateRole(ctx, userID, role); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}

	s.audit.Record(ctx, actor, "change_role", "user", userID, map[string]interface{}{
		"from": previous,
		"to":   role,
	})

	user.Role = role
	return dto.NewUserResponse(user), nil
}
