package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/opvera/opvera-api/internal/dto"
	"github.com/opvera/opvera-api/internal/models"
	"github.com/opvera/opvera-api/internal/observability"
	"github.com/opvera/opvera-api/internal/repository"
)

// ErrAuditEntryNotFound indicates the audit entry does not exist.
var ErrAuditEntryNotFound = errors.New("audit entry not found")

// AuditService records privileged actions and serves the admin review flow.
type AuditService interface {
	// Record appends one entry for an already-committed mutation. A failed
	// write is logged and swallowed; the mutation is never rolled back.
	Record(ctx context.Context, actor Actor, action, targetType, targetID string, details map[string]interface{})
	List(ctx context.Context, filter repository.AuditLogFilter) ([]dto.AuditLogResponse, int64, error)
	Review(ctx context.Context, id uint, admin Actor, payload dto.AuditReviewRequest) (dto.AuditLogResponse, error)
}

type auditService struct {
	repo      repository.AuditLogRepository
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAuditService constructs the audit service.
func NewAuditService(repo repository.AuditLogRepository, validate *validator.Validate, logger zerolog.Logger) AuditService {
	return &auditService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "audit_service").Logger(),
		now:       time.Now,
	}
}

func (s *auditService) Record(ctx context.Context, actor Actor, action, targetType, targetID string, details map[string]interface{}) {
	entry := models.AuditLog{
		ActorID:    actor.ID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    datatypes.JSONMap(details),
		Status:     models.ReviewPending,
	}

	if err := s.repo.Create(ctx, &entry); err != nil {
		observability.AuditWriteFailures().Inc()
		s.logger.Error().Err(err).
			Str("actor_id", actor.ID).
			Str("action", action).
			Str("target_id", targetID).
			Msg("audit write failed after committed mutation")
		return
	}

	observability.ModerationActions().WithLabelValues(action).Inc()
}

func (s *auditService) List(ctx context.Context, filter repository.AuditLogFilter) ([]dto.AuditLogResponse, int64, error) {
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return dto.NewAuditLogResponseSlice(entries), total, nil
}

func (s *auditService) Review(ctx context.Context, id uint, admin Actor, payload dto.AuditReviewRequest) (dto.AuditLogResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AuditLogResponse{}, err
	}

	if err := s.repo.UpdateReview(ctx, id, payload.Status, admin.ID, payload.Notes, s.now()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AuditLogResponse{}, ErrAuditEntryNotFound
		}
		return dto.AuditLogResponse{}, err
	}

	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.AuditLogResponse{}, err
	}

	s.logger.Info().Uint("entry_id", id).Str("status", payload.Status).Msg("audit entry reviewed")

	return dto.NewAuditLogResponse(entry), nil
}
