package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/opvera/opvera-api/internal/models"
)

// AuditLogFilter narrows audit log queries for admin review.
type AuditLogFilter struct {
	Page       int
	PageSize   int
	ActorID    string
	Action     string
	TargetType string
	Status     string
}

// AuditLogRepository persists the append-only audit trail.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	GetByID(ctx context.Context, id uint) (models.AuditLog, error)
	List(ctx context.Context, filter AuditLogFilter) ([]models.AuditLog, int64, error)
	UpdateReview(ctx context.Context, id uint, status, adminID, notes string, reviewedAt time.Time) error
}

type auditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository constructs the audit log repository.
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

func (r *auditLogRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditLogRepository) GetByID(ctx context.Context, id uint) (models.AuditLog, error) {
	var entry models.AuditLog
	if err := r.db.WithContext(ctx).First(&entry, id).Error; err != nil {
		return models.AuditLog{}, err
	}
	return entry, nil
}

func (r *auditLogRepository) List(ctx context.Context, filter AuditLogFilter) ([]models.AuditLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.AuditLog{})

	if filter.ActorID != "" {
		query = query.Where("actor_id = ?", filter.ActorID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.TargetType != "" {
		query = query.Where("target_type = ?", filter.TargetType)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var entries []models.AuditLog
	if err := query.Order("created_at DESC").Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// UpdateReview is the single permitted mutation of an audit row.
func (r *auditLogRepository) UpdateReview(ctx context.Context, id uint, status, adminID, notes string, reviewedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.AuditLog{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"admin_id":    adminID,
			"admin_notes": notes,
			"reviewed_at": reviewedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
