package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/opvera/opvera-api/internal/models"
)

// ProjectFilter narrows project listings.
type ProjectFilter struct {
	OwnerID string
	Status  string
	Limit   int
}

// ProjectRepository persists student projects.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id uint) (models.Project, error)
	List(ctx context.Context, filter ProjectFilter) ([]models.Project, error)
	Update(ctx context.Context, project *models.Project) error
}

// AssignmentRepository persists mentor-issued assignments.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *models.Assignment) error
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
	ListByAssignee(ctx context.Context, userID string) ([]models.Assignment, error)
	ListByStatus(ctx context.Context, status string, limit int) ([]models.Assignment, error)
	Update(ctx context.Context, assignment *models.Assignment) error
}

type projectRepository struct {
	db *gorm.DB
}

// NewProjectRepository constructs a project repository backed by GORM.
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *projectRepository) GetByID(ctx context.Context, id uint) (models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).First(&project, id).Error; err != nil {
		return models.Project{}, err
	}
	return project, nil
}

func (r *projectRepository) List(ctx context.Context, filter ProjectFilter) ([]models.Project, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	query := r.db.WithContext(ctx).Model(&models.Project{})
	if filter.OwnerID != "" {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var projects []models.Project
	if err := query.Order("created_at DESC").Limit(limit).Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *projectRepository) Update(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Save(project).Error
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository constructs an assignment repository backed by GORM.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).First(&assignment, id).Error; err != nil {
		return models.Assignment{}, err
	}
	return assignment, nil
}

func (r *assignmentRepository) ListByAssignee(ctx context.Context, userID string) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := r.db.WithContext(ctx).
		Where("assigned_to = ?", userID).
		Order("created_at DESC").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *assignmentRepository) ListByStatus(ctx context.Context, status string, limit int) ([]models.Assignment, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	var assignments []models.Assignment
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *assignmentRepository) Update(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Save(assignment).Error
}
