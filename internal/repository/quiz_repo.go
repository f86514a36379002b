package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/opvera/opvera-api/internal/models"
)

// QuizRepository persists quizzes and their content.
type QuizRepository interface {
	Create(ctx context.Context, quiz *models.Quiz) error
	GetByID(ctx context.Context, id uint) (models.Quiz, error)
	List(ctx context.Context, limit, offset int) ([]models.Quiz, error)
	Update(ctx context.Context, quiz *models.Quiz) error
	Delete(ctx context.Context, id uint) error
}

// QuizAttemptRepository persists student attempts.
type QuizAttemptRepository interface {
	Create(ctx context.Context, attempt *models.QuizAttempt) error
	ListByStudent(ctx context.Context, studentID string, limit int) ([]models.QuizAttempt, error)
}

type quizRepository struct {
	db *gorm.DB
}

// NewQuizRepository constructs a quiz repository backed by GORM.
func NewQuizRepository(db *gorm.DB) QuizRepository {
	return &quizRepository{db: db}
}

func (r *quizRepository) Create(ctx context.Context, quiz *models.Quiz) error {
	return r.db.WithContext(ctx).Create(quiz).Error
}

func (r *quizRepository) GetByID(ctx context.Context, id uint) (models.Quiz, error) {
	var quiz models.Quiz
	if err := r.db.WithContext(ctx).First(&quiz, id).Error; err != nil {
		return models.Quiz{}, err
	}
	return quiz, nil
}

func (r *quizRepository) List(ctx context.Context, limit, offset int) ([]models.Quiz, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var quizzes []models.Quiz
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&quizzes).Error
	if err != nil {
		return nil, err
	}
	return quizzes, nil
}

func (r *quizRepository) Update(ctx context.Context, quiz *models.Quiz) error {
	return r.db.WithContext(ctx).Save(quiz).Error
}

func (r *quizRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Quiz{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type quizAttemptRepository struct {
	db *gorm.DB
}

// NewQuizAttemptRepository constructs the attempt repository.
func NewQuizAttemptRepository(db *gorm.DB) QuizAttemptRepository {
	return &quizAttemptRepository{db: db}
}

func (r *quizAttemptRepository) Create(ctx context.Context, attempt *models.QuizAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *quizAttemptRepository) ListByStudent(ctx context.Context, studentID string, limit int) ([]models.QuizAttempt, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var attempts []models.QuizAttempt
	err := r.db.WithContext(ctx).
		Preload("Quiz").
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Limit(limit).
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}
