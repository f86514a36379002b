package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/opvera/opvera-api/internal/models"
)

// MessageRepository persists chat messages for history and moderation.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id uint) (models.Message, error)
	ListByChannel(ctx context.Context, channelID uint, limit int) ([]models.Message, error)
	ListRecent(ctx context.Context, channelID uint, limit int) ([]models.Message, error)
	LatestByChannel(ctx context.Context, channelID uint) (models.Message, error)
	Search(ctx context.Context, query string, limit int) ([]models.Message, error)
	Delete(ctx context.Context, id uint) error
	DeleteMany(ctx context.Context, ids []uint) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs a message repository backed by GORM.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *messageRepository) GetByID(ctx context.Context, id uint) (models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).Preload("Sender").First(&message, id).Error; err != nil {
		return models.Message{}, err
	}
	return message, nil
}

// ListByChannel returns channel history ascending by creation time, joined
// with the sender for display name, avatar and role.
func (r *messageRepository) ListByChannel(ctx context.Context, channelID uint, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}

	var messages []models.Message
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("channel_id = ?", channelID).
		Order("created_at ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// ListRecent returns the newest messages oldest-first, used as the rolling
// conversation window for assistant replies.
func (r *messageRepository) ListRecent(ctx context.Context, channelID uint, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *messageRepository) LatestByChannel(ctx context.Context, channelID uint) (models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("channel_id = ?", channelID).
		Order("created_at DESC").
		First(&message).Error
	if err != nil {
		return models.Message{}, err
	}
	return message, nil
}

func (r *messageRepository) Search(ctx context.Context, query string, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var messages []models.Message
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("content LIKE ?", "%"+query+"%").
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Message{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *messageRepository) DeleteMany(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Message{})
	return result.RowsAffected, result.Error
}
