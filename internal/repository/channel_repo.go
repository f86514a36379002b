package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/opvera/opvera-api/internal/models"
)

// ChannelRepository persists conversation scopes and their membership lists.
type ChannelRepository interface {
	Create(ctx context.Context, channel *models.Channel) error
	GetByID(ctx context.Context, id uint) (models.Channel, error)
	List(ctx context.Context) ([]models.Channel, error)
	Update(ctx context.Context, channel *models.Channel) error
	Delete(ctx context.Context, id uint) error
	Touch(ctx context.Context, id uint) error
}

type channelRepository struct {
	db *gorm.DB
}

// NewChannelRepository constructs a channel repository backed by GORM.
func NewChannelRepository(db *gorm.DB) ChannelRepository {
	return &channelRepository{db: db}
}

func (r *channelRepository) Create(ctx context.Context, channel *models.Channel) error {
	return r.db.WithContext(ctx).Create(channel).Error
}

func (r *channelRepository) GetByID(ctx context.Context, id uint) (models.Channel, error) {
	var channel models.Channel
	if err := r.db.WithContext(ctx).First(&channel, id).Error; err != nil {
		return models.Channel{}, err
	}
	return channel, nil
}

func (r *channelRepository) List(ctx context.Context) ([]models.Channel, error) {
	var channels []models.Channel
	if err := r.db.WithContext(ctx).Order("updated_at DESC").Find(&channels).Error; err != nil {
		return nil, err
	}
	return channels, nil
}

func (r *channelRepository) Update(ctx context.Context, channel *models.Channel) error {
	return r.db.WithContext(ctx).Save(channel).Error
}

func (r *channelRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Channel{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Touch bumps updated_at so the channel surfaces at the top of the directory
// after a new message.
func (r *channelRepository) Touch(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Channel{}).
		Where("id = ?", id).
		Update("updated_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}
