package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/opvera/opvera-api/internal/models"
)

// LeaderboardRepository persists aggregated point totals.
type LeaderboardRepository interface {
	Top(ctx context.Context, limit, offset int) ([]models.LeaderboardEntry, error)
	GetByUser(ctx context.Context, userID string) (models.LeaderboardEntry, error)
	RankOf(ctx context.Context, userID string) (int64, error)
	Upsert(ctx context.Context, entry *models.LeaderboardEntry) error
}

type leaderboardRepository struct {
	db *gorm.DB
}

// NewLeaderboardRepository constructs the leaderboard repository.
func NewLeaderboardRepository(db *gorm.DB) LeaderboardRepository {
	return &leaderboardRepository{db: db}
}

func (r *leaderboardRepository) Top(ctx context.Context, limit, offset int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	var entries []models.LeaderboardEntry
	err := r.db.WithContext(ctx).
		Preload("User").
		Order("total_points DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *leaderboardRepository) GetByUser(ctx context.Context, userID string) (models.LeaderboardEntry, error) {
	var entry models.LeaderboardEntry
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&entry).Error; err != nil {
		return models.LeaderboardEntry{}, err
	}
	return entry, nil
}

// RankOf counts the entries strictly ahead of the user; rank is 1-based.
func (r *leaderboardRepository) RankOf(ctx context.Context, userID string) (int64, error) {
	entry, err := r.GetByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	var ahead int64
	err = r.db.WithContext(ctx).
		Model(&models.LeaderboardEntry{}).
		Where("total_points > ?", entry.TotalPoints).
		Count(&ahead).Error
	if err != nil {
		return 0, err
	}
	return ahead + 1, nil
}

func (r *leaderboardRepository) Upsert(ctx context.Context, entry *models.LeaderboardEntry) error {
	var existing models.LeaderboardEntry
	err := r.db.WithContext(ctx).Where("user_id = ?", entry.UserID).First(&existing).Error
	switch {
	case err == nil:
		entry.ID = existing.ID
		return r.db.WithContext(ctx).Save(entry).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		return r.db.WithContext(ctx).Create(entry).Error
	default:
		return err
	}
}
