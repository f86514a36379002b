package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/opvera/opvera-api/internal/dto"
	"github.com/opvera/opvera-api/internal/models"
	"github.com/opvera/opvera-api/internal/repository"
)

const (
	leaderboardCacheKey        = "opvera:leaderboard:top"
	defaultLeaderboardCacheTTL = 30 * time.Second
)

// ErrLeaderboardEntryNotFound indicates the user has no points yet.
var ErrLeaderboardEntryNotFound = errors.New("leaderboard entry not found")

// LeaderboardService aggregates scores into ranked totals. The top page is
// cached in Redis; score writes invalidate the cache.
type LeaderboardService interface {
	ScoreRecorder
	Top(ctx context.Context, limit, offset int) ([]dto.LeaderboardEntryResponse, error)
	ForUser(ctx context.Context, userID string) (dto.LeaderboardEntryResponse, error)
	AddPoints(ctx context.Context, userID, source string, points int) error
}

type leaderboardService struct {
	entries  repository.LeaderboardRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// NewLeaderboardService constructs the leaderboard service. cache may be nil;
// reads then always hit the database. A non-positive cacheTTL falls back to
// the default.
func NewLeaderboardService(entries repository.LeaderboardRepository, cache *redis.Client, cacheTTL time.Duration, logger zerolog.Logger) LeaderboardService {
	if cacheTTL <= 0 {
		cacheTTL = defaultLeaderboardCacheTTL
	}
	return &leaderboardService{
		entries:  entries,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.With().Str("component", "leaderboard_service").Logger(),
	}
}

func (s *leaderboardService) Top(ctx context.Context, limit, offset int) ([]dto.LeaderboardEntryResponse, error) {
	if cached, ok := s.readCache(ctx, limit, offset); ok {
		return cached, nil
	}

	entries, err := s.entries.Top(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	out := make([]dto.LeaderboardEntryResponse, 0, len(entries))
	for i, entry := range entries {
		out = append(out, dto.NewLeaderboardEntryResponse(entry, offset+i+1))
	}

	s.writeCache(ctx, limit, offset, out)
	return out, nil
}

func (s *leaderboardService) ForUser(ctx context.Context, userID string) (dto.LeaderboardEntryResponse, error) {
	entry, err := s.entries.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.LeaderboardEntryResponse{}, ErrLeaderboardEntryNotFound
		}
		return dto.LeaderboardEntryResponse{}, err
	}

	rank, err := s.entries.RankOf(ctx, userID)
	if err != nil {
		return dto.LeaderboardEntryResponse{}, err
	}
	return dto.NewLeaderboardEntryResponse(entry, int(rank)), nil
}

// RecordQuizScore credits a finished quiz attempt.
func (s *leaderboardService) RecordQuizScore(ctx context.Context, studentID string, quizID uint, score int) error {
	return s.AddPoints(ctx, studentID, fmt.Sprintf("quiz:%d", quizID), score)
}

// AddPoints adds to a user's running total and records the source in the
// per-user breakdown.
func (s *leaderboardService) AddPoints(ctx context.Context, userID, source string, points int) error {
	if points <= 0 {
		return nil
	}

	entry, err := s.entries.GetByUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		entry = models.LeaderboardEntry{UserID: userID, Breakdown: datatypes.JSONMap{}}
	}
	if entry.Breakdown == nil {
		entry.Breakdown = datatypes.JSONMap{}
	}

	entry.TotalPoints += points
	entry.Breakdown[source] = breakdownPoints(entry.Breakdown, source) + float64(points)

	if err := s.entries.Upsert(ctx, &entry); err != nil {
		return err
	}

	s.invalidateCache(ctx)
	return nil
}

// breakdownPoints reads one source's accumulated points. JSONMap columns
// decode numbers as json.Number on the way out of the database, while
// fresh in-process writes hold float64; both count.
func breakdownPoints(breakdown datatypes.JSONMap, source string) float64 {
	switch v := breakdown[source].(type) {
	case float64:
		return v
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0
		}
		return parsed
	case int:
		return float64(v)
	default:
		return 0
	}
}

func (s *leaderboardService) cacheKey(limit, offset int) string {
	return fmt.Sprintf("%s:%d:%d", leaderboardCacheKey, limit, offset)
}

func (s *leaderboardService) readCache(ctx context.Context, limit, offset int) ([]dto.LeaderboardEntryResponse, bool) {
	if s.cache == nil {
		return nil, false
	}

	raw, err := s.cache.Get(ctx, s.cacheKey(limit, offset)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("leaderboard cache read failed")
		}
		return nil, false
	}

	var out []dto.LeaderboardEntryResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		s.logger.Warn().Err(err).Msg("leaderboard cache entry corrupt")
		return nil, false
	}
	return out, true
}

func (s *leaderboardService) writeCache(ctx context.Context, limit, offset int, entries []dto.LeaderboardEntryResponse) {
	if s.cache == nil {
		return
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(limit, offset), raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("leaderboard cache write failed")
	}
}

func (s *leaderboardService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}

	iter := s.cache.Scan(ctx, 0, leaderboardCacheKey+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.cache.Del(ctx, iter.Val()).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("leaderboard cache invalidation failed")
		}
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn().Err(err).Msg("leaderboard cache scan failed")
	}
}
