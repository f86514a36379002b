package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/opvera/opvera-api/internal/models"
)

func seedAuditEntries(t *testing.T, db *gorm.DB) {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	entries := []models.AuditLog{
		{ActorID: "admin-1", Action: models.ActionBanUser, TargetType: "user", TargetID: "student-1", Status: models.ReviewPending, CreatedAt: base},
		{ActorID: "admin-1", Action: models.ActionDeleteChannel, TargetType: "channel", TargetID: "3", Status: models.ReviewApproved, CreatedAt: base.Add(time.Minute)},
		{ActorID: "mentor-1", Action: models.ActionKickUser, TargetType: "user", TargetID: "student-2", Status: models.ReviewPending, CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range entries {
		require.NoError(t, db.Create(&entries[i]).Error)
	}
}

func TestAuditLogRepositoryListFilters(t *testing.T) {
	db := newTestDB(t, &models.AuditLog{})
	repo := NewAuditLogRepository(db)
	seedAuditEntries(t, db)
	ctx := context.Background()

	entries, total, err := repo.List(ctx, AuditLogFilter{ActorID: "admin-1"})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, entries, 2)

	entries, total, err = repo.List(ctx, AuditLogFilter{Status: models.ReviewPending})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)

	entries, total, err = repo.List(ctx, AuditLogFilter{Action: models.ActionKickUser, TargetType: "user"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "student-2", entries[0].TargetID)
}

func TestAuditLogRepositoryListPaginatesNewestFirst(t *testing.T) {
	db := newTestDB(t, &models.AuditLog{})
	repo := NewAuditLogRepository(db)
	seedAuditEntries(t, db)

	page, total, err := repo.List(context.Background(), AuditLogFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	require.Equal(t, models.ActionKickUser, page[0].Action, "newest entry first")

	page, _, err = repo.List(context.Background(), AuditLogFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, models.ActionBanUser, page[0].Action)
}

func TestAuditLogRepositoryUpdateReview(t *testing.T) {
	db := newTestDB(t, &models.AuditLog{})
	repo := NewAuditLogRepository(db)
	seedAuditEntries(t, db)
	ctx := context.Background()

	reviewedAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.UpdateReview(ctx, 1, models.ReviewRejected, "admin-2", "overreach", reviewedAt))

	entry, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, models.ReviewRejected, entry.Status)
	require.Equal(t, "admin-2", entry.AdminID)
	require.Equal(t, "overreach", entry.AdminNotes)
	require.NotNil(t, entry.ReviewedAt)

	err = repo.UpdateReview(ctx, 999, models.ReviewApproved, "admin-2", "", reviewedAt)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
