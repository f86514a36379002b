package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/opvera/opvera-api/internal/dto"
	"github.com/opvera/opvera-api/internal/models"
)

func newModerationFixture(t *testing.T) (ModerationService, *stubUserRepo, *stubChannelRepo, *stubMessageRepo, *recordingAudit) {
	t.Helper()
	users := newStubUserRepo(
		models.User{ID: "admin-1", DisplayName: "Admin", Email: "admin@example.com", Role: models.RoleAdmin},
		models.User{ID: "mentor-1", DisplayName: "Mentor", Email: "mentor@example.com", Role: models.RoleMentor},
		models.User{ID: "student-1", DisplayName: "Student", Email: "student@example.com", Role: models.RoleStudent},
	)
	channels := newStubChannelRepo(models.Channel{
		ID:      1,
		Name:    "general",
		Type:    models.ChannelTypeGroup,
		Members: datatypes.NewJSONSlice([]string{"student-1", "mentor-1"}),
		Admins:  datatypes.NewJSONSlice([]string{"mentor-1"}),
	})
	messages := newStubMessageRepo(
		models.Message{ID: 1, ChannelID: 1, SenderID: "student-1", Content: "one"},
		models.Message{ID: 2, ChannelID: 1, SenderID: "student-1", Content: "two"},
	)
	audit := &recordingAudit{}
	svc := NewModerationService(users, channels, messages, audit, NewAuthorizationPolicy(), nil, testValidator(), zerolog.Nop())
	return svc, users, channels, messages, audit
}

func TestBanUserRequiresAdmin(t *testing.T) {
	svc, users, _, _, audit := newModerationFixture(t)

	err := svc.BanUser(context.Background(), Actor{ID: "mentor-1", Role: models.RoleMentor}, dto.BanRequest{UserID: "student-1"})
	require.ErrorIs(t, err, ErrForbidden)

	target, err := users.GetByID(context.Background(), "student-1")
	require.NoError(t, err)
	require.Equal(t, models.RoleStudent, target.Role)
	require.Empty(t, audit.all())
}

func TestBanUserSetsBannedRoleAndAudits(t *testing.T) {
	svc, users, _, _, audit := newModerationFixture(t)
	admin := Actor{ID: "admin-1", Role: models.RoleAdmin}

	require.NoError(t, svc.BanUser(context.Background(), admin, dto.BanRequest{UserID: "student-1"}))

	target, err := users.GetByID(context.Background(), "student-1")
	require.NoError(t, err)
	require.Equal(t, models.RoleBanned, target.Role)

	entries := audit.all()
	require.Len(t, entries, 1)
	require.Equal(t, models.ActionBanUser, entries[0].Action)
	require.Equal(t, "student-1", entries[0].TargetID)
	require.Equal(t, models.RoleStudent, entries[0].Details["previous_role"])
}

func TestBanUserCannotTargetAdmin(t *testing.T) {
	svc, _, _, _, audit := newModerationFixture(t)

	err := svc.BanUser(context.Background(), Actor{ID: "admin-1", Role: models.RoleAdmin}, dto.BanRequest{UserID: "admin-1"})
	require.ErrorIs(t, err, ErrForbidden)
	require.Empty(t, audit.all())
}

func TestKickUserByChannelAdmin(t *testing.T) {
	svc, _, channels, _, audit := newModerationFixture(t)

	// mentor-1 is in the channel admin list, so the kick succeeds even for a
	// hypothetical non-mentor holding that slot.
	err := svc.KickUser(context.Background(), Actor{ID: "mentor-1", Role: models.RoleMentor}, dto.KickRequest{UserID: "student-1", ChannelID: 1})
	require.NoError(t, err)

	channel, err := channels.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.False(t, channel.HasMember("student-1"))

	entries := audit.all()
	require.Len(t, entries, 1)
	require.Equal(t, models.ActionKickUser, entries[0].Action)
}

func TestKickUserRejectsNonModerator(t *testing.T) {
	svc, _, _, _, _ := newModerationFixture(t)

	err := svc.KickUser(context.Background(), Actor{ID: "student-1", Role: models.RoleStudent}, dto.KickRequest{UserID: "mentor-1", ChannelID: 1})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestKickUserUnknownMember(t *testing.T) {
	svc, _, _, _, _ := newModerationFixture(t)

	err := svc.KickUser(context.Background(), Actor{ID: "admin-1", Role: models.RoleAdmin}, dto.KickRequest{UserID: "ghost", ChannelID: 1})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestDeleteChannelAdminOnly(t *testing.T) {
	svc, _, channels, _, audit := newModerationFixture(t)

	err := svc.DeleteChannel(context.Background(), Actor{ID: "mentor-1", Role: models.RoleMentor}, 1)
	require.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.DeleteChannel(context.Background(), Actor{ID: "admin-1", Role: models.RoleAdmin}, 1))
	_, err = channels.GetByID(context.Background(), 1)
	require.Error(t, err)

	entries := audit.all()
	require.Len(t, entries, 1)
	require.Equal(t, models.ActionDeleteChannel, entries[0].Action)
	require.Equal(t, "general", entries[0].Details["name"])
}

func TestDeleteChannelMissing(t *testing.T) {
	svc, _, _, _, _ := newModerationFixture(t)

	err := svc.DeleteChannel(context.Background(), Actor{ID: "admin-1", Role: models.RoleAdmin}, 404)
	require.ErrorIs(t, err, ErrChannelNotFound)
}

func TestBulkDeleteMessagesCountsActualDeletions(t *testing.T) {
	svc, _, _, messages, audit := newModerationFixture(t)

	deleted, err := svc.BulkDeleteMessages(context.Background(), Actor{ID: "admin-1", Role: models.RoleAdmin}, dto.BulkDeleteRequest{MessageIDs: []uint{1, 2, 99}})
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	_, err = messages.GetByID(context.Background(), 1)
	require.Error(t, err)

	entries := audit.all()
	require.Len(t, entries, 1)
	require.Equal(t, models.ActionBulkDeleteMessages, entries[0].Action)
	require.Equal(t, "bulk", entries[0].TargetID)
	require.Equal(t, []uint{1, 2, 99}, entries[0].Details["message_ids"])
	require.Equal(t, 3, entries[0].Details["requested"])
	require.Equal(t, int64(2), entries[0].Details["deleted"])
}

func TestBulkDeleteMessagesAdminOnly(t *testing.T) {
	svc, _, _, _, _ := newModerationFixture(t)

	_, err := svc.BulkDeleteMessages(context.Background(), Actor{ID: "mentor-1", Role: models.RoleMentor}, dto.BulkDeleteRequest{MessageIDs: []uint{1}})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestSearchMessagesMatchesContent(t *testing.T) {
	svc, _, _, _, _ := newModerationFixture(t)

	results, err := svc.SearchMessages(context.Background(), Actor{ID: "admin-1", Role: models.RoleAdmin}, "two", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, uint(2), results[0].ID)
	require.Equal(t, "two", results[0].Content)
}

func TestSearchMessagesAdminOnly(t *testing.T) {
	svc, _, _, _, _ := newModerationFixture(t)

	_, err := svc.SearchMessages(context.Background(), Actor{ID: "student-1", Role: models.RoleStudent}, "one", 10)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestSearchMessagesBlankQueryReturnsEmpty(t *testing.T) {
	svc, _, _, _, _ := newModerationFixture(t)

	results, err := svc.SearchMessages(context.Background(), Actor{ID: "admin-1", Role: models.RoleAdmin}, "   ", 10)
	require.NoError(t, err)
	require.Empty(t, results)
}
