package service

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/opvera/opvera-api/internal/dto"
	"github.com/opvera/opvera-api/internal/models"
	"github.com/opvera/opvera-api/internal/repository"
)

type stubProjectRepo struct {
	mu       sync.Mutex
	projects map[uint]models.Project
	nextID   uint
}

func newStubProjectRepo(projects ...models.Project) *stubProjectRepo {
	repo := &stubProjectRepo{projects: make(map[uint]models.Project), nextID: 1}
	for _, p := range projects {
		if p.ID >= repo.nextID {
			repo.nextID = p.ID + 1
		}
		repo.projects[p.ID] = p
	}
	return repo
}

func (s *stubProjectRepo) Create(_ context.Context, project *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	project.ID = s.nextID
	s.nextID++
	s.projects[project.ID] = *project
	return nil
}

func (s *stubProjectRepo) GetByID(_ context.Context, id uint) (models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok := s.projects[id]
	if !ok {
		return models.Project{}, gorm.ErrRecordNotFound
	}
	return project, nil
}

func (s *stubProjectRepo) List(_ context.Context, filter repository.ProjectFilter) ([]models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Project, 0)
	for _, project := range s.projects {
		if filter.OwnerID != "" && project.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && project.Status != filter.Status {
			continue
		}
		out = append(out, project)
	}
	return out, nil
}

func (s *stubProjectRepo) Update(_ context.Context, project *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[project.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	s.projects[project.ID] = *project
	return nil
}

type stubAssignmentRepo struct {
	mu          sync.Mutex
	assignments map[uint]models.Assignment
	nextID      uint
}

func newStubAssignmentRepo(assignments ...models.Assignment) *stubAssignmentRepo {
	repo := &stubAssignmentRepo{assignments: make(map[uint]models.Assignment), nextID: 1}
	for _, a := range assignments {
		if a.ID >= repo.nextID {
			repo.nextID = a.ID + 1
		}
		repo.assignments[a.ID] = a
	}
	return repo
}

func (s *stubAssignmentRepo) Create(_ context.Context, assignment *models.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	assignment.ID = s.nextID
	s.nextID++
	s.assignments[assignment.ID] = *assignment
	return nil
}

func (s *stubAssignmentRepo) GetByID(_ context.Context, id uint) (models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	assignment, ok := s.assignments[id]
	if !ok {
		return models.Assignment{}, gorm.ErrRecordNotFound
	}
	return assignment, nil
}

func (s *stubAssignmentRepo) ListByAssignee(_ context.Context, userID string) ([]models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Assignment, 0)
	for _, assignment := range s.assignments {
		if assignment.AssignedTo == userID {
			out = append(out, assignment)
		}
	}
	return out, nil
}

func (s *stubAssignmentRepo) ListByStatus(_ context.Context, status string, _ int) ([]models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Assignment, 0)
	for _, assignment := range s.assignments {
		if assignment.Status == status {
			out = append(out, assignment)
		}
	}
	return out, nil
}

func (s *stubAssignmentRepo) Update(_ context.Context, assignment *models.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignments[assignment.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	s.assignments[assignment.ID] = *assignment
	return nil
}

type stubUploader struct {
	uploads []string
	url     string
	err     error
}

func (s *stubUploader) Upload(_ context.Context, name string, _ io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.uploads = append(s.uploads, name)
	return s.url, nil
}

func newProjectFixture(t *testing.T) (ProjectService, *stubProjectRepo, *stubAssignmentRepo, *stubUploader, *recordingAudit) {
	t.Helper()
	users := newStubUserRepo(
		models.User{ID: "mentor-1", Email: "mentor@example.com", Role: models.RoleMentor},
		models.User{ID: "student-1", Email: "s1@example.com", Role: models.RoleStudent},
		models.User{ID: "student-2", Email: "s2@example.com", Role: models.RoleStudent},
	)
	projects := newStubProjectRepo(
		models.Project{ID: 1, OwnerID: "student-1", Title: "First project", Status: models.VerificationPending},
		models.Project{ID: 2, OwnerID: "student-2", Title: "Other project", Status: models.VerificationVerified},
	)
	assignments := newStubAssignmentRepo(
		models.Assignment{ID: 1, Title: "Week 1", AssignedTo: "student-1", CreatedBy: "mentor-1", Status: models.VerificationPending},
	)
	uploader := &stubUploader{url: "https://cdn.example.com/sub/1"}
	audit := &recordingAudit{}
	svc := NewProjectService(projects, assignments, users, uploader, audit, NewAuthorizationPolicy(), testValidator(), zerolog.Nop())
	return svc, projects, assignments, uploader, audit
}

func TestCreateProjectWithTextFile(t *testing.T) {
	svc, _, _, uploader, _ := newProjectFixture(t)

	file := bytes.NewReader([]byte("package main\n\nfunc main() {}\n"))
	resp, err := svc.CreateProject(context.Background(), Actor{ID: "student-1", Role: models.RoleStudent}, dto.ProjectCreateRequest{
		Title: "CLI tool",
	}, file, "main.go")
	require.NoError(t, err)
	require.Equal(t, models.VerificationPending, resp.Status)
	require.Equal(t, "https://cdn.example.com/sub/1", resp.FileURL)
	require.Equal(t, []string{"main.go"}, uploader.uploads)
}

func TestCreateProjectRejectsUnsupportedContent(t *testing.T) {
	svc, projects, _, uploader, _ := newProjectFixture(t)

	// GIF magic bytes are not an accepted submission type.
	gif := bytes.NewReader([]byte("GIF89a\x01\x00\x01\x00\x00\x00\x00"))
	_, err := svc.CreateProject(context.Background(), Actor{ID: "student-1"}, dto.ProjectCreateRequest{
		Title: "Sneaky upload",
	}, gif, "notes.txt")
	require.ErrorIs(t, err, ErrUnsupportedFileType)
	require.Empty(t, uploader.uploads)
	require.Len(t, projects.projects, 2, "nothing persisted on rejection")
}

func TestCreateProjectRejectsOversizedImage(t *testing.T) {
	svc, _, _, uploader, _ := newProjectFixture(t)

	// A valid PNG header followed by padding past the 2MB image cap.
	payload := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, maxImageBytes+1)...)
	_, err := svc.CreateProject(context.Background(), Actor{ID: "student-1"}, dto.ProjectCreateRequest{
		Title: "Huge screenshot",
	}, bytes.NewReader(payload), "shot.png")
	require.ErrorIs(t, err, ErrSubmissionTooLarge)
	require.Empty(t, uploader.uploads)
}

func TestCreateProjectWithoutFile(t *testing.T) {
	svc, _, _, uploader, _ := newProjectFixture(t)

	resp, err := svc.CreateProject(context.Background(), Actor{ID: "student-1"}, dto.ProjectCreateRequest{
		Title:   "Repo only",
		RepoURL: "https://github.com/example/repo",
	}, nil, "")
	require.NoError(t, err)
	require.Empty(t, resp.FileURL)
	require.Empty(t, uploader.uploads)
}

func TestGetProjectOwnerAndModeratorOnly(t *testing.T) {
	svc, _, _, _, _ := newProjectFixture(t)
	ctx := context.Background()

	_, err := svc.GetProject(ctx, Actor{ID: "student-1", Role: models.RoleStudent}, 1)
	require.NoError(t, err)

	_, err = svc.GetProject(ctx, Actor{ID: "mentor-1", Role: models.RoleMentor}, 1)
	require.NoError(t, err)

	_, err = svc.GetProject(ctx, Actor{ID: "student-2", Role: models.RoleStudent}, 1)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestListProjectsForcesOwnScopeForStudents(t *testing.T) {
	svc, _, _, _, _ := newProjectFixture(t)

	listed, err := svc.ListProjects(context.Background(), Actor{ID: "student-1", Role: models.RoleStudent}, dto.ProjectFilter{OwnerID: "student-2"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "student-1", listed[0].OwnerID)

	listed, err = svc.ListProjects(context.Background(), Actor{ID: "mentor-1", Role: models.RoleMentor}, dto.ProjectFilter{OwnerID: "student-2"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "student-2", listed[0].OwnerID)
}

func TestVerifyProjectVerdictIsFinal(t *testing.T) {
	svc, _, _, _, audit := newProjectFixture(t)
	mentor := Actor{ID: "mentor-1", Role: models.RoleMentor}

	resp, err := svc.VerifyProject(context.Background(), mentor, 1, dto.VerifyRequest{
		Status:      models.VerificationVerified,
		MentorNotes: "solid work",
	})
	require.NoError(t, err)
	require.Equal(t, models.VerificationVerified, resp.Status)
	require.Equal(t, "solid work", resp.MentorNotes)

	_, err = svc.VerifyProject(context.Background(), mentor, 1, dto.VerifyRequest{Status: models.VerificationRejected})
	require.ErrorIs(t, err, ErrAlreadyReviewed)

	entries := audit.all()
	require.Len(t, entries, 1)
	require.Equal(t, "verify_project", entries[0].Action)
}

func TestVerifyProjectRequiresModerator(t *testing.T) {
	svc, _, _, _, _ := newProjectFixture(t)

	_, err := svc.VerifyProject(context.Background(), Actor{ID: "student-1", Role: models.RoleStudent}, 1, dto.VerifyRequest{Status: models.VerificationVerified})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestCreateAssignmentChecksAssigneeExists(t *testing.T) {
	svc, _, _, _, _ := newProjectFixture(t)
	mentor := Actor{ID: "mentor-1", Role: models.RoleMentor}

	_, err := svc.CreateAssignment(context.Background(), mentor, dto.AssignmentCreateRequest{
		Title:      "Week 2",
		AssignedTo: "ghost",
	})
	require.ErrorIs(t, err, ErrUserNotFound)

	resp, err := svc.CreateAssignment(context.Background(), mentor, dto.AssignmentCreateRequest{
		Title:      "Week 2",
		AssignedTo: "student-2",
	})
	require.NoError(t, err)
	require.Equal(t, models.VerificationPending, resp.Status)
	require.Equal(t, "mentor-1", resp.CreatedBy)
}

func TestSubmitAssignmentAssigneeOnly(t *testing.T) {
	svc, _, assignments, _, _ := newProjectFixture(t)
	submission := dto.AssignmentSubmitRequest{SubmissionURL: "https://github.com/example/homework"}

	_, err := svc.SubmitAssignment(context.Background(), Actor{ID: "student-2"}, 1, submission)
	require.ErrorIs(t, err, ErrForbidden)

	resp, err := svc.SubmitAssignment(context.Background(), Actor{ID: "student-1"}, 1, submission)
	require.NoError(t, err)
	require.Equal(t, submission.SubmissionURL, resp.SubmissionURL)
	require.NotNil(t, resp.SubmittedAt)

	stored, err := assignments.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, stored.SubmittedAt)
}

func TestVerifyAssignmentFlow(t *testing.T) {
	svc, _, _, _, audit := newProjectFixture(t)
	mentor := Actor{ID: "mentor-1", Role: models.RoleMentor}

	resp, err := svc.VerifyAssignment(context.Background(), mentor, 1, dto.VerifyRequest{
		Status:      models.VerificationRejected,
		MentorNotes: "missing tests",
	})
	require.NoError(t, err)
	require.Equal(t, models.VerificationRejected, resp.Status)

	_, err = svc.VerifyAssignment(context.Background(), mentor, 1, dto.VerifyRequest{Status: models.VerificationVerified})
	require.ErrorIs(t, err, ErrAlreadyReviewed)

	entries := audit.all()
	require.Len(t, entries, 1)
	require.Equal(t, "verify_assignment", entries[0].Action)
}

func TestListAssignmentsScopes(t *testing.T) {
	svc, _, _, _, _ := newProjectFixture(t)

	own, err := svc.ListAssignments(context.Background(), Actor{ID: "student-1", Role: models.RoleStudent}, "")
	require.NoError(t, err)
	require.Len(t, own, 1)

	_, err = svc.ListAssignments(context.Background(), Actor{ID: "student-2", Role: models.RoleStudent}, "student-1")
	require.ErrorIs(t, err, ErrForbidden)

	other, err := svc.ListAssignments(context.Background(), Actor{ID: "mentor-1", Role: models.RoleMentor}, "student-1")
	require.NoError(t, err)
	require.Len(t, other, 1)
}
