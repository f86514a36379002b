package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/opvera/opvera-api/internal/dto"
	"github.com/opvera/opvera-api/internal/models"
	"github.com/opvera/opvera-api/internal/repository"
)

const (
	maxImageBytes    = 2 << 20
	maxDocumentBytes = 5 << 20
)

var (
	// ErrProjectNotFound indicates the project does not exist.
	ErrProjectNotFound = errors.New("project not found")
	// ErrAssignmentNotFound indicates the assignment does not exist.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrUnsupportedFileType indicates the uploaded file's detected type is
	// not accepted for submissions.
	ErrUnsupportedFileType = errors.New("unsupported submission file type")
	// ErrAlreadyReviewed indicates the item left the pending state before.
	ErrAlreadyReviewed = errors.New("submission already reviewed")
	// ErrSubmissionTooLarge indicates the upload exceeds the per-type cap.
	ErrSubmissionTooLarge = errors.New("submission file too large")
)

// Submission uploads accept archives, documents and plain sources. The check
// runs on detected content, not the client-supplied extension.
var allowedSubmissionTypes = map[string]struct{}{
	"application/zip":             {},
	"application/x-tar":           {},
	"application/gzip":            {},
	"application/pdf":             {},
	"text/plain":                  {},
	"text/html":                   {},
	"image/png":                   {},
	"image/jpeg":                  {},
	"application/octet-stream":    {},
	"application/vnd.rar":         {},
	"application/x-7z-compressed": {},
}

// FileUploader stores a submission artifact and returns its public URL.
type FileUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// ProjectService covers student project uploads, mentor verification and
// assignment hand-ins.
type ProjectService interface {
	CreateProject(ctx context.Context, actor Actor, req dto.ProjectCreateRequest, file io.Reader, filename string) (dto.ProjectResponse, error)
	GetProject(ctx context.Context, actor Actor, id uint) (dto.ProjectResponse, error)
	ListProjects(ctx context.Context, actor Actor, filter dto.ProjectFilter) ([]dto.ProjectResponse, error)
	VerifyProject(ctx context.Context, actor Actor, id uint, req dto.VerifyRequest) (dto.ProjectResponse, error)

	CreateAssignment(ctx context.Context, actor Actor, req dto.AssignmentCreateRequest) (dto.AssignmentResponse, error)
	SubmitAssignment(ctx context.Context, actor Actor, id uint, req dto.AssignmentSubmitRequest) (dto.AssignmentResponse, error)
	VerifyAssignment(ctx context.Context, actor Actor, id uint, req dto.VerifyRequest) (dto.AssignmentResponse, error)
	ListAssignments(ctx context.Context, actor Actor, assignee string) ([]dto.AssignmentResponse, error)
}

type projectService struct {
	projects    repository.ProjectRepository
	assignments repository.AssignmentRepository
	users       repository.UserRepository
	uploader    FileUploader
	audit       AuditService
	policy      *AuthorizationPolicy
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewProjectService constructs the project and assignment service. uploader
// may be nil, in which case file uploads are rejected but URL-only
// submissions still work.
func NewProjectService(
	projects repository.ProjectRepository,
	assignments repository.AssignmentRepository,
	users repository.UserRepository,
	uploader FileUploader,
	audit AuditService,
	policy *AuthorizationPolicy,
	validate *validator.Validate,
	logger zerolog.Logger,
) ProjectService {
	return &projectService{
		projects:    projects,
		assignments: assignments,
		users:       users,
		uploader:    uploader,
		audit:       audit,
		policy:      policy,
		validator:   validate,
		logger:      logger.With().Str("component", "project_service").Logger(),
		now:         time.Now,
	}
}

func (s *projectService) CreateProject(ctx context.Context, actor Actor, req dto.ProjectCreateRequest, file io.Reader, filename string) (dto.ProjectResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ProjectResponse{}, err
	}

	project := models.Project{
		OwnerID:     actor.ID,
		Title:       req.Title,
		Description: req.Description,
		RepoURL:     req.RepoURL,
		Status:      models.VerificationPending,
	}

	if file != nil {
		url, err := s.storeSubmission(ctx, filename, file)
		if err != nil {
			return dto.ProjectResponse{}, err
		}
		project.FileURL = url
	}

	if err := s.projects.Create(ctx, &project); err != nil {
		return dto.ProjectResponse{}, err
	}

	s.logger.Info().Uint("project_id", project.ID).Str("owner", actor.ID).Msg("project submitted")
	return dto.NewProjectResponse(project), nil
}

func (s *projectService) GetProject(ctx context.Context, actor Actor, id uint) (dto.ProjectResponse, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProjectResponse{}, ErrProjectNotFound
		}
		return dto.ProjectResponse{}, err
	}

	if project.OwnerID != actor.ID && !s.policy.CanModerate(actor, nil) {
		return dto.ProjectResponse{}, ErrForbidden
	}
	return dto.NewProjectResponse(project), nil
}

// ListProjects returns the caller's own projects, or any owner's when the
// caller can moderate.
func (s *projectService) ListProjects(ctx context.Context, actor Actor, filter dto.ProjectFilter) ([]dto.ProjectResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	owner := filter.OwnerID
	if !s.policy.CanModerate(actor, nil) {
		owner = actor.ID
	}

	projects, err := s.projects.List(ctx, repository.ProjectFilter{
		OwnerID: owner,
		Status:  filter.Status,
	})
	if err != nil {
		return nil, err
	}
	return dto.NewProjectResponseSlice(projects), nil
}

// VerifyProject moves a pending project to verified or rejected. The verdict
// is final: re-reviewing a decided project returns ErrAlreadyReviewed.
func (s *projectService) VerifyProject(ctx context.Context, actor Actor, id uint, req dto.VerifyRequest) (dto.ProjectResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ProjectResponse{}, err
	}
	if !s.policy.CanModerate(actor, nil) {
		return dto.ProjectResponse{}, ErrForbidden
	}

	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProjectResponse{}, ErrProjectNotFound
		}
		return dto.ProjectResponse{}, err
	}
	if project.Status != models.VerificationPending {
		return dto.ProjectResponse{}, ErrAlreadyReviewed
	}

	project.Status = req.Status
	project.MentorNotes = req.MentorNotes
	if err := s.projects.Update(ctx, &project); err != nil {
		return dto.ProjectResponse{}, err
	}

	s.audit.Record(ctx, actor, "verify_project", "project", strconv.FormatUint(uint64(id), 10), map[string]interface{}{
		"status":   req.Status,
		"owner_id": project.OwnerID,
	})
	return dto.NewProjectResponse(project), nil
}

func (s *projectService) CreateAssignment(ctx context.Context, actor Actor, req dto.AssignmentCreateRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AssignmentResponse{}, err
	}
	if !s.policy.CanModerate(actor, nil) {
		return dto.AssignmentResponse{}, ErrForbidden
	}

	if _, err := s.users.GetByID(ctx, req.AssignedTo); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrUserNotFound
		}
		return dto.AssignmentResponse{}, err
	}

	assignment := models.Assignment{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		CreatedBy:   actor.ID,
		Status:      models.VerificationPending,
		DueDate:     req.DueDate,
	}
	if err := s.assignments.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}
	return dto.NewAssignmentResponse(assignment), nil
}

func (s *projectService) SubmitAssignment(ctx context.Context, actor Actor, id uint, req dto.AssignmentSubmitRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentResponse{}, err
	}
	if assignment.AssignedTo != actor.ID {
		return dto.AssignmentResponse{}, ErrForbidden
	}
	if assignment.Status != models.VerificationPending {
		return dto.AssignmentResponse{}, ErrAlreadyReviewed
	}

	submittedAt := s.now().UTC()
	assignment.SubmissionURL = req.SubmissionURL
	assignment.SubmittedAt = &submittedAt
	if err := s.assignments.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}
	return dto.NewAssignmentResponse(assignment), nil
}

func (s *projectService) VerifyAssignment(ctx context.Context, actor Actor, id uint, req dto.VerifyRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AssignmentResponse{}, err
	}
	if !s.policy.CanModerate(actor, nil) {
		return dto.AssignmentResponse{}, ErrForbidden
	}

	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentResponse{}, err
	}
	if assignment.Status != models.VerificationPending {
		return dto.AssignmentResponse{}, ErrAlreadyReviewed
	}

	assignment.Status = req.Status
	assignment.MentorNotes = req.MentorNotes
	if err := s.assignments.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.audit.Record(ctx, actor, "verify_assignment", "assignment", strconv.FormatUint(uint64(id), 10), map[string]interface{}{
		"status":      req.Status,
		"assigned_to": assignment.AssignedTo,
	})
	return dto.NewAssignmentResponse(assignment), nil
}

func (s *projectService) ListAssignments(ctx context.Context, actor Actor, assignee string) ([]dto.AssignmentResponse, error) {
	if assignee == "" {
		assignee = actor.ID
	}
	if assignee != actor.ID && !s.policy.CanModerate(actor, nil) {
		return nil, ErrForbidden
	}

	assignments, err := s.assignments.ListByAssignee(ctx, assignee)
	if err != nil {
		return nil, err
	}
	return dto.NewAssignmentResponseSlice(assignments), nil
}

// storeSubmission sniffs the payload's real content type before handing it to
// the uploader.
func (s *projectService) storeSubmission(ctx context.Context, filename string, file io.Reader) (string, error) {
	if s.uploader == nil {
		return "", fmt.Errorf("file uploads are not configured")
	}

	payload, err := io.ReadAll(io.LimitReader(file, maxDocumentBytes+1))
	if err != nil {
		return "", fmt.Errorf("read submission: %w", err)
	}

	detected := mimetype.Detect(payload)
	kind := baseMIME(detected.String())
	if _, ok := allowedSubmissionTypes[kind]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, detected.String())
	}

	// Images cap at 2MB, everything else at 5MB.
	limit := maxDocumentBytes
	if strings.HasPrefix(kind, "image/") {
		limit = maxImageBytes
	}
	if len(payload) > limit {
		return "", fmt.Errorf("%w: limit %d bytes", ErrSubmissionTooLarge, limit)
	}

	url, err := s.uploader.Upload(ctx, filename, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("store submission: %w", err)
	}
	return url, nil
}

func baseMIME(value string) string {
	for i := 0; i < len(value); i++ {
		if value[i] == ';' {
			return value[:i]
		}
	}
	return value
}
