package dto

import (
	"time"

	"github.com/opvera/opvera-api/internal/models"
)

// ProjectCreateRequest uploads a new project for mentor review.
type ProjectCreateRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=255"`
	Description string `json:"description" validate:"omitempty,max=5000"`
	RepoURL     string `json:"repo_url" validate:"omitempty,url,max=512"`
}

// ProjectFilter narrows project listings.
type ProjectFilter struct {
	OwnerID string `query:"owner_id" validate:"omitempty,max=36"`
	Status  string `query:"status" validate:"omitempty,oneof=pending verified rejected"`
}

// VerifyRequest records a mentor's verdict on a project or assignment.
type VerifyRequest struct {
	Status      string `json:"status" validate:"required,oneof=verified rejected"`
	MentorNotes string `json:"mentor_notes" validate:"omitempty,max=5000"`
}

// ProjectResponse is a serialized project.
type ProjectResponse struct {
	ID          uint      `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	FileURL     string    `json:"file_url,omitempty"`
	RepoURL     string    `json:"repo_url,omitempty"`
	Status      string    `json:"status"`
	MentorNotes string    `json:"mentor_notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewProjectResponse converts a model into a DTO.
func NewProjectResponse(project models.Project) ProjectResponse {
	return ProjectResponse{
		ID:          project.ID,
		OwnerID:     project.OwnerID,
		Title:       project.Title,
		Description: project.Description,
		FileURL:     project.FileURL,
		RepoURL:     project.RepoURL,
		Status:      project.Status,
		MentorNotes: project.MentorNotes,
		CreatedAt:   project.CreatedAt,
		UpdatedAt:   project.UpdatedAt,
	}
}

// NewProjectResponseSlice converts a slice of models into DTOs.
func NewProjectResponseSlice(projects []models.Project) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(projects))
	for _, project := range projects {
		out = append(out, NewProjectResponse(project))
	}
	return out
}

// AssignmentCreateRequest issues a task to a student.
type AssignmentCreateRequest struct {
	Title       string     `json:"title" validate:"required,min=3,max=255"`
	Description string     `json:"description" validate:"omitempty,max=5000"`
	AssignedTo  string     `json:"assigned_to" validate:"required,max=36"`
	DueDate     *time.Time `json:"due_date"`
}

// AssignmentSubmitRequest attaches a submission to an assignment.
type AssignmentSubmitRequest struct {
	SubmissionURL string `json:"submission_url" validate:"required,url,max=512"`
}

// AssignmentResponse is a serialized assignment.
type AssignmentResponse struct {
	ID            uint       `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	AssignedTo    string     `json:"assigned_to"`
	CreatedBy     string     `json:"created_by"`
	SubmissionURL string     `json:"submission_url,omitempty"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
	Status        string     `json:"status"`
	MentorNotes   string     `json:"mentor_notes,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NewAssignmentResponse converts a model into a DTO.
func NewAssignmentResponse(assignment models.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:            assignment.ID,
		Title:         assignment.Title,
		Description:   assignment.Description,
		AssignedTo:    assignment.AssignedTo,
		CreatedBy:     assignment.CreatedBy,
		SubmissionURL: assignment.SubmissionURL,
		SubmittedAt:   assignment.SubmittedAt,
		Status:        assignment.Status,
		MentorNotes:   assignment.MentorNotes,
		DueDate:       assignment.DueDate,
		CreatedAt:     assignment.CreatedAt,
	}
}

// NewAssignmentResponseSlice converts a slice of models into DTOs.
func NewAssignmentResponseSlice(assignments []models.Assignment) []AssignmentResponse {
	out := make([]AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		out = append(out, NewAssignmentResponse(assignment))
	}
	return out
}
