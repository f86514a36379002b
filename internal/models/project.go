package models

import "time"

// Verification states for mentor review of projects and assignments.
const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
)

// Project is a student-owned deliverable awaiting mentor verification.
type Project struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OwnerID     string    `gorm:"size:36;index;not null" json:"owner_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	FileURL     string    `gorm:"size:512" json:"file_url"`
	RepoURL     string    `gorm:"size:512" json:"repo_url"`
	Status      string    `gorm:"size:32;not null;default:pending;index" json:"status"`
	MentorNotes string    `gorm:"type:text" json:"mentor_notes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Assignment is a mentor-issued task with a student submission slot.
type Assignment struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Title         string     `gorm:"size:255;not null" json:"title"`
	Description   string     `gorm:"type:text" json:"description"`
	AssignedTo    string     `gorm:"size:36;index" json:"assigned_to"`
	CreatedBy     string     `gorm:"size:36;index" json:"created_by"`
	SubmissionURL string     `gorm:"size:512" json:"submission_url"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
	Status        string     `gorm:"size:32;not null;default:pending;index" json:"status"`
	MentorNotes   string     `gorm:"type:text" json:"mentor_notes"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// IsPastDue reports whether the assignment deadline has elapsed.
func (a *Assignment) IsPastDue(now time.Time) bool {
	return a.DueDate != nil && now.After(*a.DueDate)
}
