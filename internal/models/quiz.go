package models

import (
	"time"

	"gorm.io/datatypes"
)

// QuizQuestion is one multiple-choice question. AI-generated quizzes always
// carry exactly five of these, each with four options and a correct index
// in [0,3].
type QuizQuestion struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation"`
}

// Quiz is an ordered set of multiple-choice questions on a topic.
type Quiz struct {
	ID          uint                              `gorm:"primaryKey" json:"id"`
	Title       string                            `gorm:"size:255;not null" json:"title"`
	Description string                            `gorm:"type:text" json:"description"`
	Questions   datatypes.JSONType[[]QuizQuestion] `gorm:"type:json" json:"questions"`
	Difficulty  string                            `gorm:"size:32;index" json:"difficulty"`
	Topic       string                            `gorm:"size:255;index" json:"topic"`
	CreatedBy   string                            `gorm:"size:36;index" json:"created_by"`
	AIGenerated bool                              `gorm:"not null;default:false" json:"ai_generated"`
	Metadata    datatypes.JSONMap                 `gorm:"type:json" json:"metadata"`
	CreatedAt   time.Time                         `json:"created_at"`
	UpdatedAt   time.Time                         `json:"updated_at"`
}

// QuizAttempt records one student run through a quiz. Score comes from AI
// grading when available, otherwise the locally computed percentage.
type QuizAttempt struct {
	ID          uint                       `gorm:"primaryKey" json:"id"`
	QuizID      uint                       `gorm:"index;not null" json:"quiz_id"`
	StudentID   string                     `gorm:"size:36;index;not null" json:"student_id"`
	Answers     datatypes.JSONType[[]int]  `gorm:"type:json" json:"answers"`
	Score       int                        `gorm:"not null" json:"score"`
	MaxScore    int                        `gorm:"not null;default:100" json:"max_score"`
	CompletedAt time.Time                  `json:"completed_at"`
	Metadata    datatypes.JSONMap          `gorm:"type:json" json:"metadata"`
	CreatedAt   time.Time                  `json:"created_at"`

	Quiz *Quiz `gorm:"foreignKey:QuizID" json:"quiz,omitempty"`
}
