package dto

import (
	"time"

	"github.com/opvera/opvera-api/internal/models"
)

// QuizGenerateRequest asks the assistant for a new quiz.
type QuizGenerateRequest struct {
	Topic      string `json:"topic" validate:"required,min=2,max=255"`
	Difficulty string `json:"difficulty" validate:"required,oneof=beginner intermediate advanced"`
}

// QuizCreateRequest inserts a hand-written quiz.
type QuizCreateRequest struct {
	Title       string                `json:"title" validate:"required,min=3,max=255"`
	Description string                `json:"description" validate:"omitempty,max=2000"`
	Questions   []models.QuizQuestion `json:"questions" validate:"required,min=1,dive"`
	Difficulty  string                `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	Topic       string                `json:"topic" validate:"omitempty,max=255"`
}

// QuizResponse is a serialized quiz.
type QuizResponse struct {
	ID          uint                   `json:"id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Questions   []models.QuizQuestion  `json:"questions"`
	Difficulty  string                 `json:"difficulty"`
	Topic       string                 `json:"topic"`
	CreatedBy   string                 `json:"created_by"`
	AIGenerated bool                   `json:"ai_generated"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// NewQuizResponse converts a model into a DTO.
func NewQuizResponse(quiz models.Quiz) QuizResponse {
	return QuizResponse{
		ID:          quiz.ID,
		Title:       quiz.Title,
		Description: quiz.Description,
		Questions:   quiz.Questions.Data(),
		Difficulty:  quiz.Difficulty,
		Topic:       quiz.Topic,
		CreatedBy:   quiz.CreatedBy,
		AIGenerated: quiz.AIGenerated,
		Metadata:    quiz.Metadata,
		CreatedAt:   quiz.CreatedAt,
	}
}

// NewQuizResponseSlice converts a slice of models into DTOs.
func NewQuizResponseSlice(quizzes []models.Quiz) []QuizResponse {
	out := make([]QuizResponse, 0, len(quizzes))
	for _, quiz := range quizzes {
		out = append(out, NewQuizResponse(quiz))
	}
	return out
}

// AttemptSubmitRequest submits a student's answer indices.
type AttemptSubmitRequest struct {
	Answers []int `json:"answers" validate:"required,min=1"`
}

// AttemptResponse reports the persisted attempt plus grading context.
type AttemptResponse struct {
	ID             uint                   `json:"id"`
	QuizID         uint                   `json:"quiz_id"`
	StudentID      string                 `json:"student_id"`
	Answers        []int                  `json:"answers"`
	Score          int                    `json:"score"`
	MaxScore       int                    `json:"max_score"`
	BasicScore     int                    `json:"basic_score"`
	CorrectAnswers int                    `json:"correct_answers"`
	TotalQuestions int                    `json:"total_questions"`
	AIGraded       bool                   `json:"ai_graded"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CompletedAt    time.Time              `json:"completed_at"`
}
