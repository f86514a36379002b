package ai

import (
	"context"
	"fmt"
)

// CompleteOptions tune a single completion request.
type CompleteOptions struct {
	Temperature     float32
	MaxOutputTokens int
}

// Completer is the single choke point for language-model calls. Services
// depend on this interface so tests can substitute a canned transport.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts CompleteOptions) (string, error)
}

// ValidationError reports model output that failed the structural contract.
// It is always raised rather than coerced; callers decide whether a fallback
// path exists.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ai response validation: %s", e.Reason)
}

// Question is one generated multiple-choice question.
type Question struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation"`
}

// GeneratedQuiz is the validated result of a quiz generation call.
type GeneratedQuiz struct {
	Title       string
	Description string
	Questions   []Question
	Difficulty  string
	Topic       string
}

// GradingInput carries everything the grader needs about one attempt.
type GradingInput struct {
	Title     string
	Topic     string
	Questions []Question
	Answers   []int
}

// QuestionFeedback is the per-question verdict inside a grading result.
type QuestionFeedback struct {
	QuestionIndex int    `json:"questionIndex"`
	Correct       bool   `json:"correct"`
	Score         int    `json:"score"`
	Feedback      string `json:"feedback"`
	Suggestion    string `json:"suggestion"`
}

// GradingResult is the structured verdict returned by the grader.
type GradingResult struct {
	OverallScore     int                `json:"overallScore"`
	TotalQuestions   int                `json:"totalQuestions"`
	CorrectAnswers   int                `json:"correctAnswers"`
	DetailedFeedback []QuestionFeedback `json:"detailedFeedback"`
	GeneralFeedback  string             `json:"generalFeedback"`
	ImprovementAreas []string           `json:"improvementAreas"`
	Strengths        []string           `json:"strengths"`
}

// ChatTurn is one message of the rolling conversation window passed to the
// assistant.
type ChatTurn struct {
	Role    string
	Content string
}
