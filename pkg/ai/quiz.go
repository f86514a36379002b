package ai

import (
	"context"
	"fmt"
	"strings"
)

const quizQuestionCount = 5

const quizPromptTemplate = `Generate 5 multiple-choice questions (JSON only) on the topic '%s' for a %s student. Output format:
[
  {
    "question":"question text",
    "options":["A","B","C","D"],
    "correctIndex":1,
    "explanation":"brief explanation"
  },
  ...
]
Do not include extra text.`

// GenerateQuiz asks the model for exactly five multiple-choice questions on
// the topic at the given difficulty and validates the result strictly. Any
// structural deviation raises a ValidationError; generation has no fallback.
func GenerateQuiz(ctx context.Context, completer Completer, topic, difficulty string) (GeneratedQuiz, error) {
	prompt := fmt.Sprintf(quizPromptTemplate, topic, difficulty)

	text, err := completer.Complete(ctx, prompt, CompleteOptions{
		Temperature:     0.3,
		MaxOutputTokens: 2048,
	})
	if err != nil {
		return GeneratedQuiz{}, fmt.Errorf("generate quiz: %w", err)
	}

	var questions []Question
	if err := decodeJSON(text, &questions); err != nil {
		return GeneratedQuiz{}, err
	}

	if err := validateQuestions(questions); err != nil {
		return GeneratedQuiz{}, err
	}

	return GeneratedQuiz{
		Title:       fmt.Sprintf("%s Quiz - %s Level", topic, titleCase(difficulty)),
		Description: fmt.Sprintf("Test your knowledge of %s with these %s level questions", topic, difficulty),
		Questions:   questions,
		Difficulty:  difficulty,
		Topic:       topic,
	}, nil
}

func validateQuestions(questions []Question) error {
	if len(questions) != quizQuestionCount {
		return &ValidationError{Reason: fmt.Sprintf("expected %d questions, got %d", quizQuestionCount, len(questions))}
	}

	for i, q := range questions {
		if strings.TrimSpace(q.Question) == "" {
			return &ValidationError{Reason: fmt.Sprintf("question %d has empty text", i)}
		}
		if len(q.Options) != 4 {
			return &ValidationError{Reason: fmt.Sprintf("question %d has %d options, expected 4", i, len(q.Options))}
		}
		if q.CorrectIndex < 0 || q.CorrectIndex > 3 {
			return &ValidationError{Reason: fmt.Sprintf("question %d correctIndex %d out of range", i, q.CorrectIndex)}
		}
	}

	return nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
