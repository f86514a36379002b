package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	response string
	err      error
	prompts  []string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string, _ CompleteOptions) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func validQuestions(n int) []Question {
	questions := make([]Question, 0, n)
	for i := 0; i < n; i++ {
		questions = append(questions, Question{
			Question:     fmt.Sprintf("What is %d+%d?", i, i),
			Options:      []string{"0", "1", fmt.Sprintf("%d", i * 2), "3"},
			CorrectIndex: 2,
			Explanation:  "basic addition",
		})
	}
	return questions
}

func TestGenerateQuizAcceptsFencedOutput(t *testing.T) {
	payload, err := json.Marshal(validQuestions(5))
	require.NoError(t, err)

	completer := &stubCompleter{response: "```json\n" + string(payload) + "\n```"}

	quiz, err := GenerateQuiz(context.Background(), completer, "Goroutines", "beginner")
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 5)
	require.Equal(t, "Goroutines Quiz - Beginner Level", quiz.Title)
	require.Equal(t, "beginner", quiz.Difficulty)
	require.Len(t, completer.prompts, 1)
	require.Contains(t, completer.prompts[0], "'Goroutines'")
	require.Contains(t, completer.prompts[0], "beginner student")
}

func TestGenerateQuizRejectsWrongQuestionCount(t *testing.T) {
	payload, err := json.Marshal(validQuestions(3))
	require.NoError(t, err)

	completer := &stubCompleter{response: string(payload)}

	_, err = GenerateQuiz(context.Background(), completer, "Slices", "advanced")
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Reason, "expected 5 questions")
}

func TestGenerateQuizRejectsBadCorrectIndex(t *testing.T) {
	questions := validQuestions(5)
	questions[4].CorrectIndex = 7
	payload, err := json.Marshal(questions)
	require.NoError(t, err)

	completer := &stubCompleter{response: string(payload)}

	_, err = GenerateQuiz(context.Background(), completer, "Maps", "intermediate")
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Reason, "out of range")
}

func TestGenerateQuizRejectsWrongOptionCount(t *testing.T) {
	questions := validQuestions(5)
	questions[0].Options = []string{"yes", "no"}
	payload, err := json.Marshal(questions)
	require.NoError(t, err)

	completer := &stubCompleter{response: string(payload)}

	_, err = GenerateQuiz(context.Background(), completer, "Channels", "beginner")
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Reason, "options")
}
