package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/opvera/opvera-api/internal/dto"
	"github.com/opvera/opvera-api/internal/models"
	"github.com/opvera/opvera-api/pkg/ai"
)

type stubQuizRepo struct {
	quizzes map[uint]models.Quiz
	nextID  uint
}

func newStubQuizRepo() *stubQuizRepo {
	return &stubQuizRepo{quizzes: make(map[uint]models.Quiz), nextID: 1}
}

func (s *stubQuizRepo) Create(_ context.Context, quiz *models.Quiz) error {
	quiz.ID = s.nextID
	s.nextID++
	s.quizzes[quiz.ID] = *quiz
	return nil
}

func (s *stubQuizRepo) GetByID(_ context.Context, id uint) (models.Quiz, error) {
	quiz, ok := s.quizzes[id]
	if !ok {
		return models.Quiz{}, gorm.ErrRecordNotFound
	}
	return quiz, nil
}

func (s *stubQuizRepo) List(_ context.Context, _, _ int) ([]models.Quiz, error) {
	out := make([]models.Quiz, 0, len(s.quizzes))
	for _, quiz := range s.quizzes {
		out = append(out, quiz)
	}
	return out, nil
}

func (s *stubQuizRepo) Update(_ context.Context, quiz *models.Quiz) error {
	s.quizzes[quiz.ID] = *quiz
	return nil
}

func (s *stubQuizRepo) Delete(_ context.Context, id uint) error {
	delete(s.quizzes, id)
	return nil
}

type stubAttemptRepo struct {
	attempts []models.QuizAttempt
}

func (s *stubAttemptRepo) Create(_ context.Context, attempt *models.QuizAttempt) error {
	attempt.ID = uint(len(s.attempts) + 1)
	s.attempts = append(s.attempts, *attempt)
	return nil
}

func (s *stubAttemptRepo) ListByStudent(_ context.Context, studentID string, _ int) ([]models.QuizAttempt, error) {
	out := make([]models.QuizAttempt, 0)
	for _, attempt := range s.attempts {
		if attempt.StudentID == studentID {
			out = append(out, attempt)
		}
	}
	return out, nil
}

type stubQuizCompleter struct {
	response string
	err      error
}

func (s *stubQuizCompleter) Complete(_ context.Context, _ string, _ ai.CompleteOptions) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

type recordedScore struct {
	StudentID string
	QuizID    uint
	Score     int
}

type stubScoreRecorder struct {
	scores []recordedScore
}

func (s *stubScoreRecorder) RecordQuizScore(_ context.Context, studentID string, quizID uint, score int) error {
	s.scores = append(s.scores, recordedScore{StudentID: studentID, QuizID: quizID, Score: score})
	return nil
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func seedQuiz(t *testing.T, repo *stubQuizRepo) models.Quiz {
	t.Helper()
	questions := []models.QuizQuestion{
		{Question: "q1", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 0},
		{Question: "q2", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 1},
		{Question: "q3", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 2},
	}
	quiz := models.Quiz{Title: "Seeded", Questions: datatypes.NewJSONType(questions)}
	require.NoError(t, repo.Create(context.Background(), &quiz))
	return quiz
}

func TestSubmitAttemptFallsBackToLocalScore(t *testing.T) {
	quizzes := newStubQuizRepo()
	attempts := &stubAttemptRepo{}
	recorder := &stubScoreRecorder{}
	quiz := seedQuiz(t, quizzes)

	svc := NewQuizService(quizzes, attempts, &stubQuizCompleter{err: errors.New("model down")}, recorder, testValidator(), zerolog.Nop())

	// Two of three answers correct; round(100*2/3) = 67.
	result, err := svc.SubmitAttempt(context.Background(), Actor{ID: "student-1", Role: models.RoleStudent}, quiz.ID, dto.AttemptSubmitRequest{Answers: []int{0, 1, 0}})
	require.NoError(t, err)
	require.Equal(t, 67, result.Score)
	require.Equal(t, 67, result.BasicScore)
	require.Equal(t, 2, result.CorrectAnswers)
	require.Equal(t, 3, result.TotalQuestions)
	require.False(t, result.AIGraded)

	require.Len(t, attempts.attempts, 1)
	require.Len(t, recorder.scores, 1)
	require.Equal(t, 67, recorder.scores[0].Score)
}

func TestSubmitAttemptUsesAssistantVerdict(t *testing.T) {
	quizzes := newStubQuizRepo()
	attempts := &stubAttemptRepo{}
	quiz := seedQuiz(t, quizzes)

	verdict := map[string]interface{}{
		"overallScore":     91,
		"totalQuestions":   3,
		"correctAnswers":   3,
		"detailedFeedback": []map[string]interface{}{{"questionIndex": 0, "correct": true, "score": 20}},
		"generalFeedback":  "excellent",
	}
	payload, err := json.Marshal(verdict)
	require.NoError(t, err)

	svc := NewQuizService(quizzes, attempts, &stubQuizCompleter{response: string(payload)}, nil, testValidator(), zerolog.Nop())

	result, err := svc.SubmitAttempt(context.Background(), Actor{ID: "student-1"}, quiz.ID, dto.AttemptSubmitRequest{Answers: []int{0, 1, 2}})
	require.NoError(t, err)
	require.Equal(t, 91, result.Score)
	require.Equal(t, 100, result.BasicScore)
	require.True(t, result.AIGraded)
	require.Equal(t, "excellent", result.Metadata["general_feedback"])
}

func TestSubmitAttemptRejectsAnswerCountMismatch(t *testing.T) {
	quizzes := newStubQuizRepo()
	quiz := seedQuiz(t, quizzes)

	svc := NewQuizService(quizzes, &stubAttemptRepo{}, &stubQuizCompleter{err: errors.New("unused")}, nil, testValidator(), zerolog.Nop())

	_, err := svc.SubmitAttempt(context.Background(), Actor{ID: "student-1"}, quiz.ID, dto.AttemptSubmitRequest{Answers: []int{0}})
	require.ErrorIs(t, err, ErrAnswerCountMismatch)
}

func TestSubmitAttemptUnknownQuiz(t *testing.T) {
	svc := NewQuizService(newStubQuizRepo(), &stubAttemptRepo{}, &stubQuizCompleter{}, nil, testValidator(), zerolog.Nop())

	_, err := svc.SubmitAttempt(context.Background(), Actor{ID: "student-1"}, 99, dto.AttemptSubmitRequest{Answers: []int{0}})
	require.ErrorIs(t, err, ErrQuizNotFound)
}

func TestGeneratePersistsValidatedQuiz(t *testing.T) {
	quizzes := newStubQuizRepo()

	questions := make([]map[string]interface{}, 0, 5)
	for i := 0; i < 5; i++ {
		questions = append(questions, map[string]interface{}{
			"question":     "q",
			"options":      []string{"a", "b", "c", "d"},
			"correctIndex": 1,
			"explanation":  "because",
		})
	}
	payload, err := json.Marshal(questions)
	require.NoError(t, err)

	svc := NewQuizService(quizzes, &stubAttemptRepo{}, &stubQuizCompleter{response: string(payload)}, nil, testValidator(), zerolog.Nop())

	quiz, err := svc.Generate(context.Background(), Actor{ID: "mentor-1", Role: models.RoleMentor}, dto.QuizGenerateRequest{Topic: "Concurrency", Difficulty: "intermediate"})
	require.NoError(t, err)
	require.True(t, quiz.AIGenerated)
	require.Equal(t, "mentor-1", quiz.CreatedBy)
	require.Len(t, quiz.Questions, 5)
	require.Len(t, quizzes.quizzes, 1)
}

func TestGenerateSurfacesMalformedModelOutput(t *testing.T) {
	quizzes := newStubQuizRepo()
	svc := NewQuizService(quizzes, &stubAttemptRepo{}, &stubQuizCompleter{response: "not json"}, nil, testValidator(), zerolog.Nop())

	_, err := svc.Generate(context.Background(), Actor{ID: "mentor-1"}, dto.QuizGenerateRequest{Topic: "Slices", Difficulty: "beginner"})
	var validationErr *ai.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Empty(t, quizzes.quizzes, "nothing should persist on validation failure")
}

func TestBasicScoreRounding(t *testing.T) {
	cases := []struct {
		correct, total, want int
	}{
		{0, 5, 0},
		{1, 3, 33},
		{2, 3, 67},
		{5, 5, 100},
		{1, 6, 17},
		{0, 0, 0},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, BasicScore(tc.correct, tc.total))
	}
}
