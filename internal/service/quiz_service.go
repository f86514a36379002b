package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/opvera/opvera-api/internal/dto"
	"github.com/opvera/opvera-api/internal/models"
	"github.com/opvera/opvera-api/internal/repository"
	"github.com/opvera/opvera-api/pkg/ai"
)

// ErrQuizNotFound indicates the quiz does not exist.
var ErrQuizNotFound = errors.New("quiz not found")

// ErrAnswerCountMismatch indicates a submission whose answer slice does not
// line up with the quiz's question count.
var ErrAnswerCountMismatch = errors.New("answer count does not match question count")

// QuizService generates, lists and grades quizzes.
type QuizService interface {
	Generate(ctx context.Context, actor Actor, req dto.QuizGenerateRequest) (dto.QuizResponse, error)
	Create(ctx context.Context, actor Actor, req dto.QuizCreateRequest) (dto.QuizResponse, error)
	Get(ctx context.Context, id uint) (dto.QuizResponse, error)
	List(ctx context.Context) ([]dto.QuizResponse, error)
	SubmitAttempt(ctx context.Context, actor Actor, quizID uint, req dto.AttemptSubmitRequest) (dto.AttemptResponse, error)
	ListAttempts(ctx context.Context, actor Actor, studentID string) ([]dto.AttemptResponse, error)
}

type quizService struct {
	quizzes   repository.QuizRepository
	attempts  repository.QuizAttemptRepository
	completer ai.Completer
	scores    ScoreRecorder
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// ScoreRecorder receives finished attempt scores, typically the leaderboard.
type ScoreRecorder interface {
	RecordQuizScore(ctx context.Context, studentID string, quizID uint, score int) error
}

// NewQuizService constructs the quiz service. scores may be nil when no
// leaderboard is wired.
func NewQuizService(
	quizzes repository.QuizRepository,
	attempts repository.QuizAttemptRepository,
	completer ai.Completer,
	scores ScoreRecorder,
	validate *validator.Validate,
	logger zerolog.Logger,
) QuizService {
	return &quizService{
		quizzes:   quizzes,
		attempts:  attempts,
		completer: completer,
		scores:    scores,
		validator: validate,
		logger:    logger.With().Str("component", "quiz_service").Logger(),
		now:       time.Now,
	}
}

// Generate produces a quiz through the assistant and persists it. The model
// output is validated structurally before anything is stored; a malformed
// response surfaces as an error instead of a partial quiz.
func (s *quizService) Generate(ctx context.Context, actor Actor, req dto.QuizGenerateRequest) (dto.QuizResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.QuizResponse{}, err
	}

	generated, err := ai.GenerateQuiz(ctx, s.completer, req.Topic, req.Difficulty)
	if err != nil {
		return dto.QuizResponse{}, err
	}

	quiz := models.Quiz{
		Title:       generated.Title,
		Description: generated.Description,
		Questions:   datatypes.NewJSONType(questionsToModel(generated.Questions)),
		Difficulty:  generated.Difficulty,
		Topic:       generated.Topic,
		CreatedBy:   actor.ID,
		AIGenerated: true,
	}
	if err := s.quizzes.Create(ctx, &quiz); err != nil {
		return dto.QuizResponse{}, err
	}

	s.logger.Info().Uint("quiz_id", quiz.ID).Str("topic", quiz.Topic).Str("creator", actor.ID).Msg("quiz generated")
	return dto.NewQuizResponse(quiz), nil
}

func (s *quizService) Create(ctx context.Context, actor Actor, req dto.QuizCreateRequest) (dto.QuizResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.QuizResponse{}, err
	}
	for _, q := range req.Questions {
		if len(q.Options) < 2 || q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return dto.QuizResponse{}, &ai.ValidationError{Reason: "question options and correct index are inconsistent"}
		}
	}

	quiz := models.Quiz{
		Title:       req.Title,
		Description: req.Description,
		Questions:   datatypes.NewJSONType(req.Questions),
		Difficulty:  req.Difficulty,
		Topic:       req.Topic,
		CreatedBy:   actor.ID,
	}
	if err := s.quizzes.Create(ctx, &quiz); err != nil {
		return dto.QuizResponse{}, err
	}
	return dto.NewQuizResponse(quiz), nil
}

func (s *quizService) Get(ctx context.Context, id uint) (dto.QuizResponse, error) {
	quiz, err := s.quizzes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuizResponse{}, ErrQuizNotFound
		}
		return dto.QuizResponse{}, err
	}
	return dto.NewQuizResponse(quiz), nil
}

func (s *quizService) List(ctx context.Context) ([]dto.QuizResponse, error) {
	quizzes, err := s.quizzes.List(ctx, 100, 0)
	if err != nil {
		return nil, err
	}
	return dto.NewQuizResponseSlice(quizzes), nil
}

// SubmitAttempt grades and persists one attempt. Grading goes through the
// assistant first; when that fails for any reason the attempt falls back to
// the locally computed percentage so a submission never errors out on the
// model being unavailable.
func (s *quizService) SubmitAttempt(ctx context.Context, actor Actor, quizID uint, req dto.AttemptSubmitRequest) (dto.AttemptResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AttemptResponse{}, err
	}

	quiz, err := s.quizzes.GetByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AttemptResponse{}, ErrQuizNotFound
		}
		return dto.AttemptResponse{}, err
	}

	questions := quiz.Questions.Data()
	if len(req.Answers) != len(questions) {
		return dto.AttemptResponse{}, ErrAnswerCountMismatch
	}

	correct := 0
	for i, q := range questions {
		if req.Answers[i] == q.CorrectIndex {
			correct++
		}
	}
	basicScore := BasicScore(correct, len(questions))

	score := basicScore
	aiGraded := false
	metadata := datatypes.JSONMap{
		"basic_score":     basicScore,
		"correct_answers": correct,
		"total_questions": len(questions),
	}

	result, gradeErr := ai.GradeQuiz(ctx, s.completer, ai.GradingInput{
		Title:     quiz.Title,
		Topic:     quiz.Topic,
		Questions: questionsToAI(questions),
		Answers:   req.Answers,
	})
	if gradeErr != nil {
		s.logger.Warn().Err(gradeErr).Uint("quiz_id", quizID).Msg("assistant grading failed, using local score")
	} else {
		score = result.OverallScore
		aiGraded = true
		metadata["general_feedback"] = result.GeneralFeedback
		metadata["improvement_areas"] = result.ImprovementAreas
		metadata["strengths"] = result.Strengths
		metadata["detailed_feedback"] = result.DetailedFeedback
	}
	metadata["ai_graded"] = aiGraded

	attempt := models.QuizAttempt{
		QuizID:      quizID,
		StudentID:   actor.ID,
		Answers:     datatypes.NewJSONType(req.Answers),
		Score:       score,
		MaxScore:    100,
		CompletedAt: s.now().UTC(),
		Metadata:    metadata,
	}
	if err := s.attempts.Create(ctx, &attempt); err != nil {
		return dto.AttemptResponse{}, err
	}

	if s.scores != nil {
		if err := s.scores.RecordQuizScore(ctx, actor.ID, quizID, score); err != nil {
			s.logger.Warn().Err(err).Str("student", actor.ID).Msg("failed to record quiz score")
		}
	}

	return s.attemptResponse(attempt, correct, len(questions), basicScore, aiGraded), nil
}

func (s *quizService) ListAttempts(ctx context.Context, actor Actor, studentID string) ([]dto.AttemptResponse, error) {
	if studentID == "" {
		studentID = actor.ID
	}
	if studentID != actor.ID && actor.Role != models.RoleAdmin && actor.Role != models.RoleMentor {
		return nil, ErrForbidden
	}

	attempts, err := s.attempts.ListByStudent(ctx, studentID, 50)
	if err != nil {
		return nil, err
	}

	out := make([]dto.AttemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		correct, _ := intFromMeta(attempt.Metadata, "correct_answers")
		total, _ := intFromMeta(attempt.Metadata, "total_questions")
		basic, _ := intFromMeta(attempt.Metadata, "basic_score")
		aiGraded, _ := attempt.Metadata["ai_graded"].(bool)
		out = append(out, s.attemptResponse(attempt, correct, total, basic, aiGraded))
	}
	return out, nil
}

func (s *quizService) attemptResponse(attempt models.QuizAttempt, correct, total, basicScore int, aiGraded bool) dto.AttemptResponse {
	return dto.AttemptResponse{
		ID:             attempt.ID,
		QuizID:         attempt.QuizID,
		StudentID:      attempt.StudentID,
		Answers:        attempt.Answers.Data(),
		Score:          attempt.Score,
		MaxScore:       attempt.MaxScore,
		BasicScore:     basicScore,
		CorrectAnswers: correct,
		TotalQuestions: total,
		AIGraded:       aiGraded,
		Metadata:       attempt.Metadata,
		CompletedAt:    attempt.CompletedAt,
	}
}

// BasicScore is the deterministic percentage used when assistant grading is
// unavailable: round(100 * correct / total).
func BasicScore(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

func questionsToModel(questions []ai.Question) []models.QuizQuestion {
	out := make([]models.QuizQuestion, 0, len(questions))
	for _, q := range questions {
		out = append(out, models.QuizQuestion{
			Question:     q.Question,
			Options:      q.Options,
			CorrectIndex: q.CorrectIndex,
			Explanation:  q.Explanation,
		})
	}
	return out
}

func questionsToAI(questions []models.QuizQuestion) []ai.Question {
	out := make([]ai.Question, 0, len(questions))
	for _, q := range questions {
		out = append(out, ai.Question{
			Question:     q.Question,
			Options:      q.Options,
			CorrectIndex: q.CorrectIndex,
			Explanation:  q.Explanation,
		})
	}
	return out
}

func intFromMeta(meta datatypes.JSONMap, key string) (int, bool) {
	if meta == nil {
		return 0, false
	}
	switch v := meta[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(parsed), true
	default:
		return 0, false
	}
}
