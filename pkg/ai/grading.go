package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// gradingSchema is the structural contract requested from the model. The
// verdict is validated against it before unmarshalling so a shape deviation
// fails closed instead of producing a half-filled result.
const gradingSchema = `{
  "type": "object",
  "required": ["overallScore", "detailedFeedback", "generalFeedback"],
  "properties": {
    "overallScore": {"type": "integer", "minimum": 0, "maximum": 100},
    "totalQuestions": {"type": "integer", "minimum": 0},
    "correctAnswers": {"type": "integer", "minimum": 0},
    "detailedFeedback": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["questionIndex", "correct", "score"],
        "properties": {
          "questionIndex": {"type": "integer", "minimum": 0},
          "correct": {"type": "boolean"},
          "score": {"type": "integer", "minimum": 0, "maximum": 20},
          "feedback": {"type": "string"},
          "suggestion": {"type": "string"}
        }
      }
    },
    "generalFeedback": {"type": "string"},
    "improvementAreas": {"type": "array", "items": {"type": "string"}},
    "strengths": {"type": "array", "items": {"type": "string"}}
  }
}`

var compiledGradingSchema = jsonschema.MustCompileString("grading.json", gradingSchema)

// GradeQuiz asks the model to grade an attempt and returns the structured
// verdict. Callers must keep a deterministic local score as fallback; grading
// is an enhancement, never the single source of a score.
func GradeQuiz(ctx context.Context, completer Completer, input GradingInput) (GradingResult, error) {
	text, err := completer.Complete(ctx, buildGradingPrompt(input), CompleteOptions{
		Temperature:     0.2,
		MaxOutputTokens: 2048,
	})
	if err != nil {
		return GradingResult{}, fmt.Errorf("grade quiz: %w", err)
	}

	return ParseGradingResult(text)
}

// ParseGradingResult validates raw model output against the grading schema
// and decodes it. Split from GradeQuiz so the contract is testable without a
// transport.
func ParseGradingResult(raw string) (GradingResult, error) {
	cleaned := StripFences(raw)

	var document interface{}
	if err := decodeJSON(cleaned, &document); err != nil {
		return GradingResult{}, err
	}
	if err := compiledGradingSchema.Validate(document); err != nil {
		return GradingResult{}, &ValidationError{Reason: err.Error()}
	}

	var result GradingResult
	if err := decodeJSON(cleaned, &result); err != nil {
		return GradingResult{}, err
	}
	return result, nil
}

func buildGradingPrompt(input GradingInput) string {
	var b strings.Builder
	b.WriteString("Grade these quiz answers for a student. Provide detailed feedback and suggestions.\n\n")
	fmt.Fprintf(&b, "Quiz: %s\n", input.Title)
	topic := input.Topic
	if topic == "" {
		topic = "General"
	}
	fmt.Fprintf(&b, "Topic: %s\n\nQuestions and Answers:\n", topic)

	for i, q := range input.Questions {
		fmt.Fprintf(&b, "\nQuestion %d: %s\n", i+1, q.Question)
		fmt.Fprintf(&b, "Correct Answer: %s\n", q.Options[q.CorrectIndex])
		fmt.Fprintf(&b, "Student Answer: %s\n", answerText(q, input.Answers, i))
		fmt.Fprintf(&b, "Explanation: %s\n", q.Explanation)
	}

	b.WriteString(`
IMPORTANT: Respond with ONLY valid JSON in this exact format:
{
  "overallScore": 85,
  "totalQuestions": 5,
  "correctAnswers": 4,
  "detailedFeedback": [
    {
      "questionIndex": 0,
      "correct": true,
      "score": 20,
      "feedback": "...",
      "suggestion": "..."
    }
  ],
  "generalFeedback": "...",
  "improvementAreas": ["..."],
  "strengths": ["..."]
}

Make sure:
- overallScore is 0-100
- Each detailedFeedback item has correct (boolean), score (0-20), feedback, and suggestion
- Be encouraging and constructive
- Provide specific learning suggestions`)

	return b.String()
}

func answerText(q Question, answers []int, index int) string {
	if index >= len(answers) {
		return "No answer provided"
	}
	chosen := answers[index]
	if chosen < 0 || chosen >= len(q.Options) {
		return "No answer provided"
	}
	return q.Options[chosen]
}
