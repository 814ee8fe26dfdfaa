package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/markdave123-py/Lectern/internal/core"
	"github.com/markdave123-py/Lectern/internal/models"
)

// rawQuestion mirrors models.QuizQuestion with the answer index as a
// pointer, so a response that omits it is not read as option 0.
type rawQuestion struct {
	ID                 int      `json:"id"`
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex *int     `json:"correct_answer_index"`
	Explanation        string   `json:"explanation"`
}

// ParseQuiz decodes a model response into a validated quiz. Markdown code
// fences and text around the JSON are tolerated; a bare array of questions
// is accepted as well as the {"questions": [...]} envelope.
func ParseQuiz(raw string) (*models.QuizDocument, error) {
	const op = "parse quiz"

	body := extractJSON(raw)
	if body == "" {
		return nil, core.NewError(core.CodeInvalidJSON, op, fmt.Errorf("no JSON in response"))
	}

	var envelope struct {
		Questions []rawQuestion `json:"questions"`
	}
	if strings.HasPrefix(body, "[") {
		if err := json.Unmarshal([]byte(body), &envelope.Questions); err != nil {
			return nil, core.NewError(core.CodeInvalidJSON, op, err)
		}
	} else if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return nil, core.NewError(core.CodeInvalidJSON, op, err)
	}

	doc := models.QuizDocument{Questions: make([]models.QuizQuestion, 0, len(envelope.Questions))}
	for i, q := range envelope.Questions {
		if q.CorrectAnswerIndex == nil {
			return nil, core.NewError(core.CodeInvalidQuizSchema, op,
				fmt.Errorf("question %d has no correct_answer_index", i+1))
		}
		doc.Questions = append(doc.Questions, models.QuizQuestion{
			ID:                 q.ID,
			Question:           q.Question,
			Options:            q.Options,
			CorrectAnswerIndex: *q.CorrectAnswerIndex,
			Explanation:        q.Explanation,
		})
	}

	if err := ValidateQuiz(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ValidateQuiz checks every question has text, exactly four options and an
// answer index inside them. Missing ids are numbered from 1.
func ValidateQuiz(doc *models.QuizDocument) error {
	const op = "validate quiz"

	if len(doc.Questions) == 0 {
		return core.NewError(core.CodeInvalidQuizSchema, op, fmt.Errorf("quiz has no questions"))
	}
	for i := range doc.Questions {
		q := &doc.Questions[i]
		if strings.TrimSpace(q.Question) == "" {
			return core.NewError(core.CodeInvalidQuizSchema, op, fmt.Errorf("question %d has no text", i+1))
		}
		if len(q.Options) != models.QuizOptionCount {
			return core.NewError(core.CodeInvalidQuizSchema, op,
				fmt.Errorf("question %d has %d options, want %d", i+1, len(q.Options), models.QuizOptionCount))
		}
		if q.CorrectAnswerIndex < 0 || q.CorrectAnswerIndex >= len(q.Options) {
			return core.NewError(core.CodeInvalidQuizSchema, op,
				fmt.Errorf("question %d answer index %d out of range", i+1, q.CorrectAnswerIndex))
		}
		if q.ID == 0 {
			q.ID = i + 1
		}
	}
	return nil
}

func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(s, closer)
	if end < start {
		return ""
	}
	return s[start : end+1]
}
