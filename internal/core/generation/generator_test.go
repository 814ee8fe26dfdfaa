package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/markdave123-py/Lectern/internal/core"
	"github.com/markdave123-py/Lectern/internal/logger"
	"github.com/markdave123-py/Lectern/internal/models"
)

const validQuiz = `{"questions":[
 {"id":1,"question":"What is 2+2?","options":["1","2","3","4"],"correct_answer_index":3,"explanation":"arithmetic"},
 {"question":"Capital of France?","options":["Paris","Rome","Oslo","Bern"],"correct_answer_index":0,"explanation":"geography"}
]}`

func TestParseQuiz(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantCode core.ErrorCode
		wantN    int
	}{
		{name: "plain envelope", raw: validQuiz, wantN: 2},
		{name: "fenced", raw: "```json\n" + validQuiz + "\n```", wantN: 2},
		{name: "prose around json", raw: "Here is your quiz:\n" + validQuiz + "\nGood luck!", wantN: 2},
		{name: "bare array", raw: `[{"question":"q","options":["a","b","c","d"],"correct_answer_index":1}]`, wantN: 1},
		{name: "not json", raw: "Sorry, I cannot help with that.", wantCode: core.CodeInvalidJSON},
		{name: "truncated json", raw: `{"questions":[{"question":"q","options":["a"`, wantCode: core.CodeInvalidJSON},
		{name: "three options", raw: `{"questions":[{"question":"q","options":["a","b","c"],"correct_answer_index":0}]}`, wantCode: core.CodeInvalidQuizSchema},
		{name: "five options", raw: `{"questions":[{"question":"q","options":["a","b","c","d","e"],"correct_answer_index":0}]}`, wantCode: core.CodeInvalidQuizSchema},
		{name: "index too high", raw: `{"questions":[{"question":"q","options":["a","b","c","d"],"correct_answer_index":4}]}`, wantCode: core.CodeInvalidQuizSchema},
		{name: "negative index", raw: `{"questions":[{"question":"q","options":["a","b","c","d"],"correct_answer_index":-1}]}`, wantCode: core.CodeInvalidQuizSchema},
		{name: "no questions", raw: `{"questions":[]}`, wantCode: core.CodeInvalidQuizSchema},
		{name: "missing answer index", raw: `{"questions":[{"question":"q","options":["a","b","c","d"]}]}`, wantCode: core.CodeInvalidQuizSchema},
		{name: "null answer index", raw: `[{"question":"q","options":["a","b","c","d"],"correct_answer_index":null}]`, wantCode: core.CodeInvalidQuizSchema},
		{name: "blank question", raw: `{"questions":[{"question":" ","options":["a","b","c","d"],"correct_answer_index":0}]}`, wantCode: core.CodeInvalidQuizSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseQuiz(tt.raw)
			if tt.wantCode != "" {
				if !core.IsCode(err, tt.wantCode) {
					t.Fatalf("err = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(doc.Questions) != tt.wantN {
				t.Fatalf("questions = %d, want %d", len(doc.Questions), tt.wantN)
			}
			for i, q := range doc.Questions {
				if q.ID == 0 {
					t.Errorf("question %d has no id", i)
				}
			}
		})
	}
}

func TestValidateQuizNumbersMissingIDs(t *testing.T) {
	doc := models.QuizDocument{Questions: []models.QuizQuestion{
		{Question: "a", Options: []string{"1", "2", "3", "4"}},
		{ID: 7, Question: "b", Options: []string{"1", "2", "3", "4"}},
		{Question: "c", Options: []string{"1", "2", "3", "4"}},
	}}
	if err := ValidateQuiz(&doc); err != nil {
		t.Fatal(err)
	}
	got := []int{doc.Questions[0].ID, doc.Questions[1].ID, doc.Questions[2].ID}
	if got[0] != 1 || got[1] != 7 || got[2] != 3 {
		t.Errorf("ids = %v, want [1 7 3]", got)
	}
}

type fakeLLM struct {
	out      string
	jsonOut  string
	err      error
	lastSys  string
	lastUser string
	jsonUsed bool
}

func (f *fakeLLM) Generate(_ context.Context, sys, user string) (string, error) {
	f.lastSys, f.lastUser = sys, user
	return f.out, f.err
}

func (f *fakeLLM) GenerateJSON(_ context.Context, sys, user string) (string, error) {
	f.jsonUsed = true
	f.lastSys, f.lastUser = sys, user
	return f.jsonOut, f.err
}

func (f *fakeLLM) ModelName() string { return "fake-model" }

// textOnlyLLM hides the JSON capability of fakeLLM.
type textOnlyLLM struct{ f *fakeLLM }

func (t textOnlyLLM) Generate(ctx context.Context, sys, user string) (string, error) {
	return t.f.Generate(ctx, sys, user)
}

func TestGenerateSummary(t *testing.T) {
	llm := &fakeLLM{out: "  # Summary\n- point  "}
	g := NewGenerator(llm, logger.Nop())

	res, err := g.GenerateSummary(context.Background(), "lecture text", core.SummaryOptions{
		Style: models.StyleExamPrep, Language: "de", MaxLength: 300,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Summary != "# Summary\n- point" || res.Model != "fake-model" {
		t.Errorf("result = %+v", res)
	}
	for _, want := range []string{"exam", "300 words", "language: de", "lecture text"} {
		if !strings.Contains(llm.lastUser, want) {
			t.Errorf("prompt missing %q:\n%s", want, llm.lastUser)
		}
	}
}

func TestGenerateSummaryFailures(t *testing.T) {
	boom := errors.New("quota")
	tests := []struct {
		name string
		llm  *fakeLLM
		text string
	}{
		{name: "provider error", llm: &fakeLLM{err: boom}, text: "x"},
		{name: "empty output", llm: &fakeLLM{out: "  "}, text: "x"},
		{name: "empty input", llm: &fakeLLM{out: "never"}, text: " "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGenerator(tt.llm, logger.Nop()).GenerateSummary(context.Background(), tt.text, core.SummaryOptions{})
			if !core.IsCode(err, core.CodeGenerationFailed) {
				t.Errorf("err = %v, want GENERATION_FAILED", err)
			}
		})
	}
}

func TestGenerateQuizPrefersJSONMode(t *testing.T) {
	llm := &fakeLLM{jsonOut: validQuiz}
	res, err := NewGenerator(llm, logger.Nop()).GenerateQuiz(context.Background(), "text", core.QuizOptions{
		Difficulty: models.DifficultyHard, NumQuestions: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !llm.jsonUsed {
		t.Error("JSON mode not used")
	}
	if len(res.Quiz.Questions) != 2 || !strings.Contains(llm.lastUser, "2 hard") {
		t.Errorf("result = %+v, prompt = %q", res, llm.lastUser)
	}
}

func TestGenerateQuizTextFallbackAndValidation(t *testing.T) {
	inner := &fakeLLM{out: `{"questions":[{"question":"q","options":["a","b"],"correct_answer_index":0}]}`}
	g := NewGenerator(textOnlyLLM{f: inner}, logger.Nop())

	_, err := g.GenerateQuiz(context.Background(), "text", core.QuizOptions{})
	if !core.IsCode(err, core.CodeInvalidQuizSchema) {
		t.Fatalf("err = %v, want INVALID_QUIZ_SCHEMA", err)
	}
	if core.IsNonRetryable(err) {
		t.Error("schema errors should be retried with a fresh generation")
	}
	if !strings.Contains(inner.lastUser, "10 medium") {
		t.Errorf("default quiz prompt = %q", inner.lastUser)
	}
	if g.model != "unknown" {
		t.Errorf("model = %q, want unknown for providers without a name", g.model)
	}
}

func TestTranslate(t *testing.T) {
	llm := &fakeLLM{out: "Hallo Welt"}
	g := NewGenerator(llm, logger.Nop())

	got, err := g.Translate(context.Background(), "Hello world", "German")
	if err != nil || got != "Hallo Welt" {
		t.Fatalf("Translate() = %q, %v", got, err)
	}
	if !strings.Contains(llm.lastUser, "German") {
		t.Errorf("prompt = %q", llm.lastUser)
	}

	if _, err := g.Translate(context.Background(), "Hello", ""); !core.IsCode(err, core.CodeGenerationFailed) {
		t.Errorf("missing language err = %v", err)
	}
}
