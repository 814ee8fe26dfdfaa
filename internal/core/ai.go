package core

import (
	"context"

	"github.com/markdave123-py/Lectern/internal/models"
)

type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}

// JSONGenerator is implemented by providers that can be asked for a JSON
// response body instead of free text.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}

// ModelNamer reports the model name stored alongside generated artifacts.
type ModelNamer interface {
	ModelName() string
}

// TranscriptFormat tells the chunker which timestamp strategy applies to a transcript.
type TranscriptFormat string

const (
	FormatBracketed TranscriptFormat = "bracketed" // [MM:SS] / [HH:MM:SS] markers in prose
	FormatClock     TranscriptFormat = "clock"     // bare HH:MM:SS at line start
	FormatSegments  TranscriptFormat = "segments"  // native {start,end,text} segments
)

// Segment is a native ASR segment with offsets in seconds.
type Segment struct {
	Start      float64
	End        float64
	Text       string
	Speaker    string
	Confidence *float64
}

// Transcript is what a TranscriptionBackend returns.
type Transcript struct {
	Text     string
	Segments []Segment
	Format   TranscriptFormat
	Metadata TranscriptMetadata
}

// TranscriptMetadata describes how a transcript was produced.
type TranscriptMetadata struct {
	Backend         string
	Model           string
	Language        string
	DurationSeconds float64
}

// TranscribeOptions are passed through to the backend.
type TranscribeOptions struct {
	Timestamps    bool
	SpeakerLabels bool
	Language      string
}

// TranscriptionBackend converts an audio file into a transcript.
type TranscriptionBackend interface {
	Name() string
	TranscribeAudio(ctx context.Context, audioPath string, opts TranscribeOptions) (*Transcript, error)
}

// SummaryOptions controls summary generation.
type SummaryOptions struct {
	Style     string
	Language  string
	MaxLength int
}

// QuizOptions controls quiz generation.
type QuizOptions struct {
	Difficulty    string
	Language      string
	NumQuestions  int
	QuestionTypes []string
}

// SummaryResult is a generated summary and the model that produced it.
type SummaryResult struct {
	Summary string
	Model   string
}

// QuizResult is a validated quiz and the model that produced it.
type QuizResult struct {
	Quiz  models.QuizDocument
	Model string
}

// ContentGenerator produces summaries, quizzes and translations from arbitrary text.
type ContentGenerator interface {
	GenerateSummary(ctx context.Context, text string, opts SummaryOptions) (*SummaryResult, error)
	GenerateQuiz(ctx context.Context, text string, opts QuizOptions) (*QuizResult, error)
	Translate(ctx context.Context, text string, targetLang string) (string, error)
}
