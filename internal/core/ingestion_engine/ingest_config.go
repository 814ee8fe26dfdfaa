package ingestion_engine

import (
	"time"

	"github.com/markdave123-py/Lectern/internal/config"
	"github.com/markdave123-py/Lectern/internal/core"
	"github.com/markdave123-py/Lectern/internal/core/generation"
	"github.com/markdave123-py/Lectern/internal/core/resilience"
	"github.com/markdave123-py/Lectern/internal/models"
)

// IngestConfig tunes the lecture pipeline.
//
// ChunkSeconds:     transcript window size in seconds (e.g., 300).
// DefaultLanguage:  language used when the upload does not name one.
// Audio:            audio track extracted for transcription; mono 16kHz in the configured format.
// AudioRetry:       retry policy of audio extraction (fatal when exhausted).
// SlideRetry:       retry policy of slide extraction (non-fatal).
// GenerationRetry:  retry policy of each summary/quiz call, inside the generation breaker.
// SummaryStyle:     style of the summary generated on ingest.
// SummaryMaxWords:  soft length limit passed to the generator.
// QuizDifficulty:   difficulty of the quiz generated on ingest.
// QuizQuestions:    number of questions of the quiz generated on ingest.
// MaxSourceTokens:  cap on transcript + slide text sent to the generator.
// EmbedBatchSize:   chunks embedded per request by the indexing step.
// RunTimeout:       upper bound of one background run.
// QueueSize:        capacity of the in-memory job queue.
type IngestConfig struct {
	ChunkSeconds    int
	DefaultLanguage string
	Audio           core.AudioOptions
	AudioRetry      resilience.RetryPolicy
	SlideRetry      resilience.RetryPolicy
	GenerationRetry resilience.RetryPolicy
	SummaryStyle    string
	SummaryMaxWords int
	QuizDifficulty  string
	QuizQuestions   int
	MaxSourceTokens int
	EmbedBatchSize  int
	RunTimeout      time.Duration
	QueueSize       int
}

// NewIngestConfig derives the pipeline settings from the loaded config.
func NewIngestConfig(p config.PipelineConfig) *IngestConfig {
	return &IngestConfig{
		ChunkSeconds:    p.ChunkSeconds,
		DefaultLanguage: p.DefaultLanguage,
		Audio:           core.AudioOptions{Format: p.AudioFormat, Bitrate: p.AudioBitrate, Channels: 1, SampleRate: 16000},
		AudioRetry:      resilience.RetryPolicy{Attempts: p.AudioAttempts, Delay: p.AudioRetryDelay, Constant: true},
		SlideRetry:      resilience.RetryPolicy{Attempts: p.SlideAttempts, Delay: p.SlideRetryDelay, Constant: true},
		GenerationRetry: resilience.RetryPolicy{Attempts: p.RetryAttempts, Delay: p.RetryDelay},
		SummaryStyle:    models.StyleConcise,
		SummaryMaxWords: p.SummaryMaxWords,
		QuizDifficulty:  models.DifficultyMedium,
		QuizQuestions:   p.QuizQuestions,
		MaxSourceTokens: generation.DefaultMaxSourceTokens,
		EmbedBatchSize:  32,
		RunTimeout:      2 * time.Hour,
		QueueSize:       64,
	}
}

// LectureInput is one upload handed to the pipeline.
type LectureInput struct {
	ID          string // optional; a UUID is assigned when empty
	Title       string
	Description string
	UploaderID  string
	VideoPath   string
	SlidesPath  string // optional
	Language    string // optional; DefaultLanguage when empty
}

// Run is the state of a single ProcessLecture call. It is owned by that call
// and never shared between runs.
type Run struct {
	LectureID  string
	Status     string
	Progress   int
	Backend    string
	StartedAt  time.Time
	FinishedAt time.Time
	Chunks     []models.TranscriptChunk
	Slides     *models.SlideDeck
	Summary    *models.Summary
	Quiz       *models.Quiz
	Warnings   []string // non-fatal step failures
	Err        error
}

// ProcessResult is what ProcessLecture returns, on success and on failure.
type ProcessResult struct {
	LectureID string
	Status    string
	Run       *Run
}

func (r *Run) result() *ProcessResult {
	return &ProcessResult{LectureID: r.LectureID, Status: r.Status, Run: r}
}

// ReprocessOptions selects the sub-steps of a reprocessing request. Empty
// language, style and difficulty fall back to the ingest defaults.
type ReprocessOptions struct {
	Retranscribe bool
	Summary      bool
	Quiz         bool
	Language     string
	Style        string
	Difficulty   string
	NumQuestions int
}

// ReprocessResult reports what a reprocessing request rewrote.
type ReprocessResult struct {
	LectureID string
	Status    string
	Chunks    int
	Summary   *models.Summary
	Quiz      *models.Quiz
}
