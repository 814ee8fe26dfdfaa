package models

import (
	"encoding/json"
	"time"
)

// Lecture processing statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Summary styles and types.
const (
	StyleConcise  = "concise"
	StyleDetailed = "detailed"
	StyleExamPrep = "exam-prep"

	SummaryTypeChunk   = "chunk"
	SummaryTypeSession = "session"
)

// Quiz difficulties.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// QuizOptionCount is the number of options every quiz question must carry.
const QuizOptionCount = 4

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Lecture is one uploaded lecture video and everything extracted from it.
type Lecture struct {
	ID               string          `db:"id" json:"id"`
	Title            string          `db:"title" json:"title"`
	Description      string          `db:"description" json:"description"`
	UploaderID       string          `db:"uploader_id" json:"uploader_id"`
	VideoPath        string          `db:"video_path" json:"video_path"`
	SlidesPath       string          `db:"ppt_path" json:"ppt_path,omitempty"`
	SlideContent     json.RawMessage `db:"ppt_content" json:"ppt_content,omitempty"`
	AudioPath        string          `db:"audio_path" json:"audio_path,omitempty"`
	DurationSeconds  int             `db:"duration_seconds" json:"duration_seconds"`
	ProcessingStatus string          `db:"processing_status" json:"processing_status"` // pending | processing | completed | failed
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// TranscriptChunk is one time window of transcribed speech.
type TranscriptChunk struct {
	ID         string    `db:"id" json:"id"`
	LectureID  string    `db:"lecture_id" json:"lecture_id"`
	StartTS    int       `db:"start_ts" json:"start_ts"`
	EndTS      int       `db:"end_ts" json:"end_ts"`
	Speaker    string    `db:"speaker" json:"speaker,omitempty"`
	Text       string    `db:"text" json:"text"`
	Confidence *float64  `db:"confidence" json:"confidence,omitempty"`
	Embedding  []float32 `db:"embedding" json:"-"` // pgvector column, filled by indexing
}

// Summary is a generated markdown summary of a lecture.
type Summary struct {
	ID           string          `db:"id" json:"id"`
	LectureID    string          `db:"lecture_id" json:"lecture_id"`
	Lang         string          `db:"lang" json:"lang"`
	Style        string          `db:"style" json:"style"`
	ContentMD    string          `db:"content_md" json:"content_md"`
	SummaryType  string          `db:"summary_type" json:"summary_type"`
	SourceChunks json.RawMessage `db:"source_chunks" json:"source_chunks,omitempty"`
	Model        string          `db:"model" json:"model"`
	GeneratedAt  time.Time       `db:"generated_at" json:"generated_at"`
}

// QuizQuestion is a single multiple choice question.
type QuizQuestion struct {
	ID                 int      `json:"id"`
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correct_answer_index"`
	Explanation        string   `json:"explanation"`
}

// QuizDocument is the JSON document stored in quizzes.items_json.
type QuizDocument struct {
	Questions []QuizQuestion `json:"questions"`
}

// Quiz is a generated multiple choice quiz for a lecture.
type Quiz struct {
	ID          string       `db:"id" json:"id"`
	LectureID   string       `db:"lecture_id" json:"lecture_id"`
	Lang        string       `db:"lang" json:"lang"`
	Difficulty  string       `db:"difficulty" json:"difficulty"`
	Items       QuizDocument `db:"items_json" json:"items"`
	Model       string       `db:"model" json:"model"`
	GeneratedAt time.Time    `db:"generated_at" json:"generated_at"`
}

// CacheEntry is a row of api_cache.
type CacheEntry struct {
	Key       string          `db:"cache_key" json:"cache_key"`
	Value     json.RawMessage `db:"cache_value" json:"cache_value"`
	ExpiresAt time.Time       `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// ProcessingState is the best-effort progress of an active ingestion run.
// It is never written to Postgres.
type ProcessingState struct {
	LectureID string    `json:"lecture_id"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Slide is the text pulled from one slide of a deck.
type Slide struct {
	SlideNumber int    `json:"slideNumber"`
	Title       string `json:"title"`
	Content     string `json:"content"`
}

// SlideNote is the speaker notes attached to one slide.
type SlideNote struct {
	SlideNumber int    `json:"slideNumber"`
	Text        string `json:"text"`
}

// SlideDeck is the structured content stored in lectures.ppt_content.
type SlideDeck struct {
	Slides []Slide     `json:"slides"`
	Notes  []SlideNote `json:"notes"`
}

// Translation is a summary rendered into another language. It lives only in
// the content cache.
type Translation struct {
	LectureID  string `json:"lecture_id"`
	Lang       string `json:"lang"`
	Style      string `json:"style"`
	TargetLang string `json:"target_lang"`
	ContentMD  string `json:"content_md"`
}
