package core

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/markdave123-py/Lectern/internal/models"
)

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) (err error)
	GetUserByEmail(ctx context.Context, email string) (user *models.User, err error)
}

// LectureStore holds lectures and every artifact derived from them.
type LectureStore interface {
	CreateLecture(ctx context.Context, lecture *models.Lecture) error
	GetLectureByID(ctx context.Context, id string) (*models.Lecture, error)
	ListLecturesByUploader(ctx context.Context, uploaderID string) ([]models.Lecture, error)
	UpdateLectureStatus(ctx context.Context, id string, status string) error
	UpdateLectureAudio(ctx context.Context, id string, audioPath string, durationSeconds int) error
	UpdateLectureSlides(ctx context.Context, id string, content json.RawMessage) error
	DeleteLecture(ctx context.Context, id string) error

	InsertTranscriptChunk(ctx context.Context, chunk *models.TranscriptChunk) error
	ReplaceTranscriptChunks(ctx context.Context, lectureID string, chunks []models.TranscriptChunk) error
	GetChunksByLecture(ctx context.Context, lectureID string) ([]models.TranscriptChunk, error)
	UpdateChunkEmbeddings(ctx context.Context, chunks []models.TranscriptChunk) error
	SearchTranscriptChunks(ctx context.Context, lectureID string, queryVec []float32, limit int) ([]models.TranscriptChunk, error)

	InsertSummary(ctx context.Context, summary *models.Summary) error
	ReplaceSummary(ctx context.Context, summary *models.Summary) error
	GetLatestSummary(ctx context.Context, lectureID, lang, style string) (*models.Summary, error)

	InsertQuiz(ctx context.Context, quiz *models.Quiz) error
	ReplaceQuiz(ctx context.Context, quiz *models.Quiz) error
	GetLatestQuiz(ctx context.Context, lectureID, lang, difficulty string) (*models.Quiz, error)
}

// CacheStore is the persistent backing of the content cache.
type CacheStore interface {
	// GetCacheEntry returns nil when the key is absent or expired at now.
	GetCacheEntry(ctx context.Context, key string, now time.Time) (*models.CacheEntry, error)
	UpsertCacheEntry(ctx context.Context, key string, value json.RawMessage, expiresAt time.Time) error
	DeleteCacheEntry(ctx context.Context, key string) error
	DeleteExpiredCacheEntries(ctx context.Context, now time.Time) (int64, error)
}

// DbClient defines all persistence operations your services will need.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
type DbClient interface {
	UserStore
	LectureStore
	CacheStore
	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	DownloadToFile(ctx context.Context, bucket, key, dst string) error

	Bucket() string
}
