package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/markdave123-py/Lectern/internal/models"
)

const lectureColumns = `id, title, description, uploader_id, video_path, ppt_path, ppt_content,
	audio_path, duration_seconds, processing_status, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLecture(r rowScanner) (*models.Lecture, error) {
	var (
		l         models.Lecture
		pptPath   sql.NullString
		audioPath sql.NullString
		content   []byte
	)
	if err := r.Scan(&l.ID, &l.Title, &l.Description, &l.UploaderID, &l.VideoPath, &pptPath, &content,
		&audioPath, &l.DurationSeconds, &l.ProcessingStatus, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.SlidesPath = pptPath.String
	l.AudioPath = audioPath.String
	if len(content) > 0 {
		l.SlideContent = json.RawMessage(content)
	}
	return &l, nil
}

func (c *DatabaseClient) CreateLecture(ctx context.Context, l *models.Lecture) error {
	if l == nil {
		return errors.New("nil lecture")
	}
	l.ID = newID(l.ID)
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	if l.ProcessingStatus == "" {
		l.ProcessingStatus = models.StatusPending
	}
	const q = `
		INSERT INTO lectures
			(id, title, description, uploader_id, video_path, ppt_path, ppt_content,
			 audio_path, duration_seconds, processing_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := c.db.ExecContext(ctx, q,
		l.ID, l.Title, l.Description, l.UploaderID, l.VideoPath, nullString(l.SlidesPath), nullJSON(l.SlideContent),
		nullString(l.AudioPath), l.DurationSeconds, l.ProcessingStatus, l.CreatedAt)
	return err
}

func (c *DatabaseClient) GetLectureByID(ctx context.Context, id string) (*models.Lecture, error) {
	q := `SELECT ` + lectureColumns + ` FROM lectures WHERE id = $1`
	l, err := scanLecture(c.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (c *DatabaseClient) ListLecturesByUploader(ctx context.Context, uploaderID string) ([]models.Lecture, error) {
	q := `SELECT ` + lectureColumns + ` FROM lectures WHERE uploader_id = $1 ORDER BY created_at DESC`
	rows, err := c.db.QueryContext(ctx, q, uploaderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Lecture
	for rows.Next() {
		l, err := scanLecture(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateLectureStatus(ctx context.Context, id string, status string) error {
	const q = `UPDATE lectures SET processing_status = $2 WHERE id = $1`
	return c.execOne(ctx, q, id, status)
}

func (c *DatabaseClient) UpdateLectureAudio(ctx context.Context, id string, audioPath string, durationSeconds int) error {
	const q = `UPDATE lectures SET audio_path = $2, duration_seconds = $3 WHERE id = $1`
	return c.execOne(ctx, q, id, nullString(audioPath), durationSeconds)
}

func (c *DatabaseClient) UpdateLectureSlides(ctx context.Context, id string, content json.RawMessage) error {
	const q = `UPDATE lectures SET ppt_content = $2 WHERE id = $1`
	return c.execOne(ctx, q, id, nullJSON(content))
}

// DeleteLecture removes the lecture; chunks, summaries and quizzes cascade.
func (c *DatabaseClient) DeleteLecture(ctx context.Context, id string) error {
	const q = `DELETE FROM lectures WHERE id = $1`
	return c.execOne(ctx, q, id)
}

// execOne runs an update that must hit exactly one lecture row.
func (c *DatabaseClient) execOne(ctx context.Context, q string, id string, args ...any) error {
	res, err := c.db.ExecContext(ctx, q, append([]any{id}, args...)...)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("lecture not found: %s", id)
	}
	return nil
}
