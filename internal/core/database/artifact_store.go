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

// Summaries

const insertSummarySQL = `
	INSERT INTO summaries
		(id, lecture_id, lang, style, content_md, summary_type, source_chunks, model, generated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

func insertSummary(ctx context.Context, ex execer, s *models.Summary) error {
	s.ID = newID(s.ID)
	if s.GeneratedAt.IsZero() {
		s.GeneratedAt = time.Now().UTC()
	}
	if s.SummaryType == "" {
		s.SummaryType = models.SummaryTypeSession
	}
	_, err := ex.ExecContext(ctx, insertSummarySQL,
		s.ID, s.LectureID, s.Lang, s.Style, s.ContentMD, s.SummaryType, nullJSON(s.SourceChunks), s.Model, s.GeneratedAt)
	return err
}

func (c *DatabaseClient) InsertSummary(ctx context.Context, summary *models.Summary) error {
	if summary == nil {
		return errors.New("nil summary")
	}
	return insertSummary(ctx, c.db, summary)
}

// ReplaceSummary deletes the lecture's summaries in summary.Lang and inserts
// summary, in one transaction.
func (c *DatabaseClient) ReplaceSummary(ctx context.Context, summary *models.Summary) error {
	if summary == nil {
		return errors.New("nil summary")
	}
	return c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM summaries WHERE lecture_id = $1 AND lang = $2`,
			summary.LectureID, summary.Lang); err != nil {
			return err
		}
		return insertSummary(ctx, tx, summary)
	})
}

func (c *DatabaseClient) GetLatestSummary(ctx context.Context, lectureID, lang, style string) (*models.Summary, error) {
	const q = `
		SELECT id, lecture_id, lang, style, content_md, summary_type, source_chunks, model, generated_at
		FROM summaries
		WHERE lecture_id = $1 AND lang = $2 AND style = $3
		ORDER BY generated_at DESC
		LIMIT 1
	`
	var (
		s       models.Summary
		sources []byte
	)
	err := c.db.QueryRowContext(ctx, q, lectureID, lang, style).Scan(
		&s.ID, &s.LectureID, &s.Lang, &s.Style, &s.ContentMD, &s.SummaryType, &sources, &s.Model, &s.GeneratedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(sources) > 0 {
		s.SourceChunks = json.RawMessage(sources)
	}
	return &s, nil
}

// Quizzes

const insertQuizSQL = `
	INSERT INTO quizzes (id, lecture_id, lang, difficulty, items_json, model, generated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

func insertQuiz(ctx context.Context, ex execer, q *models.Quiz) error {
	q.ID = newID(q.ID)
	if q.GeneratedAt.IsZero() {
		q.GeneratedAt = time.Now().UTC()
	}
	items, err := json.Marshal(q.Items)
	if err != nil {
		return fmt.Errorf("encode quiz items: %w", err)
	}
	_, err = ex.ExecContext(ctx, insertQuizSQL,
		q.ID, q.LectureID, q.Lang, q.Difficulty, string(items), q.Model, q.GeneratedAt)
	return err
}

func (c *DatabaseClient) InsertQuiz(ctx context.Context, quiz *models.Quiz) error {
	if quiz == nil {
		return errors.New("nil quiz")
	}
	return insertQuiz(ctx, c.db, quiz)
}

// ReplaceQuiz deletes the lecture's quizzes in quiz.Lang and inserts quiz, in
// one transaction.
func (c *DatabaseClient) ReplaceQuiz(ctx context.Context, quiz *models.Quiz) error {
	if quiz == nil {
		return errors.New("nil quiz")
	}
	return c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM quizzes WHERE lecture_id = $1 AND lang = $2`,
			quiz.LectureID, quiz.Lang); err != nil {
			return err
		}
		return insertQuiz(ctx, tx, quiz)
	})
}

func (c *DatabaseClient) GetLatestQuiz(ctx context.Context, lectureID, lang, difficulty string) (*models.Quiz, error) {
	const q = `
		SELECT id, lecture_id, lang, difficulty, items_json, model, generated_at
		FROM quizzes
		WHERE lecture_id = $1 AND lang = $2 AND difficulty = $3
		ORDER BY generated_at DESC
		LIMIT 1
	`
	var (
		qz    models.Quiz
		items []byte
	)
	err := c.db.QueryRowContext(ctx, q, lectureID, lang, difficulty).Scan(
		&qz.ID, &qz.LectureID, &qz.Lang, &qz.Difficulty, &items, &qz.Model, &qz.GeneratedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &qz.Items); err != nil {
		return nil, fmt.Errorf("decode quiz items: %w", err)
	}
	return &qz, nil
}
