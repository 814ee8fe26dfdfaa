package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/Lectern/internal/models"
)

const insertChunkSQL = `
	INSERT INTO transcript_chunks
		(id, lecture_id, start_ts, end_ts, speaker, text, confidence, embedding)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertChunk(ctx context.Context, ex execer, ch *models.TranscriptChunk) error {
	if ch.StartTS >= ch.EndTS {
		return errors.New("transcript chunk start_ts must be before end_ts")
	}
	ch.ID = newID(ch.ID)

	var conf sql.NullFloat64
	if ch.Confidence != nil {
		conf = sql.NullFloat64{Float64: *ch.Confidence, Valid: true}
	}
	var emb any
	if len(ch.Embedding) > 0 {
		emb = pgvector.NewVector(ch.Embedding)
	}

	_, err := ex.ExecContext(ctx, insertChunkSQL,
		ch.ID, ch.LectureID, ch.StartTS, ch.EndTS, nullString(ch.Speaker), ch.Text, conf, emb)
	return err
}

// InsertTranscriptChunk writes a single chunk outside any transaction.
func (c *DatabaseClient) InsertTranscriptChunk(ctx context.Context, chunk *models.TranscriptChunk) error {
	if chunk == nil {
		return errors.New("nil transcript chunk")
	}
	return insertChunk(ctx, c.db, chunk)
}

// ReplaceTranscriptChunks deletes the lecture's chunks and inserts chunks in
// one transaction.
func (c *DatabaseClient) ReplaceTranscriptChunks(ctx context.Context, lectureID string, chunks []models.TranscriptChunk) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transcript_chunks WHERE lecture_id = $1`, lectureID); err != nil {
			return err
		}
		for i := range chunks {
			chunks[i].LectureID = lectureID
			if err := insertChunk(ctx, tx, &chunks[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *DatabaseClient) GetChunksByLecture(ctx context.Context, lectureID string) ([]models.TranscriptChunk, error) {
	const q = `
		SELECT id, lecture_id, start_ts, end_ts, speaker, text, confidence
		FROM transcript_chunks
		WHERE lecture_id = $1
		ORDER BY start_ts ASC
	`
	rows, err := c.db.QueryContext(ctx, q, lectureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

// UpdateChunkEmbeddings stores the Embedding of every chunk by id.
func (c *DatabaseClient) UpdateChunkEmbeddings(ctx context.Context, chunks []models.TranscriptChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return c.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE transcript_chunks SET embedding = $2 WHERE id = $1`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i := range chunks {
			if len(chunks[i].Embedding) == 0 {
				continue
			}
			if _, err := stmt.ExecContext(ctx, chunks[i].ID, pgvector.NewVector(chunks[i].Embedding)); err != nil {
				return err
			}
		}
		return nil
	})
}

// SearchTranscriptChunks finds the top-k chunks of a lecture closest to the
// query embedding. Chunks never indexed are skipped.
func (c *DatabaseClient) SearchTranscriptChunks(ctx context.Context, lectureID string, queryVec []float32, limit int) ([]models.TranscriptChunk, error) {
	const q = `
		SELECT id, lecture_id, start_ts, end_ts, speaker, text, confidence
		FROM transcript_chunks
		WHERE lecture_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <-> $2
		LIMIT $3
	`
	rows, err := c.db.QueryContext(ctx, q, lectureID, pgvector.NewVector(queryVec), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

func scanChunks(rows *sql.Rows) ([]models.TranscriptChunk, error) {
	var out []models.TranscriptChunk
	for rows.Next() {
		var (
			ch      models.TranscriptChunk
			speaker sql.NullString
			conf    sql.NullFloat64
		)
		if err := rows.Scan(&ch.ID, &ch.LectureID, &ch.StartTS, &ch.EndTS, &speaker, &ch.Text, &conf); err != nil {
			return nil, err
		}
		ch.Speaker = speaker.String
		if conf.Valid {
			v := conf.Float64
			ch.Confidence = &v
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}
