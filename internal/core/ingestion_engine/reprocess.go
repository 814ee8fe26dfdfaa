package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/markdave123-py/Lectern/internal/core"
	"github.com/markdave123-py/Lectern/internal/core/cache"
	"github.com/markdave123-py/Lectern/internal/core/chunker"
	"github.com/markdave123-py/Lectern/internal/core/generation"
	objectclient "github.com/markdave123-py/Lectern/internal/core/object-client"
	"github.com/markdave123-py/Lectern/internal/core/resilience"
	"github.com/markdave123-py/Lectern/internal/models"
)

// ErrNothingToReprocess is returned when no sub-step was requested.
var ErrNothingToReprocess = errors.New("no reprocessing step requested")

// Reprocess reruns the requested sub-steps of an existing lecture in the
// order retranscribe, summary, quiz. The lecture is processing while this
// runs. The first failure marks it failed and is returned; writes made by
// earlier sub-steps are kept.
func (i *LectureIngestor) Reprocess(ctx context.Context, lectureID string, opts ReprocessOptions) (*ReprocessResult, error) {
	if !opts.Retranscribe && !opts.Summary && !opts.Quiz {
		return nil, ErrNothingToReprocess
	}

	lec, err := i.store.GetLectureByID(ctx, lectureID)
	if err != nil {
		return nil, fmt.Errorf("load lecture: %w", err)
	}
	if lec == nil {
		return nil, core.NewError(core.CodeNotFound, "reprocess", fmt.Errorf("lecture %s", lectureID))
	}
	opts = i.reprocessDefaults(opts)

	if err := i.store.UpdateLectureStatus(ctx, lectureID, models.StatusProcessing); err != nil {
		return nil, fmt.Errorf("mark lecture processing: %w", err)
	}
	i.track(ctx, lectureID, models.StatusProcessing, 0, "")

	res := &ReprocessResult{LectureID: lectureID, Status: models.StatusProcessing}
	if err := i.reprocess(ctx, lec, opts, res); err != nil {
		bg := context.WithoutCancel(ctx)
		res.Status = models.StatusFailed
		i.log.Error("reprocessing failed", "lecture_id", lectureID, "error", err)
		i.track(bg, lectureID, models.StatusFailed, 0, err.Error())
		if serr := i.store.UpdateLectureStatus(bg, lectureID, models.StatusFailed); serr != nil {
			i.log.Warn("marking lecture failed", "lecture_id", lectureID, "error", serr)
		}
		return res, err
	}

	if err := i.store.UpdateLectureStatus(ctx, lectureID, models.StatusCompleted); err != nil {
		return res, fmt.Errorf("mark lecture completed: %w", err)
	}
	if err := i.tracker.Delete(ctx, lectureID); err != nil {
		i.log.Warn("clearing progress failed", "lecture_id", lectureID, "error", err)
	}
	res.Status = models.StatusCompleted
	i.log.Info("lecture reprocessed",
		"lecture_id", lectureID,
		"retranscribed", opts.Retranscribe,
		"summary", res.Summary != nil,
		"quiz", res.Quiz != nil,
	)
	return res, nil
}

func (i *LectureIngestor) reprocessDefaults(opts ReprocessOptions) ReprocessOptions {
	if opts.Language == "" {
		opts.Language = i.cfg.DefaultLanguage
	}
	if opts.Style == "" {
		opts.Style = i.cfg.SummaryStyle
	}
	if opts.Difficulty == "" {
		opts.Difficulty = i.cfg.QuizDifficulty
	}
	if opts.NumQuestions <= 0 {
		opts.NumQuestions = i.cfg.QuizQuestions
	}
	return opts
}

func (i *LectureIngestor) reprocess(ctx context.Context, lec *models.Lecture, opts ReprocessOptions, res *ReprocessResult) error {
	if opts.Retranscribe {
		n, err := i.retranscribe(ctx, lec, opts.Language)
		if err != nil {
			return err
		}
		res.Chunks = n
		i.track(ctx, lec.ID, models.StatusProcessing, 40, "")
	}
	if !opts.Summary && !opts.Quiz {
		return nil
	}

	chunks, err := i.store.GetChunksByLecture(ctx, lec.ID)
	if err != nil {
		return fmt.Errorf("load transcript chunks: %w", err)
	}
	source := generation.SourceText(chunks, generation.DecodeDeck(lec.SlideContent), i.cfg.MaxSourceTokens)
	if strings.TrimSpace(source) == "" {
		return core.NewError(core.CodeGenerationFailed, "reprocess", errors.New("lecture has no transcript or slide text"))
	}

	if opts.Summary {
		s, err := i.summarize(ctx, lec.ID, source, opts.Language, opts.Style, chunks)
		if err != nil {
			return fmt.Errorf("regenerate summary: %w", err)
		}
		if err := i.store.ReplaceSummary(ctx, s); err != nil {
			return fmt.Errorf("store summary: %w", err)
		}
		i.invalidate(ctx, cache.SummaryKey(lec.ID, opts.Language, opts.Style))
		res.Summary = s
		i.track(ctx, lec.ID, models.StatusProcessing, 70, "")
	}

	if opts.Quiz {
		q, err := i.quiz(ctx, lec.ID, source, opts.Language, opts.Difficulty, opts.NumQuestions)
		if err != nil {
			return fmt.Errorf("regenerate quiz: %w", err)
		}
		if err := i.store.ReplaceQuiz(ctx, q); err != nil {
			return fmt.Errorf("store quiz: %w", err)
		}
		i.invalidate(ctx, cache.QuizKey(lec.ID, opts.Language, opts.Difficulty, opts.NumQuestions))
		res.Quiz = q
	}
	return nil
}

// retranscribe replaces the lecture's chunks with a fresh transcription and
// returns how many were written.
func (i *LectureIngestor) retranscribe(ctx context.Context, lec *models.Lecture, lang string) (int, error) {
	audioPath, err := i.ensureAudio(ctx, lec)
	if err != nil {
		return 0, err
	}

	tr, err := i.transcriber.TranscribeWithFallback(ctx, audioPath, core.TranscribeOptions{
		Timestamps:    true,
		SpeakerLabels: true,
		Language:      lang,
	})
	if err != nil {
		return 0, err
	}

	chunks := chunker.FromTranscript(tr, i.cfg.ChunkSeconds)
	if len(chunks) == 0 {
		return 0, core.NewError(core.CodeTranscriptionFailed, "chunk transcript", errors.New("transcript produced no chunks"))
	}
	if err := i.store.ReplaceTranscriptChunks(ctx, lec.ID, chunks); err != nil {
		return 0, fmt.Errorf("replace transcript chunks: %w", err)
	}
	if i.embedder != nil {
		if err := i.embedChunks(ctx, chunks); err != nil {
			i.log.Warn("embedding index failed, continuing", "lecture_id", lec.ID, "error", err)
		}
	}
	return len(chunks), nil
}

// ensureAudio returns the stored audio path, extracting it again when the
// file is gone.
func (i *LectureIngestor) ensureAudio(ctx context.Context, lec *models.Lecture) (string, error) {
	if lec.AudioPath != "" {
		if _, err := os.Stat(lec.AudioPath); err == nil {
			return lec.AudioPath, nil
		}
	}

	video, err := i.ensureVideo(ctx, lec)
	if err != nil {
		return "", err
	}
	audio, err := resilience.WithRetry(ctx, i.cfg.AudioRetry, func(ctx context.Context) (*core.AudioResult, error) {
		return i.audio.ExtractAudio(ctx, video, i.cfg.Audio)
	})
	if err != nil {
		return "", err
	}
	duration := int(math.Round(audio.Metadata.DurationSeconds))
	if err := i.store.UpdateLectureAudio(ctx, lec.ID, audio.AudioPath, duration); err != nil {
		i.log.Warn("store audio path failed", "lecture_id", lec.ID, "error", err)
	}
	return audio.AudioPath, nil
}

// ensureVideo returns the local video path, restoring it from object storage
// when it is missing on disk.
func (i *LectureIngestor) ensureVideo(ctx context.Context, lec *models.Lecture) (string, error) {
	if _, err := os.Stat(lec.VideoPath); err == nil {
		return lec.VideoPath, nil
	}
	if i.objects == nil {
		return "", core.NewError(core.CodeAudioExtractionFailed, "reprocess",
			fmt.Errorf("video %s is missing and no object storage is configured", lec.VideoPath))
	}

	key := objectclient.LectureKey(lec.ID, lec.VideoPath)
	if err := i.objects.DownloadToFile(ctx, i.objects.Bucket(), key, lec.VideoPath); err != nil {
		return "", core.NewError(core.CodeAudioExtractionFailed, "restore video", err)
	}
	i.log.Info("video restored from object storage", "lecture_id", lec.ID, "key", key)
	return lec.VideoPath, nil
}

func (i *LectureIngestor) invalidate(ctx context.Context, key string) {
	if i.cache == nil {
		return
	}
	if err := i.cache.Invalidate(ctx, key); err != nil {
		i.log.Warn("cache invalidation failed", "key", key, "error", err)
	}
}
