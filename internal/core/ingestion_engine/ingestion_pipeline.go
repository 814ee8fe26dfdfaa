package ingestion_engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/Lectern/internal/core"
	"github.com/markdave123-py/Lectern/internal/core/cache"
	"github.com/markdave123-py/Lectern/internal/core/chunker"
	"github.com/markdave123-py/Lectern/internal/core/generation"
	"github.com/markdave123-py/Lectern/internal/core/progress"
	"github.com/markdave123-py/Lectern/internal/core/resilience"
	"github.com/markdave123-py/Lectern/internal/logger"
	"github.com/markdave123-py/Lectern/internal/models"
)

// Progress checkpoints reported while a lecture is processed.
const (
	progressCreated     = 10
	progressAudio       = 30
	progressTranscribed = 60
	progressSlides      = 80
	progressDone        = 100
)

// Deps are the collaborators of a LectureIngestor.
//
// Store:       persistence for lectures, chunks and generated content.
// Audio:       pulls the audio track out of the uploaded video.
// Slides:      extracts slide text and notes; optional when no decks are uploaded.
// Transcriber: ordered transcription backends with fallback.
// Generator:   summary and quiz generation.
// Embedder:    optional; enables the chunk indexing step used by lecture Q&A.
// Objects:     optional; lets reprocessing restore a source video missing on disk.
// Cache:       optional; entries are invalidated when content is regenerated.
// Breakers:    shared breaker registry; a private one is created when nil.
// Tracker:     progress store; an in-memory one is created when nil.
type Deps struct {
	Store       core.LectureStore
	Audio       core.AudioExtractor
	Slides      core.SlideExtractor
	Transcriber Transcriber
	Generator   core.ContentGenerator
	Embedder    core.EmbeddingProvider
	Objects     core.ObjectClient
	Cache       *cache.ContentCache
	Breakers    *resilience.Breakers
	Tracker     progress.Tracker
}

// LectureIngestor runs the lecture pipeline, either inline through
// ProcessLecture or in the background through its worker queue.
type LectureIngestor struct {
	store       core.LectureStore
	audio       core.AudioExtractor
	slides      core.SlideExtractor
	transcriber Transcriber
	generator   core.ContentGenerator
	embedder    core.EmbeddingProvider
	objects     core.ObjectClient
	cache       *cache.ContentCache
	breakers    *resilience.Breakers
	tracker     progress.Tracker
	cfg         *IngestConfig
	log         *logger.Logger

	jobs chan LectureInput
	wg   sync.WaitGroup
	now  func() time.Time
}

// NewLectureIngestor constructs the ingestor with a bounded job queue.
func NewLectureIngestor(deps Deps, cfg *IngestConfig, log *logger.Logger) *LectureIngestor {
	log = log.With("service", "LectureIngestor")
	breakers := deps.Breakers
	if breakers == nil {
		breakers = resilience.NewBreakers(resilience.BreakerSettings{Threshold: 5, Window: time.Minute, Timeout: 30 * time.Second}, log)
	}
	tracker := deps.Tracker
	if tracker == nil {
		tracker = progress.NewMemoryTracker(6 * time.Hour)
	}
	queue := cfg.QueueSize
	if queue <= 0 {
		queue = 64
	}
	return &LectureIngestor{
		store:       deps.Store,
		audio:       deps.Audio,
		slides:      deps.Slides,
		transcriber: deps.Transcriber,
		generator:   deps.Generator,
		embedder:    deps.Embedder,
		objects:     deps.Objects,
		cache:       deps.Cache,
		breakers:    breakers,
		tracker:     tracker,
		cfg:         cfg,
		log:         log,
		jobs:        make(chan LectureInput, queue),
		now:         time.Now,
	}
}

// Start runs numWorkers goroutines reading from the jobs channel until ctx
// is cancelled. Each job gets its own RunTimeout.
func (i *LectureIngestor) Start(ctx context.Context, numWorkers int) {
	for w := 1; w <= numWorkers; w++ {
		i.wg.Add(1)
		go func(w int) {
			defer i.wg.Done()
			for {
				select {
				case <-ctx.Done():
					i.log.Info("worker shutting down", "worker", w)
					return
				case in := <-i.jobs:
					i.log.Info("processing lecture", "lecture_id", in.ID, "worker", w)
					i.runJob(ctx, in)
				}
			}
		}(w)
	}
}

func (i *LectureIngestor) runJob(ctx context.Context, in LectureInput) {
	runCtx, cancel := context.WithTimeout(ctx, i.cfg.RunTimeout)
	defer cancel()

	if _, err := i.ProcessLecture(runCtx, in); err != nil {
		i.log.Error("lecture processing failed", "lecture_id", in.ID, "error", err)
	}
}

// Wait blocks until every worker started by Start has returned.
func (i *LectureIngestor) Wait() {
	i.wg.Wait()
}

// Enqueue stores the lecture as pending, schedules it and returns its id.
// The row exists before a worker picks the job up, so status and reprocess
// requests can find it. If the queue is full, this call blocks until space
// frees up or ctx is done; the pending row is then removed again.
func (i *LectureIngestor) Enqueue(ctx context.Context, in LectureInput) (string, error) {
	if in.VideoPath == "" {
		return "", errors.New("video path is required")
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}

	if err := i.store.CreateLecture(ctx, newLecture(in, models.StatusPending)); err != nil {
		return "", fmt.Errorf("create lecture: %w", err)
	}
	i.track(ctx, in.ID, models.StatusPending, 0, "")
	select {
	case i.jobs <- in:
		return in.ID, nil
	case <-ctx.Done():
		bg := context.WithoutCancel(ctx)
		_ = i.tracker.Delete(bg, in.ID)
		if err := i.store.DeleteLecture(bg, in.ID); err != nil {
			i.log.Warn("removing unqueued lecture failed", "lecture_id", in.ID, "error", err)
		}
		return "", ctx.Err()
	}
}

func newLecture(in LectureInput, status string) *models.Lecture {
	return &models.Lecture{
		ID:               in.ID,
		Title:            in.Title,
		Description:      in.Description,
		UploaderID:       in.UploaderID,
		VideoPath:        in.VideoPath,
		SlidesPath:       in.SlidesPath,
		ProcessingStatus: status,
	}
}

// ProcessLecture runs the whole pipeline for one upload. Audio extraction,
// transcription and chunk persistence are fatal: the lecture is marked failed
// and the error is returned. Slide extraction, indexing, summary and quiz
// failures are recorded as warnings and the run still completes.
func (i *LectureIngestor) ProcessLecture(ctx context.Context, in LectureInput) (*ProcessResult, error) {
	if in.VideoPath == "" {
		return nil, errors.New("video path is required")
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	lang := in.Language
	if lang == "" {
		lang = i.cfg.DefaultLanguage
	}

	run := &Run{LectureID: in.ID, Status: models.StatusProcessing, StartedAt: i.now()}
	log := i.log.With("lecture_id", run.LectureID)

	if err := i.openLecture(ctx, in); err != nil {
		return i.fail(ctx, run, err)
	}
	i.advance(ctx, run, progressCreated)

	audio, err := resilience.WithRetry(ctx, i.cfg.AudioRetry, func(ctx context.Context) (*core.AudioResult, error) {
		return i.audio.ExtractAudio(ctx, in.VideoPath, i.cfg.Audio)
	})
	if err != nil {
		return i.fail(ctx, run, err)
	}
	duration := int(math.Round(audio.Metadata.DurationSeconds))
	if err := i.store.UpdateLectureAudio(ctx, run.LectureID, audio.AudioPath, duration); err != nil {
		i.warn(run, "store audio path", err)
	}
	i.advance(ctx, run, progressAudio)

	tr, err := i.transcriber.TranscribeWithFallback(ctx, audio.AudioPath, core.TranscribeOptions{
		Timestamps:    true,
		SpeakerLabels: true,
		Language:      lang,
	})
	if err != nil {
		return i.fail(ctx, run, err)
	}
	run.Backend = tr.Metadata.Backend

	chunks := chunker.FromTranscript(tr, i.cfg.ChunkSeconds)
	if len(chunks) == 0 {
		return i.fail(ctx, run, core.NewError(core.CodeTranscriptionFailed, "chunk transcript",
			fmt.Errorf("%s transcript produced no chunks", run.Backend)))
	}
	for k := range chunks {
		chunks[k].LectureID = run.LectureID
		if err := i.store.InsertTranscriptChunk(ctx, &chunks[k]); err != nil {
			return i.fail(ctx, run, fmt.Errorf("insert transcript chunk %d: %w", k, err))
		}
	}
	run.Chunks = chunks
	log.Info("transcript stored", "backend", run.Backend, "chunks", len(chunks))

	i.index(ctx, run)
	i.advance(ctx, run, progressTranscribed)

	if in.SlidesPath != "" {
		i.extractSlides(ctx, run, in.SlidesPath)
	}
	i.advance(ctx, run, progressSlides)

	source := generation.SourceText(run.Chunks, run.Slides, i.cfg.MaxSourceTokens)
	if strings.TrimSpace(source) == "" {
		i.warn(run, "content generation", errors.New("lecture has no transcript or slide text"))
	} else {
		if s, err := i.summarize(ctx, run.LectureID, source, lang, i.cfg.SummaryStyle, run.Chunks); err != nil {
			i.warn(run, "summary generation", err)
		} else if err := i.store.InsertSummary(ctx, s); err != nil {
			i.warn(run, "store summary", err)
		} else {
			run.Summary = s
		}

		if q, err := i.quiz(ctx, run.LectureID, source, lang, i.cfg.QuizDifficulty, i.cfg.QuizQuestions); err != nil {
			i.warn(run, "quiz generation", err)
		} else if err := i.store.InsertQuiz(ctx, q); err != nil {
			i.warn(run, "store quiz", err)
		} else {
			run.Quiz = q
		}
	}

	if err := i.store.UpdateLectureStatus(ctx, run.LectureID, models.StatusCompleted); err != nil {
		return i.fail(ctx, run, fmt.Errorf("mark lecture completed: %w", err))
	}
	if err := i.tracker.Delete(ctx, run.LectureID); err != nil {
		log.Warn("clearing progress failed", "error", err)
	}
	run.Status = models.StatusCompleted
	run.Progress = progressDone
	run.FinishedAt = i.now()

	log.Info("lecture processed",
		"chunks", len(run.Chunks),
		"warnings", len(run.Warnings),
		"took", run.FinishedAt.Sub(run.StartedAt).String(),
	)
	return run.result(), nil
}

func (i *LectureIngestor) extractSlides(ctx context.Context, run *Run, path string) {
	if i.slides == nil {
		i.warn(run, "slide extraction", errors.New("no slide extractor configured"))
		return
	}
	deck, err := resilience.WithRetry(ctx, i.cfg.SlideRetry, func(ctx context.Context) (*models.SlideDeck, error) {
		return i.slides.ExtractText(ctx, path)
	})
	if err != nil {
		i.warn(run, "slide extraction", err)
		return
	}

	raw, err := json.Marshal(deck)
	if err != nil {
		i.warn(run, "encode slides", err)
		return
	}
	if err := i.store.UpdateLectureSlides(ctx, run.LectureID, raw); err != nil {
		i.warn(run, "store slides", err)
		return
	}
	run.Slides = deck
}

// summarize generates a summary through the generation breaker. The result
// is not stored.
func (i *LectureIngestor) summarize(ctx context.Context, lectureID, source, lang, style string, chunks []models.TranscriptChunk) (*models.Summary, error) {
	res, err := resilience.Call(ctx, i.breakers, resilience.BreakerGeneration, i.cfg.GenerationRetry,
		func(ctx context.Context) (*core.SummaryResult, error) {
			return i.generator.GenerateSummary(ctx, source, core.SummaryOptions{
				Style:     style,
				Language:  lang,
				MaxLength: i.cfg.SummaryMaxWords,
			})
		})
	if err != nil {
		return nil, err
	}
	return &models.Summary{
		LectureID:    lectureID,
		Lang:         lang,
		Style:        style,
		ContentMD:    res.Summary,
		SummaryType:  models.SummaryTypeSession,
		SourceChunks: generation.ChunkIDs(chunks),
		Model:        res.Model,
		GeneratedAt:  i.now().UTC(),
	}, nil
}

// quiz generates a validated quiz through the generation breaker. The result
// is not stored.
func (i *LectureIngestor) quiz(ctx context.Context, lectureID, source, lang, difficulty string, n int) (*models.Quiz, error) {
	res, err := resilience.Call(ctx, i.breakers, resilience.BreakerGeneration, i.cfg.GenerationRetry,
		func(ctx context.Context) (*core.QuizResult, error) {
			return i.generator.GenerateQuiz(ctx, source, core.QuizOptions{
				Difficulty:   difficulty,
				Language:     lang,
				NumQuestions: n,
			})
		})
	if err != nil {
		return nil, err
	}
	return &models.Quiz{
		LectureID:   lectureID,
		Lang:        lang,
		Difficulty:  difficulty,
		Items:       res.Quiz,
		Model:       res.Model,
		GeneratedAt: i.now().UTC(),
	}, nil
}

// fail records a fatal error: progress and lecture status become failed.
// Bookkeeping runs even when ctx is already cancelled.
func (i *LectureIngestor) fail(ctx context.Context, run *Run, err error) (*ProcessResult, error) {
	ctx = context.WithoutCancel(ctx)
	run.Status = models.StatusFailed
	run.Err = err
	run.FinishedAt = i.now()

	i.log.Error("lecture pipeline failed",
		"lecture_id", run.LectureID,
		"progress", run.Progress,
		"code", string(core.CodeOf(err)),
		"error", err,
	)
	i.track(ctx, run.LectureID, models.StatusFailed, run.Progress, err.Error())
	if serr := i.store.UpdateLectureStatus(ctx, run.LectureID, models.StatusFailed); serr != nil {
		i.log.Warn("marking lecture failed", "lecture_id", run.LectureID, "error", serr)
	}
	return run.result(), err
}

func (i *LectureIngestor) advance(ctx context.Context, run *Run, pct int) {
	run.Progress = pct
	i.track(ctx, run.LectureID, models.StatusProcessing, pct, "")
}

// track writes progress; failures are logged and ignored.
func (i *LectureIngestor) track(ctx context.Context, lectureID, status string, pct int, msg string) {
	err := i.tracker.Set(ctx, models.ProcessingState{
		LectureID: lectureID,
		Status:    status,
		Progress:  pct,
		Error:     msg,
		UpdatedAt: i.now().UTC(),
	})
	if err != nil {
		i.log.Warn("progress update failed", "lecture_id", lectureID, "error", err)
	}
}

func (i *LectureIngestor) warn(run *Run, step string, err error) {
	run.Warnings = append(run.Warnings, step+": "+err.Error())
	i.log.Warn(step+" failed, continuing", "lecture_id", run.LectureID, "error", err)
}

// openLecture moves a queued lecture to processing, or creates the row when
// ProcessLecture is called without Enqueue.
func (i *LectureIngestor) openLecture(ctx context.Context, in LectureInput) error {
	existing, err := i.store.GetLectureByID(ctx, in.ID)
	if err != nil {
		return fmt.Errorf("load lecture: %w", err)
	}
	if existing != nil {
		if err := i.store.UpdateLectureStatus(ctx, in.ID, models.StatusProcessing); err != nil {
			return fmt.Errorf("mark lecture processing: %w", err)
		}
		return nil
	}
	if err := i.store.CreateLecture(ctx, newLecture(in, models.StatusProcessing)); err != nil {
		return fmt.Errorf("create lecture: %w", err)
	}
	return nil
}
