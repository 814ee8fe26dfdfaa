package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/markdave123-py/Lectern/internal/config"
	"github.com/markdave123-py/Lectern/internal/core"
	"github.com/markdave123-py/Lectern/internal/core/cache"
	"github.com/markdave123-py/Lectern/internal/core/generation"
	"github.com/markdave123-py/Lectern/internal/core/resilience"
	"github.com/markdave123-py/Lectern/internal/logger"
	"github.com/markdave123-py/Lectern/internal/models"
)

// ContentConfig tunes on-demand generation.
type ContentConfig struct {
	CacheTTL        time.Duration
	Retry           resilience.RetryPolicy
	DefaultLanguage string
	QuizQuestions   int
	SummaryMaxWords int
	MaxSourceTokens int
}

func NewContentConfig(p config.PipelineConfig) ContentConfig {
	return ContentConfig{
		CacheTTL:        p.CacheTTL,
		Retry:           resilience.RetryPolicy{Attempts: p.RetryAttempts, Delay: p.RetryDelay},
		DefaultLanguage: p.DefaultLanguage,
		QuizQuestions:   p.QuizQuestions,
		SummaryMaxWords: p.SummaryMaxWords,
		MaxSourceTokens: generation.DefaultMaxSourceTokens,
	}
}

// ContentService serves summaries, quizzes and translations on request. A
// stored artifact is reused unless force is set; every result is memoized in
// the content cache.
type ContentService struct {
	store     core.LectureStore
	generator core.ContentGenerator
	cache     *cache.ContentCache
	breakers  *resilience.Breakers
	cfg       ContentConfig
	log       *logger.Logger
}

func NewContentService(store core.LectureStore, gen core.ContentGenerator, c *cache.ContentCache, breakers *resilience.Breakers, cfg ContentConfig, log *logger.Logger) *ContentService {
	return &ContentService{
		store:     store,
		generator: gen,
		cache:     c,
		breakers:  breakers,
		cfg:       cfg,
		log:       log.With("service", "ContentService"),
	}
}

func (s *ContentService) Summary(ctx context.Context, lectureID, lang, style string, force bool) (*models.Summary, error) {
	lang = s.lang(lang)
	if style == "" {
		style = models.StyleConcise
	}
	if !validStyle(style) {
		return nil, fmt.Errorf("%w: style %q", ErrInvalidInput, style)
	}

	key := cache.SummaryKey(lectureID, lang, style)
	if force {
		s.invalidate(ctx, key)
	}

	return cache.GetOrCompute(ctx, s.cache, key, s.cfg.CacheTTL, func(ctx context.Context) (*models.Summary, error) {
		if !force {
			stored, err := s.store.GetLatestSummary(ctx, lectureID, lang, style)
			if err != nil {
				return nil, fmt.Errorf("load summary: %w", err)
			}
			if stored != nil {
				return stored, nil
			}
		}

		source, chunks, err := s.material(ctx, lectureID)
		if err != nil {
			return nil, err
		}
		res, err := resilience.Call(ctx, s.breakers, resilience.BreakerGeneration, s.cfg.Retry,
			func(ctx context.Context) (*core.SummaryResult, error) {
				return s.generator.GenerateSummary(ctx, source, core.SummaryOptions{
					Style:     style,
					Language:  lang,
					MaxLength: s.cfg.SummaryMaxWords,
				})
			})
		if err != nil {
			return nil, err
		}

		sum := &models.Summary{
			LectureID:    lectureID,
			Lang:         lang,
			Style:        style,
			ContentMD:    res.Summary,
			SummaryType:  models.SummaryTypeSession,
			SourceChunks: generation.ChunkIDs(chunks),
			Model:        res.Model,
			GeneratedAt:  time.Now().UTC(),
		}
		store := s.store.InsertSummary
		if force {
			store = s.store.ReplaceSummary
		}
		if err := store(ctx, sum); err != nil {
			return nil, fmt.Errorf("store summary: %w", err)
		}
		s.log.Info("summary generated", "lecture_id", lectureID, "lang", lang, "style", style, "model", res.Model)
		return sum, nil
	})
}

func (s *ContentService) Quiz(ctx context.Context, lectureID, lang, difficulty string, n int, force bool) (*models.Quiz, error) {
	lang = s.lang(lang)
	if difficulty == "" {
		difficulty = models.DifficultyMedium
	}
	if !validDifficulty(difficulty) {
		return nil, fmt.Errorf("%w: difficulty %q", ErrInvalidInput, difficulty)
	}
	if n <= 0 {
		n = s.cfg.QuizQuestions
	}

	key := cache.QuizKey(lectureID, lang, difficulty, n)
	if force {
		s.invalidate(ctx, key)
	}

	return cache.GetOrCompute(ctx, s.cache, key, s.cfg.CacheTTL, func(ctx context.Context) (*models.Quiz, error) {
		if !force {
			stored, err := s.store.GetLatestQuiz(ctx, lectureID, lang, difficulty)
			if err != nil {
				return nil, fmt.Errorf("load quiz: %w", err)
			}
			if stored != nil && len(stored.Items.Questions) == n {
				return stored, nil
			}
		}

		source, _, err := s.material(ctx, lectureID)
		if err != nil {
			return nil, err
		}
		res, err := resilience.Call(ctx, s.breakers, resilience.BreakerGeneration, s.cfg.Retry,
			func(ctx context.Context) (*core.QuizResult, error) {
				return s.generator.GenerateQuiz(ctx, source, core.QuizOptions{
					Difficulty:   difficulty,
					Language:     lang,
					NumQuestions: n,
				})
			})
		if err != nil {
			return nil, err
		}

		quiz := &models.Quiz{
			LectureID:   lectureID,
			Lang:        lang,
			Difficulty:  difficulty,
			Items:       res.Quiz,
			Model:       res.Model,
			GeneratedAt: time.Now().UTC(),
		}
		store := s.store.InsertQuiz
		if force {
			store = s.store.ReplaceQuiz
		}
		if err := store(ctx, quiz); err != nil {
			return nil, fmt.Errorf("store quiz: %w", err)
		}
		s.log.Info("quiz generated", "lecture_id", lectureID, "lang", lang, "difficulty", difficulty, "questions", len(res.Quiz.Questions))
		return quiz, nil
	})
}

// Translate renders the lecture's summary in lang/style into targetLang.
// Translations are cached per source summary, so forcing or reprocessing a
// summary retires the translations made from the old one.
func (s *ContentService) Translate(ctx context.Context, lectureID, lang, style, targetLang string) (*models.Translation, error) {
	targetLang = strings.TrimSpace(targetLang)
	if targetLang == "" {
		return nil, fmt.Errorf("%w: target language is required", ErrInvalidInput)
	}
	lang = s.lang(lang)
	if style == "" {
		style = models.StyleConcise
	}

	sum, err := s.Summary(ctx, lectureID, lang, style, false)
	if err != nil {
		return nil, err
	}

	key := cache.TranslationKey(lectureID, lang, style, sum.ID, targetLang)
	return cache.GetOrCompute(ctx, s.cache, key, s.cfg.CacheTTL, func(ctx context.Context) (*models.Translation, error) {
		tr := &models.Translation{LectureID: lectureID, Lang: lang, Style: style, TargetLang: targetLang}
		if strings.EqualFold(lang, targetLang) {
			tr.ContentMD = sum.ContentMD
			return tr, nil
		}

		text, err := resilience.Call(ctx, s.breakers, resilience.BreakerGeneration, s.cfg.Retry,
			func(ctx context.Context) (string, error) {
				return s.generator.Translate(ctx, sum.ContentMD, targetLang)
			})
		if err != nil {
			return nil, err
		}
		tr.ContentMD = text
		return tr, nil
	})
}

// material loads the transcript and slides of a lecture as generator input.
func (s *ContentService) material(ctx context.Context, lectureID string) (string, []models.TranscriptChunk, error) {
	lec, err := s.store.GetLectureByID(ctx, lectureID)
	if err != nil {
		return "", nil, fmt.Errorf("load lecture: %w", err)
	}
	if lec == nil {
		return "", nil, core.NewError(core.CodeNotFound, "load lecture", fmt.Errorf("lecture %s", lectureID))
	}
	chunks, err := s.store.GetChunksByLecture(ctx, lectureID)
	if err != nil {
		return "", nil, fmt.Errorf("load transcript chunks: %w", err)
	}

	source := generation.SourceText(chunks, generation.DecodeDeck(lec.SlideContent), s.cfg.MaxSourceTokens)
	if strings.TrimSpace(source) == "" {
		return "", nil, core.NewError(core.CodeGenerationFailed, "load material",
			errors.New("lecture has no transcript or slide text yet"))
	}
	return source, chunks, nil
}

func (s *ContentService) invalidate(ctx context.Context, key string) {
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.log.Warn("cache invalidation failed", "key", key, "error", err)
	}
}

func (s *ContentService) lang(lang string) string {
	if lang = strings.TrimSpace(lang); lang != "" {
		return lang
	}
	return s.cfg.DefaultLanguage
}

func validStyle(style string) bool {
	switch style {
	case models.StyleConcise, models.StyleDetailed, models.StyleExamPrep:
		return true
	}
	return false
}

func validDifficulty(d string) bool {
	switch d {
	case models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard:
		return true
	}
	return false
}
