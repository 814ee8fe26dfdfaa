package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/markdave123-py/Lectern/internal/config"
	"github.com/markdave123-py/Lectern/internal/core"
	"github.com/markdave123-py/Lectern/internal/core/cache"
	"github.com/markdave123-py/Lectern/internal/core/coretest"
	"github.com/markdave123-py/Lectern/internal/core/resilience"
	"github.com/markdave123-py/Lectern/internal/logger"
	"github.com/markdave123-py/Lectern/internal/models"
)

func newContentService(t *testing.T) (*ContentService, *coretest.Store, *fakeGenerator) {
	t.Helper()
	ctx := context.Background()

	store := coretest.NewStore()
	if err := store.CreateLecture(ctx, &models.Lecture{ID: "lec", Title: "Optics"}); err != nil {
		t.Fatal(err)
	}
	for _, ch := range []models.TranscriptChunk{
		{LectureID: "lec", StartTS: 0, EndTS: 300, Text: "Light bends at interfaces."},
		{LectureID: "lec", StartTS: 300, EndTS: 600, Text: "Snell's law relates the angles."},
	} {
		if err := store.InsertTranscriptChunk(ctx, &ch); err != nil {
			t.Fatal(err)
		}
	}

	cfg := NewContentConfig(config.DefaultPipeline())
	cfg.Retry.Delay = time.Millisecond
	gen := &fakeGenerator{}
	log := logger.Nop()
	breakers := resilience.NewBreakers(resilience.BreakerSettings{Threshold: 5, Timeout: time.Minute}, log)
	svc := NewContentService(store, gen, cache.NewContentCache(store, log), breakers, cfg, log)
	return svc, store, gen
}

func TestSummaryIsCachedAndPersisted(t *testing.T) {
	svc, store, gen := newContentService(t)
	ctx := context.Background()

	first, err := svc.Summary(ctx, "lec", "", "", false)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if first.Lang != "en" || first.Style != models.StyleConcise || len(first.SourceChunks) == 0 {
		t.Errorf("summary = %+v", first)
	}
	second, err := svc.Summary(ctx, "lec", "en", models.StyleConcise, false)
	if err != nil {
		t.Fatal(err)
	}
	if second.ContentMD != first.ContentMD || gen.summaries != 1 {
		t.Errorf("second call regenerated: %q after %d calls", second.ContentMD, gen.summaries)
	}
	if n := len(store.Summaries()); n != 1 {
		t.Errorf("stored summaries = %d, want 1", n)
	}
}

func TestSummaryForceRegenerates(t *testing.T) {
	svc, store, gen := newContentService(t)
	ctx := context.Background()

	if _, err := svc.Summary(ctx, "lec", "en", models.StyleDetailed, false); err != nil {
		t.Fatal(err)
	}
	forced, err := svc.Summary(ctx, "lec", "en", models.StyleDetailed, true)
	if err != nil {
		t.Fatal(err)
	}
	if gen.summaries != 2 || forced.ContentMD != "summary #2 (detailed)" {
		t.Errorf("forced summary = %q after %d calls", forced.ContentMD, gen.summaries)
	}
	if n := len(store.Summaries()); n != 1 {
		t.Errorf("stored summaries = %d, want 1 after replace", n)
	}

	cached, _ := svc.Summary(ctx, "lec", "en", models.StyleDetailed, false)
	if cached.ContentMD != forced.ContentMD {
		t.Errorf("cache still serves the old summary: %q", cached.ContentMD)
	}
}

func TestSummaryErrorsAreNotCached(t *testing.T) {
	svc, _, gen := newContentService(t)
	ctx := context.Background()
	gen.err = errors.New("overloaded")

	if _, err := svc.Summary(ctx, "lec", "en", "", false); err == nil {
		t.Fatal("expected error")
	}
	if gen.summaries != 3 {
		t.Errorf("generator calls = %d, want 3 retries", gen.summaries)
	}

	gen.err = nil
	if _, err := svc.Summary(ctx, "lec", "en", "", false); err != nil {
		t.Fatalf("after recovery: %v", err)
	}
}

func TestSummaryValidation(t *testing.T) {
	svc, _, _ := newContentService(t)
	ctx := context.Background()

	if _, err := svc.Summary(ctx, "lec", "en", "poem", false); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad style: err = %v", err)
	}
	if _, err := svc.Summary(ctx, "missing", "en", "", false); !core.IsCode(err, core.CodeNotFound) {
		t.Errorf("unknown lecture: err = %v", err)
	}
}

func TestQuiz(t *testing.T) {
	svc, store, gen := newContentService(t)
	ctx := context.Background()

	q, err := svc.Quiz(ctx, "lec", "en", models.DifficultyHard, 4, false)
	if err != nil {
		t.Fatalf("Quiz: %v", err)
	}
	if len(q.Items.Questions) != 4 || q.Difficulty != models.DifficultyHard {
		t.Errorf("quiz = %+v", q)
	}
	if _, err := svc.Quiz(ctx, "lec", "en", models.DifficultyHard, 4, false); err != nil {
		t.Fatal(err)
	}
	if gen.quizzes != 1 {
		t.Errorf("generator calls = %d, want 1", gen.quizzes)
	}

	if _, err := svc.Quiz(ctx, "lec", "en", models.DifficultyHard, 0, false); err != nil {
		t.Fatal(err)
	}
	if gen.quizzes != 2 || len(store.Quizzes()) != 2 {
		t.Errorf("default question count should generate a new quiz: calls %d, stored %d", gen.quizzes, len(store.Quizzes()))
	}

	if _, err := svc.Quiz(ctx, "lec", "en", "impossible", 4, false); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad difficulty: err = %v", err)
	}
}

func TestTranslateFollowsRegeneratedSummary(t *testing.T) {
	svc, store, gen := newContentService(t)
	ctx := context.Background()

	before, err := svc.Translate(ctx, "lec", "en", "", "fr")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Summary(ctx, "lec", "en", "", true); err != nil {
		t.Fatal(err)
	}
	after, err := svc.Translate(ctx, "lec", "en", "", "fr")
	if err != nil {
		t.Fatal(err)
	}
	if after.ContentMD != "[fr] summary #2 (concise)" {
		t.Errorf("translation after forced summary = %q (was %q)", after.ContentMD, before.ContentMD)
	}
	if gen.translated != 2 {
		t.Errorf("translate calls = %d, want 2", gen.translated)
	}

	// Reprocessing replaces the stored summary and drops its cache entry.
	redone := &models.Summary{LectureID: "lec", Lang: "en", Style: models.StyleConcise, ContentMD: "reprocessed"}
	if err := store.ReplaceSummary(ctx, redone); err != nil {
		t.Fatal(err)
	}
	if err := svc.cache.Invalidate(ctx, cache.SummaryKey("lec", "en", models.StyleConcise)); err != nil {
		t.Fatal(err)
	}
	latest, err := svc.Translate(ctx, "lec", "en", "", "fr")
	if err != nil {
		t.Fatal(err)
	}
	if latest.ContentMD != "[fr] reprocessed" {
		t.Errorf("translation after reprocess = %q", latest.ContentMD)
	}
}

func TestTranslate(t *testing.T) {
	svc, _, gen := newContentService(t)
	ctx := context.Background()

	tr, err := svc.Translate(ctx, "lec", "en", "", "fr")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if tr.ContentMD != "[fr] summary #1 (concise)" || tr.TargetLang != "fr" {
		t.Errorf("translation = %+v", tr)
	}
	if _, err := svc.Translate(ctx, "lec", "en", "", "fr"); err != nil {
		t.Fatal(err)
	}
	if gen.translated != 1 || gen.summaries != 1 {
		t.Errorf("calls: translate %d, summary %d", gen.translated, gen.summaries)
	}

	same, err := svc.Translate(ctx, "lec", "en", "", "EN")
	if err != nil {
		t.Fatal(err)
	}
	if same.ContentMD != "summary #1 (concise)" || gen.translated != 1 {
		t.Errorf("same-language translation = %q", same.ContentMD)
	}

	if _, err := svc.Translate(ctx, "lec", "en", "", " "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty target: err = %v", err)
	}
}
