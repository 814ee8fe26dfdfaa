package ingestion_engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/markdave123-py/Lectern/internal/core"
	"github.com/markdave123-py/Lectern/internal/core/cache"
	"github.com/markdave123-py/Lectern/internal/logger"
	"github.com/markdave123-py/Lectern/internal/models"
)

func processed(t *testing.T, h *harness, id string) {
	t.Helper()
	if _, err := h.ing.ProcessLecture(context.Background(), LectureInput{ID: id, VideoPath: "/uploads/" + id + ".mp4"}); err != nil {
		t.Fatalf("ProcessLecture: %v", err)
	}
}

func TestReprocessSummaryReplacesAndInvalidates(t *testing.T) {
	h := newHarness(t)
	processed(t, h, "lec")
	ctx := context.Background()

	h.ing.cache = cache.NewContentCache(h.store, logger.Nop())
	key := cache.SummaryKey("lec", "en", models.StyleDetailed)
	if err := h.store.UpsertCacheEntry(ctx, key, []byte(`"stale"`), h.ing.now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	h.gen.summary = "# Fresh"
	res, err := h.ing.Reprocess(ctx, "lec", ReprocessOptions{Summary: true, Style: models.StyleDetailed})
	if err != nil {
		t.Fatalf("Reprocess: %v", err)
	}
	if res.Status != models.StatusCompleted || res.Summary == nil {
		t.Fatalf("result = %+v", res)
	}

	var inLang int
	for _, s := range h.store.Summaries() {
		if s.LectureID == "lec" && s.Lang == "en" {
			inLang++
		}
	}
	if inLang != 1 {
		t.Errorf("summaries for lec/en = %d, want 1 after replace", inLang)
	}
	got, _ := h.store.GetLatestSummary(ctx, "lec", "en", models.StyleDetailed)
	if got == nil || got.ContentMD != "# Fresh" {
		t.Errorf("latest summary = %+v", got)
	}
	if e, _ := h.store.GetCacheEntry(ctx, key, h.ing.now()); e != nil {
		t.Error("cache entry not invalidated")
	}
	if h.store.Status("lec") != models.StatusCompleted {
		t.Errorf("status = %s", h.store.Status("lec"))
	}
}

func TestReprocessQuizUsesOptions(t *testing.T) {
	h := newHarness(t)
	processed(t, h, "lec")

	res, err := h.ing.Reprocess(context.Background(), "lec", ReprocessOptions{
		Quiz: true, Difficulty: models.DifficultyHard, NumQuestions: 3, Language: "fr",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Quiz == nil || res.Quiz.Difficulty != models.DifficultyHard || res.Quiz.Lang != "fr" ||
		len(res.Quiz.Items.Questions) != 3 {
		t.Errorf("quiz = %+v", res.Quiz)
	}
}

func TestReprocessFailureKeepsEarlierWrites(t *testing.T) {
	h := newHarness(t)
	processed(t, h, "lec")

	h.tr.tr = &core.Transcript{
		Text:   "[00:00] a\n[05:00] b\n[10:00] c",
		Format: core.FormatBracketed,
	}
	h.gen.summaryErr = errors.New("model down")

	res, err := h.ing.Reprocess(context.Background(), "lec", ReprocessOptions{Retranscribe: true, Summary: true})
	if err == nil {
		t.Fatal("expected summary failure")
	}
	if res.Status != models.StatusFailed || res.Chunks != 3 {
		t.Errorf("result = %+v", res)
	}
	if got := h.store.Status("lec"); got != models.StatusFailed {
		t.Errorf("status = %s, want failed", got)
	}
	if got := h.store.ChunkCount("lec"); got != 3 {
		t.Errorf("chunks = %d, want the 3 retranscribed ones", got)
	}
	if st := h.progressOf(t, "lec"); st == nil || st.Status != models.StatusFailed {
		t.Errorf("progress = %+v", st)
	}
}

func TestReprocessRestoresMissingVideo(t *testing.T) {
	h := newHarness(t)
	objects := &fakeObjects{}
	h.ing.objects = objects
	ctx := context.Background()

	video := filepath.Join(t.TempDir(), "talk.mp4")
	if err := h.store.CreateLecture(ctx, &models.Lecture{
		ID:               "lec",
		VideoPath:        video,
		AudioPath:        filepath.Join(t.TempDir(), "gone.wav"),
		ProcessingStatus: models.StatusCompleted,
	}); err != nil {
		t.Fatal(err)
	}

	res, err := h.ing.Reprocess(ctx, "lec", ReprocessOptions{Retranscribe: true})
	if err != nil {
		t.Fatalf("Reprocess: %v", err)
	}
	if res.Chunks != 2 {
		t.Errorf("chunks = %d, want 2", res.Chunks)
	}
	if len(objects.downloads) != 1 || objects.downloads[0] != "lectures-test/lectures/lec/talk.mp4" {
		t.Errorf("downloads = %v", objects.downloads)
	}
	if h.audio.callCount() != 1 || h.audio.videos[0] != video {
		t.Errorf("audio extracted from %v", h.audio.videos)
	}
	lec, _ := h.store.GetLectureByID(ctx, "lec")
	if lec.AudioPath != video+".wav" {
		t.Errorf("audio path = %q", lec.AudioPath)
	}
}

func TestReprocessMissingVideoWithoutStorage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.store.CreateLecture(ctx, &models.Lecture{
		ID:        "lec",
		VideoPath: filepath.Join(t.TempDir(), "missing.mp4"),
	}); err != nil {
		t.Fatal(err)
	}

	_, err := h.ing.Reprocess(ctx, "lec", ReprocessOptions{Retranscribe: true})
	if !core.IsCode(err, core.CodeAudioExtractionFailed) {
		t.Fatalf("err = %v, want AUDIO_EXTRACTION_FAILED", err)
	}
	if h.store.Status("lec") != models.StatusFailed {
		t.Errorf("status = %s, want failed", h.store.Status("lec"))
	}
}

func TestReprocessRejectsBadRequests(t *testing.T) {
	h := newHarness(t)

	if _, err := h.ing.Reprocess(context.Background(), "lec", ReprocessOptions{}); !errors.Is(err, ErrNothingToReprocess) {
		t.Errorf("empty options: err = %v", err)
	}
	if _, err := h.ing.Reprocess(context.Background(), "nope", ReprocessOptions{Summary: true}); !core.IsCode(err, core.CodeNotFound) {
		t.Errorf("unknown lecture: err = %v", err)
	}
}
