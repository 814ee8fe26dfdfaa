package ingestion_engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/markdave123-py/Lectern/internal/config"
	"github.com/markdave123-py/Lectern/internal/core"
	"github.com/markdave123-py/Lectern/internal/core/coretest"
	"github.com/markdave123-py/Lectern/internal/core/progress"
	"github.com/markdave123-py/Lectern/internal/logger"
	"github.com/markdave123-py/Lectern/internal/models"
)

type fakeAudio struct {
	mu        sync.Mutex
	failFirst int // calls that fail before extraction succeeds
	err       error
	calls     int
	videos    []string
	opts      core.AudioOptions
}

func (f *fakeAudio) ExtractAudio(_ context.Context, videoPath string, opts core.AudioOptions) (*core.AudioResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.opts = opts
	f.videos = append(f.videos, videoPath)
	if f.calls <= f.failFirst {
		return nil, core.NewError(core.CodeAudioExtractionFailed, "extract audio", f.err)
	}
	return &core.AudioResult{
		AudioPath: videoPath + ".wav",
		Metadata:  core.MediaMetadata{DurationSeconds: 600.4, Format: "wav"},
	}, nil
}

func (f *fakeAudio) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSlides struct {
	mu    sync.Mutex
	deck  *models.SlideDeck
	err   error
	calls int
}

func (f *fakeSlides) ExtractText(_ context.Context, _ string) (*models.SlideDeck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.deck, nil
}

type fakeTranscriber struct {
	mu    sync.Mutex
	tr    *core.Transcript
	err   error
	calls int
}

func (f *fakeTranscriber) TranscribeWithFallback(_ context.Context, _ string, _ core.TranscribeOptions) (*core.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.tr, nil
}

type fakeGenerator struct {
	mu         sync.Mutex
	summaryErr error
	quizErr    error
	badQuizzes int // leading quiz calls that return malformed output
	summary    string
	lastSource string
	summaries  int
	quizzes    int
}

func (f *fakeGenerator) GenerateSummary(_ context.Context, text string, opts core.SummaryOptions) (*core.SummaryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries++
	f.lastSource = text
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	body := f.summary
	if body == "" {
		body = "# Summary (" + opts.Style + ")"
	}
	return &core.SummaryResult{Summary: body, Model: "fake-model"}, nil
}

func (f *fakeGenerator) GenerateQuiz(_ context.Context, _ string, opts core.QuizOptions) (*core.QuizResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quizzes++
	if f.quizErr != nil {
		return nil, f.quizErr
	}
	if f.badQuizzes > 0 {
		f.badQuizzes--
		return nil, core.NewError(core.CodeInvalidQuizSchema, "validate quiz", fmt.Errorf("question 1 has no correct_answer_index"))
	}
	doc := models.QuizDocument{}
	for n := 1; n <= opts.NumQuestions; n++ {
		doc.Questions = append(doc.Questions, models.QuizQuestion{
			ID:                 n,
			Question:           fmt.Sprintf("Question %d?", n),
			Options:            []string{"a", "b", "c", "d"},
			CorrectAnswerIndex: n % models.QuizOptionCount,
		})
	}
	return &core.QuizResult{Quiz: doc, Model: "fake-model"}, nil
}

func (f *fakeGenerator) Translate(_ context.Context, text, lang string) (string, error) {
	return lang + ": " + text, nil
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1, 0}
	}
	return out, nil
}

// fakeObjects restores files by writing a placeholder.
type fakeObjects struct {
	downloads []string
}

func (f *fakeObjects) UploadFile(context.Context, string, string, io.Reader, string) (string, error) {
	return "", nil
}
func (f *fakeObjects) DeleteFile(context.Context, string, string) error { return nil }
func (f *fakeObjects) DownloadToFile(_ context.Context, bucket, key, dst string) error {
	f.downloads = append(f.downloads, bucket+"/"+key)
	return os.WriteFile(dst, []byte("video"), 0o600)
}
func (f *fakeObjects) Bucket() string { return "lectures-test" }

const twoWindowTranscript = "[00:00] Hello world\n[05:01] Next segment"

type harness struct {
	store   *coretest.Store
	audio   *fakeAudio
	slides  *fakeSlides
	tr      *fakeTranscriber
	gen     *fakeGenerator
	emb     *fakeEmbedder
	tracker *progress.MemoryTracker
	ing     *LectureIngestor
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := NewIngestConfig(config.DefaultPipeline())
	cfg.AudioRetry.Delay = time.Millisecond
	cfg.SlideRetry.Delay = time.Millisecond
	cfg.GenerationRetry.Delay = time.Millisecond

	h := &harness{
		store: coretest.NewStore(),
		audio: &fakeAudio{},
		slides: &fakeSlides{deck: &models.SlideDeck{
			Slides: []models.Slide{{SlideNumber: 1, Title: "Agenda", Content: "Greetings"}},
		}},
		tr: &fakeTranscriber{tr: &core.Transcript{
			Text:     twoWindowTranscript,
			Format:   core.FormatBracketed,
			Metadata: core.TranscriptMetadata{Backend: "gemini"},
		}},
		gen:     &fakeGenerator{},
		emb:     &fakeEmbedder{},
		tracker: progress.NewMemoryTracker(time.Hour),
	}
	h.ing = NewLectureIngestor(Deps{
		Store:       h.store,
		Audio:       h.audio,
		Slides:      h.slides,
		Transcriber: h.tr,
		Generator:   h.gen,
		Embedder:    h.emb,
		Tracker:     h.tracker,
	}, cfg, logger.Nop())
	return h
}

func (h *harness) progressOf(t *testing.T, id string) *models.ProcessingState {
	t.Helper()
	st, err := h.tracker.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return st
}
