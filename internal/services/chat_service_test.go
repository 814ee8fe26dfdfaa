package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/markdave123-py/Lectern/internal/core/coretest"
	"github.com/markdave123-py/Lectern/internal/core/resilience"
	"github.com/markdave123-py/Lectern/internal/logger"
	"github.com/markdave123-py/Lectern/internal/models"
)

type fakeEmbedder struct{ err error }

func (f fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type fakeLLM struct {
	userPrompt string
}

func (f *fakeLLM) Generate(_ context.Context, _, user string) (string, error) {
	f.userPrompt = user
	return " Snell's law, see [05:00]. ", nil
}

func newChatService(t *testing.T, store *coretest.Store, emb fakeEmbedder, llm *fakeLLM) *ChatService {
	t.Helper()
	log := logger.Nop()
	breakers := resilience.NewBreakers(resilience.BreakerSettings{Threshold: 5, Timeout: time.Minute}, log)
	return NewChatService(store, emb, llm, breakers, resilience.RetryPolicy{Attempts: 1}, log)
}

func TestAsk(t *testing.T) {
	ctx := context.Background()
	store := coretest.NewStore()
	for _, ch := range []models.TranscriptChunk{
		{LectureID: "lec", StartTS: 0, EndTS: 300, Text: "Light bends."},
		{LectureID: "lec", StartTS: 300, EndTS: 600, Text: "Snell's law."},
	} {
		if err := store.InsertTranscriptChunk(ctx, &ch); err != nil {
			t.Fatal(err)
		}
	}
	llm := &fakeLLM{}
	svc := newChatService(t, store, fakeEmbedder{}, llm)

	ans, err := svc.Ask(ctx, "lec", "  What relates the angles? ")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Answer != "Snell's law, see [05:00]." {
		t.Errorf("answer = %q", ans.Answer)
	}
	if len(ans.Sources) != 2 || ans.Sources[1].Timestamp != "05:00" || ans.Sources[1].EndTS != 600 {
		t.Errorf("sources = %+v", ans.Sources)
	}
	for _, want := range []string{"[00:00-05:00] Light bends.", "Question: What relates the angles?"} {
		if !strings.Contains(llm.userPrompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, llm.userPrompt)
		}
	}
}

func TestAskWithoutIndexedChunks(t *testing.T) {
	llm := &fakeLLM{}
	svc := newChatService(t, coretest.NewStore(), fakeEmbedder{}, llm)

	ans, err := svc.Ask(context.Background(), "lec", "anything?")
	if err != nil {
		t.Fatal(err)
	}
	if ans.Answer != noAnswer || llm.userPrompt != "" {
		t.Errorf("answer = %q, llm called = %v", ans.Answer, llm.userPrompt != "")
	}
}

func TestAskErrors(t *testing.T) {
	svc := newChatService(t, coretest.NewStore(), fakeEmbedder{err: errors.New("quota")}, &fakeLLM{})

	if _, err := svc.Ask(context.Background(), "lec", " "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty question: err = %v", err)
	}
	if _, err := svc.Ask(context.Background(), "lec", "why?"); err == nil || !strings.Contains(err.Error(), "quota") {
		t.Errorf("embed failure: err = %v", err)
	}
}
