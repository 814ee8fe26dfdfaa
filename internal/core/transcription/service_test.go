package transcription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/markdave123-py/Lectern/internal/core"
	"github.com/markdave123-py/Lectern/internal/core/resilience"
	"github.com/markdave123-py/Lectern/internal/logger"
)

type fakeBackend struct {
	name  string
	calls int
	tr    *core.Transcript
	err   error
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) TranscribeAudio(context.Context, string, core.TranscribeOptions) (*core.Transcript, error) {
	f.calls++
	return f.tr, f.err
}

func newBreakers(threshold int) *resilience.Breakers {
	return resilience.NewBreakers(resilience.BreakerSettings{Threshold: threshold, Timeout: time.Minute}, logger.Nop())
}

func TestOrder(t *testing.T) {
	g := &fakeBackend{name: BackendGemini}
	w := &fakeBackend{name: BackendWhisper}

	tests := []struct {
		name    string
		mode    string
		whisper core.TranscriptionBackend
		want    []string
		wantErr bool
	}{
		{name: "gemini first", mode: "gemini", whisper: w, want: []string{"gemini", "whisper"}},
		{name: "whisper first", mode: "whisper", whisper: w, want: []string{"whisper", "gemini"}},
		{name: "whisper mode without whisper", mode: "whisper", whisper: nil, want: []string{"gemini"}},
		{name: "auto prefers whisper", mode: "auto", whisper: w, want: []string{"whisper"}},
		{name: "auto without whisper", mode: "AUTO", whisper: nil, want: []string{"gemini"}},
		{name: "unknown mode", mode: "parakeet", whisper: w, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Order(tt.mode, g, tt.whisper)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d backends, want %v", len(got), tt.want)
			}
			for i, b := range got {
				if b.Name() != tt.want[i] {
					t.Errorf("backend %d = %s, want %s", i, b.Name(), tt.want[i])
				}
			}
		})
	}
}

func TestTranscribeWithFallbackUsesFirstSuccess(t *testing.T) {
	first := &fakeBackend{name: "whisper", err: errors.New("503")}
	second := &fakeBackend{name: "gemini", tr: &core.Transcript{Text: "[00:00] hi", Format: core.FormatBracketed}}
	third := &fakeBackend{name: "spare", tr: &core.Transcript{Text: "unused"}}

	s := NewService([]core.TranscriptionBackend{first, second, third}, newBreakers(5), logger.Nop())
	tr, err := s.TranscribeWithFallback(context.Background(), "a.wav", core.TranscribeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if tr.Text != "[00:00] hi" || tr.Metadata.Backend != "gemini" {
		t.Errorf("transcript = %+v", tr)
	}
	if first.calls != 1 || second.calls != 1 || third.calls != 0 {
		t.Errorf("calls = %d/%d/%d, want 1/1/0", first.calls, second.calls, third.calls)
	}
}

func TestTranscribeWithFallbackExhaustion(t *testing.T) {
	last := errors.New("quota exceeded")
	backends := []*fakeBackend{
		{name: "a", err: errors.New("timeout")},
		{name: "b", tr: &core.Transcript{Text: "   "}},
		{name: "c", err: last},
	}
	list := make([]core.TranscriptionBackend, len(backends))
	for i, b := range backends {
		list[i] = b
	}

	s := NewService(list, newBreakers(5), logger.Nop())
	_, err := s.TranscribeWithFallback(context.Background(), "a.wav", core.TranscribeOptions{})

	if !core.IsCode(err, core.CodeAllServicesFailed) {
		t.Fatalf("err = %v, want ALL_SERVICES_FAILED", err)
	}
	if !errors.Is(err, last) {
		t.Errorf("err = %v, want it to wrap the last failure", err)
	}
	for _, b := range backends {
		if b.calls != 1 {
			t.Errorf("backend %s called %d times, want 1", b.name, b.calls)
		}
	}
}

func TestTranscribeWithFallbackSkipsOpenBreaker(t *testing.T) {
	broken := &fakeBackend{name: "whisper", err: errors.New("down")}
	good := &fakeBackend{name: "gemini", tr: &core.Transcript{Text: "ok"}}

	s := NewService([]core.TranscriptionBackend{broken, good}, newBreakers(2), logger.Nop())
	for i := 0; i < 4; i++ {
		if _, err := s.TranscribeWithFallback(context.Background(), "a.wav", core.TranscribeOptions{}); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	if broken.calls != 2 {
		t.Errorf("broken backend called %d times, want 2 before the breaker opened", broken.calls)
	}
	if good.calls != 4 {
		t.Errorf("fallback backend called %d times, want 4", good.calls)
	}
}

func TestTranscribeWithFallbackNoBackends(t *testing.T) {
	s := NewService(nil, newBreakers(1), logger.Nop())
	_, err := s.TranscribeWithFallback(context.Background(), "a.wav", core.TranscribeOptions{})
	if !core.IsCode(err, core.CodeAllServicesFailed) {
		t.Errorf("err = %v, want ALL_SERVICES_FAILED", err)
	}
}
