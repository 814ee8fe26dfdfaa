package ingestion_engine

import (
	"context"
	"testing"
	"time"

	"github.com/markdave123-py/Lectern/internal/config"
)

func TestNewIngestConfig(t *testing.T) {
	p := config.DefaultPipeline()
	p.AudioFormat = "flac"
	p.AudioRetryDelay = 3 * time.Second
	p.SlideRetryDelay = 200 * time.Millisecond

	cfg := NewIngestConfig(p)
	if cfg.Audio.Format != "flac" || cfg.Audio.Channels != 1 || cfg.Audio.SampleRate != 16000 {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if cfg.AudioRetry.Delay != 3*time.Second {
		t.Errorf("audio retry delay = %s, want 3s", cfg.AudioRetry.Delay)
	}
	if cfg.SlideRetry.Delay != 200*time.Millisecond || cfg.SlideRetry.Attempts != p.SlideAttempts {
		t.Errorf("slide retry = %+v", cfg.SlideRetry)
	}
}

func TestProcessLectureExtractsConfiguredAudio(t *testing.T) {
	h := newHarness(t)

	if _, err := h.ing.ProcessLecture(context.Background(), LectureInput{ID: "lec", VideoPath: "/v.mp4"}); err != nil {
		t.Fatal(err)
	}
	if h.audio.opts.Format != "mp3" || h.audio.opts.Bitrate != "64k" {
		t.Errorf("extracted audio as %+v, want mp3 at 64k", h.audio.opts)
	}
}
