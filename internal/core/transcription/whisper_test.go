package transcription

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/markdave123-py/Lectern/internal/core"
)

func writeAudio(t *testing.T, size int64) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "lecture.wav")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(size); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestWhisperBackendParsesSegments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("response_format = %q", got)
		}
		if got := r.FormValue("language"); got != "en" {
			t.Errorf("language = %q", got)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("file part: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"text": " Hello class. Today: matrices. ",
			"language": "english",
			"duration": 12.5,
			"segments": [
				{"start": 0.0, "end": 4.2, "text": " Hello class.", "avg_logprob": 0},
				{"start": 4.2, "end": 12.5, "text": " Today: matrices.", "avg_logprob": -0.5}
			]
		}`)
	}))
	defer srv.Close()

	b := NewWhisperBackend("sk-test", "", srv.URL)
	tr, err := b.TranscribeAudio(context.Background(), writeAudio(t, 1024), core.TranscribeOptions{Language: "en"})
	if err != nil {
		t.Fatal(err)
	}

	if tr.Format != core.FormatSegments || tr.Metadata.Backend != BackendWhisper || tr.Metadata.Model != "whisper-1" {
		t.Errorf("transcript metadata = %+v format=%s", tr.Metadata, tr.Format)
	}
	if tr.Text != "Hello class. Today: matrices." {
		t.Errorf("Text = %q", tr.Text)
	}
	if len(tr.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(tr.Segments))
	}
	if s := tr.Segments[1]; s.Start != 4.2 || s.End != 12.5 || s.Text != "Today: matrices." {
		t.Errorf("segment 1 = %+v", s)
	}
	if c := tr.Segments[0].Confidence; c == nil || *c != 1 {
		t.Errorf("segment 0 confidence = %v, want 1", c)
	}
}

func TestWhisperBackendStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewWhisperBackend("bad", "", srv.URL).TranscribeAudio(context.Background(), writeAudio(t, 10), core.TranscribeOptions{})

	var se *core.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err = %v, want StatusError 401", err)
	}
	if !core.IsNonRetryable(err) {
		t.Error("401 should not be retried")
	}
}

func TestWhisperBackendRejectsLargeFiles(t *testing.T) {
	hit := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	defer srv.Close()

	_, err := NewWhisperBackend("k", "", srv.URL).TranscribeAudio(context.Background(), writeAudio(t, MaxWhisperFileBytes+1), core.TranscribeOptions{})
	if !core.IsCode(err, core.CodeFileTooLarge) {
		t.Fatalf("err = %v, want FILE_TOO_LARGE", err)
	}
	if hit {
		t.Error("oversize file reached the network")
	}
}
