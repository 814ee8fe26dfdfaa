package transcription

import (
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"github.com/markdave123-py/Lectern/internal/core"
)

func TestTranscriptionPrompt(t *testing.T) {
	p := transcriptionPrompt(core.TranscribeOptions{Timestamps: true, SpeakerLabels: true, Language: "fr"})
	for _, want := range []string{"[MM:SS]", "Speaker N:", "fr"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}

	bare := transcriptionPrompt(core.TranscribeOptions{})
	if strings.Contains(bare, "[MM:SS]") || strings.Contains(bare, "Speaker N:") {
		t.Errorf("bare prompt asks for markers:\n%s", bare)
	}
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text("[00:00] a"), genai.Text("\n[00:05] b")}},
	}}}
	if got := responseText(resp); got != "[00:00] a\n[00:05] b" {
		t.Errorf("responseText() = %q", got)
	}
	if got := responseText(&genai.GenerateContentResponse{}); got != "" {
		t.Errorf("empty response = %q", got)
	}
}

func TestAudioMIMEType(t *testing.T) {
	tests := map[string]string{
		"a.wav":  "audio/wav",
		"b.MP3":  "audio/mp3",
		"c.flac": "audio/flac",
		"d":      "application/octet-stream",
	}
	for in, want := range tests {
		if got := audioMIMEType(in); got != want {
			t.Errorf("audioMIMEType(%q) = %q, want %q", in, got, want)
		}
	}
}
