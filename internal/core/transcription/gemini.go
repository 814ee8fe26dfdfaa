package transcription

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/Lectern/internal/core"
	"github.com/markdave123-py/Lectern/internal/logger"
)

var _ core.TranscriptionBackend = (*GeminiBackend)(nil)

// GeminiBackend transcribes by uploading the audio through the Files API and
// prompting a multimodal model for a [MM:SS] marked transcript.
type GeminiBackend struct {
	client       *genai.Client
	modelName    string
	pollInterval time.Duration
	log          *logger.Logger
}

func NewGeminiBackend(ctx context.Context, apiKey, modelName string, log *logger.Logger) (*GeminiBackend, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiBackend{
		client:       cl,
		modelName:    modelName,
		pollInterval: 2 * time.Second,
		log:          log.With("service", "GeminiBackend"),
	}, nil
}

func (g *GeminiBackend) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiBackend) Name() string { return BackendGemini }

func (g *GeminiBackend) TranscribeAudio(ctx context.Context, audioPath string, opts core.TranscribeOptions) (*core.Transcript, error) {
	const op = "gemini transcribe"

	f, err := os.Open(audioPath)
	if err != nil {
		return nil, core.NewError(core.CodeTranscriptionFailed, op, err)
	}
	defer f.Close()

	uploaded, err := g.client.UploadFile(ctx, "", f, &genai.UploadFileOptions{
		MIMEType:    audioMIMEType(audioPath),
		DisplayName: filepath.Base(audioPath),
	})
	if err != nil {
		return nil, core.NewError(core.CodeTranscriptionFailed, op, fmt.Errorf("upload: %w", err))
	}
	uploadName := uploaded.Name
	defer func() {
		if err := g.client.DeleteFile(context.WithoutCancel(ctx), uploadName); err != nil {
			g.log.Warn("failed to delete uploaded audio", "file", uploadName, "error", err)
		}
	}()

	uploaded, err = g.waitActive(ctx, uploaded)
	if err != nil {
		return nil, core.NewError(core.CodeTranscriptionFailed, op, err)
	}

	m := g.client.GenerativeModel(g.modelName)
	m.SetTemperature(0)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(transcriptionSystemPrompt)}}

	resp, err := m.GenerateContent(ctx,
		genai.FileData{MIMEType: uploaded.MIMEType, URI: uploaded.URI},
		genai.Text(transcriptionPrompt(opts)),
	)
	if err != nil {
		return nil, core.NewError(core.CodeTranscriptionFailed, op, fmt.Errorf("generate: %w", err))
	}

	text := strings.TrimSpace(responseText(resp))
	return &core.Transcript{
		Text:   text,
		Format: core.FormatBracketed,
		Metadata: core.TranscriptMetadata{
			Backend:  BackendGemini,
			Model:    g.modelName,
			Language: opts.Language,
		},
	}, nil
}

// waitActive polls until the uploaded file leaves the PROCESSING state.
func (g *GeminiBackend) waitActive(ctx context.Context, f *genai.File) (*genai.File, error) {
	for f.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.pollInterval):
		}
		var err error
		if f, err = g.client.GetFile(ctx, f.Name); err != nil {
			return nil, fmt.Errorf("poll upload: %w", err)
		}
	}
	if f.State != genai.FileStateActive {
		return nil, errors.New("uploaded audio was not accepted for processing")
	}
	return f, nil
}

const transcriptionSystemPrompt = `You are a precise lecture transcriber. Output only the transcript, no commentary.`

func transcriptionPrompt(opts core.TranscribeOptions) string {
	var b strings.Builder
	b.WriteString("Transcribe this lecture recording verbatim.\n")
	if opts.Timestamps {
		b.WriteString("Start every new paragraph or speaker turn on its own line with a timestamp marker " +
			"of the form [MM:SS] (or [HH:MM:SS] past one hour) giving the offset from the start of the recording.\n")
	}
	if opts.SpeakerLabels {
		b.WriteString("After the timestamp, prefix each turn with the speaker as \"Speaker N:\".\n")
	}
	if opts.Language != "" {
		fmt.Fprintf(&b, "The spoken language is %s; keep the transcript in that language.\n", opts.Language)
	}
	return b.String()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

func audioMIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mp3"
	case ".flac":
		return "audio/flac"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
