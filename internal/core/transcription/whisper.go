package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/markdave123-py/Lectern/internal/core"
)

// MaxWhisperFileBytes is the upload ceiling of the hosted Whisper API.
const MaxWhisperFileBytes = 25 * 1024 * 1024

const defaultWhisperURL = "https://api.openai.com/v1/audio/transcriptions"

var _ core.TranscriptionBackend = (*WhisperBackend)(nil)

// WhisperBackend calls an OpenAI compatible audio.transcriptions endpoint and
// asks for verbose_json so segment timings come back.
type WhisperBackend struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

func NewWhisperBackend(apiKey, model, endpoint string) *WhisperBackend {
	if model == "" {
		model = "whisper-1"
	}
	if endpoint == "" {
		endpoint = defaultWhisperURL
	}
	return &WhisperBackend{
		apiKey:   apiKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 60 * time.Minute},
	}
}

func (w *WhisperBackend) Name() string { return BackendWhisper }

type whisperSegment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	AvgLogprob float64 `json:"avg_logprob"`
}

type whisperResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
	Segments []whisperSegment `json:"segments"`
}

func (w *WhisperBackend) TranscribeAudio(ctx context.Context, audioPath string, opts core.TranscribeOptions) (*core.Transcript, error) {
	const op = "whisper transcribe"

	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, core.NewError(core.CodeTranscriptionFailed, op, err)
	}
	if info.Size() > MaxWhisperFileBytes {
		return nil, core.NewError(core.CodeFileTooLarge, op,
			fmt.Errorf("%s is %d bytes, limit is %d", filepath.Base(audioPath), info.Size(), MaxWhisperFileBytes))
	}

	body, contentType, err := w.buildForm(audioPath, opts)
	if err != nil {
		return nil, core.NewError(core.CodeTranscriptionFailed, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, body)
	if err != nil {
		return nil, core.NewError(core.CodeTranscriptionFailed, op, err)
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, core.NewError(core.CodeTranscriptionFailed, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, core.NewError(core.CodeTranscriptionFailed, op,
			&core.StatusError{Service: BackendWhisper, StatusCode: resp.StatusCode, Body: string(b)})
	}

	var wr whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, core.NewError(core.CodeTranscriptionFailed, op, fmt.Errorf("decode response: %w", err))
	}

	tr := &core.Transcript{
		Text:   strings.TrimSpace(wr.Text),
		Format: core.FormatSegments,
		Metadata: core.TranscriptMetadata{
			Backend:         BackendWhisper,
			Model:           w.model,
			Language:        wr.Language,
			DurationSeconds: wr.Duration,
		},
	}
	for _, s := range wr.Segments {
		conf := math.Exp(s.AvgLogprob)
		tr.Segments = append(tr.Segments, core.Segment{
			Start:      s.Start,
			End:        s.End,
			Text:       strings.TrimSpace(s.Text),
			Confidence: &conf,
		})
	}
	return tr, nil
}

func (w *WhisperBackend) buildForm(audioPath string, opts core.TranscribeOptions) (io.Reader, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fields := [][2]string{
		{"model", w.model},
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "segment"},
	}
	if opts.Language != "" {
		fields = append(fields, [2]string{"language", opts.Language})
	}
	for _, kv := range fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", err
		}
	}

	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &body, mw.FormDataContentType(), nil
}
