// Package transcription turns lecture audio into text through an ordered set
// of speech-recognition backends with fallback.
//
// Supported backends:
//   - gemini:  multimodal Gemini model, returns [MM:SS] marked prose
//   - whisper: OpenAI compatible Whisper endpoint, returns native segments
package transcription

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/markdave123-py/Lectern/internal/core"
	"github.com/markdave123-py/Lectern/internal/core/resilience"
	"github.com/markdave123-py/Lectern/internal/logger"
)

// Backend names and transcription modes.
const (
	BackendGemini  = "gemini"
	BackendWhisper = "whisper"
	ModeAuto       = "auto"
)

// Order returns the backends to try for mode, first preference first.
// A nil backend means "not configured" and is left out.
//
//	gemini  -> gemini, whisper
//	whisper -> whisper, gemini
//	auto    -> whisper if configured, otherwise gemini
func Order(mode string, gemini, whisper core.TranscriptionBackend) ([]core.TranscriptionBackend, error) {
	var order []core.TranscriptionBackend
	switch strings.ToLower(mode) {
	case BackendGemini:
		order = []core.TranscriptionBackend{gemini, whisper}
	case BackendWhisper:
		order = []core.TranscriptionBackend{whisper, gemini}
	case ModeAuto, "":
		if whisper != nil {
			order = []core.TranscriptionBackend{whisper}
		} else {
			order = []core.TranscriptionBackend{gemini}
		}
	default:
		return nil, fmt.Errorf("transcription: unknown mode %q (supported: auto, gemini, whisper)", mode)
	}

	out := order[:0]
	for _, b := range order {
		if b != nil {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("transcription: no backend configured for mode %q", mode)
	}
	return out, nil
}

// Service tries each backend in order until one produces a transcript.
type Service struct {
	backends []core.TranscriptionBackend
	breakers *resilience.Breakers
	log      *logger.Logger
}

func NewService(backends []core.TranscriptionBackend, breakers *resilience.Breakers, log *logger.Logger) *Service {
	return &Service{
		backends: backends,
		breakers: breakers,
		log:      log.With("service", "TranscriptionService"),
	}
}

// BackendNames lists the configured backends in try order.
func (s *Service) BackendNames() []string {
	names := make([]string, len(s.backends))
	for i, b := range s.backends {
		names[i] = b.Name()
	}
	return names
}

// TranscribeWithFallback runs the backends in order, each behind its own
// circuit breaker. Any failure, an open breaker or an empty transcript moves
// on to the next backend. The first usable transcript wins; when none is
// produced the error carries ALL_SERVICES_FAILED and the last failure.
func (s *Service) TranscribeWithFallback(ctx context.Context, audioPath string, opts core.TranscribeOptions) (*core.Transcript, error) {
	const op = "transcribe with fallback"

	lastErr := errors.New("no transcription backends configured")
	for _, b := range s.backends {
		if err := ctx.Err(); err != nil {
			return nil, core.NewError(core.CodeTranscriptionFailed, op, err)
		}

		name := b.Name()
		tr, err := resilience.Execute(s.breakers, resilience.TranscriptionBreaker(name), func() (*core.Transcript, error) {
			tr, err := b.TranscribeAudio(ctx, audioPath, opts)
			if err != nil {
				return nil, err
			}
			if isEmpty(tr) {
				return nil, core.NewError(core.CodeTranscriptionFailed, name, errors.New("empty transcript"))
			}
			return tr, nil
		})
		if err != nil {
			if resilience.IsOpen(err) {
				s.log.Warn("transcription backend skipped, circuit open", "backend", name)
			} else {
				s.log.Warn("transcription backend failed", "backend", name, "error", err)
			}
			lastErr = fmt.Errorf("%s: %w", name, err)
			continue
		}

		if tr.Metadata.Backend == "" {
			tr.Metadata.Backend = name
		}
		s.log.Info("transcription complete", "backend", name, "segments", len(tr.Segments), "chars", len(tr.Text))
		return tr, nil
	}

	return nil, core.NewError(core.CodeAllServicesFailed, op, lastErr)
}

func isEmpty(tr *core.Transcript) bool {
	return tr == nil || (strings.TrimSpace(tr.Text) == "" && len(tr.Segments) == 0)
}
