package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/markdave123-py/Lectern/internal/core"
	"github.com/markdave123-py/Lectern/internal/logger"
)

var _ core.AudioExtractor = (*FFmpegExtractor)(nil)

// DefaultAudioOptions is mono 16kHz wav, what both transcription backends accept.
var DefaultAudioOptions = core.AudioOptions{Format: "wav", Channels: 1, SampleRate: 16000}

// FFmpegExtractor shells out to ffmpeg for extraction and ffprobe for duration.
type FFmpegExtractor struct {
	ffmpegPath  string
	ffprobePath string
	workDir     string
	timeout     time.Duration
	log         *logger.Logger
}

func NewFFmpegExtractor(ffmpegPath, ffprobePath, workDir string, log *logger.Logger) *FFmpegExtractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &FFmpegExtractor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		workDir:     workDir,
		timeout:     30 * time.Minute,
		log:         log.With("service", "FFmpegExtractor"),
	}
}

// AssertReady checks the ffmpeg binary is reachable.
func (e *FFmpegExtractor) AssertReady() error {
	if _, err := exec.LookPath(e.ffmpegPath); err != nil {
		return fmt.Errorf("missing required binary %q in PATH: %w", e.ffmpegPath, err)
	}
	return nil
}

func (e *FFmpegExtractor) ExtractAudio(ctx context.Context, videoPath string, opts core.AudioOptions) (*core.AudioResult, error) {
	const op = "extract audio"

	if _, err := os.Stat(videoPath); err != nil {
		return nil, core.NewError(core.CodeAudioExtractionFailed, op, err)
	}

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = DefaultAudioOptions.Format
	}
	ch := opts.Channels
	if ch <= 0 {
		ch = DefaultAudioOptions.Channels
	}
	sr := opts.SampleRate
	if sr <= 0 {
		sr = DefaultAudioOptions.SampleRate
	}

	args := []string{"-y", "-i", videoPath, "-vn", "-ac", strconv.Itoa(ch), "-ar", strconv.Itoa(sr)}
	switch format {
	case "wav", "flac":
	case "mp3":
		bitrate := opts.Bitrate
		if bitrate == "" {
			bitrate = "64k"
		}
		args = append(args, "-b:a", bitrate)
	default:
		return nil, core.NewError(core.CodeAudioExtractionFailed, op, fmt.Errorf("unsupported audio format %q", format))
	}

	if err := os.MkdirAll(e.workDir, 0o755); err != nil {
		return nil, core.NewError(core.CodeAudioExtractionFailed, op, fmt.Errorf("create work dir: %w", err))
	}
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	outPath := filepath.Join(e.workDir, fmt.Sprintf("%s_audio_%dk.%s", base, sr/1000, format))
	args = append(args, "-f", format, outPath)

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	out, err := exec.CommandContext(runCtx, e.ffmpegPath, args...).CombinedOutput()
	if err != nil {
		return nil, core.NewError(core.CodeAudioExtractionFailed, op,
			fmt.Errorf("ffmpeg: %w; out=%s", err, tail(string(out), 512)))
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return nil, core.NewError(core.CodeAudioExtractionFailed, op, fmt.Errorf("audio output missing at %s", outPath))
	}

	duration, err := e.probeDuration(runCtx, outPath)
	if err != nil {
		e.log.Warn("ffprobe failed, duration unknown", "path", outPath, "error", err)
	}

	return &core.AudioResult{
		AudioPath: outPath,
		Metadata: core.MediaMetadata{
			DurationSeconds: duration,
			Format:          format,
			SizeBytes:       info.Size(),
		},
	}, nil
}

func (e *FFmpegExtractor) probeDuration(ctx context.Context, path string) (float64, error) {
	out, err := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
