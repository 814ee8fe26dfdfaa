package core

import (
	"context"

	"github.com/markdave123-py/Lectern/internal/models"
)

// AudioOptions describes the audio track to pull out of a video container.
type AudioOptions struct {
	Format     string // "wav", "mp3", "flac"
	Bitrate    string // e.g. "64k"; ignored for wav
	Channels   int
	SampleRate int
}

// MediaMetadata is what the transcoder reports about the extracted audio.
type MediaMetadata struct {
	DurationSeconds float64
	Format          string
	SizeBytes       int64
}

// AudioResult is the extracted audio file and its metadata.
type AudioResult struct {
	AudioPath string
	Metadata  MediaMetadata
}

// AudioExtractor pulls the audio track out of a video file.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, videoPath string, opts AudioOptions) (*AudioResult, error)
}

// SlideExtractor pulls per-slide text and speaker notes out of a deck.
type SlideExtractor interface {
	ExtractText(ctx context.Context, deckPath string) (*models.SlideDeck, error)
}
