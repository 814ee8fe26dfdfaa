package ingestion_engine

import (
	"context"

	"github.com/markdave123-py/Lectern/internal/core"
)

type Ingestor interface {
	Start(ctx context.Context, numWorkers int)
	Enqueue(ctx context.Context, in LectureInput) (string, error)
	ProcessLecture(ctx context.Context, in LectureInput) (*ProcessResult, error)
	Reprocess(ctx context.Context, lectureID string, opts ReprocessOptions) (*ReprocessResult, error)
}

// Transcriber turns an audio file into a transcript, trying backends in order.
type Transcriber interface {
	TranscribeWithFallback(ctx context.Context, audioPath string, opts core.TranscribeOptions) (*core.Transcript, error)
}

var _ Ingestor = (*LectureIngestor)(nil)
