package ingestion_engine

import (
	"context"
	"fmt"

	"github.com/markdave123-py/Lectern/internal/core/resilience"
	"github.com/markdave123-py/Lectern/internal/models"
)

// index embeds the run's chunks for lecture Q&A. Failures only add a warning.
func (i *LectureIngestor) index(ctx context.Context, run *Run) {
	if i.embedder == nil || len(run.Chunks) == 0 {
		return
	}
	if err := i.embedChunks(ctx, run.Chunks); err != nil {
		i.warn(run, "embedding index", err)
	}
}

// embedChunks embeds chunk texts in batches and writes the vectors back by
// chunk id. Embedding is filled in place on the given slice.
func (i *LectureIngestor) embedChunks(ctx context.Context, chunks []models.TranscriptChunk) error {
	size := i.cfg.EmbedBatchSize
	if size <= 0 {
		size = 32
	}

	for start := 0; start < len(chunks); start += size {
		items := chunks[start:min(start+size, len(chunks))]

		texts := make([]string, len(items))
		for k := range items {
			texts[k] = items[k].Text
		}

		vecs, err := resilience.Execute(i.breakers, resilience.BreakerEmbedding, func() ([][]float32, error) {
			return i.embedder.EmbedTexts(ctx, texts)
		})
		if err != nil {
			return fmt.Errorf("embed: %w", err)
		}
		if len(vecs) != len(items) {
			return fmt.Errorf("embed size mismatch: got %d want %d", len(vecs), len(items))
		}
		for k := range items {
			items[k].Embedding = vecs[k]
		}

		if err := i.store.UpdateChunkEmbeddings(ctx, items); err != nil {
			return fmt.Errorf("store embeddings: %w", err)
		}
	}
	return nil
}
