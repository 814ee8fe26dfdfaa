package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/markdave123-py/Lectern/internal/core"
	"github.com/markdave123-py/Lectern/internal/core/generation"
	"github.com/markdave123-py/Lectern/internal/core/resilience"
	"github.com/markdave123-py/Lectern/internal/logger"
	"github.com/markdave123-py/Lectern/internal/models"
)

const (
	chatTopK = 5

	chatSystemPrompt = `You are a teaching assistant answering questions about one lecture, using only the transcript excerpts given.
Cite the timestamps of the excerpts you rely on, like [12:30]. If the excerpts do not contain the answer, say "I cannot find this in the lecture."`

	noAnswer = "I cannot find this in the lecture."
)

// Source is a transcript excerpt an answer was grounded on.
type Source struct {
	ChunkID   string `json:"chunk_id"`
	StartTS   int    `json:"start_ts"`
	EndTS     int    `json:"end_ts"`
	Timestamp string `json:"timestamp"`
}

type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// ChatService answers questions from the indexed transcript of a lecture.
type ChatService struct {
	store    core.LectureStore
	embedder core.EmbeddingProvider
	llm      core.LLMProvider
	breakers *resilience.Breakers
	retry    resilience.RetryPolicy
	log      *logger.Logger
}

func NewChatService(store core.LectureStore, emb core.EmbeddingProvider, llm core.LLMProvider, breakers *resilience.Breakers, retry resilience.RetryPolicy, log *logger.Logger) *ChatService {
	return &ChatService{
		store:    store,
		embedder: emb,
		llm:      llm,
		breakers: breakers,
		retry:    retry,
		log:      log.With("service", "ChatService"),
	}
}

func (s *ChatService) Ask(ctx context.Context, lectureID, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}

	vecs, err := resilience.Execute(s.breakers, resilience.BreakerEmbedding, func() ([][]float32, error) {
		return s.embedder.EmbedTexts(ctx, []string{question})
	})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embed question: no vector returned")
	}

	chunks, err := s.store.SearchTranscriptChunks(ctx, lectureID, vecs[0], chatTopK)
	if err != nil {
		return nil, fmt.Errorf("search transcript: %w", err)
	}
	if len(chunks) == 0 {
		return &Answer{Answer: noAnswer, Sources: []Source{}}, nil
	}

	userPrompt := fmt.Sprintf("Transcript excerpts:\n%s\nQuestion: %s", excerpts(chunks), question)
	text, err := resilience.Call(ctx, s.breakers, resilience.BreakerGeneration, s.retry,
		func(ctx context.Context) (string, error) {
			return s.llm.Generate(ctx, chatSystemPrompt, userPrompt)
		})
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	sources := make([]Source, len(chunks))
	for i, ch := range chunks {
		sources[i] = Source{
			ChunkID:   ch.ID,
			StartTS:   ch.StartTS,
			EndTS:     ch.EndTS,
			Timestamp: generation.FormatTimestamp(ch.StartTS),
		}
	}
	s.log.Debug("question answered", "lecture_id", lectureID, "sources", len(sources))
	return &Answer{Answer: strings.TrimSpace(text), Sources: sources}, nil
}

func excerpts(chunks []models.TranscriptChunk) string {
	var sb strings.Builder
	for _, ch := range chunks {
		fmt.Fprintf(&sb, "[%s-%s] %s\n---\n",
			generation.FormatTimestamp(ch.StartTS), generation.FormatTimestamp(ch.EndTS), strings.TrimSpace(ch.Text))
	}
	return sb.String()
}
