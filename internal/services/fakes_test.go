package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/markdave123-py/Lectern/internal/core"
	"github.com/markdave123-py/Lectern/internal/core/ingestion_engine"
	"github.com/markdave123-py/Lectern/internal/models"
)

type fakeGenerator struct {
	mu         sync.Mutex
	err        error
	summaries  int
	quizzes    int
	translated int
}

func (f *fakeGenerator) GenerateSummary(_ context.Context, _ string, opts core.SummaryOptions) (*core.SummaryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries++
	if f.err != nil {
		return nil, f.err
	}
	return &core.SummaryResult{Summary: fmt.Sprintf("summary #%d (%s)", f.summaries, opts.Style), Model: "fake-model"}, nil
}

func (f *fakeGenerator) GenerateQuiz(_ context.Context, _ string, opts core.QuizOptions) (*core.QuizResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quizzes++
	if f.err != nil {
		return nil, f.err
	}
	var doc models.QuizDocument
	for n := 1; n <= opts.NumQuestions; n++ {
		doc.Questions = append(doc.Questions, models.QuizQuestion{
			ID: n, Question: "Q?", Options: []string{"a", "b", "c", "d"},
		})
	}
	return &core.QuizResult{Quiz: doc, Model: "fake-model"}, nil
}

func (f *fakeGenerator) Translate(_ context.Context, text, lang string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.translated++
	if f.err != nil {
		return "", f.err
	}
	return "[" + lang + "] " + text, nil
}

type fakeIngestor struct {
	mu         sync.Mutex
	queued     []ingestion_engine.LectureInput
	enqueueErr error
	reprocess  []string
}

var _ ingestion_engine.Ingestor = (*fakeIngestor)(nil)

func (f *fakeIngestor) Start(context.Context, int) {}

func (f *fakeIngestor) Enqueue(_ context.Context, in ingestion_engine.LectureInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enqueueErr != nil {
		return "", f.enqueueErr
	}
	f.queued = append(f.queued, in)
	return in.ID, nil
}

func (f *fakeIngestor) ProcessLecture(context.Context, ingestion_engine.LectureInput) (*ingestion_engine.ProcessResult, error) {
	return nil, nil
}

func (f *fakeIngestor) Reprocess(_ context.Context, id string, _ ingestion_engine.ReprocessOptions) (*ingestion_engine.ReprocessResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reprocess = append(f.reprocess, id)
	return &ingestion_engine.ReprocessResult{LectureID: id, Status: models.StatusCompleted}, nil
}
