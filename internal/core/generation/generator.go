// Package generation produces summaries, quizzes and translations from
// lecture text through a generative LLM.
package generation

import (
	"context"
	"errors"
	"strings"

	"github.com/markdave123-py/Lectern/internal/core"
	"github.com/markdave123-py/Lectern/internal/logger"
)

var _ core.ContentGenerator = (*Generator)(nil)

var errEmptyOutput = errors.New("model returned no text")

// Generator implements core.ContentGenerator on top of an LLMProvider. When
// the provider can return JSON directly, quizzes are requested that way.
type Generator struct {
	llm   core.LLMProvider
	model string
	log   *logger.Logger
}

func NewGenerator(llm core.LLMProvider, log *logger.Logger) *Generator {
	model := "unknown"
	if n, ok := llm.(core.ModelNamer); ok {
		model = n.ModelName()
	}
	return &Generator{
		llm:   llm,
		model: model,
		log:   log.With("service", "Generator"),
	}
}

func (g *Generator) GenerateSummary(ctx context.Context, text string, opts core.SummaryOptions) (*core.SummaryResult, error) {
	const op = "generate summary"
	if strings.TrimSpace(text) == "" {
		return nil, core.NewError(core.CodeGenerationFailed, op, errors.New("no source text"))
	}

	out, err := g.llm.Generate(ctx, summarySystemPrompt, summaryPrompt(text, opts))
	if err != nil {
		return nil, core.NewError(core.CodeGenerationFailed, op, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, core.NewError(core.CodeGenerationFailed, op, errEmptyOutput)
	}
	return &core.SummaryResult{Summary: out, Model: g.model}, nil
}

func (g *Generator) GenerateQuiz(ctx context.Context, text string, opts core.QuizOptions) (*core.QuizResult, error) {
	const op = "generate quiz"
	if strings.TrimSpace(text) == "" {
		return nil, core.NewError(core.CodeGenerationFailed, op, errors.New("no source text"))
	}
	if opts.NumQuestions <= 0 {
		opts.NumQuestions = 10
	}

	var (
		raw string
		err error
	)
	if jg, ok := g.llm.(core.JSONGenerator); ok {
		raw, err = jg.GenerateJSON(ctx, quizSystemPrompt, quizPrompt(text, opts))
	} else {
		raw, err = g.llm.Generate(ctx, quizSystemPrompt, quizPrompt(text, opts))
	}
	if err != nil {
		return nil, core.NewError(core.CodeGenerationFailed, op, err)
	}

	doc, err := ParseQuiz(raw)
	if err != nil {
		g.log.Warn("model returned an unusable quiz", "error", err)
		return nil, err
	}
	return &core.QuizResult{Quiz: *doc, Model: g.model}, nil
}

func (g *Generator) Translate(ctx context.Context, text, targetLang string) (string, error) {
	const op = "translate"
	if strings.TrimSpace(text) == "" || targetLang == "" {
		return "", core.NewError(core.CodeGenerationFailed, op, errors.New("text and target language are required"))
	}

	out, err := g.llm.Generate(ctx, translateSystemPrompt, translatePrompt(text, targetLang))
	if err != nil {
		return "", core.NewError(core.CodeGenerationFailed, op, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", core.NewError(core.CodeGenerationFailed, op, errEmptyOutput)
	}
	return out, nil
}
