package generation

import (
	"fmt"
	"strings"

	"github.com/markdave123-py/Lectern/internal/core"
	"github.com/markdave123-py/Lectern/internal/models"
)

const summarySystemPrompt = `You summarize university lectures for students.
Write GitHub flavoured markdown. Use only facts present in the material; do not invent content.`

const quizSystemPrompt = `You write multiple choice quizzes about university lectures.
Respond with JSON only, matching exactly:
{"questions":[{"id":1,"question":"...","options":["A","B","C","D"],"correct_answer_index":0,"explanation":"..."}]}
Every question has exactly 4 options and correct_answer_index is 0-3.`

const translateSystemPrompt = `You are a professional translator. Preserve markdown structure and technical terms.
Return only the translation.`

var styleInstructions = map[string]string{
	models.StyleConcise:  "Give a short overview: a one paragraph abstract followed by the key points as bullets.",
	models.StyleDetailed: "Give a thorough, section by section summary with headings, definitions and worked examples.",
	models.StyleExamPrep: "Focus on what a student must know for an exam: definitions, formulas, likely questions and common mistakes.",
}

func summaryPrompt(text string, opts core.SummaryOptions) string {
	style, ok := styleInstructions[opts.Style]
	if !ok {
		style = styleInstructions[models.StyleConcise]
	}

	var b strings.Builder
	b.WriteString(style)
	b.WriteString("\n")
	if opts.MaxLength > 0 {
		fmt.Fprintf(&b, "Keep it under %d words.\n", opts.MaxLength)
	}
	fmt.Fprintf(&b, "Write in language: %s.\n\n", langOrDefault(opts.Language))
	b.WriteString("Lecture material:\n")
	b.WriteString(text)
	return b.String()
}

func quizPrompt(text string, opts core.QuizOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d %s difficulty questions", opts.NumQuestions, difficultyOrDefault(opts.Difficulty))
	if len(opts.QuestionTypes) > 0 {
		fmt.Fprintf(&b, " covering these question types: %s", strings.Join(opts.QuestionTypes, ", "))
	}
	b.WriteString(".\n")
	fmt.Fprintf(&b, "Write questions, options and explanations in language: %s.\n\n", langOrDefault(opts.Language))
	b.WriteString("Lecture material:\n")
	b.WriteString(text)
	return b.String()
}

func translatePrompt(text, targetLang string) string {
	return fmt.Sprintf("Translate the following into %s:\n\n%s", targetLang, text)
}

func langOrDefault(lang string) string {
	if lang == "" {
		return "en"
	}
	return lang
}

func difficultyOrDefault(d string) string {
	switch d {
	case models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard:
		return d
	}
	return models.DifficultyMedium
}
