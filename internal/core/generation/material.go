package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/markdave123-py/Lectern/internal/models"
)

// DefaultMaxSourceTokens caps the lecture material sent in one prompt.
const DefaultMaxSourceTokens = 200_000

// SourceText renders the transcript chunks and the slide deck into the
// material passed to the generator. Each chunk is prefixed with its start
// time. Text past maxTokens is cut at a line boundary; maxTokens <= 0 means
// no limit.
func SourceText(chunks []models.TranscriptChunk, deck *models.SlideDeck, maxTokens int) string {
	var lines []string

	if len(chunks) > 0 {
		lines = append(lines, "## Transcript")
		for _, ch := range chunks {
			prefix := "[" + FormatTimestamp(ch.StartTS) + "]"
			if ch.Speaker != "" {
				prefix += " " + ch.Speaker + ":"
			}
			lines = append(lines, prefix+" "+strings.TrimSpace(ch.Text))
		}
	}

	if deck != nil && len(deck.Slides) > 0 {
		notes := make(map[int]string, len(deck.Notes))
		for _, n := range deck.Notes {
			notes[n.SlideNumber] = n.Text
		}
		lines = append(lines, "", "## Slides")
		for _, s := range deck.Slides {
			lines = append(lines, fmt.Sprintf("Slide %d: %s", s.SlideNumber, s.Title))
			if c := strings.TrimSpace(s.Content); c != "" {
				lines = append(lines, c)
			}
			if n := strings.TrimSpace(notes[s.SlideNumber]); n != "" {
				lines = append(lines, "Notes: "+n)
			}
		}
	}

	if maxTokens <= 0 {
		return strings.Join(lines, "\n")
	}

	budget := maxTokens
	kept := lines[:0:0]
	for _, l := range lines {
		t := approxTokens(l)
		if t > budget {
			break
		}
		kept = append(kept, l)
		budget -= t
	}
	return strings.Join(kept, "\n")
}

// FormatTimestamp renders seconds as MM:SS, or HH:MM:SS past the hour.
func FormatTimestamp(sec int) string {
	if sec < 0 {
		sec = 0
	}
	h, m, s := sec/3600, (sec%3600)/60, sec%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// approxTokens is a cheap token estimator (~4 chars ≈ 1 token).
func approxTokens(s string) int {
	n := len([]rune(s))
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}

// DecodeDeck reads lectures.ppt_content. Empty or malformed content gives nil.
func DecodeDeck(raw json.RawMessage) *models.SlideDeck {
	if len(raw) == 0 {
		return nil
	}
	var deck models.SlideDeck
	if err := json.Unmarshal(raw, &deck); err != nil {
		return nil
	}
	return &deck
}

// ChunkIDs is the source_chunks value of a summary built from chunks.
func ChunkIDs(chunks []models.TranscriptChunk) json.RawMessage {
	ids := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		if ch.ID != "" {
			ids = append(ids, ch.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return nil
	}
	return raw
}
