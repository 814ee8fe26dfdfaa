// Package chunker splits transcripts into fixed-width, time-ordered windows.
//
// Free-text transcripts are scanned line by line with a timestamp strategy
// chosen from the format the backend reported; native ASR segments are
// bucketed by their end offsets. Both paths are pure and deterministic.
package chunker

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/markdave123-py/Lectern/internal/core"
	"github.com/markdave123-py/Lectern/internal/models"
)

// DefaultChunkSeconds is the window width used when none is configured.
const DefaultChunkSeconds = 300

// timestampParser finds a timestamp marker in a line and returns its offset
// in seconds together with the line stripped of the marker.
type timestampParser interface {
	parse(line string) (ts int, rest string, ok bool)
}

var (
	// [MM:SS], [HH:MM:SS], optionally a range like [00:10 - 00:25].
	bracketRe = regexp.MustCompile(`\[(\d{1,2}:\d{2}(?::\d{2})?)(?:\s*[-–]\s*\d{1,2}:\d{2}(?::\d{2})?)?\]`)
	// HH:MM:SS or MM:SS at the start of a line, optionally followed by a separator.
	clockRe = regexp.MustCompile(`^(\d{1,2}:\d{2}(?::\d{2})?)(?:[.,]\d+)?\s*(?:[-–|]\s*)?`)
	// "Speaker 2: ..." or "Jane Doe: ..."
	speakerRe = regexp.MustCompile(`^(Speaker\s+\d+|[A-Z][\w.'-]*(?:\s[A-Z][\w.'-]*){0,2}):\s+(.*)$`)
)

type bracketParser struct{}

func (bracketParser) parse(line string) (int, string, bool) {
	loc := bracketRe.FindStringSubmatchIndex(line)
	if loc == nil {
		return 0, line, false
	}
	ts, ok := clockSeconds(line[loc[2]:loc[3]])
	if !ok {
		return 0, line, false
	}
	rest := strings.TrimSpace(line[:loc[0]] + " " + line[loc[1]:])
	return ts, rest, true
}

type clockParser struct{}

func (clockParser) parse(line string) (int, string, bool) {
	loc := clockRe.FindStringSubmatchIndex(line)
	if loc == nil {
		return 0, line, false
	}
	ts, ok := clockSeconds(line[loc[2]:loc[3]])
	if !ok {
		return 0, line, false
	}
	return ts, strings.TrimSpace(line[loc[1]:]), true
}

func parserFor(format core.TranscriptFormat) timestampParser {
	if format == core.FormatClock {
		return clockParser{}
	}
	return bracketParser{}
}

// clockSeconds converts "MM:SS" or "HH:MM:SS" into seconds.
func clockSeconds(s string) (int, bool) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	total := 0
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, false
		}
		if i > 0 && n >= 60 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}

// ParseIntoChunks groups a free-text transcript into windows of chunkSeconds.
//
// Text between markers accumulates into the active window. A marker at or
// past the window end flushes the window (when it holds any text) and opens
// window floor(ts/chunkSeconds), starting at ts. The last speaker label seen
// in a window is kept for it. Text before the first marker, or input with no
// markers at all, lands in the first window [0, chunkSeconds). Only input with
// no text yields no chunks.
func ParseIntoChunks(raw string, format core.TranscriptFormat, chunkSeconds int) []models.TranscriptChunk {
	if chunkSeconds <= 0 {
		chunkSeconds = DefaultChunkSeconds
	}
	p := parserFor(format)

	var (
		out     []models.TranscriptChunk
		lines   []string
		speaker string
		start   = 0
		end     = chunkSeconds
	)

	flush := func() {
		text := strings.TrimSpace(strings.Join(lines, "\n"))
		if text != "" {
			out = append(out, models.TranscriptChunk{StartTS: start, EndTS: end, Speaker: speaker, Text: text})
		}
		lines = lines[:0]
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if ts, rest, ok := p.parse(line); ok {
			if ts >= end {
				flush()
				start = ts
				end = (ts/chunkSeconds + 1) * chunkSeconds
				speaker = ""
			}
			line = rest
		}

		if m := speakerRe.FindStringSubmatch(line); m != nil {
			speaker = m[1]
			line = strings.TrimSpace(m[2])
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	flush()

	return out
}

// ChunkSegments buckets native ASR segments into windows of chunkSeconds.
// A segment belongs to the window containing its end offset; the window's
// end_ts is the largest segment end inside it rather than the bucket ceiling.
// Segments arriving for an earlier window stay in the current one.
func ChunkSegments(segments []core.Segment, chunkSeconds int) []models.TranscriptChunk {
	if chunkSeconds <= 0 {
		chunkSeconds = DefaultChunkSeconds
	}

	type bucket struct {
		index   int
		maxEnd  int
		speaker string
		lines   []string
		confSum float64
		confN   int
	}

	var (
		out []models.TranscriptChunk
		cur *bucket
	)

	flush := func() {
		if cur == nil || len(cur.lines) == 0 {
			return
		}
		ch := models.TranscriptChunk{
			StartTS: cur.index * chunkSeconds,
			EndTS:   cur.maxEnd,
			Speaker: cur.speaker,
			Text:    strings.Join(cur.lines, "\n"),
		}
		if cur.confN > 0 {
			c := cur.confSum / float64(cur.confN)
			ch.Confidence = &c
		}
		out = append(out, ch)
	}

	for _, s := range segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		endCeil := int(math.Ceil(s.End))
		if endCeil < 1 {
			endCeil = 1
		}
		idx := (endCeil - 1) / chunkSeconds

		if cur == nil || idx > cur.index {
			flush()
			cur = &bucket{index: idx}
		}
		if endCeil > cur.maxEnd {
			cur.maxEnd = endCeil
		}
		if s.Speaker != "" {
			cur.speaker = s.Speaker
		}
		if s.Confidence != nil {
			cur.confSum += *s.Confidence
			cur.confN++
		}
		cur.lines = append(cur.lines, text)
	}
	flush()

	return out
}

// FromTranscript picks the chunking strategy matching the transcript's format.
func FromTranscript(tr *core.Transcript, chunkSeconds int) []models.TranscriptChunk {
	if tr == nil {
		return nil
	}
	if tr.Format == core.FormatSegments && len(tr.Segments) > 0 {
		return ChunkSegments(tr.Segments, chunkSeconds)
	}
	return ParseIntoChunks(tr.Text, tr.Format, chunkSeconds)
}
