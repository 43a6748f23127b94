// Package chunker splits input text into provider-sized pieces at natural
// linguistic boundaries while preserving exact rune offsets into the
// original text.
package chunker

import (
	"errors"
	"strings"
	"unicode"

	"github.com/book-expert/tts-pipeline/internal/core"
)

// ErrEmptyInput is returned when the input text has no non-whitespace
// content to chunk.
var ErrEmptyInput = errors.New("chunker: input text is empty")

// minBoundaryRatio is the fraction of max_chars below which a paragraph or
// sentence boundary is ignored, to avoid emitting degenerate tiny chunks
// when a preferred boundary happens to sit very early in the window.
const minBoundaryRatio = 0.3

// Split splits text into chunks of at most maxChars runes each, preferring
// paragraph, then sentence, then word boundaries before falling back to a
// hard split. Offsets in the returned chunks are rune offsets into text.
func Split(text string, maxChars int) ([]core.TextChunk, error) {
	if maxChars < 1 {
		maxChars = 1
	}

	runes := []rune(text)

	if len(strings.TrimSpace(text)) == 0 {
		return nil, ErrEmptyInput
	}

	var chunks []core.TextChunk

	offset := 0
	total := len(runes)

	for offset < total {
		// Skip whitespace between chunks without emitting an empty chunk.
		for offset < total && isSpace(runes[offset]) {
			offset++
		}

		if offset >= total {
			break
		}

		remaining := total - offset

		var windowEnd int
		if remaining <= maxChars {
			windowEnd = total
		} else {
			windowEnd = offset + findSplitPoint(runes, offset, maxChars)
		}

		chunkText := strings.TrimSpace(string(runes[offset:windowEnd]))
		if chunkText == "" {
			// Nothing but whitespace in this window; force progress with a
			// hard split so the loop cannot spin forever on pathological
			// input (e.g. a single run of thousands of spaces).
			windowEnd = min(offset+maxChars, total)
			chunkText = strings.TrimSpace(string(runes[offset:windowEnd]))
		}

		startChar := indexOfTrimmedStart(runes, offset, windowEnd)
		endChar := startChar + len([]rune(chunkText))

		chunks = append(chunks, core.TextChunk{
			Text:      chunkText,
			StartChar: startChar,
			EndChar:   endChar,
		})

		offset = windowEnd
	}

	for i := range chunks {
		chunks[i].ChunkIndex = i
		chunks[i].TotalChunks = len(chunks)
	}

	return chunks, nil
}

// findSplitPoint returns, relative to `offset`, the rune count of the
// preferred split within the window [offset, offset+maxChars).
func findSplitPoint(runes []rune, offset, maxChars int) int {
	window := runes[offset : offset+maxChars]
	floor := int(float64(maxChars) * minBoundaryRatio)

	if idx := lastParagraphBreak(window, floor); idx >= 0 {
		return idx
	}

	if idx := lastSentenceBreak(window, floor); idx >= 0 {
		return idx
	}

	if idx := lastWordBreak(window, 0); idx >= 0 {
		return idx
	}

	return maxChars
}

// lastParagraphBreak finds the latest "\n\n" beyond floor, returning the
// split point just after it.
func lastParagraphBreak(window []rune, floor int) int {
	best := -1

	for i := 0; i+1 < len(window); i++ {
		if window[i] == '\n' && window[i+1] == '\n' {
			end := i + 2
			// Collapse runs of more than two newlines into one break point.
			for end < len(window) && window[end] == '\n' {
				end++
			}

			if end-1 >= floor {
				best = end
			}
		}
	}

	return best
}

var sentenceEnders = []rune{'.', '!', '?'}

// lastSentenceBreak finds the latest sentence-ending punctuation followed
// by whitespace, beyond floor, returning the split point just after the
// punctuation and its trailing whitespace run.
func lastSentenceBreak(window []rune, floor int) int {
	best := -1

	for i := 0; i < len(window); i++ {
		if !isSentenceEnder(window[i]) {
			continue
		}

		j := i + 1
		if j >= len(window) || !isSpace(window[j]) {
			continue
		}

		for j < len(window) && isSpace(window[j]) {
			j++
		}

		if i >= floor {
			best = j
		}
	}

	return best
}

// lastWordBreak finds the latest space beyond floor, returning the split
// point just after it.
func lastWordBreak(window []rune, floor int) int {
	best := -1

	for i := floor; i < len(window); i++ {
		if isSpace(window[i]) {
			best = i + 1
		}
	}

	return best
}

func isSentenceEnder(r rune) bool {
	for _, e := range sentenceEnders {
		if r == e {
			return true
		}
	}

	return false
}

// isSpace must stay Unicode-aware to match the strings.TrimSpace calls
// above; an ASCII-only check here would let indexOfTrimmedStart disagree
// with the trimmed chunk text on non-ASCII whitespace.
func isSpace(r rune) bool {
	return unicode.IsSpace(r)
}

// indexOfTrimmedStart returns the rune index, within the whole document,
// of the first non-space rune in runes[start:end].
func indexOfTrimmedStart(runes []rune, start, end int) int {
	for i := start; i < end; i++ {
		if !isSpace(runes[i]) {
			return i
		}
	}

	return start
}

func min(a, b int) int {
	if a < b {
		return a
	}

	return b
}
