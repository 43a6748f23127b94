// Package timing reconstructs document-level timing from per-chunk
// timing data, shifting both the time axis (to account for inter-chunk
// silence) and the character axis (to account for each chunk's offset
// into the original document).
package timing

import (
	"github.com/book-expert/tts-pipeline/internal/core"
)

// Normalizer merges per-chunk timing into one document-level TimingData.
// It is constructed with the same silence gap the audio stitcher actually
// inserts between chunks, since the two must never drift apart.
type Normalizer struct {
	silenceBetweenMS int64
}

// NewNormalizer builds a Normalizer bound to silenceBetweenMS, the exact
// inter-chunk gap duration the stitcher configured for this job.
func NewNormalizer(silenceBetweenMS int64) *Normalizer {
	return &Normalizer{silenceBetweenMS: silenceBetweenMS}
}

// chunkTiming bundles one chunk's per-chunk timing with its duration and
// its offset into the original document, the minimum a merge needs.
type chunkTiming struct {
	entries    []core.TimingEntry
	durationMS int64
	startChar  int
}

// MergeWords merges word-level per-chunk timing into document timing.
func (n *Normalizer) MergeWords(chunks []core.TextChunk, results []core.SynthesisResult) core.TimingData {
	return core.TimingData{
		Kind:  core.TimingWord,
		Words: n.merge(toChunkTimings(chunks, results, func(r core.SynthesisResult) []core.TimingEntry { return r.WordTimings })),
	}
}

// MergeSentences merges sentence-level per-chunk timing into document
// timing.
func (n *Normalizer) MergeSentences(chunks []core.TextChunk, results []core.SynthesisResult) core.TimingData {
	return core.TimingData{
		Kind:      core.TimingSentence,
		Sentences: n.merge(toChunkTimings(chunks, results, func(r core.SynthesisResult) []core.TimingEntry { return r.SentenceTimings })),
	}
}

func toChunkTimings(chunks []core.TextChunk, results []core.SynthesisResult, pick func(core.SynthesisResult) []core.TimingEntry) []chunkTiming {
	out := make([]chunkTiming, len(results))
	for i, r := range results {
		out[i] = chunkTiming{
			entries:    pick(r),
			durationMS: r.DurationMS,
			startChar:  chunks[i].StartChar,
		}
	}

	return out
}

// merge is the shared time-axis/char-axis shift used by both word and
// sentence merges.
func (n *Normalizer) merge(chunks []chunkTiming) []core.TimingEntry {
	var out []core.TimingEntry

	var cumulativeMS int64

	for i, c := range chunks {
		for _, e := range c.entries {
			out = append(out, core.TimingEntry{
				Text:      e.Text,
				StartMS:   e.StartMS + cumulativeMS,
				EndMS:     e.EndMS + cumulativeMS,
				StartChar: e.StartChar + c.startChar,
				EndChar:   e.EndChar + c.startChar,
			})
		}

		cumulativeMS += c.durationMS
		if i != len(chunks)-1 {
			cumulativeMS += n.silenceBetweenMS
		}
	}

	return out
}

// EstimateSentences builds sentence-level timing purely from the original
// text and the stitched audio's total duration, for providers that never
// return timing data. Sentence boundaries are found with a manual rune
// scan rather than a lookbehind regex, since Go's RE2 engine has none.
func EstimateSentences(originalText string, totalDurationMS int64) core.TimingData {
	sentences := splitSentences(originalText)
	if len(sentences) == 0 {
		return core.TimingData{Kind: core.TimingSentence}
	}

	totalChars := 0
	for _, s := range sentences {
		totalChars += len([]rune(s.text))
	}

	entries := make([]core.TimingEntry, len(sentences))

	var cursorMS int64

	for i, s := range sentences {
		length := len([]rune(s.text))

		var durationMS int64
		if totalChars > 0 {
			durationMS = totalDurationMS * int64(length) / int64(totalChars)
		}

		entries[i] = core.TimingEntry{
			Text:      s.text,
			StartMS:   cursorMS,
			EndMS:     cursorMS + durationMS,
			StartChar: s.startChar,
			EndChar:   s.endChar,
		}
		cursorMS += durationMS
	}

	// Force the last sentence to end exactly at the measured duration,
	// eliminating rounding drift from the proportional distribution above.
	entries[len(entries)-1].EndMS = totalDurationMS

	return core.TimingData{Kind: core.TimingSentence, Sentences: entries}
}

type sentenceSpan struct {
	text      string
	startChar int
	endChar   int
}

// splitSentences finds each run of text ending in '.', '!' or '?' followed
// by whitespace (or end of input) and returns it as one sentence, with
// offsets into the original (untrimmed) text.
func splitSentences(text string) []sentenceSpan {
	runes := []rune(text)

	var spans []sentenceSpan

	start := 0

	for start < len(runes) && isSpace(runes[start]) {
		start++
	}

	i := start

	for i < len(runes) {
		if isSentenceEnder(runes[i]) {
			end := i + 1

			j := end
			for j < len(runes) && isSpace(runes[j]) {
				j++
			}

			// Only a genuine trailing whitespace run counts as a split
			// point, matching the lookbehind regex this replaces: a
			// sentence-ender at the very end of the text (no following
			// whitespace) does not split, it just ends the final span.
			if j > end {
				spans = append(spans, sentenceSpan{
					text:      string(runes[start:end]),
					startChar: start,
					endChar:   end,
				})
				start = j
				i = j

				continue
			}
		}

		i++
	}

	if start < len(runes) {
		spans = append(spans, sentenceSpan{
			text:      string(runes[start:]),
			startChar: start,
			endChar:   len(runes),
		})
	}

	return spans
}

func isSentenceEnder(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
