package timing

import (
	"testing"

	"github.com/book-expert/tts-pipeline/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeWords_NoShiftSingleChunk(t *testing.T) {
	n := NewNormalizer(100)
	chunks := []core.TextChunk{{Text: "Hello world.", StartChar: 0, EndChar: 12}}
	results := []core.SynthesisResult{{
		DurationMS: 600,
		WordTimings: []core.TimingEntry{
			{Text: "Hello", StartMS: 0, EndMS: 300, StartChar: 0, EndChar: 5},
			{Text: "world.", StartMS: 300, EndMS: 600, StartChar: 6, EndChar: 12},
		},
	}}

	data := n.MergeWords(chunks, results)

	require.Len(t, data.Words, 2)
	assert.Equal(t, int64(0), data.Words[0].StartMS)
	assert.Equal(t, int64(600), data.Words[1].EndMS)
}

func TestMergeWords_ShiftsAcrossChunksWithSilence(t *testing.T) {
	n := NewNormalizer(100)
	chunks := []core.TextChunk{
		{StartChar: 0},
		{StartChar: 8},
		{StartChar: 19},
	}
	results := []core.SynthesisResult{
		{DurationMS: 400, WordTimings: []core.TimingEntry{{StartMS: 0, EndMS: 400, StartChar: 0, EndChar: 7}}},
		{DurationMS: 500, WordTimings: []core.TimingEntry{{StartMS: 0, EndMS: 500, StartChar: 0, EndChar: 10}}},
		{DurationMS: 400, WordTimings: []core.TimingEntry{{StartMS: 0, EndMS: 400, StartChar: 0, EndChar: 5}}},
	}

	data := n.MergeWords(chunks, results)

	require.Len(t, data.Words, 3)
	assert.Equal(t, int64(0), data.Words[0].StartMS)
	assert.Equal(t, int64(500), data.Words[1].StartMS)   // 400 + 100 silence
	assert.Equal(t, int64(1100), data.Words[2].StartMS)  // 400+100+500+100
	assert.Equal(t, 8, data.Words[1].StartChar)
	assert.Equal(t, 19, data.Words[2].StartChar)
}

func TestEstimateSentences_TwoSentences(t *testing.T) {
	data := EstimateSentences("A. B.", 300)

	require.Len(t, data.Sentences, 2)
	assert.Equal(t, int64(0), data.Sentences[0].StartMS)
	assert.Equal(t, int64(300), data.Sentences[len(data.Sentences)-1].EndMS)
	assert.Equal(t, data.Sentences[0].EndMS, data.Sentences[1].StartMS)
	assert.Equal(t, 0, data.Sentences[0].StartChar)
	assert.Equal(t, 2, data.Sentences[0].EndChar)
}

func TestEstimateSentences_NoPunctuationSingleSentence(t *testing.T) {
	data := EstimateSentences("just words no punctuation", 1000)

	require.Len(t, data.Sentences, 1)
	assert.Equal(t, int64(0), data.Sentences[0].StartMS)
	assert.Equal(t, int64(1000), data.Sentences[0].EndMS)
}

func TestEstimateSentences_LastEndsExactlyAtDuration(t *testing.T) {
	data := EstimateSentences("One. Two. Three. Four. Five.", 999)

	require.NotEmpty(t, data.Sentences)
	assert.Equal(t, int64(999), data.Sentences[len(data.Sentences)-1].EndMS)
}
