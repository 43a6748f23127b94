// Package core defines the data model shared by every stage of the
// generation pipeline: chunking, synthesis, timing, stitching, and job
// lifecycle tracking.
package core

import (
	"context"
	"time"
)

// TextChunk is a contiguous, trimmed slice of an input document together
// with its rune offsets into the original, untrimmed text.
type TextChunk struct {
	Text        string
	StartChar   int
	EndChar     int
	ChunkIndex  int
	TotalChunks int
}

// TimingKind selects which of a TimingData's lists is populated.
type TimingKind string

const (
	TimingWord     TimingKind = "word"
	TimingSentence TimingKind = "sentence"
)

// TimingEntry aligns one word or sentence to an audio time range and a
// source-text character range.
type TimingEntry struct {
	Text      string
	StartMS   int64
	EndMS     int64
	StartChar int
	EndChar   int
}

// TimingData is the document-level timing result attached to a completed
// job. Exactly one of Words or Sentences is populated, selected by Kind.
type TimingData struct {
	Kind      TimingKind
	Words     []TimingEntry
	Sentences []TimingEntry
}

// SynthesisResult is what a provider returns for one chunk. Timings, when
// present, are relative to this chunk's own audio and text: time origin
// zero, character origin zero.
type SynthesisResult struct {
	AudioBytes      []byte
	WordTimings     []TimingEntry
	SentenceTimings []TimingEntry
	DurationMS      int64
}

// ProviderCapabilities is a provider's static, identity-determined trait
// set. The job manager never infers these; it only asks for them.
type ProviderCapabilities struct {
	SupportsSpeedControl bool
	SupportsWordTiming   bool
	MinSpeed             float64
	MaxSpeed             float64
	DefaultSpeed         float64
	MaxChunkChars        int
}

// Voice is one selectable voice a provider exposes.
type Voice struct {
	ID       string
	Name     string
	Language string
}

// Provider abstracts one vendor TTS backend behind a single contract every
// adapter must satisfy identically.
type Provider interface {
	Name() string
	DisplayName() string
	IsConfigured() bool
	Capabilities() ProviderCapabilities
	ListVoices(ctx context.Context) ([]Voice, error)
	Synthesize(ctx context.Context, text string, voiceID string, speed float64) (SynthesisResult, error)
}

// JobStatus is one of a Job's four lifecycle states.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job is the central lifecycle record for one generation request. The Job
// Store owns every live instance; callers only ever see copies returned
// from its methods.
type Job struct {
	ID              string
	Provider        string
	VoiceID         string
	Text            string
	Speed           float64
	Status          JobStatus
	Progress        float64
	TotalChunks     int
	CompletedChunks int
	AudioFilePath   string
	TimingData      *TimingData
	ErrorMessage    string
	CreatedAt       time.Time
	CompletedAt     time.Time
}
