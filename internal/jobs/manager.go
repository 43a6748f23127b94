package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-pipeline/internal/apperrors"
	"github.com/book-expert/tts-pipeline/internal/audio"
	"github.com/book-expert/tts-pipeline/internal/chunker"
	"github.com/book-expert/tts-pipeline/internal/core"
	"github.com/book-expert/tts-pipeline/internal/providers"
	"github.com/book-expert/tts-pipeline/internal/timing"
)

// ProgressPublisher is notified whenever a job's progress or status
// changes. The event bus implements this to fan updates out to
// subscribers without the manager depending on its transport.
type ProgressPublisher interface {
	PublishProgress(job core.Job)
}

// AudioMirror receives a best-effort durable copy of completed audio. A
// mirror failure is logged and never fails the job.
type AudioMirror interface {
	Mirror(ctx context.Context, jobID string, data []byte)
}

// TextPreprocessor normalizes raw input text before it is chunked.
// internal/textprep.Preprocessor satisfies this; it is optional.
type TextPreprocessor interface {
	Process(text string) string
}

// Manager owns job admission and the full processing lifecycle.
type Manager struct {
	store        *Store
	registry     *providers.Registry
	audioStore   *audio.Store
	stitcher     *audio.Stitcher
	log          *logger.Logger
	publisher    ProgressPublisher
	mirror       AudioMirror
	preprocessor TextPreprocessor
	dispatcher   *Dispatcher
}

// NewManager builds a Manager. publisher, mirror, and preprocessor may
// be nil.
func NewManager(
	store *Store,
	registry *providers.Registry,
	audioStore *audio.Store,
	stitcher *audio.Stitcher,
	log *logger.Logger,
	publisher ProgressPublisher,
	mirror AudioMirror,
	preprocessor TextPreprocessor,
	maxConcurrentJobs int,
) *Manager {
	return &Manager{
		store:        store,
		registry:     registry,
		audioStore:   audioStore,
		stitcher:     stitcher,
		log:          log,
		publisher:    publisher,
		mirror:       mirror,
		preprocessor: preprocessor,
		dispatcher:   NewDispatcher(maxConcurrentJobs),
	}
}

// CreateJobRequest is the validated input to CreateJob.
type CreateJobRequest struct {
	Provider string
	VoiceID  string
	Text     string
	Speed    float64
}

// CreateJob admits a request: it validates the provider, chunks the text,
// and inserts a pending Job. It does not start processing.
func (m *Manager) CreateJob(req CreateJobRequest) (core.Job, error) {
	provider, err := m.registry.Get(req.Provider)
	if err != nil {
		return core.Job{}, err
	}

	if !provider.IsConfigured() {
		return core.Job{}, apperrors.New(apperrors.CodeProviderNotConfigured,
			fmt.Sprintf("provider %q is not configured", req.Provider), "")
	}

	caps := provider.Capabilities()

	text := req.Text
	if m.preprocessor != nil {
		text = m.preprocessor.Process(text)
	}

	chunks, err := chunker.Split(text, caps.MaxChunkChars)
	if err != nil {
		return core.Job{}, apperrors.Validation(err.Error())
	}

	job := core.Job{
		ID:          uuid.NewString(),
		Provider:    req.Provider,
		VoiceID:     req.VoiceID,
		Text:        text,
		Speed:       req.Speed,
		Status:      core.JobPending,
		TotalChunks: len(chunks),
		CreatedAt:   time.Now().UTC(),
	}

	m.store.Create(job)

	return job, nil
}

// StartProcessing launches process_job as a goroutine owned by the
// manager, bounded by the dispatcher's concurrent-job semaphore. It never
// blocks the caller beyond acquiring that slot.
func (m *Manager) StartProcessing(jobID string) {
	m.dispatcher.Dispatch(func() {
		m.processJob(jobID)
	})
}

// processJob walks a job's chunks sequentially; nothing it does can
// escape as a panic or a propagated error, matching the contract that no
// exception ever leaves background job processing.
func (m *Manager) processJob(jobID string) {
	defer func() {
		if r := recover(); r != nil {
			m.failJob(jobID, fmt.Errorf("panic during job processing: %v", r))
		}
	}()

	if err := m.runJob(jobID); err != nil {
		m.failJob(jobID, err)
	}
}

func (m *Manager) runJob(jobID string) error {
	job, err := m.store.Get(jobID)
	if err != nil {
		return err
	}

	provider, err := m.registry.Get(job.Provider)
	if err != nil {
		return err
	}

	caps := provider.Capabilities()

	chunks, err := chunker.Split(job.Text, caps.MaxChunkChars)
	if err != nil {
		return apperrors.Validation(err.Error())
	}

	job, err = m.store.Update(jobID, func(j *core.Job) {
		j.Status = core.JobInProgress
		j.TotalChunks = len(chunks)
	})
	if err != nil {
		return err
	}

	m.notify(job)

	ctx := context.Background()

	results := make([]core.SynthesisResult, 0, len(chunks))

	hasWordTimings := false
	hasSentenceTimings := false

	for _, chunk := range chunks {
		result, synthErr := providers.SynthesizeWithRetry(ctx, provider, chunk.Text, job.VoiceID, job.Speed)
		if synthErr != nil {
			return synthErr
		}

		if len(result.WordTimings) > 0 {
			hasWordTimings = true
		}

		if len(result.SentenceTimings) > 0 {
			hasSentenceTimings = true
		}

		results = append(results, result)

		job, err = m.store.Update(jobID, func(j *core.Job) {
			j.CompletedChunks++
			j.Progress = float64(j.CompletedChunks) / float64(j.TotalChunks)
		})
		if err != nil {
			return err
		}

		m.notify(job)
	}

	return m.finishJob(ctx, jobID, job.Text, chunks, results, hasWordTimings, hasSentenceTimings)
}

func (m *Manager) finishJob(
	ctx context.Context,
	jobID string,
	originalText string,
	chunks []core.TextChunk,
	results []core.SynthesisResult,
	hasWordTimings, hasSentenceTimings bool,
) error {
	fragments := make([][]byte, len(results))
	for i, r := range results {
		fragments[i] = r.AudioBytes
	}

	stitched, err := m.stitcher.Stitch(fragments)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeAudioProcessing, "failed to stitch audio", err)
	}

	path, err := m.audioStore.Save(jobID, stitched.AudioBytes)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeAudioProcessing, "failed to persist audio", err)
	}

	normalizer := timing.NewNormalizer(m.stitcher.SilenceBetweenMS())

	var timingData core.TimingData

	switch {
	case hasWordTimings:
		timingData = normalizer.MergeWords(chunks, results)
	case hasSentenceTimings:
		timingData = normalizer.MergeSentences(chunks, results)
	default:
		timingData = timing.EstimateSentences(originalText, stitched.DurationMS)
	}

	job, err := m.store.Update(jobID, func(j *core.Job) {
		j.AudioFilePath = path
		j.TimingData = &timingData
		j.Status = core.JobCompleted
		j.Progress = 1.0
		j.CompletedAt = time.Now().UTC()
	})
	if err != nil {
		return err
	}

	m.notify(job)

	if m.mirror != nil {
		m.mirror.Mirror(ctx, jobID, stitched.AudioBytes)
	}

	return nil
}

func (m *Manager) failJob(jobID string, cause error) {
	message := apperrors.Sanitize(cause.Error())

	job, err := m.store.Update(jobID, func(j *core.Job) {
		j.Status = core.JobFailed
		j.ErrorMessage = message
		j.CompletedAt = time.Now().UTC()
	})
	if err != nil {
		if m.log != nil {
			m.log.Error("failed to record job failure for %s: %v", jobID, err)
		}

		return
	}

	if m.log != nil {
		m.log.Error("job %s failed: %s", jobID, message)
	}

	m.notify(job)
}

func (m *Manager) notify(job core.Job) {
	if m.publisher != nil {
		m.publisher.PublishProgress(job)
	}
}
