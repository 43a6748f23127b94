package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/tts-pipeline/internal/apperrors"
	"github.com/book-expert/tts-pipeline/internal/audio"
	"github.com/book-expert/tts-pipeline/internal/core"
	"github.com/book-expert/tts-pipeline/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name       string
	configured bool
	fail       error
	result     core.SynthesisResult
}

func (f *fakeProvider) Name() string        { return f.name }
func (f *fakeProvider) DisplayName() string { return f.name }
func (f *fakeProvider) IsConfigured() bool  { return f.configured }

func (f *fakeProvider) Capabilities() core.ProviderCapabilities {
	return core.ProviderCapabilities{MaxChunkChars: 1000, MinSpeed: 0.5, MaxSpeed: 2.0, DefaultSpeed: 1.0}
}

func (f *fakeProvider) ListVoices(context.Context) ([]core.Voice, error) { return nil, nil }

func (f *fakeProvider) Synthesize(context.Context, string, string, float64) (core.SynthesisResult, error) {
	if f.fail != nil {
		return core.SynthesisResult{}, f.fail
	}

	return f.result, nil
}

func newTestManager(t *testing.T, provider core.Provider) (*Manager, *Store) {
	t.Helper()

	registry := providers.NewRegistry()
	registry.Register(provider)

	store := NewStore()
	audioStore := audio.NewStore(filepath.Join(t.TempDir(), "audio"))
	stitcher := audio.NewStitcher(audio.DefaultStitchConfig())

	manager := NewManager(store, registry, audioStore, stitcher, nil, nil, nil, nil, 2)

	return manager, store
}

func TestManager_CreateJob_UnconfiguredProvider(t *testing.T) {
	manager, _ := newTestManager(t, &fakeProvider{name: "test", configured: false})

	_, err := manager.CreateJob(CreateJobRequest{Provider: "test", Text: "hello world", Speed: 1.0})
	require.Error(t, err)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeProviderNotConfigured, appErr.Code)
}

type upperPreprocessor struct{}

func (upperPreprocessor) Process(text string) string { return text + " [done]" }

func TestManager_CreateJob_AppliesPreprocessor(t *testing.T) {
	registry := providers.NewRegistry()
	registry.Register(&fakeProvider{name: "test", configured: true})

	store := NewStore()
	audioStore := audio.NewStore(filepath.Join(t.TempDir(), "audio"))
	stitcher := audio.NewStitcher(audio.DefaultStitchConfig())

	manager := NewManager(store, registry, audioStore, stitcher, nil, nil, nil, upperPreprocessor{}, 2)

	job, err := manager.CreateJob(CreateJobRequest{Provider: "test", Text: "hello world", Speed: 1.0})
	require.NoError(t, err)
	assert.Equal(t, "hello world [done]", job.Text)
}

func TestManager_CreateJob_UnknownProvider(t *testing.T) {
	manager, _ := newTestManager(t, &fakeProvider{name: "test", configured: true})

	_, err := manager.CreateJob(CreateJobRequest{Provider: "nope", Text: "hello", Speed: 1.0})
	require.Error(t, err)
}

func TestManager_ProcessJob_SuccessPath(t *testing.T) {
	t.Skip("end-to-end synthesis requires real MP3 fixtures; exercised via integration fixtures instead")
}

func TestManager_ProcessJob_FailureRecordsSanitizedMessage(t *testing.T) {
	leaky := "token abcdefghijklmnopqrstuvwxyz0123456789 at https://example.com/secret"
	provider := &fakeProvider{
		name:       "test",
		configured: true,
		fail:       apperrors.Wrap(apperrors.CodeProviderAPI, leaky, errors.New(leaky)),
	}

	manager, store := newTestManager(t, provider)

	job, err := manager.CreateJob(CreateJobRequest{Provider: "test", Text: "hello world", Speed: 1.0})
	require.NoError(t, err)

	manager.processJob(job.ID)

	got, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobFailed, got.Status)
	assert.NotContains(t, got.ErrorMessage, "abcdefghijklmnopqrstuvwxyz0123456789")
	assert.NotContains(t, got.ErrorMessage, "https://example.com")
}

func TestStore_CleanupOldJobs(t *testing.T) {
	store := NewStore()
	store.Create(core.Job{ID: "old", CreatedAt: time.Now().Add(-48 * time.Hour)})
	store.Create(core.Job{ID: "new", CreatedAt: time.Now()})

	removed := store.CleanupOldJobs(time.Now(), 24*time.Hour)
	assert.Equal(t, 1, removed)

	_, err := store.Get("old")
	require.Error(t, err)

	_, err = store.Get("new")
	require.NoError(t, err)
}

func TestDispatcher_BoundsConcurrency(t *testing.T) {
	d := NewDispatcher(1)

	running := make(chan struct{})
	release := make(chan struct{})

	d.Dispatch(func() {
		running <- struct{}{}
		<-release
	})

	<-running

	done := make(chan struct{})

	d.Dispatch(func() {
		close(done)
	})

	select {
	case <-done:
		t.Fatal("second job should not run while first holds the only slot")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	d.Wait()
}
