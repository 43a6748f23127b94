package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/book-expert/tts-pipeline/internal/apperrors"
	"github.com/book-expert/tts-pipeline/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	core.Provider

	calls     int
	failTimes int
	failErr   error
	result    core.SynthesisResult
}

func (s *stubProvider) Synthesize(_ context.Context, _, _ string, _ float64) (core.SynthesisResult, error) {
	s.calls++
	if s.calls <= s.failTimes {
		return core.SynthesisResult{}, s.failErr
	}

	return s.result, nil
}

func TestSynthesizeWithRetry_RecoversAfterRateLimits(t *testing.T) {
	stub := &stubProvider{
		failTimes: 2,
		failErr:   apperrors.New(apperrors.CodeProviderRateLimit, "rate limited", ""),
		result:    core.SynthesisResult{DurationMS: 500},
	}

	result, err := SynthesizeWithRetry(context.Background(), stub, "hi", "v1", 1.0)
	require.NoError(t, err)
	assert.Equal(t, int64(500), result.DurationMS)
	assert.Equal(t, 3, stub.calls)
}

func TestSynthesizeWithRetry_ExhaustsRetries(t *testing.T) {
	stub := &stubProvider{
		failTimes: 10,
		failErr:   apperrors.New(apperrors.CodeProviderRateLimit, "rate limited", ""),
	}

	_, err := SynthesizeWithRetry(context.Background(), stub, "hi", "v1", 1.0)
	require.Error(t, err)
	assert.Equal(t, MaxRetries+1, stub.calls)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeProviderRateLimit, appErr.Code)
}

func TestSynthesizeWithRetry_NonRateLimitFailsImmediately(t *testing.T) {
	stub := &stubProvider{
		failTimes: 1,
		failErr:   apperrors.New(apperrors.CodeProviderAuth, "bad credentials", ""),
	}

	_, err := SynthesizeWithRetry(context.Background(), stub, "hi", "v1", 1.0)
	require.Error(t, err)
	assert.Equal(t, 1, stub.calls)
}

func TestSynthesizeWithRetry_ContextCancelledDuringBackoff(t *testing.T) {
	stub := &stubProvider{
		failTimes: 5,
		failErr:   apperrors.New(apperrors.CodeProviderRateLimit, "rate limited", ""),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := SynthesizeWithRetry(ctx, stub, "hi", "v1", 1.0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
