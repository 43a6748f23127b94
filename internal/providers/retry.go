package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/book-expert/tts-pipeline/internal/apperrors"
	"github.com/book-expert/tts-pipeline/internal/core"
)

// MaxRetries is the number of additional attempts made after a rate-limit
// error, for a total of MaxRetries+1 calls to synthesize.
const MaxRetries = 3

const baseBackoffSeconds = 1.0

// SynthesizeWithRetry calls provider.Synthesize, retrying only on
// ProviderRateLimitError with exponential backoff (1 * 2^attempt
// seconds). Any other error propagates immediately and unretried.
func SynthesizeWithRetry(
	ctx context.Context,
	provider core.Provider,
	text, voiceID string,
	speed float64,
) (core.SynthesisResult, error) {
	var lastErr error

	for attempt := 0; attempt <= MaxRetries; attempt++ {
		result, err := provider.Synthesize(ctx, text, voiceID, speed)
		if err == nil {
			return result, nil
		}

		appErr, ok := apperrors.As(err)
		if !ok || appErr.Code != apperrors.CodeProviderRateLimit {
			return core.SynthesisResult{}, err
		}

		lastErr = err

		if attempt == MaxRetries {
			break
		}

		backoff := time.Duration(baseBackoffSeconds*pow2(attempt)*1000) * time.Millisecond

		select {
		case <-ctx.Done():
			return core.SynthesisResult{}, fmt.Errorf("synthesis retry: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}

	return core.SynthesisResult{}, lastErr
}

func pow2(n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= 2
	}

	return result
}
