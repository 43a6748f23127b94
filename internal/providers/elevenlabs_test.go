package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/book-expert/tts-pipeline/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// elevenLabsTestBaseURL points the package-level base URL at an httptest
// server for the duration of a test, returning a func to restore it.
func elevenLabsTestBaseURL(url string) func() {
	prev := elevenLabsBaseURL
	elevenLabsBaseURL = url

	return func() { elevenLabsBaseURL = prev }
}

func TestElevenLabsProvider_NotConfigured(t *testing.T) {
	p := NewElevenLabsProvider(stubCreds{})
	assert.False(t, p.IsConfigured())

	_, err := p.Synthesize(context.Background(), "hi", "voice1", 1.0)
	require.Error(t, err)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeProviderNotConfigured, appErr.Code)
}

func TestElevenLabsProvider_EmptyText(t *testing.T) {
	p := NewElevenLabsProvider(stubCreds{"elevenlabs": "test-key"})

	_, err := p.Synthesize(context.Background(), "", "voice1", 1.0)
	require.Error(t, err)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeValidation, appErr.Code)
}

func TestElevenLabsProvider_RateLimitClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"detail":{"message":"slow down","status":"rate_limit"}}`))
	}))
	defer server.Close()

	p := NewElevenLabsProvider(stubCreds{"elevenlabs": "test-key"})
	p.httpClient = server.Client()

	origURL := elevenLabsTestBaseURL(server.URL)
	defer origURL()

	_, err := p.Synthesize(context.Background(), "hello", "voice1", 1.0)
	require.Error(t, err)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeProviderRateLimit, appErr.Code)
}

func TestCharAlignmentToWords(t *testing.T) {
	alignment := elevenLabsCharAlignment{
		Characters:             []string{"h", "i", " ", "y", "o", "u"},
		CharacterStartTimesSec: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5},
		CharacterEndTimesSec:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6},
	}

	words, durationMS := charAlignmentToWords(alignment)

	require.Len(t, words, 2)
	assert.Equal(t, "hi", words[0].Text)
	assert.Equal(t, "you", words[1].Text)
	assert.Equal(t, int64(600), durationMS)
}

func TestElevenLabsProvider_SuccessDecodesBase64Audio(t *testing.T) {
	audioBytes := []byte("fake-mp3-bytes")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := elevenLabsResponse{
			AudioBase64: base64.StdEncoding.EncodeToString(audioBytes),
			Alignment: elevenLabsCharAlignment{
				Characters:             []string{"h", "i"},
				CharacterStartTimesSec: []float64{0, 0.1},
				CharacterEndTimesSec:   []float64{0.1, 0.2},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := NewElevenLabsProvider(stubCreds{"elevenlabs": "test-key"})
	p.httpClient = server.Client()

	restore := elevenLabsTestBaseURL(server.URL)
	defer restore()

	result, err := p.Synthesize(context.Background(), "hi", "voice1", 1.0)
	require.NoError(t, err)
	assert.Equal(t, audioBytes, result.AudioBytes)
	assert.Equal(t, int64(200), result.DurationMS)
}
