package providers

import (
	"bytes"
	"context"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/book-expert/tts-pipeline/internal/apperrors"
	"github.com/book-expert/tts-pipeline/internal/audio"
	"github.com/book-expert/tts-pipeline/internal/core"
)

// OpenAIProvider adapts the OpenAI /v1/audio/speech endpoint. This vendor
// returns no timing data of any kind, so SupportsWordTiming is false and
// the job manager always falls back to sentence estimation for it.
type OpenAIProvider struct {
	creds CredentialSource

	voices voiceCache
}

// NewOpenAIProvider builds the adapter. The api key is looked up from
// creds on every call; if creds has no key, IsConfigured reports false.
func NewOpenAIProvider(creds CredentialSource) *OpenAIProvider {
	return &OpenAIProvider{creds: creds}
}

func (o *OpenAIProvider) Name() string        { return "openai" }
func (o *OpenAIProvider) DisplayName() string { return "OpenAI Text-to-Speech" }
func (o *OpenAIProvider) apiKey() string      { return lookup(o.creds, o.Name()) }
func (o *OpenAIProvider) IsConfigured() bool  { return o.apiKey() != "" }

func (o *OpenAIProvider) Capabilities() core.ProviderCapabilities {
	return core.ProviderCapabilities{
		SupportsSpeedControl: true,
		SupportsWordTiming:   false,
		MinSpeed:             0.25,
		MaxSpeed:             4.0,
		DefaultSpeed:         1.0,
		MaxChunkChars:        4000,
	}
}

// ListVoices returns OpenAI's fixed voice roster; the API exposes no
// voice-listing endpoint.
func (o *OpenAIProvider) ListVoices(ctx context.Context) ([]core.Voice, error) {
	return o.voices.get(ctx, o.fetchVoices)
}

func (o *OpenAIProvider) fetchVoices(_ context.Context) ([]core.Voice, error) {
	names := []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

	voices := make([]core.Voice, 0, len(names))
	for _, name := range names {
		voices = append(voices, core.Voice{ID: name, Name: name, Language: "en"})
	}

	return voices, nil
}

// getClient builds a fresh client from the current key on every call
// rather than caching one, since the underlying key can be rotated by
// PUT /settings between requests.
func (o *OpenAIProvider) getClient() *openai.Client {
	return openai.NewClient(o.apiKey())
}

func (o *OpenAIProvider) Synthesize(ctx context.Context, text, voiceID string, speed float64) (core.SynthesisResult, error) {
	if !o.IsConfigured() {
		return core.SynthesisResult{}, apperrors.New(apperrors.CodeProviderNotConfigured, "openai api key not set", "")
	}

	caps := o.Capabilities()
	speed = clampSpeed(speed, caps)

	resp, err := o.getClient().CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          openai.SpeechVoice(voiceID),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          speed,
	})
	if err != nil {
		return core.SynthesisResult{}, classifyVendorError(err)
	}

	defer resp.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp); err != nil {
		return core.SynthesisResult{}, classifyVendorError(err)
	}

	audioBytes := buf.Bytes()

	durationMS, _ := audio.DurationMS(audioBytes)

	return core.SynthesisResult{
		AudioBytes: audioBytes,
		DurationMS: durationMS,
	}, nil
}
