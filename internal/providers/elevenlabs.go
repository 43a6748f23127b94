package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/book-expert/tts-pipeline/internal/apperrors"
	"github.com/book-expert/tts-pipeline/internal/core"
)

// elevenLabsBaseURL is a var rather than a const so tests can point the
// adapter at an httptest server.
var elevenLabsBaseURL = "https://api.elevenlabs.io"

// elevenLabsRequest/Response mirror the wire shape of
// POST /v1/text-to-speech/{voice_id}/with-timestamps.
type elevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id,omitempty"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

type elevenLabsVoiceSettings struct {
	Speed float64 `json:"speed"`
}

type elevenLabsResponse struct {
	AudioBase64 string                   `json:"audio_base64"`
	Alignment   elevenLabsCharAlignment  `json:"alignment"`
	Error       *elevenLabsErrorEnvelope `json:"detail,omitempty"`
}

type elevenLabsCharAlignment struct {
	Characters             []string  `json:"characters"`
	CharacterStartTimesSec []float64 `json:"character_start_times_seconds"`
	CharacterEndTimesSec   []float64 `json:"character_end_times_seconds"`
}

type elevenLabsErrorEnvelope struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ElevenLabsProvider adapts the ElevenLabs REST API. There is no Go SDK
// for this vendor, so it is a plain net/http JSON client following the
// validate/build/send/process chain used elsewhere in this codebase for
// REST-backed integrations.
type ElevenLabsProvider struct {
	creds      CredentialSource
	httpClient *http.Client

	voices voiceCache
}

// NewElevenLabsProvider builds the adapter. The api key is looked up from
// creds on every call, so a PUT /settings update takes effect immediately;
// if creds has no key, IsConfigured reports false and Synthesize/ListVoices
// fail fast.
func NewElevenLabsProvider(creds CredentialSource) *ElevenLabsProvider {
	return &ElevenLabsProvider{
		creds:      creds,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *ElevenLabsProvider) Name() string        { return "elevenlabs" }
func (e *ElevenLabsProvider) DisplayName() string { return "ElevenLabs" }
func (e *ElevenLabsProvider) apiKey() string      { return lookup(e.creds, e.Name()) }
func (e *ElevenLabsProvider) IsConfigured() bool  { return e.apiKey() != "" }

func (e *ElevenLabsProvider) Capabilities() core.ProviderCapabilities {
	return core.ProviderCapabilities{
		SupportsSpeedControl: true,
		SupportsWordTiming:   true,
		MinSpeed:             0.7,
		MaxSpeed:             1.2,
		DefaultSpeed:         1.0,
		MaxChunkChars:        4500,
	}
}

func (e *ElevenLabsProvider) ListVoices(ctx context.Context) ([]core.Voice, error) {
	return e.voices.get(ctx, e.fetchVoices)
}

func (e *ElevenLabsProvider) fetchVoices(ctx context.Context) ([]core.Voice, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, elevenLabsBaseURL+"/v1/voices", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: failed to build voices request: %w", err)
	}

	httpReq.Header.Set("xi-api-key", e.apiKey())

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeProviderAPI, "elevenlabs voices request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, e.classifyStatus(resp)
	}

	var body struct {
		Voices []struct {
			VoiceID string `json:"voice_id"`
			Name    string `json:"name"`
		} `json:"voices"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("elevenlabs: failed to decode voices response: %w", err)
	}

	voices := make([]core.Voice, 0, len(body.Voices))
	for _, v := range body.Voices {
		voices = append(voices, core.Voice{ID: v.VoiceID, Name: v.Name, Language: ""})
	}

	return voices, nil
}

func (e *ElevenLabsProvider) Synthesize(ctx context.Context, text, voiceID string, speed float64) (core.SynthesisResult, error) {
	if err := e.validateRequest(text, voiceID); err != nil {
		return core.SynthesisResult{}, err
	}

	caps := e.Capabilities()
	speed = clampSpeed(speed, caps)

	httpReq, err := e.buildRequest(ctx, text, voiceID, speed)
	if err != nil {
		return core.SynthesisResult{}, err
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return core.SynthesisResult{}, apperrors.Wrap(apperrors.CodeProviderAPI, "elevenlabs request failed", err)
	}
	defer resp.Body.Close()

	return e.processResponse(resp)
}

func (e *ElevenLabsProvider) validateRequest(text, voiceID string) error {
	if !e.IsConfigured() {
		return apperrors.New(apperrors.CodeProviderNotConfigured, "elevenlabs api key not set", "")
	}

	if text == "" {
		return apperrors.Validation("text cannot be empty")
	}

	if voiceID == "" {
		return apperrors.Validation("voice_id cannot be empty")
	}

	return nil
}

func (e *ElevenLabsProvider) buildRequest(ctx context.Context, text, voiceID string, speed float64) (*http.Request, error) {
	payload := elevenLabsRequest{
		Text:          text,
		ModelID:       "eleven_multilingual_v2",
		VoiceSettings: elevenLabsVoiceSettings{Speed: speed},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s/with-timestamps", elevenLabsBaseURL, voiceID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: failed to build request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", e.apiKey())

	return httpReq, nil
}

func (e *ElevenLabsProvider) processResponse(resp *http.Response) (core.SynthesisResult, error) {
	if resp.StatusCode != http.StatusOK {
		return core.SynthesisResult{}, e.classifyStatus(resp)
	}

	var decoded elevenLabsResponse

	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return core.SynthesisResult{}, fmt.Errorf("elevenlabs: failed to decode response: %w", err)
	}

	audioBytes, err := base64.StdEncoding.DecodeString(decoded.AudioBase64)
	if err != nil {
		return core.SynthesisResult{}, fmt.Errorf("elevenlabs: failed to decode audio payload: %w", err)
	}

	wordTimings, durationMS := charAlignmentToWords(decoded.Alignment)

	return core.SynthesisResult{
		AudioBytes:  audioBytes,
		WordTimings: wordTimings,
		DurationMS:  durationMS,
	}, nil
}

func (e *ElevenLabsProvider) classifyStatus(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.New(apperrors.CodeProviderAuth, "elevenlabs rejected credentials", string(body))
	case http.StatusTooManyRequests:
		return apperrors.New(apperrors.CodeProviderRateLimit, "elevenlabs rate limit exceeded", string(body))
	default:
		return apperrors.New(apperrors.CodeProviderAPI, fmt.Sprintf("elevenlabs returned status %d", resp.StatusCode), string(body))
	}
}

// charAlignmentToWords groups consecutive non-space characters into
// words and derives each word's time range from its first and last
// character's alignment entries.
func charAlignmentToWords(alignment elevenLabsCharAlignment) ([]core.TimingEntry, int64) {
	var entries []core.TimingEntry

	n := len(alignment.Characters)
	i := 0

	for i < n {
		if alignment.Characters[i] == " " {
			i++

			continue
		}

		start := i
		for i < n && alignment.Characters[i] != " " {
			i++
		}

		end := i

		word := ""
		for _, c := range alignment.Characters[start:end] {
			word += c
		}

		entries = append(entries, core.TimingEntry{
			Text:      word,
			StartMS:   int64(alignment.CharacterStartTimesSec[start] * 1000),
			EndMS:     int64(alignment.CharacterEndTimesSec[end-1] * 1000),
			StartChar: start,
			EndChar:   end,
		})
	}

	var durationMS int64
	if n > 0 {
		durationMS = int64(alignment.CharacterEndTimesSec[n-1] * 1000)
	}

	return entries, durationMS
}
