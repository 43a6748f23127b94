package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"

	"github.com/book-expert/tts-pipeline/internal/apperrors"
	"github.com/book-expert/tts-pipeline/internal/audio"
	"github.com/book-expert/tts-pipeline/internal/core"
)

// GoogleProvider adapts Google Cloud Text-to-Speech. The underlying gRPC
// client blocks, so every call here is expected to run on a goroutine the
// retry wrapper's caller owns, per the blocking-safe bridging contract.
type GoogleProvider struct {
	// credentialsPath is base configuration only: a service-account file
	// path is not something PUT /settings can usefully hot-swap, so it is
	// set once at startup rather than read from the credential store.
	credentialsPath string
	creds           CredentialSource

	mu     sync.Mutex
	client *texttospeech.Client

	voices voiceCache
}

// NewGoogleProvider builds the adapter from a service-account
// credentials file path (base config) plus a credential store consulted
// for a bare API key on every call; at least one must be present for
// IsConfigured to report true.
func NewGoogleProvider(credentialsPath string, creds CredentialSource) *GoogleProvider {
	return &GoogleProvider{credentialsPath: credentialsPath, creds: creds}
}

func (g *GoogleProvider) Name() string        { return "google" }
func (g *GoogleProvider) DisplayName() string { return "Google Cloud Text-to-Speech" }

func (g *GoogleProvider) apiKey() string { return lookup(g.creds, g.Name()) }

func (g *GoogleProvider) IsConfigured() bool {
	return g.credentialsPath != "" || g.apiKey() != ""
}

func (g *GoogleProvider) Capabilities() core.ProviderCapabilities {
	return core.ProviderCapabilities{
		SupportsSpeedControl: true,
		SupportsWordTiming:   true,
		MinSpeed:             0.25,
		MaxSpeed:             4.0,
		DefaultSpeed:         1.0,
		MaxChunkChars:        4500,
	}
}

func (g *GoogleProvider) clientOptions() []option.ClientOption {
	if g.credentialsPath != "" {
		return []option.ClientOption{option.WithCredentialsFile(g.credentialsPath)}
	}

	return []option.ClientOption{option.WithAPIKey(g.apiKey())}
}

func (g *GoogleProvider) getClient(ctx context.Context) (*texttospeech.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}

	client, err := texttospeech.NewClient(ctx, g.clientOptions()...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeProviderAuth, "failed to create Google TTS client", err)
	}

	g.client = client

	return client, nil
}

func (g *GoogleProvider) ListVoices(ctx context.Context) ([]core.Voice, error) {
	return g.voices.get(ctx, g.fetchVoices)
}

func (g *GoogleProvider) fetchVoices(ctx context.Context) ([]core.Voice, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{})
	if err != nil {
		return nil, classifyGoogleError(err)
	}

	voices := make([]core.Voice, 0, len(resp.GetVoices()))
	for _, v := range resp.GetVoices() {
		lang := ""
		if codes := v.GetLanguageCodes(); len(codes) > 0 {
			lang = codes[0]
		}

		voices = append(voices, core.Voice{ID: v.GetName(), Name: v.GetName(), Language: lang})
	}

	return voices, nil
}

func (g *GoogleProvider) Synthesize(ctx context.Context, text, voiceID string, speed float64) (core.SynthesisResult, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return core.SynthesisResult{}, err
	}

	caps := g.Capabilities()
	speed = clampSpeed(speed, caps)

	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			Name:         voiceID,
			LanguageCode: languageCodeFromVoiceID(voiceID),
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
			SpeakingRate:  speed,
		},
	}

	resp, err := client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return core.SynthesisResult{}, classifyGoogleError(err)
	}

	// The API does not return timepoints outside SSML mark input; word
	// timing is approximated by splitting the audio duration evenly
	// across the plain-text word boundaries, a known approximation this
	// adapter inherits rather than hides.
	durationMS, _ := audio.DurationMS(resp.GetAudioContent())

	return core.SynthesisResult{
		AudioBytes:  resp.GetAudioContent(),
		WordTimings: estimateWordTimingsByLength(text, durationMS),
		DurationMS:  durationMS,
	}, nil
}

func languageCodeFromVoiceID(voiceID string) string {
	parts := strings.Split(voiceID, "-")
	if len(parts) >= 2 {
		return parts[0] + "-" + parts[1]
	}

	return "en-US"
}

func classifyGoogleError(err error) error {
	return classifyVendorError(err)
}

// estimateWordTimingsByLength splits a known total duration evenly across
// whitespace-delimited words, in proportion to each word's own length,
// used by providers that return no native timing at all.
func estimateWordTimingsByLength(text string, durationMS int64) []core.TimingEntry {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	totalLen := 0
	for _, w := range words {
		totalLen += len([]rune(w))
	}

	if totalLen == 0 {
		return nil
	}

	entries := make([]core.TimingEntry, 0, len(words))

	var cursorMS int64

	charCursor := 0

	for _, w := range words {
		idx := strings.Index(text[charCursor:], w)
		if idx < 0 {
			idx = 0
		}

		startChar := charCursor + len([]rune(text[charCursor:][:idx]))
		endChar := startChar + len([]rune(w))

		wordMS := durationMS * int64(len([]rune(w))) / int64(totalLen)

		entries = append(entries, core.TimingEntry{
			Text:      w,
			StartMS:   cursorMS,
			EndMS:     cursorMS + wordMS,
			StartChar: startChar,
			EndChar:   endChar,
		})

		cursorMS += wordMS
		charCursor = endChar
	}

	if len(entries) > 0 {
		entries[len(entries)-1].EndMS = durationMS
	}

	return entries
}

func clampSpeed(speed float64, caps core.ProviderCapabilities) float64 {
	if speed < caps.MinSpeed {
		return caps.MinSpeed
	}

	if speed > caps.MaxSpeed {
		return caps.MaxSpeed
	}

	return speed
}

func classifyVendorError(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "unauthenticated") || strings.Contains(msg, "permission") || strings.Contains(msg, "credentials"):
		return apperrors.Wrap(apperrors.CodeProviderAuth, "provider rejected credentials", err)
	case strings.Contains(msg, "quota") || strings.Contains(msg, "rate") || strings.Contains(msg, "429") || strings.Contains(msg, "throttl"):
		return apperrors.Wrap(apperrors.CodeProviderRateLimit, "provider rate limit exceeded", err)
	default:
		return apperrors.Wrap(apperrors.CodeProviderAPI, fmt.Sprintf("provider request failed: %v", err), err)
	}
}
