package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"

	"github.com/book-expert/tts-pipeline/internal/apperrors"
	"github.com/book-expert/tts-pipeline/internal/audio"
	"github.com/book-expert/tts-pipeline/internal/core"
)

// ssmlPrefix/ssmlSuffix wrap the input text so Polly honors a speed
// percentage via <prosody rate="...">. Built with plain string
// concatenation rather than encoding/xml, matching the character-offset
// arithmetic this adapter relies on: offsets returned by Polly's speech
// marks are relative to this exact wrapped string, and are corrected by
// subtracting len(ssmlPrefix) below.
const ssmlSuffix = "</prosody></speak>"

// AmazonProvider adapts Amazon Polly. The access key id and region are
// base configuration, set once at startup; the secret access key is read
// from the credential store on every call so PUT /settings can rotate it
// without a restart.
type AmazonProvider struct {
	accessKeyID string
	region      string
	creds       CredentialSource

	client *polly.Client

	voices voiceCache
}

// NewAmazonProvider builds the adapter. region defaults to us-east-1
// when empty.
func NewAmazonProvider(accessKeyID, region string, creds CredentialSource) *AmazonProvider {
	if region == "" {
		region = "us-east-1"
	}

	return &AmazonProvider{accessKeyID: accessKeyID, region: region, creds: creds}
}

func (a *AmazonProvider) Name() string        { return "amazon" }
func (a *AmazonProvider) DisplayName() string { return "Amazon Polly" }

func (a *AmazonProvider) secretAccessKey() string { return lookup(a.creds, a.Name()) }

func (a *AmazonProvider) IsConfigured() bool {
	return a.accessKeyID != "" && a.secretAccessKey() != ""
}

func (a *AmazonProvider) Capabilities() core.ProviderCapabilities {
	return core.ProviderCapabilities{
		SupportsSpeedControl: true,
		SupportsWordTiming:   true,
		MinSpeed:             0.5,
		MaxSpeed:             2.0,
		DefaultSpeed:         1.0,
		MaxChunkChars:        2800,
	}
}

func (a *AmazonProvider) getClient(ctx context.Context) (*polly.Client, error) {
	if a.client != nil {
		return a.client, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(a.region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(a.accessKeyID, a.secretAccessKey(), ""),
		),
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeProviderAuth, "failed to load AWS config", err)
	}

	a.client = polly.NewFromConfig(cfg)

	return a.client, nil
}

func (a *AmazonProvider) ListVoices(ctx context.Context) ([]core.Voice, error) {
	return a.voices.get(ctx, a.fetchVoices)
}

func (a *AmazonProvider) fetchVoices(ctx context.Context) ([]core.Voice, error) {
	client, err := a.getClient(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.DescribeVoices(ctx, &polly.DescribeVoicesInput{})
	if err != nil {
		return nil, classifyVendorError(err)
	}

	voices := make([]core.Voice, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		voices = append(voices, core.Voice{
			ID:       string(v.Id),
			Name:     *v.Name,
			Language: string(v.LanguageCode),
		})
	}

	return voices, nil
}

func (a *AmazonProvider) Synthesize(ctx context.Context, text, voiceID string, speed float64) (core.SynthesisResult, error) {
	client, err := a.getClient(ctx)
	if err != nil {
		return core.SynthesisResult{}, err
	}

	caps := a.Capabilities()
	speed = clampSpeed(speed, caps)

	ssmlPrefix := fmt.Sprintf(`<speak><prosody rate="%d%%">`, int(speed*100))
	ssml := ssmlPrefix + text + ssmlSuffix

	audioBytes, err := a.synthesizeAudio(ctx, client, ssml, voiceID)
	if err != nil {
		return core.SynthesisResult{}, err
	}

	marks, err := a.synthesizeSpeechMarks(ctx, client, ssml, voiceID)
	if err != nil {
		return core.SynthesisResult{}, err
	}

	wordTimings := make([]core.TimingEntry, 0, len(marks))

	for i, m := range marks {
		endMS := m.TimeMS
		if i+1 < len(marks) {
			endMS = marks[i+1].TimeMS
		}

		startChar := m.StartOffset - len(ssmlPrefix)
		endChar := m.EndOffset - len(ssmlPrefix)

		if startChar < 0 || endChar < 0 {
			continue
		}

		wordTimings = append(wordTimings, core.TimingEntry{
			Text:      m.Value,
			StartMS:   m.TimeMS,
			EndMS:     endMS,
			StartChar: startChar,
			EndChar:   endChar,
		})
	}

	durationMS, _ := audio.DurationMS(audioBytes)
	if durationMS == 0 {
		durationMS = lastTimingEnd(wordTimings)
	}

	return core.SynthesisResult{
		AudioBytes:  audioBytes,
		WordTimings: wordTimings,
		DurationMS:  durationMS,
	}, nil
}

func (a *AmazonProvider) synthesizeAudio(ctx context.Context, client *polly.Client, ssml, voiceID string) ([]byte, error) {
	resp, err := client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Text:         &ssml,
		TextType:     types.TextTypeSsml,
		VoiceId:      types.VoiceId(voiceID),
		OutputFormat: types.OutputFormatMp3,
	})
	if err != nil {
		return nil, classifyVendorError(err)
	}

	defer resp.AudioStream.Close()

	data, err := io.ReadAll(resp.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("amazon polly: failed to read audio stream: %w", err)
	}

	return data, nil
}

type speechMark struct {
	Time        int64  `json:"time"`
	Type        string `json:"type"`
	Value       string `json:"value"`
	StartOffset int    `json:"start"`
	EndOffset   int    `json:"end"`
}

// normalized view used once JSON field names are mapped onto TimeMS.
type normalizedMark struct {
	TimeMS      int64
	Value       string
	StartOffset int
	EndOffset   int
}

func (a *AmazonProvider) synthesizeSpeechMarks(ctx context.Context, client *polly.Client, ssml, voiceID string) ([]normalizedMark, error) {
	resp, err := client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Text:         &ssml,
		TextType:     types.TextTypeSsml,
		VoiceId:      types.VoiceId(voiceID),
		OutputFormat: types.OutputFormatJson,
		SpeechMarkTypes: []types.SpeechMarkType{
			types.SpeechMarkTypeWord,
		},
	})
	if err != nil {
		return nil, classifyVendorError(err)
	}

	defer resp.AudioStream.Close()

	var marks []normalizedMark

	scanner := bufio.NewScanner(resp.AudioStream)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var m speechMark

		if err := json.Unmarshal(line, &m); err != nil {
			continue
		}

		if m.Type != "word" {
			continue
		}

		marks = append(marks, normalizedMark{
			TimeMS:      m.Time,
			Value:       m.Value,
			StartOffset: m.StartOffset,
			EndOffset:   m.EndOffset,
		})
	}

	return marks, nil
}

func lastTimingEnd(entries []core.TimingEntry) int64 {
	if len(entries) == 0 {
		return 0
	}

	return entries[len(entries)-1].EndMS
}
