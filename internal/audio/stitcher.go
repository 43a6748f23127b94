// Package audio decodes, concatenates, and re-encodes MP3 fragments into
// one continuous file, and persists the result to the audio directory on
// disk that the HTTP layer serves from.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/viert/go-lame"
)

// Constants for stitching defaults, matching the audio package's existing
// naming convention for tunables.
const (
	DEFAULT_SILENCE_BETWEEN_MS = 100
	DEFAULT_CROSSFADE_MS       = 0
	DEFAULT_BITRATE_KBPS       = 192
	PCM_BYTES_PER_SAMPLE       = 2 // 16-bit signed PCM
	PCM_CHANNELS               = 2 // go-mp3 always decodes to stereo
)

var (
	ErrNoFragments    = errors.New("audio: no fragments to stitch")
	ErrFragmentDecode = errors.New("audio: failed to decode MP3 fragment")
	ErrEncode         = errors.New("audio: failed to encode stitched MP3")
)

// StitchConfig controls how fragments are joined. SilenceBetweenMS is a
// cross-component contract: the timing normalizer must be constructed
// with this exact value, or document timing drifts relative to the audio.
type StitchConfig struct {
	SilenceBetweenMS int64
	CrossfadeMS      int64
	BitrateKbps      int
}

// DefaultStitchConfig returns the stitching defaults used when a job does
// not override them.
func DefaultStitchConfig() StitchConfig {
	return StitchConfig{
		SilenceBetweenMS: DEFAULT_SILENCE_BETWEEN_MS,
		CrossfadeMS:      DEFAULT_CROSSFADE_MS,
		BitrateKbps:      DEFAULT_BITRATE_KBPS,
	}
}

// Stitcher concatenates MP3 fragments with inserted silence between them
// and re-encodes the result as a single MP3 file.
type Stitcher struct {
	cfg StitchConfig
}

// NewStitcher builds a Stitcher from cfg.
func NewStitcher(cfg StitchConfig) *Stitcher {
	return &Stitcher{cfg: cfg}
}

// SilenceBetweenMS exposes the configured inter-chunk gap so the job
// manager can construct a timing normalizer against the same value.
func (s *Stitcher) SilenceBetweenMS() int64 {
	return s.cfg.SilenceBetweenMS
}

// StitchResult is the outcome of joining a job's fragments.
type StitchResult struct {
	AudioBytes []byte
	DurationMS int64
	SizeBytes  int64
}

// Stitch decodes every fragment to PCM, concatenates them with a silence
// gap between adjacent fragments, and re-encodes the result as MP3.
func (s *Stitcher) Stitch(fragments [][]byte) (StitchResult, error) {
	if len(fragments) == 0 {
		return StitchResult{}, ErrNoFragments
	}

	var (
		pcm        bytes.Buffer
		sampleRate int
		joinOffset []int // byte offset of each inter-fragment join within pcm
	)

	for i, fragment := range fragments {
		pcmChunk, rate, err := decodeMP3(fragment)
		if err != nil {
			return StitchResult{}, fmt.Errorf("%w: fragment %d: %w", ErrFragmentDecode, i, err)
		}

		if sampleRate == 0 {
			sampleRate = rate
		}

		pcm.Write(pcmChunk)

		if i != len(fragments)-1 {
			joinOffset = append(joinOffset, pcm.Len())
			pcm.Write(silencePCM(s.cfg.SilenceBetweenMS, sampleRate))
		}
	}

	joined := pcm.Bytes()

	if s.cfg.CrossfadeMS > 0 {
		for _, off := range joinOffset {
			applyCrossfade(joined, off, sampleRate, s.cfg.CrossfadeMS)
		}
	}

	encoded, err := encodeMP3(joined, sampleRate, s.cfg.BitrateKbps)
	if err != nil {
		return StitchResult{}, fmt.Errorf("%w: %w", ErrEncode, err)
	}

	durationMS, err := DurationMS(encoded)
	if err != nil {
		durationMS = pcmDurationMS(len(pcm.Bytes()), sampleRate)
	}

	return StitchResult{
		AudioBytes: encoded,
		DurationMS: durationMS,
		SizeBytes:  int64(len(encoded)),
	}, nil
}

// DurationMS decodes arbitrary MP3 bytes purely to measure their exact
// duration, used when serving stored-file metadata without re-stitching.
func DurationMS(mp3Bytes []byte) (int64, error) {
	pcm, rate, err := decodeMP3(mp3Bytes)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFragmentDecode, err)
	}

	return pcmDurationMS(len(pcm), rate), nil
}

func decodeMP3(data []byte) ([]byte, int, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, err
	}

	return pcm, dec.SampleRate(), nil
}

func encodeMP3(pcm []byte, sampleRate, bitrateKbps int) ([]byte, error) {
	var out bytes.Buffer

	writer, err := lame.NewWriter(&out)
	if err != nil {
		return nil, err
	}

	writer.Encoder.SetInSamplerate(sampleRate)
	writer.Encoder.SetNumChannels(PCM_CHANNELS)
	writer.Encoder.SetBrate(bitrateKbps)
	writer.Encoder.SetMode(lame.STEREO)
	writer.Encoder.SetQuality(2)
	writer.Encoder.InitParams()

	if _, err := writer.Write(pcm); err != nil {
		_ = writer.Close()

		return nil, err
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}

func silencePCM(durationMS int64, sampleRate int) []byte {
	if durationMS <= 0 || sampleRate == 0 {
		return nil
	}

	samples := int64(sampleRate) * durationMS / 1000
	bytesLen := samples * PCM_CHANNELS * PCM_BYTES_PER_SAMPLE

	return make([]byte, bytesLen)
}

func pcmDurationMS(pcmByteLen, sampleRate int) int64 {
	if sampleRate == 0 {
		return 0
	}

	frameSize := PCM_CHANNELS * PCM_BYTES_PER_SAMPLE
	samples := pcmByteLen / frameSize

	return int64(samples) * 1000 / int64(sampleRate)
}

// applyCrossfade linearly ramps the volume down across crossfadeMS before
// joinOffset and back up across crossfadeMS after it, overlapping the
// inserted silence region. It mutates pcm in place.
func applyCrossfade(pcm []byte, joinOffset, sampleRate int, crossfadeMS int64) {
	if sampleRate == 0 || crossfadeMS <= 0 {
		return
	}

	frameSize := PCM_CHANNELS * PCM_BYTES_PER_SAMPLE
	windowSamples := int(int64(sampleRate) * crossfadeMS / 1000)
	windowBytes := windowSamples * frameSize

	rampDown(pcm, joinOffset-windowBytes, joinOffset, windowSamples, frameSize)
	rampUp(pcm, joinOffset, joinOffset+windowBytes, windowSamples, frameSize)
}

func rampDown(pcm []byte, start, end, windowSamples, frameSize int) {
	scaleRegion(pcm, start, end, windowSamples, frameSize, func(step int) float64 {
		return 1.0 - float64(step)/float64(windowSamples)
	})
}

func rampUp(pcm []byte, start, end, windowSamples, frameSize int) {
	scaleRegion(pcm, start, end, windowSamples, frameSize, func(step int) float64 {
		return float64(step) / float64(windowSamples)
	})
}

func scaleRegion(pcm []byte, start, end, windowSamples, frameSize int, factor func(int) float64) {
	if start < 0 {
		start = 0
	}

	if end > len(pcm) {
		end = len(pcm)
	}

	step := 0

	for pos := start; pos+frameSize <= end; pos += frameSize {
		gain := factor(step)
		for ch := 0; ch < PCM_CHANNELS; ch++ {
			idx := pos + ch*PCM_BYTES_PER_SAMPLE
			sample := int16(pcm[idx]) | int16(pcm[idx+1])<<8
			scaled := int16(float64(sample) * gain)
			pcm[idx] = byte(scaled)
			pcm[idx+1] = byte(scaled >> 8)
		}

		step++
		if step >= windowSamples {
			step = windowSamples
		}
	}
}
