package httpapi

import "github.com/book-expert/tts-pipeline/internal/core"

// ErrorEnvelope is the single shape every error response takes.
type ErrorEnvelope struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
}

type providerCapabilitiesResponse struct {
	SupportsSpeedControl bool    `json:"supports_speed_control"`
	SupportsWordTiming   bool    `json:"supports_word_timing"`
	MinSpeed             float64 `json:"min_speed"`
	MaxSpeed             float64 `json:"max_speed"`
	DefaultSpeed         float64 `json:"default_speed"`
	MaxChunkChars        int     `json:"max_chunk_chars"`
}

type providerResponse struct {
	Name         string                       `json:"name"`
	DisplayName  string                       `json:"display_name"`
	IsConfigured bool                         `json:"is_configured"`
	Capabilities providerCapabilitiesResponse `json:"capabilities"`
}

type providersResponse struct {
	Providers []providerResponse `json:"providers"`
}

type voicesRequest struct {
	Provider string `json:"provider"`
}

type voiceResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
}

type voicesResponse struct {
	Provider string          `json:"provider"`
	Voices   []voiceResponse `json:"voices"`
}

type generateRequest struct {
	Provider string  `json:"provider"`
	VoiceID  string  `json:"voice_id"`
	Text     string  `json:"text"`
	Speed    float64 `json:"speed"`
}

type generateResponse struct {
	JobID  string         `json:"job_id"`
	Status core.JobStatus `json:"status"`
}

type jobStatusResponse struct {
	JobID           string         `json:"job_id"`
	Status          core.JobStatus `json:"status"`
	Progress        float64        `json:"progress"`
	TotalChunks     int            `json:"total_chunks"`
	CompletedChunks int            `json:"completed_chunks"`
	ErrorMessage    string         `json:"error_message,omitempty"`
}

type timingEntryResponse struct {
	Text      string `json:"text"`
	StartMS   int64  `json:"start_ms"`
	EndMS     int64  `json:"end_ms"`
	StartChar int    `json:"start_char"`
	EndChar   int    `json:"end_char"`
}

type timingDataResponse struct {
	Kind      core.TimingKind       `json:"timing_type"`
	Words     []timingEntryResponse `json:"words,omitempty"`
	Sentences []timingEntryResponse `json:"sentences,omitempty"`
}

type audioMetadataResponse struct {
	JobID      string              `json:"job_id"`
	DurationMS int64               `json:"duration_ms"`
	SizeBytes  int64               `json:"size_bytes"`
	Timing     *timingDataResponse `json:"timing,omitempty"`
}

type settingsProviderResponse struct {
	Provider     string `json:"provider"`
	IsConfigured bool   `json:"is_configured"`
}

type settingsResponse struct {
	Providers []settingsProviderResponse `json:"providers"`
}

type settingsUpdateRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}

type settingsUpdateResponse struct {
	Provider     string `json:"provider"`
	IsConfigured bool   `json:"is_configured"`
}

type dependencyStatus struct {
	Available bool `json:"available"`
}

type healthResponse struct {
	Status       string                      `json:"status"`
	Version      string                      `json:"version"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
}

func toTimingResponse(t *core.TimingData) *timingDataResponse {
	if t == nil {
		return nil
	}

	return &timingDataResponse{
		Kind:      t.Kind,
		Words:     toTimingEntries(t.Words),
		Sentences: toTimingEntries(t.Sentences),
	}
}

func toTimingEntries(entries []core.TimingEntry) []timingEntryResponse {
	if len(entries) == 0 {
		return nil
	}

	out := make([]timingEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = timingEntryResponse{
			Text:      e.Text,
			StartMS:   e.StartMS,
			EndMS:     e.EndMS,
			StartChar: e.StartChar,
			EndChar:   e.EndChar,
		}
	}

	return out
}
