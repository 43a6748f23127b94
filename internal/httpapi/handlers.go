package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/book-expert/tts-pipeline/internal/apperrors"
	"github.com/book-expert/tts-pipeline/internal/audio"
	"github.com/book-expert/tts-pipeline/internal/core"
	"github.com/book-expert/tts-pipeline/internal/jobs"
)

const maxTextChars = 100_000

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	busAvailable := s.bus != nil && s.bus.Connected()

	status := "healthy"
	if !busAvailable {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:  status,
		Version: s.version,
		Dependencies: map[string]dependencyStatus{
			"event_bus": {Available: busAvailable},
		},
	})
}

func (s *Server) handleListProviders(w http.ResponseWriter, _ *http.Request) {
	summaries := s.registry.ListProviders()

	resp := providersResponse{Providers: make([]providerResponse, len(summaries))}
	for i, p := range summaries {
		resp.Providers[i] = providerResponse{
			Name:         p.Name,
			DisplayName:  p.DisplayName,
			IsConfigured: p.IsConfigured,
			Capabilities: providerCapabilitiesResponse{
				SupportsSpeedControl: p.Capabilities.SupportsSpeedControl,
				SupportsWordTiming:   p.Capabilities.SupportsWordTiming,
				MinSpeed:             p.Capabilities.MinSpeed,
				MaxSpeed:             p.Capabilities.MaxSpeed,
				DefaultSpeed:         p.Capabilities.DefaultSpeed,
				MaxChunkChars:        p.Capabilities.MaxChunkChars,
			},
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListVoices(w http.ResponseWriter, r *http.Request) {
	var req voicesRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.Validation("invalid request body"))

		return
	}

	provider, err := s.registry.Get(req.Provider)
	if err != nil {
		s.writeError(w, err)

		return
	}

	if !provider.IsConfigured() {
		s.writeError(w, apperrors.New(apperrors.CodeProviderNotConfigured,
			fmt.Sprintf("provider %q is not configured", req.Provider), ""))

		return
	}

	voices, err := provider.ListVoices(r.Context())
	if err != nil {
		s.writeError(w, err)

		return
	}

	resp := voicesResponse{Provider: req.Provider, Voices: make([]voiceResponse, len(voices))}
	for i, v := range voices {
		resp.Voices[i] = voiceResponse{ID: v.ID, Name: v.Name, Language: v.Language}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.Validation("invalid request body"))

		return
	}

	if err := validateGenerateRequest(&req); err != nil {
		s.writeError(w, err)

		return
	}

	job, err := s.manager.CreateJob(jobs.CreateJobRequest{
		Provider: req.Provider,
		VoiceID:  req.VoiceID,
		Text:     req.Text,
		Speed:    req.Speed,
	})
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.manager.StartProcessing(job.ID)

	writeJSON(w, http.StatusAccepted, generateResponse{JobID: job.ID, Status: job.Status})
}

func validateGenerateRequest(req *generateRequest) error {
	if req.Provider == "" {
		return apperrors.Validation("provider is required")
	}

	if req.VoiceID == "" {
		return apperrors.Validation("voice_id is required")
	}

	textLen := len([]rune(req.Text))
	if textLen == 0 {
		return apperrors.Validation("text cannot be empty")
	}

	if textLen > maxTextChars {
		return apperrors.Validation(fmt.Sprintf("text exceeds maximum length of %d characters", maxTextChars))
	}

	if req.Speed == 0 {
		req.Speed = 1.0
	}

	if req.Speed < 0.25 || req.Speed > 4.0 {
		return apperrors.Validation("speed must be between 0.25 and 4.0")
	}

	return nil
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	job, err := s.store.Get(jobID)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, jobStatusResponse{
		JobID:           job.ID,
		Status:          job.Status,
		Progress:        job.Progress,
		TotalChunks:     job.TotalChunks,
		CompletedChunks: job.CompletedChunks,
		ErrorMessage:    job.ErrorMessage,
	})
}

func (s *Server) handleAudioMetadata(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	job, err := s.requireCompletedJob(jobID)
	if err != nil {
		s.writeError(w, err)

		return
	}

	data, err := s.audioStore.Load(jobID)
	if err != nil {
		s.writeError(w, apperrors.Wrap(apperrors.CodeAudioProcessing, "failed to read stored audio", err))

		return
	}

	durationMS, err := audio.DurationMS(data)
	if err != nil {
		s.writeError(w, apperrors.Wrap(apperrors.CodeAudioProcessing, "failed to measure stored audio", err))

		return
	}

	writeJSON(w, http.StatusOK, audioMetadataResponse{
		JobID:      jobID,
		DurationMS: durationMS,
		SizeBytes:  int64(len(data)),
		Timing:     toTimingResponse(job.TimingData),
	})
}

func (s *Server) handleAudioFile(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	if _, err := s.requireCompletedJob(jobID); err != nil {
		s.writeError(w, err)

		return
	}

	data, err := s.audioStore.Load(jobID)
	if err != nil {
		s.writeError(w, apperrors.Wrap(apperrors.CodeAudioProcessing, "failed to read stored audio", err))

		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="tts-%s.mp3"`, jobID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) requireCompletedJob(jobID string) (core.Job, error) {
	job, err := s.store.Get(jobID)
	if err != nil {
		return core.Job{}, err
	}

	if job.Status != core.JobCompleted {
		return core.Job{}, apperrors.NotCompleted(fmt.Sprintf("job %s has not completed", jobID))
	}

	return job, nil
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	summaries := s.registry.ListProviders()

	resp := settingsResponse{Providers: make([]settingsProviderResponse, len(summaries))}
	for i, p := range summaries {
		resp.Providers[i] = settingsProviderResponse{Provider: p.Name, IsConfigured: p.IsConfigured}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsUpdateRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.Validation("invalid request body"))

		return
	}

	if req.Provider == "" {
		s.writeError(w, apperrors.Validation("provider is required"))

		return
	}

	if req.APIKey == "" {
		s.writeError(w, apperrors.Validation("api_key cannot be empty"))

		return
	}

	if _, err := s.registry.Get(req.Provider); err != nil {
		s.writeError(w, err)

		return
	}

	s.creds.Set(req.Provider, req.APIKey)

	writeJSON(w, http.StatusOK, settingsUpdateResponse{Provider: req.Provider, IsConfigured: true})
}
