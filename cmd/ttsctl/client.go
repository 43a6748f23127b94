package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// apiClient is a thin JSON/HTTP wrapper over the tts-pipeline API surface,
// scoped to what this command-line tool needs.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type providerCapabilities struct {
	MaxChunkChars int `json:"max_chunk_chars"`
}

type providerEntry struct {
	Name         string               `json:"name"`
	IsConfigured bool                 `json:"is_configured"`
	Capabilities providerCapabilities `json:"capabilities"`
}

type providersResponse struct {
	Providers []providerEntry `json:"providers"`
}

type generateResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type jobStatusResponse struct {
	JobID           string  `json:"job_id"`
	Status          string  `json:"status"`
	Progress        float64 `json:"progress"`
	TotalChunks     int     `json:"total_chunks"`
	CompletedChunks int     `json:"completed_chunks"`
	ErrorMessage    string  `json:"error_message"`
}

type errorEnvelope struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Details   string `json:"details"`
}

func (c *apiClient) Health(ctx context.Context) (healthResponse, error) {
	var out healthResponse

	err := c.doJSON(ctx, http.MethodGet, "/api/health", nil, &out)

	return out, err
}

func (c *apiClient) ListProviders(ctx context.Context) (providersResponse, error) {
	var out providersResponse

	err := c.doJSON(ctx, http.MethodGet, "/api/providers", nil, &out)

	return out, err
}

func (c *apiClient) Generate(ctx context.Context, provider, voiceID, text string, speed float64) (string, error) {
	req := map[string]any{
		"provider": provider,
		"voice_id": voiceID,
		"text":     text,
		"speed":    speed,
	}

	var out generateResponse

	if err := c.doJSON(ctx, http.MethodPost, "/api/generate", req, &out); err != nil {
		return "", err
	}

	return out.JobID, nil
}

func (c *apiClient) JobStatus(ctx context.Context, jobID string) (jobStatusResponse, error) {
	var out jobStatusResponse

	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/generate/%s/status", jobID), nil, &out)

	return out, err
}

func (c *apiClient) DownloadAudio(ctx context.Context, jobID, outputPath string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+fmt.Sprintf("/api/audio/%s/file", jobID), http.NoBody)
	if err != nil {
		return fmt.Errorf("ttsctl: failed to build download request: %w", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("ttsctl: download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ttsctl: failed to read audio response: %w", err)
	}

	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("ttsctl: failed to write audio file: %w", err)
	}

	return nil
}

func (c *apiClient) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var bodyReader io.Reader

	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ttsctl: failed to encode request body: %w", err)
		}

		bodyReader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("ttsctl: failed to build request: %w", err)
	}

	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("ttsctl: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ttsctl: failed to decode response: %w", err)
	}

	return nil
}

func decodeAPIError(resp *http.Response) error {
	var envelope errorEnvelope

	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("ttsctl: request failed with status %d", resp.StatusCode)
	}

	return fmt.Errorf("ttsctl: %s: %s", envelope.ErrorCode, envelope.Message)
}
