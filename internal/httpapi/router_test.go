package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-pipeline/internal/audio"
	"github.com/book-expert/tts-pipeline/internal/core"
	"github.com/book-expert/tts-pipeline/internal/credentials"
	"github.com/book-expert/tts-pipeline/internal/httpapi"
	"github.com/book-expert/tts-pipeline/internal/jobs"
	"github.com/book-expert/tts-pipeline/internal/providers"
)

type fakeProvider struct {
	name       string
	configured bool
}

func (f *fakeProvider) Name() string        { return f.name }
func (f *fakeProvider) DisplayName() string { return f.name + "-display" }
func (f *fakeProvider) IsConfigured() bool  { return f.configured }

func (f *fakeProvider) Capabilities() core.ProviderCapabilities {
	return core.ProviderCapabilities{MaxChunkChars: 1000, MinSpeed: 0.5, MaxSpeed: 2.0, DefaultSpeed: 1.0}
}

func (f *fakeProvider) ListVoices(context.Context) ([]core.Voice, error) {
	return []core.Voice{{ID: "v1", Name: "Voice One"}}, nil
}

func (f *fakeProvider) Synthesize(context.Context, string, string, float64) (core.SynthesisResult, error) {
	return core.SynthesisResult{}, nil
}

func newTestServer(t *testing.T) *httpapi.Server {
	t.Helper()

	registry := providers.NewRegistry()
	registry.Register(&fakeProvider{name: "test", configured: true})

	store := jobs.NewStore()
	audioStore := audio.NewStore(filepath.Join(t.TempDir(), "audio"))
	stitcher := audio.NewStitcher(audio.DefaultStitchConfig())
	manager := jobs.NewManager(store, registry, audioStore, stitcher, nil, nil, nil, nil, 2)

	creds := credentials.NewStore(nil)

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	return httpapi.NewServer(registry, manager, store, audioStore, creds, nil, log, "test")
}

func TestHandleHealth_ReportsDegradedWithoutBus(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}

func TestHandleListProviders(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/providers", nil)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"test"`)
}

func TestHandleGenerate_ValidationError(t *testing.T) {
	server := newTestServer(t)

	body := bytes.NewBufferString(`{"provider":"","voice_id":"v1","text":"hello","speed":1.0}`)
	req := httptest.NewRequest(http.MethodPost, "/api/generate", body)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

func TestHandleGenerate_UnknownProvider(t *testing.T) {
	server := newTestServer(t)

	body := bytes.NewBufferString(`{"provider":"nope","voice_id":"v1","text":"hello","speed":1.0}`)
	req := httptest.NewRequest(http.MethodPost, "/api/generate", body)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleJobStatus_NotFound(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/generate/missing/status", nil)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSettings_GetThenPut(t *testing.T) {
	server := newTestServer(t)

	getReq := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	getRec := httptest.NewRecorder()
	server.Router().ServeHTTP(getRec, getReq)

	assert.Equal(t, http.StatusOK, getRec.Code)
	assert.Contains(t, getRec.Body.String(), `"provider":"test"`)

	putBody := bytes.NewBufferString(`{"provider":"test","api_key":"new-key"}`)
	putReq := httptest.NewRequest(http.MethodPut, "/api/settings", putBody)
	putRec := httptest.NewRecorder()
	server.Router().ServeHTTP(putRec, putReq)

	assert.Equal(t, http.StatusOK, putRec.Code)
	assert.Contains(t, putRec.Body.String(), `"is_configured":true`)
}

func TestHandleSettings_PutUnknownProvider(t *testing.T) {
	server := newTestServer(t)

	putBody := bytes.NewBufferString(`{"provider":"nope","api_key":"key"}`)
	putReq := httptest.NewRequest(http.MethodPut, "/api/settings", putBody)
	putRec := httptest.NewRecorder()
	server.Router().ServeHTTP(putRec, putReq)

	assert.Equal(t, http.StatusBadRequest, putRec.Code)
}

func TestHandleAudioMetadata_NotCompleted(t *testing.T) {
	server := newTestServer(t)

	generateBody := bytes.NewBufferString(`{"provider":"test","voice_id":"v1","text":"hello","speed":1.0}`)
	generateReq := httptest.NewRequest(http.MethodPost, "/api/generate", generateBody)
	generateRec := httptest.NewRecorder()
	server.Router().ServeHTTP(generateRec, generateReq)

	require.Equal(t, http.StatusAccepted, generateRec.Code)

	var generated struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(generateRec.Body.Bytes(), &generated))

	req := httptest.NewRequest(http.MethodGet, "/api/audio/"+generated.JobID, nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}
