// Package httpapi exposes the generation pipeline over HTTP: provider
// discovery, voice listing, job admission and polling, audio download,
// runtime credential settings, and a health probe.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-pipeline/internal/audio"
	"github.com/book-expert/tts-pipeline/internal/credentials"
	"github.com/book-expert/tts-pipeline/internal/eventbus"
	"github.com/book-expert/tts-pipeline/internal/jobs"
	"github.com/book-expert/tts-pipeline/internal/providers"
)

// Server bundles every dependency the HTTP handlers need.
type Server struct {
	registry   *providers.Registry
	manager    *jobs.Manager
	store      *jobs.Store
	audioStore *audio.Store
	creds      *credentials.Store
	bus        *eventbus.Bus
	log        *logger.Logger
	version    string
}

// NewServer builds the Server. bus may be nil (health then always
// reports the event bus as unavailable).
func NewServer(
	registry *providers.Registry,
	manager *jobs.Manager,
	store *jobs.Store,
	audioStore *audio.Store,
	creds *credentials.Store,
	bus *eventbus.Bus,
	log *logger.Logger,
	version string,
) *Server {
	return &Server{
		registry:   registry,
		manager:    manager,
		store:      store,
		audioStore: audioStore,
		creds:      creds,
		bus:        bus,
		log:        log,
		version:    version,
	}
}

// Router builds the full route table, in the same fixed order the
// reference implementation registers its sub-routers: health, providers,
// voices, generate, audio, settings.
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()
	router.Use(requestIDMiddleware(s.log))
	router.Use(s.recoveryMiddleware)

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/providers", s.handleListProviders).Methods(http.MethodGet)
	api.HandleFunc("/voices", s.handleListVoices).Methods(http.MethodPost)
	api.HandleFunc("/generate", s.handleGenerate).Methods(http.MethodPost)
	api.HandleFunc("/generate/{id}/status", s.handleJobStatus).Methods(http.MethodGet)
	api.HandleFunc("/audio/{id}", s.handleAudioMetadata).Methods(http.MethodGet)
	api.HandleFunc("/audio/{id}/file", s.handleAudioFile).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handleGetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handlePutSettings).Methods(http.MethodPut)

	return router
}

// recoveryMiddleware converts any handler panic into a generic 500,
// mirroring the reference's catch-all exception middleware: known errors
// are already handled by writeError, this is only the unknown-panic
// backstop.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if s.log != nil {
					s.log.Error("panic handling %s %s: %v", r.Method, r.URL.Path, rec)
				}

				writeErrorEnvelope(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred", "")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
