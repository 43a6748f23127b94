// main package for the tts-pipeline service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/tts-pipeline/internal/audio"
	"github.com/book-expert/tts-pipeline/internal/config"
	"github.com/book-expert/tts-pipeline/internal/credentials"
	"github.com/book-expert/tts-pipeline/internal/eventbus"
	"github.com/book-expert/tts-pipeline/internal/httpapi"
	"github.com/book-expert/tts-pipeline/internal/jobs"
	"github.com/book-expert/tts-pipeline/internal/providers"
	"github.com/book-expert/tts-pipeline/internal/textprep"
)

const (
	version           = "0.1.0"
	maxConcurrentJobs = 4
	cleanupInterval   = 1 * time.Hour
	sweepInterval     = 1 * time.Hour
	shutdownTimeout   = 10 * time.Second
)

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "tts-pipeline.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func bootstrap() (*config.Config, *logger.Logger, error) {
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return nil, nil, err
	}

	bootstrapLog.Info("Bootstrap logger created.")

	cfg, projectRoot, err := config.Load(".")
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded from project root %s.", projectRoot)

	return cfg, bootstrapLog, nil
}

// buildRegistry wires every provider adapter against the two-layer
// credential store so PUT /settings takes effect without a restart.
func buildRegistry(cfg *config.Config, creds *credentials.Store) *providers.Registry {
	registry := providers.NewRegistry()

	registry.Register(providers.NewGoogleProvider(cfg.Providers.Google.CredentialsPath, creds))
	registry.Register(providers.NewAmazonProvider(cfg.Providers.Amazon.AccessKeyID, cfg.Providers.Amazon.Region, creds))
	registry.Register(providers.NewElevenLabsProvider(creds))
	registry.Register(providers.NewOpenAIProvider(creds))

	return registry
}

// startSweepers runs the job-store and disk-audio retirement loops on
// their own tickers, stopping when ctx is cancelled.
func startSweepers(ctx context.Context, store *jobs.Store, audioStore *audio.Store, maxAge time.Duration, log *logger.Logger) {
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				removed := store.CleanupOldJobs(now, maxAge)
				if removed > 0 {
					log.Info("Cleaned up %d expired job records.", removed)
				}
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				keep := map[string]struct{}{}
				for _, j := range store.List() {
					keep[j.ID] = struct{}{}
				}

				removed, err := audioStore.Sweep(keep)
				if err != nil {
					log.Error("Audio sweep failed: %v", err)

					continue
				}

				if removed > 0 {
					log.Info("Swept %d orphaned audio files.", removed)
				}
			}
		}
	}()
}

func buildServer(cfg *config.Config, log *logger.Logger) (*http.Server, *eventbus.Bus, context.CancelFunc, error) {
	ctx, cancel := context.WithCancel(context.Background())

	credBase := cfg.Providers.CredentialBase()
	credStore := credentials.NewStore(credBase)

	registry := buildRegistry(cfg, credStore)

	audioStore := audio.NewStore(cfg.Audio.StorageDir)
	stitchCfg := audio.DefaultStitchConfig()
	stitchCfg.SilenceBetweenMS = int64(cfg.Audio.SilenceBetweenMS)
	stitchCfg.CrossfadeMS = int64(cfg.Audio.CrossfadeMS)
	stitcher := audio.NewStitcher(stitchCfg)

	jobStore := jobs.NewStore()

	var (
		bus    *eventbus.Bus
		mirror *eventbus.Mirror
	)

	if cfg.NATS.Embedded {
		var err error

		bus, err = eventbus.Start(cfg.NATS.ClientPort, log)
		if err != nil {
			cancel()

			return nil, nil, nil, fmt.Errorf("failed to start event bus: %w", err)
		}

		mirror, err = eventbus.NewMirror(ctx, bus.Conn(), log)
		if err != nil {
			bus.Shutdown()
			cancel()

			return nil, nil, nil, fmt.Errorf("failed to create audio mirror: %w", err)
		}
	}

	var publisher jobs.ProgressPublisher
	if bus != nil {
		publisher = bus
	}

	var audioMirror jobs.AudioMirror
	if mirror != nil {
		audioMirror = mirror
	}

	preprocessor := textprep.New()

	manager := jobs.NewManager(jobStore, registry, audioStore, stitcher, log, publisher, audioMirror, preprocessor, maxConcurrentJobs)

	maxAge := time.Duration(cfg.Audio.MaxAgeHours) * time.Hour
	startSweepers(ctx, jobStore, audioStore, maxAge, log)

	server := httpapi.NewServer(registry, manager, jobStore, audioStore, credStore, bus, log, version)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return httpServer, bus, cancel, nil
}

func waitForShutdownSignal(log *logger.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("Shutdown signal received, gracefully shutting down...")
}

func run() error {
	cfg, bootstrapLog, err := bootstrap()
	if err != nil {
		return err
	}

	log, err := setupLogger(cfg.Logging.LogDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		if closeErr := log.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	httpServer, bus, cancel, err := buildServer(cfg, log)
	if err != nil {
		log.Error("Failed to build server: %v", err)

		return err
	}

	defer cancel()

	go func() {
		log.System("tts-pipeline listening on %s", httpServer.Addr)

		if serveErr := httpServer.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			log.Error("HTTP server stopped with error: %v", serveErr)
		}
	}()

	waitForShutdownSignal(log)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Error("Error during HTTP server shutdown: %v", shutdownErr)
	}

	if bus != nil {
		bus.Shutdown()
	}

	log.Info("Shutdown complete.")

	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
