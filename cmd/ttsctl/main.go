// Package main provides ttsctl, a command-line smoke-test client for the
// tts-pipeline HTTP API: submit text, poll job status, and download the
// resulting audio.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/tts-pipeline/internal/config"
)

// ClientTimeout bounds every individual HTTP request this client makes.
const ClientTimeout = 30 * time.Second

// PollInterval is how often the client re-checks job status while waiting.
const PollInterval = 500 * time.Millisecond

// PollTimeout bounds how long the client waits for a job to finish.
const PollTimeout = 5 * time.Minute

// Flag descriptions.
const (
	flagTextDesc     = "Text to convert to speech"
	flagProviderDesc = "Provider name (google, amazon, elevenlabs, openai)"
	flagVoiceDesc    = "Voice id to use"
	flagSpeedDesc    = "Speech speed multiplier"
	flagOutputDesc   = "Output file path (.mp3)"
	flagConfigDesc   = "Path to project.toml (defaults to searching up directory tree)"
	flagHealthDesc   = "Check service health and exit"
	flagProvidersDesc = "List providers and exit"
)

// Flag names.
const (
	flagText      = "text"
	flagProvider  = "provider"
	flagVoice     = "voice"
	flagSpeed     = "speed"
	flagOutput    = "output"
	flagConfig    = "config"
	flagHealth    = "health"
	flagProviders = "providers"
)

const defaultOutputFile = "output.mp3"

// Static errors.
var (
	ErrFailedToLoadConfig = errors.New("failed to load configuration")
	ErrEitherTextRequired = errors.New("--text is required unless --health or --providers is set")
	ErrJobFailed          = errors.New("job failed")
	ErrPollTimeout        = errors.New("timed out waiting for job to complete")
)

type appFlags struct {
	text      string
	provider  string
	voice     string
	speed     float64
	output    string
	config    string
	health    bool
	providers bool
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	flags := parseFlags()

	cfg, lgr, err := setup(flags.config)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := lgr.Close(); closeErr != nil {
			log.Printf("failed to close logger: %v", closeErr)
		}
	}()

	client := newAPIClient(cfg.Server.URL(), ClientTimeout)

	switch {
	case flags.health:
		return handleHealth(client, lgr)
	case flags.providers:
		return handleProviders(client, lgr)
	default:
		return handleGenerate(client, lgr, flags)
	}
}

func parseFlags() appFlags {
	var flags appFlags

	flag.StringVar(&flags.text, flagText, "", flagTextDesc)
	flag.StringVar(&flags.provider, flagProvider, "", flagProviderDesc)
	flag.StringVar(&flags.voice, flagVoice, "", flagVoiceDesc)
	flag.Float64Var(&flags.speed, flagSpeed, 1.0, flagSpeedDesc)
	flag.StringVar(&flags.output, flagOutput, "", flagOutputDesc)
	flag.StringVar(&flags.config, flagConfig, "", flagConfigDesc)
	flag.BoolVar(&flags.health, flagHealth, false, flagHealthDesc)
	flag.BoolVar(&flags.providers, flagProviders, false, flagProvidersDesc)
	flag.Parse()

	return flags
}

func setup(configPath string) (*config.Config, *logger.Logger, error) {
	startDir := "."
	if configPath != "" {
		startDir = configPath
	}

	cfg, _, err := config.Load(startDir)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrFailedToLoadConfig, err)
	}

	lgr, err := logger.New(cfg.Logging.LogDir, "ttsctl.log")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, lgr, nil
}

func handleHealth(client *apiClient, lgr *logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), ClientTimeout)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		lgr.Error("Health check failed: %v", err)

		return fmt.Errorf("health check failed: %w", err)
	}

	lgr.Info("Service status: %s (version %s)", health.Status, health.Version)
	fmt.Printf("status=%s version=%s\n", health.Status, health.Version)

	return nil
}

func handleProviders(client *apiClient, lgr *logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), ClientTimeout)
	defer cancel()

	resp, err := client.ListProviders(ctx)
	if err != nil {
		lgr.Error("Failed to list providers: %v", err)

		return fmt.Errorf("failed to list providers: %w", err)
	}

	for _, p := range resp.Providers {
		fmt.Printf("%-12s configured=%-5t max_chunk_chars=%d\n", p.Name, p.IsConfigured, p.Capabilities.MaxChunkChars)
	}

	return nil
}

func handleGenerate(client *apiClient, lgr *logger.Logger, flags appFlags) error {
	if flags.text == "" {
		return ErrEitherTextRequired
	}

	outputPath := flags.output
	if outputPath == "" {
		outputPath = defaultOutputFile
	}

	ctx, cancel := context.WithTimeout(context.Background(), ClientTimeout)

	jobID, err := client.Generate(ctx, flags.provider, flags.voice, flags.text, flags.speed)

	cancel()

	if err != nil {
		lgr.Error("Failed to submit job: %v", err)

		return fmt.Errorf("failed to submit job: %w", err)
	}

	lgr.Info("Submitted job %s, waiting for completion...", jobID)

	status, err := pollUntilDone(client, jobID)
	if err != nil {
		lgr.Error("Job %s did not complete: %v", jobID, err)

		return err
	}

	if status.Status == "failed" {
		lgr.Error("Job %s failed: %s", jobID, status.ErrorMessage)

		return fmt.Errorf("%w: %s", ErrJobFailed, status.ErrorMessage)
	}

	downloadCtx, downloadCancel := context.WithTimeout(context.Background(), ClientTimeout)
	defer downloadCancel()

	if err := client.DownloadAudio(downloadCtx, jobID, outputPath); err != nil {
		lgr.Error("Failed to download audio for job %s: %v", jobID, err)

		return fmt.Errorf("failed to download audio: %w", err)
	}

	lgr.Info("Generated: %s", outputPath)
	fmt.Printf("Generated: %s\n", outputPath)

	return nil
}

func pollUntilDone(client *apiClient, jobID string) (jobStatusResponse, error) {
	deadline := time.Now().Add(PollTimeout)

	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), ClientTimeout)
		status, err := client.JobStatus(ctx, jobID)
		cancel()

		if err != nil {
			return jobStatusResponse{}, fmt.Errorf("failed to poll job status: %w", err)
		}

		if status.Status == "completed" || status.Status == "failed" {
			return status, nil
		}

		time.Sleep(PollInterval)
	}

	return jobStatusResponse{}, ErrPollTimeout
}
