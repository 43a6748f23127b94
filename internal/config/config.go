// Package config loads and validates the pipeline's project.toml plus
// environment overlay, following the layout the rest of this codebase
// uses for its own per-section Validate() methods.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/book-expert/configurator"
	"github.com/joho/godotenv"
)

// Static errors.
var (
	ErrServerHostEmpty     = errors.New("server.host cannot be empty")
	ErrServerPortRange     = errors.New("server.port must be between 1 and 65535")
	ErrStorageDirEmpty     = errors.New("audio.storage_dir cannot be empty")
	ErrMaxAgeHoursPositive = errors.New("audio.max_age_hours must be positive")
	ErrSilenceNegative     = errors.New("audio.silence_between_ms must be non-negative")
	ErrCrossfadeNegative   = errors.New("audio.crossfade_ms must be non-negative")
	ErrLogDirEmpty         = errors.New("logging.log_dir cannot be empty")
	ErrInvalidLogLevel     = errors.New("logging.level must be one of the valid options")
	ErrInvalidLogFormat    = errors.New("logging.format must be one of the valid options")
	ErrNATSClientPortRange = errors.New("nats.client_port must be between 1 and 65535")
)

func newInvalidLogLevelError(valid []string) error {
	return fmt.Errorf("%w: %v", ErrInvalidLogLevel, valid)
}

func newInvalidLogFormatError(valid []string) error {
	return fmt.Errorf("%w: %v", ErrInvalidLogFormat, valid)
}

const (
	errFailedToLoadProjectConfig = "failed to load project config: %w"
	errInvalidConfiguration      = "invalid configuration: %w"
	errServerConfig              = "server config: %w"
	errAudioConfig               = "audio config: %w"
	errLoggingConfig             = "logging config: %w"
	errNATSConfig                = "nats config: %w"
)

const defaultAmazonRegion = "us-east-1"

// Config is the complete pipeline configuration, loaded from project.toml
// and overlaid by environment variables via configurator and an optional
// .env file via godotenv.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Audio     AudioConfig     `toml:"audio"`
	Providers ProvidersConfig `toml:"providers"`
	Logging   LoggingConfig   `toml:"logging"`
	NATS      NATSConfig      `toml:"nats"`
}

// ServerConfig is the HTTP listener configuration.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// AudioConfig controls stitching and on-disk storage of generated audio.
type AudioConfig struct {
	StorageDir       string `toml:"storage_dir"`
	MaxAgeHours      int    `toml:"max_age_hours"`
	SilenceBetweenMS int    `toml:"silence_between_ms"`
	CrossfadeMS      int    `toml:"crossfade_ms"`
}

// ProvidersConfig carries the base (non-overlay) provider configuration:
// credentials loaded at startup from config/environment, separate from
// the mutable runtime overlay in internal/credentials.
type ProvidersConfig struct {
	Google     GoogleProviderConfig     `toml:"google"`
	Amazon     AmazonProviderConfig     `toml:"amazon"`
	ElevenLabs ElevenLabsProviderConfig `toml:"elevenlabs"`
	OpenAI     OpenAIProviderConfig     `toml:"openai"`
}

// GoogleProviderConfig holds Google Cloud TTS credentials. configurator
// overlays GOOGLE_APPLICATION_CREDENTIALS/GOOGLE_API_KEY onto these
// fields the same way it overlays any other project.toml value.
type GoogleProviderConfig struct {
	CredentialsPath string `toml:"credentials_path"`
	APIKey          string `toml:"api_key"`
}

// AmazonProviderConfig holds Amazon Polly credentials. AccessKeyID and
// Region are base configuration; SecretAccessKey seeds the credential
// store's base layer but is also the field PUT /settings can override.
type AmazonProviderConfig struct {
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	Region          string `toml:"region"`
}

// ElevenLabsProviderConfig holds the ElevenLabs API key.
type ElevenLabsProviderConfig struct {
	APIKey string `toml:"api_key"`
}

// OpenAIProviderConfig holds the OpenAI API key.
type OpenAIProviderConfig struct {
	APIKey string `toml:"api_key"`
}

// LoggingConfig controls the process-wide structured logger.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	LogDir string `toml:"log_dir"`
}

// NATSConfig controls the embedded event bus.
type NATSConfig struct {
	Embedded   bool `toml:"embedded"`
	ClientPort int  `toml:"client_port"`
}

// Load reads an optional .env file into the process environment, then
// loads project.toml (with environment overrides) starting from startDir,
// resolves relative paths, applies defaults, and validates the result.
func Load(startDir string) (*Config, string, error) {
	_ = godotenv.Load()

	var cfg Config

	projectRoot, err := configurator.LoadFromProject(startDir, &cfg)
	if err != nil {
		return nil, "", fmt.Errorf(errFailedToLoadProjectConfig, err)
	}

	cfg.applyDefaults()
	cfg.resolvePaths(projectRoot)

	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, "", fmt.Errorf(errInvalidConfiguration, validationErr)
	}

	return &cfg, projectRoot, nil
}

func (c *Config) applyDefaults() {
	if c.Providers.Amazon.Region == "" {
		c.Providers.Amazon.Region = defaultAmazonRegion
	}

	if c.Audio.MaxAgeHours == 0 {
		c.Audio.MaxAgeHours = 24
	}
}

func (c *Config) resolvePaths(projectRoot string) {
	if !filepath.IsAbs(c.Audio.StorageDir) {
		c.Audio.StorageDir = filepath.Join(projectRoot, c.Audio.StorageDir)
	}

	if !filepath.IsAbs(c.Logging.LogDir) {
		c.Logging.LogDir = filepath.Join(projectRoot, c.Logging.LogDir)
	}
}

// Validate validates every section of the configuration.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf(errServerConfig, err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf(errAudioConfig, err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf(errLoggingConfig, err)
	}

	if err := c.NATS.Validate(); err != nil {
		return fmt.Errorf(errNATSConfig, err)
	}

	return nil
}

// URL returns the base HTTP URL clients should target.
func (c *ServerConfig) URL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Host == "" {
		return ErrServerHostEmpty
	}

	if c.Port <= 0 || c.Port > 65535 {
		return ErrServerPortRange
	}

	return nil
}

// Validate validates the audio configuration.
func (c *AudioConfig) Validate() error {
	if c.StorageDir == "" {
		return ErrStorageDirEmpty
	}

	if c.MaxAgeHours <= 0 {
		return ErrMaxAgeHoursPositive
	}

	if c.SilenceBetweenMS < 0 {
		return ErrSilenceNegative
	}

	if c.CrossfadeMS < 0 {
		return ErrCrossfadeNegative
	}

	return nil
}

// Validate validates the logging configuration.
func (c *LoggingConfig) Validate() error {
	if c.LogDir == "" {
		return ErrLogDirEmpty
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, c.Level) {
		return newInvalidLogLevelError(validLevels)
	}

	validFormats := []string{"json", "text"}
	if !slices.Contains(validFormats, c.Format) {
		return newInvalidLogFormatError(validFormats)
	}

	return nil
}

// Validate validates the NATS configuration.
func (c *NATSConfig) Validate() error {
	if !c.Embedded {
		return nil
	}

	if c.ClientPort <= 0 || c.ClientPort > 65535 {
		return ErrNATSClientPortRange
	}

	return nil
}

// CredentialBase builds the read-only base credential map the two-layer
// credentials.Store is seeded with at startup, one entry per provider
// name that has a config/environment-sourced key. Amazon's access key id
// and region are not part of this map: they are not something a single
// api_key-per-provider settings update can rotate, so they stay on the
// provider adapter as base-only constructor fields instead.
func (c *ProvidersConfig) CredentialBase() map[string]string {
	base := map[string]string{}

	if c.Google.APIKey != "" {
		base["google"] = c.Google.APIKey
	}

	if c.Amazon.SecretAccessKey != "" {
		base["amazon"] = c.Amazon.SecretAccessKey
	}

	if c.ElevenLabs.APIKey != "" {
		base["elevenlabs"] = c.ElevenLabs.APIKey
	}

	if c.OpenAI.APIKey != "" {
		base["openai"] = c.OpenAI.APIKey
	}

	return base
}
