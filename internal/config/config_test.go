// Package config_test tests the configuration loading for the tts-pipeline.
package config_test

import (
	"testing"

	"github.com/book-expert/tts-pipeline/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshal_AllSections(t *testing.T) {
	t.Parallel()

	tomlData := `
[server]
host = "0.0.0.0"
port = 8080

[audio]
storage_dir = "data/audio"
max_age_hours = 48
silence_between_ms = 200
crossfade_ms = 50

[providers.google]
credentials_path = "/secrets/google.json"

[providers.amazon]
access_key_id = "AKIAEXAMPLE"
region = "eu-west-1"

[providers.elevenlabs]
api_key = "el-key"

[providers.openai]
api_key = "oa-key"

[logging]
level = "info"
format = "json"
log_dir = "data/logs"

[nats]
embedded = true
client_port = 4222
`

	var cfg config.Config

	err := toml.Unmarshal([]byte(tomlData), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/audio", cfg.Audio.StorageDir)
	assert.Equal(t, 48, cfg.Audio.MaxAgeHours)
	assert.Equal(t, "/secrets/google.json", cfg.Providers.Google.CredentialsPath)
	assert.Equal(t, "AKIAEXAMPLE", cfg.Providers.Amazon.AccessKeyID)
	assert.Equal(t, "eu-west-1", cfg.Providers.Amazon.Region)
	assert.Equal(t, "el-key", cfg.Providers.ElevenLabs.APIKey)
	assert.Equal(t, "oa-key", cfg.Providers.OpenAI.APIKey)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.NATS.Embedded)
	assert.Equal(t, 4222, cfg.NATS.ClientPort)
}

func TestServerConfig_URL(t *testing.T) {
	t.Parallel()

	server := config.ServerConfig{Host: "127.0.0.1", Port: 9090}
	assert.Equal(t, "http://127.0.0.1:9090", server.URL())
}

func TestServerConfig_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, (&config.ServerConfig{Host: "0.0.0.0", Port: 8080}).Validate())
	require.ErrorIs(t, (&config.ServerConfig{Host: "", Port: 8080}).Validate(), config.ErrServerHostEmpty)
	require.ErrorIs(t, (&config.ServerConfig{Host: "0.0.0.0", Port: 0}).Validate(), config.ErrServerPortRange)
	require.ErrorIs(t, (&config.ServerConfig{Host: "0.0.0.0", Port: 70000}).Validate(), config.ErrServerPortRange)
}

func TestAudioConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := config.AudioConfig{StorageDir: "data/audio", MaxAgeHours: 24}
	require.NoError(t, valid.Validate())

	missingDir := valid
	missingDir.StorageDir = ""
	require.ErrorIs(t, missingDir.Validate(), config.ErrStorageDirEmpty)

	badAge := valid
	badAge.MaxAgeHours = 0
	require.ErrorIs(t, badAge.Validate(), config.ErrMaxAgeHoursPositive)

	negSilence := valid
	negSilence.SilenceBetweenMS = -1
	require.ErrorIs(t, negSilence.Validate(), config.ErrSilenceNegative)

	negCrossfade := valid
	negCrossfade.CrossfadeMS = -1
	require.ErrorIs(t, negCrossfade.Validate(), config.ErrCrossfadeNegative)
}

func TestLoggingConfig_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, (&config.LoggingConfig{LogDir: "logs", Level: "info", Format: "json"}).Validate())
	require.ErrorIs(t, (&config.LoggingConfig{LogDir: "", Level: "info", Format: "json"}).Validate(), config.ErrLogDirEmpty)
	require.ErrorIs(t, (&config.LoggingConfig{LogDir: "logs", Level: "verbose", Format: "json"}).Validate(), config.ErrInvalidLogLevel)
	require.ErrorIs(t, (&config.LoggingConfig{LogDir: "logs", Level: "info", Format: "xml"}).Validate(), config.ErrInvalidLogFormat)
}

func TestNATSConfig_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, (&config.NATSConfig{Embedded: false}).Validate())
	require.NoError(t, (&config.NATSConfig{Embedded: true, ClientPort: 4222}).Validate())
	require.ErrorIs(t, (&config.NATSConfig{Embedded: true, ClientPort: 0}).Validate(), config.ErrNATSClientPortRange)
}

func TestProvidersConfig_CredentialBase(t *testing.T) {
	t.Parallel()

	providers := config.ProvidersConfig{
		Google:     config.GoogleProviderConfig{APIKey: "g-key"},
		Amazon:     config.AmazonProviderConfig{AccessKeyID: "ak", SecretAccessKey: "sk"},
		ElevenLabs: config.ElevenLabsProviderConfig{},
		OpenAI:     config.OpenAIProviderConfig{APIKey: "oa-key"},
	}

	base := providers.CredentialBase()

	assert.Equal(t, "g-key", base["google"])
	assert.Equal(t, "sk", base["amazon"])
	assert.Equal(t, "oa-key", base["openai"])
	_, hasElevenLabs := base["elevenlabs"]
	assert.False(t, hasElevenLabs)
}
