// Package config_test tests the configuration loading for the voice demo.
package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-demo/internal/config"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	tomlData := `
[server]
host = "127.0.0.1"
port = 9000

[tts]
providers = ["openai", "local"]
workers = 2
timeout_seconds = 45
rate_limit_per_second = 3.5
rate_limit_burst = 2

[tts.openai]
model = "tts-1-hd"
voice = "nova"

[tts.google]
voice = "pl-PL-Standard-A"

[tts.local]
command = "say"
args = ["-o", "{output}", "{text}"]
output_ext = ".aiff"

[agent]
mode = "scripted"
history_size = 20
seed = 7

[storage]
backend = "nats"

[nats]
enabled = true
url = "nats://127.0.0.1:4222"
speech_subject = "speech.requested"
audio_object_store_bucket = "AUDIO_FILES"

[paths]
base_logs_dir = "/var/log/voice-demo"
`

	var cfg config.Config

	err := toml.Unmarshal([]byte(tomlData), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"openai", "local"}, cfg.TTS.Providers)
	assert.Equal(t, 2, cfg.TTS.Workers)
	assert.Equal(t, 45*time.Second, cfg.TTS.Timeout())
	assert.InEpsilon(t, 3.5, cfg.TTS.RateLimitPerSecond, 0.001)
	assert.Equal(t, "tts-1-hd", cfg.TTS.OpenAI.Model)
	assert.Equal(t, "nova", cfg.TTS.OpenAI.Voice)
	assert.Equal(t, "pl-PL-Standard-A", cfg.TTS.Google.Voice)
	assert.Equal(t, "say", cfg.TTS.Local.Command)
	assert.Equal(t, []string{"-o", "{output}", "{text}"}, cfg.TTS.Local.Args)
	assert.Equal(t, ".aiff", cfg.TTS.Local.OutputExt)
	assert.Equal(t, config.AgentModeScripted, cfg.Agent.Mode)
	assert.Equal(t, 20, cfg.Agent.HistorySize)
	assert.Equal(t, int64(7), cfg.Agent.Seed)
	assert.Equal(t, config.StorageNATS, cfg.Storage.Backend)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "speech.requested", cfg.NATS.SpeechSubject)
	assert.Equal(t, "AUDIO_FILES", cfg.NATS.AudioObjectStoreBucket)
	assert.Equal(t, "/var/log/voice-demo", cfg.Paths.BaseLogsDir)
	assert.True(t, cfg.UsesNATS())

	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 9000, cfg.Server.Port, "explicit values survive defaults")
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.ListenAddr())
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	var cfg config.Config
	cfg.ApplyDefaults()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0:8000", cfg.Server.ListenAddr())
	assert.Equal(t, []string{"openai", "google", "local"}, cfg.TTS.Providers)
	assert.Equal(t, 3, cfg.TTS.Workers)
	assert.Equal(t, "https://api.openai.com", cfg.TTS.OpenAI.BaseURL)
	assert.Equal(t, "tts-1", cfg.TTS.OpenAI.Model)
	assert.Equal(t, "alloy", cfg.TTS.OpenAI.Voice)
	assert.Equal(t, config.DefaultLocalArgs, cfg.TTS.Local.Args)
	assert.Equal(t, config.AgentModeLLM, cfg.Agent.Mode)
	assert.Equal(t, "gpt-4o-mini", cfg.Agent.Model)
	assert.Equal(t, 50, cfg.Agent.MaxTokens)
	assert.InEpsilon(t, 0.5, cfg.Agent.Temperature, 0.001)
	assert.Equal(t, 10, cfg.Agent.HistorySize)
	assert.Equal(t, config.StorageFilesystem, cfg.Storage.Backend)
	assert.Equal(t, "audio_files", cfg.Storage.AudioDir)
	assert.False(t, cfg.UsesNATS())

	// The default args slice must not alias the package variable.
	cfg.TTS.Local.Args[0] = "changed"
	assert.Equal(t, "-v", config.DefaultLocalArgs[0])
	assert.Contains(t, config.DefaultLocalArgs, "{voice}")
}

func TestValidate_Rejects(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		mutate func(cfg *config.Config)
	}{
		{name: "port", mutate: func(cfg *config.Config) { cfg.Server.Port = 70000 }},
		{name: "workers", mutate: func(cfg *config.Config) { cfg.TTS.Workers = -1 }},
		{name: "timeout", mutate: func(cfg *config.Config) { cfg.TTS.TimeoutSeconds = 6000 }},
		{name: "rate", mutate: func(cfg *config.Config) { cfg.TTS.RateLimitPerSecond = -1 }},
		{name: "agent mode", mutate: func(cfg *config.Config) { cfg.Agent.Mode = "oracle" }},
		{name: "temperature", mutate: func(cfg *config.Config) { cfg.Agent.Temperature = 3 }},
		{name: "backend", mutate: func(cfg *config.Config) { cfg.Storage.Backend = "s3" }},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			var cfg config.Config
			cfg.ApplyDefaults()
			testCase.mutate(&cfg)

			require.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(config.EnvOpenAIAPIKey, "sk-test")
	t.Setenv(config.EnvGoogleCredentials, "/tmp/creds.json")

	var cfg config.Config
	cfg.ApplyEnv()

	assert.Equal(t, "sk-test", cfg.TTS.OpenAI.APIKey)
	assert.Equal(t, "/tmp/creds.json", cfg.TTS.Google.CredentialsFile)

	explicit := config.Config{TTS: config.TTSConfig{Google: config.GoogleConfig{CredentialsFile: "/etc/gcp.json"}}}
	explicit.ApplyEnv()
	assert.Equal(t, "/etc/gcp.json", explicit.TTS.Google.CredentialsFile)
}

func TestLoadDotEnv(t *testing.T) {
	require.NoError(t, config.LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("VOICE_DEMO_DOTENV_TEST=loaded\n"), 0o600))

	t.Setenv("VOICE_DEMO_DOTENV_TEST", "")
	require.NoError(t, os.Unsetenv("VOICE_DEMO_DOTENV_TEST"))

	require.NoError(t, config.LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("VOICE_DEMO_DOTENV_TEST"))
}
