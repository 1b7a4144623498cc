// Package config provides the configuration structure for the voice demo.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/joho/godotenv"
)

// Environment variables holding secrets. They are never read from project.toml.
const (
	EnvOpenAIAPIKey      = "OPENAI_API_KEY"
	EnvGoogleCredentials = "GOOGLE_APPLICATION_CREDENTIALS"
)

// Storage backends.
const (
	StorageFilesystem = "filesystem"
	StorageNATS       = "nats"
)

// Agent modes.
const (
	AgentModeLLM      = "llm"
	AgentModeScripted = "scripted"
)

// Default values applied to zero fields.
const (
	defaultHost                  = "0.0.0.0"
	defaultPort                  = 8000
	defaultReadHeaderTimeout     = 10
	defaultShutdownTimeout       = 10
	defaultWorkers               = 3
	defaultTTSTimeout            = 30
	defaultOpenAIBaseURL         = "https://api.openai.com"
	defaultOpenAIModel           = "tts-1"
	defaultOpenAIVoice           = "alloy"
	defaultLocalCommand          = "espeak-ng"
	defaultLocalOutputExt        = ".wav"
	defaultAgentModel            = "gpt-4o-mini"
	defaultAgentMaxTokens        = 50
	defaultAgentTemperature      = 0.5
	defaultAgentPenalty          = 0.1
	defaultAgentHistory          = 10
	defaultAgentTimeout          = 15
	defaultAudioDir              = "audio_files"
	defaultSpeechSubject         = "speech.requested"
	defaultAudioObjectStore      = "AUDIO_FILES"
	defaultNATSURL               = "nats://127.0.0.1:4222"
	defaultBaseLogsDir           = "logs"
	maxWorkers                   = 64
	maxTimeoutSeconds            = 600
	maxPort                      = 65535
	maxAgentTokens               = 4096
	maxAgentTemperature          = 2.0
	maxAgentHistory              = 1000
	dotEnvFile                   = ".env"
)

// Error messages.
const (
	errFmtInvalidField      = "%w: %s %v"
	errFmtLoadConfiguration = "failed to load configuration from configurator: %w"
	errFmtLoadDotEnv        = "failed to load .env file: %w"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// DefaultLocalArgs writes a WAV file with espeak-ng. Placeholders are
// substituted per call: {text}, {output} and {voice}. espeak-ng knows every
// supported language code as a voice name.
var DefaultLocalArgs = []string{"-v", "{voice}", "-w", "{output}", "{text}"}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host                     string `toml:"host"`
	Port                     int    `toml:"port"`
	ReadHeaderTimeoutSeconds int    `toml:"read_header_timeout_seconds"`
	ShutdownTimeoutSeconds   int    `toml:"shutdown_timeout_seconds"`
}

// OpenAIConfig holds the OpenAI speech endpoint settings.
type OpenAIConfig struct {
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	Voice   string `toml:"voice"`
	APIKey  string `toml:"-"`
}

// GoogleConfig holds the Google Cloud Text-to-Speech settings.
type GoogleConfig struct {
	CredentialsFile string `toml:"credentials_file"`
	Voice           string `toml:"voice"`
}

// LocalConfig describes the offline engine command line.
type LocalConfig struct {
	Command   string   `toml:"command"`
	Args      []string `toml:"args"`
	OutputExt string   `toml:"output_ext"`
	Voice     string   `toml:"voice"`
}

// TTSConfig holds provider selection and shared synthesis limits.
type TTSConfig struct {
	Providers          []string     `toml:"providers"`
	Workers            int          `toml:"workers"`
	TimeoutSeconds     int          `toml:"timeout_seconds"`
	RateLimitPerSecond float64      `toml:"rate_limit_per_second"`
	RateLimitBurst     int          `toml:"rate_limit_burst"`
	OpenAI             OpenAIConfig `toml:"openai"`
	Google             GoogleConfig `toml:"google"`
	Local              LocalConfig  `toml:"local"`
}

// AgentConfig holds the conversational agent settings.
type AgentConfig struct {
	Mode             string  `toml:"mode"`
	Model            string  `toml:"model"`
	MaxTokens        int     `toml:"max_tokens"`
	Temperature      float64 `toml:"temperature"`
	PresencePenalty  float64 `toml:"presence_penalty"`
	FrequencyPenalty float64 `toml:"frequency_penalty"`
	HistorySize      int     `toml:"history_size"`
	TimeoutSeconds   int     `toml:"timeout_seconds"`
	Seed             int64   `toml:"seed"`
}

// StorageConfig selects where generated audio is kept.
type StorageConfig struct {
	Backend  string `toml:"backend"`
	AudioDir string `toml:"audio_dir"`
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	Enabled                bool   `toml:"enabled"`
	URL                    string `toml:"url"`
	SpeechSubject          string `toml:"speech_subject"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	TTS     TTSConfig     `toml:"tts"`
	Agent   AgentConfig   `toml:"agent"`
	Storage StorageConfig `toml:"storage"`
	NATS    NATSConfig    `toml:"nats"`
	Paths   PathsConfig   `toml:"paths"`
}

// Load reads .env (if present), then project.toml via the configurator, then
// applies defaults and secrets from the environment and validates the result.
func Load(log *logger.Logger) (*Config, error) {
	envErr := LoadDotEnv(dotEnvFile)
	if envErr != nil {
		return nil, envErr
	}

	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf(errFmtLoadConfiguration, err)
	}

	cfg.ApplyDefaults()
	cfg.ApplyEnv()

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, validateErr
	}

	return &cfg, nil
}

// LoadDotEnv loads variables from path without overriding the environment.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf(errFmtLoadDotEnv, err)
	}

	return nil
}

// ApplyDefaults fills every zero-valued field with its default.
func (c *Config) ApplyDefaults() {
	setDefault(&c.Server.Host, defaultHost)
	setDefault(&c.Server.Port, defaultPort)
	setDefault(&c.Server.ReadHeaderTimeoutSeconds, defaultReadHeaderTimeout)
	setDefault(&c.Server.ShutdownTimeoutSeconds, defaultShutdownTimeout)

	if len(c.TTS.Providers) == 0 {
		c.TTS.Providers = []string{"openai", "google", "local"}
	}

	setDefault(&c.TTS.Workers, defaultWorkers)
	setDefault(&c.TTS.TimeoutSeconds, defaultTTSTimeout)
	setDefault(&c.TTS.OpenAI.BaseURL, defaultOpenAIBaseURL)
	setDefault(&c.TTS.OpenAI.Model, defaultOpenAIModel)
	setDefault(&c.TTS.OpenAI.Voice, defaultOpenAIVoice)
	setDefault(&c.TTS.Local.Command, defaultLocalCommand)
	setDefault(&c.TTS.Local.OutputExt, defaultLocalOutputExt)

	if len(c.TTS.Local.Args) == 0 {
		c.TTS.Local.Args = append([]string(nil), DefaultLocalArgs...)
	}

	setDefault(&c.Agent.Mode, AgentModeLLM)
	setDefault(&c.Agent.Model, defaultAgentModel)
	setDefault(&c.Agent.MaxTokens, defaultAgentMaxTokens)
	setDefault(&c.Agent.Temperature, defaultAgentTemperature)
	setDefault(&c.Agent.PresencePenalty, defaultAgentPenalty)
	setDefault(&c.Agent.FrequencyPenalty, defaultAgentPenalty)
	setDefault(&c.Agent.HistorySize, defaultAgentHistory)
	setDefault(&c.Agent.TimeoutSeconds, defaultAgentTimeout)

	setDefault(&c.Storage.Backend, StorageFilesystem)
	setDefault(&c.Storage.AudioDir, defaultAudioDir)

	setDefault(&c.NATS.URL, defaultNATSURL)
	setDefault(&c.NATS.SpeechSubject, defaultSpeechSubject)
	setDefault(&c.NATS.AudioObjectStoreBucket, defaultAudioObjectStore)

	setDefault(&c.Paths.BaseLogsDir, defaultBaseLogsDir)
}

// ApplyEnv copies secrets from the environment into the configuration.
// An explicit credentials_file in project.toml wins over the environment.
func (c *Config) ApplyEnv() {
	c.TTS.OpenAI.APIKey = os.Getenv(EnvOpenAIAPIKey)
	setDefault(&c.TTS.Google.CredentialsFile, os.Getenv(EnvGoogleCredentials))
}

// Validate checks value ranges. It expects ApplyDefaults to have run.
func (c *Config) Validate() error {
	checks := []struct {
		ok    bool
		field string
		value any
	}{
		{c.Server.Port > 0 && c.Server.Port <= maxPort, "server.port", c.Server.Port},
		{c.TTS.Workers > 0 && c.TTS.Workers <= maxWorkers, "tts.workers", c.TTS.Workers},
		{c.TTS.TimeoutSeconds > 0 && c.TTS.TimeoutSeconds <= maxTimeoutSeconds, "tts.timeout_seconds", c.TTS.TimeoutSeconds},
		{c.TTS.RateLimitPerSecond >= 0, "tts.rate_limit_per_second", c.TTS.RateLimitPerSecond},
		{c.TTS.RateLimitBurst >= 0, "tts.rate_limit_burst", c.TTS.RateLimitBurst},
		{c.Agent.Mode == AgentModeLLM || c.Agent.Mode == AgentModeScripted, "agent.mode", c.Agent.Mode},
		{c.Agent.MaxTokens > 0 && c.Agent.MaxTokens <= maxAgentTokens, "agent.max_tokens", c.Agent.MaxTokens},
		{c.Agent.Temperature >= 0 && c.Agent.Temperature <= maxAgentTemperature, "agent.temperature", c.Agent.Temperature},
		{c.Agent.HistorySize > 0 && c.Agent.HistorySize <= maxAgentHistory, "agent.history_size", c.Agent.HistorySize},
		{c.Storage.Backend == StorageFilesystem || c.Storage.Backend == StorageNATS, "storage.backend", c.Storage.Backend},
		{c.Storage.Backend != StorageNATS || c.NATS.URL != "", "nats.url", c.NATS.URL},
		{!c.NATS.Enabled || c.NATS.SpeechSubject != "", "nats.speech_subject", c.NATS.SpeechSubject},
	}

	for _, check := range checks {
		if !check.ok {
			return fmt.Errorf(errFmtInvalidField, ErrInvalidConfig, check.field, check.value)
		}
	}

	return nil
}

// ListenAddr returns host:port for the HTTP server.
func (s ServerConfig) ListenAddr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Timeout returns the per-call synthesis timeout.
func (t TTSConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// Timeout returns the LLM request timeout.
func (a AgentConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// UsesNATS reports whether any component needs a NATS connection.
func (c *Config) UsesNATS() bool {
	return c.NATS.Enabled || c.Storage.Backend == StorageNATS
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}
