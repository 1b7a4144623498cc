// Package tts synthesizes speech through OpenAI, Google Cloud or a local
// engine and always hands WAV back to its callers.
package tts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-demo/internal/config"
	"github.com/book-expert/voice-demo/internal/core"
	"github.com/book-expert/voice-demo/internal/tts/audio"
	"github.com/book-expert/voice-demo/internal/tts/text"
)

const (
	logFmtProviderReady     = "✓ Initialized %s TTS provider"
	logFmtProviderFailed    = "✗ Failed to initialize %s: %v"
	logFmtProviderUnknown   = "✗ Skipping unknown provider %q: %v"
	logFmtCompareFailed     = "Comparison with %s failed: %v"
	logFmtCloseFailed       = "Failed to close %s synthesizer: %v"
	errFmtProviderSynthesis = "%s synthesis failed: %w"
	errFmtProviderMissing   = "%w: %s"
)

// googleLanguages maps the demo's short codes to Google voice locales.
// Belarusian has no Google voice, so it falls back to English.
var googleLanguages = map[string]string{
	"be": "en-US",
	"pl": "pl-PL",
	"lt": "lt-LT",
	"lv": "lv-LV",
	"et": "et-EE",
	"en": "en-US",
}

// CompareResult is one provider's outcome in a comparison run.
type CompareResult struct {
	Provider core.Provider
	Audio    []byte
	Info     *audio.Info
	Err      error
	Elapsed  time.Duration
}

// ManagerOptions holds the limits shared by all providers.
type ManagerOptions struct {
	Workers int
	Timeout time.Duration
}

// Manager is the explicit provider registry. It is built once at startup and
// passed to whatever needs speech; it holds no global state.
type Manager struct {
	synthesizers map[core.Provider]core.Synthesizer
	order        []core.Provider
	preprocessor *text.Preprocessor
	workers      int
	timeout      time.Duration
	log          *logger.Logger
}

// NewManager initializes every provider listed in cfg.Providers. Providers
// that fail to initialize are logged and left out.
func NewManager(ctx context.Context, cfg config.TTSConfig, log *logger.Logger) *Manager {
	synthesizers := make([]core.Synthesizer, 0, len(cfg.Providers))

	for _, name := range cfg.Providers {
		provider, err := core.ParseProvider(name)
		if err != nil {
			log.Warn(logFmtProviderUnknown, name, err)

			continue
		}

		synthesizer, err := newSynthesizer(ctx, provider, cfg, log)
		if err != nil {
			log.Warn(logFmtProviderFailed, provider, err)

			continue
		}

		log.Info(logFmtProviderReady, provider)

		synthesizers = append(synthesizers, synthesizer)
	}

	return NewManagerWithSynthesizers(synthesizers, ManagerOptions{
		Workers: cfg.Workers,
		Timeout: cfg.Timeout(),
	}, log)
}

// NewManagerWithSynthesizers builds a manager around ready synthesizers.
// A later synthesizer for the same provider replaces an earlier one.
func NewManagerWithSynthesizers(
	synthesizers []core.Synthesizer,
	opts ManagerOptions,
	log *logger.Logger,
) *Manager {
	manager := &Manager{
		synthesizers: make(map[core.Provider]core.Synthesizer, len(synthesizers)),
		preprocessor: text.NewPreprocessor(),
		workers:      max(opts.Workers, 1),
		timeout:      opts.Timeout,
		log:          log,
	}

	for _, synthesizer := range synthesizers {
		manager.synthesizers[synthesizer.Provider()] = synthesizer
	}

	for _, provider := range core.AllProviders {
		if _, ok := manager.synthesizers[provider]; ok {
			manager.order = append(manager.order, provider)
		}
	}

	return manager
}

func newSynthesizer(
	ctx context.Context,
	provider core.Provider,
	cfg config.TTSConfig,
	log *logger.Logger,
) (core.Synthesizer, error) {
	switch provider {
	case core.ProviderOpenAI:
		return NewOpenAISynthesizer(OpenAIOptions{
			BaseURL: cfg.OpenAI.BaseURL,
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			Voice:   cfg.OpenAI.Voice,
			Timeout: cfg.Timeout(),
			Limiter: NewLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		})
	case core.ProviderGoogle:
		return NewGoogleSynthesizer(ctx, GoogleOptions{
			CredentialsFile: cfg.Google.CredentialsFile,
			Voice:           cfg.Google.Voice,
			Limiter:         NewLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		}, log)
	case core.ProviderLocal:
		return NewLocalSynthesizer(LocalOptions{
			Command:   cfg.Local.Command,
			Args:      cfg.Local.Args,
			OutputExt: cfg.Local.OutputExt,
			Voice:     cfg.Local.Voice,
		}, log)
	default:
		return nil, fmt.Errorf(errFmtProviderMissing, ErrProviderUnavailable, provider)
	}
}

// MapLanguage converts a short language code to what provider expects.
func MapLanguage(provider core.Provider, language string) string {
	if provider == core.ProviderGoogle {
		if mapped, ok := googleLanguages[language]; ok {
			return mapped
		}
	}

	return language
}

// Available returns the initialized providers in display order.
func (m *Manager) Available() []core.Provider {
	return append([]core.Provider(nil), m.order...)
}

// Has reports whether provider is initialized.
func (m *Manager) Has(provider core.Provider) bool {
	_, ok := m.synthesizers[provider]

	return ok
}

// SupportedLanguages returns the language code → display name map.
func (m *Manager) SupportedLanguages() map[string]string {
	return core.LanguageNames()
}

// Generate preprocesses text and synthesizes it with provider.
func (m *Manager) Generate(ctx context.Context, provider core.Provider, input, language string) ([]byte, error) {
	synthesizer, ok := m.synthesizers[provider]
	if !ok {
		return nil, fmt.Errorf(errFmtProviderMissing, ErrProviderUnavailable, provider)
	}

	language = core.NormalizeLanguage(language)

	processed, err := m.preprocessor.Process(input, language)
	if err != nil {
		return nil, err
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	audioData, err := synthesizer.Synthesize(ctx, core.SpeechRequest{
		Text:     processed,
		Language: MapLanguage(provider, language),
	})
	if err != nil {
		return nil, fmt.Errorf(errFmtProviderSynthesis, provider, err)
	}

	return audioData, nil
}

// Compare synthesizes the same text with every available provider, at most
// Workers at a time. Results follow Available order; a failed provider has
// Err set and no audio.
func (m *Manager) Compare(ctx context.Context, input, language string) ([]CompareResult, error) {
	if len(m.order) == 0 {
		return nil, ErrNoProviders
	}

	results := make([]CompareResult, len(m.order))

	var waitGroup sync.WaitGroup

	workerPool := make(chan struct{}, m.workers)

	for index, provider := range m.order {
		waitGroup.Add(1)

		go func() {
			defer waitGroup.Done()

			workerPool <- struct{}{}

			defer func() { <-workerPool }()

			results[index] = m.compareOne(ctx, provider, input, language)
		}()
	}

	waitGroup.Wait()

	return results, nil
}

func (m *Manager) compareOne(ctx context.Context, provider core.Provider, input, language string) CompareResult {
	started := time.Now()

	audioData, err := m.Generate(ctx, provider, input, language)
	result := CompareResult{Provider: provider, Elapsed: time.Since(started)}

	if err != nil {
		m.log.Warn(logFmtCompareFailed, provider, err)
		result.Err = err

		return result
	}

	result.Audio = audioData

	// Inspection is descriptive only; a header we cannot parse still plays.
	info, inspectErr := audio.Inspect(audioData)
	if inspectErr == nil {
		result.Info = info
	}

	return result
}

// Close closes every synthesizer and returns the first error.
func (m *Manager) Close() error {
	var firstErr error

	for _, provider := range m.order {
		err := m.synthesizers[provider].Close()
		if err != nil {
			m.log.Error(logFmtCloseFailed, provider, err)

			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}
