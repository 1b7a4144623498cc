package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/voice-demo/internal/tts/audio"
	"github.com/book-expert/voice-demo/internal/tts/ttsutils"
)

// Flag descriptions.
const (
	flagServerDesc    = "Base URL of the voice-demo server"
	flagTextDesc      = "Text to convert to speech"
	flagProviderDesc  = "TTS provider (openai, google, local)"
	flagLanguageDesc  = "Language code (be, pl, lt, lv, et, en)"
	flagOutputDesc    = "Output file path (.wav); with --compare, one file per provider"
	flagCompareDesc   = "Synthesize the text with every provider"
	flagProvidersDesc = "List providers and languages and exit"
	flagHealthDesc    = "Check server health and exit"
	flagBenchDesc     = "Time N calls per provider after one warm-up call"
	flagTimeoutDesc   = "Request timeout"
	flagLogDirDesc    = "Directory for the client log"
)

// Flag names.
const (
	flagServer    = "server"
	flagText      = "text"
	flagProvider  = "provider"
	flagLanguage  = "language"
	flagOutput    = "output"
	flagCompare   = "compare"
	flagProviders = "providers"
	flagHealth    = "health"
	flagBench     = "bench"
	flagTimeout   = "timeout"
	flagLogDir    = "log-dir"
)

// Defaults.
const (
	defaultServerURL  = "http://localhost:8000"
	defaultProvider   = "openai"
	defaultLanguage   = "en"
	defaultOutputFile = "output.wav"
	defaultBenchText  = "Hello, this is a performance test."
	defaultTimeout    = 60 * time.Second
	logFileName       = "tts-client.log"
)

// Error and log messages.
const (
	errMsgTextRequired      = "--text must be provided"
	errMsgConflictingModes  = "--health, --providers, --compare and --bench are mutually exclusive"
	errMsgNegativeBench     = "--bench must be positive"
	errFmtFailedToInitLog   = "failed to initialize logger: %w"
	errFmtHealthCheckFailed = "health check failed: %w"
	errFmtWriteOutput       = "failed to write %s: %w"
	errFmtSynthesize        = "failed to synthesize with %s: %w"
	errFmtListProviders     = "failed to list providers: %w"
	errFmtCompare           = "comparison failed: %w"
	msgServiceHealthy       = "Server at %s is healthy\n"
	msgGenerated            = "Generated: %s (%s)\n"
	msgCompareLine          = "%-8s %8s  %s\n"
	msgCompareFailed        = "%-8s %8s  error: %v\n"
	msgBenchHeader          = "Benchmarking %s (%d calls)...\n"
	msgBenchWarmupFailed    = "  warm-up failed: %v\n"
	msgBenchCall            = "  call %d: %s (%s)\n"
	msgBenchCallFailed      = "  call %d failed: %v\n"
	msgBenchSummary         = "  avg %s, min %s, max %s\n"
	logClientInitialized    = "TTS client initialized (server: %s)"
)

var (
	errTextRequired     = errors.New(errMsgTextRequired)
	errConflictingModes = errors.New(errMsgConflictingModes)
	errNegativeBench    = errors.New(errMsgNegativeBench)
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	server    string
	text      string
	provider  string
	language  string
	output    string
	logDir    string
	compare   bool
	providers bool
	health    bool
	bench     int
	timeout   time.Duration
}

func main() {
	err := run(os.Args[1:], os.Stdout)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}

		// A logger might not be initialized yet, so use the standard log package.
		log.Fatalf("Error: %v", err)
	}
}

// run is the main application entry point, returning an error on failure.
func run(args []string, out io.Writer) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	validationErr := validateFlags(flags)
	if validationErr != nil {
		return validationErr
	}

	clientLog, err := logger.New(flags.logDir, logFileName)
	if err != nil {
		return fmt.Errorf(errFmtFailedToInitLog, err)
	}
	defer clientLog.Close()

	clientLog.Info(logClientInitialized, flags.server)

	ctx := context.Background()
	client := newAPIClient(flags.server, flags.timeout)

	switch {
	case flags.health:
		return handleHealthCheck(ctx, client, flags, clientLog, out)
	case flags.providers:
		return listProviders(ctx, client, out)
	case flags.compare:
		return compareProviders(ctx, client, flags, clientLog, out)
	case flags.bench > 0:
		return benchmark(ctx, client, flags, out)
	default:
		return processSingleText(ctx, client, flags, clientLog, out)
	}
}

// parseFlags defines and parses command-line flags, returning them in a struct.
func parseFlags(args []string) (appFlags, error) {
	var flags appFlags

	flagSet := flag.NewFlagSet("tts-client", flag.ContinueOnError)
	flagSet.StringVar(&flags.server, flagServer, defaultServerURL, flagServerDesc)
	flagSet.StringVar(&flags.text, flagText, "", flagTextDesc)
	flagSet.StringVar(&flags.provider, flagProvider, defaultProvider, flagProviderDesc)
	flagSet.StringVar(&flags.language, flagLanguage, defaultLanguage, flagLanguageDesc)
	flagSet.StringVar(&flags.output, flagOutput, defaultOutputFile, flagOutputDesc)
	flagSet.StringVar(&flags.logDir, flagLogDir, os.TempDir(), flagLogDirDesc)
	flagSet.BoolVar(&flags.compare, flagCompare, false, flagCompareDesc)
	flagSet.BoolVar(&flags.providers, flagProviders, false, flagProvidersDesc)
	flagSet.BoolVar(&flags.health, flagHealth, false, flagHealthDesc)
	flagSet.IntVar(&flags.bench, flagBench, 0, flagBenchDesc)
	flagSet.DurationVar(&flags.timeout, flagTimeout, defaultTimeout, flagTimeoutDesc)

	err := flagSet.Parse(args)
	if err != nil {
		return flags, err
	}

	return flags, nil
}

// validateFlags checks that exactly one mode is selected and that the modes
// needing text have it. --bench falls back to a fixed sentence.
func validateFlags(flags appFlags) error {
	if flags.bench < 0 {
		return errNegativeBench
	}

	modes := 0

	for _, selected := range []bool{flags.health, flags.providers, flags.compare, flags.bench > 0} {
		if selected {
			modes++
		}
	}

	if modes > 1 {
		return errConflictingModes
	}

	if flags.health || flags.providers || flags.bench > 0 {
		return nil
	}

	if strings.TrimSpace(flags.text) == "" {
		return errTextRequired
	}

	return nil
}

// handleHealthCheck performs a service health check and prints the result.
func handleHealthCheck(
	ctx context.Context,
	client *apiClient,
	flags appFlags,
	clientLog *logger.Logger,
	out io.Writer,
) error {
	err := client.Health(ctx)
	if err != nil {
		clientLog.Error("Health check failed: %v", err)

		return fmt.Errorf(errFmtHealthCheckFailed, err)
	}

	fmt.Fprintf(out, msgServiceHealthy, flags.server)

	return nil
}

func listProviders(ctx context.Context, client *apiClient, out io.Writer) error {
	info, err := client.Providers(ctx)
	if err != nil {
		return fmt.Errorf(errFmtListProviders, err)
	}

	fmt.Fprintf(out, "Providers: %s\n", strings.Join(info.Providers, ", "))

	for _, code := range sortedKeys(info.Languages) {
		fmt.Fprintf(out, "  %s  %s\n", code, info.Languages[code])
	}

	if info.Agent != "" {
		fmt.Fprintf(out, "Agent: %s\n", info.Agent)
	}

	return nil
}

// processSingleText handles the logic for converting a single text string.
func processSingleText(
	ctx context.Context,
	client *apiClient,
	flags appFlags,
	clientLog *logger.Logger,
	out io.Writer,
) error {
	wav, err := client.Synthesize(ctx, flags.text, flags.language, flags.provider)
	if err != nil {
		clientLog.Error("Synthesis with %s failed: %v", flags.provider, err)

		return fmt.Errorf(errFmtSynthesize, flags.provider, err)
	}

	err = writeOutput(flags.output, wav)
	if err != nil {
		return err
	}

	clientLog.Info("Successfully generated speech: %s", flags.output)
	fmt.Fprintf(out, msgGenerated, flags.output, describe(wav))

	return nil
}

// compareProviders writes one file per provider next to --output.
func compareProviders(
	ctx context.Context,
	client *apiClient,
	flags appFlags,
	clientLog *logger.Logger,
	out io.Writer,
) error {
	results, err := client.Compare(ctx, flags.text, flags.language)
	if err != nil {
		return fmt.Errorf(errFmtCompare, err)
	}

	for _, result := range results {
		elapsed := ttsutils.FormatDuration(result.Elapsed)

		if result.Err != nil {
			clientLog.Warn("Provider %s failed: %v", result.Provider, result.Err)
			fmt.Fprintf(out, msgCompareFailed, result.Provider, elapsed, result.Err)

			continue
		}

		path := providerOutputPath(flags.output, result.Provider)

		writeErr := writeOutput(path, result.Audio)
		if writeErr != nil {
			return writeErr
		}

		fmt.Fprintf(out, msgCompareLine, result.Provider, elapsed, path+" ("+describe(result.Audio)+")")
	}

	return nil
}

// benchStats summarizes timed calls.
type benchStats struct {
	Min, Avg, Max time.Duration
}

func summarize(samples []time.Duration) (benchStats, bool) {
	if len(samples) == 0 {
		return benchStats{}, false
	}

	stats := benchStats{Min: samples[0], Max: samples[0]}

	var total time.Duration

	for _, sample := range samples {
		total += sample
		stats.Min = min(stats.Min, sample)
		stats.Max = max(stats.Max, sample)
	}

	stats.Avg = total / time.Duration(len(samples))

	return stats, true
}

// benchmark warms up every provider once, then times --bench calls each.
func benchmark(ctx context.Context, client *apiClient, flags appFlags, out io.Writer) error {
	info, err := client.Providers(ctx)
	if err != nil {
		return fmt.Errorf(errFmtListProviders, err)
	}

	text := flags.text
	if strings.TrimSpace(text) == "" {
		text = defaultBenchText
	}

	for _, provider := range info.Providers {
		fmt.Fprintf(out, msgBenchHeader, provider, flags.bench)

		_, warmupErr := client.Synthesize(ctx, text, flags.language, provider)
		if warmupErr != nil {
			fmt.Fprintf(out, msgBenchWarmupFailed, warmupErr)

			continue
		}

		samples := make([]time.Duration, 0, flags.bench)

		for call := 1; call <= flags.bench; call++ {
			started := time.Now()

			wav, callErr := client.Synthesize(ctx, text, flags.language, provider)
			if callErr != nil {
				fmt.Fprintf(out, msgBenchCallFailed, call, callErr)

				continue
			}

			elapsed := time.Since(started)
			samples = append(samples, elapsed)
			fmt.Fprintf(out, msgBenchCall, call, ttsutils.FormatDuration(elapsed),
				ttsutils.FormatFileSize(int64(len(wav))))
		}

		if stats, ok := summarize(samples); ok {
			fmt.Fprintf(out, msgBenchSummary, ttsutils.FormatDuration(stats.Avg),
				ttsutils.FormatDuration(stats.Min), ttsutils.FormatDuration(stats.Max))
		}
	}

	return nil
}

func writeOutput(path string, data []byte) error {
	dirErr := ttsutils.EnsureDir(filepath.Dir(path))
	if dirErr != nil {
		return dirErr
	}

	err := os.WriteFile(path, data, 0o600)
	if err != nil {
		return fmt.Errorf(errFmtWriteOutput, path, err)
	}

	return nil
}

// providerOutputPath turns "out/speech.wav" into "out/speech_google.wav".
func providerOutputPath(output, provider string) string {
	ext := filepath.Ext(output)
	stem := strings.TrimSuffix(output, ext)

	if ext == "" {
		ext = ".wav"
	}

	return stem + "_" + ttsutils.SanitizeFilename(provider) + ext
}

// describe prints duration and size when the WAV header can be read.
func describe(wav []byte) string {
	size := ttsutils.FormatFileSize(int64(len(wav)))

	info, err := audio.Inspect(wav)
	if err != nil {
		return size
	}

	return fmt.Sprintf("%s, %s, %d Hz", ttsutils.FormatDuration(info.Duration), size, info.SampleRate)
}
