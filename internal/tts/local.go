package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-demo/internal/core"
	"github.com/book-expert/voice-demo/internal/tts/audio"
)

// Argument placeholders substituted per call.
const (
	placeholderText   = "{text}"
	placeholderOutput = "{output}"
	placeholderVoice  = "{voice}"
)

const (
	tempFilePattern       = "tts-local-*"
	errFmtEngineLookup    = "%w: %q: %w"
	errFmtEngineRun       = "%w: %s: %w - output: %s"
	errFmtEngineReadAudio = "failed to read audio data from temp file: %w"
	errFmtEngineTempFile  = "failed to create temp file for tts output: %w"
	logFmtRemoveTempFile  = "Failed to remove temp file '%s': %v"
	maxEngineOutputInLog  = 512
)

// LocalOptions describes the offline engine invocation. Args may contain the
// placeholders {text}, {output} and {voice}. An argument referencing {voice}
// is dropped when no voice is known, together with the flag right before a
// bare {voice}.
//
// Without Voice, {voice} falls back to the request's language code. That
// suits espeak-ng ("-v pl"); engines with named voices, such as macOS say,
// need Voice set or no {voice} in Args.
type LocalOptions struct {
	Command   string
	Args      []string
	OutputExt string
	Voice     string
}

// LocalSynthesizer runs an offline engine binary such as espeak-ng or macOS
// "say". Every call spawns its own process writing to its own temp file, so
// there is no engine handle to share between goroutines.
type LocalSynthesizer struct {
	command   string
	args      []string
	outputExt string
	voice     string
	log       *logger.Logger
}

// NewLocalSynthesizer resolves the engine binary on PATH.
func NewLocalSynthesizer(opts LocalOptions, log *logger.Logger) (*LocalSynthesizer, error) {
	path, err := exec.LookPath(opts.Command)
	if err != nil {
		return nil, fmt.Errorf(errFmtEngineLookup, ErrEngineNotFound, opts.Command, err)
	}

	return &LocalSynthesizer{
		command:   path,
		args:      append([]string(nil), opts.Args...),
		outputExt: opts.OutputExt,
		voice:     opts.Voice,
		log:       log,
	}, nil
}

// Provider implements core.Synthesizer.
func (s *LocalSynthesizer) Provider() core.Provider {
	return core.ProviderLocal
}

// Synthesize runs the engine and normalizes whatever container it wrote.
// The voice falls back to the configured one, then to the language code.
func (s *LocalSynthesizer) Synthesize(ctx context.Context, req core.SpeechRequest) ([]byte, error) {
	tempFile, err := os.CreateTemp("", tempFilePattern+s.outputExt)
	if err != nil {
		return nil, fmt.Errorf(errFmtEngineTempFile, err)
	}

	outputPath := tempFile.Name()
	_ = tempFile.Close()

	defer func() {
		removeErr := os.Remove(outputPath)
		if removeErr != nil && !os.IsNotExist(removeErr) {
			s.log.Warn(logFmtRemoveTempFile, outputPath, removeErr)
		}
	}()

	voice := firstNonEmpty(req.Voice, s.voice, req.Language)

	// #nosec G204 -- the command comes from configuration; text is passed as a single argument
	cmd := exec.CommandContext(ctx, s.command, expandArgs(s.args, req.Text, outputPath, voice)...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf(errFmtEngineRun, ErrEngineFailed, s.command, err, truncate(string(output), maxEngineOutputInLog))
	}

	audioData, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf(errFmtEngineReadAudio, err)
	}

	if len(audioData) == 0 {
		return nil, ErrEngineNoOutput
	}

	return audio.NormalizeToWAV(audioData)
}

// Close implements core.Synthesizer.
func (s *LocalSynthesizer) Close() error {
	return nil
}

// expandArgs substitutes placeholders into a copy of args.
func expandArgs(args []string, text, output, voice string) []string {
	replacer := strings.NewReplacer(
		placeholderText, text,
		placeholderOutput, output,
		placeholderVoice, voice,
	)
	expanded := make([]string, 0, len(args))

	for i, arg := range args {
		if voice == "" && strings.Contains(arg, placeholderVoice) {
			if arg == placeholderVoice && i > 0 && strings.HasPrefix(args[i-1], "-") && len(expanded) > 0 {
				expanded = expanded[:len(expanded)-1]
			}

			continue
		}

		expanded = append(expanded, replacer.Replace(arg))
	}

	return expanded
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}

	return ""
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	return s[:limit] + "..."
}
