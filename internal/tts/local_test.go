package tts_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-demo/internal/config"
	"github.com/book-expert/voice-demo/internal/core"
	"github.com/book-expert/voice-demo/internal/tts"
	"github.com/book-expert/voice-demo/internal/tts/audio"
)

func newLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	return log
}

func requireCommand(t *testing.T, name string) {
	t.Helper()

	_, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("Skipping test: %s not found on PATH", name)
	}
}

func newLocal(t *testing.T, command string, args ...string) *tts.LocalSynthesizer {
	t.Helper()
	requireCommand(t, command)

	synthesizer, err := tts.NewLocalSynthesizer(tts.LocalOptions{
		Command:   command,
		Args:      args,
		OutputExt: ".wav",
	}, newLogger(t))
	require.NoError(t, err)

	return synthesizer
}

func writeFixture(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

func TestLocalSynthesizer_ConvertsAIFF(t *testing.T) {
	t.Parallel()

	fixture := writeFixture(t, "speech.aiff", testAIFF([]byte{0x01, 0x02, 0x03, 0x04}))
	synthesizer := newLocal(t, "cp", fixture, "{output}")
	assert.Equal(t, core.ProviderLocal, synthesizer.Provider())

	audioData, err := synthesizer.Synthesize(context.Background(), core.SpeechRequest{Text: "hello", Language: "en"})
	require.NoError(t, err)
	require.Len(t, audioData, 48)

	info, err := audio.Inspect(audioData)
	require.NoError(t, err)
	assert.Equal(t, 22050, info.SampleRate)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, audioData[44:])
	require.NoError(t, synthesizer.Close())
}

func TestLocalSynthesizer_PassesWAVThrough(t *testing.T) {
	t.Parallel()

	wav := testWAV(t, []byte{9, 0, 8, 0})
	fixture := writeFixture(t, "speech.wav", wav)
	synthesizer := newLocal(t, "cp", fixture, "{output}")

	audioData, err := synthesizer.Synthesize(context.Background(), core.SpeechRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, wav, audioData)
}

func TestLocalSynthesizer_SubstitutesPlaceholders(t *testing.T) {
	t.Parallel()

	// The engine writes "RIFF<voice>:<text>" so the result passes normalization untouched.
	synthesizer := newLocal(t, "sh", "-c", `printf 'RIFF%s:%s' "$1" "$2" > "$0"`, "{output}", "{voice}", "{text}")

	audioData, err := synthesizer.Synthesize(context.Background(), core.SpeechRequest{Text: "labas rytas", Language: "lt"})
	require.NoError(t, err)
	assert.Equal(t, "RIFFlt:labas rytas", string(audioData))

	audioData, err = synthesizer.Synthesize(context.Background(), core.SpeechRequest{Text: "x", Language: "lt", Voice: "f1"})
	require.NoError(t, err)
	assert.Equal(t, "RIFFf1:x", string(audioData))
}

func TestLocalSynthesizer_DefaultArgsSelectVoiceByLanguage(t *testing.T) {
	t.Parallel()

	// Records its arguments the way espeak-ng would receive them.
	script := `out=""; while [ $# -gt 0 ]; do case "$1" in -w) out="$2"; shift 2;; *) args="$args $1"; shift;; esac; done; printf 'RIFF%s' "$args" > "$out"`
	synthesizer := newLocal(t, "sh", append([]string{"-c", script, "engine"}, config.DefaultLocalArgs...)...)

	audioData, err := synthesizer.Synthesize(context.Background(), core.SpeechRequest{Text: "dzień dobry", Language: "pl"})
	require.NoError(t, err)
	assert.Equal(t, "RIFF -v pl dzień dobry", string(audioData))

	audioData, err = synthesizer.Synthesize(context.Background(), core.SpeechRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "RIFF hello", string(audioData), "the -v flag goes away with an unknown voice")
}

func TestLocalSynthesizer_Errors(t *testing.T) {
	t.Parallel()

	_, err := newLocal(t, "true").Synthesize(context.Background(), core.SpeechRequest{Text: "hi"})
	require.ErrorIs(t, err, tts.ErrEngineNoOutput)

	_, err = newLocal(t, "false").Synthesize(context.Background(), core.SpeechRequest{Text: "hi"})
	require.ErrorIs(t, err, tts.ErrEngineFailed)

	fixture := writeFixture(t, "speech.mp3", []byte("ID3\x04\x00\x00\x00\x00"))
	_, err = newLocal(t, "cp", fixture, "{output}").Synthesize(context.Background(), core.SpeechRequest{Text: "hi"})
	require.ErrorIs(t, err, audio.ErrUnsupportedFormat)

	_, err = tts.NewLocalSynthesizer(tts.LocalOptions{Command: "definitely-not-a-tts-engine"}, newLogger(t))
	require.ErrorIs(t, err, tts.ErrEngineNotFound)
}

func TestLocalSynthesizer_RemovesTempFile(t *testing.T) {
	t.Parallel()

	record := filepath.Join(t.TempDir(), "output-path")
	synthesizer := newLocal(t, "sh", "-c", `printf '%s' "$0" > "$1"; printf RIFF > "$0"`, "{output}", record)

	_, err := synthesizer.Synthesize(context.Background(), core.SpeechRequest{Text: "hi"})
	require.NoError(t, err)

	outputPath, err := os.ReadFile(record)
	require.NoError(t, err)
	assert.NoFileExists(t, string(outputPath))
}
