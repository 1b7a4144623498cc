package tts_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-demo/internal/core"
	"github.com/book-expert/voice-demo/internal/tts"
	"github.com/book-expert/voice-demo/internal/tts/audio"
)

const testAPIKey = "sk-test"

func testWAV(t *testing.T, samples []byte) []byte {
	t.Helper()

	wav, err := audio.EncodeWAV(samples, audio.CanonicalFormat)
	require.NoError(t, err)

	return wav
}

// testAIFF builds a FORM/AIFF buffer with a single SSND chunk.
func testAIFF(samples []byte) []byte {
	ssndSize := 8 + len(samples)
	out := make([]byte, 20+8, 28+len(samples))
	copy(out[0:4], "FORM")
	binary.BigEndian.PutUint32(out[4:8], uint32(4+8+ssndSize))
	copy(out[8:12], "AIFF")
	copy(out[12:16], "SSND")
	binary.BigEndian.PutUint32(out[16:20], uint32(ssndSize))

	return append(out, samples...)
}

func newOpenAI(t *testing.T, baseURL string) *tts.OpenAISynthesizer {
	t.Helper()

	synthesizer, err := tts.NewOpenAISynthesizer(tts.OpenAIOptions{
		BaseURL: baseURL,
		APIKey:  testAPIKey,
		Model:   "tts-1",
		Voice:   "alloy",
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)

	return synthesizer
}

func TestOpenAISynthesizer_Success(t *testing.T) {
	t.Parallel()

	wav := testWAV(t, []byte{1, 0, 2, 0})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		assert.Equal(t, "Bearer "+testAPIKey, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tts-1", body["model"])
		assert.Equal(t, "alloy", body["voice"])
		assert.Equal(t, "Hello, world!", body["input"])
		assert.Equal(t, "wav", body["response_format"])

		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(wav)
	}))
	defer server.Close()

	synthesizer := newOpenAI(t, server.URL+"/")
	assert.Equal(t, core.ProviderOpenAI, synthesizer.Provider())

	audioData, err := synthesizer.Synthesize(context.Background(), core.SpeechRequest{Text: "Hello, world!", Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, wav, audioData)
	require.NoError(t, synthesizer.Close())
}

func TestOpenAISynthesizer_VoiceOverride(t *testing.T) {
	t.Parallel()

	var gotVoice atomic.Value

	wav := testWAV(t, []byte{0, 0})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotVoice.Store(body["voice"])
		_, _ = w.Write(wav)
	}))
	defer server.Close()

	_, err := newOpenAI(t, server.URL).Synthesize(context.Background(), core.SpeechRequest{Text: "hi", Voice: "nova"})
	require.NoError(t, err)
	assert.Equal(t, "nova", gotVoice.Load())
}

func TestOpenAISynthesizer_NormalizesAIFF(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(testAIFF([]byte{1, 2, 3, 4}))
	}))
	defer server.Close()

	audioData, err := newOpenAI(t, server.URL).Synthesize(context.Background(), core.SpeechRequest{Text: "hi"})
	require.NoError(t, err)
	assert.Len(t, audioData, 48)
	assert.Equal(t, audio.FormatWAV, audio.Classify(audioData))
}

func TestOpenAISynthesizer_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		status      int
		body        string
		wantErr     error
		wantMessage string
	}{
		{
			name:        "structured error",
			status:      http.StatusUnauthorized,
			body:        `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`,
			wantErr:     tts.ErrUpstreamStatus,
			wantMessage: "Incorrect API key provided",
		},
		{
			name:        "raw error body",
			status:      http.StatusBadGateway,
			body:        "upstream exploded",
			wantErr:     tts.ErrUpstreamStatus,
			wantMessage: "upstream exploded",
		},
		{
			name:    "empty audio",
			status:  http.StatusOK,
			body:    "",
			wantErr: tts.ErrEmptyAudio,
		},
		{
			name:    "mp3 instead of wav",
			status:  http.StatusOK,
			body:    "ID3\x04\x00\x00\x00\x00",
			wantErr: audio.ErrUnsupportedFormat,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(testCase.status)
				_, _ = w.Write([]byte(testCase.body))
			}))
			defer server.Close()

			_, err := newOpenAI(t, server.URL).Synthesize(context.Background(), core.SpeechRequest{Text: "hi"})
			require.ErrorIs(t, err, testCase.wantErr)

			if testCase.wantMessage != "" {
				assert.Contains(t, err.Error(), testCase.wantMessage)
			}
		})
	}
}

func TestOpenAISynthesizer_Unreachable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newOpenAI(t, url).Synthesize(context.Background(), core.SpeechRequest{Text: "hi"})
	require.Error(t, err)
}

func TestOpenAISynthesizer_MissingAPIKey(t *testing.T) {
	t.Parallel()

	_, err := tts.NewOpenAISynthesizer(tts.OpenAIOptions{BaseURL: "http://localhost"})
	require.ErrorIs(t, err, tts.ErrMissingAPIKey)
}

func TestOpenAISynthesizer_RateLimiterHonoursContext(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	wav := testWAV(t, []byte{0, 0})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write(wav)
	}))
	defer server.Close()

	synthesizer, err := tts.NewOpenAISynthesizer(tts.OpenAIOptions{
		BaseURL: server.URL,
		APIKey:  testAPIKey,
		Limiter: tts.NewLimiter(1, 1),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = synthesizer.Synthesize(ctx, core.SpeechRequest{Text: "hi"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, hits.Load())
}

func TestNewLimiter(t *testing.T) {
	t.Parallel()

	assert.Nil(t, tts.NewLimiter(0, 5))

	limiter := tts.NewLimiter(2, 0)
	require.NotNil(t, limiter)
	assert.Equal(t, 1, limiter.Burst())
}
