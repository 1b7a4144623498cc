package server_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-demo/internal/agent"
	"github.com/book-expert/voice-demo/internal/core"
	"github.com/book-expert/voice-demo/internal/objectstore"
	"github.com/book-expert/voice-demo/internal/server"
	"github.com/book-expert/voice-demo/internal/tts"
	"github.com/book-expert/voice-demo/internal/tts/audio"
)

var testWAV = []byte("RIFF\x24\x00\x00\x00WAVE")

type fakeSpeech struct {
	generateErr error
	compare     []tts.CompareResult
	compareErr  error
}

func (f *fakeSpeech) Generate(_ context.Context, _ core.Provider, _, _ string) ([]byte, error) {
	if f.generateErr != nil {
		return nil, f.generateErr
	}

	return testWAV, nil
}

func (f *fakeSpeech) Available() []core.Provider {
	return []core.Provider{core.ProviderOpenAI, core.ProviderLocal}
}

func (f *fakeSpeech) Compare(context.Context, string, string) ([]tts.CompareResult, error) {
	return f.compare, f.compareErr
}

func (f *fakeSpeech) SupportedLanguages() map[string]string {
	return core.LanguageNames()
}

type fixture struct {
	server *server.Server
	store  *objectstore.FileObjectStore
	http   *httptest.Server
}

func newFixture(t *testing.T, speech *fakeSpeech) *fixture {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	store, err := objectstore.NewFileObjectStore(t.TempDir())
	require.NoError(t, err)

	responder := agent.NewScriptedResponder(rand.New(rand.NewPCG(1, 2)))
	srv := server.New(speech, responder, store, server.Options{}, log)

	httpServer := httptest.NewServer(srv.Handler())
	t.Cleanup(httpServer.Close)

	return &fixture{server: srv, store: store, http: httpServer}
}

func (f *fixture) post(t *testing.T, path, body string) *http.Response {
	t.Helper()

	resp, err := http.Post(f.http.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()

	resp, err := http.Get(f.http.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var body T

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	return body
}

func TestPages(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakeSpeech{})

	for path, marker := range map[string]string{"/": "Voice Agent", "/demo": "Provider Comparison"} {
		resp := f.get(t, path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

		page, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(page), marker)
	}

	assert.Equal(t, http.StatusNotFound, f.get(t, "/missing").StatusCode)
}

func TestHealthAndProviders(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakeSpeech{})

	health := decode[map[string]any](t, f.get(t, "/health"))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, []any{"openai", "local"}, health["providers"])

	providers := decode[struct {
		Providers []string                      `json:"providers"`
		Languages map[string]string             `json:"languages"`
		Details   map[string]agent.ProviderInfo `json:"details"`
		Agent     string                        `json:"agent"`
	}](t, f.get(t, "/api/providers"))

	assert.Equal(t, []string{"openai", "local"}, providers.Providers)
	assert.Equal(t, "Belarusian", providers.Languages["be"])
	assert.Equal(t, "Google Cloud TTS", providers.Details["google"].Name)
	assert.Equal(t, "scripted", providers.Agent)
}

func TestTTS_SingleProvider(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakeSpeech{})

	resp := f.post(t, "/api/tts", `{"text":"Hello","language":"en","provider":"openai"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/wav", resp.Header.Get("Content-Type"))
	assert.Equal(t, "inline", resp.Header.Get("Content-Disposition"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, testWAV, body)
}

func TestTTS_Errors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakeSpeech{})

	testCases := []struct {
		body   string
		status int
	}{
		{`{"text":"Hello","provider":"elevenlabs"}`, http.StatusBadRequest},
		{`{"text":"","provider":"openai"}`, http.StatusBadRequest},
		{`not json`, http.StatusBadRequest},
	}

	for _, testCase := range testCases {
		resp := f.post(t, "/api/tts", testCase.body)
		assert.Equal(t, testCase.status, resp.StatusCode, testCase.body)

		failure := decode[map[string]any](t, resp)
		assert.Equal(t, false, failure["success"])
		assert.NotEmpty(t, failure["error"])
	}

	unavailable := newFixture(t, &fakeSpeech{
		generateErr: fmt.Errorf("%w: google", tts.ErrProviderUnavailable),
	})
	resp := unavailable.post(t, "/api/tts", `{"text":"Hello","provider":"google"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	upstream := newFixture(t, &fakeSpeech{generateErr: tts.ErrUpstreamStatus})
	resp = upstream.post(t, "/api/tts", `{"text":"Hello","provider":"openai"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestTTS_CompareAllProviders(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakeSpeech{compare: []tts.CompareResult{
		{
			Provider: core.ProviderOpenAI,
			Audio:    testWAV,
			Info:     &audio.Info{Format: audio.FormatWAV, SampleRate: 22050},
			Elapsed:  1500 * time.Millisecond,
		},
		{Provider: core.ProviderLocal, Err: tts.ErrEngineFailed},
	}})

	resp := f.post(t, "/api/tts", `{"text":"Hello","language":"lt"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[struct {
		Success bool              `json:"success"`
		Results map[string]string `json:"results"`
		Details map[string]struct {
			ElapsedMillis int64       `json:"elapsed_ms"`
			Info          *audio.Info `json:"info"`
		} `json:"details"`
	}](t, resp)

	assert.True(t, body.Success)
	assert.Equal(t, base64.StdEncoding.EncodeToString(testWAV), body.Results["openai"])
	assert.Equal(t, "Error: "+tts.ErrEngineFailed.Error(), body.Results["local"])
	assert.Equal(t, int64(1500), body.Details["openai"].ElapsedMillis)
	require.NotNil(t, body.Details["openai"].Info)
	assert.Equal(t, 22050, body.Details["openai"].Info.SampleRate)
	assert.Nil(t, body.Details["local"].Info)

	none := newFixture(t, &fakeSpeech{compareErr: tts.ErrNoProviders})
	assert.Equal(t, http.StatusServiceUnavailable, none.post(t, "/api/tts", `{"text":"Hello"}`).StatusCode)
}

func TestConversationStoresAudio(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakeSpeech{})

	resp := f.post(t, "/api/conversation", `{"text":"how much does it cost?","language":"pl"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reply := decode[agent.Reply](t, resp)
	assert.Equal(t, agent.ReplyTypeAgentMessage, reply.Type)
	assert.Equal(t, agent.IntentPricing, reply.Intent)
	assert.Equal(t, "openai", reply.Provider)
	require.NotEmpty(t, reply.AudioFile)

	audioResp := f.get(t, "/api/audio/"+reply.AudioFile)
	require.Equal(t, http.StatusOK, audioResp.StatusCode)
	assert.Equal(t, "audio/wav", audioResp.Header.Get("Content-Type"))

	stored, err := io.ReadAll(audioResp.Body)
	require.NoError(t, err)
	assert.Equal(t, testWAV, stored)

	bad := f.post(t, "/api/conversation", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
	assert.Equal(t, agent.ReplyTypeError, decode[agent.Reply](t, bad).Type)
}

func TestAudioNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakeSpeech{})

	for _, name := range []string{"missing.wav", "notes.txt", ".hidden.wav"} {
		resp := f.get(t, "/api/audio/"+name)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, name)
		assert.Equal(t, "Audio file not found", decode[map[string]string](t, resp)["error"])
	}
}

func dial(t *testing.T, baseURL string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func readReply(t *testing.T, conn *websocket.Conn) agent.Reply {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var reply agent.Reply

	require.NoError(t, conn.ReadJSON(&reply))

	return reply
}

func TestWebSocketConversation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakeSpeech{})
	conn := dial(t, f.http.URL)

	welcome := readReply(t, conn)
	assert.Equal(t, agent.ReplyTypeAgentMessage, welcome.Type)
	assert.Equal(t, agent.WelcomeText, welcome.Text)
	assert.Equal(t, "openai", welcome.Provider)

	require.NoError(t, conn.WriteJSON(agent.Message{Text: "Can I get a demo?", Language: "et", Provider: "local"}))

	reply := readReply(t, conn)
	assert.Equal(t, agent.IntentDemoRequest, reply.Intent)
	assert.Contains(t, reply.Text, agent.DemoTexts["et"])
	assert.Equal(t, "local", reply.Provider)
	assert.Equal(t, base64.StdEncoding.EncodeToString(testWAV), reply.AudioData)
	assert.Empty(t, reply.AudioFile, "socket sessions stream audio inline")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{broken")))
	assert.Equal(t, agent.ReplyTypeError, readReply(t, conn).Type)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))
	assert.Equal(t, agent.ReplyTypeError, readReply(t, conn).Type)

	require.NoError(t, conn.WriteJSON(agent.Message{Text: "goodbye"}))
	assert.Equal(t, agent.IntentClosing, readReply(t, conn).Intent, "session survives bad frames")
}

func TestServeShutsDownGracefully(t *testing.T) {
	t.Parallel()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	store, err := objectstore.NewFileObjectStore(t.TempDir())
	require.NoError(t, err)

	srv := server.New(&fakeSpeech{}, agent.NewLocalizedResponder(), store,
		server.Options{ShutdownTimeout: 2 * time.Second}, log)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- srv.Serve(ctx, listener) }()

	baseURL := "http://" + listener.Addr().String()

	require.Eventually(t, func() bool {
		resp, getErr := http.Get(baseURL + "/health")
		if getErr != nil {
			return false
		}

		_ = resp.Body.Close()

		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	conn := dial(t, baseURL)
	readReply(t, conn)

	cancel()

	select {
	case serveErr := <-done:
		require.NoError(t, serveErr)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	_, _, readErr := conn.ReadMessage()
	require.Error(t, readErr, "live sessions are closed on shutdown")

	_, err = http.Post(baseURL+"/api/tts", "application/json", bytes.NewReader([]byte(`{}`)))
	require.Error(t, err)
}
