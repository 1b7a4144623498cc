package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/book-expert/voice-demo/internal/core"
	"github.com/book-expert/voice-demo/internal/tts/audio"
)

// API endpoints and paths.
const (
	apiSpeech = "/v1/audio/speech"
)

// HTTP headers.
const (
	headerContentType   = "Content-Type"
	headerAccept        = "Accept"
	headerAuthorization = "Authorization"
	contentTypeJSON     = "application/json"
	contentTypeWAV      = "audio/wav"
	bearerPrefix        = "Bearer "
	responseFormatWAV   = "wav"
	maxErrorBodyBytes   = 64 << 10
)

// Error messages.
const (
	errFmtServiceErrorWithCode = "%w: %s: %s (type: %s, code: %s)"
	errFmtServiceNonOKStatus   = "%w: %s, body: %s"
	errFmtSendRequest          = "failed to send request to %s: %w"
	errFmtRateLimit            = "rate limiter: %w"
)

// OpenAIOptions configures an OpenAISynthesizer.
type OpenAIOptions struct {
	BaseURL string
	APIKey  string
	Model   string
	Voice   string
	Timeout time.Duration
	// Limiter gates outgoing requests. Nil means unlimited.
	Limiter *rate.Limiter
}

// OpenAISynthesizer calls the OpenAI speech endpoint and returns WAV audio.
type OpenAISynthesizer struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	apiKey     string
	model      string
	voice      string
}

// speechRequest is the JSON body of POST /v1/audio/speech.
type speechRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format"`
}

// apiErrorResponse is the structured error body returned by the API.
type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// NewOpenAISynthesizer validates opts and builds a synthesizer. The base URL
// should include the protocol (e.g., "https://api.openai.com").
func NewOpenAISynthesizer(opts OpenAIOptions) (*OpenAISynthesizer, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	return &OpenAISynthesizer{
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    opts.Limiter,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		model:      opts.Model,
		voice:      opts.Voice,
	}, nil
}

// Provider implements core.Synthesizer.
func (s *OpenAISynthesizer) Provider() core.Provider {
	return core.ProviderOpenAI
}

// Synthesize sends the text to the speech endpoint. The API picks the
// language from the text itself, so req.Language is not sent.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, req core.SpeechRequest) ([]byte, error) {
	waitErr := waitLimiter(ctx, s.limiter)
	if waitErr != nil {
		return nil, waitErr
	}

	voice := req.Voice
	if voice == "" {
		voice = s.voice
	}

	requestBody, err := json.Marshal(speechRequest{
		Model:          s.model,
		Voice:          voice,
		Input:          req.Text,
		ResponseFormat: responseFormatWAV,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := s.baseURL + apiSpeech

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeWAV)
	httpReq.Header.Set(headerAuthorization, bearerPrefix+s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf(errFmtSendRequest, s.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrEmptyAudio
	}

	return audio.NormalizeToWAV(audioData)
}

// Close implements core.Synthesizer.
func (s *OpenAISynthesizer) Close() error {
	s.httpClient.CloseIdleConnections()

	return nil
}

// parseErrorResponse decodes a structured JSON error from the API, falling
// back to the raw body so diagnostic information is preserved.
func parseErrorResponse(resp *http.Response) error {
	var errorResp apiErrorResponse

	body, err := readJSON(resp.Body, maxErrorBodyBytes, &errorResp)
	if err == nil && errorResp.Error.Message != "" {
		return fmt.Errorf(errFmtServiceErrorWithCode, ErrUpstreamStatus,
			resp.Status, errorResp.Error.Message, errorResp.Error.Type, errorResp.Error.Code)
	}

	return fmt.Errorf(errFmtServiceNonOKStatus, ErrUpstreamStatus, resp.Status, strings.TrimSpace(string(body)))
}

func waitLimiter(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}

	err := limiter.Wait(ctx)
	if err != nil {
		return fmt.Errorf(errFmtRateLimit, err)
	}

	return nil
}

// NewLimiter returns a limiter allowing perSecond requests with the given
// burst, or nil when perSecond is zero.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}

	return rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
}
