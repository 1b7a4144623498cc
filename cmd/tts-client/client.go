package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"
)

const (
	pathHealth       = "/health"
	pathProviders    = "/api/providers"
	pathTTS          = "/api/tts"
	contentTypeJSON  = "application/json"
	maxResponseBytes = 64 << 20
	resultErrPrefix  = "Error: "
)

const (
	errFmtRequest      = "request to %s failed: %w"
	errFmtStatus       = "%w: %s: %s"
	errFmtDecode       = "failed to decode response from %s: %w"
	errFmtDecodeAudio  = "failed to decode %s audio: %w"
	errFmtMarshal      = "failed to marshal request: %w"
	errFmtBuildRequest = "failed to build request: %w"
)

var errServerStatus = errors.New("server returned non-OK status")

// apiClient talks to a running voice-demo server.
type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

type ttsRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Provider string `json:"provider,omitempty"`
}

type providersInfo struct {
	Providers []string          `json:"providers"`
	Languages map[string]string `json:"languages"`
	Agent     string            `json:"agent"`
}

type compareResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Results map[string]string `json:"results"`
	Details map[string]struct {
		ElapsedMillis int64 `json:"elapsed_ms"`
	} `json:"details"`
}

// providerAudio is one provider's outcome in a comparison.
type providerAudio struct {
	Provider string
	Audio    []byte
	Elapsed  time.Duration
	Err      error
}

type errorBody struct {
	Error string `json:"error"`
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Health checks GET /health.
func (c *apiClient) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, pathHealth, nil)

	return err
}

// Providers lists what the server can speak with.
func (c *apiClient) Providers(ctx context.Context) (*providersInfo, error) {
	body, err := c.do(ctx, http.MethodGet, pathProviders, nil)
	if err != nil {
		return nil, err
	}

	var info providersInfo

	decodeErr := json.Unmarshal(body, &info)
	if decodeErr != nil {
		return nil, fmt.Errorf(errFmtDecode, pathProviders, decodeErr)
	}

	return &info, nil
}

// Synthesize returns the WAV produced by provider.
func (c *apiClient) Synthesize(ctx context.Context, text, language, provider string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, pathTTS, ttsRequest{Text: text, Language: language, Provider: provider})
}

// Compare asks every provider at once. Results are sorted by provider name.
func (c *apiClient) Compare(ctx context.Context, text, language string) ([]providerAudio, error) {
	body, err := c.do(ctx, http.MethodPost, pathTTS, ttsRequest{Text: text, Language: language})
	if err != nil {
		return nil, err
	}

	var response compareResponse

	decodeErr := json.Unmarshal(body, &response)
	if decodeErr != nil {
		return nil, fmt.Errorf(errFmtDecode, pathTTS, decodeErr)
	}

	results := make([]providerAudio, 0, len(response.Results))

	for _, provider := range sortedKeys(response.Results) {
		payload := response.Results[provider]
		result := providerAudio{
			Provider: provider,
			Elapsed:  time.Duration(response.Details[provider].ElapsedMillis) * time.Millisecond,
		}

		if message, failed := strings.CutPrefix(payload, resultErrPrefix); failed {
			result.Err = errors.New(message)
		} else {
			result.Audio, err = base64.StdEncoding.DecodeString(payload)
			if err != nil {
				result.Err = fmt.Errorf(errFmtDecodeAudio, provider, err)
			}
		}

		results = append(results, result)
	}

	return results, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var requestBody io.Reader

	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf(errFmtMarshal, err)
		}

		requestBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, requestBody)
	if err != nil {
		return nil, fmt.Errorf(errFmtBuildRequest, err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf(errFmtRequest, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf(errFmtRequest, path, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(errFmtStatus, errServerStatus, resp.Status, serverMessage(body))
	}

	return body, nil
}

// serverMessage extracts {"error": "..."} when present.
func serverMessage(body []byte) string {
	var decoded errorBody

	if json.Unmarshal(body, &decoded) == nil && decoded.Error != "" {
		return decoded.Error
	}

	return strings.TrimSpace(string(body))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	return keys
}
