package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/voice-demo/internal/core"
)

const (
	apiChatCompletions  = "/v1/chat/completions"
	headerContentType   = "Content-Type"
	headerAuthorization = "Authorization"
	contentTypeJSON     = "application/json"
	bearerPrefix        = "Bearer "
	maxResponseBytes    = 1 << 20

	roleSystem    = "system"
	roleUser      = "user"
	roleAssistant = "assistant"
)

const (
	errFmtChatStatus    = "%w: %s, body: %s"
	errFmtChatRequest   = "failed to send chat request to %s: %w"
	errFmtChatDecode    = "failed to decode chat response: %w"
	errFmtChatMarshal   = "failed to marshal chat request: %w"
	logFmtLLMFallback   = "LLM response generation failed, using %s responder: %v"
	errFmtCreateRequest = "failed to create chat request: %w"
)

var (
	// ErrMissingAPIKey is returned when the LLM responder has no key.
	ErrMissingAPIKey = errors.New("openai api key is not configured")
	// ErrChatStatus wraps non-200 answers from the chat endpoint.
	ErrChatStatus = errors.New("chat completion returned non-OK status")
	// ErrEmptyCompletion is returned when the model answers with no text.
	ErrEmptyCompletion = errors.New("chat completion returned no content")
)

const systemPromptTemplate = `You are a RenovaVision AI Voice Solutions Presale Manager. ` +
	`Your role is to introduce and promote RenovaVision's voice AI agents to potential customers.

IMPORTANT: Always respond in %[1]s language, not English.

CRITICAL: Keep all responses SHORT - maximum 15 words. Be concise and direct.

Your responsibilities:
1. Introduce RenovaVision as a leading AI technology company
2. Explain the benefits of AI voice agents for businesses
3. Showcase multilingual capabilities (Belarusian, Polish, Lithuanian, Latvian, Estonian, English)
4. Discuss different TTS providers and their strengths
5. Help customers understand pricing and implementation options
6. Provide technical guidance and best practices

Key talking points:
- RenovaVision specializes in conversational AI agents. They provide textual and voice agents, video avatars
- Our agents can speak multiple languages fluently
- We support various TTS providers (OpenAI, Google)
- Easy integration and customization options
- Cost-effective solutions for businesses of all sizes

Tone: Professional, enthusiastic, helpful, and knowledgeable
Style: Very concise and direct, focus on customer needs
Language: Always respond in %[1]s

Remember: You are having a voice conversation. Keep responses under 15 words maximum.`

// LLMOptions configures an LLMResponder.
type LLMOptions struct {
	BaseURL          string
	APIKey           string
	Model            string
	MaxTokens        int
	Temperature      float64
	PresencePenalty  float64
	FrequencyPenalty float64
	// HistorySize is how many earlier entries are sent as context.
	HistorySize int
	Timeout     time.Duration
	// Fallback answers when the chat call fails. Nil means errors are returned.
	Fallback Responder
}

// LLMResponder asks an OpenAI-compatible chat completion endpoint for the
// reply.
type LLMResponder struct {
	httpClient *http.Client
	opts       LLMOptions
	log        *logger.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	MaxTokens        int           `json:"max_tokens"`
	Temperature      float64       `json:"temperature"`
	PresencePenalty  float64       `json:"presence_penalty"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewLLMResponder validates opts.
func NewLLMResponder(opts LLMOptions, log *logger.Logger) (*LLMResponder, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &LLMResponder{
		httpClient: &http.Client{Timeout: opts.Timeout},
		opts:       opts,
		log:        log,
	}, nil
}

// Name is the model name.
func (r *LLMResponder) Name() string {
	return r.opts.Model
}

// Respond asks the model. When the call fails and a fallback is set, the
// fallback's answer is returned instead and the failure is only logged.
func (r *LLMResponder) Respond(ctx context.Context, turn Turn) (string, error) {
	reply, err := r.complete(ctx, turn)
	if err == nil {
		return reply, nil
	}

	if r.opts.Fallback == nil {
		return "", err
	}

	r.log.Warn(logFmtLLMFallback, r.opts.Fallback.Name(), err)

	return r.opts.Fallback.Respond(ctx, turn)
}

func (r *LLMResponder) complete(ctx context.Context, turn Turn) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:            r.opts.Model,
		Messages:         buildMessages(turn, r.opts.HistorySize),
		MaxTokens:        r.opts.MaxTokens,
		Temperature:      r.opts.Temperature,
		PresencePenalty:  r.opts.PresencePenalty,
		FrequencyPenalty: r.opts.FrequencyPenalty,
	})
	if err != nil {
		return "", fmt.Errorf(errFmtChatMarshal, err)
	}

	url := r.opts.BaseURL + apiChatCompletions

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf(errFmtCreateRequest, err)
	}

	req.Header.Set(headerContentType, contentTypeJSON)
	req.Header.Set(headerAuthorization, bearerPrefix+r.opts.APIKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf(errFmtChatRequest, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf(errFmtChatDecode, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf(errFmtChatStatus, ErrChatStatus, resp.Status, string(raw))
	}

	var decoded chatResponse

	err = json.Unmarshal(raw, &decoded)
	if err != nil {
		return "", fmt.Errorf(errFmtChatDecode, err)
	}

	if len(decoded.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}

	return content, nil
}

// buildMessages assembles the chat context: the persona prompt, at most
// historySize earlier entries and the current message.
func buildMessages(turn Turn, historySize int) []chatMessage {
	history := turn.History
	if historySize >= 0 && len(history) > historySize {
		history = history[len(history)-historySize:]
	}

	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{Role: roleSystem, Content: SystemPrompt(turn.Language)})

	for _, entry := range history {
		role := roleUser
		if entry.Role == RoleAgent {
			role = roleAssistant
		}

		messages = append(messages, chatMessage{Role: role, Content: entry.Text})
	}

	return append(messages, chatMessage{Role: roleUser, Content: turn.Text})
}

// SystemPrompt is the presale persona instructed to answer in language.
func SystemPrompt(language string) string {
	return fmt.Sprintf(systemPromptTemplate, languageName(language))
}

func languageName(code string) string {
	return core.LanguageNames()[core.NormalizeLanguage(code)]
}
