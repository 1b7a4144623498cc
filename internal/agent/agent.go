// Package agent implements the presale voice agent: it classifies what the
// visitor asked, writes an answer (scripted or LLM) and speaks it.
package agent

import (
	"context"
	"encoding/base64"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/book-expert/voice-demo/internal/config"
	"github.com/book-expert/voice-demo/internal/core"
	"github.com/book-expert/voice-demo/internal/tts/ttsutils"
)

// Reply types.
const (
	ReplyTypeAgentMessage = "agent_message"
	ReplyTypeError        = "error"
)

const (
	// AgentName is how the agent introduces itself in replies.
	AgentName = "RenovaVision Presale Manager"

	// WelcomeText opens every session.
	WelcomeText = "Hello! I'm your RenovaVision AI Voice Agent specialist. I can help you explore " +
		"different TTS providers and their capabilities. What would you like to know about our voice solutions?"

	audioKeyPrefix    = "response"
	maxHistoryEntries = 200
)

const (
	logFmtResponderFailed = "Session %s: responder %s failed: %v"
	logFmtSynthesisFailed = "Session %s: TTS generation failed with %s: %v"
	logFmtStoreFailed     = "Session %s: failed to store reply audio %s: %v"
	logFmtNoAPIKey        = "Warning: %s not set. Using fallback responses."
	logFmtResponderReady  = "Agent responder: %s"
	fallbackResponseText  = "Sorry, I could not answer that just now. Could you rephrase?"
)

// Role tells who said a history entry.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Entry is one line of the conversation.
type Entry struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Language  string    `json:"language"`
	Provider  string    `json:"provider,omitempty"`
	AudioFile string    `json:"audio_file,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Message is a visitor turn as received from the browser.
type Message struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Provider string `json:"provider,omitempty"`
}

// TimingMetrics reports how long each stage of a turn took, in milliseconds.
type TimingMetrics struct {
	LLMMillis float64 `json:"llm_time"`
	TTSMillis float64 `json:"tts_time"`
}

// Reply is the JSON frame sent back for a turn.
type Reply struct {
	Type          string         `json:"type"`
	Text          string         `json:"text,omitempty"`
	Error         string         `json:"error,omitempty"`
	AgentName     string         `json:"agent_name,omitempty"`
	Provider      string         `json:"provider,omitempty"`
	Language      string         `json:"language,omitempty"`
	Intent        Intent         `json:"intent,omitempty"`
	Responder     string         `json:"responder,omitempty"`
	AudioData     string         `json:"audio_data,omitempty"`
	AudioFile     string         `json:"audio_file,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	TimingMetrics *TimingMetrics `json:"timing_metrics,omitempty"`
}

// ErrorReply builds an error frame.
func ErrorReply(err error) Reply {
	return Reply{Type: ReplyTypeError, Error: err.Error(), Timestamp: time.Now()}
}

// Speaker turns text into WAV. *tts.Manager satisfies it.
type Speaker interface {
	Generate(ctx context.Context, provider core.Provider, input, language string) ([]byte, error)
	Available() []core.Provider
}

// Options configures a session.
type Options struct {
	// SessionID names the session in logs; a UUID is generated when empty.
	SessionID string
	// Store, when set, receives each spoken reply and the reply carries the
	// stored file name.
	Store core.ObjectStore
	// DefaultProvider speaks when a message names none.
	DefaultProvider core.Provider
	// ResponderTimeout bounds one Respond call. Zero means no limit.
	ResponderTimeout time.Duration
}

// Agent is one conversation. It is safe for concurrent use, though a
// browser session normally sends one message at a time.
type Agent struct {
	speaker   Speaker
	responder Responder
	opts      Options
	log       *logger.Logger

	mu      sync.Mutex
	history []Entry
}

// New creates a session.
func New(speaker Speaker, responder Responder, opts Options, log *logger.Logger) *Agent {
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}

	if opts.DefaultProvider == 0 {
		opts.DefaultProvider = core.ProviderOpenAI
	}

	return &Agent{
		speaker:   speaker,
		responder: responder,
		opts:      opts,
		log:       log,
	}
}

// NewResponder picks the responder described by cfg. LLM mode without an
// API key degrades to the localized fallback, as does any failed LLM call.
func NewResponder(cfg config.AgentConfig, openAI config.OpenAIConfig, log *logger.Logger) Responder {
	if cfg.Mode == config.AgentModeScripted {
		seed := uint64(cfg.Seed)
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}

		responder := NewScriptedResponder(rand.New(rand.NewPCG(seed, seed>>1)))
		log.Info(logFmtResponderReady, responder.Name())

		return responder
	}

	fallback := NewLocalizedResponder()

	responder, err := NewLLMResponder(LLMOptions{
		BaseURL:          openAI.BaseURL,
		APIKey:           openAI.APIKey,
		Model:            cfg.Model,
		MaxTokens:        cfg.MaxTokens,
		Temperature:      cfg.Temperature,
		PresencePenalty:  cfg.PresencePenalty,
		FrequencyPenalty: cfg.FrequencyPenalty,
		HistorySize:      cfg.HistorySize,
		Timeout:          cfg.Timeout(),
		Fallback:         fallback,
	}, log)
	if err != nil {
		log.Warn(logFmtNoAPIKey, config.EnvOpenAIAPIKey)

		return fallback
	}

	log.Info(logFmtResponderReady, responder.Name())

	return responder
}

// SessionID identifies the session.
func (a *Agent) SessionID() string {
	return a.opts.SessionID
}

// Welcome is the greeting sent when a session opens. It is not recorded in
// the history.
func (a *Agent) Welcome() Reply {
	return Reply{
		Type:      ReplyTypeAgentMessage,
		Text:      WelcomeText,
		AgentName: AgentName,
		Provider:  a.opts.DefaultProvider.String(),
		Timestamp: time.Now(),
	}
}

// History returns a copy of the conversation so far.
func (a *Agent) History() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]Entry(nil), a.history...)
}

// ProcessMessage answers one visitor message. A failed synthesis still
// yields a text reply, just without audio.
func (a *Agent) ProcessMessage(ctx context.Context, msg Message) Reply {
	language := core.NormalizeLanguage(msg.Language)
	providerName := a.providerName(msg.Provider)

	earlier := a.record(Entry{Role: RoleUser, Text: msg.Text, Language: language, Timestamp: time.Now()})

	turn := Turn{
		Text:      msg.Text,
		Language:  language,
		Intent:    ClassifyIntent(msg.Text),
		Providers: a.speaker.Available(),
		History:   earlier,
	}

	llmStarted := time.Now()
	text := a.respond(ctx, turn)
	metrics := &TimingMetrics{LLMMillis: roundMillis(time.Since(llmStarted))}

	reply := Reply{
		Type:          ReplyTypeAgentMessage,
		Text:          text,
		AgentName:     AgentName,
		Provider:      providerName,
		Language:      language,
		Intent:        turn.Intent,
		Responder:     a.responder.Name(),
		TimingMetrics: metrics,
	}

	ttsStarted := time.Now()
	audioData := a.speak(ctx, providerName, text, language)
	metrics.TTSMillis = roundMillis(time.Since(ttsStarted))

	if len(audioData) > 0 {
		reply.AudioData = base64.StdEncoding.EncodeToString(audioData)
		reply.AudioFile = a.store(ctx, audioData)
	}

	reply.Timestamp = time.Now()

	a.record(Entry{
		Role:      RoleAgent,
		Text:      text,
		Language:  language,
		Provider:  providerName,
		AudioFile: reply.AudioFile,
		Timestamp: reply.Timestamp,
	})

	return reply
}

func (a *Agent) respond(ctx context.Context, turn Turn) string {
	if a.opts.ResponderTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, a.opts.ResponderTimeout)
		defer cancel()
	}

	text, err := a.responder.Respond(ctx, turn)
	if err != nil || text == "" {
		a.log.Error(logFmtResponderFailed, a.opts.SessionID, a.responder.Name(), err)

		return fallbackResponseText
	}

	return text
}

func (a *Agent) speak(ctx context.Context, providerName, text, language string) []byte {
	provider, err := core.ParseProvider(providerName)
	if err == nil {
		var audioData []byte

		audioData, err = a.speaker.Generate(ctx, provider, text, language)
		if err == nil {
			return audioData
		}
	}

	a.log.Warn(logFmtSynthesisFailed, a.opts.SessionID, providerName, err)

	return nil
}

func (a *Agent) store(ctx context.Context, audioData []byte) string {
	if a.opts.Store == nil {
		return ""
	}

	key := ttsutils.NewAudioKey(audioKeyPrefix)

	err := a.opts.Store.Upload(ctx, key, audioData)
	if err != nil {
		a.log.Error(logFmtStoreFailed, a.opts.SessionID, key, err)

		return ""
	}

	return key
}

// providerName resolves the provider a reply is spoken with: the requested
// one, else the default.
func (a *Agent) providerName(requested string) string {
	if requested != "" {
		return requested
	}

	return a.opts.DefaultProvider.String()
}

// record appends entry and returns the history as it was before.
func (a *Agent) record(entry Entry) []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	earlier := append([]Entry(nil), a.history...)

	a.history = append(a.history, entry)
	if len(a.history) > maxHistoryEntries {
		a.history = append([]Entry(nil), a.history[len(a.history)-maxHistoryEntries:]...)
	}

	return earlier
}

func roundMillis(d time.Duration) float64 {
	const hundredths = 100

	return math.Round(float64(d.Microseconds())/10) / hundredths
}
