// Package worker provides a NATS worker that synthesizes speech requests.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/voice-demo/internal/core"
	"github.com/book-expert/voice-demo/internal/tts/ttsutils"
)

const (
	handleMessageTimeout = 30 * time.Second
	// QueueGroup spreads requests over every worker on the subject.
	QueueGroup = "voice-demo-speech"
)

const (
	errFmtSubscribe       = "failed to subscribe to subject %s: %w"
	errFmtDrain           = "failed to drain subscription: %w"
	errFmtUnmarshal       = "failed to unmarshal event: %w"
	errFmtSynthesize      = "failed to synthesize speech: %w"
	errFmtUpload          = "failed to upload audio data for key '%s': %w"
	errFmtMarshalReply    = "failed to marshal reply event: %w"
	errFmtPublishReply    = "failed to publish reply event: %w"
	errFmtUnsupportedLang = "%w: %q"
	logFmtInvalidEvent    = "Failed to parse and validate event: %v"
	logFmtJobFailed       = "Failed to process speech job for workflow %s: %v"
	logFmtReplyFailed     = "Failed to publish reply event for workflow %s: %v"
	logFmtJobDone         = "Workflow %s: stored %s (%s, %s)"
	logFmtNoReplySubject  = "Workflow %s: request has no reply subject, audio stored as %s"
)

var (
	// ErrNilConnection is returned when the worker gets no NATS connection.
	ErrNilConnection = errors.New("nats connection cannot be nil")
	// ErrSubjectEmpty is returned when the worker gets no subject.
	ErrSubjectEmpty = errors.New("subject cannot be empty")
	// ErrTextEmpty marks a request without text.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrUnsupportedLanguage marks a request for a language the demo lacks.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// SpeechRequestedEvent asks for one utterance to be synthesized. Empty
// Language means English; empty Provider means the worker's default.
type SpeechRequestedEvent struct {
	Header   events.EventHeader `json:"header"`
	Text     string             `json:"text"`
	Language string             `json:"language,omitempty"`
	Provider string             `json:"provider,omitempty"`
}

// SpeechGenerator synthesizes WAV. *tts.Manager satisfies it.
type SpeechGenerator interface {
	Generate(ctx context.Context, provider core.Provider, input, language string) ([]byte, error)
}

// NatsWorker listens for speech requests on a NATS subject and answers each
// with the key of the stored audio.
type NatsWorker struct {
	natsConnection  *nats.Conn
	subject         string
	store           core.ObjectStore
	speech          SpeechGenerator
	defaultProvider core.Provider
	log             *logger.Logger
}

type speechJob struct {
	event    *SpeechRequestedEvent
	provider core.Provider
	language string
}

// NewNatsWorker creates a new instance of a NATS worker. Requests that name no
// provider are spoken with defaultProvider.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	store core.ObjectStore,
	speech SpeechGenerator,
	defaultProvider core.Provider,
	log *logger.Logger,
) (*NatsWorker, error) {
	if natsConnection == nil {
		return nil, ErrNilConnection
	}

	if strings.TrimSpace(subject) == "" {
		return nil, ErrSubjectEmpty
	}

	return &NatsWorker{
		natsConnection:  natsConnection,
		subject:         subject,
		store:           store,
		speech:          speech,
		defaultProvider: defaultProvider,
		log:             log,
	}, nil
}

// Run starts the worker and begins listening for messages. It returns after
// ctx is cancelled and the subscription has drained.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.QueueSubscribe(w.subject, QueueGroup, w.handleMessage)
	if err != nil {
		return fmt.Errorf(errFmtSubscribe, w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf(errFmtDrain, drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	job, err := w.parseAndValidateEvent(msg)
	if err != nil {
		w.log.Error(logFmtInvalidEvent, err)

		return
	}

	workflowID := job.event.Header.WorkflowID
	started := time.Now()

	audioKey, processErr := w.processSpeechJob(ctx, job)
	if processErr != nil {
		w.log.Error(logFmtJobFailed, workflowID, processErr)

		return
	}

	w.log.Info(logFmtJobDone, workflowID, audioKey, job.provider, ttsutils.FormatDuration(time.Since(started)))

	if msg.Reply == "" {
		w.log.Warn(logFmtNoReplySubject, workflowID, audioKey)

		return
	}

	replyEvent := &events.AudioChunkCreatedEvent{
		Header:     job.event.Header,
		AudioKey:   audioKey,
		PageNumber: 1,
		TotalPages: 1,
	}

	err = w.publishReplyEvent(msg, replyEvent)
	if err != nil {
		w.log.Error(logFmtReplyFailed, workflowID, err)
	}
}

// processSpeechJob synthesizes the text and uploads the audio.
func (w *NatsWorker) processSpeechJob(ctx context.Context, job *speechJob) (string, error) {
	audioData, err := w.speech.Generate(ctx, job.provider, job.event.Text, job.language)
	if err != nil {
		return "", fmt.Errorf(errFmtSynthesize, err)
	}

	audioKey := ttsutils.NewAudioKey("")

	err = w.store.Upload(ctx, audioKey, audioData)
	if err != nil {
		return "", fmt.Errorf(errFmtUpload, audioKey, err)
	}

	return audioKey, nil
}

// publishReplyEvent marshals and responds with the AudioChunkCreatedEvent.
func (w *NatsWorker) publishReplyEvent(msg *nats.Msg, replyEvent *events.AudioChunkCreatedEvent) error {
	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		return fmt.Errorf(errFmtMarshalReply, err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf(errFmtPublishReply, err)
	}

	return nil
}

func (w *NatsWorker) parseAndValidateEvent(msg *nats.Msg) (*speechJob, error) {
	var event SpeechRequestedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf(errFmtUnmarshal, err)
	}

	if strings.TrimSpace(event.Text) == "" {
		return nil, ErrTextEmpty
	}

	language := event.Language
	if language == "" {
		language = core.DefaultLanguage
	}

	if !core.IsSupportedLanguage(language) {
		return nil, fmt.Errorf(errFmtUnsupportedLang, ErrUnsupportedLanguage, language)
	}

	provider := w.defaultProvider
	if event.Provider != "" {
		provider, err = core.ParseProvider(event.Provider)
		if err != nil {
			return nil, err
		}
	}

	return &speechJob{event: &event, provider: provider, language: language}, nil
}
