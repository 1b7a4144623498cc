package tts

import (
	"context"
	"fmt"
	"sync"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-demo/internal/core"
	"github.com/book-expert/voice-demo/internal/tts/audio"
)

const (
	errFmtGoogleClient     = "failed to create google tts client: %w"
	errFmtGoogleSynthesize = "google synthesize speech: %w"
	logFmtListVoicesFailed = "Google ListVoices for %s failed, letting the API choose: %v"
)

// GoogleOptions configures a GoogleSynthesizer.
type GoogleOptions struct {
	// CredentialsFile is a service-account JSON path. Empty uses application
	// default credentials.
	CredentialsFile string
	Voice           string
	Limiter         *rate.Limiter
}

// speechAPI is the subset of the Cloud Text-to-Speech client used here.
type speechAPI interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error)
	ListVoices(ctx context.Context, req *texttospeechpb.ListVoicesRequest) (*texttospeechpb.ListVoicesResponse, error)
	Close() error
}

// cloudSpeechAPI adapts *texttospeech.Client to speechAPI.
type cloudSpeechAPI struct {
	client *texttospeech.Client
}

func (c cloudSpeechAPI) SynthesizeSpeech(
	ctx context.Context,
	req *texttospeechpb.SynthesizeSpeechRequest,
) (*texttospeechpb.SynthesizeSpeechResponse, error) {
	return c.client.SynthesizeSpeech(ctx, req)
}

func (c cloudSpeechAPI) ListVoices(
	ctx context.Context,
	req *texttospeechpb.ListVoicesRequest,
) (*texttospeechpb.ListVoicesResponse, error) {
	return c.client.ListVoices(ctx, req)
}

func (c cloudSpeechAPI) Close() error {
	return c.client.Close()
}

// GoogleSynthesizer uses Google Cloud Text-to-Speech with LINEAR16 output.
// Language codes must already be BCP-47 tags such as "pl-PL".
type GoogleSynthesizer struct {
	api     speechAPI
	limiter *rate.Limiter
	voice   string
	log     *logger.Logger

	mu     sync.Mutex
	voices map[string]string // language code -> first listed voice, "" when none
}

// NewGoogleSynthesizer dials the Text-to-Speech API.
func NewGoogleSynthesizer(ctx context.Context, opts GoogleOptions, log *logger.Logger) (*GoogleSynthesizer, error) {
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	client, err := texttospeech.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf(errFmtGoogleClient, err)
	}

	return newGoogleSynthesizer(cloudSpeechAPI{client: client}, opts, log), nil
}

func newGoogleSynthesizer(api speechAPI, opts GoogleOptions, log *logger.Logger) *GoogleSynthesizer {
	return &GoogleSynthesizer{
		api:     api,
		limiter: opts.Limiter,
		voice:   opts.Voice,
		log:     log,
		voices:  make(map[string]string),
	}
}

// Provider implements core.Synthesizer.
func (s *GoogleSynthesizer) Provider() core.Provider {
	return core.ProviderGoogle
}

// Synthesize picks a voice (explicit, else the first one Google lists for the
// language, else none) and returns the synthesized WAV.
func (s *GoogleSynthesizer) Synthesize(ctx context.Context, req core.SpeechRequest) ([]byte, error) {
	waitErr := waitLimiter(ctx, s.limiter)
	if waitErr != nil {
		return nil, waitErr
	}

	voiceParams := &texttospeechpb.VoiceSelectionParams{
		LanguageCode: req.Language,
		Name:         s.selectVoice(ctx, req),
	}

	resp, err := s.api.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: req.Text},
		},
		Voice: voiceParams,
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_LINEAR16,
		},
	})
	if err != nil {
		return nil, fmt.Errorf(errFmtGoogleSynthesize, err)
	}

	if len(resp.GetAudioContent()) == 0 {
		return nil, ErrEmptyAudio
	}

	return audio.NormalizeToWAV(resp.GetAudioContent())
}

// Close implements core.Synthesizer.
func (s *GoogleSynthesizer) Close() error {
	return s.api.Close()
}

// selectVoice resolves and caches the voice for a language. A failed lookup
// is not cached so a later request can retry it.
func (s *GoogleSynthesizer) selectVoice(ctx context.Context, req core.SpeechRequest) string {
	if req.Voice != "" {
		return req.Voice
	}

	if s.voice != "" {
		return s.voice
	}

	s.mu.Lock()
	voice, cached := s.voices[req.Language]
	s.mu.Unlock()

	if cached {
		return voice
	}

	resp, err := s.api.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{LanguageCode: req.Language})
	if err != nil {
		s.log.Warn(logFmtListVoicesFailed, req.Language, err)

		return ""
	}

	if voices := resp.GetVoices(); len(voices) > 0 {
		voice = voices[0].GetName()
	}

	s.mu.Lock()
	s.voices[req.Language] = voice
	s.mu.Unlock()

	return voice
}
