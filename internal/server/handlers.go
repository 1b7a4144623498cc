package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/book-expert/voice-demo/internal/agent"
	"github.com/book-expert/voice-demo/internal/core"
	"github.com/book-expert/voice-demo/internal/tts"
	"github.com/book-expert/voice-demo/internal/tts/audio"
	"github.com/book-expert/voice-demo/internal/tts/text"
	"github.com/book-expert/voice-demo/internal/tts/ttsutils"
)

const (
	headerContentType        = "Content-Type"
	headerContentDisposition = "Content-Disposition"
	contentTypeJSON          = "application/json"
	contentTypeWAV           = "audio/wav"
	dispositionInline        = "inline"
	statusOK                 = "ok"
	resultErrorPrefix        = "Error: "
)

const (
	errMsgAudioNotFound = "Audio file not found"
	errFmtDecodeBody    = "invalid request body: %w"
	logFmtWriteJSON     = "Failed to write JSON response: %v"
	logFmtWriteAudio    = "Failed to write audio response: %v"
	logFmtTTSFailed     = "TTS request with %s failed: %v"
	logFmtReadAudio     = "Failed to read audio %s: %v"
)

var errMissingText = errors.New("text is required")

// ttsRequest is the body of POST /api/tts.
type ttsRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Provider string `json:"provider,omitempty"`
}

// compareDetail describes one provider's output in a comparison.
type compareDetail struct {
	ElapsedMillis int64       `json:"elapsed_ms"`
	Info          *audio.Info `json:"info,omitempty"`
}

type compareResponse struct {
	Success bool                     `json:"success"`
	Results map[string]string        `json:"results"`
	Details map[string]compareDetail `json:"details"`
}

type failureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type providersResponse struct {
	Providers []string                            `json:"providers"`
	Languages map[string]string                   `json:"languages"`
	Details   map[core.Provider]agent.ProviderInfo `json:"details"`
	Agent     string                              `json:"agent"`
}

type healthResponse struct {
	Status    string   `json:"status"`
	Providers []string `json:"providers"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleTTS synthesizes with one provider (WAV body) or, without a provider,
// with all of them (JSON of base64 audio per provider).
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest

	decodeErr := decodeBody(w, r, &req)
	if decodeErr == nil && req.Text == "" {
		decodeErr = errMissingText
	}

	if decodeErr != nil {
		s.writeJSON(w, http.StatusBadRequest, failureResponse{Error: decodeErr.Error()})

		return
	}

	if req.Provider == "" {
		s.compareProviders(w, r, req)

		return
	}

	provider, err := core.ParseProvider(req.Provider)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, failureResponse{Error: err.Error()})

		return
	}

	audioData, err := s.speech.Generate(r.Context(), provider, req.Text, req.Language)
	if err != nil {
		s.log.Warn(logFmtTTSFailed, provider, err)
		s.writeJSON(w, synthesisStatus(err), failureResponse{Error: err.Error()})

		return
	}

	w.Header().Set(headerContentType, contentTypeWAV)
	w.Header().Set(headerContentDisposition, dispositionInline)

	_, writeErr := w.Write(audioData)
	if writeErr != nil {
		s.log.Warn(logFmtWriteAudio, writeErr)
	}
}

func (s *Server) compareProviders(w http.ResponseWriter, r *http.Request, req ttsRequest) {
	results, err := s.speech.Compare(r.Context(), req.Text, req.Language)
	if err != nil {
		s.writeJSON(w, synthesisStatus(err), failureResponse{Error: err.Error()})

		return
	}

	response := compareResponse{
		Success: true,
		Results: make(map[string]string, len(results)),
		Details: make(map[string]compareDetail, len(results)),
	}

	for _, result := range results {
		name := result.Provider.String()
		response.Details[name] = compareDetail{ElapsedMillis: result.Elapsed.Milliseconds(), Info: result.Info}

		if result.Err != nil {
			response.Results[name] = resultErrorPrefix + result.Err.Error()

			continue
		}

		response.Results[name] = base64.StdEncoding.EncodeToString(result.Audio)
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, providersResponse{
		Providers: providerNames(s.speech.Available()),
		Languages: s.speech.SupportedLanguages(),
		Details:   agent.ProviderDetails,
		Agent:     s.responder.Name(),
	})
}

// handleConversation runs one turn on the shared HTTP session. The spoken
// reply is stored and named in audio_file.
func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	var msg agent.Message

	decodeErr := decodeBody(w, r, &msg)
	if decodeErr != nil {
		s.writeJSON(w, http.StatusBadRequest, agent.ErrorReply(decodeErr))

		return
	}

	s.writeJSON(w, http.StatusOK, s.httpAgent.ProcessMessage(r.Context(), msg))
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")

	keyErr := ttsutils.ValidateAudioKey(filename)
	if keyErr != nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: errMsgAudioNotFound})

		return
	}

	audioData, err := s.store.Download(r.Context(), filename)
	if err != nil {
		if !errors.Is(err, core.ErrObjectNotFound) {
			s.log.Error(logFmtReadAudio, filename, err)
		}

		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: errMsgAudioNotFound})

		return
	}

	w.Header().Set(headerContentType, contentTypeWAV)

	_, writeErr := w.Write(audioData)
	if writeErr != nil {
		s.log.Warn(logFmtWriteAudio, writeErr)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:    statusOK,
		Providers: providerNames(s.speech.Available()),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		s.log.Warn(logFmtWriteJSON, err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	err := json.NewDecoder(r.Body).Decode(target)
	if err != nil {
		return fmt.Errorf(errFmtDecodeBody, err)
	}

	return nil
}

// synthesisStatus maps a synthesis error to an HTTP status: caller mistakes
// are 400, a missing provider 503, anything upstream 502.
func synthesisStatus(err error) int {
	switch {
	case errors.Is(err, text.ErrTextEmpty), errors.Is(err, text.ErrTextTooLong):
		return http.StatusBadRequest
	case errors.Is(err, tts.ErrProviderUnavailable), errors.Is(err, tts.ErrNoProviders):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func providerNames(providers []core.Provider) []string {
	names := make([]string, len(providers))
	for i, provider := range providers {
		names[i] = provider.String()
	}

	return names
}
