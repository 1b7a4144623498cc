package tts

import "errors"

// Static errors.
var (
	ErrMissingAPIKey       = errors.New("api key is not configured")
	ErrEmptyAudio          = errors.New("received empty audio data")
	ErrUpstreamStatus      = errors.New("tts service returned non-OK status")
	ErrEngineNotFound      = errors.New("local tts engine not found")
	ErrEngineFailed        = errors.New("local tts engine failed")
	ErrEngineNoOutput      = errors.New("local tts engine produced no audio")
	ErrProviderUnavailable = errors.New("tts provider is not available")
	ErrNoProviders         = errors.New("no tts providers available")
)
