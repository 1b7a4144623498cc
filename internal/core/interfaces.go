// Package core defines the shared types and interfaces of the voice demo.
package core

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned by ObjectStore.Download for unknown keys.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// SpeechRequest is a single synthesis job. Language is the short code the
// client sent (see Languages); each synthesizer maps it as needed.
type SpeechRequest struct {
	Text     string
	Language string
	Voice    string
}

// Synthesizer is a text-to-speech backend. Synthesize returns WAV bytes.
// Implementations must be safe for concurrent use.
type Synthesizer interface {
	Provider() Provider
	Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error)
	Close() error
}
