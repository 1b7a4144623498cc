package audio

import (
	"errors"
	"fmt"
)

// Errors returned while parsing or producing containers. All of them are
// terminal for the given input buffer.
var (
	ErrMalformedContainer = errors.New("malformed audio container")
	ErrTruncatedChunk     = errors.New("chunk runs past end of buffer")
	ErrMissingSoundChunk  = errors.New("no sound data chunk found")
	ErrUnsupportedFormat  = errors.New("unsupported audio format")
	ErrInvalidFormat      = errors.New("invalid pcm format")
)

// DIAGNOSTIC_PREFIX_SIZE is how many leading bytes an UnsupportedFormatError keeps.
const DIAGNOSTIC_PREFIX_SIZE = 8

// UnsupportedFormatError is returned by NormalizeToWAV for buffers that are
// neither RIFF/WAV nor AIFF. Prefix holds up to the first eight bytes.
type UnsupportedFormatError struct {
	Prefix []byte
}

func newUnsupportedFormatError(buf []byte) *UnsupportedFormatError {
	size := min(len(buf), DIAGNOSTIC_PREFIX_SIZE)
	prefix := make([]byte, size)
	copy(prefix, buf[:size])

	return &UnsupportedFormatError{Prefix: prefix}
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("%s: leading bytes %q", ErrUnsupportedFormat, e.Prefix)
}

// Unwrap lets errors.Is match ErrUnsupportedFormat.
func (e *UnsupportedFormatError) Unwrap() error {
	return ErrUnsupportedFormat
}
