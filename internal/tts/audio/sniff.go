package audio

import "bytes"

// FormatTag is the container type inferred from a buffer's leading bytes.
type FormatTag int

const (
	FormatUnknown FormatTag = iota
	FormatWAV
	FormatAIFF
)

// Four-byte container magics.
var (
	riffMagic = []byte("RIFF")
	formMagic = []byte("FORM")
)

const magicSize = 4

func (t FormatTag) String() string {
	switch t {
	case FormatWAV:
		return "wav"
	case FormatAIFF:
		return "aiff"
	default:
		return "unknown"
	}
}

// MarshalText reports the tag by name, so Info serializes as "wav".
func (t FormatTag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText. Anything else is
// FormatUnknown.
func (t *FormatTag) UnmarshalText(text []byte) error {
	switch string(text) {
	case "wav":
		*t = FormatWAV
	case "aiff":
		*t = FormatAIFF
	default:
		*t = FormatUnknown
	}

	return nil
}

// Classify inspects the first four bytes of buf. Buffers shorter than four
// bytes are FormatUnknown.
func Classify(buf []byte) FormatTag {
	if len(buf) < magicSize {
		return FormatUnknown
	}

	switch {
	case bytes.Equal(buf[:magicSize], riffMagic):
		return FormatWAV
	case bytes.Equal(buf[:magicSize], formMagic):
		return FormatAIFF
	default:
		return FormatUnknown
	}
}
