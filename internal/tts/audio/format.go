// Package audio provides container detection and normalization for synthesized
// speech. Every provider hands its raw bytes to NormalizeToWAV so that callers
// only ever deal with WAV.
//
// All functions in this package are pure: they never log, retry or keep state,
// and they are safe for concurrent use.
package audio

import (
	"fmt"
	"time"
)

// Canonical output parameters used when wrapping AIFF sound data.
// The AIFF produced by local engines does not reliably describe itself, so
// these are fixed rather than read from the COMM chunk.
const (
	CANONICAL_CHANNELS     = 1
	CANONICAL_SAMPLE_WIDTH = 2 // bytes, 16-bit signed PCM
	CANONICAL_SAMPLE_RATE  = 22050
)

// Constants for parameter validation limits.
const (
	MAX_SAMPLE_RATE  = 192000
	MAX_CHANNELS     = 8
	MAX_SAMPLE_WIDTH = 4
	BITS_PER_BYTE    = 8
)

// Constants for error messages and formats.
const (
	ERR_FMT_SAMPLE_RATE_RANGE  = "%w: sample rate must be between 1 and %d Hz, got %d"
	ERR_FMT_SAMPLE_WIDTH_RANGE = "%w: sample width must be between 1 and %d bytes, got %d"
	ERR_FMT_CHANNELS_RANGE     = "%w: channels must be between 1 and %d, got %d"
)


// PCMFormat describes the layout of raw PCM samples.
type PCMFormat struct {
	Channels    int `json:"channels"`
	SampleWidth int `json:"sampleWidth"` // bytes per sample
	SampleRate  int `json:"sampleRate"`
}

// CanonicalFormat is mono, 16-bit, 22050 Hz.
var CanonicalFormat = PCMFormat{
	Channels:    CANONICAL_CHANNELS,
	SampleWidth: CANONICAL_SAMPLE_WIDTH,
	SampleRate:  CANONICAL_SAMPLE_RATE,
}

// Info describes a WAV buffer, as reported by Inspect.
type Info struct {
	Format     FormatTag     `json:"format"`
	Duration   time.Duration `json:"duration"`
	FileSize   int64         `json:"fileSize"`
	DataSize   int64         `json:"dataSize"`
	SampleRate int           `json:"sampleRate"`
	Channels   int           `json:"channels"`
	BitDepth   int           `json:"bitDepth"`
}

// BitsPerSample returns the sample width in bits.
func (f PCMFormat) BitsPerSample() int {
	return f.SampleWidth * BITS_PER_BYTE
}

// BlockAlign returns the number of bytes in one frame across all channels.
func (f PCMFormat) BlockAlign() int {
	return f.Channels * f.SampleWidth
}

// ByteRate returns the number of bytes per second of audio.
func (f PCMFormat) ByteRate() int {
	return f.SampleRate * f.BlockAlign()
}

// Validate checks that the parameters describe a plausible PCM stream.
// It says nothing about the samples themselves.
func (f PCMFormat) Validate() error {
	channelsErr := validateChannels(f.Channels)
	if channelsErr != nil {
		return channelsErr
	}

	widthErr := validateSampleWidth(f.SampleWidth)
	if widthErr != nil {
		return widthErr
	}

	rateErr := validateSampleRate(f.SampleRate)
	if rateErr != nil {
		return rateErr
	}

	return nil
}

//
// Validation Helpers
//

func validateSampleRate(sampleRate int) error {
	if sampleRate <= 0 || sampleRate > MAX_SAMPLE_RATE {
		return fmt.Errorf(ERR_FMT_SAMPLE_RATE_RANGE, ErrInvalidFormat, MAX_SAMPLE_RATE, sampleRate)
	}

	return nil
}

func validateSampleWidth(width int) error {
	if width <= 0 || width > MAX_SAMPLE_WIDTH {
		return fmt.Errorf(ERR_FMT_SAMPLE_WIDTH_RANGE, ErrInvalidFormat, MAX_SAMPLE_WIDTH, width)
	}

	return nil
}

func validateChannels(channels int) error {
	if channels <= 0 || channels > MAX_CHANNELS {
		return fmt.Errorf(ERR_FMT_CHANNELS_RANGE, ErrInvalidFormat, MAX_CHANNELS, channels)
	}

	return nil
}
