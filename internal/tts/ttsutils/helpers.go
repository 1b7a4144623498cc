// Package ttsutils holds small file and formatting helpers shared by the
// audio store, the HTTP API and the command-line client.
package ttsutils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common path constants.
const (
	defaultDirPermissions  = 0o750
	invalidCharReplacement = "_"
	extWAV                 = ".wav"
	maxAudioKeyLength      = 128
)

// Data size constants.
const (
	byteUnit = 1
	kilobyte = byteUnit * 1024
	megabyte = kilobyte * 1024
	gigabyte = megabyte * 1024
)

// Time and size formatting constants.
const (
	secondsInMinute = 60
	formatMillis    = "%dms"
	formatSeconds   = "%.1fs"
	formatMinutes   = "%dm %.1fs"
	formatGB        = "%.1f GB"
	formatMB        = "%.1f MB"
	formatKB        = "%.1f KB"
	formatBytes     = "%d B"
)

// Error message and format string constants.
const (
	errFmtFailedToCreateDir = "failed to create directory %s: %w"
	errFmtInvalidAudioKey   = "%w: %q"
)

// ErrInvalidAudioKey is returned for names that are not a bare .wav file name.
var ErrInvalidAudioKey = errors.New("invalid audio file name")

// EnsureDir ensures a directory exists at the given path, creating it if it doesn't.
func EnsureDir(path string) error {
	mkdirErr := os.MkdirAll(path, defaultDirPermissions)
	if mkdirErr != nil {
		return fmt.Errorf(errFmtFailedToCreateDir, path, mkdirErr)
	}

	return nil
}

// NewAudioKey returns a fresh object key for a generated WAV, optionally
// prefixed (e.g., "agent_<uuid>.wav").
func NewAudioKey(prefix string) string {
	if prefix == "" {
		return uuid.NewString() + extWAV
	}

	return SanitizeFilename(prefix) + "_" + uuid.NewString() + extWAV
}

// ValidateAudioKey accepts only bare file names ending in .wav: no
// directories, no traversal, nothing hidden.
func ValidateAudioKey(key string) error {
	valid := key != "" &&
		len(key) <= maxAudioKeyLength &&
		filepath.Base(key) == key &&
		!strings.HasPrefix(key, ".") &&
		!strings.ContainsAny(key, `/\`) &&
		strings.EqualFold(filepath.Ext(key), extWAV) &&
		SanitizeFilename(key) == key

	if !valid {
		return fmt.Errorf(errFmtInvalidAudioKey, ErrInvalidAudioKey, key)
	}

	return nil
}

// FormatDuration formats a duration for display (e.g., "850ms", "45.2s", "5m 30.5s").
func FormatDuration(duration time.Duration) string {
	if duration < time.Second {
		return fmt.Sprintf(formatMillis, duration.Milliseconds())
	}

	seconds := duration.Seconds()
	if seconds < secondsInMinute {
		return fmt.Sprintf(formatSeconds, seconds)
	}

	minutes := int(seconds / secondsInMinute)
	remainingSeconds := seconds - float64(minutes*secondsInMinute)

	return fmt.Sprintf(formatMinutes, minutes, remainingSeconds)
}

// FormatFileSize formats a file size in a human-readable string (e.g., "1.2 GB", "500.5
// MB").
func FormatFileSize(bytes int64) string {
	switch {
	case bytes >= gigabyte:
		return fmt.Sprintf(formatGB, float64(bytes)/gigabyte)
	case bytes >= megabyte:
		return fmt.Sprintf(formatMB, float64(bytes)/megabyte)
	case bytes >= kilobyte:
		return fmt.Sprintf(formatKB, float64(bytes)/kilobyte)
	default:
		return fmt.Sprintf(formatBytes, bytes)
	}
}

// SanitizeFilename removes or replaces characters that are invalid in most filesystems.
func SanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"<", invalidCharReplacement,
		">", invalidCharReplacement,
		":", invalidCharReplacement,
		"\"", invalidCharReplacement,
		"/", invalidCharReplacement,
		"\\", invalidCharReplacement,
		"|", invalidCharReplacement,
		"?", invalidCharReplacement,
		"*", invalidCharReplacement,
		" ", invalidCharReplacement,
	)

	return replacer.Replace(filename)
}
