package tts

import (
	"encoding/json"
	"fmt"
	"io"
)

// readJSON reads at most limit bytes from r and decodes them into target.
// The raw bytes are returned even when decoding fails.
func readJSON(r io.Reader, limit int64, target any) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return body, fmt.Errorf("failed to read body: %w", err)
	}

	err = json.Unmarshal(body, target)
	if err != nil {
		return body, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	return body, nil
}
