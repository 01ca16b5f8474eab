package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewRunID returns an opaque identifier attached to every log line of a
// single orchestrator run.
func NewRunID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	return hex.EncodeToString(buf), nil
}
