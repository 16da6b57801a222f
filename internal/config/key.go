package config

import (
	"encoding/base64"
	"fmt"
)

// decodeKey validates that ENCRYPTION_KEY base64-decodes to exactly 32 raw
// bytes (AES-256), per §4.2.
func decodeKey(raw string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("expected 32 bytes, got %d", len(key))
	}
	return key, nil
}
