package config

import (
	"crypto/hkdf"
	"crypto/sha256"
	"fmt"
	"strings"
)

// SessionSigningKeys returns the HMAC keys for session cookies, primary
// first. A 32-byte key is derived from each entry of SessionSecret via
// HKDF-SHA256, so rotating in a new secret keeps old cookies valid until
// the old entry is removed. Returns (nil, nil) when SessionSecret is not set.
func (c *Config) SessionSigningKeys() ([][]byte, error) {
	if c == nil || strings.TrimSpace(c.SessionSecret) == "" {
		return nil, nil
	}
	var keys [][]byte
	for _, part := range strings.Split(c.SessionSecret, ",") {
		secret := strings.TrimSpace(part)
		if secret == "" {
			continue
		}
		if len(secret) < 16 {
			return nil, fmt.Errorf("session secret must be at least 16 characters")
		}
		derived, err := hkdf.Key(sha256.New, []byte(secret), nil, "medb-session-cookies", 32)
		if err != nil {
			return nil, fmt.Errorf("HKDF derivation failed: %w", err)
		}
		keys = append(keys, derived)
	}
	return keys, nil
}
