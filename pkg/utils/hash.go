package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContentHash fingerprints passage text so unchanged passages can skip re-embedding.
func ContentHash(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(hash[:])
}
