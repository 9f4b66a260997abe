package engine

import (
	"crypto/sha256"
	"encoding/hex"
)

// fingerprintLen is the number of hex characters kept from the digest.
// 64 bits of prefix is plenty for cache keying; no secrecy requirement.
const fingerprintLen = 16

// Fingerprint derives the fixed-width content key for an input. The exact
// bytes are hashed with no normalization, so the same text always maps to
// the same key across processes and restarts.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}
