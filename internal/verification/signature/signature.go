// Package signature implements the shared-secret authenticity tag attached to
// provider response and webhook bodies. The secret is symmetric: the same key
// signs outbound checks and verifies inbound deliveries, and it never leaves
// the process.
package signature

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Sign computes the authenticity tag for body: hex(sha256(body || sha256(secret))).
func Sign(body []byte, secret string) string {
	inner := sha256.Sum256([]byte(secret))
	h := sha256.New()
	h.Write(body)
	h.Write(inner[:])
	return hex.EncodeToString(h.Sum(nil))
}

// Verify recomputes the tag from body and the configured secret and compares
// it to the received tag in constant time. Empty body or empty tag is always
// invalid. Malformed input never panics, it only fails verification.
func Verify(body []byte, tag, secret string) bool {
	if len(body) == 0 || tag == "" {
		return false
	}
	expected := Sign(body, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(tag)) == 1
}
