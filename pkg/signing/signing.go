// Package signing implements the HMAC-SHA256 signature primitive used to
// authenticate outbound webhook deliveries.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes "sha256=<hex>" over payload using secret as the HMAC key.
// It is deterministic for a fixed (secret, payload) pair, and the exact
// bytes passed in must be the exact bytes later placed in the HTTP body —
// no re-serialization happens between signing and sending.
func Sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the expected HMAC-SHA256 signature
// of payload under secret, using a constant-time comparison. This is the
// check a subscriber is expected to perform on receipt; it is exposed here
// for receivers and test fixtures.
func Verify(secret, payload []byte, signature string) bool {
	expected := Sign(secret, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
