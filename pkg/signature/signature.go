// Package signature verifies that a webhook body was produced by a holder
// of the shared signing secret.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Verify reports whether signature is the hex-encoded HMAC-SHA256 of body
// under secret. The hash is computed over the exact bytes received; callers
// must not re-serialize the body before verifying. A missing or malformed
// signature fails closed. The comparison is constant time.
func Verify(secret, body []byte, signature string) bool {
	if signature == "" {
		return false
	}

	claimed, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)

	return hmac.Equal(mac.Sum(nil), claimed)
}

// Sign returns the hex-encoded HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
