package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the hex HMAC-SHA256 of the raw payload bytes using the
// webhook's secret. Sent as X-TrackVerse-Signature on every delivery.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the signature and compares in constant
// time. Subscribers use the same check on their side; it is exposed
// here so the test endpoint and SDK snippets share one implementation.
func VerifySignature(payload []byte, signature, secret string) bool {
	expected := Sign(payload, secret)
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	exp, err := hex.DecodeString(expected)
	if err != nil {
		return false
	}
	return hmac.Equal(sig, exp)
}
