package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignHMACSHA256 returns the lowercase hex HMAC-SHA256 of payload under secret.
func SignHMACSHA256(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMACSHA256 recomputes the signature of payload and compares it with signature in constant time.
// An empty secret or signature never verifies.
func VerifyHMACSHA256(secret string, payload []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := SignHMACSHA256(secret, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
