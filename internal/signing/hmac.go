package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrEmptySecret means the endpoint was persisted without a signing secret.
// That is a configuration error, not a transient one.
var ErrEmptySecret = errors.New("signing: empty secret")

// Sign returns the lowercase hex HMAC-SHA256 of payload. The payload must be
// the exact bytes that go on the wire; receivers recompute over the raw body.
func Sign(secret string, payload []byte) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the signature and compares in constant time.
func Verify(secret string, payload []byte, signature string) bool {
	if secret == "" {
		return false
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), provided)
}
