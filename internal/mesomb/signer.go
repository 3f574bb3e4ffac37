package mesomb

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// Nonce returns a 16-byte random token, hex-encoded. One per request.
func Nonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %v", err)
	}
	return hex.EncodeToString(buf), nil
}

// Sign computes the MeSomb request signature: hex HMAC-SHA1 over
// method, endpoint, timestamp, nonce and the exact body bytes, newline
// separated. The verifier recomputes the same message, so any deviation in
// field order or body serialization breaks authentication.
func Sign(secret, method, endpoint, timestamp, nonce, body string) string {
	message := method + "\n" + endpoint + "\n" + timestamp + "\n" + nonce + "\n" + body
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the webhook signature over the raw payload bytes
// and compares constant-time against the header-supplied value.
func VerifySignature(secret string, payload []byte, signature string) bool {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
