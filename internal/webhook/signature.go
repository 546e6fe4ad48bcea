package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// VerifySignature checks the authenticity of a webhook delivery. The
// expected signature is base64(HMAC-SHA256(secret, timestamp || rawBody)),
// computed over the exact bytes received: re-serialized JSON would not match
// byte-for-byte. Missing headers are a verification failure, not an error.
func VerifySignature(rawBody []byte, signature, timestamp string, secret []byte) bool {
	if signature == "" || timestamp == "" || len(secret) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write(rawBody)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	// hmac.Equal is constant time; a short-circuiting compare would leak
	// how many leading bytes matched.
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign computes the signature a processor would attach to a delivery. Used
// for outbound verification probes and in tests.
func Sign(rawBody []byte, timestamp string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write(rawBody)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
