package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeHandshakeDigest returns the hex HMAC-SHA256 of plainToken keyed by
// the webhook secret, as Zoom's endpoint.url_validation challenge requires.
func ComputeHandshakeDigest(plainToken, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(plainToken))
	return hex.EncodeToString(mac.Sum(nil))
}

// requestSignature returns the expected x-zm-signature value for a delivery:
// "v0=" + hex HMAC-SHA256 over "v0:{timestamp}:{rawBody}".
func requestSignature(timestamp, rawBody, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:%s", timestamp, rawBody)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifyRequestSignature recomputes the delivery signature and compares it to
// the provided header value in constant time.
func VerifyRequestSignature(timestamp, rawBody, secret, provided string) bool {
	expected := requestSignature(timestamp, rawBody, secret)
	return hmac.Equal([]byte(expected), []byte(provided))
}
