package zoom

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Header names Zoom sets on webhook deliveries.
const (
	HeaderTimestamp = "x-zm-request-timestamp"
	HeaderSignature = "x-zm-signature"
)

// ChallengeResponse answers the endpoint.url_validation handshake.
type ChallengeResponse struct {
	PlainToken     string `json:"plainToken"`
	EncryptedToken string `json:"encryptedToken"`
}

// VerifySignature checks a webhook delivery against the shared secret.
// Zoom signs the literal string "v0:{timestamp}:{rawBody}" with HMAC-SHA256
// and sends it as "v0={hex digest}". Returns false on any mismatch.
func VerifySignature(body []byte, timestamp, signature, secret string) bool {
	if timestamp == "" || signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// AnswerChallenge computes the response to an endpoint.url_validation event.
// The handshake happens before Zoom has anything to sign, so it is exempt
// from signature verification.
func AnswerChallenge(plainToken, secret string) ChallengeResponse {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(plainToken))
	return ChallengeResponse{
		PlainToken:     plainToken,
		EncryptedToken: hex.EncodeToString(mac.Sum(nil)),
	}
}
