package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifySignature checks an HMAC-SHA256 signature against the exact raw
// request bytes. Re-serialized payloads must never be signed or verified:
// serialization is not byte-stable, so the body is hashed as received.
//
// The signature is hex-encoded, optionally prefixed with "sha256=" in the
// style of GitHub webhooks. Comparison is constant time. Any malformed,
// missing or mismatched signature yields false; this function never errors.
func VerifySignature(body []byte, signatureHex, secret string) bool {
	if secret == "" || signatureHex == "" {
		return false
	}

	signatureHex = strings.TrimPrefix(signatureHex, "sha256=")
	provided, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	return hmac.Equal(mac.Sum(nil), provided)
}

// ComputeSignature returns the hex HMAC-SHA256 of body. Used by tests and
// by operators generating fixtures against a shared secret.
func ComputeSignature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
