package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	core_errors "event-planner-core/pkg/errors"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "x-webhook-signature"

// Sign computes the hex signature for body. Used by outbound callers and
// tests; inbound verification goes through VerifySignature.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the signature header against the raw body, exactly
// as received. The body is never re-encoded before hashing; senders sign the
// serialized bytes and any re-encoding would break byte-for-byte agreement.
// The comparison is constant time. Non-hex input is treated as a mismatch,
// never as an internal error.
func VerifySignature(secret, body []byte, signature string) error {
	if signature == "" {
		return core_errors.ErrMissingSignature
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return core_errors.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	expected := mac.Sum(nil)

	if !hmac.Equal(expected, provided) {
		return core_errors.ErrInvalidSignature
	}
	return nil
}
