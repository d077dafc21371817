package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/qolzam/telar/apps/relay/internal/types"
)

// ErrInvalidSignature is returned when the supplied digest does not match.
var ErrInvalidSignature = errors.New("HMAC signature validation failed")

// Envelope is the signed part of a relay request.
type Envelope struct {
	// Payload is the decoded object or its JSON string form.
	Payload   any
	Timestamp int64
	Signature string
}

// Verifier computes and checks HMAC-SHA256 digests over canonical payloads.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for the given secret
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Digest returns the hex encoded HMAC-SHA256 of canonical.
func (v *Verifier) Digest(canonical []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil))
}

// Sign canonicalizes payload and timestamp and returns the hex digest.
func (v *Verifier) Sign(payload any, timestamp int64) (string, error) {
	canonical, err := Canonicalize(payload, timestamp)
	if err != nil {
		return "", err
	}
	return v.Digest(canonical), nil
}

// VerifyCanonical reports whether signature is the digest of canonical.
// Malformed signatures simply do not match; the comparison is constant time.
func (v *Verifier) VerifyCanonical(canonical []byte, signature string) bool {
	supplied, err := decodeSignature(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(canonical)

	return hmac.Equal(mac.Sum(nil), supplied)
}

// Verify checks the envelope signature. It returns ErrParse when the payload
// cannot be canonicalized and ErrInvalidSignature on mismatch.
func (v *Verifier) Verify(env Envelope) error {
	canonical, err := Canonicalize(env.Payload, env.Timestamp)
	if err != nil {
		return err
	}
	if !v.VerifyCanonical(canonical, env.Signature) {
		return ErrInvalidSignature
	}
	return nil
}

func decodeSignature(signature string) ([]byte, error) {
	signature = strings.TrimSpace(signature)
	signature = strings.TrimPrefix(signature, types.HMACPrefix)
	return hex.DecodeString(strings.ToLower(signature))
}
