package emergency

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidOrStaleQRPayload covers both forgery (bad signature, malformed
// token) and staleness (payload no longer matches the patient's current QR
// record).
var ErrInvalidOrStaleQRPayload = errors.New("invalid or stale QR payload")

// TokenClaims is the structure bound into a QR payload. The payload is
// verifiable offline by anyone holding the key, but the server still checks
// it against the stored record before disclosing anything.
type TokenClaims struct {
	PatientID uuid.UUID `json:"patient_id"`
	UID       string    `json:"uid"`
	IssuedAt  time.Time `json:"issued_at"`
	Nonce     string    `json:"nonce"`
}

// TokenCodec signs and verifies QR payloads with HMAC-SHA256 over the claim
// JSON under a server-held key.
type TokenCodec struct {
	key []byte
}

func NewTokenCodec(key []byte) (*TokenCodec, error) {
	if len(key) < 16 {
		return nil, fmt.Errorf("qr signing key must be at least 16 bytes")
	}
	return &TokenCodec{key: key}, nil
}

// Encode mints a fresh payload for the patient. The random nonce makes every
// regeneration produce a distinct payload even within the same second.
func (c *TokenCodec) Encode(patientID uuid.UUID, uid string, issuedAt time.Time) (string, error) {
	var nonce [8]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	claims := TokenClaims{
		PatientID: patientID,
		UID:       uid,
		IssuedAt:  issuedAt.UTC().Truncate(time.Second),
		Nonce:     base64.RawURLEncoding.EncodeToString(nonce[:]),
	}
	body, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	mac := hmac.New(sha256.New, c.key)
	mac.Write(body)

	return base64.RawURLEncoding.EncodeToString(body) + "." +
		base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Verify checks the signature and decodes the claims. A valid signature is
// necessary but not sufficient: callers must still compare the payload against
// the patient's current stored record.
func (c *TokenCodec) Verify(payload string) (*TokenClaims, error) {
	parts := strings.SplitN(payload, ".", 2)
	if len(parts) != 2 {
		return nil, ErrInvalidOrStaleQRPayload
	}

	body, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrInvalidOrStaleQRPayload
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrInvalidOrStaleQRPayload
	}

	mac := hmac.New(sha256.New, c.key)
	mac.Write(body)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return nil, ErrInvalidOrStaleQRPayload
	}

	var claims TokenClaims
	if err := json.Unmarshal(body, &claims); err != nil {
		return nil, ErrInvalidOrStaleQRPayload
	}
	if claims.PatientID == uuid.Nil {
		return nil, ErrInvalidOrStaleQRPayload
	}
	return &claims, nil
}
