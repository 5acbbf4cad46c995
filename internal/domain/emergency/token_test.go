package emergency

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTokenCodec_KeyTooShort(t *testing.T) {
	if _, err := NewTokenCodec([]byte("short")); err == nil {
		t.Fatal("expected error for key under 16 bytes")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	codec, err := NewTokenCodec([]byte("0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewTokenCodec failed: %v", err)
	}

	patientID := uuid.New()
	issued := time.Now()
	payload, err := codec.Encode(patientID, "HID-abc123", issued)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	claims, err := codec.Verify(payload)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.PatientID != patientID {
		t.Errorf("expected patient %s, got %s", patientID, claims.PatientID)
	}
	if claims.UID != "HID-abc123" {
		t.Errorf("expected uid HID-abc123, got %s", claims.UID)
	}
	if claims.Nonce == "" {
		t.Error("expected a nonce")
	}
}

func TestTokenEncode_DistinctPayloads(t *testing.T) {
	codec, _ := NewTokenCodec([]byte("0123456789abcdef"))
	patientID := uuid.New()
	issued := time.Now()

	a, _ := codec.Encode(patientID, "HID-abc123", issued)
	b, _ := codec.Encode(patientID, "HID-abc123", issued)
	if a == b {
		t.Error("two payloads minted at the same instant must differ")
	}
}

func TestTokenVerify_Tampered(t *testing.T) {
	codec, _ := NewTokenCodec([]byte("0123456789abcdef"))
	payload, _ := codec.Encode(uuid.New(), "HID-abc123", time.Now())

	// Flip a character in the signed body.
	tampered := payload
	if tampered[0] == 'A' {
		tampered = "B" + tampered[1:]
	} else {
		tampered = "A" + tampered[1:]
	}
	if _, err := codec.Verify(tampered); !errors.Is(err, ErrInvalidOrStaleQRPayload) {
		t.Fatalf("expected ErrInvalidOrStaleQRPayload, got %v", err)
	}
}

func TestTokenVerify_WrongKey(t *testing.T) {
	codec, _ := NewTokenCodec([]byte("0123456789abcdef"))
	other, _ := NewTokenCodec([]byte("fedcba9876543210"))

	payload, _ := codec.Encode(uuid.New(), "HID-abc123", time.Now())
	if _, err := other.Verify(payload); !errors.Is(err, ErrInvalidOrStaleQRPayload) {
		t.Fatalf("expected ErrInvalidOrStaleQRPayload, got %v", err)
	}
}

func TestTokenVerify_Malformed(t *testing.T) {
	codec, _ := NewTokenCodec([]byte("0123456789abcdef"))

	for _, payload := range []string{"", "no-dot", "a.b.c.d", "!!!.###"} {
		if _, err := codec.Verify(payload); !errors.Is(err, ErrInvalidOrStaleQRPayload) {
			t.Errorf("Verify(%q): expected ErrInvalidOrStaleQRPayload, got %v", payload, err)
		}
	}
}

func TestTokenVerify_SignatureStripped(t *testing.T) {
	codec, _ := NewTokenCodec([]byte("0123456789abcdef"))
	payload, _ := codec.Encode(uuid.New(), "HID-abc123", time.Now())

	body := strings.SplitN(payload, ".", 2)[0]
	if _, err := codec.Verify(body + "."); !errors.Is(err, ErrInvalidOrStaleQRPayload) {
		t.Fatalf("expected ErrInvalidOrStaleQRPayload, got %v", err)
	}
}
