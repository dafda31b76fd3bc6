package session

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/backkem/sesame/pkg/crypto"
)

func mustHex(t testing.TB, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("failed to decode %q: %v", s, err)
	}
	return b
}

func TestNonceBytes(t *testing.T) {
	random := [RandomSize]byte{0x8e, 0x4b, 0x3f, 0x7c}

	tests := []struct {
		name    string
		counter uint64
		want    string
	}{
		{"zero", 0, "0000000000000000008e4b3f7c"},
		{"one", 1, "0100000000000000008e4b3f7c"},
		{"carry", 0x0100, "0001000000000000008e4b3f7c"},
		{"max", 0xffffffffffffffff, "ffffffffffffffff008e4b3f7c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Nonce{Counter: tt.counter, Random: random}
			got := n.Bytes()
			if hex.EncodeToString(got[:]) != tt.want {
				t.Errorf("Bytes() = %x, want %s", got, tt.want)
			}
		})
	}
}

func TestDeriveToken(t *testing.T) {
	secret := mustHex(t, "813f956d0729a31a8620271e23d90822")
	challenge := [ChallengeSize]byte{0x8e, 0x4b, 0x3f, 0x7c}

	token, err := DeriveToken(secret, challenge)
	if err != nil {
		t.Fatalf("DeriveToken failed: %v", err)
	}
	if got, want := hex.EncodeToString(token[:]), "a2e26d6ea935bf713ff7fa043bd56544"; got != want {
		t.Errorf("token = %s, want %s", got, want)
	}

	proof := LoginProof(token)
	if got, want := hex.EncodeToString(proof[:]), "a2e26d6e"; got != want {
		t.Errorf("proof = %s, want %s", got, want)
	}
}

func TestDeriveTokenInvalidSecret(t *testing.T) {
	for _, size := range []int{0, 4, 15, 17, 32} {
		_, err := DeriveToken(make([]byte, size), [ChallengeSize]byte{})
		if !errors.Is(err, ErrInvalidKey) {
			t.Errorf("DeriveToken with %d-byte secret: got %v, want ErrInvalidKey", size, err)
		}
	}
}

func TestErrDecryptionFailedWrapsAuthFailure(t *testing.T) {
	if !errors.Is(ErrDecryptionFailed, crypto.ErrAuthenticationFailure) {
		t.Error("ErrDecryptionFailed does not wrap crypto.ErrAuthenticationFailure")
	}
}
