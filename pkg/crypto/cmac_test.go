package crypto

import (
	"bytes"
	"errors"
	"testing"
)

// NIST SP 800-38B Appendix D.1 (AES-128) test vectors.
const sp80038BKey = "2b7e151628aed2a6abf7158809cf4f3c"

const sp80038BMessage = "6bc1bee22e409f96e93d7e117393172a" +
	"ae2d8a571e03ac9c9eb76fac45af8e51" +
	"30c81c46a35ce411e5fbc1191a0a52ef" +
	"f69f2445df4f9b17ad2b417be66c3710"

var cmacTestVectors = []struct {
	name   string
	msgLen int // prefix of sp80038BMessage, in bytes
	mac    string
}{
	{name: "Example1_Empty", msgLen: 0, mac: "bb1d6929e95937287fa37d129b756746"},
	{name: "Example2_16", msgLen: 16, mac: "070a16b46b4d4144f79bdd9dd04a287c"},
	{name: "Example3_40", msgLen: 40, mac: "dfa66747de9ae63030ca32611497c827"},
	{name: "Example4_64", msgLen: 64, mac: "51f0bebf7e3b9d92fc49741779363cfe"},
}

func TestCMACSubkeys(t *testing.T) {
	m, err := NewAESCMAC(decodeHex(t, sp80038BKey))
	if err != nil {
		t.Fatalf("NewAESCMAC failed: %v", err)
	}

	k1, k2 := m.Subkeys()
	if want := block16(t, "fbeed618357133667c85e08f7236a8de"); k1 != want {
		t.Errorf("K1 = %x, want %x", k1, want)
	}
	if want := block16(t, "f7ddac306ae266ccf90bc11ee46d513b"); k2 != want {
		t.Errorf("K2 = %x, want %x", k2, want)
	}
}

func TestCMACVectors(t *testing.T) {
	key := decodeHex(t, sp80038BKey)
	msg := decodeHex(t, sp80038BMessage)

	for _, tc := range cmacTestVectors {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CMAC(key, msg[:tc.msgLen])
			if err != nil {
				t.Fatalf("CMAC failed: %v", err)
			}
			want := decodeHex(t, tc.mac)
			if !bytes.Equal(got[:], want) {
				t.Errorf("mac mismatch\ngot:  %x\nwant: %x", got, want)
			}
		})
	}
}

// TestCMACSessionToken checks the login derivation used by the lock:
// AES-CMAC(device secret, 4-byte challenge).
func TestCMACSessionToken(t *testing.T) {
	secret := decodeHex(t, "813f956d0729a31a8620271e23d90822")
	challenge := decodeHex(t, "8e4b3f7c")

	got, err := CMAC(secret, challenge)
	if err != nil {
		t.Fatalf("CMAC failed: %v", err)
	}
	if want := decodeHex(t, "a2e26d6ea935bf713ff7fa043bd56544"); !bytes.Equal(got[:], want) {
		t.Errorf("token mismatch\ngot:  %x\nwant: %x", got, want)
	}
}

func TestCMACNilMessageEqualsEmpty(t *testing.T) {
	key := decodeHex(t, sp80038BKey)
	a, _ := CMAC(key, nil)
	b, _ := CMAC(key, []byte{})
	if a != b {
		t.Errorf("CMAC(nil) = %x, CMAC([]byte{}) = %x", a, b)
	}
}

func TestCMACVerify(t *testing.T) {
	m, err := NewAESCMAC(decodeHex(t, sp80038BKey))
	if err != nil {
		t.Fatalf("NewAESCMAC failed: %v", err)
	}
	msg := decodeHex(t, sp80038BMessage)[:40]
	tag := m.Compute(msg)

	if err := m.Verify(msg, tag[:]); err != nil {
		t.Errorf("Verify full tag: %v", err)
	}
	if err := m.Verify(msg, tag[:4]); err != nil {
		t.Errorf("Verify truncated tag: %v", err)
	}

	bad := tag
	bad[15] ^= 0x01
	if err := m.Verify(msg, bad[:]); !errors.Is(err, ErrAuthenticationFailure) {
		t.Errorf("Verify tampered tag: got %v, want ErrAuthenticationFailure", err)
	}
	if err := m.Verify(msg[:39], tag[:]); !errors.Is(err, ErrAuthenticationFailure) {
		t.Errorf("Verify truncated message: got %v, want ErrAuthenticationFailure", err)
	}
	if err := m.Verify(msg, tag[:2]); !errors.Is(err, ErrAuthenticationFailure) {
		t.Errorf("Verify 2-byte tag: got %v, want ErrAuthenticationFailure", err)
	}
}

func TestCMACInvalidKey(t *testing.T) {
	_, err := CMAC(make([]byte, 15), nil)
	if !errors.Is(err, ErrBadParameters) {
		t.Errorf("CMAC with 15-byte key: got %v, want ErrBadParameters", err)
	}
}

func TestDbl(t *testing.T) {
	// Top bit clear: plain shift.
	in := [16]byte{15: 0x01}
	if got := dbl(in); got != [16]byte{15: 0x02} {
		t.Errorf("dbl(1) = %x", got)
	}
	// Top bit set: shifted out and reduced with 0x87.
	in = [16]byte{0: 0x80}
	if got := dbl(in); got != [16]byte{15: 0x87} {
		t.Errorf("dbl(0x80..) = %x", got)
	}
}

func BenchmarkCMAC(b *testing.B) {
	m, _ := NewAESCMAC(make([]byte, 16))
	msg := make([]byte, 4)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.Compute(msg)
	}
}
