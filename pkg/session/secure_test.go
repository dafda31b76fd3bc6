package session

import (
	"bytes"
	"errors"
	"math"
	"sync"
	"testing"
)

var (
	testSecret    = []byte{0x81, 0x3f, 0x95, 0x6d, 0x07, 0x29, 0xa3, 0x1a, 0x86, 0x20, 0x27, 0x1e, 0x23, 0xd9, 0x08, 0x22}
	testChallenge = [ChallengeSize]byte{0x8e, 0x4b, 0x3f, 0x7c}
)

func newTestState(t *testing.T) *CipherState {
	t.Helper()
	s := NewCipherState()
	if _, err := s.Establish(testSecret, testChallenge); err != nil {
		t.Fatalf("Establish failed: %v", err)
	}
	return s
}

func TestCipherState_NoToken(t *testing.T) {
	s := NewCipherState()
	if s.HasToken() {
		t.Fatal("new state reports a token")
	}

	if _, err := s.Seal([]byte{0x53}); err != ErrNoToken {
		t.Errorf("Seal without token: got %v, want ErrNoToken", err)
	}
	if _, err := s.Open(make([]byte, 8)); err != ErrNoToken {
		t.Errorf("Open without token: got %v, want ErrNoToken", err)
	}
}

func TestCipherState_SealVector(t *testing.T) {
	s := newTestState(t)

	sealed, err := s.Seal(mustHex(t, "5303616263"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if want := mustHex(t, "0fe85988a1c8568b6b"); !bytes.Equal(sealed, want) {
		t.Errorf("sealed = %x, want %x", sealed, want)
	}
	if got := s.EncryptNonce().Counter; got != 1 {
		t.Errorf("encrypt counter = %d, want 1", got)
	}
	if got := s.DecryptNonce().Counter; got != 0 {
		t.Errorf("decrypt counter = %d, want 0", got)
	}
}

func TestCipherState_OpenVector(t *testing.T) {
	s := newTestState(t)

	plaintext, err := s.Open(mustHex(t, "5be9380e92ef281570a55b"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if want := mustHex(t, "070200e4505d68"); !bytes.Equal(plaintext, want) {
		t.Errorf("plaintext = %x, want %x", plaintext, want)
	}
	if got := s.DecryptNonce().Counter; got != 1 {
		t.Errorf("decrypt counter = %d, want 1", got)
	}
	if got := s.EncryptNonce().Counter; got != 0 {
		t.Errorf("encrypt counter = %d, want 0", got)
	}
}

func TestCipherState_FailedOpenKeepsCounter(t *testing.T) {
	s := newTestState(t)
	valid := mustHex(t, "5be9380e92ef281570a55b")

	tampered := append([]byte(nil), valid...)
	tampered[len(tampered)-1] ^= 0x01
	_, err := s.Open(tampered)
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("Open tampered: got %v, want ErrDecryptionFailed", err)
	}
	if got := s.DecryptNonce().Counter; got != 0 {
		t.Fatalf("decrypt counter after failure = %d, want 0", got)
	}

	// The genuine message still opens at the unchanged counter.
	if _, err := s.Open(valid); err != nil {
		t.Fatalf("Open after failure: %v", err)
	}
}

func TestCipherState_ShortMessage(t *testing.T) {
	s := newTestState(t)
	for _, n := range []int{0, 1, TagSize - 1} {
		if _, err := s.Open(make([]byte, n)); err != ErrMessageTooShort {
			t.Errorf("Open %d bytes: got %v, want ErrMessageTooShort", n, err)
		}
	}
}

func TestCipherState_PeersInterop(t *testing.T) {
	client := newTestState(t)
	lock := newTestState(t)

	for i := 0; i < 5; i++ {
		msg := []byte{0x52, 0x0c, byte(i)}

		sealed, err := client.Seal(msg)
		if err != nil {
			t.Fatalf("client Seal %d: %v", i, err)
		}
		got, err := lock.Open(sealed)
		if err != nil {
			t.Fatalf("lock Open %d: %v", i, err)
		}
		if !bytes.Equal(got, msg) {
			t.Fatalf("message %d: got %x, want %x", i, got, msg)
		}

		reply, err := lock.Seal([]byte{0x07, 0x52, 0x00})
		if err != nil {
			t.Fatalf("lock Seal %d: %v", i, err)
		}
		if _, err := client.Open(reply); err != nil {
			t.Fatalf("client Open %d: %v", i, err)
		}
	}

	if c := client.EncryptNonce().Counter; c != 5 {
		t.Errorf("client encrypt counter = %d, want 5", c)
	}
	if c := lock.DecryptNonce().Counter; c != 5 {
		t.Errorf("lock decrypt counter = %d, want 5", c)
	}
}

func TestCipherState_ReplayRejected(t *testing.T) {
	client := newTestState(t)
	lock := newTestState(t)

	sealed, err := client.Seal([]byte{0x53, 0x00})
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if _, err := lock.Open(sealed); err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if _, err := lock.Open(sealed); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("replayed Open: got %v, want ErrDecryptionFailed", err)
	}
}

func TestCipherState_SameSealTwiceDiffers(t *testing.T) {
	s := newTestState(t)
	a, _ := s.Seal([]byte("same"))
	b, _ := s.Seal([]byte("same"))
	if bytes.Equal(a, b) {
		t.Error("two seals of the same plaintext produced identical output")
	}
}

func TestCipherState_CounterExhausted(t *testing.T) {
	s := newTestState(t)
	s.encryptNonce.Counter = math.MaxUint64
	s.decryptNonce.Counter = math.MaxUint64

	if _, err := s.Seal([]byte{0x01}); err != ErrCounterExhausted {
		t.Errorf("Seal at max counter: got %v, want ErrCounterExhausted", err)
	}
	if _, err := s.Open(make([]byte, 8)); err != ErrCounterExhausted {
		t.Errorf("Open at max counter: got %v, want ErrCounterExhausted", err)
	}
	if got := s.EncryptNonce().Counter; got != math.MaxUint64 {
		t.Errorf("encrypt counter moved to %d", got)
	}
}

func TestCipherState_ResetClearsToken(t *testing.T) {
	s := newTestState(t)
	if _, err := s.Seal([]byte{0x01}); err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	next := [ChallengeSize]byte{1, 2, 3, 4}
	s.Reset(next)
	if s.HasToken() {
		t.Error("token survived Reset")
	}
	for _, dir := range []Direction{DirectionEncrypt, DirectionDecrypt} {
		n := s.Nonce(dir)
		if n.Counter != 0 || n.Random != next {
			t.Errorf("%v nonce after Reset = %+v", dir, n)
		}
	}
}

func TestCipherState_Zeroize(t *testing.T) {
	s := newTestState(t)
	_, _ = s.Seal([]byte{0x01})

	s.Zeroize()
	if s.HasToken() {
		t.Error("token survived Zeroize")
	}
	if s.token != [TokenSize]byte{} {
		t.Errorf("token bytes not cleared: %x", s.token)
	}
	if s.EncryptNonce() != (Nonce{}) || s.DecryptNonce() != (Nonce{}) {
		t.Error("nonces not cleared")
	}
	if _, err := s.Seal([]byte{0x01}); err != ErrNoToken {
		t.Errorf("Seal after Zeroize: got %v, want ErrNoToken", err)
	}
}

func TestCipherState_ConcurrentSeal(t *testing.T) {
	s := newTestState(t)

	const workers = 8
	const perWorker = 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := s.Seal([]byte{0x01}); err != nil {
					t.Errorf("Seal: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := s.EncryptNonce().Counter; got != workers*perWorker {
		t.Errorf("encrypt counter = %d, want %d", got, workers*perWorker)
	}
}
