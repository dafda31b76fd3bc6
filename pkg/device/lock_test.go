package device

import (
	"bytes"
	"sync"
	"testing"

	"github.com/backkem/sesame/pkg/message"
	"github.com/backkem/sesame/pkg/session"
)

// sentBody is one body the session handed to its transmitter.
type sentBody struct {
	Parsing message.ParsingType
	Data    []byte
}

// fakeLock plays the lock side of a session in-process. Replies are fed
// back through Receive synchronously from Transmit.
type fakeLock struct {
	t      *testing.T
	secret []byte
	sess   *Session

	mu        sync.Mutex
	challenge [session.ChallengeSize]byte
	cipher    *session.CipherState
	sent      []sentBody
	opened    [][]byte // Decrypted ciphertext commands
	silent    bool     // Record but never reply
	result    message.ResultCode
	mech      *message.MechStatus // Published after login and each command
	sentCh    chan struct{}
}

func newFakeLock(t *testing.T, secret []byte) *fakeLock {
	return &fakeLock{
		t:      t,
		secret: secret,
		cipher: session.NewCipherState(),
		sentCh: make(chan struct{}, 16),
	}
}

// publishChallenge sends the initial challenge as a single plaintext packet.
func (f *fakeLock) publishChallenge(challenge [session.ChallengeSize]byte) error {
	f.mu.Lock()
	f.challenge = challenge
	f.mu.Unlock()

	packet := message.Frame(message.ParsingPlaintext, message.NewInitialPublish(challenge).Encode())
	return f.sess.HandlePacket(packet)
}

// seal encrypts a lock-side body with the lock's cipher state.
func (f *fakeLock) seal(msg *message.Inbound) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	sealed, err := f.cipher.Seal(msg.Encode())
	if err != nil {
		f.t.Fatalf("lock seal failed: %v", err)
	}
	return sealed
}

func (f *fakeLock) setSilent(silent bool) {
	f.mu.Lock()
	f.silent = silent
	f.mu.Unlock()
}

func (f *fakeLock) bodies() []sentBody {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentBody(nil), f.sent...)
}

func (f *fakeLock) Transmit(parsing message.ParsingType, body []byte) error {
	f.mu.Lock()
	f.sent = append(f.sent, sentBody{Parsing: parsing, Data: append([]byte(nil), body...)})
	silent := f.silent || f.sess == nil
	f.mu.Unlock()

	if f.sentCh != nil {
		select {
		case f.sentCh <- struct{}{}:
		default:
		}
	}
	if silent {
		return nil
	}

	if parsing == message.ParsingPlaintext {
		f.handleLogin(body)
		return nil
	}
	f.handleSealed(body)
	return nil
}

func (f *fakeLock) handleLogin(body []byte) {
	item, payload, err := message.ParseCommand(body)
	if err != nil || item != message.ItemLogin {
		f.t.Errorf("lock got plaintext %x, want login", body)
		return
	}

	f.mu.Lock()
	token, err := session.DeriveToken(f.secret, f.challenge)
	if err != nil {
		f.mu.Unlock()
		f.t.Errorf("lock DeriveToken failed: %v", err)
		return
	}
	proof := session.LoginProof(token)
	if !bytes.Equal(payload, proof[:]) {
		f.mu.Unlock()
		f.t.Errorf("login proof = %x, want %x", payload, proof)
		return
	}
	f.cipher.Reset(f.challenge)
	_ = f.cipher.SetToken(token)
	mech := f.mech
	f.mu.Unlock()

	// Lock time, as the real lock returns.
	resp := message.NewResponse(message.ItemLogin, message.ResultSuccess, []byte{0xe4, 0x50, 0x5d, 0x68})
	_ = f.sess.Receive(message.ParsingCiphertext, f.seal(resp))
	if mech != nil {
		_ = f.sess.Receive(message.ParsingCiphertext, f.seal(message.NewMechStatusPublish(*mech)))
	}
}

func (f *fakeLock) handleSealed(body []byte) {
	f.mu.Lock()
	plaintext, err := f.cipher.Open(body)
	if err != nil {
		f.mu.Unlock()
		f.t.Errorf("lock open failed: %v", err)
		return
	}
	f.opened = append(f.opened, plaintext)
	result := f.result
	item, _, _ := message.ParseCommand(plaintext)
	var mech *message.MechStatus
	if f.mech != nil && result == message.ResultSuccess {
		switch item {
		case message.ItemLock:
			f.mech.LockRange, f.mech.UnlockRange = true, false
		case message.ItemUnlock:
			f.mech.LockRange, f.mech.UnlockRange = false, true
		}
		m := *f.mech
		mech = &m
	}
	f.mu.Unlock()

	_ = f.sess.Receive(message.ParsingCiphertext, f.seal(message.NewResponse(item, result, nil)))
	if mech != nil {
		_ = f.sess.Receive(message.ParsingCiphertext, f.seal(message.NewMechStatusPublish(*mech)))
	}
}

// eventRecorder collects status events.
type eventRecorder struct {
	mu     sync.Mutex
	events []StatusEvent
}

func (r *eventRecorder) OnStatusChange(e StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// transitions returns the New status of every recorded event.
func (r *eventRecorder) transitions() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, len(r.events))
	for i, e := range r.events {
		out[i] = e.New
	}
	return out
}
