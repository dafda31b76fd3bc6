// Package simlock is an in-process lock peripheral. It speaks the device
// side of the protocol over a transport.Link: it publishes a challenge,
// verifies the login proof, answers lock and unlock, and publishes its
// mechanism status. Tests and the demo CLI drive a client Session against it.
package simlock

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"github.com/backkem/sesame/pkg/message"
	"github.com/backkem/sesame/pkg/session"
	"github.com/backkem/sesame/pkg/transport"
	"github.com/pion/logging"
)

// Default handle angles.
const (
	DefaultLockPosition   int16 = -90
	DefaultUnlockPosition int16 = 90
)

// Config configures a simulated lock.
type Config struct {
	// Conn is the peripheral end of the link.
	// Required.
	Conn net.Conn

	// Secret is the 16-byte device secret.
	// Required.
	Secret []byte

	// Rand supplies challenges.
	// Default: crypto/rand.Reader
	Rand io.Reader

	// Now supplies the time returned in the login response.
	// Default: time.Now
	Now func() time.Time

	// Mech is the initial mechanism status.
	Mech message.MechStatus

	// LockPosition and UnlockPosition are the handle angles the motor
	// drives to.
	// Default: DefaultLockPosition, DefaultUnlockPosition
	LockPosition   int16
	UnlockPosition int16

	// SegmentSize is the number of body bytes per segment.
	// Default: message.SegmentPayloadSize
	SegmentSize int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// HistoryEntry is one command the lock executed.
type HistoryEntry struct {
	Item message.ItemCode
	Tag  string
	Time time.Time
}

// Lock is a simulated lock peripheral.
type Lock struct {
	link      *transport.Link
	secret    []byte
	rand      io.Reader
	now       func() time.Time
	lockPos   int16
	unlockPos int16
	cipher    *session.CipherState
	log       logging.LeveledLogger

	mu        sync.Mutex
	started   bool
	challenge [session.ChallengeSize]byte
	loggedIn  bool
	mech      message.MechStatus
	history   []HistoryEntry
	results   map[message.ItemCode]message.ResultCode

	// sendMu keeps seal and transmit in nonce order.
	sendMu sync.Mutex
}

// New creates a simulated lock. Call Start to begin.
func New(config Config) (*Lock, error) {
	if len(config.Secret) != session.SecretSize {
		return nil, ErrInvalidSecret
	}

	l := &Lock{
		secret:    append([]byte(nil), config.Secret...),
		rand:      config.Rand,
		now:       config.Now,
		lockPos:   config.LockPosition,
		unlockPos: config.UnlockPosition,
		cipher:    session.NewCipherState(),
		mech:      config.Mech,
		results:   make(map[message.ItemCode]message.ResultCode),
	}
	if l.rand == nil {
		l.rand = rand.Reader
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.lockPos == 0 && l.unlockPos == 0 {
		l.lockPos = DefaultLockPosition
		l.unlockPos = DefaultUnlockPosition
	}

	link, err := transport.NewLink(transport.LinkConfig{
		Conn:          config.Conn,
		Handler:       l.handle,
		SegmentSize:   config.SegmentSize,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}
	l.link = link

	if config.LoggerFactory != nil {
		l.log = config.LoggerFactory.NewLogger("simlock")
	}

	return l, nil
}

// Start starts the link and publishes the first challenge.
func (l *Lock) Start() error {
	if err := l.link.Start(); err != nil {
		return err
	}
	l.mu.Lock()
	l.started = true
	l.mu.Unlock()
	return l.Rechallenge()
}

// Stop closes the link and clears the session.
func (l *Lock) Stop() error {
	l.mu.Lock()
	l.started = false
	l.loggedIn = false
	l.mu.Unlock()
	l.cipher.Zeroize()
	return l.link.Stop()
}

// Rechallenge publishes a fresh challenge in the clear. Any login is
// dropped; the client has to log in again.
func (l *Lock) Rechallenge() error {
	var challenge [session.ChallengeSize]byte
	if _, err := io.ReadFull(l.rand, challenge[:]); err != nil {
		return err
	}

	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return ErrNotStarted
	}
	l.challenge = challenge
	l.loggedIn = false
	l.mu.Unlock()

	if l.log != nil {
		l.log.Infof("publishing challenge %x", challenge)
	}

	l.sendMu.Lock()
	defer l.sendMu.Unlock()
	l.cipher.Reset(challenge)
	return l.link.Transmit(message.ParsingPlaintext, message.NewInitialPublish(challenge).Encode())
}

// SetResult makes the lock answer item with result instead of executing it.
// ResultSuccess restores normal behavior.
func (l *Lock) SetResult(item message.ItemCode, result message.ResultCode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if result == message.ResultSuccess {
		delete(l.results, item)
		return
	}
	l.results[item] = result
}

// Challenge returns the current challenge.
func (l *Lock) Challenge() [session.ChallengeSize]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.challenge
}

// LoggedIn reports whether a client has logged in since the last challenge.
func (l *Lock) LoggedIn() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loggedIn
}

// Mech returns the current mechanism status.
func (l *Lock) Mech() message.MechStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mech
}

// History returns the executed commands, oldest first.
func (l *Lock) History() []HistoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]HistoryEntry(nil), l.history...)
}

// handle is the link's body handler. It runs on the link's read loop.
func (l *Lock) handle(rb *transport.ReceivedBody) {
	var err error
	switch rb.Parsing {
	case message.ParsingPlaintext:
		err = l.handlePlaintext(rb.Data)
	case message.ParsingCiphertext:
		err = l.handleSealed(rb.Data)
	}
	if err != nil && l.log != nil {
		l.log.Warnf("dropping %d-byte %v body: %v", len(rb.Data), rb.Parsing, err)
	}
}

func (l *Lock) handlePlaintext(body []byte) error {
	item, payload, err := message.ParseCommand(body)
	if err != nil {
		return err
	}
	if item != message.ItemLogin {
		return l.sendPlain(message.NewResponse(item, message.ResultNotSupported, nil))
	}
	return l.handleLogin(payload)
}

// handleLogin checks the proof against CMAC(secret, challenge). A good
// proof installs the token and is acknowledged under it, followed by the
// current mechanism status. A bad proof is refused in the clear.
func (l *Lock) handleLogin(payload []byte) error {
	if len(payload) < message.ProofSize {
		return l.sendPlain(message.NewResponse(message.ItemLogin, message.ResultInvalidFormat, nil))
	}

	l.mu.Lock()
	challenge := l.challenge
	forced, isForced := l.results[message.ItemLogin]
	l.mu.Unlock()

	if isForced {
		return l.sendPlain(message.NewResponse(message.ItemLogin, forced, nil))
	}

	token, err := session.DeriveToken(l.secret, challenge)
	if err != nil {
		return err
	}
	proof := session.LoginProof(token)
	if subtle.ConstantTimeCompare(proof[:], payload[:message.ProofSize]) != 1 {
		if l.log != nil {
			l.log.Warn("login proof mismatch")
		}
		return l.sendPlain(message.NewResponse(message.ItemLogin, message.ResultInvalidSig, nil))
	}

	// The client resets both counters when it derives the token.
	l.sendMu.Lock()
	l.cipher.Reset(challenge)
	err = l.cipher.SetToken(token)
	l.sendMu.Unlock()
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.loggedIn = true
	mech := l.mech
	l.mu.Unlock()

	if l.log != nil {
		l.log.Info("client logged in")
	}

	var ts [4]byte
	binary.LittleEndian.PutUint32(ts[:], uint32(l.now().Unix()))
	if err := l.sendSealed(message.NewResponse(message.ItemLogin, message.ResultSuccess, ts[:])); err != nil {
		return err
	}
	return l.sendSealed(message.NewMechStatusPublish(mech))
}

func (l *Lock) handleSealed(data []byte) error {
	if !l.LoggedIn() {
		return session.ErrNoToken
	}

	body, err := l.cipher.Open(data)
	if err != nil {
		return err
	}
	item, payload, err := message.ParseCommand(body)
	if err != nil {
		return err
	}

	switch item {
	case message.ItemLock, message.ItemUnlock:
		return l.handleMove(item, payload)
	default:
		return l.sendSealed(message.NewResponse(item, message.ResultNotSupported, nil))
	}
}

// handleMove drives the handle to the lock or unlock angle and records
// the history tag.
func (l *Lock) handleMove(item message.ItemCode, payload []byte) error {
	tag, err := message.ParseTaggedCommand(payload)
	if err != nil {
		return l.sendSealed(message.NewResponse(item, message.ResultInvalidFormat, nil))
	}

	l.mu.Lock()
	if result, ok := l.results[item]; ok {
		l.mu.Unlock()
		return l.sendSealed(message.NewResponse(item, result, nil))
	}
	pos := l.unlockPos
	if item == message.ItemLock {
		pos = l.lockPos
	}
	l.mech.Target = pos
	l.mech.Position = pos
	l.mech.LockRange = item == message.ItemLock
	l.mech.UnlockRange = item == message.ItemUnlock
	l.mech.Stop = true
	mech := l.mech
	l.history = append(l.history, HistoryEntry{Item: item, Tag: string(tag), Time: l.now()})
	l.mu.Unlock()

	if l.log != nil {
		l.log.Infof("%v by %q", item, tag)
	}

	if err := l.sendSealed(message.NewResponse(item, message.ResultSuccess, nil)); err != nil {
		return err
	}
	return l.sendSealed(message.NewMechStatusPublish(mech))
}

func (l *Lock) sendPlain(msg *message.Inbound) error {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()
	return l.link.Transmit(message.ParsingPlaintext, msg.Encode())
}

func (l *Lock) sendSealed(msg *message.Inbound) error {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()

	sealed, err := l.cipher.Seal(msg.Encode())
	if err != nil {
		return err
	}
	return l.link.Transmit(message.ParsingCiphertext, sealed)
}
