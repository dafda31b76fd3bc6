package device

import (
	"context"
	"errors"
	"sync"

	"github.com/backkem/sesame/pkg/message"
	"github.com/backkem/sesame/pkg/session"
	"github.com/google/uuid"
	"github.com/pion/logging"
)

// Transmitter sends a finished body to the lock. The transport segments it
// and puts parsing on the final segment header.
type Transmitter interface {
	Transmit(parsing message.ParsingType, body []byte) error
}

// SessionConfig configures a Session.
type SessionConfig struct {
	// Identity is the lock this session talks to.
	Identity Identity

	// Transmitter sends outbound bodies.
	// Required.
	Transmitter Transmitter

	// DefaultTag replaces an empty history tag in Lock/Unlock.
	// Default: message.DefaultTag
	DefaultTag []byte

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// response is delivered to a command waiting on its item.
type response struct {
	msg *message.Inbound
	err error
}

// Session is the client side of one lock connection.
//
// Inbound bodies arrive through HandlePacket or Receive, normally from the
// transport's read loop. Login, Lock and Unlock may be called from any
// goroutine; they send a command and wait for its response.
type Session struct {
	identity   Identity
	tx         Transmitter
	defaultTag []byte
	cipher     *session.CipherState
	log        logging.LeveledLogger

	mu           sync.Mutex
	status       Status
	challenge    [session.ChallengeSize]byte
	hasChallenge bool
	mech         message.MechStatus
	hasMech      bool
	loginPending bool // Login proof sent, no answer yet
	waiters      map[message.ItemCode]chan response
	observers    map[int]Observer
	nextObserver int

	// sendMu serializes seal+transmit so the lock sees bodies in nonce order.
	sendMu sync.Mutex
}

// NewSession creates a session in StatusNoUse.
func NewSession(config SessionConfig) (*Session, error) {
	if config.Transmitter == nil {
		return nil, ErrNoTransmitter
	}
	if err := config.Identity.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		identity:   config.Identity,
		tx:         config.Transmitter,
		defaultTag: config.DefaultTag,
		cipher:     session.NewCipherState(),
		status:     StatusNoUse,
		waiters:    make(map[message.ItemCode]chan response),
		observers:  make(map[int]Observer),
	}
	if len(s.defaultTag) == 0 {
		s.defaultTag = message.DefaultTag
	}

	// Copy the secret (don't hold references to caller's slices)
	if len(config.Identity.Secret) > 0 {
		s.identity.Secret = append([]byte(nil), config.Identity.Secret...)
	}

	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("device")
	}

	return s, nil
}

// UUID returns the lock's UUID.
func (s *Session) UUID() uuid.UUID {
	return s.identity.UUID
}

// Status returns the current status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// MechStatus returns the last mechanism record, if one was received.
func (s *Session) MechStatus() (message.MechStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mech, s.hasMech
}

// Counters returns the encrypt and decrypt nonce counters.
func (s *Session) Counters() (encrypt, decrypt uint64) {
	return s.cipher.EncryptNonce().Counter, s.cipher.DecryptNonce().Counter
}

// Subscribe registers an observer for status transitions.
// The returned function removes it.
func (s *Session) Subscribe(o Observer) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = o

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// SetLinkStatus records a transport-level status change.
// Dropping below Connected, or any link change while logged in, clears the
// token, the nonces and the challenge, and fails every command waiting for
// a response. A new login needs a new challenge.
func (s *Session) SetLinkStatus(status Status) error {
	if !status.IsLinkStatus() {
		return ErrInvalidLinkStatus
	}

	s.mu.Lock()
	var waiters []chan response
	reason := ErrDisconnected
	if status < StatusConnected || s.status.IsLoggedIn() {
		if status == StatusConnected {
			reason = ErrLoginVoided
		}
		s.cipher.Zeroize()
		s.hasChallenge = false
		s.challenge = [session.ChallengeSize]byte{}
		s.loginPending = false
		waiters = s.takeWaitersLocked(nil)
	}
	event, changed := s.setStatusLocked(status, nil)
	observers := s.observersLocked()
	s.mu.Unlock()

	for _, ch := range waiters {
		deliver(ch, response{err: reason})
	}
	if changed {
		s.notify(observers, event)
	}
	return nil
}

// HandlePacket processes one single-segment packet as received from the
// status characteristic: segment header followed by the body.
func (s *Session) HandlePacket(packet []byte) error {
	h, body, err := message.SplitPacket(packet)
	if err != nil {
		return err
	}
	if !h.First || !h.Last() {
		return ErrSegmentedPacket
	}
	return s.Receive(h.Parsing, body)
}

// Receive processes one reassembled body. Sealed bodies are opened with the
// decrypt nonce first; a body that fails authentication is rejected and
// leaves the session unchanged. In the clear the lock only sends its
// challenge and login refusals; any other plaintext body is rejected with
// ErrUnauthenticatedBody.
//
// A response with a non-success result returns a *CommandError.
func (s *Session) Receive(parsing message.ParsingType, body []byte) error {
	if parsing == message.ParsingCiphertext {
		plaintext, err := s.cipher.Open(body)
		if err != nil {
			if s.log != nil {
				s.log.Warnf("rejecting %d-byte sealed body: %v", len(body), err)
			}
			return err
		}
		body = plaintext
	}

	msg, err := message.ParseInbound(body)
	if err != nil {
		return err
	}

	if parsing != message.ParsingCiphertext && !plaintextAllowed(msg) {
		if s.log != nil {
			s.log.Warnf("rejecting plaintext %v %v", msg.Op, msg.Item)
		}
		return ErrUnauthenticatedBody
	}

	if s.log != nil {
		s.log.Debugf("received %v %v", msg.Op, msg.Item)
	}

	switch msg.Op {
	case message.OpPublish:
		return s.handlePublish(msg)
	case message.OpResponse:
		return s.handleResponse(msg)
	}
	return nil
}

// plaintextAllowed reports whether msg may arrive unsealed.
func plaintextAllowed(msg *message.Inbound) bool {
	switch msg.Op {
	case message.OpPublish:
		return msg.Item == message.ItemInitial
	case message.OpResponse:
		return msg.Item == message.ItemLogin && !msg.Success()
	}
	return false
}

func (s *Session) handlePublish(msg *message.Inbound) error {
	switch msg.Item {
	case message.ItemInitial:
		return s.handleChallenge(msg)
	case message.ItemMechStatus:
		return s.handleMechStatus(msg)
	default:
		if s.log != nil {
			s.log.Debugf("ignoring publish %v", msg.Item)
		}
		return nil
	}
}

// handleChallenge resets both nonces to the new challenge and logs in
// straight away when the secret is known. It does not wait for the login
// acknowledgment; that arrives on the same read path. Commands still waiting
// for a response fail with ErrLoginVoided, since their answers were sealed
// under the old nonces.
func (s *Session) handleChallenge(msg *message.Inbound) error {
	challenge, err := msg.Challenge()
	if err != nil {
		return err
	}

	s.cipher.Reset(challenge)

	s.mu.Lock()
	s.challenge = challenge
	s.hasChallenge = true
	s.loginPending = false
	waiters := s.takeWaitersLocked(func(item message.ItemCode) bool {
		return item != message.ItemLogin
	})
	var event StatusEvent
	changed := false
	// A challenge only arrives over an established link, and a new one
	// voids any earlier login.
	if s.status < StatusConnected || s.status.IsLoggedIn() {
		event, changed = s.setStatusLocked(StatusConnected, nil)
	}
	observers := s.observersLocked()
	s.mu.Unlock()

	for _, ch := range waiters {
		deliver(ch, response{err: ErrLoginVoided})
	}
	if changed {
		s.notify(observers, event)
	}

	if s.log != nil {
		s.log.Infof("challenge received from %v", s.identity.UUID)
	}

	if !s.identity.HasSecret() {
		if s.log != nil {
			s.log.Warn("no device secret, waiting for registration")
		}
		return nil
	}
	return s.sendLogin()
}

// handleMechStatus records the mechanism record. Once logged in, the range
// flags drive the status; the same status twice is a no-op.
func (s *Session) handleMechStatus(msg *message.Inbound) error {
	mech, err := message.DecodeMechStatus(msg.Payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.mech = mech
	s.hasMech = true
	var event StatusEvent
	changed := false
	if s.status.IsLoggedIn() {
		event, changed = s.setStatusLocked(statusFromMech(mech), &mech)
	}
	observers := s.observersLocked()
	s.mu.Unlock()

	if changed {
		s.notify(observers, event)
	}
	return nil
}

func (s *Session) handleResponse(msg *message.Inbound) error {
	var cmdErr error
	if !msg.Success() {
		cmdErr = &CommandError{Item: msg.Item, Result: msg.Result}
	}

	s.mu.Lock()
	var event StatusEvent
	changed := false
	if msg.Item == message.ItemLogin {
		s.loginPending = false
		if cmdErr == nil && !s.status.IsLoggedIn() {
			event, changed = s.setStatusLocked(StatusLoggedIn, nil)
		}
	}
	ch, waiting := s.waiters[msg.Item]
	if waiting {
		delete(s.waiters, msg.Item)
	}
	observers := s.observersLocked()
	s.mu.Unlock()

	if cmdErr != nil && s.log != nil {
		s.log.Warnf("%v", cmdErr)
	}
	if changed {
		if s.log != nil {
			s.log.Infof("logged in to %v", s.identity.UUID)
		}
		s.notify(observers, event)
	}
	if waiting {
		deliver(ch, response{msg: msg, err: cmdErr})
	}
	return cmdErr
}

// Login derives the session token from the last challenge, sends the login
// proof and waits for the lock's acknowledgment. A session that is already
// logged in returns immediately. While a proof is already awaiting its
// answer, Login waits for that answer instead of sending another one; if
// ctx ends first, the next Login sends a fresh proof.
func (s *Session) Login(ctx context.Context) error {
	s.mu.Lock()
	if s.status.IsLoggedIn() {
		s.mu.Unlock()
		return nil
	}
	ch := s.expectLocked(message.ItemLogin)
	s.mu.Unlock()

	if err := s.sendLogin(); err != nil {
		s.cancel(message.ItemLogin, ch)
		return err
	}
	_, err := s.wait(ctx, message.ItemLogin, ch)
	if err != nil && ctx.Err() != nil {
		s.mu.Lock()
		s.loginPending = false
		s.mu.Unlock()
	}
	return err
}

// sendLogin establishes the cipher state and sends the proof in the clear.
// It does nothing while an earlier proof is unanswered or once logged in,
// so the nonces are not reset under a login in flight.
func (s *Session) sendLogin() error {
	if !s.identity.HasSecret() {
		return ErrNoSecret
	}

	s.mu.Lock()
	if s.status < StatusConnected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	if !s.hasChallenge {
		s.mu.Unlock()
		return ErrNoChallenge
	}
	if s.loginPending || s.status.IsLoggedIn() {
		s.mu.Unlock()
		if s.log != nil {
			s.log.Debug("login already in flight")
		}
		return nil
	}
	s.loginPending = true
	challenge := s.challenge
	s.mu.Unlock()

	err := s.transmitLogin(challenge)
	if err != nil {
		s.mu.Lock()
		s.loginPending = false
		s.mu.Unlock()
	}
	return err
}

func (s *Session) transmitLogin(challenge [session.ChallengeSize]byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	token, err := s.cipher.Establish(s.identity.Secret, challenge)
	if err != nil {
		return err
	}

	body, err := message.NewLoginCommand(session.LoginProof(token)).Encode()
	if err != nil {
		return err
	}

	if s.log != nil {
		s.log.Debug("sending login")
	}
	return s.tx.Transmit(message.ParsingPlaintext, body)
}

// Lock sends a lock command and waits for its response. An empty tag uses
// the configured default tag.
func (s *Session) Lock(ctx context.Context, tag []byte) error {
	if len(tag) == 0 {
		tag = s.defaultTag
	}
	cmd, err := message.NewLockCommand(tag)
	if err != nil {
		return err
	}
	return s.command(ctx, cmd)
}

// Unlock sends an unlock command and waits for its response. An empty tag
// uses the configured default tag.
func (s *Session) Unlock(ctx context.Context, tag []byte) error {
	if len(tag) == 0 {
		tag = s.defaultTag
	}
	cmd, err := message.NewUnlockCommand(tag)
	if err != nil {
		return err
	}
	return s.command(ctx, cmd)
}

// command sends a post-login command and waits for the response to its item.
func (s *Session) command(ctx context.Context, cmd *message.Command) error {
	if !s.Status().IsLoggedIn() {
		return ErrNotLoggedIn
	}

	ch, err := s.expect(cmd.Item)
	if err != nil {
		return err
	}
	if err := s.send(cmd); err != nil {
		s.cancel(cmd.Item, ch)
		return err
	}
	_, err = s.wait(ctx, cmd.Item, ch)
	return err
}

// send encodes, seals when required, and transmits cmd.
func (s *Session) send(cmd *message.Command) error {
	body, err := cmd.Encode()
	if err != nil {
		return err
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if cmd.Encrypted() {
		body, err = s.cipher.Seal(body)
		if err != nil {
			return err
		}
	}

	if s.log != nil {
		s.log.Debugf("sending %v (%v)", cmd.Item, cmd.Parsing)
	}
	return s.tx.Transmit(cmd.Parsing, body)
}

// expect registers a waiter for the response to item. The channel is
// buffered so a response delivered before wait starts is kept.
func (s *Session) expect(item message.ItemCode) (chan response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expectLocked(item), nil
}

// expectLocked is expect with s.mu held.
func (s *Session) expectLocked(item message.ItemCode) chan response {
	if prev, ok := s.waiters[item]; ok {
		// A newer command supersedes the old waiter.
		deliver(prev, response{err: context.Canceled})
	}
	ch := make(chan response, 1)
	s.waiters[item] = ch
	return ch
}

// takeWaitersLocked removes and returns the waiters selected by match, or
// every waiter when match is nil. Caller holds s.mu.
func (s *Session) takeWaitersLocked(match func(message.ItemCode) bool) []chan response {
	var out []chan response
	for item, ch := range s.waiters {
		if match == nil || match(item) {
			out = append(out, ch)
			delete(s.waiters, item)
		}
	}
	return out
}

// deliver hands r to a waiter without blocking; a waiter takes one response.
func deliver(ch chan response, r response) {
	select {
	case ch <- r:
	default:
	}
}

func (s *Session) cancel(item message.ItemCode, ch chan response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waiters[item] == ch {
		delete(s.waiters, item)
	}
}

func (s *Session) wait(ctx context.Context, item message.ItemCode, ch chan response) (*message.Inbound, error) {
	select {
	case r := <-ch:
		return r.msg, r.err
	case <-ctx.Done():
		s.cancel(item, ch)
		return nil, ctx.Err()
	}
}

// setStatusLocked moves to status and reports whether anything changed.
// Caller holds s.mu.
func (s *Session) setStatusLocked(status Status, mech *message.MechStatus) (StatusEvent, bool) {
	if s.status == status {
		return StatusEvent{}, false
	}
	event := StatusEvent{Device: s.identity.UUID, Old: s.status, New: status, Mech: mech}
	s.status = status
	return event, true
}

// observersLocked snapshots the observers. Caller holds s.mu.
func (s *Session) observersLocked() []Observer {
	if len(s.observers) == 0 {
		return nil
	}
	out := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		out = append(out, o)
	}
	return out
}

func (s *Session) notify(observers []Observer, event StatusEvent) {
	if s.log != nil {
		s.log.Infof("%v: %v -> %v", event.Device, event.Old, event.New)
	}
	for _, o := range observers {
		o.OnStatusChange(event)
	}
}

// statusFromMech maps the range flags to a status. Lock range wins when
// both are set.
func statusFromMech(m message.MechStatus) Status {
	switch {
	case m.LockRange:
		return StatusLocked
	case m.UnlockRange:
		return StatusUnlocked
	default:
		return StatusMoved
	}
}

// IsCommandError reports whether err is a rejected command and returns it.
func IsCommandError(err error) (*CommandError, bool) {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
