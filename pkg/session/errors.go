package session

import (
	"errors"
	"fmt"

	"github.com/backkem/sesame/pkg/crypto"
)

// Session package errors.
var (
	// ErrInvalidKey is returned when a device secret or token has invalid length.
	ErrInvalidKey = errors.New("session: invalid key length")

	// ErrNoToken is returned when sealing or opening before a token is set.
	ErrNoToken = errors.New("session: no session token")

	// ErrCounterExhausted is returned when a nonce counter would wrap.
	// The session must be re-established when this occurs.
	ErrCounterExhausted = errors.New("session: nonce counter exhausted")

	// ErrMessageTooShort is returned when an encrypted body is shorter than the tag.
	ErrMessageTooShort = errors.New("session: encrypted message shorter than tag")

	// ErrDecryptionFailed is returned when an inbound message fails authentication.
	ErrDecryptionFailed = fmt.Errorf("session: decryption failed: %w", crypto.ErrAuthenticationFailure)
)
