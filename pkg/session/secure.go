package session

import (
	"math"
	"sync"

	"github.com/backkem/sesame/pkg/crypto"
)

// TagSize is the CCM tag length appended to every encrypted body.
const TagSize = crypto.AESCCMTagSize

// AssociatedData is the fixed associated data authenticated with every body.
var AssociatedData = []byte{0x00}

// CipherState holds the token and the two nonces of one lock session.
//
// Lifecycle:
//  1. Reset(challenge) when the lock publishes a new challenge
//  2. SetToken(token) once the token is derived
//  3. Seal/Open for every encrypted body
//  4. Zeroize on disconnect
//
// Both peers of a session use the same construction: the client's encrypt
// sequence is the lock's decrypt sequence and vice versa.
type CipherState struct {
	token    [TokenSize]byte
	hasToken bool
	ccm      *crypto.AESCCM

	encryptNonce Nonce // Outbound
	decryptNonce Nonce // Inbound

	mu sync.Mutex
}

// NewCipherState creates an empty cipher state with no token.
func NewCipherState() *CipherState {
	return &CipherState{}
}

// Reset starts a new session for challenge. Both counters return to zero,
// both random parts become the challenge, and any previous token is cleared.
func (s *CipherState) Reset(challenge [ChallengeSize]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearToken()
	s.encryptNonce = Nonce{Random: challenge}
	s.decryptNonce = Nonce{Random: challenge}
}

// SetToken installs the session token used as the CCM key.
func (s *CipherState) SetToken(token [TokenSize]byte) error {
	ccm, err := crypto.NewAESCCM(token[:])
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearToken()
	s.token = token
	s.ccm = ccm
	s.hasToken = true
	return nil
}

// Establish resets the state for challenge and installs the token derived
// from secret. The derived token is returned.
func (s *CipherState) Establish(secret []byte, challenge [ChallengeSize]byte) ([TokenSize]byte, error) {
	token, err := DeriveToken(secret, challenge)
	if err != nil {
		return [TokenSize]byte{}, err
	}
	s.Reset(challenge)
	if err := s.SetToken(token); err != nil {
		return [TokenSize]byte{}, err
	}
	return token, nil
}

// HasToken reports whether a token is installed.
func (s *CipherState) HasToken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasToken
}

// Seal encrypts plaintext under the encrypt nonce and returns
// ciphertext || tag. The encrypt counter advances by exactly one on success.
func (s *CipherState) Seal(plaintext []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasToken {
		return nil, ErrNoToken
	}
	if s.encryptNonce.Counter == math.MaxUint64 {
		return nil, ErrCounterExhausted
	}

	nonce := s.encryptNonce.Bytes()
	sealed, err := s.ccm.Seal(nonce[:], plaintext, AssociatedData)
	if err != nil {
		return nil, err
	}

	s.encryptNonce.Counter++
	return sealed, nil
}

// Open verifies and decrypts ciphertext || tag under the decrypt nonce.
// The decrypt counter advances only when authentication succeeds, so a
// forged or corrupted body does not desynchronize the session.
func (s *CipherState) Open(data []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasToken {
		return nil, ErrNoToken
	}
	if len(data) < TagSize {
		return nil, ErrMessageTooShort
	}
	if s.decryptNonce.Counter == math.MaxUint64 {
		return nil, ErrCounterExhausted
	}

	nonce := s.decryptNonce.Bytes()
	plaintext, err := s.ccm.Open(nonce[:], data, AssociatedData)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	s.decryptNonce.Counter++
	return plaintext, nil
}

// Nonce returns a copy of the nonce for dir.
func (s *CipherState) Nonce(dir Direction) Nonce {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir == DirectionDecrypt {
		return s.decryptNonce
	}
	return s.encryptNonce
}

// EncryptNonce returns a copy of the outbound nonce.
func (s *CipherState) EncryptNonce() Nonce {
	return s.Nonce(DirectionEncrypt)
}

// DecryptNonce returns a copy of the inbound nonce.
func (s *CipherState) DecryptNonce() Nonce {
	return s.Nonce(DirectionDecrypt)
}

// Zeroize clears the token, the expanded key and both nonces.
// Call this when the link drops.
func (s *CipherState) Zeroize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearToken()
	s.encryptNonce = Nonce{}
	s.decryptNonce = Nonce{}
}

func (s *CipherState) clearToken() {
	for i := range s.token {
		s.token[i] = 0
	}
	if s.ccm != nil {
		s.ccm.Zeroize()
		s.ccm = nil
	}
	s.hasToken = false
}
