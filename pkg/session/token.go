package session

import (
	"github.com/backkem/sesame/pkg/crypto"
)

// Token constants.
const (
	// SecretSize is the length of the per-device shared secret.
	SecretSize = crypto.AESKeySize

	// TokenSize is the length of the session token (the CCM key).
	TokenSize = crypto.CMACSize

	// ChallengeSize is the length of the challenge the lock publishes.
	ChallengeSize = RandomSize

	// ProofSize is the number of token bytes sent in the login command.
	ProofSize = 4
)

// DeriveToken computes the session token AES-CMAC(secret, challenge).
func DeriveToken(secret []byte, challenge [ChallengeSize]byte) ([TokenSize]byte, error) {
	if len(secret) != SecretSize {
		return [TokenSize]byte{}, ErrInvalidKey
	}
	return crypto.CMAC(secret, challenge[:])
}

// LoginProof returns the prefix of the token that proves possession of the
// secret to the lock.
func LoginProof(token [TokenSize]byte) [ProofSize]byte {
	var proof [ProofSize]byte
	copy(proof[:], token[:ProofSize])
	return proof
}
