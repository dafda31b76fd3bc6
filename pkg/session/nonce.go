package session

import (
	"encoding/binary"

	"github.com/backkem/sesame/pkg/crypto"
)

// Nonce layout constants.
const (
	// NonceSize is the CCM nonce length on the wire.
	NonceSize = crypto.AESCCMNonceSize

	// RandomSize is the length of the per-session random part (the challenge).
	RandomSize = 4

	// counterSize is the length of the little-endian counter prefix.
	counterSize = 8
)

// Nonce is one direction's CCM nonce state.
//
// Wire layout (13 bytes):
//
//	counter (8 bytes, little-endian) || 0x00 || random (4 bytes)
type Nonce struct {
	Counter uint64
	Random  [RandomSize]byte
}

// Bytes returns the 13-byte nonce for the current counter value.
func (n Nonce) Bytes() [NonceSize]byte {
	var out [NonceSize]byte
	binary.LittleEndian.PutUint64(out[:counterSize], n.Counter)
	// out[counterSize] is the reserved byte and stays zero.
	copy(out[counterSize+1:], n.Random[:])
	return out
}
