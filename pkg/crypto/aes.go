// AES-128 block cipher as defined in FIPS-197.
//
// The cipher is self-contained: it does not use crypto/aes. The round key
// transform is the single-step "RotWord, SubWord, Rcon, cumulative XOR"
// update applied to a 16-byte key buffer. The eleven round keys are derived
// once per key and cached; prevRoundKey is the reverse step.
//
// No effort is made to resist timing or cache side channels.

package crypto

import (
	"crypto/cipher"
	"fmt"
)

// AES-128 constants.
const (
	// AESKeySize is the AES-128 key size in bytes.
	AESKeySize = 16

	// BlockSize is the AES block size in bytes.
	BlockSize = 16

	// aesRounds is the number of rounds for a 128-bit key.
	aesRounds = 10

	// aesBlockSize is kept for the CCM and CMAC code paths.
	aesBlockSize = BlockSize
)

// ErrInvalidKeySize is returned when a key is not 16 bytes.
var ErrInvalidKeySize = fmt.Errorf("%w: key must be %d bytes", ErrBadParameters, AESKeySize)

// AES128 is an AES-128 block cipher with a cached round key schedule.
// It implements cipher.Block.
type AES128 struct {
	roundKeys [aesRounds + 1][aesBlockSize]byte
}

var _ cipher.Block = (*AES128)(nil)

// NewAES128 creates an AES-128 cipher for the given 16-byte key.
func NewAES128(key []byte) (*AES128, error) {
	if len(key) != AESKeySize {
		return nil, ErrInvalidKeySize
	}

	c := &AES128{}
	var k [aesBlockSize]byte
	copy(k[:], key)
	c.roundKeys[0] = k
	for round := 0; round < aesRounds; round++ {
		nextRoundKey(&k, round)
		c.roundKeys[round+1] = k
	}
	return c, nil
}

// newAES128 builds a cipher from a fixed-size key; it cannot fail.
func newAES128(key *[AESKeySize]byte) *AES128 {
	c, _ := NewAES128(key[:])
	return c
}

// BlockSize returns the cipher block size (16).
func (c *AES128) BlockSize() int {
	return aesBlockSize
}

// Encrypt encrypts the first block of src into dst.
// dst and src may overlap entirely.
func (c *AES128) Encrypt(dst, src []byte) {
	if len(src) < aesBlockSize {
		panic("crypto/aes128: input not full block")
	}
	if len(dst) < aesBlockSize {
		panic("crypto/aes128: output not full block")
	}
	var s [aesBlockSize]byte
	copy(s[:], src)
	c.encryptBlock(&s)
	copy(dst, s[:])
}

// Decrypt decrypts the first block of src into dst.
// dst and src may overlap entirely.
func (c *AES128) Decrypt(dst, src []byte) {
	if len(src) < aesBlockSize {
		panic("crypto/aes128: input not full block")
	}
	if len(dst) < aesBlockSize {
		panic("crypto/aes128: output not full block")
	}
	var s [aesBlockSize]byte
	copy(s[:], src)
	c.decryptBlock(&s)
	copy(dst, s[:])
}

// Zeroize clears the cached round keys.
func (c *AES128) Zeroize() {
	for i := range c.roundKeys {
		c.roundKeys[i] = [aesBlockSize]byte{}
	}
}

func (c *AES128) encryptBlock(s *[aesBlockSize]byte) {
	addRoundKey(s, &c.roundKeys[0])
	for round := 1; round < aesRounds; round++ {
		subBytes(s)
		shiftRows(s)
		mixColumns(s)
		addRoundKey(s, &c.roundKeys[round])
	}
	subBytes(s)
	shiftRows(s)
	addRoundKey(s, &c.roundKeys[aesRounds])
}

func (c *AES128) decryptBlock(s *[aesBlockSize]byte) {
	addRoundKey(s, &c.roundKeys[aesRounds])
	for round := aesRounds - 1; round > 0; round-- {
		invShiftRows(s)
		invSubBytes(s)
		addRoundKey(s, &c.roundKeys[round])
		invMixColumns(s)
	}
	invShiftRows(s)
	invSubBytes(s)
	addRoundKey(s, &c.roundKeys[0])
}

// AES128Encrypt encrypts a single block under key.
func AES128Encrypt(key, plaintext [AESKeySize]byte) [aesBlockSize]byte {
	c := newAES128(&key)
	c.encryptBlock(&plaintext)
	return plaintext
}

// AES128Decrypt decrypts a single block under key.
func AES128Decrypt(key, ciphertext [AESKeySize]byte) [aesBlockSize]byte {
	c := newAES128(&key)
	c.decryptBlock(&ciphertext)
	return ciphertext
}

// nextRoundKey advances a round key in place to the key of round+1.
// The state is column-major: bytes 12..15 hold the last word.
func nextRoundKey(k *[aesBlockSize]byte, round int) {
	k[0] ^= sbox[k[13]] ^ rcon[round]
	k[1] ^= sbox[k[14]]
	k[2] ^= sbox[k[15]]
	k[3] ^= sbox[k[12]]
	for i := 4; i < aesBlockSize; i++ {
		k[i] ^= k[i-4]
	}
}

// prevRoundKey undoes nextRoundKey(k, round).
func prevRoundKey(k *[aesBlockSize]byte, round int) {
	for i := aesBlockSize - 1; i > 3; i-- {
		k[i] ^= k[i-4]
	}
	k[0] ^= sbox[k[13]] ^ rcon[round]
	k[1] ^= sbox[k[14]]
	k[2] ^= sbox[k[15]]
	k[3] ^= sbox[k[12]]
}

func addRoundKey(s, k *[aesBlockSize]byte) {
	for i := range s {
		s[i] ^= k[i]
	}
}

func subBytes(s *[aesBlockSize]byte) {
	for i := range s {
		s[i] = sbox[s[i]]
	}
}

func invSubBytes(s *[aesBlockSize]byte) {
	for i := range s {
		s[i] = invSbox[s[i]]
	}
}

// shiftRows rotates row r left by r positions. Byte (row r, column c)
// lives at index 4*c+r.
func shiftRows(s *[aesBlockSize]byte) {
	t := *s
	for c := 0; c < 4; c++ {
		for r := 1; r < 4; r++ {
			s[4*c+r] = t[4*((c+r)%4)+r]
		}
	}
}

func invShiftRows(s *[aesBlockSize]byte) {
	t := *s
	for c := 0; c < 4; c++ {
		for r := 1; r < 4; r++ {
			s[4*c+r] = t[4*((c-r+4)%4)+r]
		}
	}
}

// xtime multiplies by x (i.e. 2) in GF(2^8) modulo x^8+x^4+x^3+x+1.
func xtime(b byte) byte {
	if b&0x80 != 0 {
		return b<<1 ^ 0x1b
	}
	return b << 1
}

func mixColumns(s *[aesBlockSize]byte) {
	for c := 0; c < aesBlockSize; c += 4 {
		a0, a1, a2, a3 := s[c], s[c+1], s[c+2], s[c+3]
		t := a0 ^ a1 ^ a2 ^ a3
		s[c] = a0 ^ t ^ xtime(a0^a1)
		s[c+1] = a1 ^ t ^ xtime(a1^a2)
		s[c+2] = a2 ^ t ^ xtime(a2^a3)
		s[c+3] = a3 ^ t ^ xtime(a3^a0)
	}
}

// invMixColumns multiplies by {04}x^2+{05} first, which turns the inverse
// matrix into the forward one.
func invMixColumns(s *[aesBlockSize]byte) {
	for c := 0; c < aesBlockSize; c += 4 {
		u := xtime(xtime(s[c] ^ s[c+2]))
		v := xtime(xtime(s[c+1] ^ s[c+3]))
		s[c] ^= u
		s[c+1] ^= v
		s[c+2] ^= u
		s[c+3] ^= v
	}
	mixColumns(s)
}
