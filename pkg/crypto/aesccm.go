// AES-CCM implementation for the lock command channel.
// This implements AES-128-CCM as defined in NIST 800-38C and RFC 3610.
// The lock protocol uses:
//   - Key length: 128 bits (16 bytes), the CMAC-derived session token
//   - Tag length: 32 bits (4 bytes)
//   - Nonce length: 13 bytes
//   - q = 2 (length field size)
//
// Associated data is limited to 0xFF00 bytes so that its length is always
// encoded in the two-byte form. The protocol only ever authenticates a
// single byte.

package crypto

import (
	"crypto/subtle"
	"fmt"
)

// AES-CCM constants used by the lock protocol.
const (
	// AESCCMKeySize is the AES-128 key size in bytes.
	AESCCMKeySize = AESKeySize

	// AESCCMTagSize is the protocol's authentication tag size in bytes.
	AESCCMTagSize = 4

	// AESCCMNonceSize is the protocol's nonce size in bytes.
	AESCCMNonceSize = 13

	// AESCCMMaxAADSize is the largest associated data accepted.
	AESCCMMaxAADSize = 0xFF00

	// ccmMinNonceSize and ccmMaxNonceSize bound n (q = 15 - n is 2..8).
	ccmMinNonceSize = 7
	ccmMaxNonceSize = 13
)

// Errors. All parameter errors wrap ErrBadParameters.
var (
	ErrAESCCMInvalidNonceSize   = fmt.Errorf("%w: ccm nonce must be 7 to 13 bytes", ErrBadParameters)
	ErrAESCCMInvalidTagSize     = fmt.Errorf("%w: ccm tag size must be 4, 6, 8, 10, 12, 14, or 16", ErrBadParameters)
	ErrAESCCMAADTooLong         = fmt.Errorf("%w: ccm associated data longer than 0xFF00 bytes", ErrBadParameters)
	ErrAESCCMPlaintextTooLong   = fmt.Errorf("%w: ccm payload does not fit the length field", ErrBadParameters)
	ErrAESCCMCiphertextTooShort = fmt.Errorf("%w: ccm ciphertext shorter than tag", ErrBadParameters)
)

// AESCCM represents an AES-128-CCM cipher instance with configurable parameters.
type AESCCM struct {
	block     *AES128
	tagSize   int // t: authentication tag size (4, 6, 8, 10, 12, 14, or 16)
	nonceSize int // n: nonce size (7..13)
	lenSize   int // q: length field size (15 - n)
}

// NewAESCCM creates a new AES-128-CCM cipher with the lock protocol parameters
// (13-byte nonce, 4-byte tag).
func NewAESCCM(key []byte) (*AESCCM, error) {
	return NewAESCCMWithParams(key, AESCCMNonceSize, AESCCMTagSize)
}

// NewAESCCMWithParams creates a new AES-128-CCM cipher with configurable parameters.
// This allows testing with RFC 3610 and SP 800-38C vectors which use other sizes.
//
// Parameters:
//   - key: 16-byte AES-128 key
//   - nonceSize: nonce length in bytes (7-13 per NIST 800-38C)
//   - tagSize: authentication tag length in bytes (4, 6, 8, 10, 12, 14, or 16)
func NewAESCCMWithParams(key []byte, nonceSize, tagSize int) (*AESCCM, error) {
	if tagSize < 4 || tagSize > 16 || tagSize%2 != 0 {
		return nil, ErrAESCCMInvalidTagSize
	}
	if nonceSize < ccmMinNonceSize || nonceSize > ccmMaxNonceSize {
		return nil, ErrAESCCMInvalidNonceSize
	}

	block, err := NewAES128(key)
	if err != nil {
		return nil, err
	}

	return &AESCCM{
		block:     block,
		tagSize:   tagSize,
		nonceSize: nonceSize,
		lenSize:   15 - nonceSize,
	}, nil
}

// NonceSize returns the required nonce size for this cipher.
func (c *AESCCM) NonceSize() int {
	return c.nonceSize
}

// TagSize returns the authentication tag size for this cipher.
func (c *AESCCM) TagSize() int {
	return c.tagSize
}

// Overhead returns the number of bytes Seal adds to the plaintext.
func (c *AESCCM) Overhead() int {
	return c.tagSize
}

// Zeroize clears the expanded key. The cipher must not be used afterwards.
func (c *AESCCM) Zeroize() {
	c.block.Zeroize()
}

// Encrypt encrypts and authenticates plaintext with associated data.
// It returns the ciphertext (same length as plaintext) and the tag.
func (c *AESCCM) Encrypt(nonce, aad, plaintext []byte) (ciphertext, tag []byte, err error) {
	if err := c.checkParams(nonce, aad, len(plaintext)); err != nil {
		return nil, nil, err
	}

	ciphertext = make([]byte, len(plaintext))
	mac := c.authCrypt(false, nonce, aad, ciphertext, plaintext)

	tag = make([]byte, c.tagSize)
	copy(tag, mac[:c.tagSize])
	return ciphertext, tag, nil
}

// Decrypt verifies tag and decrypts ciphertext.
// On authentication failure no plaintext is returned.
func (c *AESCCM) Decrypt(nonce, aad, ciphertext, tag []byte) ([]byte, error) {
	if len(tag) != c.tagSize {
		return nil, ErrAESCCMInvalidTagSize
	}
	if err := c.checkParams(nonce, aad, len(ciphertext)); err != nil {
		return nil, err
	}

	plaintext := make([]byte, len(ciphertext))
	mac := c.authCrypt(true, nonce, aad, plaintext, ciphertext)

	if subtle.ConstantTimeCompare(mac[:c.tagSize], tag) != 1 {
		for i := range plaintext {
			plaintext[i] = 0
		}
		return nil, ErrAuthenticationFailure
	}
	return plaintext, nil
}

// Seal encrypts and authenticates plaintext with associated data.
// Returns ciphertext || tag, the wire form used on the command channel.
func (c *AESCCM) Seal(nonce, plaintext, aad []byte) ([]byte, error) {
	ciphertext, tag, err := c.Encrypt(nonce, aad, plaintext)
	if err != nil {
		return nil, err
	}
	return append(ciphertext, tag...), nil
}

// Open decrypts and verifies ciphertext || tag with associated data.
func (c *AESCCM) Open(nonce, ciphertext, aad []byte) ([]byte, error) {
	if len(ciphertext) < c.tagSize {
		return nil, ErrAESCCMCiphertextTooShort
	}
	split := len(ciphertext) - c.tagSize
	return c.Decrypt(nonce, aad, ciphertext[:split], ciphertext[split:])
}

func (c *AESCCM) checkParams(nonce, aad []byte, payloadLen int) error {
	if len(nonce) != c.nonceSize {
		return ErrAESCCMInvalidNonceSize
	}
	if len(aad) > AESCCMMaxAADSize {
		return ErrAESCCMAADTooLong
	}
	if c.lenSize < 8 && uint64(payloadLen)>>(8*uint(c.lenSize)) != 0 {
		return ErrAESCCMPlaintextTooLong
	}
	return nil
}

// authCrypt runs CBC-MAC and CTR over src into dst and returns the masked
// MAC (the full-length tag). Encryption authenticates src before
// encrypting it; decryption authenticates the recovered plaintext, so both
// directions MAC the same bytes.
func (c *AESCCM) authCrypt(decrypt bool, nonce, aad, dst, src []byte) [aesBlockSize]byte {
	mac := cbcMAC{block: c.block}

	// B_0: Flags || N || Q
	// Flags = Reserved(1) || Adata(1) || t'(3) || q'(3)
	var b0 [aesBlockSize]byte
	if len(aad) > 0 {
		b0[0] |= 1 << 6
	}
	b0[0] |= byte((c.tagSize-2)/2) << 3
	b0[0] |= byte(c.lenSize - 1)
	copy(b0[1:1+c.nonceSize], nonce)
	putLength(b0[1+c.nonceSize:], len(src))
	mac.update(b0[:])

	if len(aad) > 0 {
		// 2-byte big-endian length prefix, then the data, zero padded.
		var first [aesBlockSize]byte
		first[0] = byte(len(aad) >> 8)
		first[1] = byte(len(aad))
		n := copy(first[2:], aad)
		mac.update(first[:])
		for rest := aad[n:]; len(rest) > 0; {
			k := min(len(rest), aesBlockSize)
			mac.update(rest[:k])
			rest = rest[k:]
		}
	}

	ctr := newCCMCounter(c.block, nonce, c.lenSize)
	for i := 0; i < len(src); i += aesBlockSize {
		end := min(i+aesBlockSize, len(src))
		if !decrypt {
			mac.update(src[i:end])
		}
		ctr.xorKeyStream(dst[i:end], src[i:end])
		if decrypt {
			mac.update(dst[i:end])
		}
		ctr.increment()
	}

	// T = MAC XOR S_0
	ctr.reset()
	ctr.xorKeyStream(mac.y[:], mac.y[:])
	return mac.y
}

// cbcMAC is the running CBC-MAC state Y_i = E(K, Y_{i-1} XOR B_i).
type cbcMAC struct {
	block *AES128
	y     [aesBlockSize]byte
}

// update folds one block into the MAC. A short block is implicitly
// zero padded.
func (m *cbcMAC) update(b []byte) {
	for i := range b {
		m.y[i] ^= b[i]
	}
	m.block.encryptBlock(&m.y)
}

// ccmCounter produces the CTR keystream from counter blocks A_i.
type ccmCounter struct {
	block   *AES128
	a       [aesBlockSize]byte
	lenSize int
}

// newCCMCounter builds A_1: Flags = q' || N || counter (1).
func newCCMCounter(block *AES128, nonce []byte, lenSize int) *ccmCounter {
	c := &ccmCounter{block: block, lenSize: lenSize}
	c.a[0] = byte(lenSize - 1)
	copy(c.a[1:], nonce)
	c.a[aesBlockSize-1] = 1
	return c
}

// xorKeyStream sets dst = src XOR E(K, A_i) for up to one block.
func (c *ccmCounter) xorKeyStream(dst, src []byte) {
	s := c.a
	c.block.encryptBlock(&s)
	for i := range src {
		dst[i] = src[i] ^ s[i]
	}
}

// increment advances the counter field, carrying within its q bytes only.
func (c *ccmCounter) increment() {
	incrementCounter(c.a[aesBlockSize-c.lenSize:])
}

// reset sets the counter field to zero (A_0).
func (c *ccmCounter) reset() {
	for i := aesBlockSize - c.lenSize; i < aesBlockSize; i++ {
		c.a[i] = 0
	}
}

// putLength encodes length into dst as a big-endian value.
func putLength(dst []byte, length int) {
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = byte(length)
		length >>= 8
	}
}

// incrementCounter increments a big-endian counter.
func incrementCounter(ctr []byte) {
	for i := len(ctr) - 1; i >= 0; i-- {
		ctr[i]++
		if ctr[i] != 0 {
			break
		}
	}
}

// CCMEncrypt is a convenience function for one-shot AES-128-CCM encryption.
//
// Parameters:
//   - key: 16-byte AES-128 key
//   - nonce: 7 to 13 byte nonce
//   - aad: associated data (at most 0xFF00 bytes)
//   - plaintext: data to encrypt
//   - tagLen: tag length (4, 6, 8, 10, 12, 14, or 16)
func CCMEncrypt(key, nonce, aad, plaintext []byte, tagLen int) (ciphertext, tag []byte, err error) {
	ccm, err := NewAESCCMWithParams(key, len(nonce), tagLen)
	if err != nil {
		return nil, nil, err
	}
	return ccm.Encrypt(nonce, aad, plaintext)
}

// CCMDecrypt is a convenience function for one-shot AES-128-CCM decryption.
// Returns ErrAuthenticationFailure if the tag does not verify.
func CCMDecrypt(key, nonce, aad, ciphertext, tag []byte, tagLen int) ([]byte, error) {
	ccm, err := NewAESCCMWithParams(key, len(nonce), tagLen)
	if err != nil {
		return nil, err
	}
	return ccm.Decrypt(nonce, aad, ciphertext, tag)
}
