// AES-CMAC message authentication code, NIST SP 800-38B.
//
// The lock protocol uses CMAC once per login: the device secret keys the
// MAC over the 4-byte challenge, and the 16-byte result becomes the CCM
// session key.

package crypto

import (
	"crypto/subtle"
)

// CMACSize is the AES-CMAC output size in bytes.
const CMACSize = aesBlockSize

// cmacRb is the last byte of the SP 800-38B constant R_128.
const cmacRb = 0x87

// AESCMAC computes AES-CMAC tags under a fixed key.
// Subkeys K1 and K2 are derived once at construction.
type AESCMAC struct {
	block  *AES128
	k1, k2 [aesBlockSize]byte
}

// NewAESCMAC creates a CMAC instance for a 16-byte key.
func NewAESCMAC(key []byte) (*AESCMAC, error) {
	block, err := NewAES128(key)
	if err != nil {
		return nil, err
	}

	m := &AESCMAC{block: block}

	// L = AES(K, 0^128); K1 = dbl(L); K2 = dbl(K1)
	var l [aesBlockSize]byte
	block.encryptBlock(&l)
	m.k1 = dbl(l)
	m.k2 = dbl(m.k1)
	return m, nil
}

// Compute returns the 16-byte CMAC of msg.
func (m *AESCMAC) Compute(msg []byte) [CMACSize]byte {
	n := (len(msg) + aesBlockSize - 1) / aesBlockSize
	complete := n > 0 && len(msg)%aesBlockSize == 0
	if n == 0 {
		// The empty message is one padded block.
		n = 1
	}

	var last [aesBlockSize]byte
	tail := msg[(n-1)*aesBlockSize:]
	if complete {
		xorBlock(&last, tail, m.k1[:])
	} else {
		copy(last[:], tail)
		last[len(tail)] = 0x80
		xorBlock(&last, last[:], m.k2[:])
	}

	var x [aesBlockSize]byte
	for i := 0; i < n-1; i++ {
		xorBlock(&x, x[:], msg[i*aesBlockSize:(i+1)*aesBlockSize])
		m.block.encryptBlock(&x)
	}
	xorBlock(&x, x[:], last[:])
	m.block.encryptBlock(&x)
	return x
}

// Verify checks tag against the CMAC of msg in constant time.
// tag may be a truncated CMAC (at least 4 bytes).
func (m *AESCMAC) Verify(msg, tag []byte) error {
	if len(tag) < 4 || len(tag) > CMACSize {
		return ErrAuthenticationFailure
	}
	computed := m.Compute(msg)
	if subtle.ConstantTimeCompare(computed[:len(tag)], tag) != 1 {
		return ErrAuthenticationFailure
	}
	return nil
}

// Subkeys returns copies of K1 and K2.
func (m *AESCMAC) Subkeys() (k1, k2 [aesBlockSize]byte) {
	return m.k1, m.k2
}

// CMAC is a convenience function computing AES-CMAC(key, msg).
func CMAC(key, msg []byte) ([CMACSize]byte, error) {
	m, err := NewAESCMAC(key)
	if err != nil {
		return [CMACSize]byte{}, err
	}
	return m.Compute(msg), nil
}

// dbl shifts in left by one bit and folds the dropped top bit back in with Rb.
func dbl(in [aesBlockSize]byte) [aesBlockSize]byte {
	var out [aesBlockSize]byte
	var carry byte
	for i := aesBlockSize - 1; i >= 0; i-- {
		out[i] = in[i]<<1 | carry
		carry = in[i] >> 7
	}
	if carry != 0 {
		out[aesBlockSize-1] ^= cmacRb
	}
	return out
}

// xorBlock sets dst = a XOR b over one block. a may alias dst.
func xorBlock(dst *[aesBlockSize]byte, a, b []byte) {
	for i := 0; i < aesBlockSize; i++ {
		dst[i] = a[i] ^ b[i]
	}
}
