// Package session implements the per-connection cipher state of the lock
// protocol.
//
// A session is keyed by a token derived at login: AES-CMAC of the 16-byte
// device secret over the 4-byte challenge the lock publishes after connect.
// Each direction carries its own nonce; both share the challenge as their
// random part and count messages independently from zero.
//
// Every command body on the wire is AES-128-CCM with a 13-byte nonce, a
// single 0x00 byte of associated data and a 4-byte tag.
package session

// Direction selects one of the two nonce sequences of a session.
type Direction int

const (
	// DirectionUnknown indicates an uninitialized or invalid direction.
	DirectionUnknown Direction = iota

	// DirectionEncrypt is the local outbound sequence.
	DirectionEncrypt

	// DirectionDecrypt is the local inbound sequence.
	DirectionDecrypt
)

// String returns a human-readable name for the direction.
func (d Direction) String() string {
	switch d {
	case DirectionEncrypt:
		return "Encrypt"
	case DirectionDecrypt:
		return "Decrypt"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the direction is a defined value.
func (d Direction) IsValid() bool {
	return d == DirectionEncrypt || d == DirectionDecrypt
}
