package device

import (
	"errors"
	"fmt"

	"github.com/backkem/sesame/pkg/message"
)

// Device package errors.
var (
	// ErrNotLoggedIn is returned when a command needs a logged-in session.
	ErrNotLoggedIn = errors.New("device: not logged in")

	// ErrNotConnected is returned when login is attempted without a link.
	ErrNotConnected = errors.New("device: not connected")

	// ErrNoSecret is returned when login is attempted without a device secret.
	ErrNoSecret = errors.New("device: no device secret")

	// ErrNoChallenge is returned when login is attempted before the lock
	// published its challenge.
	ErrNoChallenge = errors.New("device: no challenge received")

	// ErrNoTransmitter is returned when creating a session without a transmitter.
	ErrNoTransmitter = errors.New("device: no transmitter configured")

	// ErrInvalidSecret is returned when the device secret is not 16 bytes.
	ErrInvalidSecret = errors.New("device: device secret must be 16 bytes")

	// ErrInvalidLinkStatus is returned when SetLinkStatus gets a protocol status.
	ErrInvalidLinkStatus = errors.New("device: not a link status")

	// ErrSegmentedPacket is returned by HandlePacket for a multi-segment packet.
	// Reassembly belongs to the transport.
	ErrSegmentedPacket = errors.New("device: packet is not a single segment")

	// ErrDisconnected is returned to a command waiting for a response when
	// the link drops.
	ErrDisconnected = errors.New("device: disconnected")

	// ErrLoginVoided is returned to a command waiting for a response when
	// a new challenge or a link change ends the login it was sent under.
	ErrLoginVoided = errors.New("device: login voided")

	// ErrUnauthenticatedBody is returned by Receive for a plaintext body
	// that only the lock's sealed channel may carry.
	ErrUnauthenticatedBody = errors.New("device: unauthenticated body")

	// ErrTableFull is returned when no more sessions can be added.
	ErrTableFull = errors.New("device: session table full")

	// ErrDuplicateSession is returned when adding a session for a UUID
	// already in the table.
	ErrDuplicateSession = errors.New("device: duplicate session")

	// ErrNilSession is returned when adding a nil session.
	ErrNilSession = errors.New("device: nil session")
)

// CommandError reports a response carrying a non-success result.
type CommandError struct {
	Item   message.ItemCode
	Result message.ResultCode
}

// Error implements error.
func (e *CommandError) Error() string {
	return fmt.Sprintf("device: %v rejected: %v", e.Item, e.Result)
}
