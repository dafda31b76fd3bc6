// Package device implements the client side of the lock protocol.
//
// A Session tracks one lock: its link status, the challenge it published,
// the login handshake and the mechanism state it reports. Commands that
// change the lock (lock, unlock) are only accepted once the lock has
// acknowledged login.
//
// Status flow:
//
//	NoUse -> Disconnected -> Scanning -> Connecting -> Connected
//	Connected --(login ack)--> LoggedIn
//	LoggedIn --(mech status)--> Locked | Unlocked | Moved
package device

// Status is the lifecycle state of a lock session.
type Status int

const (
	StatusNoUse Status = iota
	StatusDisconnected
	StatusScanning
	StatusConnecting
	StatusConnected
	StatusLoggedIn
	StatusLocked
	StatusUnlocked
	StatusMoved
)

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case StatusNoUse:
		return "NoUse"
	case StatusDisconnected:
		return "Disconnected"
	case StatusScanning:
		return "Scanning"
	case StatusConnecting:
		return "Connecting"
	case StatusConnected:
		return "Connected"
	case StatusLoggedIn:
		return "LoggedIn"
	case StatusLocked:
		return "Locked"
	case StatusUnlocked:
		return "Unlocked"
	case StatusMoved:
		return "Moved"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the status is a defined value.
func (s Status) IsValid() bool {
	return s >= StatusNoUse && s <= StatusMoved
}

// IsLoggedIn reports whether the lock has accepted login.
// Locked, Unlocked and Moved all imply a logged-in session.
func (s Status) IsLoggedIn() bool {
	return s >= StatusLoggedIn && s <= StatusMoved
}

// IsLinkStatus reports whether the status is owned by the transport
// (reported through SetLinkStatus) rather than by the protocol.
func (s Status) IsLinkStatus() bool {
	return s >= StatusDisconnected && s <= StatusConnected
}
