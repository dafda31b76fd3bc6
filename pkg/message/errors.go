package message

import "errors"

// Message layer errors.
var (
	// Segment header errors
	ErrEmptyPacket        = errors.New("message: empty packet")
	ErrInvalidParsingType = errors.New("message: invalid parsing type (reserved value)")

	// Inbound body errors
	ErrShortPacket   = errors.New("message: body too short")
	ErrUnknownOpCode = errors.New("message: unknown op code")

	// Command errors
	ErrTagTooLong      = errors.New("message: history tag too long")
	ErrCommandTooLarge = errors.New("message: command exceeds maximum size")
	ErrMechStatusSize  = errors.New("message: mech status must be 7 bytes")
)

// Protocol constants.
const (
	// MaxCommandSize is the largest command body the lock accepts
	// (registration, the longest command, is 80 bytes).
	MaxCommandSize = 80

	// MaxBodySize is MaxCommandSize plus the 4-byte CCM tag of a sealed body.
	MaxBodySize = MaxCommandSize + 4

	// SegmentPayloadSize is the body bytes carried per segment at the
	// default 20-byte ATT payload (one byte goes to the segment header).
	SegmentPayloadSize = 19

	// MaxTagSize is the longest history tag accepted in lock/unlock commands.
	MaxTagSize = 31

	// ProofSize is the length of the login proof.
	ProofSize = 4

	// ChallengeSize is the length of the challenge in the initial publish.
	ChallengeSize = 4
)

// DefaultTag is the history tag used when lock/unlock is called without one.
var DefaultTag = []byte("SESAME ESP32")
