package message

// Command is an outbound body: item code followed by its payload.
type Command struct {
	Item    ItemCode
	Payload []byte

	// Parsing is how the body travels: login goes in the clear, everything
	// after login is sealed with the session token.
	Parsing ParsingType
}

// Encode returns item || payload.
func (c *Command) Encode() ([]byte, error) {
	if 1+len(c.Payload) > MaxCommandSize {
		return nil, ErrCommandTooLarge
	}
	out := make([]byte, 1+len(c.Payload))
	out[0] = byte(c.Item)
	copy(out[1:], c.Payload)
	return out, nil
}

// Encrypted reports whether the body must be sealed before sending.
func (c *Command) Encrypted() bool {
	return c.Parsing == ParsingCiphertext
}

// NewLoginCommand builds the login command carrying the 4-byte proof.
// It is sent in the clear.
func NewLoginCommand(proof [ProofSize]byte) *Command {
	payload := make([]byte, ProofSize)
	copy(payload, proof[:])
	return &Command{Item: ItemLogin, Payload: payload, Parsing: ParsingPlaintext}
}

// NewLockCommand builds a lock command with a history tag.
// An empty tag is replaced by DefaultTag.
func NewLockCommand(tag []byte) (*Command, error) {
	return newTaggedCommand(ItemLock, tag)
}

// NewUnlockCommand builds an unlock command with a history tag.
// An empty tag is replaced by DefaultTag.
func NewUnlockCommand(tag []byte) (*Command, error) {
	return newTaggedCommand(ItemUnlock, tag)
}

// newTaggedCommand lays out item || len(tag) || tag.
func newTaggedCommand(item ItemCode, tag []byte) (*Command, error) {
	if len(tag) == 0 {
		tag = DefaultTag
	}
	if len(tag) > MaxTagSize {
		return nil, ErrTagTooLong
	}
	payload := make([]byte, 1+len(tag))
	payload[0] = byte(len(tag))
	copy(payload[1:], tag)
	return &Command{Item: item, Payload: payload, Parsing: ParsingCiphertext}, nil
}

// ParseTaggedCommand returns the history tag of a lock/unlock payload.
func ParseTaggedCommand(payload []byte) ([]byte, error) {
	if len(payload) < 1 {
		return nil, ErrShortPacket
	}
	n := int(payload[0])
	if n > MaxTagSize {
		return nil, ErrTagTooLong
	}
	if len(payload) < 1+n {
		return nil, ErrShortPacket
	}
	return payload[1 : 1+n], nil
}

// ParseCommand splits an inbound command body (as seen by the lock) into
// item and payload.
func ParseCommand(body []byte) (ItemCode, []byte, error) {
	if len(body) < 1 {
		return ItemNone, nil, ErrShortPacket
	}
	return ItemCode(body[0]), body[1:], nil
}
