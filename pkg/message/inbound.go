package message

// Inbound is a parsed body sent by the lock.
type Inbound struct {
	Op     OpCode
	Item   ItemCode
	Result ResultCode // Responses only
	// Payload is the remainder after op, item and (for responses) result.
	Payload []byte
}

// IsResponse reports whether the body answers a command.
func (m *Inbound) IsResponse() bool {
	return m.Op == OpResponse
}

// IsPublish reports whether the body is an unsolicited publish.
func (m *Inbound) IsPublish() bool {
	return m.Op == OpPublish
}

// Success reports whether a response carries ResultSuccess.
// Publishes always report true.
func (m *Inbound) Success() bool {
	return m.Op != OpResponse || m.Result == ResultSuccess
}

// ParseInbound decodes a plaintext body from the lock.
//
//	publish:  op || item || payload
//	response: op || item || result || payload
func ParseInbound(body []byte) (*Inbound, error) {
	if len(body) < 2 {
		return nil, ErrShortPacket
	}

	m := &Inbound{
		Op:   OpCode(body[0]),
		Item: ItemCode(body[1]),
	}

	switch m.Op {
	case OpPublish:
		m.Payload = body[2:]
	case OpResponse:
		if len(body) < 3 {
			return nil, ErrShortPacket
		}
		m.Result = ResultCode(body[2])
		m.Payload = body[3:]
	default:
		return nil, ErrUnknownOpCode
	}
	return m, nil
}

// Encode serializes the body. Used by the lock side.
func (m *Inbound) Encode() []byte {
	switch m.Op {
	case OpResponse:
		out := make([]byte, 3+len(m.Payload))
		out[0] = byte(m.Op)
		out[1] = byte(m.Item)
		out[2] = byte(m.Result)
		copy(out[3:], m.Payload)
		return out
	default:
		out := make([]byte, 2+len(m.Payload))
		out[0] = byte(m.Op)
		out[1] = byte(m.Item)
		copy(out[2:], m.Payload)
		return out
	}
}

// NewInitialPublish builds the challenge publish sent after connect.
func NewInitialPublish(challenge [ChallengeSize]byte) *Inbound {
	payload := make([]byte, ChallengeSize)
	copy(payload, challenge[:])
	return &Inbound{Op: OpPublish, Item: ItemInitial, Payload: payload}
}

// NewMechStatusPublish builds the mechanism status publish.
func NewMechStatusPublish(status MechStatus) *Inbound {
	enc := status.Encode()
	return &Inbound{Op: OpPublish, Item: ItemMechStatus, Payload: enc[:]}
}

// NewResponse builds a response to item.
func NewResponse(item ItemCode, result ResultCode, payload []byte) *Inbound {
	return &Inbound{Op: OpResponse, Item: item, Result: result, Payload: payload}
}

// Challenge returns the 4-byte challenge of an initial publish.
func (m *Inbound) Challenge() ([ChallengeSize]byte, error) {
	var c [ChallengeSize]byte
	if m.Item != ItemInitial || len(m.Payload) < ChallengeSize {
		return c, ErrShortPacket
	}
	copy(c[:], m.Payload)
	return c, nil
}
