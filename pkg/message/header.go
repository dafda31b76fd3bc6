package message

// Segment header bit layout.
const (
	segmentFirstBit   = 0x01
	segmentTypeShift  = 1
	segmentTypeMask   = 0x03
	segmentHeaderSize = 1
)

// SegmentHeader is the one-byte prefix of every write and notification.
//
//	bit 0    first segment of a body
//	bits 1-2 parsing type, set only on the final segment
type SegmentHeader struct {
	First   bool
	Parsing ParsingType
}

// Last reports whether this segment completes a body.
func (h SegmentHeader) Last() bool {
	return h.Parsing != ParsingNone
}

// Encode returns the header byte.
func (h SegmentHeader) Encode() byte {
	b := byte(h.Parsing&segmentTypeMask) << segmentTypeShift
	if h.First {
		b |= segmentFirstBit
	}
	return b
}

// EncodeSegmentHeader returns the header byte for a segment.
func EncodeSegmentHeader(first bool, parsing ParsingType) byte {
	return SegmentHeader{First: first, Parsing: parsing}.Encode()
}

// DecodeSegmentHeader parses a header byte.
func DecodeSegmentHeader(b byte) (SegmentHeader, error) {
	h := SegmentHeader{
		First:   b&segmentFirstBit != 0,
		Parsing: ParsingType((b >> segmentTypeShift) & segmentTypeMask),
	}
	if !h.Parsing.IsValid() {
		return SegmentHeader{}, ErrInvalidParsingType
	}
	return h, nil
}

// SplitPacket splits a single-segment packet into its header and body.
func SplitPacket(packet []byte) (SegmentHeader, []byte, error) {
	if len(packet) < segmentHeaderSize {
		return SegmentHeader{}, nil, ErrEmptyPacket
	}
	h, err := DecodeSegmentHeader(packet[0])
	if err != nil {
		return SegmentHeader{}, nil, err
	}
	return h, packet[segmentHeaderSize:], nil
}

// Frame prefixes body with a single-segment header for parsing.
func Frame(parsing ParsingType, body []byte) []byte {
	out := make([]byte, segmentHeaderSize+len(body))
	out[0] = EncodeSegmentHeader(true, parsing)
	copy(out[segmentHeaderSize:], body)
	return out
}
