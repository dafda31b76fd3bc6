package message

// Segment splits a body into GATT writes of at most chunk body bytes each.
// chunk <= 0 uses SegmentPayloadSize. Only the final segment carries
// parsing; only the first has the first bit set.
func Segment(parsing ParsingType, body []byte, chunk int) [][]byte {
	if chunk <= 0 {
		chunk = SegmentPayloadSize
	}
	if len(body) == 0 {
		return [][]byte{{EncodeSegmentHeader(true, parsing)}}
	}

	var out [][]byte
	for off := 0; off < len(body); off += chunk {
		end := min(off+chunk, len(body))
		p := ParsingNone
		if end == len(body) {
			p = parsing
		}
		seg := make([]byte, segmentHeaderSize+end-off)
		seg[0] = EncodeSegmentHeader(off == 0, p)
		copy(seg[segmentHeaderSize:], body[off:end])
		out = append(out, seg)
	}
	return out
}

// Reassembler joins segments back into bodies.
// It is not safe for concurrent use; each link owns one.
type Reassembler struct {
	buf []byte
}

// Push adds one segment. When the segment completes a body, Push returns
// the body and its parsing type with done set.
func (r *Reassembler) Push(packet []byte) (body []byte, parsing ParsingType, done bool, err error) {
	h, data, err := SplitPacket(packet)
	if err != nil {
		return nil, ParsingNone, false, err
	}

	if h.First {
		r.buf = r.buf[:0]
	}
	if len(r.buf)+len(data) > MaxBodySize {
		r.buf = r.buf[:0]
		return nil, ParsingNone, false, ErrCommandTooLarge
	}
	r.buf = append(r.buf, data...)

	if !h.Last() {
		return nil, ParsingNone, false, nil
	}
	body = make([]byte, len(r.buf))
	copy(body, r.buf)
	r.buf = r.buf[:0]
	return body, h.Parsing, true, nil
}

// Reset drops any partial body.
func (r *Reassembler) Reset() {
	r.buf = r.buf[:0]
}
