package wire

// StreamDecoder accumulates bytes from a TCP stream and extracts complete
// frames. Bytes may arrive in arbitrarily small pieces; a frame is only
// produced once the full header plus declared payload is buffered.
//
// A StreamDecoder belongs to exactly one connection and is not safe for
// concurrent use.
type StreamDecoder struct {
	limits Limits
	buf    []byte
}

func NewStreamDecoder(limits Limits) *StreamDecoder {
	return &StreamDecoder{limits: limits}
}

// Feed appends raw bytes received from the connection.
func (d *StreamDecoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Buffered returns the number of bytes held for a not-yet-complete frame.
func (d *StreamDecoder) Buffered() int {
	return len(d.buf)
}

// Next extracts the next complete frame. ok is false when more bytes are
// needed. A header validation failure discards the entire buffer — the
// stream has desynchronized and the connection should be treated as having
// hit a protocol error — but the decoder itself stays usable for bytes fed
// afterwards.
func (d *StreamDecoder) Next() (Frame, bool, error) {
	if len(d.buf) < HeaderSize {
		return Frame{}, false, nil
	}

	h, err := DecodeHeader(d.buf[:HeaderSize], d.limits)
	if err != nil {
		d.buf = nil
		return Frame{}, false, err
	}

	total := HeaderSize + int(h.PayloadLen)
	if len(d.buf) < total {
		return Frame{}, false, nil
	}

	payload := make([]byte, h.PayloadLen)
	copy(payload, d.buf[HeaderSize:total])

	// Compact rather than re-slice so the backing array of a large read
	// does not pin already-consumed frames.
	rest := len(d.buf) - total
	copy(d.buf, d.buf[total:])
	d.buf = d.buf[:rest]

	return Frame{Header: h, Payload: payload}, true, nil
}

// Reset drops any buffered bytes.
func (d *StreamDecoder) Reset() {
	d.buf = nil
}
