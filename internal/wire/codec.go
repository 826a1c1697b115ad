package wire

import (
	"encoding/binary"
	"time"
)

// NewFrame builds a frame stamped with the current wall clock.
func NewFrame(t MsgType, senderID, seq uint32, payload []byte) Frame {
	return Frame{
		Header: Header{
			Magic:       Magic,
			Version:     Version,
			Type:        t,
			SenderID:    senderID,
			Seq:         seq,
			TimestampMS: uint64(time.Now().UnixMilli()),
			PayloadLen:  uint32(len(payload)),
		},
		Payload: payload,
	}
}

// EncodeFrame serializes f into wire bytes. Magic, version, and payload
// length are forced to the canonical values so a caller cannot emit an
// inconsistent frame.
func EncodeFrame(f Frame, limits Limits) ([]byte, error) {
	if !f.Header.Type.Valid() {
		return nil, ErrUnknownType
	}
	if uint32(len(f.Payload)) > limits.MaxPayloadBytes {
		return nil, ErrPayloadTooLarge
	}

	h := f.Header
	h.Magic = Magic
	h.Version = Version
	h.PayloadLen = uint32(len(f.Payload))

	buf := make([]byte, HeaderSize+len(f.Payload))
	encodeHeader(buf[:HeaderSize], h)
	copy(buf[HeaderSize:], f.Payload)
	return buf, nil
}

func encodeHeader(dst []byte, h Header) {
	binary.BigEndian.PutUint32(dst[0:4], h.Magic)
	binary.BigEndian.PutUint16(dst[4:6], h.Version)
	binary.BigEndian.PutUint16(dst[6:8], uint16(h.Type))
	binary.BigEndian.PutUint32(dst[8:12], h.SenderID)
	binary.BigEndian.PutUint32(dst[12:16], h.Seq)
	binary.BigEndian.PutUint64(dst[16:24], h.TimestampMS)
	binary.BigEndian.PutUint32(dst[24:28], h.PayloadLen)
	binary.BigEndian.PutUint32(dst[28:32], h.Flags)
}

// DecodeHeader parses and validates one fixed header. It fails closed on
// magic mismatch, version mismatch, unknown type, or a declared payload
// length above the limit.
func DecodeHeader(b []byte, limits Limits) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrTruncated
	}
	h := Header{
		Magic:       binary.BigEndian.Uint32(b[0:4]),
		Version:     binary.BigEndian.Uint16(b[4:6]),
		Type:        MsgType(binary.BigEndian.Uint16(b[6:8])),
		SenderID:    binary.BigEndian.Uint32(b[8:12]),
		Seq:         binary.BigEndian.Uint32(b[12:16]),
		TimestampMS: binary.BigEndian.Uint64(b[16:24]),
		PayloadLen:  binary.BigEndian.Uint32(b[24:28]),
		Flags:       binary.BigEndian.Uint32(b[28:32]),
	}
	if h.Magic != Magic {
		return Header{}, ErrBadMagic
	}
	if h.Version != Version {
		return Header{}, ErrBadVersion
	}
	if !h.Type.Valid() {
		return Header{}, ErrUnknownType
	}
	if h.PayloadLen > limits.MaxPayloadBytes {
		return Header{}, ErrPayloadTooLarge
	}
	return h, nil
}

// DecodeFrame parses one complete frame from b. The payload is copied so the
// caller may reuse b.
func DecodeFrame(b []byte, limits Limits) (Frame, error) {
	h, err := DecodeHeader(b, limits)
	if err != nil {
		return Frame{}, err
	}
	if uint32(len(b)-HeaderSize) < h.PayloadLen {
		return Frame{}, ErrTruncated
	}
	payload := make([]byte, h.PayloadLen)
	copy(payload, b[HeaderSize:HeaderSize+int(h.PayloadLen)])
	return Frame{Header: h, Payload: payload}, nil
}
