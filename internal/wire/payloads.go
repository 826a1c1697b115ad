package wire

import (
	"encoding/binary"
	"math"
)

// Fixed payload sizes. Strings are NUL-padded fixed-width fields; decode
// truncates at the first NUL.
const (
	SessionCodeLen = 32
	NameLen        = 64
	SessionNameLen = 128
	KickReasonLen  = 128

	helloSize       = SessionCodeLen + NameLen + 4 + 4
	ackSize         = 4 + 4 + 4 + SessionNameLen + 4
	pongSize        = 8
	cursorSize      = 8 + 8 + 1 + 7
	strokeStartSize = 4 + 4 + 8 + 4 + 4
	strokePointSize = 4 + 8 + 8 + 8
	strokeEndSize   = 4 + 4
	toolChangeSize  = 4 + 4 + 8
	peerInfoSize    = 4 + NameLen + 4 + 4 + 1 + 3
	kickSize        = 4 + KickReasonLen

	// CanvasChunkOverhead is the fixed prefix ahead of the chunk bytes.
	CanvasChunkOverhead = 4 + 4 + 8 + 4
)

// ACK result codes.
const (
	AckOK          uint32 = 0
	AckWrongCode   uint32 = 1
	AckSessionFull uint32 = 2
	AckKicked      uint32 = 3
)

// Hello is the joiner's handshake payload.
type Hello struct {
	SessionCode  string
	Name         string
	ColorRGBA    uint32
	Capabilities uint32
}

func (m Hello) Encode() []byte {
	buf := make([]byte, helloSize)
	putFixedString(buf[0:SessionCodeLen], m.SessionCode)
	putFixedString(buf[SessionCodeLen:SessionCodeLen+NameLen], m.Name)
	binary.BigEndian.PutUint32(buf[96:100], m.ColorRGBA)
	binary.BigEndian.PutUint32(buf[100:104], m.Capabilities)
	return buf
}

func DecodeHello(b []byte) (Hello, error) {
	if len(b) < helloSize {
		return Hello{}, ErrShortPayload
	}
	return Hello{
		SessionCode:  fixedString(b[0:SessionCodeLen]),
		Name:         fixedString(b[SessionCodeLen : SessionCodeLen+NameLen]),
		ColorRGBA:    binary.BigEndian.Uint32(b[96:100]),
		Capabilities: binary.BigEndian.Uint32(b[100:104]),
	}, nil
}

// Ack is the host's handshake reply.
type Ack struct {
	Result       uint32
	AssignedID   uint32
	AssignedPerm uint32
	SessionName  string
	PeerCount    uint32
}

func (m Ack) Encode() []byte {
	buf := make([]byte, ackSize)
	binary.BigEndian.PutUint32(buf[0:4], m.Result)
	binary.BigEndian.PutUint32(buf[4:8], m.AssignedID)
	binary.BigEndian.PutUint32(buf[8:12], m.AssignedPerm)
	putFixedString(buf[12:12+SessionNameLen], m.SessionName)
	binary.BigEndian.PutUint32(buf[140:144], m.PeerCount)
	return buf
}

func DecodeAck(b []byte) (Ack, error) {
	if len(b) < ackSize {
		return Ack{}, ErrShortPayload
	}
	return Ack{
		Result:       binary.BigEndian.Uint32(b[0:4]),
		AssignedID:   binary.BigEndian.Uint32(b[4:8]),
		AssignedPerm: binary.BigEndian.Uint32(b[8:12]),
		SessionName:  fixedString(b[12 : 12+SessionNameLen]),
		PeerCount:    binary.BigEndian.Uint32(b[140:144]),
	}, nil
}

// Pong echoes the originating PING's header timestamp so the sender can
// measure round-trip latency.
type Pong struct {
	EchoTimestampMS uint64
}

func (m Pong) Encode() []byte {
	buf := make([]byte, pongSize)
	binary.BigEndian.PutUint64(buf, m.EchoTimestampMS)
	return buf
}

func DecodePong(b []byte) (Pong, error) {
	if len(b) < pongSize {
		return Pong{}, ErrShortPayload
	}
	return Pong{EchoTimestampMS: binary.BigEndian.Uint64(b)}, nil
}

// Cursor is a live cursor position update.
type Cursor struct {
	X       float64
	Y       float64
	Drawing bool
}

func (m Cursor) Encode() []byte {
	buf := make([]byte, cursorSize)
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(m.X))
	binary.BigEndian.PutUint64(buf[8:16], math.Float64bits(m.Y))
	if m.Drawing {
		buf[16] = 1
	}
	return buf
}

func DecodeCursor(b []byte) (Cursor, error) {
	if len(b) < cursorSize {
		return Cursor{}, ErrShortPayload
	}
	return Cursor{
		X:       math.Float64frombits(binary.BigEndian.Uint64(b[0:8])),
		Y:       math.Float64frombits(binary.BigEndian.Uint64(b[8:16])),
		Drawing: b[16] != 0,
	}, nil
}

// StrokeStart opens a remote stroke.
type StrokeStart struct {
	StrokeID  uint32
	ColorRGBA uint32
	BrushSize float64
	Tool      uint32
	Layer     uint32
}

func (m StrokeStart) Encode() []byte {
	buf := make([]byte, strokeStartSize)
	binary.BigEndian.PutUint32(buf[0:4], m.StrokeID)
	binary.BigEndian.PutUint32(buf[4:8], m.ColorRGBA)
	binary.BigEndian.PutUint64(buf[8:16], math.Float64bits(m.BrushSize))
	binary.BigEndian.PutUint32(buf[16:20], m.Tool)
	binary.BigEndian.PutUint32(buf[20:24], m.Layer)
	return buf
}

func DecodeStrokeStart(b []byte) (StrokeStart, error) {
	if len(b) < strokeStartSize {
		return StrokeStart{}, ErrShortPayload
	}
	return StrokeStart{
		StrokeID:  binary.BigEndian.Uint32(b[0:4]),
		ColorRGBA: binary.BigEndian.Uint32(b[4:8]),
		BrushSize: math.Float64frombits(binary.BigEndian.Uint64(b[8:16])),
		Tool:      binary.BigEndian.Uint32(b[16:20]),
		Layer:     binary.BigEndian.Uint32(b[20:24]),
	}, nil
}

// StrokePoint is one sampled point within an open stroke.
type StrokePoint struct {
	StrokeID uint32
	X        float64
	Y        float64
	Pressure float64
}

func (m StrokePoint) Encode() []byte {
	buf := make([]byte, strokePointSize)
	binary.BigEndian.PutUint32(buf[0:4], m.StrokeID)
	binary.BigEndian.PutUint64(buf[4:12], math.Float64bits(m.X))
	binary.BigEndian.PutUint64(buf[12:20], math.Float64bits(m.Y))
	binary.BigEndian.PutUint64(buf[20:28], math.Float64bits(m.Pressure))
	return buf
}

func DecodeStrokePoint(b []byte) (StrokePoint, error) {
	if len(b) < strokePointSize {
		return StrokePoint{}, ErrShortPayload
	}
	return StrokePoint{
		StrokeID: binary.BigEndian.Uint32(b[0:4]),
		X:        math.Float64frombits(binary.BigEndian.Uint64(b[4:12])),
		Y:        math.Float64frombits(binary.BigEndian.Uint64(b[12:20])),
		Pressure: math.Float64frombits(binary.BigEndian.Uint64(b[20:28])),
	}, nil
}

// StrokeEnd closes a remote stroke.
type StrokeEnd struct {
	StrokeID   uint32
	PointCount uint32
}

func (m StrokeEnd) Encode() []byte {
	buf := make([]byte, strokeEndSize)
	binary.BigEndian.PutUint32(buf[0:4], m.StrokeID)
	binary.BigEndian.PutUint32(buf[4:8], m.PointCount)
	return buf
}

func DecodeStrokeEnd(b []byte) (StrokeEnd, error) {
	if len(b) < strokeEndSize {
		return StrokeEnd{}, ErrShortPayload
	}
	return StrokeEnd{
		StrokeID:   binary.BigEndian.Uint32(b[0:4]),
		PointCount: binary.BigEndian.Uint32(b[4:8]),
	}, nil
}

// ToolChange mirrors the sender's active tool for remote cursor preview.
type ToolChange struct {
	Tool      uint32
	ColorRGBA uint32
	BrushSize float64
}

func (m ToolChange) Encode() []byte {
	buf := make([]byte, toolChangeSize)
	binary.BigEndian.PutUint32(buf[0:4], m.Tool)
	binary.BigEndian.PutUint32(buf[4:8], m.ColorRGBA)
	binary.BigEndian.PutUint64(buf[8:16], math.Float64bits(m.BrushSize))
	return buf
}

func DecodeToolChange(b []byte) (ToolChange, error) {
	if len(b) < toolChangeSize {
		return ToolChange{}, ErrShortPayload
	}
	return ToolChange{
		Tool:      binary.BigEndian.Uint32(b[0:4]),
		ColorRGBA: binary.BigEndian.Uint32(b[4:8]),
		BrushSize: math.Float64frombits(binary.BigEndian.Uint64(b[8:16])),
	}, nil
}

// CanvasChunk carries one slice of a serialized canvas transfer.
type CanvasChunk struct {
	Index       uint32
	TotalChunks uint32
	TotalSize   uint64
	Data        []byte
}

func (m CanvasChunk) Encode() []byte {
	buf := make([]byte, CanvasChunkOverhead+len(m.Data))
	binary.BigEndian.PutUint32(buf[0:4], m.Index)
	binary.BigEndian.PutUint32(buf[4:8], m.TotalChunks)
	binary.BigEndian.PutUint64(buf[8:16], m.TotalSize)
	binary.BigEndian.PutUint32(buf[16:20], uint32(len(m.Data)))
	copy(buf[CanvasChunkOverhead:], m.Data)
	return buf
}

func DecodeCanvasChunk(b []byte) (CanvasChunk, error) {
	if len(b) < CanvasChunkOverhead {
		return CanvasChunk{}, ErrShortPayload
	}
	chunkLen := binary.BigEndian.Uint32(b[16:20])
	if uint32(len(b)-CanvasChunkOverhead) < chunkLen {
		return CanvasChunk{}, ErrShortPayload
	}
	data := make([]byte, chunkLen)
	copy(data, b[CanvasChunkOverhead:CanvasChunkOverhead+int(chunkLen)])
	return CanvasChunk{
		Index:       binary.BigEndian.Uint32(b[0:4]),
		TotalChunks: binary.BigEndian.Uint32(b[4:8]),
		TotalSize:   binary.BigEndian.Uint64(b[8:16]),
		Data:        data,
	}, nil
}

// PeerInfo is one roster entry inside a PEER_LIST broadcast.
type PeerInfo struct {
	ID        uint32
	Name      string
	ColorRGBA uint32
	Perm      uint32
	Connected bool
}

// EncodePeerList packs the roster as consecutive fixed-width records.
func EncodePeerList(peers []PeerInfo) []byte {
	buf := make([]byte, peerInfoSize*len(peers))
	for i, p := range peers {
		rec := buf[i*peerInfoSize:]
		binary.BigEndian.PutUint32(rec[0:4], p.ID)
		putFixedString(rec[4:4+NameLen], p.Name)
		binary.BigEndian.PutUint32(rec[68:72], p.ColorRGBA)
		binary.BigEndian.PutUint32(rec[72:76], p.Perm)
		if p.Connected {
			rec[76] = 1
		}
	}
	return buf
}

func DecodePeerList(b []byte) ([]PeerInfo, error) {
	if len(b)%peerInfoSize != 0 {
		return nil, ErrShortPayload
	}
	peers := make([]PeerInfo, 0, len(b)/peerInfoSize)
	for i := 0; i+peerInfoSize <= len(b); i += peerInfoSize {
		rec := b[i : i+peerInfoSize]
		peers = append(peers, PeerInfo{
			ID:        binary.BigEndian.Uint32(rec[0:4]),
			Name:      fixedString(rec[4 : 4+NameLen]),
			ColorRGBA: binary.BigEndian.Uint32(rec[68:72]),
			Perm:      binary.BigEndian.Uint32(rec[72:76]),
			Connected: rec[76] != 0,
		})
	}
	return peers, nil
}

// Kick removes a peer from the session.
type Kick struct {
	TargetID uint32
	Reason   string
}

func (m Kick) Encode() []byte {
	buf := make([]byte, kickSize)
	binary.BigEndian.PutUint32(buf[0:4], m.TargetID)
	putFixedString(buf[4:4+KickReasonLen], m.Reason)
	return buf
}

func DecodeKick(b []byte) (Kick, error) {
	if len(b) < kickSize {
		return Kick{}, ErrShortPayload
	}
	return Kick{
		TargetID: binary.BigEndian.Uint32(b[0:4]),
		Reason:   fixedString(b[4 : 4+KickReasonLen]),
	}, nil
}

func putFixedString(dst []byte, s string) {
	copy(dst, s)
}

func fixedString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
