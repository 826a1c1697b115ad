// Package wire owns the DrawNet wire contract and parsing primitives.
//
// Ownership boundary:
// - fixed 32-byte frame header
// - closed message-type enum
// - typed payload layouts
// - stream framing for partial TCP reads
package wire

// Protocol constants. All multi-byte fields are big-endian on the wire.
const (
	Magic      uint32 = 0x444E4554 // "DNET"
	Version    uint16 = 1
	HeaderSize        = 32

	// ChunkSize is the canvas transfer chunk size.
	ChunkSize = 32 * 1024

	// MaxPayload bounds a single frame payload so a hostile peer cannot
	// force a large allocation. Canvas chunks are the largest legitimate
	// payload.
	MaxPayload = 64 * 1024
)

// MsgType tags one frame with its payload kind.
type MsgType uint16

const (
	MsgHello MsgType = iota + 1
	MsgAck
	MsgPing
	MsgPong
	MsgCursor
	MsgStrokeStart
	MsgStrokePoint
	MsgStrokeEnd
	MsgChat
	MsgToolChange
	MsgCanvasRequest
	MsgCanvasData
	MsgPeerList
	MsgKick
	MsgLeave

	msgTypeEnd
)

// Valid reports whether t is a known message type.
func (t MsgType) Valid() bool {
	return t >= MsgHello && t < msgTypeEnd
}

func (t MsgType) String() string {
	switch t {
	case MsgHello:
		return "hello"
	case MsgAck:
		return "ack"
	case MsgPing:
		return "ping"
	case MsgPong:
		return "pong"
	case MsgCursor:
		return "cursor"
	case MsgStrokeStart:
		return "stroke_start"
	case MsgStrokePoint:
		return "stroke_point"
	case MsgStrokeEnd:
		return "stroke_end"
	case MsgChat:
		return "chat"
	case MsgToolChange:
		return "tool_change"
	case MsgCanvasRequest:
		return "canvas_request"
	case MsgCanvasData:
		return "canvas_data"
	case MsgPeerList:
		return "peer_list"
	case MsgKick:
		return "kick"
	case MsgLeave:
		return "leave"
	default:
		return "unknown"
	}
}

// Header is the fixed wire header.
type Header struct {
	Magic       uint32
	Version     uint16
	Type        MsgType
	SenderID    uint32
	Seq         uint32
	TimestampMS uint64
	PayloadLen  uint32
	Flags       uint32
}

// Frame is one complete wire message.
type Frame struct {
	Header  Header
	Payload []byte
}

// Limits constrains frame decode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: MaxPayload}
}
