package session

import (
	"github.com/inkwell-paint/drawnet/internal/peer"
	"github.com/inkwell-paint/drawnet/internal/wire"
)

// Events is the produced interface toward the painting engine and UI. Every
// callback is optional. Callbacks run on the session loop goroutine and must
// not block; hand work that needs the UI thread off through the embedding
// application's own queue.
type Events struct {
	// StatusChanged fires on every state transition with a display string.
	StatusChanged func(state State, status string)

	PeerJoined    func(p peer.Peer)
	PeerLeft      func(p peer.Peer)
	RosterChanged func(peers []peer.Peer)

	CursorMoved func(senderID uint32, c wire.Cursor)

	StrokeStarted func(senderID uint32, s wire.StrokeStart)
	StrokePoint   func(senderID uint32, p wire.StrokePoint)
	StrokeEnded   func(senderID uint32, e wire.StrokeEnd)

	Chat        func(senderID uint32, senderName, message string)
	ToolChanged func(senderID uint32, t wire.ToolChange)

	// CanvasReceived hands the fully reassembled canvas blob to the
	// painting engine for decoding.
	CanvasReceived func(data []byte)

	// Kicked fires when the local participant was removed by the host.
	Kicked func(reason string)
}

// SnapshotFunc serializes the current canvas for an outbound transfer. The
// painting engine supplies it; DrawNet never interprets the bytes.
type SnapshotFunc func() ([]byte, error)
