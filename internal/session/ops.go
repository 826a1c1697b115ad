package session

import (
	"github.com/rs/zerolog/log"

	"github.com/inkwell-paint/drawnet/internal/config"
	"github.com/inkwell-paint/drawnet/internal/observability"
	"github.com/inkwell-paint/drawnet/internal/transport"
	"github.com/inkwell-paint/drawnet/internal/wire"
)

// Outbound painting operations. Each posts to the session loop and returns
// ErrNotInSession once the loop is gone; delivery beyond that is best-effort,
// matching the rest of the realtime traffic.

// MoveCursor records the local cursor position. Updates are coalesced and
// sent on the cursor tick rather than per mouse event.
func (s *Session) MoveCursor(x, y float64, drawing bool) error {
	return s.do(func() {
		s.cursorX, s.cursorY = x, y
		s.cursorDrawing = drawing
		s.cursorDirty = true
	})
}

// StartStroke announces a new local stroke.
func (s *Session) StartStroke(st wire.StrokeStart) error {
	return s.do(func() {
		s.sendStroke(wire.MsgStrokeStart, st.Encode())
	})
}

// AddStrokePoint appends one sampled point to an open local stroke.
func (s *Session) AddStrokePoint(pt wire.StrokePoint) error {
	return s.do(func() {
		s.sendStroke(wire.MsgStrokePoint, pt.Encode())
	})
}

// EndStroke closes an open local stroke. In per-stroke sync mode this also
// flushes everything buffered for the stroke.
func (s *Session) EndStroke(end wire.StrokeEnd) error {
	return s.do(func() {
		s.sendStroke(wire.MsgStrokeEnd, end.Encode())
		if s.cfg.SyncMode == config.SyncPerStroke {
			s.flushPendingStrokes()
		}
	})
}

// FlushStrokes pushes out everything buffered by interval or manual sync
// mode.
func (s *Session) FlushStrokes() error {
	return s.do(s.flushPendingStrokes)
}

// SendChat broadcasts a chat line to the session.
func (s *Session) SendChat(message string) error {
	return s.do(func() {
		s.sendAll(wire.MsgChat, []byte(message))
	})
}

// ChangeTool mirrors the local tool selection to remote cursor previews.
// A no-op when tool sharing is disabled in config.
func (s *Session) ChangeTool(tc wire.ToolChange) error {
	return s.do(func() {
		if !s.cfg.ShareTool {
			return
		}
		s.sendAll(wire.MsgToolChange, tc.Encode())
	})
}

// RequestCanvas asks the host to resend the full canvas.
func (s *Session) RequestCanvas() error {
	return s.do(func() {
		if s.isHost {
			return
		}
		s.setState(StateSyncing, "")
		s.send(s.hostConn, wire.MsgCanvasRequest, nil)
	})
}

// Kick removes a peer from a hosted session. The target receives the reason
// before its connection is closed; everyone else learns through the next
// roster broadcast.
func (s *Session) Kick(targetID uint32, reason string) error {
	if !s.IsHost() {
		return ErrNotHost
	}
	return s.do(func() {
		s.kickPeer(targetID, reason)
	})
}

// --- loop-side helpers ---

// sendAll routes an outbound message: a joiner sends to the host, the host
// broadcasts to every joined peer.
func (s *Session) sendAll(t wire.MsgType, payload []byte) {
	if s.isHost {
		for _, conn := range s.connByID {
			s.send(conn, t, payload)
		}
		return
	}
	if s.hostConn != nil {
		s.send(s.hostConn, t, payload)
	}
}

// sendStroke applies the configured sync mode: realtime traffic goes out
// immediately, everything else is buffered for a later flush.
func (s *Session) sendStroke(t wire.MsgType, payload []byte) {
	if s.cfg.SyncMode == config.SyncRealtime {
		s.sendAll(t, payload)
		return
	}
	s.seq++
	s.pendingStrokes = append(s.pendingStrokes, wire.NewFrame(t, s.localID, s.seq, payload))
}

func (s *Session) flushPendingStrokes() {
	if len(s.pendingStrokes) == 0 {
		return
	}
	for _, frame := range s.pendingStrokes {
		if s.isHost {
			s.relay(frame, nil)
		} else if s.hostConn != nil {
			s.sendFrame(s.hostConn, frame)
		}
	}
	log.Debug().Int("frames", len(s.pendingStrokes)).Msg("stroke buffer flushed")
	s.pendingStrokes = s.pendingStrokes[:0]
}

// sendFrame writes an already-built frame, keeping counters in step with
// send.
func (s *Session) sendFrame(conn *transport.Conn, frame wire.Frame) {
	n, err := conn.Send(frame)
	if err != nil {
		log.Warn().Err(err).Str("type", frame.Header.Type.String()).Msg("send failed")
		return
	}
	s.stats.PacketsSent.Add(1)
	s.stats.BytesSent.Add(int64(n))
	observability.RecordPacketSent(frame.Header.Type.String(), n)
}
