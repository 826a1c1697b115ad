package session

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/inkwell-paint/drawnet/internal/peer"
	"github.com/inkwell-paint/drawnet/internal/wire"
)

// onPingTick runs liveness: a PING to every connection, then pruning of
// peers that have been silent past the timeout.
func (s *Session) onPingTick() {
	s.sendAll(wire.MsgPing, nil)

	now := time.Now()
	if !s.isHost {
		if now.Sub(s.hostSeen) > s.peerTimeout {
			s.close(StateError, "host timed out")
		}
		return
	}

	var stale []uint32
	s.registry.ForEach(func(p *peer.Peer) {
		if p.ID == s.localID {
			return
		}
		if p.Stale(now, s.peerTimeout) {
			stale = append(stale, p.ID)
		}
	})
	for _, id := range stale {
		p, _ := s.registry.Get(id)
		left := *p
		if conn, ok := s.connByID[id]; ok {
			delete(s.conns, conn)
			delete(s.connByID, id)
			conn.Close()
		}
		s.registry.Remove(id)
		if s.events.PeerLeft != nil {
			s.events.PeerLeft(left)
		}
		log.Info().Uint32("peer", id).Str("name", left.Name).Msg("peer timed out")
	}
	if len(stale) > 0 {
		s.publishPeers()
		s.broadcastRoster()
	}
}

// onCursorTick coalesces local cursor movement into at most one CURSOR
// message per tick and fades remote cursors that have gone quiet.
func (s *Session) onCursorTick() {
	if s.cursorDirty && s.cfg.ShareCursor {
		s.cursorDirty = false
		c := wire.Cursor{X: s.cursorX, Y: s.cursorY, Drawing: s.cursorDrawing}
		s.sendAll(wire.MsgCursor, c.Encode())

		if self, ok := s.registry.Get(s.localID); ok {
			self.CursorX, self.CursorY = c.X, c.Y
			self.Drawing = c.Drawing
		}
	}

	now := time.Now()
	faded := false
	s.registry.ForEach(func(p *peer.Peer) {
		if p.ID == s.localID || !p.ShowCursor {
			return
		}
		if now.Sub(p.CursorSeen) <= cursorFadeAfter {
			return
		}
		p.CursorOpacity -= cursorFadeStep
		if p.CursorOpacity <= 0 {
			p.CursorOpacity = 0
			p.ShowCursor = false
		}
		faded = true
	})
	if faded {
		s.publishPeers()
	}
}
