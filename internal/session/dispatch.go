package session

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/inkwell-paint/drawnet/internal/canvas"
	"github.com/inkwell-paint/drawnet/internal/observability"
	"github.com/inkwell-paint/drawnet/internal/peer"
	"github.com/inkwell-paint/drawnet/internal/transport"
	"github.com/inkwell-paint/drawnet/internal/wire"
)

// handleTransportEvent is the loop's single entry point for everything the
// reader goroutines produce.
func (s *Session) handleTransportEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.EventAccepted:
		s.onAccepted(ev.Conn)
	case transport.EventFrame:
		s.onFrame(ev.Conn, ev.Frame)
	case transport.EventProtocolError:
		observability.RecordProtocolError()
	case transport.EventClosed:
		s.onConnClosed(ev.Conn, ev.Err)
	}
}

func (s *Session) onAccepted(conn *transport.Conn) {
	if !s.isHost {
		// A joiner never accepts; a late event from a previous hosted
		// session is stale.
		conn.Close()
		return
	}
	// Tracked but anonymous until its HELLO arrives.
	s.conns[conn] = struct{}{}
	log.Debug().Str("remote", conn.RemoteAddr()).Msg("inbound connection")
}

func (s *Session) onConnClosed(conn *transport.Conn, err error) {
	delete(s.conns, conn)

	if !s.isHost {
		if conn != s.hostConn {
			return
		}
		if s.closing {
			return
		}
		cause := "host closed the connection"
		if err != nil {
			cause = "connection to host lost: " + err.Error()
		}
		s.close(StateError, cause)
		return
	}

	id := conn.PeerID()
	if id == 0 {
		// Never completed the handshake.
		return
	}
	delete(s.connByID, id)
	p, ok := s.registry.Get(id)
	if !ok {
		return
	}
	left := *p
	s.registry.Remove(id)
	s.publishPeers()
	s.broadcastRoster()
	if s.events.PeerLeft != nil {
		s.events.PeerLeft(left)
	}
	log.Info().Uint32("peer", id).Str("name", left.Name).Err(err).Msg("peer disconnected")
}

func (s *Session) onFrame(conn *transport.Conn, frame wire.Frame) {
	s.stats.PacketsReceived.Add(1)
	s.stats.BytesReceived.Add(int64(wire.HeaderSize + len(frame.Payload)))
	observability.RecordPacketReceived(frame.Header.Type.String(), wire.HeaderSize+len(frame.Payload))

	now := time.Now()
	if s.isHost {
		// Pre-handshake connections may only speak HELLO.
		if conn.PeerID() == 0 && frame.Header.Type != wire.MsgHello {
			log.Warn().
				Str("remote", conn.RemoteAddr()).
				Str("type", frame.Header.Type.String()).
				Msg("message before handshake, connection dropped")
			delete(s.conns, conn)
			conn.Close()
			return
		}
		if p, ok := s.registry.Get(conn.PeerID()); ok {
			p.Touch(now)
		}
	} else {
		if conn != s.hostConn {
			return
		}
		s.hostSeen = now
		if p, ok := s.registry.Get(frame.Header.SenderID); ok {
			p.Touch(now)
		}
	}

	switch frame.Header.Type {
	case wire.MsgHello:
		s.onHello(conn, frame)
	case wire.MsgAck:
		s.onAck(conn, frame)
	case wire.MsgPing:
		s.send(conn, wire.MsgPong, wire.Pong{EchoTimestampMS: frame.Header.TimestampMS}.Encode())
	case wire.MsgPong:
		s.onPong(conn, frame)
	case wire.MsgCursor:
		s.onCursor(conn, frame)
	case wire.MsgStrokeStart:
		s.onStrokeStart(conn, frame)
	case wire.MsgStrokePoint:
		s.onStrokePoint(conn, frame)
	case wire.MsgStrokeEnd:
		s.onStrokeEnd(conn, frame)
	case wire.MsgChat:
		s.onChat(conn, frame)
	case wire.MsgToolChange:
		s.onToolChange(conn, frame)
	case wire.MsgCanvasRequest:
		s.onCanvasRequest(conn, frame)
	case wire.MsgCanvasData:
		s.onCanvasData(conn, frame)
	case wire.MsgPeerList:
		s.onPeerList(conn, frame)
	case wire.MsgKick:
		s.onKick(conn, frame)
	case wire.MsgLeave:
		s.onLeave(conn, frame)
	}
}

// --- handshake ---

func (s *Session) onHello(conn *transport.Conn, frame wire.Frame) {
	if !s.isHost {
		return
	}
	if conn.PeerID() != 0 {
		// Duplicate HELLO on an established connection.
		return
	}

	hello, err := wire.DecodeHello(frame.Payload)
	if err != nil {
		s.rejectHello(conn, wire.AckWrongCode, "undecodable")
		return
	}

	if s.joinCode != "" && hello.SessionCode != s.joinCode {
		s.rejectHello(conn, wire.AckWrongCode, "wrong_code")
		return
	}
	if s.cfg.MaxPeers > 0 && s.registry.Len() >= s.cfg.MaxPeers {
		s.rejectHello(conn, wire.AckSessionFull, "session_full")
		return
	}

	id := s.registry.AssignID()
	perm := peer.ParsePermission(s.cfg.DefaultPermission)
	p := &peer.Peer{
		ID:          id,
		Name:        hello.Name,
		Addr:        conn.RemoteAddr(),
		CursorColor: hello.ColorRGBA,
		Permission:  perm,
		Connected:   true,
		LastSeen:    time.Now(),
	}
	s.registry.Add(p)
	conn.BindPeer(id)
	s.connByID[id] = conn

	ack := wire.Ack{
		Result:       wire.AckOK,
		AssignedID:   id,
		AssignedPerm: uint32(perm),
		SessionName:  s.cfg.SessionName,
		PeerCount:    uint32(s.registry.Len()),
	}
	s.send(conn, wire.MsgAck, ack.Encode())

	s.publishPeers()
	s.broadcastRoster()
	if s.events.PeerJoined != nil {
		s.events.PeerJoined(*p)
	}
	log.Info().Uint32("peer", id).Str("name", hello.Name).Str("addr", p.Addr).Msg("peer joined")
}

func (s *Session) rejectHello(conn *transport.Conn, result uint32, reason string) {
	observability.RecordHandshakeFailure(reason)
	s.send(conn, wire.MsgAck, wire.Ack{Result: result, SessionName: s.cfg.SessionName}.Encode())
	delete(s.conns, conn)
	conn.Close()
	log.Warn().Str("remote", conn.RemoteAddr()).Str("reason", reason).Msg("handshake rejected")
}

func (s *Session) onAck(conn *transport.Conn, frame wire.Frame) {
	if s.isHost || s.State() != StateConnecting {
		return
	}
	ack, err := wire.DecodeAck(frame.Payload)
	if err != nil {
		s.close(StateError, "undecodable handshake reply")
		return
	}

	if ack.Result != wire.AckOK {
		reason := ackReason(ack.Result)
		observability.RecordHandshakeFailure(reason)
		s.close(StateError, reason)
		return
	}

	// Re-key the provisional self-record under the assigned id.
	self, _ := s.registry.Get(s.localID)
	s.registry.Remove(s.localID)
	s.localID = ack.AssignedID
	if self == nil {
		self = &peer.Peer{Name: s.cfg.DisplayName, Connected: true, LastSeen: time.Now()}
	}
	self.ID = ack.AssignedID
	self.Permission = peer.Permission(ack.AssignedPerm)
	s.registry.Add(self)
	conn.BindPeer(frame.Header.SenderID)

	s.mu.Lock()
	s.remoteName = ack.SessionName
	s.mu.Unlock()

	s.publishPeers()
	s.setState(StateConnected, "")
	log.Info().
		Uint32("assigned_id", ack.AssignedID).
		Str("session", ack.SessionName).
		Uint32("peers", ack.PeerCount).
		Msg("joined session")

	// Pull the current canvas right away.
	s.send(conn, wire.MsgCanvasRequest, nil)
	s.setState(StateSyncing, "")
}

func ackReason(result uint32) string {
	switch result {
	case wire.AckWrongCode:
		return "wrong session code"
	case wire.AckSessionFull:
		return "session full"
	case wire.AckKicked:
		return "banned from session"
	default:
		return "join rejected"
	}
}

// --- latency ---

func (s *Session) onPong(conn *transport.Conn, frame wire.Frame) {
	pong, err := wire.DecodePong(frame.Payload)
	if err != nil {
		return
	}
	rtt := time.Duration(time.Now().UnixMilli()-int64(pong.EchoTimestampMS)) * time.Millisecond
	if rtt < 0 {
		return
	}
	id := conn.PeerID()
	if !s.isHost {
		id = frame.Header.SenderID
	}
	if p, ok := s.registry.Get(id); ok {
		p.Latency = rtt
	}
}

// --- painting traffic ---

// senderPeer resolves the registry record the frame speaks for. On the host
// the connection binding is authoritative; a joiner trusts the relayed
// header's sender id.
func (s *Session) senderPeer(conn *transport.Conn, frame wire.Frame) (*peer.Peer, uint32, bool) {
	id := conn.PeerID()
	if !s.isHost {
		id = frame.Header.SenderID
	}
	p, ok := s.registry.Get(id)
	return p, id, ok
}

// relay fans a peer's frame out to every other connection, preserving the
// original header so downstream peers see the true sender.
func (s *Session) relay(frame wire.Frame, except *transport.Conn) {
	if !s.isHost {
		return
	}
	for conn := range s.conns {
		if conn == except || conn.PeerID() == 0 {
			continue
		}
		n, err := conn.Send(frame)
		if err != nil {
			log.Warn().Err(err).Str("remote", conn.RemoteAddr()).Msg("relay failed")
			continue
		}
		s.stats.PacketsSent.Add(1)
		s.stats.BytesSent.Add(int64(n))
		observability.RecordPacketSent(frame.Header.Type.String(), n)
	}
}

// canDraw gates painting traffic on the sender's permission. Only the host
// enforces this; joiners trust what the host relays.
func (s *Session) canDraw(p *peer.Peer) bool {
	if !s.isHost {
		return true
	}
	return p.Permission >= peer.PermDraw
}

func (s *Session) onCursor(conn *transport.Conn, frame wire.Frame) {
	c, err := wire.DecodeCursor(frame.Payload)
	if err != nil {
		return
	}
	p, id, ok := s.senderPeer(conn, frame)
	if !ok || id == s.localID {
		return
	}
	p.CursorX, p.CursorY = c.X, c.Y
	p.Drawing = c.Drawing
	p.ShowCursor = true
	p.CursorOpacity = 1
	p.CursorSeen = time.Now()

	if s.events.CursorMoved != nil {
		s.events.CursorMoved(id, c)
	}
	s.relay(frame, conn)
}

func (s *Session) onStrokeStart(conn *transport.Conn, frame wire.Frame) {
	st, err := wire.DecodeStrokeStart(frame.Payload)
	if err != nil {
		return
	}
	p, id, ok := s.senderPeer(conn, frame)
	if !ok || id == s.localID || !s.canDraw(p) {
		return
	}
	p.Drawing = true
	if s.events.StrokeStarted != nil {
		s.events.StrokeStarted(id, st)
	}
	s.relay(frame, conn)
}

func (s *Session) onStrokePoint(conn *transport.Conn, frame wire.Frame) {
	pt, err := wire.DecodeStrokePoint(frame.Payload)
	if err != nil {
		return
	}
	p, id, ok := s.senderPeer(conn, frame)
	if !ok || id == s.localID || !s.canDraw(p) {
		return
	}
	if s.events.StrokePoint != nil {
		s.events.StrokePoint(id, pt)
	}
	s.relay(frame, conn)
}

func (s *Session) onStrokeEnd(conn *transport.Conn, frame wire.Frame) {
	end, err := wire.DecodeStrokeEnd(frame.Payload)
	if err != nil {
		return
	}
	p, id, ok := s.senderPeer(conn, frame)
	if !ok || id == s.localID || !s.canDraw(p) {
		return
	}
	p.Drawing = false
	if s.events.StrokeEnded != nil {
		s.events.StrokeEnded(id, end)
	}
	s.relay(frame, conn)
}

func (s *Session) onChat(conn *transport.Conn, frame wire.Frame) {
	p, id, ok := s.senderPeer(conn, frame)
	if !ok || id == s.localID {
		return
	}
	if s.events.Chat != nil {
		s.events.Chat(id, p.Name, string(frame.Payload))
	}
	s.relay(frame, conn)
}

func (s *Session) onToolChange(conn *transport.Conn, frame wire.Frame) {
	tc, err := wire.DecodeToolChange(frame.Payload)
	if err != nil {
		return
	}
	p, id, ok := s.senderPeer(conn, frame)
	if !ok || id == s.localID {
		return
	}
	p.Tool = tc.Tool
	p.ToolColor = tc.ColorRGBA
	p.BrushSize = tc.BrushSize
	if s.events.ToolChanged != nil {
		s.events.ToolChanged(id, tc)
	}
	s.relay(frame, conn)
}

// --- canvas transfer ---

func (s *Session) onCanvasRequest(conn *transport.Conn, frame wire.Frame) {
	if s.snapshot == nil {
		// Nothing to serve; announce an empty canvas so the requester
		// leaves the syncing state.
		s.send(conn, wire.MsgCanvasData, wire.CanvasChunk{}.Encode())
		return
	}
	blob, err := s.snapshot()
	if err != nil {
		log.Error().Err(err).Msg("canvas snapshot failed")
		observability.RecordCanvasTransfer("outbound", "failed")
		s.send(conn, wire.MsgCanvasData, wire.CanvasChunk{}.Encode())
		return
	}

	chunks := canvas.Split(blob, s.cfg.ChunkSize)
	if len(chunks) == 0 {
		s.send(conn, wire.MsgCanvasData, wire.CanvasChunk{}.Encode())
		observability.RecordCanvasTransfer("outbound", "complete")
		return
	}
	for _, c := range chunks {
		s.send(conn, wire.MsgCanvasData, c.Encode())
	}
	observability.RecordCanvasTransfer("outbound", "complete")
	log.Info().
		Int("bytes", len(blob)).
		Int("chunks", len(chunks)).
		Str("remote", conn.RemoteAddr()).
		Msg("canvas sent")
}

func (s *Session) onCanvasData(conn *transport.Conn, frame wire.Frame) {
	chunk, err := wire.DecodeCanvasChunk(frame.Payload)
	if err != nil {
		return
	}

	if s.assembler == nil {
		a, err := canvas.NewAssembler(chunk, s.cfg.ChunkSize)
		if err != nil {
			log.Warn().Err(err).Msg("canvas transfer rejected")
			observability.RecordCanvasTransfer("inbound", "rejected")
			s.finishSync()
			return
		}
		s.assembler = a
	} else if err := s.assembler.Apply(chunk); err != nil {
		log.Warn().Err(err).Msg("canvas transfer abandoned")
		observability.RecordCanvasTransfer("inbound", "abandoned")
		s.assembler.Abandon()
		s.assembler = nil
		s.finishSync()
		return
	}

	if !s.assembler.Done() {
		return
	}
	data := s.assembler.Bytes()
	s.assembler = nil
	observability.RecordCanvasTransfer("inbound", "complete")
	if s.events.CanvasReceived != nil {
		s.events.CanvasReceived(data)
	}
	s.finishSync()
	log.Info().Int("bytes", len(data)).Msg("canvas received")
}

// finishSync returns a joiner from syncing to the steady connected state.
func (s *Session) finishSync() {
	if s.State() == StateSyncing {
		s.setState(StateConnected, "")
	}
}

// --- membership ---

func (s *Session) onPeerList(conn *transport.Conn, frame wire.Frame) {
	if s.isHost {
		return
	}
	roster, err := wire.DecodePeerList(frame.Payload)
	if err != nil {
		return
	}

	changed := s.registry.MergeRoster(roster, s.localID)

	// Drop records the host no longer lists.
	listed := make(map[uint32]struct{}, len(roster))
	for _, info := range roster {
		listed[info.ID] = struct{}{}
	}
	var gone []peer.Peer
	s.registry.ForEach(func(p *peer.Peer) {
		if p.ID == s.localID {
			return
		}
		if _, ok := listed[p.ID]; !ok {
			gone = append(gone, *p)
		}
	})
	for _, p := range gone {
		s.registry.Remove(p.ID)
		changed = true
		if s.events.PeerLeft != nil {
			s.events.PeerLeft(p)
		}
	}

	if changed {
		s.publishPeers()
		if s.events.RosterChanged != nil {
			s.events.RosterChanged(s.registry.Snapshot())
		}
	}
}

// broadcastRoster pushes the authoritative peer list to every joined peer.
func (s *Session) broadcastRoster() {
	if !s.isHost {
		return
	}
	payload := wire.EncodePeerList(s.registry.Roster())
	for _, conn := range s.connByID {
		s.send(conn, wire.MsgPeerList, payload)
	}
	if s.events.RosterChanged != nil {
		s.events.RosterChanged(s.registry.Snapshot())
	}
}

func (s *Session) onKick(conn *transport.Conn, frame wire.Frame) {
	kick, err := wire.DecodeKick(frame.Payload)
	if err != nil {
		return
	}

	if s.isHost {
		// The host executes kicks requested by admin-permission peers.
		sender, _, ok := s.senderPeer(conn, frame)
		if !ok || sender.Permission < peer.PermAdmin {
			return
		}
		s.kickPeer(kick.TargetID, kick.Reason)
		return
	}

	if kick.TargetID != s.localID {
		return
	}
	if s.events.Kicked != nil {
		s.events.Kicked(kick.Reason)
	}
	log.Warn().Str("reason", kick.Reason).Msg("kicked from session")
	s.close(StateDisconnected, "")
}

// kickPeer executes a kick on the host: notify the target, drop its
// connection, and broadcast the shrunk roster.
func (s *Session) kickPeer(targetID uint32, reason string) {
	conn, ok := s.connByID[targetID]
	if !ok {
		log.Warn().Uint32("peer", targetID).Msg("kick target not connected")
		return
	}
	s.send(conn, wire.MsgKick, wire.Kick{TargetID: targetID, Reason: reason}.Encode())
	delete(s.conns, conn)
	delete(s.connByID, targetID)
	conn.Close()

	if p, found := s.registry.Get(targetID); found {
		left := *p
		s.registry.Remove(targetID)
		s.publishPeers()
		s.broadcastRoster()
		if s.events.PeerLeft != nil {
			s.events.PeerLeft(left)
		}
	}
	log.Info().Uint32("peer", targetID).Str("reason", reason).Msg("peer kicked")
}

func (s *Session) onLeave(conn *transport.Conn, frame wire.Frame) {
	if !s.isHost {
		if conn == s.hostConn {
			s.close(StateDisconnected, "")
			log.Info().Msg("host left the session")
		}
		return
	}

	id := conn.PeerID()
	delete(s.conns, conn)
	delete(s.connByID, id)
	conn.Close()
	p, ok := s.registry.Get(id)
	if !ok {
		return
	}
	left := *p
	s.registry.Remove(id)
	s.publishPeers()
	s.broadcastRoster()
	if s.events.PeerLeft != nil {
		s.events.PeerLeft(left)
	}
	log.Info().Uint32("peer", id).Str("name", left.Name).Msg("peer left")
}
