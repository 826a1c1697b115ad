// Package session owns the DrawNet session lifecycle: the state machine,
// peer registry, message dispatch, keepalive scheduling, and the canvas
// transfer engine.
//
// Concurrency model: one loop goroutine owns every piece of mutable session
// state. Transport reader goroutines produce events into a bounded channel;
// public API methods post closures into a command channel consumed by the
// same loop. The only cross-goroutine reads go through a published snapshot
// guarded by a small mutex.
package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/inkwell-paint/drawnet/internal/canvas"
	"github.com/inkwell-paint/drawnet/internal/config"
	"github.com/inkwell-paint/drawnet/internal/discovery"
	"github.com/inkwell-paint/drawnet/internal/governor"
	"github.com/inkwell-paint/drawnet/internal/observability"
	"github.com/inkwell-paint/drawnet/internal/peer"
	"github.com/inkwell-paint/drawnet/internal/transport"
	"github.com/inkwell-paint/drawnet/internal/wire"
)

var (
	ErrAlreadyInSession = errors.New("session: already in a session")
	ErrNotInSession     = errors.New("session: not in a session")
	ErrCapabilityDenied = errors.New("session: capability denied")
	ErrNotHost          = errors.New("session: operation requires the host role")
	ErrPermissionDenied = errors.New("session: permission denied")
	ErrUnknownPeer      = errors.New("session: unknown peer")
)

const (
	dialTimeout   = 5 * time.Second
	eventChanSize = 256
	cmdChanSize   = 64

	// Remote cursors start fading after this much silence and lose this
	// much opacity per cursor tick once fading.
	cursorFadeAfter = 2 * time.Second
	cursorFadeStep  = 0.05
)

// Session is all DrawNet state for one participant. Create one per session
// via New; it may be reused for a new Host/Join after Leave returns.
type Session struct {
	cfg      config.Session
	gate     *governor.Gate
	events   Events
	snapshot SnapshotFunc

	// Keepalive timing, overridable in tests.
	pingInterval time.Duration
	peerTimeout  time.Duration

	// Loop-owned state. Never touched off the loop goroutine once the
	// loop has started.
	registry   *peer.Registry
	conns      map[*transport.Conn]struct{}
	connByID   map[uint32]*transport.Conn
	hostConn   *transport.Conn
	hostSeen   time.Time
	assembler  *canvas.Assembler
	seq        uint32
	localID    uint32
	isHost     bool
	remoteName string // session name reported by the host's ACK

	cursorX, cursorY float64
	cursorDrawing    bool
	cursorDirty      bool

	pendingStrokes []wire.Frame

	closing    bool
	closeState State
	closeCause string

	listener  net.Listener
	port      int
	announcer *discovery.Announcer
	sessionID uuid.UUID
	joinCode  string

	stats Stats

	evCh   chan transport.Event
	cmdCh  chan func()
	stopCh chan struct{}
	doneCh chan struct{}

	// Published snapshot readable from any goroutine.
	mu        sync.RWMutex
	state     State
	lastError string
	peersSnap []peer.Peer
	running   bool
}

// New builds an idle session. authority may be nil (allow all); events
// callbacks are optional; snapshot may be nil when this participant never
// serves canvas transfers.
func New(cfg config.Session, authority governor.Authority, events Events, snapshot SnapshotFunc) *Session {
	return &Session{
		cfg:          cfg,
		gate:         governor.NewGate(authority),
		events:       events,
		snapshot:     snapshot,
		pingInterval: config.PingInterval,
		peerTimeout:  config.PeerTimeout,
		registry:     peer.NewRegistry(),
		conns:        make(map[*transport.Conn]struct{}),
		connByID:     make(map[uint32]*transport.Conn),
		state:        StateDisconnected,
	}
}

// Host opens the listening socket and starts an authoritative session. The
// host's own peer record is created immediately; no handshake is needed for
// itself.
func (s *Session) Host(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyInSession
	}
	s.mu.Unlock()

	if d := s.gate.Check(ctx, governor.OpHost, "network"); !d.Approved {
		s.fail(d.Reason)
		return fmt.Errorf("%w: %s", ErrCapabilityDenied, d.Reason)
	}

	ln, port, err := transport.Listen("", s.cfg.Port, config.PortRange)
	if err != nil {
		s.fail(err.Error())
		return err
	}

	s.listener = ln
	s.port = port
	s.isHost = true
	s.sessionID = uuid.New()
	s.joinCode = s.cfg.SessionCode
	if s.joinCode == "" {
		s.joinCode = deriveJoinCode(s.sessionID)
	}

	s.registry = peer.NewRegistry()
	s.localID = s.registry.AssignID()
	self := &peer.Peer{
		ID:         s.localID,
		Name:       s.cfg.DisplayName,
		Permission: peer.PermAdmin,
		Connected:  true,
		LastSeen:   time.Now(),
	}
	s.registry.Add(self)

	if s.cfg.Announce {
		announcer, err := discovery.Announce(s.cfg.SessionName, s.joinCode, port, 1)
		if err != nil {
			log.Warn().Err(err).Msg("LAN announce failed, session stays joinable by address")
		} else {
			s.announcer = announcer
		}
	}

	s.start(StateConnected)
	go transport.Serve(ln, transport.DefaultOptions(), s.evCh)

	log.Info().
		Str("session", s.cfg.SessionName).
		Str("code", s.joinCode).
		Int("port", port).
		Msg("hosting session")
	return nil
}

// Join connects to a host and sends the HELLO handshake. The handshake
// result arrives asynchronously: StatusChanged reports Connected on ACK
// success and Error on rejection.
func (s *Session) Join(ctx context.Context, addr string) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyInSession
	}
	s.mu.Unlock()

	if d := s.gate.Check(ctx, governor.OpJoin, "network"); !d.Approved {
		s.fail(d.Reason)
		return fmt.Errorf("%w: %s", ErrCapabilityDenied, d.Reason)
	}

	nc, err := transport.Dial(addr, dialTimeout)
	if err != nil {
		s.fail(err.Error())
		return err
	}

	conn := transport.NewConn(nc, transport.DefaultOptions())
	s.isHost = false
	s.localID = 0 // assigned by the host's ACK
	s.hostConn = conn
	s.hostSeen = time.Now()
	s.conns = map[*transport.Conn]struct{}{conn: {}}
	s.connByID = make(map[uint32]*transport.Conn)
	s.registry = peer.NewRegistry()
	s.registry.Add(&peer.Peer{
		ID:        0,
		Name:      s.cfg.DisplayName,
		Connected: true,
		LastSeen:  time.Now(),
	})

	s.start(StateConnecting)
	conn.Start(s.evCh)

	hello := wire.Hello{
		SessionCode: s.cfg.SessionCode,
		Name:        s.cfg.DisplayName,
	}
	s.enqueue(func() { s.send(conn, wire.MsgHello, hello.Encode()) })

	log.Info().Str("addr", addr).Msg("joining session")
	return nil
}

// Discover scans the local network for announced sessions, blocking until
// the discovery window elapses or ctx is cancelled.
func (s *Session) Discover(ctx context.Context) ([]discovery.Found, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrAlreadyInSession
	}
	s.mu.Unlock()

	if d := s.gate.Check(ctx, governor.OpScan, "network"); !d.Approved {
		s.fail(d.Reason)
		return nil, fmt.Errorf("%w: %s", ErrCapabilityDenied, d.Reason)
	}

	s.setState(StateDiscovering, "")
	found, err := discovery.Browse(ctx, config.DiscoveryWindow)
	s.setState(StateDisconnected, "")
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Leave tears the session down from any state: timers cancelled, sockets
// closed, peer list and approval cache cleared. It blocks until the loop
// has exited.
func (s *Session) Leave() {
	s.mu.Lock()
	if !s.running {
		s.gate.Reset()
		s.state = StateDisconnected
		s.lastError = ""
		s.mu.Unlock()
		return
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	select {
	case <-doneCh:
	default:
		select {
		case stopCh <- struct{}{}:
		case <-doneCh:
		}
	}
	<-doneCh
}

// --- snapshot accessors, safe from any goroutine ---

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastError returns the human-readable reason for the Error state.
func (s *Session) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// Peers returns the most recently published roster snapshot.
func (s *Session) Peers() []peer.Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]peer.Peer, len(s.peersSnap))
	copy(out, s.peersSnap)
	return out
}

func (s *Session) Stats() StatsSnapshot { return s.stats.Snapshot() }

func (s *Session) IsHost() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running && s.isHost
}

// JoinCode returns the shareable code of a hosted session.
func (s *Session) JoinCode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.joinCode
}

// Port returns the bound listen port of a hosted session.
func (s *Session) Port() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.port
}

// Status renders a display string for the UI's status label.
func (s *Session) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	peers := len(s.peersSnap)
	switch s.state {
	case StateDisconnected:
		return "not in a session"
	case StateDiscovering:
		return "scanning for sessions"
	case StateConnecting:
		return "connecting"
	case StateConnected, StateSyncing:
		verb := "connected to"
		name := s.remoteName
		if s.isHost {
			verb = "hosting"
			name = s.cfg.SessionName
		}
		status := fmt.Sprintf("%s %q (%d peers)", verb, name, peers)
		if s.state == StateSyncing {
			status += ", syncing canvas"
		}
		return status
	case StateError:
		return "error: " + s.lastError
	default:
		return s.state.String()
	}
}

// --- lifecycle internals ---

func (s *Session) start(initial State) {
	s.evCh = make(chan transport.Event, eventChanSize)
	s.cmdCh = make(chan func(), cmdChanSize)
	s.stopCh = make(chan struct{}, 1)
	s.doneCh = make(chan struct{})
	s.assembler = nil
	s.pendingStrokes = nil
	s.closing = false
	s.seq = 0
	s.stats.reset()
	s.stats.markStart(time.Now())

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.setState(initial, "")
	s.publishPeers()

	go s.run()
}

func (s *Session) run() {
	ping := time.NewTicker(s.pingInterval)
	defer ping.Stop()
	cursor := time.NewTicker(config.CursorInterval)
	defer cursor.Stop()

	var flushC <-chan time.Time
	if s.cfg.SyncMode == config.SyncInterval {
		flush := time.NewTicker(s.cfg.SyncInterval)
		defer flush.Stop()
		flushC = flush.C
	}

	for {
		select {
		case <-s.stopCh:
			s.teardown(StateDisconnected, "")
			return
		case ev := <-s.evCh:
			s.handleTransportEvent(ev)
		case fn := <-s.cmdCh:
			fn()
		case <-ping.C:
			s.onPingTick()
		case <-cursor.C:
			s.onCursorTick()
		case <-flushC:
			s.flushPendingStrokes()
		}
		if s.closing {
			s.teardown(s.closeState, s.closeCause)
			return
		}
	}
}

// close requests loop shutdown after the current handler returns.
func (s *Session) close(final State, cause string) {
	s.closing = true
	s.closeState = final
	s.closeCause = cause
}

func (s *Session) teardown(final State, cause string) {
	// Best-effort goodbye so remote peers prune us promptly.
	if final == StateDisconnected {
		for conn := range s.conns {
			s.send(conn, wire.MsgLeave, nil)
		}
	}
	for conn := range s.conns {
		conn.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	if s.announcer != nil {
		s.announcer.Shutdown()
		s.announcer = nil
	}
	if s.assembler != nil {
		s.assembler.Abandon()
		s.assembler = nil
		observability.RecordCanvasTransfer("inbound", "abandoned")
	}
	s.conns = make(map[*transport.Conn]struct{})
	s.connByID = make(map[uint32]*transport.Conn)
	s.hostConn = nil
	s.registry.Clear()
	s.gate.Reset()
	s.pendingStrokes = nil

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.publishPeers()
	s.setState(final, cause)
	close(s.doneCh)

	log.Info().Str("state", final.String()).Str("cause", cause).Msg("session closed")
}

// fail records a pre-loop failure (capability denial, bind/dial error).
func (s *Session) fail(reason string) {
	s.setState(StateError, reason)
}

func (s *Session) setState(state State, cause string) {
	s.mu.Lock()
	s.state = state
	if state == StateError {
		s.lastError = cause
	} else if state == StateDisconnected {
		s.lastError = ""
	}
	s.mu.Unlock()

	s.fireStatus(state)
}

func (s *Session) fireStatus(state State) {
	if s.events.StatusChanged != nil {
		s.events.StatusChanged(state, s.Status())
	}
}

// publishPeers refreshes the cross-goroutine roster snapshot.
func (s *Session) publishPeers() {
	snap := s.registry.Snapshot()
	s.mu.Lock()
	s.peersSnap = snap
	s.mu.Unlock()
	observability.SetPeersConnected(len(snap))
}

// enqueue posts fn to the loop, dropping it if the session is gone.
func (s *Session) enqueue(fn func()) {
	select {
	case s.cmdCh <- fn:
	case <-s.doneCh:
	}
}

// do posts fn to the loop for API methods that must report lifecycle state.
func (s *Session) do(fn func()) error {
	s.mu.RLock()
	running := s.running
	cmdCh, doneCh := s.cmdCh, s.doneCh
	s.mu.RUnlock()
	if !running {
		return ErrNotInSession
	}
	select {
	case cmdCh <- fn:
		return nil
	case <-doneCh:
		return ErrNotInSession
	}
}

// --- loop-side send helpers ---

func (s *Session) send(conn *transport.Conn, t wire.MsgType, payload []byte) {
	s.seq++
	frame := wire.NewFrame(t, s.localID, s.seq, payload)
	n, err := conn.Send(frame)
	if err != nil {
		log.Warn().Err(err).Str("type", t.String()).Str("remote", conn.RemoteAddr()).Msg("send failed")
		return
	}
	s.stats.PacketsSent.Add(1)
	s.stats.BytesSent.Add(int64(n))
	observability.RecordPacketSent(t.String(), n)
}

// broadcast sends to every connected peer, optionally skipping one
// connection (the original sender, when relaying).
func (s *Session) broadcast(t wire.MsgType, payload []byte, except *transport.Conn) {
	for conn := range s.conns {
		if conn == except {
			continue
		}
		s.send(conn, t, payload)
	}
}

func deriveJoinCode(id uuid.UUID) string {
	return strings.ToUpper(id.String()[:6])
}
