package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/inkwell-paint/drawnet/internal/config"
	"github.com/inkwell-paint/drawnet/internal/governor"
	"github.com/inkwell-paint/drawnet/internal/peer"
	"github.com/inkwell-paint/drawnet/internal/testutil/testlog"
	"github.com/inkwell-paint/drawnet/internal/transport"
	"github.com/inkwell-paint/drawnet/internal/wire"
)

func hostConfig() config.Session {
	cfg := config.DefaultSession()
	cfg.SessionName = "test canvas"
	cfg.SessionCode = "SECRET"
	cfg.DisplayName = "alice"
	cfg.Port = 0 // ephemeral, keeps parallel test runs off each other's ports
	cfg.Announce = false
	return cfg
}

func joinConfig(code string) config.Session {
	cfg := config.DefaultSession()
	cfg.SessionName = "test canvas"
	cfg.SessionCode = code
	cfg.DisplayName = "bob"
	cfg.Announce = false
	return cfg
}

// recorder collects session callbacks on channels the test can wait on.
type recorder struct {
	states chan State
	joined chan peer.Peer
	left   chan peer.Peer
	chats  chan string
	canvas chan []byte
	kicked chan string
}

func newRecorder() *recorder {
	return &recorder{
		states: make(chan State, 32),
		joined: make(chan peer.Peer, 8),
		left:   make(chan peer.Peer, 8),
		chats:  make(chan string, 8),
		canvas: make(chan []byte, 2),
		kicked: make(chan string, 1),
	}
}

func (r *recorder) events() Events {
	return Events{
		StatusChanged: func(state State, _ string) { r.states <- state },
		PeerJoined:    func(p peer.Peer) { r.joined <- p },
		PeerLeft:      func(p peer.Peer) { r.left <- p },
		Chat: func(_ uint32, name, msg string) {
			r.chats <- name + ": " + msg
		},
		CanvasReceived: func(data []byte) { r.canvas <- data },
		Kicked:         func(reason string) { r.kicked <- reason },
	}
}

func waitState(t *testing.T, states <-chan State, want State) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-states:
			if got == want {
				return
			}
			if got == StateError {
				t.Fatalf("reached error state while waiting for %v", want)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v", want)
		}
	}
}

func hostAddr(s *Session) string {
	return fmt.Sprintf("127.0.0.1:%d", s.Port())
}

func TestHostDeniedByGovernor(t *testing.T) {
	testlog.Start(t)

	s := New(hostConfig(), governor.DenyAll("network access declined"), Events{}, nil)
	err := s.Host(context.Background())
	if !errors.Is(err, ErrCapabilityDenied) {
		t.Fatalf("expected ErrCapabilityDenied, got %v", err)
	}
	if s.State() != StateError {
		t.Fatalf("expected error state, got %v", s.State())
	}
	if s.LastError() != "network access declined" {
		t.Fatalf("denial reason lost: %q", s.LastError())
	}
	if s.Port() != 0 {
		t.Fatalf("no socket may be opened after a denial")
	}
}

func TestJoinDeniedByGovernor(t *testing.T) {
	testlog.Start(t)

	s := New(joinConfig("SECRET"), governor.DenyAll("no"), Events{}, nil)
	if err := s.Join(context.Background(), "127.0.0.1:1"); !errors.Is(err, ErrCapabilityDenied) {
		t.Fatalf("expected ErrCapabilityDenied, got %v", err)
	}
}

func TestGovernorCacheResetOnLeave(t *testing.T) {
	testlog.Start(t)

	evaluations := 0
	authority := governor.AuthorityFunc(func(context.Context, string, string) governor.Decision {
		evaluations++
		return governor.Decision{Approved: true}
	})

	s := New(hostConfig(), authority, Events{}, nil)
	if err := s.Host(context.Background()); err != nil {
		t.Fatalf("host: %v", err)
	}
	s.Leave()

	// Leaving resets the cache, so the next host prompts again.
	if err := s.Host(context.Background()); err != nil {
		t.Fatalf("re-host: %v", err)
	}
	defer s.Leave()
	if evaluations != 2 {
		t.Fatalf("expected one evaluation per session, got %d", evaluations)
	}
}

func TestHandshakeAndChat(t *testing.T) {
	testlog.Start(t)

	blob := []byte("serialized canvas bytes")
	hostRec := newRecorder()
	host := New(hostConfig(), nil, hostRec.events(), func() ([]byte, error) {
		return blob, nil
	})
	if err := host.Host(context.Background()); err != nil {
		t.Fatalf("host: %v", err)
	}
	defer host.Leave()

	joinRec := newRecorder()
	joiner := New(joinConfig("SECRET"), nil, joinRec.events(), nil)
	if err := joiner.Join(context.Background(), hostAddr(host)); err != nil {
		t.Fatalf("join: %v", err)
	}
	defer joiner.Leave()

	waitState(t, joinRec.states, StateSyncing)

	select {
	case data := <-joinRec.canvas:
		if string(data) != string(blob) {
			t.Fatalf("canvas corrupted in transfer: %q", data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for canvas transfer")
	}
	waitState(t, joinRec.states, StateConnected)

	select {
	case p := <-hostRec.joined:
		if p.Name != "bob" {
			t.Fatalf("unexpected joined peer %+v", p)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for PeerJoined on host")
	}

	if err := joiner.SendChat("hi everyone"); err != nil {
		t.Fatalf("chat: %v", err)
	}
	select {
	case line := <-hostRec.chats:
		if line != "bob: hi everyone" {
			t.Fatalf("unexpected chat %q", line)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for chat on host")
	}

	if got := len(host.Peers()); got != 2 {
		t.Fatalf("host roster should have 2 peers, got %d", got)
	}
	if !strings.Contains(joiner.Status(), "test canvas") {
		t.Fatalf("joiner status missing session name: %q", joiner.Status())
	}
}

func TestJoinWrongCode(t *testing.T) {
	testlog.Start(t)

	host := New(hostConfig(), nil, Events{}, nil)
	if err := host.Host(context.Background()); err != nil {
		t.Fatalf("host: %v", err)
	}
	defer host.Leave()

	joinRec := newRecorder()
	joiner := New(joinConfig("WRONG"), nil, joinRec.events(), nil)
	if err := joiner.Join(context.Background(), hostAddr(host)); err != nil {
		t.Fatalf("join: %v", err)
	}
	defer joiner.Leave()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case state := <-joinRec.states:
			if state != StateError {
				continue
			}
			if joiner.LastError() != "wrong session code" {
				t.Fatalf("unexpected rejection reason %q", joiner.LastError())
			}
			if got := len(host.Peers()); got != 1 {
				t.Fatalf("rejected peer must not enter the roster, got %d", got)
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for rejection")
		}
	}
}

func TestSessionFull(t *testing.T) {
	testlog.Start(t)

	cfg := hostConfig()
	cfg.MaxPeers = 1 // host only
	host := New(cfg, nil, Events{}, nil)
	if err := host.Host(context.Background()); err != nil {
		t.Fatalf("host: %v", err)
	}
	defer host.Leave()

	joinRec := newRecorder()
	joiner := New(joinConfig("SECRET"), nil, joinRec.events(), nil)
	if err := joiner.Join(context.Background(), hostAddr(host)); err != nil {
		t.Fatalf("join: %v", err)
	}
	defer joiner.Leave()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case state := <-joinRec.states:
			if state != StateError {
				continue
			}
			if joiner.LastError() != "session full" {
				t.Fatalf("unexpected rejection reason %q", joiner.LastError())
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for rejection")
		}
	}
}

func TestKick(t *testing.T) {
	testlog.Start(t)

	hostRec := newRecorder()
	host := New(hostConfig(), nil, hostRec.events(), nil)
	if err := host.Host(context.Background()); err != nil {
		t.Fatalf("host: %v", err)
	}
	defer host.Leave()

	joinRec := newRecorder()
	joiner := New(joinConfig("SECRET"), nil, joinRec.events(), nil)
	if err := joiner.Join(context.Background(), hostAddr(host)); err != nil {
		t.Fatalf("join: %v", err)
	}
	defer joiner.Leave()

	var target uint32
	select {
	case p := <-hostRec.joined:
		target = p.ID
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for joiner")
	}

	if err := joiner.Kick(target, "nope"); !errors.Is(err, ErrNotHost) {
		t.Fatalf("joiner kick should fail with ErrNotHost, got %v", err)
	}
	if err := host.Kick(target, "misbehaving"); err != nil {
		t.Fatalf("kick: %v", err)
	}

	select {
	case reason := <-joinRec.kicked:
		if reason != "misbehaving" {
			t.Fatalf("kick reason lost: %q", reason)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for kick notification")
	}

	deadline := time.After(5 * time.Second)
	for len(host.Peers()) != 1 {
		select {
		case <-deadline:
			t.Fatalf("kicked peer still in roster: %d", len(host.Peers()))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSilentPeerIsPruned(t *testing.T) {
	testlog.Start(t)

	hostRec := newRecorder()
	host := New(hostConfig(), nil, hostRec.events(), nil)
	host.pingInterval = 20 * time.Millisecond
	host.peerTimeout = 100 * time.Millisecond
	if err := host.Host(context.Background()); err != nil {
		t.Fatalf("host: %v", err)
	}
	defer host.Leave()

	// A raw wire client that completes the handshake and then never
	// answers another packet.
	nc, err := transport.Dial(hostAddr(host), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer nc.Close()

	hello := wire.Hello{SessionCode: "SECRET", Name: "ghostly"}
	raw, err := wire.EncodeFrame(wire.NewFrame(wire.MsgHello, 0, 1, hello.Encode()), wire.DefaultLimits())
	if err != nil {
		t.Fatalf("encode hello: %v", err)
	}
	if _, err := nc.Write(raw); err != nil {
		t.Fatalf("write hello: %v", err)
	}

	select {
	case p := <-hostRec.joined:
		if p.Name != "ghostly" {
			t.Fatalf("unexpected peer %+v", p)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for handshake")
	}

	select {
	case p := <-hostRec.left:
		if p.Name != "ghostly" {
			t.Fatalf("unexpected pruned peer %+v", p)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("silent peer was never pruned")
	}
	if got := len(host.Peers()); got != 1 {
		t.Fatalf("expected only the host record after pruning, got %d", got)
	}
}

func TestHostLeaveDisconnectsJoiner(t *testing.T) {
	testlog.Start(t)

	host := New(hostConfig(), nil, Events{}, nil)
	if err := host.Host(context.Background()); err != nil {
		t.Fatalf("host: %v", err)
	}

	joinRec := newRecorder()
	joiner := New(joinConfig("SECRET"), nil, joinRec.events(), nil)
	if err := joiner.Join(context.Background(), hostAddr(host)); err != nil {
		t.Fatalf("join: %v", err)
	}
	defer joiner.Leave()

	waitState(t, joinRec.states, StateConnected)
	host.Leave()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case state := <-joinRec.states:
			if state == StateDisconnected || state == StateError {
				return
			}
		case <-deadline:
			t.Fatal("joiner never noticed the host leaving")
		}
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	testlog.Start(t)

	s := New(hostConfig(), nil, Events{}, nil)
	if err := s.Host(context.Background()); err != nil {
		t.Fatalf("host: %v", err)
	}
	s.Leave()
	s.Leave()
	if s.State() != StateDisconnected {
		t.Fatalf("expected disconnected after leave, got %v", s.State())
	}
	if len(s.Peers()) != 0 {
		t.Fatalf("peer list must be empty after leave")
	}
	if err := s.SendChat("hello?"); !errors.Is(err, ErrNotInSession) {
		t.Fatalf("ops after leave should fail with ErrNotInSession, got %v", err)
	}
}

func TestStateStrings(t *testing.T) {
	cases := map[State]string{
		StateDisconnected: "disconnected",
		StateDiscovering:  "discovering",
		StateConnecting:   "connecting",
		StateConnected:    "connected",
		StateSyncing:      "syncing",
		StateError:        "error",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
	if StateDisconnected.Active() || !StateConnected.Active() {
		t.Error("Active() misclassifies states")
	}
}
