package transport

import (
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/inkwell-paint/drawnet/internal/testutil/testlog"
	"github.com/inkwell-paint/drawnet/internal/wire"
)

func waitEvent(t *testing.T, events <-chan Event, kind EventKind) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %d", kind)
		}
	}
}

func TestListenEphemeral(t *testing.T) {
	ln, port, err := Listen("127.0.0.1", 0, 0)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	if port == 0 {
		t.Fatalf("expected non-zero bound port")
	}
}

func TestListenPortFallback(t *testing.T) {
	// Occupy a port, then ask Listen to start there with a fallback span.
	first, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("pre-bind: %v", err)
	}
	defer first.Close()
	base := first.Addr().(*net.TCPAddr).Port

	ln, port, err := Listen("127.0.0.1", base, 4)
	if err != nil {
		t.Fatalf("fallback listen: %v", err)
	}
	defer ln.Close()
	if port == base {
		t.Fatalf("expected fallback away from occupied port %d", base)
	}
	if port < base || port > base+4 {
		t.Fatalf("port %d outside fallback range [%d,%d]", port, base, base+4)
	}
}

func TestConnDeliversFrames(t *testing.T) {
	testlog.Start(t)

	ln, port, err := Listen("127.0.0.1", 0, 0)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	events := make(chan Event, 64)
	go Serve(ln, DefaultOptions(), events)

	nc, err := Dial(net.JoinHostPort("127.0.0.1", portString(port)), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	client := NewConn(nc, DefaultOptions())
	defer client.Close()

	accepted := waitEvent(t, events, EventAccepted)
	defer accepted.Conn.Close()

	if _, err := client.Send(wire.NewFrame(wire.MsgChat, 5, 1, []byte("hello"))); err != nil {
		t.Fatalf("send: %v", err)
	}

	ev := waitEvent(t, events, EventFrame)
	if ev.Frame.Header.Type != wire.MsgChat || string(ev.Frame.Payload) != "hello" {
		t.Fatalf("unexpected frame: %+v %q", ev.Frame.Header, ev.Frame.Payload)
	}
}

func TestConnRemoteCloseProducesClosedEvent(t *testing.T) {
	testlog.Start(t)

	ln, port, err := Listen("127.0.0.1", 0, 0)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	events := make(chan Event, 64)
	go Serve(ln, DefaultOptions(), events)

	nc, err := Dial(net.JoinHostPort("127.0.0.1", portString(port)), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	client := NewConn(nc, DefaultOptions())

	accepted := waitEvent(t, events, EventAccepted)
	defer accepted.Conn.Close()

	client.Close()

	ev := waitEvent(t, events, EventClosed)
	if ev.Err != nil {
		t.Fatalf("clean close should carry nil error, got %v", ev.Err)
	}
}

func TestConnGarbageTriggersProtocolErrorThenClose(t *testing.T) {
	testlog.Start(t)

	ln, port, err := Listen("127.0.0.1", 0, 0)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	events := make(chan Event, 64)
	go Serve(ln, DefaultOptions(), events)

	nc, err := Dial(net.JoinHostPort("127.0.0.1", portString(port)), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer nc.Close()

	accepted := waitEvent(t, events, EventAccepted)
	defer accepted.Conn.Close()

	// Keep feeding garbage until the server gives up on the connection.
	// TCP may coalesce writes, so a fixed number of sends is not enough to
	// guarantee the strike count.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		garbage := make([]byte, wire.HeaderSize)
		copy(garbage, "this is not a DNET frame header!")
		for {
			select {
			case <-stop:
				return
			default:
			}
			if _, err := nc.Write(garbage); err != nil {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()

	ev := waitEvent(t, events, EventClosed)
	if !errors.Is(ev.Err, wire.ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic close cause, got %v", ev.Err)
	}
}

func TestSendOnClosedConn(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	c := NewConn(client, DefaultOptions())
	c.Close()
	if _, err := c.Send(wire.NewFrame(wire.MsgPing, 1, 1, nil)); !errors.Is(err, ErrConnClosed) {
		t.Fatalf("expected ErrConnClosed, got %v", err)
	}
}

func portString(p int) string {
	return strconv.Itoa(p)
}
