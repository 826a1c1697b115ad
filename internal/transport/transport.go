// Package transport owns the TCP plumbing for a session: the host's
// listening socket with port fallback, the joiner's outbound connection, and
// per-connection reader goroutines that unframe the byte stream.
//
// Ownership handoff: every reader goroutine is a producer posting Events
// into one bounded channel; the session loop goroutine is the only consumer
// and the only place connection/peer state is mutated.
package transport

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/inkwell-paint/drawnet/internal/wire"
)

var (
	ErrNoPortAvailable = errors.New("transport: no port available in fallback range")
	ErrConnClosed      = errors.New("transport: connection closed")
)

// consecutive protocol errors tolerated before a connection is dropped
const maxProtocolErrors = 3

// EventKind discriminates Events delivered to the session loop.
type EventKind int

const (
	// EventAccepted announces an inbound connection on the host's listener.
	EventAccepted EventKind = iota
	// EventFrame carries one complete decoded frame.
	EventFrame
	// EventProtocolError reports a dropped, undecodable frame. The
	// connection stays open unless errors repeat.
	EventProtocolError
	// EventClosed reports connection teardown: remote close, read error,
	// or repeated protocol errors. Err carries the cause (nil on clean
	// remote close).
	EventClosed
)

// Event is the unit of work handed from reader goroutines to the session
// loop.
type Event struct {
	Kind  EventKind
	Conn  *Conn
	Frame wire.Frame
	Err   error
}

// Options bounds per-connection resource use.
type Options struct {
	Limits       wire.Limits
	WriteTimeout time.Duration
	ReadBufSize  int
}

func DefaultOptions() Options {
	return Options{
		Limits:       wire.DefaultLimits(),
		WriteTimeout: 15 * time.Second,
		ReadBufSize:  16 * 1024,
	}
}

// Listen binds the default port, falling back through the next span ports if
// taken. basePort 0 requests an ephemeral port with no fallback scan.
func Listen(host string, basePort, span int) (net.Listener, int, error) {
	if basePort == 0 {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
		if err != nil {
			return nil, 0, fmt.Errorf("transport: listen: %w", err)
		}
		return ln, ln.Addr().(*net.TCPAddr).Port, nil
	}

	var lastErr error
	for port := basePort; port <= basePort+span; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
		if err != nil {
			lastErr = err
			continue
		}
		return ln, port, nil
	}
	if lastErr != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrNoPortAvailable, lastErr)
	}
	return nil, 0, ErrNoPortAvailable
}

// Dial opens the joiner's outbound connection.
func Dial(addr string, timeout time.Duration) (net.Conn, error) {
	nc, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return nc, nil
}

// Serve runs the accept loop, wrapping and starting a Conn per accepted
// socket and posting EventAccepted. It returns when the listener closes.
func Serve(ln net.Listener, opts Options, events chan<- Event) {
	for {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		conn := NewConn(nc, opts)
		// Announce before starting the reader so EventAccepted is
		// observed ahead of the connection's first frame.
		if !conn.post(events, Event{Kind: EventAccepted, Conn: conn}) {
			continue
		}
		conn.Start(events)
	}
}
