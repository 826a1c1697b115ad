package transport

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/inkwell-paint/drawnet/internal/wire"
)

// Conn wraps one peer socket. Reads happen on a dedicated goroutine that
// unframes the stream and posts Events; writes are serialized by a mutex so
// the session loop and the keepalive path never interleave partial frames.
type Conn struct {
	nc   net.Conn
	opts Options

	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}

	// peerID is bound after the handshake. Only the session loop touches
	// it, so it needs no synchronization.
	peerID uint32
}

func NewConn(nc net.Conn, opts Options) *Conn {
	return &Conn{
		nc:   nc,
		opts: opts,
		done: make(chan struct{}),
	}
}

func (c *Conn) RemoteAddr() string {
	return c.nc.RemoteAddr().String()
}

// PeerID returns the bound peer id, 0 before the handshake completes.
func (c *Conn) PeerID() uint32 { return c.peerID }

// BindPeer associates the connection with a registry id.
func (c *Conn) BindPeer(id uint32) { c.peerID = id }

// Start launches the reader goroutine.
func (c *Conn) Start(events chan<- Event) {
	go c.readLoop(events)
}

// Send frames and writes one message, returning the wire byte count.
func (c *Conn) Send(f wire.Frame) (int, error) {
	raw, err := wire.EncodeFrame(f, c.opts.Limits)
	if err != nil {
		return 0, err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return 0, ErrConnClosed
	default:
	}

	if c.opts.WriteTimeout > 0 {
		_ = c.nc.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	}
	n, err := c.nc.Write(raw)
	if err != nil {
		return n, err
	}
	return n, nil
}

// Close shuts the socket down and releases the reader goroutine.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.nc.Close()
	})
}

// post delivers an event unless the connection has been closed, which is
// what unblocks producers once the session stops consuming.
func (c *Conn) post(events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *Conn) readLoop(events chan<- Event) {
	decoder := wire.NewStreamDecoder(c.opts.Limits)
	buf := make([]byte, c.opts.ReadBufSize)
	protocolErrors := 0

	for {
		n, err := c.nc.Read(buf)
		if n > 0 {
			decoder.Feed(buf[:n])
			for {
				frame, ok, derr := decoder.Next()
				if derr != nil {
					protocolErrors++
					log.Warn().
						Err(derr).
						Str("remote", c.RemoteAddr()).
						Int("strikes", protocolErrors).
						Msg("protocol error, frame dropped")
					if protocolErrors >= maxProtocolErrors {
						c.post(events, Event{Kind: EventClosed, Conn: c, Err: derr})
						c.Close()
						return
					}
					c.post(events, Event{Kind: EventProtocolError, Conn: c, Err: derr})
					break
				}
				if !ok {
					break
				}
				if !c.post(events, Event{Kind: EventFrame, Conn: c, Frame: frame}) {
					return
				}
			}
		}
		if err != nil {
			// EOF is a clean remote close.
			var cause error
			if !errors.Is(err, io.EOF) {
				cause = err
			}
			select {
			case <-c.done:
				// Locally initiated teardown; the session already
				// knows.
			default:
				c.post(events, Event{Kind: EventClosed, Conn: c, Err: cause})
			}
			c.Close()
			return
		}
	}
}
