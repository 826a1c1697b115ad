// Package peer owns per-participant session records and the registry that
// maps peer ids to them.
package peer

import "time"

// Permission is a peer's capability level inside a session.
type Permission uint32

const (
	PermView Permission = iota
	PermDraw
	PermEdit
	PermAdmin
)

func (p Permission) String() string {
	switch p {
	case PermView:
		return "view"
	case PermDraw:
		return "draw"
	case PermEdit:
		return "edit"
	case PermAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParsePermission maps a config string to a Permission, defaulting to view.
func ParsePermission(s string) Permission {
	switch s {
	case "draw":
		return PermDraw
	case "edit":
		return PermEdit
	case "admin":
		return PermAdmin
	default:
		return PermView
	}
}

// Peer is the session-side record for one participant, local self-record
// included. Network connections are owned by the transport layer and keyed
// by the same id; a Peer carries no socket handle.
type Peer struct {
	ID   uint32
	Name string
	Addr string

	// Remote cursor mirror.
	CursorX       float64
	CursorY       float64
	CursorColor   uint32
	Drawing       bool
	ShowCursor    bool
	CursorOpacity float64
	CursorSeen    time.Time

	// Tool mirror for remote cursor preview.
	Tool      uint32
	ToolColor uint32
	BrushSize float64

	Permission Permission
	Connected  bool
	LastSeen   time.Time
	Latency    time.Duration
}

// Touch refreshes liveness bookkeeping after any packet from the peer.
func (p *Peer) Touch(now time.Time) {
	p.LastSeen = now
	p.Connected = true
}

// Stale reports whether the peer has been silent longer than timeout.
func (p *Peer) Stale(now time.Time, timeout time.Duration) bool {
	return now.Sub(p.LastSeen) > timeout
}
