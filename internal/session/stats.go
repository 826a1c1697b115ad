package session

import (
	"sync/atomic"
	"time"
)

// Stats is the session traffic counter set. Counters are atomic so the
// status API may read them while the loop goroutine writes.
type Stats struct {
	PacketsSent     atomic.Int64
	PacketsReceived atomic.Int64
	BytesSent       atomic.Int64
	BytesReceived   atomic.Int64

	startUnixMS atomic.Int64
}

func (s *Stats) markStart(t time.Time) {
	s.startUnixMS.Store(t.UnixMilli())
}

// StatsSnapshot is a point-in-time copy for display.
type StatsSnapshot struct {
	PacketsSent     int64         `json:"packets_sent"`
	PacketsReceived int64         `json:"packets_received"`
	BytesSent       int64         `json:"bytes_sent"`
	BytesReceived   int64         `json:"bytes_received"`
	Uptime          time.Duration `json:"uptime"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		PacketsSent:     s.PacketsSent.Load(),
		PacketsReceived: s.PacketsReceived.Load(),
		BytesSent:       s.BytesSent.Load(),
		BytesReceived:   s.BytesReceived.Load(),
	}
	if start := s.startUnixMS.Load(); start > 0 {
		snap.Uptime = time.Since(time.UnixMilli(start))
	}
	return snap
}

func (s *Stats) reset() {
	s.PacketsSent.Store(0)
	s.PacketsReceived.Store(0)
	s.BytesSent.Store(0)
	s.BytesReceived.Store(0)
	s.startUnixMS.Store(0)
}
