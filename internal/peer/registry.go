package peer

import (
	"math/rand"
	"sort"

	"github.com/inkwell-paint/drawnet/internal/wire"
)

// Registry holds at most one Peer per id. It is owned by the session loop
// goroutine; all access happens there, so it carries no lock.
type Registry struct {
	peers map[uint32]*Peer
}

func NewRegistry() *Registry {
	return &Registry{peers: make(map[uint32]*Peer)}
}

// Add inserts p, replacing any existing record with the same id.
func (r *Registry) Add(p *Peer) {
	r.peers[p.ID] = p
}

// Remove deletes the record for id and reports whether it existed.
func (r *Registry) Remove(id uint32) bool {
	if _, ok := r.peers[id]; !ok {
		return false
	}
	delete(r.peers, id)
	return true
}

// Get looks up a peer by id.
func (r *Registry) Get(id uint32) (*Peer, bool) {
	p, ok := r.peers[id]
	return p, ok
}

// Len returns the number of records, local self-record included.
func (r *Registry) Len() int {
	return len(r.peers)
}

// ForEach visits every record. The visitor must not add or remove peers.
func (r *Registry) ForEach(fn func(*Peer)) {
	for _, p := range r.peers {
		fn(p)
	}
}

// Snapshot returns copies of all records sorted by id, for UI listings and
// the status API.
func (r *Registry) Snapshot() []Peer {
	out := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Clear drops every record.
func (r *Registry) Clear() {
	r.peers = make(map[uint32]*Peer)
}

// AssignID generates a fresh non-zero id not present in the registry. The
// host calls this while handling a HELLO; joiners arrive with id 0.
func (r *Registry) AssignID() uint32 {
	for {
		id := rand.Uint32()
		if id == 0 {
			continue
		}
		if _, taken := r.peers[id]; taken {
			continue
		}
		return id
	}
}

// Roster packs the registry as PEER_LIST records.
func (r *Registry) Roster() []wire.PeerInfo {
	snap := r.Snapshot()
	out := make([]wire.PeerInfo, 0, len(snap))
	for _, p := range snap {
		out = append(out, wire.PeerInfo{
			ID:        p.ID,
			Name:      p.Name,
			ColorRGBA: p.CursorColor,
			Perm:      uint32(p.Permission),
			Connected: p.Connected,
		})
	}
	return out
}

// MergeRoster applies a PEER_LIST broadcast: unknown peers are added,
// known ones updated in place. The local record (selfID) is left untouched.
// It reports whether anything changed.
func (r *Registry) MergeRoster(roster []wire.PeerInfo, selfID uint32) bool {
	changed := false
	for _, info := range roster {
		if info.ID == selfID {
			continue
		}
		p, ok := r.peers[info.ID]
		if !ok {
			r.peers[info.ID] = &Peer{
				ID:          info.ID,
				Name:        info.Name,
				CursorColor: info.ColorRGBA,
				Permission:  Permission(info.Perm),
				Connected:   info.Connected,
			}
			changed = true
			continue
		}
		if p.Name != info.Name || p.CursorColor != info.ColorRGBA ||
			p.Permission != Permission(info.Perm) || p.Connected != info.Connected {
			p.Name = info.Name
			p.CursorColor = info.ColorRGBA
			p.Permission = Permission(info.Perm)
			p.Connected = info.Connected
			changed = true
		}
	}
	return changed
}
