package peer

import (
	"testing"
	"time"

	"github.com/inkwell-paint/drawnet/internal/wire"
)

func TestRegistryAddGetRemove(t *testing.T) {
	r := NewRegistry()
	r.Add(&Peer{ID: 1, Name: "host"})
	r.Add(&Peer{ID: 2, Name: "Ann"})

	if r.Len() != 2 {
		t.Fatalf("len=%d want=2", r.Len())
	}
	p, ok := r.Get(2)
	if !ok || p.Name != "Ann" {
		t.Fatalf("get(2): ok=%v p=%+v", ok, p)
	}
	if !r.Remove(2) {
		t.Fatalf("remove(2) reported missing")
	}
	if r.Remove(2) {
		t.Fatalf("second remove(2) reported present")
	}
	if r.Len() != 1 {
		t.Fatalf("len=%d want=1", r.Len())
	}
}

func TestRegistryAddReplacesSameID(t *testing.T) {
	r := NewRegistry()
	r.Add(&Peer{ID: 7, Name: "old"})
	r.Add(&Peer{ID: 7, Name: "new"})
	if r.Len() != 1 {
		t.Fatalf("len=%d want=1", r.Len())
	}
	p, _ := r.Get(7)
	if p.Name != "new" {
		t.Fatalf("expected replacement, got %q", p.Name)
	}
}

func TestAssignIDIsFreshAndNonZero(t *testing.T) {
	r := NewRegistry()
	seen := make(map[uint32]bool)
	for i := 0; i < 100; i++ {
		id := r.AssignID()
		if id == 0 {
			t.Fatalf("assigned zero id")
		}
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
		r.Add(&Peer{ID: id})
	}
}

func TestSnapshotSortedByID(t *testing.T) {
	r := NewRegistry()
	r.Add(&Peer{ID: 30})
	r.Add(&Peer{ID: 10})
	r.Add(&Peer{ID: 20})
	snap := r.Snapshot()
	for i := 1; i < len(snap); i++ {
		if snap[i-1].ID > snap[i].ID {
			t.Fatalf("snapshot not sorted: %v", snap)
		}
	}
}

func TestMergeRoster(t *testing.T) {
	r := NewRegistry()
	r.Add(&Peer{ID: 1, Name: "me"})
	r.Add(&Peer{ID: 2, Name: "Ann", Connected: true})

	roster := []wire.PeerInfo{
		{ID: 1, Name: "someone-else"},                       // self, must be ignored
		{ID: 2, Name: "Ann", Perm: 1, Connected: true},      // update
		{ID: 3, Name: "Bo", ColorRGBA: 5, Connected: true},  // add
	}
	if !r.MergeRoster(roster, 1) {
		t.Fatalf("expected change")
	}

	self, _ := r.Get(1)
	if self.Name != "me" {
		t.Fatalf("self record mutated: %+v", self)
	}
	ann, _ := r.Get(2)
	if ann.Permission != PermDraw {
		t.Fatalf("ann perm=%v", ann.Permission)
	}
	bo, ok := r.Get(3)
	if !ok || bo.Name != "Bo" || bo.CursorColor != 5 {
		t.Fatalf("bo=%+v ok=%v", bo, ok)
	}

	// Applying the identical roster again is a no-op.
	if r.MergeRoster(roster, 1) {
		t.Fatalf("expected no change on identical roster")
	}
}

func TestStale(t *testing.T) {
	now := time.Now()
	p := Peer{LastSeen: now.Add(-31 * time.Second)}
	if !p.Stale(now, 30*time.Second) {
		t.Fatalf("expected stale")
	}
	p.Touch(now)
	if p.Stale(now, 30*time.Second) {
		t.Fatalf("expected fresh after touch")
	}
	if !p.Connected {
		t.Fatalf("touch must mark connected")
	}
}

func TestParsePermission(t *testing.T) {
	cases := map[string]Permission{
		"view":    PermView,
		"draw":    PermDraw,
		"edit":    PermEdit,
		"admin":   PermAdmin,
		"bogus":   PermView,
		"":        PermView,
	}
	for in, want := range cases {
		if got := ParsePermission(in); got != want {
			t.Fatalf("ParsePermission(%q)=%v want=%v", in, got, want)
		}
	}
}
