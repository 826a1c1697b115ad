package governor

import (
	"context"
	"testing"
)

type countingAuthority struct {
	calls    int
	decision Decision
}

func (a *countingAuthority) Evaluate(ctx context.Context, operation, capability string) Decision {
	a.calls++
	return a.decision
}

func TestGateCachesApprovals(t *testing.T) {
	auth := &countingAuthority{decision: Decision{Approved: true}}
	g := NewGate(auth)

	for i := 0; i < 3; i++ {
		d := g.Check(context.Background(), OpHost, "network")
		if !d.Approved {
			t.Fatalf("expected approval")
		}
	}
	if auth.calls != 1 {
		t.Fatalf("authority consulted %d times, want 1", auth.calls)
	}
}

func TestGateDoesNotCacheDenials(t *testing.T) {
	auth := &countingAuthority{decision: Decision{Approved: false, Reason: "policy"}}
	g := NewGate(auth)

	for i := 0; i < 2; i++ {
		d := g.Check(context.Background(), OpJoin, "network")
		if d.Approved {
			t.Fatalf("expected denial")
		}
		if d.Reason != "policy" {
			t.Fatalf("reason=%q", d.Reason)
		}
	}
	if auth.calls != 2 {
		t.Fatalf("authority consulted %d times, want 2", auth.calls)
	}
}

func TestGateChecksOperationsIndependently(t *testing.T) {
	auth := &countingAuthority{decision: Decision{Approved: true}}
	g := NewGate(auth)

	g.Check(context.Background(), OpHost, "network")
	g.Check(context.Background(), OpScan, "network")
	if auth.calls != 2 {
		t.Fatalf("authority consulted %d times, want 2 (per-operation cache)", auth.calls)
	}
}

func TestGateReset(t *testing.T) {
	auth := &countingAuthority{decision: Decision{Approved: true}}
	g := NewGate(auth)

	g.Check(context.Background(), OpHost, "network")
	g.Reset()
	g.Check(context.Background(), OpHost, "network")
	if auth.calls != 2 {
		t.Fatalf("authority consulted %d times, want 2 after reset", auth.calls)
	}
}

func TestNilAuthorityAllowsAll(t *testing.T) {
	g := NewGate(nil)
	if d := g.Check(context.Background(), OpScan, "network"); !d.Approved {
		t.Fatalf("expected approval from nil authority default")
	}
}
