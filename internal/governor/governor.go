// Package governor is the capability gate consulted before any socket is
// opened. The approval authority itself lives outside this module; DrawNet
// only consumes its yes/no decision and reason string.
package governor

import "context"

// Operation names checked independently of one another. Approving one never
// implies approval of another.
const (
	OpHost = "drawnet_host"
	OpJoin = "drawnet_join"
	OpScan = "drawnet_scan"
)

// Decision is the authority's verdict for one operation.
type Decision struct {
	Approved bool
	Reason   string
}

// Authority evaluates whether an operation with a declared capability may
// proceed.
type Authority interface {
	Evaluate(ctx context.Context, operation, capability string) Decision
}

// AuthorityFunc adapts a function into an Authority.
type AuthorityFunc func(ctx context.Context, operation, capability string) Decision

func (f AuthorityFunc) Evaluate(ctx context.Context, operation, capability string) Decision {
	return f(ctx, operation, capability)
}

// AllowAll approves every operation. Intended for tests and for running
// without a governor.
func AllowAll() Authority {
	return AuthorityFunc(func(context.Context, string, string) Decision {
		return Decision{Approved: true}
	})
}

// DenyAll declines every operation with a fixed reason.
func DenyAll(reason string) Authority {
	return AuthorityFunc(func(context.Context, string, string) Decision {
		return Decision{Approved: false, Reason: reason}
	})
}

// Gate caches approvals per operation name for the lifetime of one session.
// A repeated operation of the same kind does not re-prompt; denials are not
// cached so the user may retry after adjusting policy.
type Gate struct {
	authority Authority
	approved  map[string]Decision
}

func NewGate(authority Authority) *Gate {
	if authority == nil {
		authority = AllowAll()
	}
	return &Gate{
		authority: authority,
		approved:  make(map[string]Decision),
	}
}

// Check returns the cached approval for operation or consults the authority.
func (g *Gate) Check(ctx context.Context, operation, capability string) Decision {
	if d, ok := g.approved[operation]; ok {
		return d
	}
	d := g.authority.Evaluate(ctx, operation, capability)
	if d.Approved {
		g.approved[operation] = d
	}
	return d
}

// Reset clears cached approvals. Called when the session is left.
func (g *Gate) Reset() {
	g.approved = make(map[string]Decision)
}
