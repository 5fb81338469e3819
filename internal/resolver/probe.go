package resolver

import "github.com/LImboing/hostsim/internal/dnstypes"

// ProbeRequest simulates a DoH probe. At most one probe may be outstanding
// per coordinator; the coordinator holds a non-owning back-reference that
// clears itself when the probe is cancelled.
type ProbeRequest struct {
	resolver *Resolver
	live     *liveness
	started  bool
}

// CreateDoHProbe builds a probe request.
func (r *Resolver) CreateDoHProbe() *ProbeRequest {
	r.owner.assert()
	return &ProbeRequest{resolver: r, live: r.live}
}

// Start registers the probe with its coordinator and reports pending.
// Starting a second probe while one is outstanding is a usage error.
func (p *ProbeRequest) Start() error {
	if !p.live.ok() || p.resolver == nil {
		panic("resolver: probe Start after coordinator teardown")
	}
	if p.resolver.probe != nil {
		panic("resolver: a DoH probe is already outstanding")
	}
	p.resolver.probe = p
	p.started = true
	return dnstypes.NewError(dnstypes.CodePending)
}

// Cancel releases the probe, clearing the coordinator's back-reference if
// it still points here. Safe after coordinator teardown.
func (p *ProbeRequest) Cancel() {
	if p.live.ok() && p.resolver != nil && p.resolver.probe == p {
		p.resolver.probe = nil
	}
	p.resolver = nil
}

// ActiveDoHProbe reports whether a probe is outstanding.
func (r *Resolver) ActiveDoHProbe() bool {
	r.owner.assert()
	return r.probe != nil
}
