package resolver

import (
	"net/netip"

	"github.com/LImboing/hostsim/internal/dnstypes"
	"github.com/LImboing/hostsim/internal/hostcache"
)

// Parameters configures a single resolution request.
type Parameters struct {
	InitialPriority      dnstypes.Priority
	QueryType            dnstypes.QueryType
	Source               dnstypes.Source
	CacheUsage           dnstypes.CacheUsage
	SecureDNSPolicy      dnstypes.SecureDNSPolicy
	IncludeCanonicalName bool
	LoopbackOnly         bool

	// Speculative requests warm the cache without retaining results.
	Speculative bool
}

// flags derives the resolver flag bits the parameters imply.
func (p Parameters) flags() dnstypes.Flags {
	var f dnstypes.Flags
	if p.IncludeCanonicalName {
		f |= dnstypes.FlagCanonName
	}
	if p.LoopbackOnly {
		f |= dnstypes.FlagLoopbackOnly
	}
	return f
}

// CompletionCallback receives a request's squashed final error, nil on
// success.
type CompletionCallback func(err error)

// Request is a single resolution attempt with a strict lifecycle:
// Created -> Started -> Pending or Completed -> Completed. Completion is
// write-once; result accessors panic before it.
//
// A Request must be used on its coordinator's goroutine. Cancel detaches a
// pending request without firing its callback and is safe regardless of
// whether the coordinator was shut down first.
type Request struct {
	host         dnstypes.HostPort
	isolationKey string
	params       Parameters
	priority     dnstypes.Priority
	flags        dnstypes.Flags

	resolver *Resolver
	live     *liveness

	// id is nonzero only while registered in the coordinator's pending
	// table.
	id uint64

	callback CompletionCallback
	started  bool
	complete bool

	resolveErr error
	addrs      *dnstypes.AddressList
	aliases    []string
	staleness  *hostcache.Staleness
}

func newRequest(host dnstypes.HostPort, isolationKey string, params Parameters, r *Resolver) *Request {
	return &Request{
		host:         host,
		isolationKey: isolationKey,
		params:       params,
		priority:     params.InitialPriority,
		flags:        params.flags(),
		resolver:     r,
		live:         r.live,
		resolveErr:   dnstypes.NewError(dnstypes.CodePending),
	}
}

// Start begins resolution. The return is nil when the request completed
// immediately with success, a CodePending error when it registered for
// asynchronous completion, and the squashed failure otherwise. callback
// fires exactly once on asynchronous completion and never on an immediate
// result.
//
// Start may be called once; a second call is a usage error. The coordinator
// must still be alive.
func (r *Request) Start(callback CompletionCallback) error {
	if callback == nil {
		panic("resolver: Start requires a callback")
	}
	if r.started || r.complete {
		panic("resolver: Start called twice")
	}
	if r.id != 0 {
		panic("resolver: request already registered")
	}
	if !r.live.ok() || r.resolver == nil {
		panic("resolver: Start on request whose coordinator is gone")
	}
	r.started = true

	err := r.resolver.resolve(r)
	if dnstypes.IsPending(err) {
		r.callback = callback
	} else {
		r.complete = true
	}
	return err
}

// Cancel detaches the request. A pending request is removed from the
// coordinator's table and its callback never fires. Cancel is idempotent
// and safe after the coordinator's shutdown or teardown.
func (r *Request) Cancel() {
	if r.id != 0 && r.live.ok() && r.resolver != nil {
		r.resolver.detachRequest(r.id)
	}
	r.id = 0
	r.resolver = nil
}

// detach severs the coordinator side without touching the table. Called
// during shutdown.
func (r *Request) detach() {
	r.id = 0
	r.resolver = nil
}

// Host returns the request's host and port.
func (r *Request) Host() dnstypes.HostPort { return r.host }

// IsolationKey returns the request's isolation key.
func (r *Request) IsolationKey() string { return r.isolationKey }

// Priority returns the request's current priority.
func (r *Request) Priority() dnstypes.Priority { return r.priority }

// ChangePriority updates the priority bookkeeping. It never affects
// completion timing.
func (r *Request) ChangePriority(p dnstypes.Priority) { r.priority = p }

// Complete reports whether the request reached its terminal state.
func (r *Request) Complete() bool { return r.complete }

// ID returns the pending-table id, 0 when unregistered.
func (r *Request) ID() uint64 { return r.id }

// AddressResults returns the resolved addresses. Panics before completion.
// Nil for failures and speculative requests.
func (r *Request) AddressResults() *dnstypes.AddressList {
	r.mustBeComplete()
	return r.addrs
}

// Endpoints returns the resolved addresses paired with the request's port.
// Panics before completion.
func (r *Request) Endpoints() []netip.AddrPort {
	r.mustBeComplete()
	return r.addrs.Endpoints(r.host.Port)
}

// DNSAliasResults returns the sanitized alias list. Panics before
// completion.
func (r *Request) DNSAliasResults() []string {
	r.mustBeComplete()
	return r.aliases
}

// StaleInfo returns staleness metadata when the result came from a
// stale-allowed cache hit. Panics before completion.
func (r *Request) StaleInfo() *hostcache.Staleness {
	r.mustBeComplete()
	return r.staleness
}

// ResolveError returns the unsquashed resolution error, nil on success.
// Panics before completion.
func (r *Request) ResolveError() error {
	r.mustBeComplete()
	return r.resolveErr
}

func (r *Request) mustBeComplete() {
	if !r.complete {
		panic("resolver: result read before completion")
	}
}

// setError records the resolution outcome. Only legal before completion.
func (r *Request) setError(err error) {
	if r.complete {
		panic("resolver: setError after completion")
	}
	r.resolveErr = err
}

// setAddressResults records a successful result. Write-once, never for
// speculative requests.
func (r *Request) setAddressResults(addrs *dnstypes.AddressList, stale *hostcache.Staleness) {
	if r.complete {
		panic("resolver: setAddressResults after completion")
	}
	if r.addrs != nil {
		panic("resolver: address results set twice")
	}
	if r.params.Speculative {
		panic("resolver: address results on a speculative request")
	}
	r.addrs = addrs
	r.aliases = dnstypes.SanitizeAliases(addrs.Aliases)
	r.staleness = stale
}

// onAsyncCompleted finishes an asynchronously resolved request. id must
// match the registration; squashed must be nil, NotResolved or HTTPSOnly.
func (r *Request) onAsyncCompleted(id uint64, squashed error) {
	if r.id != id {
		panic("resolver: completion for a different registration")
	}
	r.id = 0

	if dnstypes.IsPending(r.resolveErr) {
		panic("resolver: completing without a recorded result")
	}
	switch dnstypes.CodeOf(squashed) {
	case dnstypes.CodeOK, dnstypes.CodeNotResolved, dnstypes.CodeHTTPSOnly:
	default:
		panic("resolver: unsquashed completion code " + dnstypes.CodeOf(squashed).String())
	}
	if r.complete {
		panic("resolver: request completed twice")
	}
	r.complete = true

	cb := r.callback
	r.callback = nil
	cb(squashed)
}
