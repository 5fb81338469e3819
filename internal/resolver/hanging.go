package resolver

import "github.com/LImboing/hostsim/internal/dnstypes"

// HangingResolver is the minimal resolver variant whose requests start
// successfully but never complete, for hang and timeout testing.
//
// Two exceptions resolve immediately instead of hanging: requests created
// after Shutdown fail with ShutDown, and local-only requests fail with
// CacheMiss.
type HangingResolver struct {
	live            *liveness
	shuttingDown    bool
	numCancellation int

	lastHost         dnstypes.HostPort
	lastIsolationKey string
}

// NewHanging creates a hanging resolver.
func NewHanging() *HangingResolver {
	return &HangingResolver{live: newLiveness()}
}

// Shutdown makes all future requests fail immediately with ShutDown.
func (h *HangingResolver) Shutdown() { h.shuttingDown = true }

// Close tears the resolver down; outstanding request objects stay safe to
// cancel but stop counting cancellations.
func (h *HangingResolver) Close() { h.live.revoke() }

// NumCancellations counts started-but-incomplete requests that were
// cancelled.
func (h *HangingResolver) NumCancellations() int { return h.numCancellation }

// LastHost returns the host of the most recently created request.
func (h *HangingResolver) LastHost() dnstypes.HostPort { return h.lastHost }

// LastIsolationKey returns the isolation key of the most recently created
// request.
func (h *HangingResolver) LastIsolationKey() string { return h.lastIsolationKey }

// HangingRequest is a request that reports pending on Start and then never
// completes. failWith, when set, makes Start fail immediately instead.
type HangingRequest struct {
	resolver *HangingResolver
	live     *liveness
	failWith error
	running  bool
}

// CreateRequest builds a request against the hanging resolver.
func (h *HangingResolver) CreateRequest(host dnstypes.HostPort, isolationKey string, params Parameters) *HangingRequest {
	h.lastHost = host
	h.lastIsolationKey = isolationKey

	req := &HangingRequest{resolver: h, live: h.live}
	switch {
	case h.shuttingDown:
		req.failWith = dnstypes.NewError(dnstypes.CodeShutDown)
	case params.Source == dnstypes.SourceLocalOnly:
		req.failWith = dnstypes.NewError(dnstypes.CodeCacheMiss)
	}
	return req
}

// CreateDoHProbe builds a probe that likewise never completes.
func (h *HangingResolver) CreateDoHProbe() *HangingRequest {
	req := &HangingRequest{resolver: h, live: h.live}
	if h.shuttingDown {
		req.failWith = dnstypes.NewError(dnstypes.CodeShutDown)
	}
	return req
}

// Start reports pending and hangs forever, or fails immediately for the
// shutdown and local-only exceptions. The callback never fires.
func (r *HangingRequest) Start(CompletionCallback) error {
	if r.failWith != nil {
		return r.failWith
	}
	r.running = true
	return dnstypes.NewError(dnstypes.CodePending)
}

// Cancel abandons the request. A started-but-incomplete request bumps the
// resolver's cancellation counter; safe after resolver teardown.
func (r *HangingRequest) Cancel() {
	if r.running && r.live.ok() && r.resolver != nil {
		r.resolver.numCancellation++
	}
	r.running = false
	r.resolver = nil
}
