package resolver

import (
	"net/netip"

	"github.com/LImboing/hostsim/internal/dnstypes"
)

// UpdateType classifies a simulated push-style update event.
type UpdateType int

const (
	UpdateAdded UpdateType = iota
	UpdateChanged
	UpdateRemoved
)

// ListenerDelegate receives the update events a listener subscribed to.
type ListenerDelegate interface {
	OnAddressResult(update UpdateType, queryType dnstypes.QueryType, address netip.AddrPort)
	OnTextResult(update UpdateType, queryType dnstypes.QueryType, texts []string)
	OnHostnameResult(update UpdateType, queryType dnstypes.QueryType, host dnstypes.HostPort)
	OnUnhandledResult(update UpdateType, queryType dnstypes.QueryType)
}

// Listener is a push-style subscription for updates to one (host, query
// type) pair. Created unstarted; Start registers it, Cancel (or
// coordinator teardown) removes it.
type Listener struct {
	host      dnstypes.HostPort
	queryType dnstypes.QueryType
	delegate  ListenerDelegate

	resolver *Resolver
	live     *liveness
}

// CreateListener builds a listener for host and queryType. The query type
// must be concrete.
func (r *Resolver) CreateListener(host dnstypes.HostPort, queryType dnstypes.QueryType) *Listener {
	r.owner.assert()
	if queryType == dnstypes.QueryTypeUnspecified {
		panic("resolver: listener requires a concrete query type")
	}
	return &Listener{host: host, queryType: queryType, resolver: r, live: r.live}
}

// Start registers the listener for dispatch.
func (l *Listener) Start(delegate ListenerDelegate) error {
	if delegate == nil {
		panic("resolver: listener Start requires a delegate")
	}
	if l.delegate != nil {
		panic("resolver: listener started twice")
	}
	if !l.live.ok() || l.resolver == nil {
		panic("resolver: listener Start after coordinator teardown")
	}
	l.delegate = delegate
	l.resolver.addListener(l)
	return nil
}

// Cancel unregisters the listener. Idempotent; safe after coordinator
// teardown.
func (l *Listener) Cancel() {
	if l.live.ok() && l.resolver != nil {
		l.resolver.removeListener(l)
	}
	l.resolver = nil
}

// Host returns the listener's target host.
func (l *Listener) Host() dnstypes.HostPort { return l.host }

// QueryType returns the listener's query type.
func (l *Listener) QueryType() dnstypes.QueryType { return l.queryType }

func (r *Resolver) addListener(l *Listener) {
	r.owner.assert()
	r.listeners = append(r.listeners, l)
}

func (r *Resolver) removeListener(l *Listener) {
	r.owner.assert()
	for i, cur := range r.listeners {
		if cur == l {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

// matchingListeners snapshots the currently registered listeners for
// (host, queryType), in registration order.
func (r *Resolver) matchingListeners(host dnstypes.HostPort, queryType dnstypes.QueryType) []*Listener {
	var out []*Listener
	for _, l := range r.listeners {
		if l.host == host && l.queryType == queryType && l.delegate != nil {
			out = append(out, l)
		}
	}
	return out
}

// TriggerAddressListeners synchronously dispatches an address update to
// every registered listener matching (host, queryType).
func (r *Resolver) TriggerAddressListeners(host dnstypes.HostPort, queryType dnstypes.QueryType, update UpdateType, address netip.AddrPort) {
	r.owner.assert()
	for _, l := range r.matchingListeners(host, queryType) {
		l.delegate.OnAddressResult(update, queryType, address)
	}
}

// TriggerTextListeners synchronously dispatches a text-record update.
func (r *Resolver) TriggerTextListeners(host dnstypes.HostPort, queryType dnstypes.QueryType, update UpdateType, texts []string) {
	r.owner.assert()
	for _, l := range r.matchingListeners(host, queryType) {
		l.delegate.OnTextResult(update, queryType, texts)
	}
}

// TriggerHostnameListeners synchronously dispatches a hostname update.
func (r *Resolver) TriggerHostnameListeners(host dnstypes.HostPort, queryType dnstypes.QueryType, update UpdateType, result dnstypes.HostPort) {
	r.owner.assert()
	for _, l := range r.matchingListeners(host, queryType) {
		l.delegate.OnHostnameResult(update, queryType, result)
	}
}

// TriggerUnhandledListeners synchronously dispatches an unhandled-result
// update.
func (r *Resolver) TriggerUnhandledListeners(host dnstypes.HostPort, queryType dnstypes.QueryType, update UpdateType) {
	r.owner.assert()
	for _, l := range r.matchingListeners(host, queryType) {
		l.delegate.OnUnhandledResult(update, queryType)
	}
}
