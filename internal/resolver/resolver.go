package resolver

import (
	"io"
	"log/slog"
	"net/netip"
	"time"

	"github.com/LImboing/hostsim/internal/dnstypes"
	"github.com/LImboing/hostsim/internal/hostcache"
	"github.com/LImboing/hostsim/internal/rules"
)

// DefaultCacheTTL is the TTL given to successful resolutions. Failures are
// written with TTL 0 and are therefore never served from the cache.
const DefaultCacheTTL = 60 * time.Second

// ResolutionRecord describes one completed resolution attempt for an
// attached recorder.
type ResolutionRecord struct {
	Host      string
	Source    dnstypes.Source
	QueryType dnstypes.QueryType
	Code      dnstypes.Code
	NumAddrs  int
	FromCache bool
}

// Recorder receives resolution records. Implemented by journal.Journal.
type Recorder interface {
	Record(rec ResolutionRecord) error
}

// Resolver is the resolution coordinator: it owns the pending-request
// table, one rule set per resolution source, and the optional cache, and
// drives the resolution algorithm and completion timing.
//
// All public entry points must run on the goroutine that called New.
type Resolver struct {
	owner ownerCheck
	live  *liveness
	clock Clock
	log   *slog.Logger

	ruleSets map[dnstypes.Source]*rules.RuleSet
	system   rules.SystemResolveFunc

	cache             *hostcache.Cache
	cacheTTL          time.Duration
	invalidationSeed  int
	invalidationCount map[hostcache.Key]int

	pending *pendingTable
	queue   taskQueue

	synchronous bool
	onDemand    bool
	shutdown    bool

	listeners []*Listener
	probe     *ProbeRequest
	recorder  Recorder

	lastPriority     dnstypes.Priority
	lastIsolationKey string
	lastSecureDNS    dnstypes.SecureDNSPolicy

	numResolves          int
	numResolvesFromCache int
	numNonLocalResolves  int
}

// Option configures a Resolver.
type Option func(*config)

type config struct {
	caching          bool
	cacheSize        int
	cacheTTL         time.Duration
	invalidationSeed int
	requireMatching  bool
	system           rules.SystemResolveFunc
	clock            Clock
	logger           *slog.Logger
	recorder         Recorder
}

// WithCaching enables the cache with the given maximum entry count; zero
// or negative means the default size.
func WithCaching(maxEntries int) Option {
	return func(c *config) {
		c.caching = true
		c.cacheSize = maxEntries
	}
}

// WithCacheTTL overrides the TTL written for successful resolutions.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *config) { c.cacheTTL = ttl }
}

// WithCacheInvalidation arms every future success entry with a hit counter:
// after n cache hits the entry's TTL is forced to 0 and the next lookup
// misses. Requires caching.
func WithCacheInvalidation(n int) Option {
	return func(c *config) { c.invalidationSeed = n }
}

// WithRequireMatchingRule removes the catch-all fallback, so hosts no rule
// matches fail with NotResolved instead of resolving to loopback.
func WithRequireMatchingRule() Option {
	return func(c *config) { c.requireMatching = true }
}

// WithSystemResolve injects the collaborator behind forward rules.
func WithSystemResolve(fn rules.SystemResolveFunc) Option {
	return func(c *config) { c.system = fn }
}

// WithClock overrides the time source used for cache TTLs.
func WithClock(clock Clock) Option {
	return func(c *config) { c.clock = clock }
}

// WithLogger attaches a logger; resolution outcomes log at Debug.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithRecorder attaches a resolution recorder such as a journal.
func WithRecorder(rec Recorder) Option {
	return func(c *config) { c.recorder = rec }
}

// ruleSources are the sources that own a rule set. LocalOnly deliberately
// has none: local-only requests never reach a rule engine.
var ruleSources = []dnstypes.Source{
	dnstypes.SourceAny,
	dnstypes.SourceSystem,
	dnstypes.SourceDNS,
	dnstypes.SourceMulticastDNS,
}

// New creates a coordinator owned by the calling goroutine.
func New(opts ...Option) *Resolver {
	cfg := config{
		cacheTTL: DefaultCacheTTL,
		clock:    SystemClock(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.invalidationSeed > 0 && !cfg.caching {
		panic("resolver: cache invalidation requires caching")
	}

	r := &Resolver{
		owner:             newOwnerCheck(),
		live:              newLiveness(),
		clock:             cfg.clock,
		log:               cfg.logger,
		ruleSets:          make(map[dnstypes.Source]*rules.RuleSet, len(ruleSources)),
		system:            cfg.system,
		cacheTTL:          cfg.cacheTTL,
		invalidationSeed:  cfg.invalidationSeed,
		invalidationCount: make(map[hostcache.Key]int),
		pending:           newPendingTable(),
		lastPriority:      dnstypes.PriorityDefault,
		recorder:          cfg.recorder,
	}
	for _, src := range ruleSources {
		if cfg.requireMatching {
			r.ruleSets[src] = rules.NewRuleSet(nil, cfg.system)
		} else {
			r.ruleSets[src] = rules.NewCatchAll(cfg.system)
		}
	}
	if cfg.caching {
		r.cache = hostcache.New(cfg.cacheSize)
	}
	return r
}

// Close tears the coordinator down. Every request must already be finished,
// cancelled, or detached by Shutdown; an unfinished request outliving the
// coordinator is a usage error.
func (r *Resolver) Close() {
	r.owner.assert()
	if r.pending.len() != 0 {
		panic("resolver: Close with pending requests; cancel them or call Shutdown")
	}
	r.live.revoke()
}

// Shutdown forcibly detaches all pending requests without firing their
// callbacks, clears rule and cache state, and rejects new work thereafter.
func (r *Resolver) Shutdown() {
	r.owner.assert()
	for _, req := range r.pending.clear() {
		req.detach()
	}
	r.queue.Clear()
	r.ruleSets = nil
	if r.cache != nil {
		r.cache.Clear()
		r.cache = nil
	}
	r.probe = nil
	r.shutdown = true
	r.log.Info("resolver shut down")
}

// SetSynchronousMode makes Start complete requests inline instead of
// registering them.
func (r *Resolver) SetSynchronousMode(on bool) {
	r.owner.assert()
	r.synchronous = on
}

// SetOnDemandMode holds registered requests until ResolveAllPending or
// ResolveOnlyRequestNow instead of scheduling their completion.
func (r *Resolver) SetOnDemandMode(on bool) {
	r.owner.assert()
	r.onDemand = on
}

// Rules returns the rule set consulted for SourceAny requests.
func (r *Resolver) Rules() *rules.RuleSet {
	return r.RulesFor(dnstypes.SourceAny)
}

// RulesFor returns the rule set for one resolution source. LocalOnly has
// no rules; asking for them is a usage error, as is asking after Shutdown.
func (r *Resolver) RulesFor(source dnstypes.Source) *rules.RuleSet {
	r.owner.assert()
	if r.shutdown {
		panic("resolver: rule access after Shutdown")
	}
	rs, ok := r.ruleSets[source]
	if !ok {
		panic("resolver: no rules for source " + source.String())
	}
	return rs
}

// Cache exposes the cache for test inspection; nil when caching is off.
func (r *Resolver) Cache() *hostcache.Cache {
	r.owner.assert()
	return r.cache
}

// CreateRequest builds a request for host. The host is normalized once
// here; rules and cache keys see the normalized form.
func (r *Resolver) CreateRequest(host dnstypes.HostPort, isolationKey string, params Parameters) *Request {
	r.owner.assert()
	host.Host = dnstypes.NormalizeHost(host.Host)
	return newRequest(host, isolationKey, params, r)
}

// RunUntilIdle drains the completion queue, running every scheduled
// asynchronous completion.
func (r *Resolver) RunUntilIdle() {
	r.owner.assert()
	r.queue.RunUntilIdle()
}

// ResolveAllPending schedules completion for every pending request. Only
// meaningful in on-demand mode; calling it otherwise is a usage error.
func (r *Resolver) ResolveAllPending() {
	r.owner.assert()
	if !r.onDemand {
		panic("resolver: ResolveAllPending outside on-demand mode")
	}
	for _, id := range r.pending.ids() {
		id := id
		r.queue.Post(func() { r.resolveNow(id) })
	}
}

// ResolveOnlyRequestNow completes the single pending request inline.
// Exactly one request must be pending.
func (r *Resolver) ResolveOnlyRequestNow() {
	r.owner.assert()
	if r.pending.len() != 1 {
		panic("resolver: ResolveOnlyRequestNow requires exactly one pending request")
	}
	r.resolveNow(r.pending.lastID())
}

// LoadIntoCache resolves host directly into the cache without consuming a
// request slot. Requires caching.
func (r *Resolver) LoadIntoCache(host dnstypes.HostPort, isolationKey string, params Parameters) error {
	r.owner.assert()
	if r.cache == nil {
		panic("resolver: LoadIntoCache without caching")
	}
	host.Host = dnstypes.NormalizeHost(host.Host)
	flags := params.flags()

	_, _, err := r.resolveFromLiteralOrCache(host, isolationKey, params.QueryType, flags, params.Source, params.CacheUsage)
	if !dnstypes.IsCacheMiss(err) {
		// Already a literal or cached; nothing to load.
		return err
	}
	if !dnstypes.IsValidHostname(host.Host) {
		return dnstypes.NewError(dnstypes.CodeNotResolved)
	}
	_, _, err = r.resolveViaRules(host.Host, isolationKey, params.QueryType, flags, params.Source)
	return err
}

// Introspection accessors. Per-id variants panic for unknown ids.

// LastRequestPriority returns the initial priority of the most recent
// request to start resolving.
func (r *Resolver) LastRequestPriority() dnstypes.Priority { return r.lastPriority }

// LastRequestIsolationKey returns the isolation key of the most recent
// request to start resolving.
func (r *Resolver) LastRequestIsolationKey() string { return r.lastIsolationKey }

// LastSecureDNSPolicy returns the secure-DNS policy of the most recent
// request to start resolving.
func (r *Resolver) LastSecureDNSPolicy() dnstypes.SecureDNSPolicy { return r.lastSecureDNS }

// NumPending returns the number of registered requests.
func (r *Resolver) NumPending() int {
	r.owner.assert()
	return r.pending.len()
}

// LastID returns the highest pending request id, 0 when none are pending.
func (r *Resolver) LastID() uint64 {
	r.owner.assert()
	return r.pending.lastID()
}

// RequestHost returns the host of the pending request with the given id.
func (r *Resolver) RequestHost(id uint64) dnstypes.HostPort {
	return r.mustGet(id).host
}

// RequestPriority returns the priority of the pending request with the
// given id.
func (r *Resolver) RequestPriority(id uint64) dnstypes.Priority {
	return r.mustGet(id).priority
}

// RequestIsolationKey returns the isolation key of the pending request
// with the given id.
func (r *Resolver) RequestIsolationKey(id uint64) string {
	return r.mustGet(id).isolationKey
}

// NumResolves counts requests that entered the resolution algorithm.
func (r *Resolver) NumResolves() int { return r.numResolves }

// NumResolvesFromCache counts resolutions answered by the cache.
func (r *Resolver) NumResolvesFromCache() int { return r.numResolvesFromCache }

// NumNonLocalResolves counts resolutions that reached a rule engine.
func (r *Resolver) NumNonLocalResolves() int { return r.numNonLocalResolves }

func (r *Resolver) mustGet(id uint64) *Request {
	r.owner.assert()
	req := r.pending.get(id)
	if req == nil {
		panic("resolver: no pending request with that id")
	}
	return req
}

// resolve runs the resolution algorithm for a freshly started request.
// Returns nil / an immediate failure / the pending sentinel.
func (r *Resolver) resolve(req *Request) error {
	r.owner.assert()
	if r.shutdown {
		err := dnstypes.NewError(dnstypes.CodeShutDown)
		req.setError(err)
		return err
	}

	r.lastPriority = req.params.InitialPriority
	r.lastIsolationKey = req.isolationKey
	r.lastSecureDNS = req.params.SecureDNSPolicy
	r.numResolves++

	addrs, stale, err := r.resolveFromLiteralOrCache(
		req.host, req.isolationKey, req.params.QueryType, req.flags,
		req.params.Source, req.params.CacheUsage)
	req.setError(err)
	if err == nil && !req.params.Speculative {
		req.setAddressResults(addrs, stale)
	}
	if !dnstypes.IsCacheMiss(err) || req.params.Source == dnstypes.SourceLocalOnly {
		// Definitive literal/cache answer, or a local-only request that
		// must not fall through to the rule engines.
		return dnstypes.Squash(err)
	}

	// Just like a real resolver, refuse to touch invalid hostnames.
	if !dnstypes.IsValidHostname(req.host.Host) {
		err := dnstypes.NewError(dnstypes.CodeNotResolved)
		req.setError(err)
		return err
	}

	if r.synchronous {
		addrs, _, err := r.resolveViaRules(
			req.host.Host, req.isolationKey, req.params.QueryType, req.flags, req.params.Source)
		req.setError(err)
		if err == nil && !req.params.Speculative {
			req.setAddressResults(addrs, nil)
		}
		return dnstypes.Squash(err)
	}

	id := r.pending.register(req)
	req.id = id
	if !r.onDemand {
		r.queue.Post(func() { r.resolveNow(id) })
	}
	return dnstypes.NewError(dnstypes.CodePending)
}

// resolveNow completes the registered request id. No-op when the id is no
// longer registered (the request was cancelled, or an on-demand trigger
// raced with an earlier one).
func (r *Resolver) resolveNow(id uint64) {
	req := r.pending.remove(id)
	if req == nil {
		return
	}

	addrs, _, err := r.resolveViaRules(
		req.host.Host, req.isolationKey, req.params.QueryType, req.flags, req.params.Source)
	req.setError(err)
	if err == nil && !req.params.Speculative {
		req.setAddressResults(addrs, nil)
	}
	req.onAsyncCompleted(id, dnstypes.Squash(err))
}

// detachRequest removes a cancelled request from the pending table. The id
// must be registered; a cancelled request zeroes its id before the
// coordinator could see a second cancel.
func (r *Resolver) detachRequest(id uint64) {
	r.owner.assert()
	if r.pending.remove(id) == nil {
		panic("resolver: detach of unregistered request")
	}
}

// resolveFromLiteralOrCache short-circuits IP literals and consults the
// cache. The error is nil for a definitive success, CodeCacheMiss when the
// caller should proceed to the rule engines, and a definitive failure
// otherwise.
func (r *Resolver) resolveFromLiteralOrCache(
	host dnstypes.HostPort,
	isolationKey string,
	queryType dnstypes.QueryType,
	flags dnstypes.Flags,
	source dnstypes.Source,
	usage dnstypes.CacheUsage,
) (*dnstypes.AddressList, *hostcache.Staleness, error) {
	if addr, ok := dnstypes.ParseIPLiteral(host.Host); ok {
		if queryType != dnstypes.QueryTypeUnspecified &&
			queryType != dnstypes.QueryTypeForFamily(dnstypes.FamilyOf(addr)) {
			return nil, nil, dnstypes.NewError(dnstypes.CodeNotResolved)
		}
		al := &dnstypes.AddressList{Addrs: []netip.Addr{addr}}
		if flags.Has(dnstypes.FlagCanonName) {
			al.Aliases = []string{addr.String()}
		}
		return al, nil, nil
	}

	cacheAllowed := usage == dnstypes.CacheAllowed || usage == dnstypes.CacheStaleAllowed
	if r.cache == nil || !cacheAllowed {
		return nil, nil, dnstypes.NewError(dnstypes.CodeCacheMiss)
	}

	// Local-only requests search the cache for non-local-only results.
	effectiveSource := source
	if effectiveSource == dnstypes.SourceLocalOnly {
		effectiveSource = dnstypes.SourceAny
	}
	key := hostcache.Key{
		Host:         host.Host,
		QueryType:    queryType,
		Flags:        flags,
		Source:       effectiveSource,
		IsolationKey: isolationKey,
	}

	now := r.clock.Now()
	var entry *hostcache.Entry
	var stale *hostcache.Staleness
	if usage == dnstypes.CacheStaleAllowed {
		e, st := r.cache.LookupStale(key, now)
		entry = e
		if e != nil {
			stale = &st
		}
	} else {
		entry = r.cache.Lookup(key, now)
	}
	if entry == nil {
		return nil, nil, dnstypes.NewError(dnstypes.CodeCacheMiss)
	}

	if n, ok := r.invalidationCount[key]; ok {
		n--
		if n == 0 {
			r.cache.ForceExpire(key, now)
			delete(r.invalidationCount, key)
		} else {
			r.invalidationCount[key] = n
		}
	}

	r.numResolvesFromCache++
	addrs, err := entry.Result()
	r.record(host.Host, source, queryType, dnstypes.CodeOf(err), addrs, true)
	if err != nil {
		return nil, nil, err
	}
	return addrs, stale, nil
}

// resolveViaRules consults the source's rule set and writes the outcome to
// the cache: success entries get the configured TTL (plus an invalidation
// counter when armed), failures get TTL 0 so they overwrite.
func (r *Resolver) resolveViaRules(
	host string,
	isolationKey string,
	queryType dnstypes.QueryType,
	flags dnstypes.Flags,
	source dnstypes.Source,
) (*dnstypes.AddressList, int, error) {
	rs, ok := r.ruleSets[source]
	if !ok {
		panic("resolver: no rules for source " + source.String())
	}
	r.numNonLocalResolves++

	family := queryType.Family()
	addrs, osErr, err := rs.Resolve(host, family, flags)

	if r.cache != nil {
		key := hostcache.Key{
			Host:         host,
			QueryType:    queryType,
			Flags:        flags,
			Source:       source,
			IsolationKey: isolationKey,
		}
		var ttl time.Duration
		if err == nil {
			ttl = r.cacheTTL
			if r.invalidationSeed > 0 {
				r.invalidationCount[key] = r.invalidationSeed
			}
		}
		r.cache.Set(key, hostcache.NewEntry(dnstypes.CodeOf(err), addrs), r.clock.Now(), ttl)
	}

	r.record(host, source, queryType, dnstypes.CodeOf(err), addrs, false)
	r.log.Debug("resolved",
		"host", host,
		"source", source.String(),
		"qtype", queryType.String(),
		"code", dnstypes.CodeOf(err).String())
	return addrs, osErr, err
}

func (r *Resolver) record(host string, source dnstypes.Source, queryType dnstypes.QueryType, code dnstypes.Code, addrs *dnstypes.AddressList, fromCache bool) {
	if r.recorder == nil {
		return
	}
	n := 0
	if addrs != nil {
		n = len(addrs.Addrs)
	}
	rec := ResolutionRecord{
		Host:      host,
		Source:    source,
		QueryType: queryType,
		Code:      code,
		NumAddrs:  n,
		FromCache: fromCache,
	}
	if err := r.recorder.Record(rec); err != nil {
		r.log.Warn("journal write failed", "err", err)
	}
}
