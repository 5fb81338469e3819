package rules

import (
	"fmt"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"github.com/LImboing/hostsim/internal/dnstypes"
)

// Kind selects how a matched rule produces its outcome.
type Kind int

const (
	// KindForward hands the effective host to the system-resolve
	// collaborator.
	KindForward Kind = iota
	// KindIPLiteral resolves to a configured literal address list.
	KindIPLiteral
	// KindFail simulates a name-not-resolved failure.
	KindFail
	// KindFailTimeout simulates a resolution timeout.
	KindFailTimeout
	// KindFailOnceHTTPS returns the HTTPS-only signal exactly once, then
	// removes itself from the list.
	KindFailOnceHTTPS
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindForward:
		return "forward"
	case KindIPLiteral:
		return "ip-literal"
	case KindFail:
		return "fail"
	case KindFailTimeout:
		return "fail-timeout"
	case KindFailOnceHTTPS:
		return "fail-once-https"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Rule is one pattern-plus-outcome entry.
//
// INVARIANT: Aliases is never the single empty string.
type Rule struct {
	Kind        Kind
	Pattern     string
	Family      dnstypes.AddressFamily
	Flags       dnstypes.Flags
	Replacement string
	Aliases     []string
	Latency     time.Duration

	matcher glob.Glob
}

// SystemResolveFunc is the opaque system-resolve collaborator invoked by
// forward rules. It reports the resolved addresses, an OS error number for
// diagnostics, and the resolution outcome.
type SystemResolveFunc func(host string, family dnstypes.AddressFamily, flags dnstypes.Flags) (*dnstypes.AddressList, int, error)

// RuleSet is an ordered, lockable list of rules with an optional fallback.
//
// The zero value is not usable; construct with NewRuleSet or NewCatchAll.
type RuleSet struct {
	mu    sync.Mutex
	rules []Rule

	fallback *RuleSet
	system   SystemResolveFunc

	// Guarded by mu like the rules themselves; mutation may race with a
	// resolution on another goroutine.
	modificationsAllowed bool
}

// NewRuleSet creates an empty rule set. fallback, when non-nil, receives
// hosts no rule matched; system backs forward rules and may be nil when no
// forward rule will ever fire.
func NewRuleSet(fallback *RuleSet, system SystemResolveFunc) *RuleSet {
	return &RuleSet{
		fallback:             fallback,
		system:               system,
		modificationsAllowed: true,
	}
}

// NewCatchAll creates a rule set whose fallback maps every host to
// 127.0.0.1 with alias "localhost". IPv6-only lookups against the catch-all
// fail, as a loopback A record cannot answer them.
func NewCatchAll(system SystemResolveFunc) *RuleSet {
	catchall := NewRuleSet(nil, system)
	catchall.AddIPLiteralRule("*", "127.0.0.1", "localhost")
	return NewRuleSet(catchall, system)
}

// AddRule appends a forward rule remapping hosts matching pattern to
// replacement, for any address family.
func (rs *RuleSet) AddRule(pattern, replacement string) {
	rs.AddRuleForAddressFamily(pattern, dnstypes.FamilyUnspecified, replacement)
}

// AddRuleForAddressFamily appends a forward rule restricted to one address
// family. replacement must be non-empty.
func (rs *RuleSet) AddRuleForAddressFamily(pattern string, family dnstypes.AddressFamily, replacement string) {
	if replacement == "" {
		panic("rules: AddRuleForAddressFamily requires a replacement")
	}
	rs.add(Rule{
		Kind:        KindForward,
		Pattern:     pattern,
		Family:      family,
		Flags:       dnstypes.FlagLoopbackOnly,
		Replacement: replacement,
	})
}

// AddRuleWithFlags appends a forward rule with explicit required flags and
// optional aliases. replacement must be non-empty.
func (rs *RuleSet) AddRuleWithFlags(pattern, replacement string, flags dnstypes.Flags, aliases ...string) {
	if replacement == "" {
		panic("rules: AddRuleWithFlags requires a replacement")
	}
	rs.add(Rule{
		Kind:        KindForward,
		Pattern:     pattern,
		Flags:       flags,
		Replacement: replacement,
		Aliases:     aliases,
	})
}

// AddIPLiteralRule appends a rule resolving pattern to a comma-separated IP
// literal list. A non-empty canonicalName becomes the sole alias and turns
// on the canon-name flag.
//
// The pattern itself must not be an IP literal: literals short-circuit in
// the coordinator and can never be remapped.
func (rs *RuleSet) AddIPLiteralRule(pattern, ipLiteral, canonicalName string) {
	if _, ok := dnstypes.ParseIPLiteral(pattern); ok {
		panic(fmt.Sprintf("rules: pattern %q is an IP literal and cannot be remapped", pattern))
	}
	flags := dnstypes.FlagLoopbackOnly
	var aliases []string
	if canonicalName != "" {
		flags |= dnstypes.FlagCanonName
		aliases = []string{canonicalName}
	}
	rs.add(Rule{
		Kind:        KindIPLiteral,
		Pattern:     pattern,
		Flags:       flags,
		Replacement: ipLiteral,
		Aliases:     aliases,
	})
}

// AddIPLiteralRuleWithAliases is AddIPLiteralRule with a full alias list.
func (rs *RuleSet) AddIPLiteralRuleWithAliases(pattern, ipLiteral string, aliases ...string) {
	if _, ok := dnstypes.ParseIPLiteral(pattern); ok {
		panic(fmt.Sprintf("rules: pattern %q is an IP literal and cannot be remapped", pattern))
	}
	flags := dnstypes.FlagLoopbackOnly
	if len(aliases) > 0 {
		flags |= dnstypes.FlagCanonName
	}
	rs.add(Rule{
		Kind:        KindIPLiteral,
		Pattern:     pattern,
		Flags:       flags,
		Replacement: ipLiteral,
		Aliases:     aliases,
	})
}

// AddRuleWithLatency appends a forward rule that blocks the caller for the
// given duration before resolving. Meaningful only under synchronous
// completion.
func (rs *RuleSet) AddRuleWithLatency(pattern, replacement string, latency time.Duration) {
	if replacement == "" {
		panic("rules: AddRuleWithLatency requires a replacement")
	}
	rs.add(Rule{
		Kind:        KindForward,
		Pattern:     pattern,
		Flags:       dnstypes.FlagLoopbackOnly,
		Replacement: replacement,
		Latency:     latency,
	})
}

// AllowDirectLookup appends a forward rule with no remapping: matching
// hosts go straight to the system-resolve collaborator.
func (rs *RuleSet) AllowDirectLookup(pattern string) {
	rs.add(Rule{
		Kind:    KindForward,
		Pattern: pattern,
		Flags:   dnstypes.FlagLoopbackOnly,
	})
}

// AddSimulatedFailure appends a rule failing matches with NotResolved.
func (rs *RuleSet) AddSimulatedFailure(pattern string, flags ...dnstypes.Flags) {
	rs.add(Rule{Kind: KindFail, Pattern: pattern, Flags: combine(flags)})
}

// AddSimulatedTimeoutFailure appends a rule failing matches with TimedOut.
func (rs *RuleSet) AddSimulatedTimeoutFailure(pattern string, flags ...dnstypes.Flags) {
	rs.add(Rule{Kind: KindFailTimeout, Pattern: pattern, Flags: combine(flags)})
}

// AddSimulatedHTTPSServiceFormRecord appends a one-shot rule returning the
// HTTPS-only signal. The rule removes itself on its first match.
func (rs *RuleSet) AddSimulatedHTTPSServiceFormRecord(pattern string) {
	rs.add(Rule{Kind: KindFailOnceHTTPS, Pattern: pattern})
}

func combine(flags []dnstypes.Flags) dnstypes.Flags {
	var out dnstypes.Flags
	for _, f := range flags {
		out |= f
	}
	return out
}

// ClearRules removes every rule. Panics after DisableModifications.
func (rs *RuleSet) ClearRules() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if !rs.modificationsAllowed {
		panic("rules: modifications disabled")
	}
	rs.rules = nil
}

// DisableModifications freezes the rule list. Any later mutation panics.
func (rs *RuleSet) DisableModifications() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.modificationsAllowed = false
}

// Rules returns a snapshot of the current rule list.
func (rs *RuleSet) Rules() []Rule {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// Len returns the number of rules, not counting the fallback's.
func (rs *RuleSet) Len() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.rules)
}

// add applies the add-time fix-up and appends the rule.
//
// Forward rules get rewritten so the system-resolve collaborator only ever
// sees plausible DNS names: an IP-literal replacement turns the rule into an
// IP-literal rule, and a non-empty invalid-domain replacement turns it into
// a failure rule.
func (rs *RuleSet) add(r Rule) {
	for _, alias := range r.Aliases {
		if alias == "" && len(r.Aliases) == 1 {
			panic("rules: aliases must not be a single empty string")
		}
	}

	if r.Kind == KindForward && r.Replacement != "" {
		if _, ok := dnstypes.ParseIPLiteral(r.Replacement); ok {
			r.Kind = KindIPLiteral
		} else if !dnstypes.IsValidHostname(r.Replacement) {
			r.Kind = KindFail
		}
	}

	m, err := glob.Compile(r.Pattern)
	if err != nil {
		panic(fmt.Sprintf("rules: bad host pattern %q: %v", r.Pattern, err))
	}
	r.matcher = m

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if !rs.modificationsAllowed {
		panic("rules: modifications disabled")
	}
	rs.rules = append(rs.rules, r)
}

// Resolve scans the rules in insertion order and applies the first match.
//
// A rule matches when its family filter is unspecified or equal to the
// requested family, every caller flag bit is covered by the rule's flags
// (the default-family-due-to-no-IPv6 bit is ignored), and the host
// glob-matches the pattern. No match delegates to the fallback, or fails
// with NotResolved when there is none.
func (rs *RuleSet) Resolve(host string, family dnstypes.AddressFamily, flags dnstypes.Flags) (*dnstypes.AddressList, int, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	callerFlags := flags &^ dnstypes.FlagDefaultFamilySetDueToNoIPv6
	for i := range rs.rules {
		r := &rs.rules[i]
		if r.Family != dnstypes.FamilyUnspecified && r.Family != family {
			continue
		}
		// The caller's flags must be a subset of the rule's; rules added
		// with extra flag bits still answer plainer requests.
		if r.Flags&callerFlags != callerFlags {
			continue
		}
		if !r.matcher.Match(host) {
			continue
		}

		if r.Latency > 0 {
			time.Sleep(r.Latency)
		}

		effectiveHost := host
		if r.Replacement != "" {
			effectiveHost = r.Replacement
		}

		switch r.Kind {
		case KindFail:
			return nil, 0, dnstypes.NewError(dnstypes.CodeNotResolved)
		case KindFailTimeout:
			return nil, 0, dnstypes.NewError(dnstypes.CodeTimedOut)
		case KindFailOnceHTTPS:
			// The HTTPS record fires for the first request only; drop the
			// rule before anything else can observe it.
			rs.rules = append(rs.rules[:i], rs.rules[i+1:]...)
			return nil, 0, dnstypes.NewError(dnstypes.CodeHTTPSOnly)
		case KindForward:
			if rs.system == nil {
				return nil, 0, dnstypes.NewErrorf(dnstypes.CodeUnexpected, "no system-resolve collaborator for %q", effectiveHost)
			}
			return rs.system(effectiveHost, family, flags)
		case KindIPLiteral:
			aliases := r.Aliases
			if len(aliases) == 0 {
				aliases = []string{host}
			}
			raw, err := dnstypes.ParseAddressList(effectiveHost, aliases)
			if err != nil {
				return nil, 0, err
			}
			filtered := raw.FilterFamily(family)
			if filtered.Empty() {
				return nil, 0, dnstypes.NewError(dnstypes.CodeNotResolved)
			}
			return filtered, 0, nil
		default:
			return nil, 0, dnstypes.NewErrorf(dnstypes.CodeUnexpected, "unknown rule kind %d", int(r.Kind))
		}
	}

	if rs.fallback != nil {
		// The fallback has its own lock; rule order inside each set is
		// independent.
		return rs.fallback.Resolve(host, family, flags)
	}
	return nil, 0, dnstypes.NewError(dnstypes.CodeNotResolved)
}
