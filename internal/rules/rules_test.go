package rules

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LImboing/hostsim/internal/dnstypes"
)

// staticSystem returns a SystemResolveFunc that records the host it was
// asked for and answers with the given address.
func staticSystem(t *testing.T, addr string) (SystemResolveFunc, *string) {
	t.Helper()
	lastHost := new(string)
	fn := func(host string, family dnstypes.AddressFamily, flags dnstypes.Flags) (*dnstypes.AddressList, int, error) {
		*lastHost = host
		return &dnstypes.AddressList{Addrs: []netip.Addr{netip.MustParseAddr(addr)}}, 0, nil
	}
	return fn, lastHost
}

func TestFirstMatchWins(t *testing.T) {
	rs := NewRuleSet(nil, nil)
	rs.AddIPLiteralRuleWithAliases("host.test", "192.0.2.1")
	rs.AddSimulatedFailure("host.test")

	al, _, err := rs.Resolve("host.test", dnstypes.FamilyUnspecified, 0)
	require.NoError(t, err, "the earlier literal rule shadows the failure rule")
	require.Len(t, al.Addrs, 1)
	assert.Equal(t, netip.MustParseAddr("192.0.2.1"), al.Addrs[0])
}

func TestEarlierGlobShadowsLaterExactRule(t *testing.T) {
	rs := NewRuleSet(nil, nil)
	rs.AddSimulatedFailure("*.example.test")
	rs.AddIPLiteralRuleWithAliases("a.example.test", "10.0.0.1")

	_, _, err := rs.Resolve("a.example.test", dnstypes.FamilyUnspecified, 0)
	assert.True(t, dnstypes.IsNotResolved(err),
		"insertion order decides, not pattern specificity")
}

func TestGlobPatterns(t *testing.T) {
	rs := NewRuleSet(nil, nil)
	rs.AddIPLiteralRuleWithAliases("*.example.test", "192.0.2.7")

	al, _, err := rs.Resolve("www.example.test", dnstypes.FamilyUnspecified, 0)
	require.NoError(t, err)
	assert.Len(t, al.Addrs, 1)

	_, _, err = rs.Resolve("other.test", dnstypes.FamilyUnspecified, 0)
	assert.True(t, dnstypes.IsNotResolved(err), "non-matching host fails without a fallback")
}

func TestFamilyFilter(t *testing.T) {
	fn, lastHost := staticSystem(t, "192.0.2.1")
	rs := NewRuleSet(nil, fn)
	rs.AddRuleForAddressFamily("v4.test", dnstypes.FamilyIPv4, "replacement.test")

	_, _, err := rs.Resolve("v4.test", dnstypes.FamilyIPv4, dnstypes.FlagLoopbackOnly)
	require.NoError(t, err)
	assert.Equal(t, "replacement.test", *lastHost, "forward rules hand over the replacement")

	_, _, err = rs.Resolve("v4.test", dnstypes.FamilyIPv6, dnstypes.FlagLoopbackOnly)
	assert.True(t, dnstypes.IsNotResolved(err), "family-restricted rule skips other families")
}

func TestFlagMatching(t *testing.T) {
	rs := NewRuleSet(nil, nil)
	rs.AddIPLiteralRuleWithAliases("flags.test", "192.0.2.1")

	// Default rules carry the loopback-only bit, so both plain and
	// loopback-only callers match.
	_, _, err := rs.Resolve("flags.test", dnstypes.FamilyUnspecified, 0)
	assert.NoError(t, err)
	_, _, err = rs.Resolve("flags.test", dnstypes.FamilyUnspecified, dnstypes.FlagLoopbackOnly)
	assert.NoError(t, err)

	// A caller bit the rule does not carry prevents the match.
	rs2 := NewRuleSet(nil, nil)
	rs2.AddSimulatedFailure("flags.test") // no flags at all
	_, _, err = rs2.Resolve("flags.test", dnstypes.FamilyUnspecified, dnstypes.FlagLoopbackOnly)
	assert.True(t, dnstypes.IsNotResolved(err), "falls through, not a rule hit")
	assert.Equal(t, 1, rs2.Len(), "the failure rule was skipped, not consumed")

	// The no-IPv6 marker bit never affects matching.
	_, _, err = rs.Resolve("flags.test", dnstypes.FamilyUnspecified, dnstypes.FlagDefaultFamilySetDueToNoIPv6)
	assert.NoError(t, err)
}

func TestFailureKinds(t *testing.T) {
	rs := NewRuleSet(nil, nil)
	rs.AddSimulatedFailure("fail.test")
	rs.AddSimulatedTimeoutFailure("slow.test")

	_, _, err := rs.Resolve("fail.test", dnstypes.FamilyUnspecified, 0)
	assert.Equal(t, dnstypes.CodeNotResolved, dnstypes.CodeOf(err))

	_, _, err = rs.Resolve("slow.test", dnstypes.FamilyUnspecified, 0)
	assert.Equal(t, dnstypes.CodeTimedOut, dnstypes.CodeOf(err))
}

func TestHTTPSRecordFiresOnce(t *testing.T) {
	rs := NewRuleSet(nil, nil)
	rs.AddSimulatedHTTPSServiceFormRecord("https.test")
	rs.AddIPLiteralRuleWithAliases("https.test", "192.0.2.1")

	_, _, err := rs.Resolve("https.test", dnstypes.FamilyUnspecified, 0)
	assert.Equal(t, dnstypes.CodeHTTPSOnly, dnstypes.CodeOf(err))

	al, _, err := rs.Resolve("https.test", dnstypes.FamilyUnspecified, 0)
	require.NoError(t, err, "second lookup reaches the literal rule behind the one-shot")
	assert.Len(t, al.Addrs, 1)
	assert.Equal(t, 1, rs.Len(), "the one-shot removed itself")
}

func TestAddTimeFixUp(t *testing.T) {
	rs := NewRuleSet(nil, nil)

	// An IP-literal replacement silently becomes a literal rule.
	rs.AddRule("literal.test", "192.0.2.55")
	al, _, err := rs.Resolve("literal.test", dnstypes.FamilyUnspecified, 0)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.0.2.55"), al.Addrs[0])
	assert.Equal(t, KindIPLiteral, rs.Rules()[0].Kind)

	// An invalid-domain replacement becomes a failure rule.
	rs.AddRule("broken.test", "no spaces allowed")
	_, _, err = rs.Resolve("broken.test", dnstypes.FamilyUnspecified, 0)
	assert.True(t, dnstypes.IsNotResolved(err))
	assert.Equal(t, KindFail, rs.Rules()[1].Kind)
}

func TestIPLiteralAliasesDefaultToHost(t *testing.T) {
	rs := NewRuleSet(nil, nil)
	rs.AddIPLiteralRuleWithAliases("*.alias.test", "192.0.2.1")

	al, _, err := rs.Resolve("www.alias.test", dnstypes.FamilyUnspecified, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"www.alias.test"}, al.Aliases, "the queried host stands in for missing aliases")

	rs2 := NewRuleSet(nil, nil)
	rs2.AddIPLiteralRuleWithAliases("canon.test", "192.0.2.1", "canonical.test", "extra.test")
	al, _, err = rs2.Resolve("canon.test", dnstypes.FamilyUnspecified, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"canonical.test", "extra.test"}, al.Aliases)
}

func TestIPLiteralFamilyMismatchFails(t *testing.T) {
	rs := NewRuleSet(nil, nil)
	rs.AddIPLiteralRuleWithAliases("v4only.test", "192.0.2.1")

	_, _, err := rs.Resolve("v4only.test", dnstypes.FamilyIPv6, 0)
	assert.True(t, dnstypes.IsNotResolved(err), "an A record cannot answer an AAAA query")
}

func TestCatchAll(t *testing.T) {
	rs := NewCatchAll(nil)

	al, _, err := rs.Resolve("anything.at.all", dnstypes.FamilyUnspecified, 0)
	require.NoError(t, err)
	require.Len(t, al.Addrs, 1)
	assert.Equal(t, netip.MustParseAddr("127.0.0.1"), al.Addrs[0])
	assert.Equal(t, []string{"localhost"}, al.Aliases)

	_, _, err = rs.Resolve("anything.at.all", dnstypes.FamilyIPv6, 0)
	assert.True(t, dnstypes.IsNotResolved(err), "loopback A record cannot satisfy ipv6")
}

func TestExplicitRuleShadowsCatchAll(t *testing.T) {
	rs := NewCatchAll(nil)
	rs.AddSimulatedFailure("down.test")

	_, _, err := rs.Resolve("down.test", dnstypes.FamilyUnspecified, 0)
	assert.True(t, dnstypes.IsNotResolved(err))

	al, _, err := rs.Resolve("up.test", dnstypes.FamilyUnspecified, 0)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("127.0.0.1"), al.Addrs[0])
}

func TestLatencyRuleBlocks(t *testing.T) {
	rs := NewRuleSet(nil, nil)
	rs.AddRuleWithLatency("slow.test", "192.0.2.1", 30*time.Millisecond)

	start := time.Now()
	_, _, err := rs.Resolve("slow.test", dnstypes.FamilyUnspecified, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestDirectLookupUsesOriginalHost(t *testing.T) {
	fn, lastHost := staticSystem(t, "192.0.2.42")
	rs := NewRuleSet(nil, fn)
	rs.AllowDirectLookup("direct.test")

	al, _, err := rs.Resolve("direct.test", dnstypes.FamilyUnspecified, 0)
	require.NoError(t, err)
	assert.Equal(t, "direct.test", *lastHost)
	assert.Len(t, al.Addrs, 1)
}

func TestForwardWithoutSystemResolve(t *testing.T) {
	rs := NewRuleSet(nil, nil)
	rs.AllowDirectLookup("direct.test")

	_, _, err := rs.Resolve("direct.test", dnstypes.FamilyUnspecified, 0)
	assert.Equal(t, dnstypes.CodeUnexpected, dnstypes.CodeOf(err))
}

func TestMutationPanics(t *testing.T) {
	t.Run("after freeze", func(t *testing.T) {
		rs := NewRuleSet(nil, nil)
		rs.DisableModifications()
		assert.Panics(t, func() { rs.AddSimulatedFailure("x.test") })
		assert.Panics(t, func() { rs.ClearRules() })
	})
	t.Run("empty replacement", func(t *testing.T) {
		rs := NewRuleSet(nil, nil)
		assert.Panics(t, func() { rs.AddRule("x.test", "") })
		assert.Panics(t, func() { rs.AddRuleWithLatency("x.test", "", time.Millisecond) })
	})
	t.Run("ip literal pattern", func(t *testing.T) {
		rs := NewRuleSet(nil, nil)
		assert.Panics(t, func() { rs.AddIPLiteralRule("192.0.2.1", "192.0.2.2", "") })
	})
	t.Run("single empty alias", func(t *testing.T) {
		rs := NewRuleSet(nil, nil)
		assert.Panics(t, func() { rs.AddRuleWithFlags("x.test", "y.test", 0, "") })
	})
}

func TestClearRules(t *testing.T) {
	rs := NewRuleSet(nil, nil)
	rs.AddSimulatedFailure("a.test")
	rs.AddSimulatedFailure("b.test")
	require.Equal(t, 2, rs.Len())

	rs.ClearRules()
	assert.Equal(t, 0, rs.Len())
}
