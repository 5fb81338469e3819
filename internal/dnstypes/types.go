package dnstypes

import (
	"fmt"

	"github.com/miekg/dns"
)

// QueryType identifies the DNS record type a request asks for.
//
// Values reuse the wire-format type codes from github.com/miekg/dns so that
// a QueryType can be compared or logged against real DNS tooling.
// QueryTypeUnspecified (0) means "either address family".
type QueryType uint16

const (
	QueryTypeUnspecified QueryType = 0
	QueryTypeA           QueryType = QueryType(dns.TypeA)
	QueryTypeAAAA        QueryType = QueryType(dns.TypeAAAA)
	QueryTypeTXT         QueryType = QueryType(dns.TypeTXT)
	QueryTypePTR         QueryType = QueryType(dns.TypePTR)
)

// String returns the conventional record-type mnemonic.
func (t QueryType) String() string {
	if t == QueryTypeUnspecified {
		return "UNSPECIFIED"
	}
	if s, ok := dns.TypeToString[uint16(t)]; ok {
		return s
	}
	return fmt.Sprintf("TYPE%d", uint16(t))
}

// AddressFamily identifies an IP address family.
type AddressFamily int

const (
	FamilyUnspecified AddressFamily = iota
	FamilyIPv4
	FamilyIPv6
)

// String implements fmt.Stringer.
func (f AddressFamily) String() string {
	switch f {
	case FamilyUnspecified:
		return "unspecified"
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// Family converts a query type to the address family it selects.
// Non-address query types map to FamilyUnspecified.
func (t QueryType) Family() AddressFamily {
	switch t {
	case QueryTypeA:
		return FamilyIPv4
	case QueryTypeAAAA:
		return FamilyIPv6
	default:
		return FamilyUnspecified
	}
}

// QueryTypeForFamily converts an address family to the query type that
// selects it.
func QueryTypeForFamily(f AddressFamily) QueryType {
	switch f {
	case FamilyIPv4:
		return QueryTypeA
	case FamilyIPv6:
		return QueryTypeAAAA
	default:
		return QueryTypeUnspecified
	}
}

// Flags is a bit set of resolution modifiers carried by requests and rules.
type Flags int

const (
	// FlagCanonName requests that the canonical name be resolved alongside
	// the addresses.
	FlagCanonName Flags = 1 << iota
	// FlagLoopbackOnly restricts resolution to loopback interfaces.
	FlagLoopbackOnly
	// FlagDefaultFamilySetDueToNoIPv6 records that the requested family was
	// forced by missing IPv6 connectivity. It never affects rule matching.
	FlagDefaultFamilySetDueToNoIPv6
)

// Has reports whether every bit of mask is set.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

// Source selects which resolution mechanism a request may use.
type Source int

const (
	// SourceAny lets the simulator pick any mechanism.
	SourceAny Source = iota
	// SourceSystem restricts resolution to the system resolver rules.
	SourceSystem
	// SourceDNS restricts resolution to the DNS rules.
	SourceDNS
	// SourceMulticastDNS restricts resolution to the multicast DNS rules.
	SourceMulticastDNS
	// SourceLocalOnly restricts resolution to literals and the cache; a
	// local-only request never reaches a rule engine.
	SourceLocalOnly
)

// String implements fmt.Stringer.
func (s Source) String() string {
	switch s {
	case SourceAny:
		return "any"
	case SourceSystem:
		return "system"
	case SourceDNS:
		return "dns"
	case SourceMulticastDNS:
		return "mdns"
	case SourceLocalOnly:
		return "local-only"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// ParseSource maps a mnemonic back to a Source. Used by the CLI.
func ParseSource(s string) (Source, error) {
	switch s {
	case "any", "":
		return SourceAny, nil
	case "system":
		return SourceSystem, nil
	case "dns":
		return SourceDNS, nil
	case "mdns":
		return SourceMulticastDNS, nil
	case "local-only":
		return SourceLocalOnly, nil
	default:
		return SourceAny, fmt.Errorf("unknown source %q", s)
	}
}

// Priority orders requests for introspection purposes. The simulator records
// priorities but never schedules by them.
type Priority int

const (
	PriorityIdle Priority = iota
	PriorityLowest
	PriorityLow
	PriorityMedium
	PriorityHighest
)

// PriorityDefault is the priority assigned when a caller does not choose one.
const PriorityDefault = PriorityIdle

// SecureDNSPolicy records whether a request permits secure DNS.
type SecureDNSPolicy int

const (
	SecureDNSAllow SecureDNSPolicy = iota
	SecureDNSDisable
)

// CacheUsage controls how a request interacts with the cache.
type CacheUsage int

const (
	// CacheAllowed permits non-stale cache hits.
	CacheAllowed CacheUsage = iota
	// CacheStaleAllowed additionally permits logically expired hits,
	// reported together with staleness metadata.
	CacheStaleAllowed
	// CacheDisallowed bypasses the cache entirely.
	CacheDisallowed
)

// HostPort is a hostname (or IP literal) with an optional port.
type HostPort struct {
	Host string
	Port uint16
}

// String implements fmt.Stringer.
func (hp HostPort) String() string {
	if hp.Port == 0 {
		return hp.Host
	}
	return fmt.Sprintf("%s:%d", hp.Host, hp.Port)
}
