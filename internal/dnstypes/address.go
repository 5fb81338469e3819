package dnstypes

import (
	"net/netip"
	"strings"
)

// AddressList is an ordered set of resolved addresses plus the DNS aliases
// discovered on the way to them.
type AddressList struct {
	Addrs   []netip.Addr
	Aliases []string
}

// Empty reports whether the list holds no addresses.
func (al *AddressList) Empty() bool { return al == nil || len(al.Addrs) == 0 }

// Clone returns a deep copy. Cached entries hand out clones so callers
// cannot mutate cache state.
func (al *AddressList) Clone() *AddressList {
	if al == nil {
		return nil
	}
	out := &AddressList{
		Addrs:   make([]netip.Addr, len(al.Addrs)),
		Aliases: make([]string, len(al.Aliases)),
	}
	copy(out.Addrs, al.Addrs)
	copy(out.Aliases, al.Aliases)
	return out
}

// FilterFamily returns a copy containing only addresses of the given family.
// FamilyUnspecified keeps everything. Aliases are preserved.
func (al *AddressList) FilterFamily(f AddressFamily) *AddressList {
	out := &AddressList{Aliases: append([]string(nil), al.Aliases...)}
	for _, a := range al.Addrs {
		if f == FamilyUnspecified || FamilyOf(a) == f {
			out.Addrs = append(out.Addrs, a)
		}
	}
	return out
}

// Endpoints pairs every address with the given port.
func (al *AddressList) Endpoints(port uint16) []netip.AddrPort {
	if al == nil {
		return nil
	}
	eps := make([]netip.AddrPort, len(al.Addrs))
	for i, a := range al.Addrs {
		eps[i] = netip.AddrPortFrom(a, port)
	}
	return eps
}

// FamilyOf returns the address family of an IP address. 4-in-6 mapped
// addresses count as IPv4, matching how literals like ::ffff:1.2.3.4 answer
// an A query.
func FamilyOf(a netip.Addr) AddressFamily {
	if a.Is4() || a.Is4In6() {
		return FamilyIPv4
	}
	return FamilyIPv6
}

// ParseIPLiteral parses a host string as a numeric IP literal. The second
// return is false when the string is not a literal.
func ParseIPLiteral(host string) (netip.Addr, bool) {
	a, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return a, true
}

// ParseAddressList parses a comma-separated list of IP literals into an
// AddressList carrying the given aliases. Whitespace around entries is
// trimmed. An unparsable entry yields CodeUnexpected.
func ParseAddressList(list string, aliases []string) (*AddressList, error) {
	out := &AddressList{Aliases: append([]string(nil), aliases...)}
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		a, ok := ParseIPLiteral(part)
		if !ok {
			return nil, NewErrorf(CodeUnexpected, "not a supported IP literal: %q", part)
		}
		out.Addrs = append(out.Addrs, a)
	}
	return out, nil
}
