package dnstypes

import (
	"strings"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"
)

// IsValidHostname reports whether host is a syntactically valid DNS name.
//
// Mirrors the strictness of a real resolver: non-empty, at most 253
// characters of presentation form, valid label structure, and not itself an
// IP literal.
func IsValidHostname(host string) bool {
	if host == "" || len(host) > 253 {
		return false
	}
	if _, ok := ParseIPLiteral(host); ok {
		return false
	}
	if _, ok := dns.IsDomainName(host); !ok {
		return false
	}
	// dns.IsDomainName accepts characters a resolver would reject.
	for _, r := range host {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '.' || r == '_':
		default:
			return false
		}
	}
	return !strings.Contains(host, "..")
}

// NormalizeHost lowercases a host, strips one trailing dot, and applies
// IDNA mapping so unicode names compare equal to their punycode form.
// Unmappable input is returned lowercased so validation can reject it later.
func NormalizeHost(host string) string {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	mapped, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return host
	}
	return mapped
}

// SanitizeAliases normalizes an alias list: each entry is normalized,
// empties are dropped, and duplicates keep their first position.
func SanitizeAliases(aliases []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(aliases))
	for _, alias := range aliases {
		alias = NormalizeHost(alias)
		if alias == "" {
			continue
		}
		if _, dup := seen[alias]; dup {
			continue
		}
		seen[alias] = struct{}{}
		out = append(out, alias)
	}
	return out
}
