// Package hostcache provides the TTL keyed store used by the resolution
// coordinator, with staleness-aware lookup and a bounded entry count.
//
// The cache is not safe for concurrent use: it belongs to the coordinator's
// single execution context, like every mutable structure outside the rule
// list.
package hostcache
