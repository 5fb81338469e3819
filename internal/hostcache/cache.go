package hostcache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/LImboing/hostsim/internal/dnstypes"
)

// DefaultMaxEntries bounds the cache when no explicit size is configured.
const DefaultMaxEntries = 100

// Key identifies one cached resolution result.
type Key struct {
	Host         string
	QueryType    dnstypes.QueryType
	Flags        dnstypes.Flags
	Source       dnstypes.Source
	IsolationKey string
}

// Entry is one cached resolution result.
//
// INVARIANT: only success entries carry a nonzero TTL. A failure write uses
// TTL 0, which overwrites any prior entry and misses on the next lookup.
type Entry struct {
	Code      dnstypes.Code
	Addresses *dnstypes.AddressList

	ttl       time.Duration
	inserted  time.Time
	staleHits int
}

// NewEntry creates an entry for the given outcome. addresses may be nil for
// failures.
func NewEntry(code dnstypes.Code, addresses *dnstypes.AddressList) *Entry {
	return &Entry{Code: code, Addresses: addresses}
}

// Result converts the entry back into the (addresses, error) pair the
// coordinator works with. Addresses are cloned so callers cannot mutate
// cache state.
func (e *Entry) Result() (*dnstypes.AddressList, error) {
	if e.Code == dnstypes.CodeOK {
		return e.Addresses.Clone(), nil
	}
	return nil, dnstypes.NewError(e.Code)
}

// TTL returns the entry's configured time to live.
func (e *Entry) TTL() time.Duration { return e.ttl }

// expiresAt is zero-TTL-aware: a zero TTL expires immediately.
func (e *Entry) expired(now time.Time) bool {
	return !now.Before(e.inserted.Add(e.ttl))
}

// Staleness describes how far past expiry a stale-allowed lookup reached.
type Staleness struct {
	// ExpiredBy is how long ago the entry logically expired. Zero or
	// negative for fresh entries.
	ExpiredBy time.Duration
	// StaleHits counts stale-allowed lookups that returned this entry
	// after expiry, this one included.
	StaleHits int
}

// IsStale reports whether the lookup actually returned expired data.
func (s Staleness) IsStale() bool { return s.StaleHits > 0 }

// Cache is a TTL keyed store with LRU eviction.
type Cache struct {
	lru *simplelru.LRU[Key, *Entry]
}

// New creates a cache bounded to maxEntries; zero or negative means
// DefaultMaxEntries.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	lru, err := simplelru.NewLRU[Key, *Entry](maxEntries, nil)
	if err != nil {
		// Size is validated above; NewLRU only fails on size < 1.
		panic(err)
	}
	return &Cache{lru: lru}
}

// Set stores an entry under key with the given TTL, overwriting any prior
// entry.
func (c *Cache) Set(key Key, entry *Entry, now time.Time, ttl time.Duration) {
	e := *entry
	e.ttl = ttl
	e.inserted = now
	e.staleHits = 0
	c.lru.Add(key, &e)
}

// Lookup returns the entry for key if present and unexpired, else nil.
func (c *Cache) Lookup(key Key, now time.Time) *Entry {
	e, ok := c.lru.Get(key)
	if !ok || e.expired(now) {
		return nil
	}
	return e
}

// LookupStale returns the entry for key even when logically expired,
// together with staleness metadata. Missing keys return (nil, zero).
func (c *Cache) LookupStale(key Key, now time.Time) (*Entry, Staleness) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, Staleness{}
	}
	var stale Staleness
	if e.expired(now) {
		e.staleHits++
		stale.ExpiredBy = now.Sub(e.inserted.Add(e.ttl))
		stale.StaleHits = e.staleHits
	}
	return e, stale
}

// ForceExpire rewrites the entry under key with TTL 0 so the next lookup
// misses. No-op for missing keys.
func (c *Cache) ForceExpire(key Key, now time.Time) {
	if e, ok := c.lru.Peek(key); ok {
		c.Set(key, e, now, 0)
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int { return c.lru.Len() }

// Clear removes every entry.
func (c *Cache) Clear() { c.lru.Purge() }
