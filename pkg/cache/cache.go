// Package cache remembers recently authenticated credentials so repeated
// requests from the same user do not each cost a directory round-trip.
//
// Only a keyed BLAKE2b fingerprint of each (identity, secret, scope) triple
// is kept. The scope names the directory that confirmed the pair, so a
// password accepted by one directory is never trusted for another.
// The key is a random salt drawn when the cache is created, so fingerprints
// are useless outside the process that produced them. Entries expire a
// fixed TTL after they were written; expiry is checked on lookup, and an
// optional sweep reclaims memory held by expired entries.
package cache

import (
	"container/list"
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/rhuss/ldapgate/pkg/debug"
	"github.com/rhuss/ldapgate/pkg/observability"
)

// DefaultTTL is used when Options.TTL is zero.
const DefaultTTL = 5 * time.Minute

// Options configures a Cache.
type Options struct {
	// TTL is how long an entry stays valid after Add. Default: 5 minutes.
	TTL time.Duration

	// MaxEntries bounds the number of identities kept. When the bound is
	// reached the least recently written entry is dropped. 0 means unbounded.
	MaxEntries int

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

type fingerprint [blake2b.Size256]byte

type entry struct {
	identity    string
	fingerprint fingerprint
	expiresAt   time.Time
	elem        *list.Element
}

// Cache is a TTL-bounded set of successfully authenticated credentials.
// All methods are safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   *list.List // front = most recently written

	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	salt  [32]byte
	dummy fingerprint // compared against when an identity has no entry
}

// New creates an empty cache with a fresh random salt.
func New(opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Cache{
		entries:    make(map[string]*entry),
		order:      list.New(),
		ttl:        opts.TTL,
		maxEntries: opts.MaxEntries,
		now:        opts.Now,
	}
	rand.Read(c.salt[:])
	rand.Read(c.dummy[:])
	return c
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Validate reports whether identity has a live entry whose fingerprint
// matches secret under scope.
//
// Lookups for unknown identities compare against a dummy fingerprint and all
// conditions are evaluated before they are combined, so a caller cannot tell
// a missing entry from an expired or mismatched one.
func (c *Cache) Validate(identity, secret, scope string) bool {
	fp := c.fingerprint(identity, secret, scope)
	now := c.now()

	c.mu.RLock()
	e, found := c.entries[identity]
	stored, expiresAt := c.dummy, time.Time{}
	if found {
		stored, expiresAt = e.fingerprint, e.expiresAt
	}
	c.mu.RUnlock()

	match := subtle.ConstantTimeCompare(fp[:], stored[:])
	fresh := boolToInt(now.Before(expiresAt))
	present := boolToInt(found)
	ok := match&fresh&present == 1

	if ok {
		observability.CacheLookupsTotal.WithLabelValues("hit").Inc()
	} else {
		observability.CacheLookupsTotal.WithLabelValues("miss").Inc()
	}
	debug.Log("cache", "lookup", "identity", identity, "hit", ok)
	return ok
}

// Add stores the fingerprint of (identity, secret, scope), replacing any
// previous entry for identity and restarting its TTL. An identity has at
// most one entry, so confirming it under a new scope forgets the old one.
func (c *Cache) Add(identity, secret, scope string) {
	fp := c.fingerprint(identity, secret, scope)
	expiresAt := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[identity]; ok {
		e.fingerprint = fp
		e.expiresAt = expiresAt
		c.order.MoveToFront(e.elem)
		return
	}

	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}

	e := &entry{identity: identity, fingerprint: fp, expiresAt: expiresAt}
	e.elem = c.order.PushFront(e)
	c.entries[identity] = e
	observability.CacheEntries.Set(float64(len(c.entries)))
}

// Evict removes the entry for identity, if any.
func (c *Cache) Evict(identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[identity]; ok {
		c.remove(e)
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep deletes expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, e := range c.entries {
		if !now.Before(e.expiresAt) {
			c.remove(e)
			removed++
		}
	}
	return removed
}

// Run sweeps expired entries every interval until ctx is cancelled.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				debug.Log("cache", "swept expired entries", "removed", n)
			}
		}
	}
}

// evictOldest drops the least recently written entry.
// Must be called with the write lock held.
func (c *Cache) evictOldest() {
	back := c.order.Back()
	if back == nil {
		return
	}
	e := back.Value.(*entry)
	debug.Log("cache", "evicting oldest entry", "identity", e.identity)
	c.remove(e)
}

// remove must be called with the write lock held.
func (c *Cache) remove(e *entry) {
	c.order.Remove(e.elem)
	delete(c.entries, e.identity)
	observability.CacheEntries.Set(float64(len(c.entries)))
}

func (c *Cache) fingerprint(identity, secret, scope string) fingerprint {
	// blake2b accepts keys up to 64 bytes, so a 32-byte salt cannot fail.
	h, _ := blake2b.New256(c.salt[:])
	// Length prefixes keep field boundaries unambiguous.
	for _, field := range []string{identity, secret, scope} {
		h.Write(binary.BigEndian.AppendUint64(nil, uint64(len(field))))
		h.Write([]byte(field))
	}

	var fp fingerprint
	h.Sum(fp[:0])
	return fp
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
