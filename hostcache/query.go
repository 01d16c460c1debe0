// Copyright (c) 2025 The Quazaa Development Team.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hostcache

import (
	"strings"

	"github.com/quazaa-development-team/g2hostcache/g2addr"
)

// Lock acquires the cache mutex. Callers that need a HostEntry handle
// returned by Get or Check to stay valid across more than one call must
// hold this for as long as they keep the handle, exactly as spec.md §4.H
// requires; the actor also holds this mutex for the duration of every
// mutation, which is what makes the guarantee possible.
func (c *Cache) Lock() { c.mtx.Lock() }

// Unlock releases the cache mutex acquired with Lock.
func (c *Cache) Unlock() { c.mtx.Unlock() }

// Get returns the live entry for addr, or nil if the cache holds none.
// The caller must hold the cache mutex via Lock for the lifetime of the
// returned handle.
func (c *Cache) Get(addr g2addr.Endpoint) *HostEntry {
	return c.addrIndex[addr.Key()]
}

// Check reports whether entry is still present in the cache. The caller
// must hold the cache mutex via Lock.
func (c *Cache) Check(entry *HostEntry) bool {
	if entry == nil {
		return false
	}
	return c.addrIndex[entry.address.Key()] == entry
}

// ExceptSet is a set of addresses GetConnectable must skip, identified by
// g2addr.Endpoint.Key().
type ExceptSet map[string]struct{}

// NewExceptSet builds an ExceptSet from a list of entries already excluded
// by the caller (for example, hosts a dialer currently has connections
// pending to).
func NewExceptSet(entries ...*HostEntry) ExceptSet {
	set := make(ExceptSet, len(entries))
	for _, e := range entries {
		if e != nil {
			set[e.address.Key()] = struct{}{}
		}
	}
	return set
}

// contains reports whether addr is excluded. A nil ExceptSet excludes
// nothing.
func (s ExceptSet) contains(addr g2addr.Endpoint) bool {
	if s == nil {
		return false
	}
	_, ok := s[addr.Key()]
	return ok
}

// GetConnectable returns the best current candidate for a connection
// attempt: the first connectable entry in priority order whose country
// matches (or country is g2addr.UnknownCountry, meaning any) and that is
// not in except. The caller must hold the cache mutex via Lock.
//
// If nothing matches, a maintenance pass runs inline (spec.md §4.H's
// maintainInternal, invoked without re-acquiring the lock this method's
// caller already holds) and the search retries once, ignoring country. A
// second miss returns nil.
func (c *Cache) GetConnectable(except ExceptSet, country string) *HostEntry {
	return c.getConnectableAttempt(except, country, 0)
}

func (c *Cache) getConnectableAttempt(except ExceptSet, country string, attempt int) *HostEntry {
	if c.buckets.Size() == 0 {
		return nil
	}

	anyCountry := country == "" || country == "ZZ"
	for it := c.buckets.front(); it != nil; it = it.Next() {
		s := it.Value.(*slot)
		if s.host == nil {
			continue
		}
		if !anyCountry && s.host.address.Country() != country {
			continue
		}
		if !s.host.connectable {
			continue
		}
		if except.contains(s.host.address) {
			continue
		}
		return s.host
	}

	if attempt > 0 {
		return nil
	}

	c.maintainLocked()
	return c.getConnectableAttempt(except, "ZZ", attempt+1)
}

// HasConnectable reports whether GetConnectable would currently return a
// non-nil entry for an unrestricted, any-country query. It takes the
// cache mutex itself.
func (c *Cache) HasConnectable() bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.GetConnectable(nil, "ZZ") != nil
}

// GetXTry renders up to ten of the cache's most promising hosts (those
// with zero or one recorded failure) as an X-Try-Hubs header value, per
// spec.md §6's wire format. It returns "" if the cache is empty or holds
// no eligible hosts. It takes the cache mutex itself.
func (c *Cache) GetXTry() string {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.buckets.Size() == 0 {
		return ""
	}

	const maxEntries = 10
	var items []string
	sentinels := 0

	for it := c.buckets.front(); it != nil && len(items) < maxEntries; it = it.Next() {
		s := it.Value.(*slot)
		if s.host == nil {
			sentinels++
			if sentinels >= 3 {
				break
			}
			continue
		}
		items = append(items, formatXTryEntry(s.host.address, s.host.timestamp))
	}

	if len(items) == 0 {
		return ""
	}
	return "X-Try-Hubs: " + strings.Join(items, ",")
}

// CanQuery reports whether a query may be sent to entry right now, per
// spec.md §4.A: governed by entry's retryAfter and the configured query
// throttle. It is a convenience for producer components (a crawler
// deciding whether to re-query a hub) that would otherwise have to read
// Config themselves. It reads entry's retryAfter and lastQuery, which
// SetRetryAfter and SetLastQuery change in place, so the caller must hold
// the cache mutex via Lock.
func (c *Cache) CanQuery(entry *HostEntry, now uint32) bool {
	return entry.canQuery(now, c.config().QueryThrottle)
}

// RequestHostInfo offers every real entry, in priority order, to the
// installed host info sink and returns the number of real entries visited,
// which equals Count(). Each offer is a non-blocking send: an entry is not
// delivered when no sink is installed or the sink is not ready to receive,
// and it is still counted. It takes the cache mutex itself.
func (c *Cache) RequestHostInfo() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	var n int
	for it := c.buckets.front(); it != nil; it = it.Next() {
		s := it.Value.(*slot)
		if s.host == nil {
			continue
		}
		c.emitHostInfo(s.host)
		n++
	}
	return n
}
