// Copyright (c) 2025 The Quazaa Development Team.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hostcache

// SanityCheck posts a request to scan every cached entry against the
// security oracle and remove any that have become newly denied. Callers
// normally never need to invoke this directly: RunSanityChecks below wires
// it to the oracle's BeginSanityCheck notifications.
func (c *Cache) SanityCheck() {
	select {
	case c.requests <- msgSanityCheck{}:
	case <-c.quit:
	}
}

// sanityCheckLocked implements spec.md §4.G: acquires the security oracle's
// read lock, then the cache mutex, in that fixed order, removes every entry
// whose address is newly denied, releases both locks, and then reports
// completion back to the oracle. It must only be called from the actor
// goroutine, before dispatch's own Lock would otherwise be taken for this
// message.
func (c *Cache) sanityCheckLocked() {
	if c.security == nil {
		return
	}

	c.security.RLock()
	c.mtx.Lock()

	var removed int
	it := c.buckets.front()
	for it != nil {
		s := it.Value.(*slot)
		next := it.Next()
		if s.host != nil && c.security.IsNewlyDeniedLocked(s.host.address) {
			c.removeEntryLocked(s.host)
			removed++
		}
		it = next
	}

	c.mtx.Unlock()
	// SanityCheckPerformed takes the oracle's write lock, so the read lock
	// must be released first.
	c.security.RUnlock()

	log.Debugf("Sanity check removed %d hosts", removed)
	c.security.SanityCheckPerformed()
}

// RunSanityChecks spawns a goroutine that forwards the security oracle's
// BeginSanityCheck notifications to the cache for as long as ctx is not
// done. It is the wiring spec.md §4.I describes between the oracle's
// beginSanityCheck event and the cache's sanityCheck slot, expressed as a
// channel consumer since this repository has no Qt-style signal bus.
func (c *Cache) RunSanityChecks(done <-chan struct{}) {
	requests := c.security.SanityCheckRequests()
	go func() {
		for {
			select {
			case <-requests:
				c.SanityCheck()
			case <-done:
				return
			case <-c.quit:
				return
			}
		}
	}()
}
