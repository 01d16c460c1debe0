// Copyright (c) 2025 The Quazaa Development Team.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hostcache

// maintainLocked runs one full maintenance pass: failure-ceiling reshape,
// size cap eviction, time-based persistence, and connectable
// recomputation, per spec.md §4.E. The caller must hold c.mtx.
func (c *Cache) maintainLocked() {
	now := c.now()
	cfg := c.config()

	c.reshapeLocked(cfg.FailureLimit)

	saved := false
	if cfg.HostCacheSize > 0 && uint32(c.buckets.Size()) > cfg.HostCacheSize {
		target := cfg.HostCacheSize - cfg.HostCacheSize/4
		failure := c.buckets.maxFailures()
		for uint32(c.buckets.Size()) > target {
			if !c.removeWorst(&failure) {
				break
			}
		}
		c.save()
		saved = true
	}
	if !saved && now > c.tLastSave+saveInterval {
		c.save()
	}

	c.recomputeConnectableLocked(now, cfg)
}

// reshapeLocked adjusts the sentinel array to match newMax, evicting
// overflow entries first when shrinking, per spec.md §4.E step 1. The
// caller must hold c.mtx.
func (c *Cache) reshapeLocked(newMax uint8) {
	cur := c.buckets.maxFailures()
	if cur == newMax {
		return
	}

	if cur > newMax {
		// Every entry with a failure count above newMax lies after
		// AP[newMax+1]; entries at or below newMax are left alone.
		for it := c.buckets.aps[newMax+1].Next(); it != nil; {
			next := it.Next()
			if s := it.Value.(*slot); s.host != nil {
				c.removeEntryLocked(s.host)
			}
			it = next
		}
		c.buckets.reshapeShrink(newMax)
		return
	}

	c.buckets.reshapeGrow(newMax)
}

// removeWorst evicts the oldest entry in the highest non-empty failure
// bucket at or below *failure, implementing spec.md §4.E's removeWorst
// primitive. *failure is decremented for each empty bucket skipped over.
// It reports whether an entry was actually removed. The caller must hold
// c.mtx.
func (c *Cache) removeWorst(failure *uint8) bool {
	if *failure > c.buckets.maxFailures() {
		*failure = c.buckets.maxFailures()
	}

	it := c.buckets.aps[*failure+1]
	it = it.Prev()

	for it != nil {
		s := it.Value.(*slot)
		if s.host != nil {
			break
		}
		if it == c.buckets.front() {
			break
		}
		it = it.Prev()
		if *failure > 0 {
			*failure--
		}
	}

	if it == nil {
		return false
	}
	s := it.Value.(*slot)
	if s.host == nil {
		return false
	}

	c.removeEntryLocked(s.host)
	return true
}

// recomputeConnectableLocked walks the sequence in priority order,
// updating Connectable on every currently-unconnectable real entry per
// spec.md §4.E step 4. The caller must hold c.mtx.
func (c *Cache) recomputeConnectableLocked(now uint32, cfg Config) {
	throttle := int64(cfg.ConnectThrottle)
	// front() is itself the AP[0] sentinel, so the first bucket's entries
	// are walked before bucket is ever incremented. Starting at -1 makes
	// the failure==0 bucket score with a k of 0, per spec.md §4.E's
	// T = connectThrottle + k*failurePenalty.
	bucket := int64(-1)

	for it := c.buckets.front(); it != nil; it = it.Next() {
		s := it.Value.(*slot)
		if s.host == nil {
			bucket++
			continue
		}
		if !s.host.connectable {
			deadline := int64(s.host.lastConnect) + throttle + bucket*int64(cfg.FailurePenalty)
			s.host.setConnectable(int64(now) > deadline)
		}
	}
}

// pruneOldHostsLocked drops entries whose timestamp is older than
// now-hostExpire, per spec.md §4.E's pruneOldHosts. It walks from the tail
// toward the head so erasing an element doesn't invalidate the iterator
// for entries not yet visited. The caller must hold c.mtx.
func (c *Cache) pruneOldHostsLocked(now uint32, hostExpire uint32) {
	expireBefore := int64(now) - int64(hostExpire)

	it := c.buckets.back()
	for it != nil && it != c.buckets.front() {
		s := it.Value.(*slot)
		if s.host == nil {
			it = it.Prev()
			continue
		}
		if int64(s.host.timestamp) >= expireBefore {
			it = it.Prev()
			continue
		}
		prev := it.Prev()
		c.removeEntryLocked(s.host)
		it = prev
	}
}

// pruneByQueryAckLocked drops entries with a nonzero Ack older than
// now-queryHostDeadline, per spec.md §4.E's pruneByQueryAck. The caller
// must hold c.mtx.
func (c *Cache) pruneByQueryAckLocked(now uint32, queryHostDeadline uint32) {
	ackExpireBefore := int64(now) - int64(queryHostDeadline)

	it := c.buckets.front()
	for it != nil {
		s := it.Value.(*slot)
		next := it.Next()
		if s.host != nil && s.host.ack != 0 && int64(s.host.ack) < ackExpireBefore {
			c.removeEntryLocked(s.host)
		}
		it = next
	}
}
