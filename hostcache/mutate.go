// Copyright (c) 2025 The Quazaa Development Team.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hostcache

import (
	"strings"
	"time"

	"github.com/quazaa-development-team/g2hostcache/g2addr"
)

// Producer is the interface a crawl-ingestion component or a handshake
// state machine depends on to feed candidate hubs into the cache. It is
// satisfied by *Cache; collaborators outside this repository's scope (the
// G2 crawler, the handshake engine) are expected to hold one of these
// rather than a concrete *Cache, per spec.md §1's treatment of them as
// external collaborators.
type Producer interface {
	Add(addr g2addr.Endpoint, ts uint32)
	AddKey(addr g2addr.Endpoint, ts uint32, keyHost g2addr.Endpoint, key, now uint32)
	AddAck(addr g2addr.Endpoint, ts, ack, now uint32)
	UpdateFailures(addr g2addr.Endpoint, failures uint8)
	OnFailure(addr g2addr.Endpoint)
	Remove(addr g2addr.Endpoint)
	AddXTry(header string)
}

var _ Producer = (*Cache)(nil)

// Add posts a sighting of addr at timestamp ts to the mailbox. A bare pong
// or LNI sighting from the crawler, carrying no query key or ack, maps
// directly to this call.
func (c *Cache) Add(addr g2addr.Endpoint, ts uint32) {
	select {
	case c.requests <- msgAdd{addr: addr, ts: ts}:
	case <-c.quit:
	}
}

// AddKey posts a sighting of addr together with a freshly issued query key.
// A handshake or crawl exchange that yields a query key maps to this call.
func (c *Cache) AddKey(addr g2addr.Endpoint, ts uint32, keyHost g2addr.Endpoint, key, now uint32) {
	select {
	case c.requests <- msgAddKey{addr: addr, ts: ts, keyHost: keyHost, key: key, now: now}:
	case <-c.quit:
	}
}

// AddAck posts a sighting of addr together with an acknowledgement
// timestamp. A pong that required an acknowledged query maps to this call.
func (c *Cache) AddAck(addr g2addr.Endpoint, ts, ack, now uint32) {
	select {
	case c.requests <- msgAddAck{addr: addr, ts: ts, ack: ack, now: now}:
	case <-c.quit:
	}
}

// UpdateFailures posts a request to overwrite addr's failure count.
func (c *Cache) UpdateFailures(addr g2addr.Endpoint, failures uint8) {
	select {
	case c.requests <- msgUpdateFailures{addr: addr, failures: failures}:
	case <-c.quit:
	}
}

// OnFailure posts a connection failure for addr, bumping its failure count
// by one (capped at the configured limit). A failed handshake attempt maps
// to this call.
func (c *Cache) OnFailure(addr g2addr.Endpoint) {
	select {
	case c.requests <- msgOnFailure{addr: addr}:
	case <-c.quit:
	}
}

// Remove posts a request to drop addr from the cache unconditionally.
func (c *Cache) Remove(addr g2addr.Endpoint) {
	select {
	case c.requests <- msgRemove{addr: addr}:
	case <-c.quit:
	}
}

// AddXTry posts a comma-separated X-Try-Hubs header for parsing and bulk
// ingestion.
func (c *Cache) AddXTry(header string) {
	select {
	case c.requests <- msgAddXTry{header: header}:
	case <-c.quit:
	}
}

// findLocked returns the live entry for addr, or nil if none exists. The
// caller must hold c.mtx.
func (c *Cache) findLocked(addr g2addr.Endpoint) *HostEntry {
	return c.addrIndex[addr.Key()]
}

// addCore is the mutation engine's single entry point for admitting a host,
// implementing spec.md §4.D's addCore algorithm. The caller must hold c.mtx.
func (c *Cache) addCore(addr g2addr.Endpoint, ts, now uint32, failures uint8) *HostEntry {
	if !addr.IsValid() || addr.Firewalled() {
		return nil
	}
	cfg := c.config()
	if failures > cfg.FailureLimit {
		return nil
	}
	if c.security != nil && c.security.IsDenied(addr) {
		return nil
	}
	if local := c.localAddress(); !local.IsZero() && addr.Equal(local) {
		return nil
	}

	if ts > now {
		ts = now - 60
	}

	if existing := c.findLocked(addr); existing != nil {
		return c.replaceLocked(existing, ts, failures)
	}

	entry := NewHostEntry(addr, ts, failures)
	entry.id = c.nextEntryID()
	c.buckets.insert(entry)
	c.addrIndex[addr.Key()] = entry
	c.emitHostInfo(entry)
	return entry
}

// replaceLocked removes existing and inserts a clone carrying the given
// timestamp and failure count, keeping addrIndex and bucket placement
// consistent. The caller must hold c.mtx.
func (c *Cache) replaceLocked(existing *HostEntry, ts uint32, failures uint8) *HostEntry {
	c.buckets.remove(existing.selfIter)
	replacement := existing.Clone(ts, failures)
	c.buckets.insert(replacement)
	c.addrIndex[replacement.address.Key()] = replacement
	c.emitHostInfo(replacement)
	return replacement
}

// removeEntryLocked erases entry from the bucket list and the address
// index. The caller must hold c.mtx.
func (c *Cache) removeEntryLocked(entry *HostEntry) {
	c.buckets.remove(entry.selfIter)
	delete(c.addrIndex, entry.address.Key())
}

// updateFailures implements spec.md §4.D's updateFailures compound
// operation. The caller must hold c.mtx.
func (c *Cache) updateFailures(addr g2addr.Endpoint, failures uint8) {
	existing := c.findLocked(addr)
	if existing == nil {
		return
	}
	if failures > c.config().FailureLimit {
		c.removeEntryLocked(existing)
		return
	}
	c.replaceLocked(existing, existing.timestamp, failures)
}

// onFailure implements spec.md §4.D's onFailure compound operation. The
// caller must hold c.mtx.
func (c *Cache) onFailure(addr g2addr.Endpoint) {
	existing := c.findLocked(addr)
	if existing == nil {
		return
	}
	if existing.failures >= c.config().FailureLimit {
		// Already at the ceiling: the entry stays in place. Maintenance
		// does not evict it for that reason alone; it is removed only by a
		// FailureLimit reduction below its count, the size cap, expiry at
		// load, a sanity pass, or Remove.
		return
	}
	c.replaceLocked(existing, existing.timestamp, existing.failures+1)
}

// removeAddr implements spec.md §4.D's remove compound operation. The
// caller must hold c.mtx.
func (c *Cache) removeAddr(addr g2addr.Endpoint) {
	existing := c.findLocked(addr)
	if existing == nil {
		return
	}
	c.removeEntryLocked(existing)
}

// addXTry parses a comma-separated "ip:port [ISO8601Z]" list and admits
// each valid, non-denied token via addCore, stamping a bare "ip:port" with
// no timestamp field as now. The caller must hold c.mtx.
func (c *Cache) addXTry(header string, now uint32) {
	for _, item := range strings.Split(header, ",") {
		fields := strings.Fields(strings.TrimSpace(item))
		if len(fields) < 1 || len(fields) > 2 {
			continue
		}

		addr, err := g2addr.Parse(fields[0])
		if err != nil || !addr.IsValid() {
			continue
		}
		if c.security != nil && c.security.IsDenied(addr) {
			continue
		}

		ts := now
		if len(fields) == 2 {
			ts = parseXTryTimestamp(fields[1], now)
		}
		c.addCore(addr, ts, now, 0)
	}
}

// parseXTryTimestamp parses a "yyyy-MM-ddThh:mmZ" timestamp, falling back
// to now if the token doesn't parse, per spec.md §4.D.
func parseXTryTimestamp(s string, now uint32) uint32 {
	t, err := time.Parse("2006-01-02T15:04Z", s)
	if err != nil {
		return now
	}
	unix := t.Unix()
	if unix < 0 {
		return now
	}
	return uint32(unix)
}

// formatXTryTimestamp renders ts in the wire format spec.md §6 requires.
func formatXTryTimestamp(ts uint32) string {
	return time.Unix(int64(ts), 0).UTC().Format("2006-01-02T15:04Z")
}

// formatXTryEntry renders one "ip:port yyyy-MM-ddThh:mmZ" token.
func formatXTryEntry(addr g2addr.Endpoint, ts uint32) string {
	return addr.String() + " " + formatXTryTimestamp(ts)
}
