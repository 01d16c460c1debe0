// Copyright (c) 2025 The Quazaa Development Team.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hostcache

import (
	"container/list"

	"github.com/quazaa-development-team/g2hostcache/g2addr"
)

// HostEntry holds everything the cache tracks about one candidate hub.
// Its timestamp and failure count are immutable once constructed: changing
// either means building a replacement with NewHostEntry or Clone and reinserting it,
// which is how the cache keeps bucket position in sync with failure count.
//
// A HostEntry is owned exclusively by the cache's actor goroutine. Handles
// returned to callers (by Get, Check, GetConnectable, ...) remain valid only
// for as long as the caller holds the cache's mutex.
type HostEntry struct {
	address g2addr.Endpoint
	id      uint32

	timestamp uint32
	failures  uint8

	queryKey uint32
	keyHost  g2addr.Endpoint
	keyTime  uint32

	ack uint32

	lastQuery   uint32
	retryAfter  uint32
	lastConnect uint32

	connectable bool

	// selfIter is a weak positional handle into the cache's bucketList. It
	// is never an owning reference; the bucketList owns the list element
	// and this entry merely remembers where it lives so the cache can
	// remove it in O(1) without a linear scan.
	selfIter *list.Element
}

// NewHostEntry constructs a HostEntry for address, first seen at timestamp,
// with the given failure count.
func NewHostEntry(address g2addr.Endpoint, timestamp uint32, failures uint8) *HostEntry {
	return &HostEntry{
		address:   address,
		timestamp: timestamp,
		failures:  failures,
	}
}

// Clone returns a new HostEntry carrying the same identity and metadata as
// e but with a new timestamp and failure count. The original entry is left
// untouched; the cache is responsible for removing it and inserting the
// clone so that bucket placement tracks the new failure count.
func (e *HostEntry) Clone(timestamp uint32, failures uint8) *HostEntry {
	return &HostEntry{
		address:     e.address,
		id:          e.id,
		timestamp:   timestamp,
		failures:    failures,
		queryKey:    e.queryKey,
		keyHost:     e.keyHost,
		keyTime:     e.keyTime,
		ack:         e.ack,
		lastQuery:   e.lastQuery,
		retryAfter:  e.retryAfter,
		lastConnect: e.lastConnect,
		connectable: e.connectable,
	}
}

// Address returns the hub's network address.
func (e *HostEntry) Address() g2addr.Endpoint { return e.address }

// ID returns the entry's monotonic identifier, used to correlate this
// entry across RequestHostInfo events for UI consumers.
func (e *HostEntry) ID() uint32 { return e.id }

// Timestamp returns the last-seen wall time, UTC seconds.
func (e *HostEntry) Timestamp() uint32 { return e.timestamp }

// Failures returns the number of consecutive connection failures.
func (e *HostEntry) Failures() uint8 { return e.failures }

// QueryKey returns the G2 query key last issued for this host, if any.
func (e *HostEntry) QueryKey() uint32 { return e.queryKey }

// KeyHost returns the host the query key in QueryKey was issued for.
func (e *HostEntry) KeyHost() g2addr.Endpoint { return e.keyHost }

// KeyTime returns when the query key in QueryKey was received.
func (e *HostEntry) KeyTime() uint32 { return e.keyTime }

// Ack returns the timestamp of the last query-ack-requiring operation, or
// zero if none has occurred.
func (e *HostEntry) Ack() uint32 { return e.ack }

// LastQuery returns when a query was last sent to this host.
func (e *HostEntry) LastQuery() uint32 { return e.lastQuery }

// RetryAfter returns the earliest time a query may be retried.
func (e *HostEntry) RetryAfter() uint32 { return e.retryAfter }

// LastConnect returns when the cache last connected to this host, or zero
// if it never has.
func (e *HostEntry) LastConnect() uint32 { return e.lastConnect }

// Connectable reports whether the dialer may currently attempt this host.
func (e *HostEntry) Connectable() bool { return e.connectable }

// setKey attaches a freshly issued query key triple to the entry.
func (e *HostEntry) setKey(key uint32, now uint32, keyHost g2addr.Endpoint) {
	e.queryKey = key
	e.keyTime = now
	e.keyHost = keyHost
}

// setAck records the timestamp of a query-ack-requiring operation.
func (e *HostEntry) setAck(ack uint32) { e.ack = ack }

// setLastConnect records the last time the cache connected to this host.
func (e *HostEntry) setLastConnect(t uint32) { e.lastConnect = t }

// setConnectable sets the derived connectable flag.
func (e *HostEntry) setConnectable(c bool) { e.connectable = c }

// SetLastQuery records that a query was just sent to this host. Callers
// must hold the owning Cache's mutex (see Cache.Lock) for the duration of
// the call, since entry is only safely mutable while the actor cannot
// also be touching it.
func (e *HostEntry) SetLastQuery(t uint32) { e.lastQuery = t }

// SetRetryAfter records the earliest time a query may next be retried.
// Callers must hold the owning Cache's mutex.
func (e *HostEntry) SetRetryAfter(t uint32) { e.retryAfter = t }

// canQuery reports whether a query may be issued to this host at tNow,
// governed by retryAfter and the configured query throttle.
func (e *HostEntry) canQuery(tNow uint32, throttle uint32) bool {
	if e.retryAfter != 0 && tNow < e.retryAfter {
		return false
	}
	if e.lastQuery == 0 {
		return true
	}
	return tNow >= e.lastQuery+throttle
}
